package cli

import (
	"fmt"
	"os"

	"github.com/ppiankov/claimroot/internal/cache"
	"github.com/ppiankov/claimroot/internal/resolve"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the name-resolution cache",
	Long: `Name lookups, including names that had no address, are cached under
resolve.cache_dir for resolve.cache_ttl. Clear the cache after a name's
records change, or before a run that must see fresh registry state.`,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [name...]",
	Short: "Drop cached name lookups",
	Long: `With no arguments, clear removes the whole cache. With names, only
those lookups are dropped.

Example:
  claimroot cache clear
  claimroot cache clear vitalik.eth alice.eth`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		rc := cfg.Resolve
		store := cache.NewLayeredCache(rc.CacheTTL, rc.CacheDir, rc.CacheTTL)

		if len(args) == 0 {
			if err := store.Clear(); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			logger.Info("Cleared name cache", zap.String("dir", rc.CacheDir))
			fmt.Fprintf(os.Stderr, "✓ Cleared %s\n", rc.CacheDir)
			return nil
		}

		if err := resolve.Forget(store, args...); err != nil {
			return fmt.Errorf("forget names: %w", err)
		}
		logger.Info("Dropped cached names", zap.Strings("names", args))
		fmt.Fprintf(os.Stderr, "✓ Dropped %d cached names\n", len(args))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
