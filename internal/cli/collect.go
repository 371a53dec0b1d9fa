package cli

import (
	"fmt"
	"os"

	"github.com/ppiankov/claimroot/internal/entries"
	"github.com/ppiankov/claimroot/internal/model"
	"github.com/ppiankov/claimroot/internal/pipeline"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// collectCmd represents the collect command
var collectCmd = &cobra.Command{
	Use:   "collect [conversation-id]",
	Short: "Collect engagement and write eligible addresses as batch files",
	Long: `Collect reads the replies (and optionally quote tweets) of a conversation,
extracts one address or name per author, resolves names over JSON-RPC and
writes the unique survivors as batch-<n>.jsonl files for manual review.

Example:
  TWITTER_BEARER=... RPC_PROVIDER=https://... claimroot collect 1650000000000000000
  claimroot collect --conversation 1650000000000000000 --hex-addresses --page-limit 5`,
	Args: cobra.MaximumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, map[string]string{
			"conversation":    "twitter.conversation_id",
			"page-limit":      "twitter.page_limit",
			"require-retweet": "twitter.require_retweet",
			"quotes":          "twitter.include_quotes",
			"hex-addresses":   "extract.hex_addresses",
			"suffix":          "extract.name_suffix",
			"rpc":             "resolve.rpc_url",
			"workers":         "resolve.workers",
			"entries-dir":     "output.entries_dir",
		})
	},
	RunE: runCollect,
}

func init() {
	rootCmd.AddCommand(collectCmd)

	defaults := model.DefaultConfig()
	f := collectCmd.Flags()
	f.String("conversation", defaults.Twitter.ConversationID, "conversation (root tweet) id")
	f.Int("page-limit", defaults.Twitter.PageLimit, "max pages per endpoint (0 = until exhausted)")
	f.Bool("require-retweet", defaults.Twitter.RequireRetweet, "keep replies only from authors who retweeted")
	f.Bool("quotes", defaults.Twitter.IncludeQuotes, "include quote tweets")
	f.Bool("hex-addresses", defaults.Extract.HexAddresses, "accept bare 0x addresses in text")
	f.String("suffix", defaults.Extract.NameSuffix, "name suffix to look for")
	f.String("rpc", defaults.Resolve.RPCURL, "JSON-RPC endpoint for name resolution")
	f.Int("workers", defaults.Resolve.Workers, "concurrent name lookups")
	f.String("entries-dir", defaults.Output.EntriesDir, "directory for batch files")
}

func runCollect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(args) == 1 {
		cfg.Twitter.ConversationID = args[0]
	}

	ctx := cmd.Context()
	p, err := pipeline.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	result, err := p.Run(ctx)
	if err != nil {
		return fmt.Errorf("collect failed: %w", err)
	}

	if len(result.Claims) == 0 {
		logger.Warn("No eligible claims collected; nothing written")
		return nil
	}

	paths, err := entries.WriteBatches(cfg.Output.EntriesDir, pipeline.ToEntries(result.Claims, ""), cfg.Output.BatchSize)
	if err != nil {
		return fmt.Errorf("write batches: %w", err)
	}

	logger.Info("Collect complete",
		zap.Int("claims", len(result.Claims)),
		zap.Int("batches", len(paths)),
		zap.String("dir", cfg.Output.EntriesDir))

	fmt.Fprintf(os.Stderr, "✓ %d claims written to %d batch files in %s\n", len(result.Claims), len(paths), cfg.Output.EntriesDir)
	return nil
}
