package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"reflect"
	"strings"
	"syscall"

	"github.com/ppiankov/claimroot/internal/logging"
	"github.com/ppiankov/claimroot/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const version = "claimroot v0.1.0"

var (
	cfgFile string
	verbose bool
	logger  = zap.NewNop()
)

// envAliases are the legacy variable names, accepted
// alongside the CLAIMROOT_* names
var envAliases = map[string]string{
	"twitter.bearer_token":    "TWITTER_BEARER",
	"twitter.conversation_id": "CONVERSATION_ID",
	"twitter.page_limit":      "PAGE_LIMIT",
	"amount.per_claim":        "NUM_TOKENS",
	"resolve.rpc_url":         "RPC_PROVIDER",
	"output.entries_dir":      "ENTRIES_DIR",
	"output.airdrop_file":     "AIRDROP_FILE",
	"output.proofs_file":      "PROOFS_FILE",
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "claimroot",
	Short: "claimroot - turn social engagement into a Merkle airdrop",
	Long: `claimroot turns replies and quote tweets on a conversation into a
verifiable token-claim set: one Merkle root committing to (address, amount)
pairs, plus an inclusion proof per address for an on-chain distributor.

A run has two halves with a reviewable hand-off in between:

  claimroot collect    engagement -> unique, resolved addresses (batch files)
  claimroot compile    batch files + amount policy -> airdrop file
  claimroot generate   airdrop file -> Merkle root + proofs
  claimroot verify     re-check every proof in a proofs file`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(verbose)
		if err != nil {
			return err
		}
		logger = l
		if used := viper.ConfigFileUsed(); used != "" {
			logger.Debug("Using config file", zap.String("path", used))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the root command. Interrupts cancel in-flight work.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.claimroot/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".claimroot"))
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("CLAIMROOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	bindEnv(viper.GetViper())

	// A missing config file is fine; a broken one is reported
	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); cfgFile != "" || !notFound {
			fmt.Fprintf(os.Stderr, "Error reading config: %v\n", err)
		}
	}
}

// bindEnv registers every config key with viper so environment values
// reach Unmarshal, plus the legacy aliases
func bindEnv(v *viper.Viper) {
	for _, key := range configKeys(reflect.TypeOf(model.Config{}), "") {
		envName := "CLAIMROOT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if alias, ok := envAliases[key]; ok {
			_ = v.BindEnv(key, envName, alias)
			continue
		}
		_ = v.BindEnv(key, envName)
	}
}

// configKeys lists the dotted mapstructure keys of a config struct
func configKeys(t reflect.Type, prefix string) []string {
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := strings.Split(f.Tag.Get("mapstructure"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		if f.Type.Kind() == reflect.Struct && f.Type.PkgPath() != "time" {
			keys = append(keys, configKeys(f.Type, key)...)
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// bindFlags ties command flags to config keys. Flag defaults must equal
// the config defaults, since viper reports unchanged flag defaults too.
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for flag, key := range keys {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("bind --%s: %w", flag, err)
		}
	}
	return nil
}

// loadConfig layers config file, environment and flags over the defaults
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	cfg.Verbose = verbose
	return cfg, nil
}
