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

// compileCmd represents the compile command
var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Merge reviewed batch files into the airdrop file",
	Long: `Compile reads every batch-<n>.jsonl file in the entries directory in
batch order, assigns each entry its amount and writes the airdrop file
consumed by generate.

Example:
  claimroot compile --entries-dir output --amount 10 --out airdrop.jsonl
  claimroot compile --amount-table amounts.yaml`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, map[string]string{
			"entries-dir":  "output.entries_dir",
			"amount":       "amount.per_claim",
			"amount-table": "amount.table_file",
			"out":          "output.airdrop_file",
		})
	},
	RunE: runCompile,
}

func init() {
	rootCmd.AddCommand(compileCmd)

	defaults := model.DefaultConfig()
	f := compileCmd.Flags()
	f.String("entries-dir", defaults.Output.EntriesDir, "directory holding batch files")
	f.String("amount", defaults.Amount.PerClaim, "amount per claim in base units (decimal or 0x-hex)")
	f.String("amount-table", defaults.Amount.TableFile, "YAML amount table overriding the per-claim amount")
	f.String("out", defaults.Output.AirdropFile, "airdrop file to write")
}

func runCompile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	in, err := entries.ReadDir(cfg.Output.EntriesDir)
	if err != nil {
		return err
	}
	if len(in) == 0 {
		return fmt.Errorf("no entries found in %s", cfg.Output.EntriesDir)
	}

	policy, _, err := pipeline.NewAmountPolicy(cfg.Amount)
	if err != nil {
		return err
	}

	out, err := pipeline.CompileEntries(in, policy)
	if err != nil {
		return fmt.Errorf("compile failed: %w", err)
	}

	if err := entries.WriteFile(cfg.Output.AirdropFile, out); err != nil {
		return err
	}

	logger.Info("Compile complete",
		zap.Int("entries", len(out)),
		zap.String("file", cfg.Output.AirdropFile))

	fmt.Fprintf(os.Stderr, "✓ %d entries written to %s\n", len(out), cfg.Output.AirdropFile)
	return nil
}
