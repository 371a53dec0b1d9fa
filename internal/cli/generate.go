package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ppiankov/claimroot/internal/artifact"
	"github.com/ppiankov/claimroot/internal/claims"
	"github.com/ppiankov/claimroot/internal/entries"
	"github.com/ppiankov/claimroot/internal/merkle"
	"github.com/ppiankov/claimroot/internal/model"
	"github.com/ppiankov/claimroot/internal/pipeline"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Build the Merkle root and proofs from the airdrop file",
	Long: `Generate re-validates the airdrop file, assigns claim indices in file
order, builds the Merkle tree and writes the root with one proof per
address. With output.s3_bucket set the proofs file is also published to S3.

Pairing modes:
  sorted       each node hashes its children in ascending byte order. Proofs
               verify with OpenZeppelin MerkleProof.verify and
               merkle-distributor style contracts. Default.
  positional   each node hashes left then right, promoting an odd last node
               unchanged. Matches merkletreejs with default options, so it
               reproduces roots published by the earlier JavaScript tooling;
               verifiers need the claim index and the leaf count.

Example:
  claimroot generate --in airdrop.jsonl --out proofs.json
  claimroot generate --pairing positional`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, map[string]string{
			"in":      "output.airdrop_file",
			"out":     "output.proofs_file",
			"amount":  "amount.per_claim",
			"pairing": "merkle.pairing",
		})
	},
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	defaults := model.DefaultConfig()
	f := generateCmd.Flags()
	f.String("in", defaults.Output.AirdropFile, "airdrop file to read")
	f.String("out", defaults.Output.ProofsFile, "proofs file to write")
	f.String("amount", defaults.Amount.PerClaim, "amount for entries that carry none")
	f.String("pairing", defaults.Merkle.Pairing, "node pairing: sorted (OpenZeppelin MerkleProof) or positional (merkletreejs)")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pairing, err := merkle.ParsePairing(cfg.Merkle.Pairing)
	if err != nil {
		return err
	}
	fallback, err := claims.ParseAmount(cfg.Amount.PerClaim)
	if err != nil {
		return fmt.Errorf("amount.per_claim: %w", err)
	}

	in, err := entries.ReadFile(cfg.Output.AirdropFile)
	if err != nil {
		return err
	}

	resolved, policy, duplicates, err := pipeline.EntryClaims(in, fallback)
	if err != nil {
		return fmt.Errorf("invalid airdrop file: %w", err)
	}
	if duplicates > 0 {
		logger.Warn("Dropped entries repeating an author or address", zap.Int("duplicates", duplicates))
	}

	commitment, err := pipeline.Commit(resolved, policy, pairing)
	if err != nil {
		return err
	}

	data, err := commitment.Set.MarshalCanonical()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	locations, err := publish(ctx, cfg.Output, data)
	if err != nil {
		return err
	}

	logger.Info("Generate complete",
		zap.String("root", commitment.Root.Hex()),
		zap.Int("claims", len(commitment.Indexed)),
		zap.Stringer("pairing", pairing),
		zap.String("digest", artifact.Digest(data)),
		zap.Strings("written", locations))

	fmt.Println(commitment.Root.Hex())
	return nil
}

// publish writes the proofs file locally and, when a bucket is set, to S3
func publish(ctx context.Context, out model.OutputConfig, data []byte) ([]string, error) {
	dir, name := filepath.Split(out.ProofsFile)
	local, err := artifact.NewFileStore(dir)
	if err != nil {
		return nil, err
	}

	stores := []artifact.Store{local}
	if out.S3Bucket != "" {
		remote, err := artifact.NewS3Store(ctx, artifact.S3StoreConfig{
			Bucket:   out.S3Bucket,
			Region:   out.S3Region,
			Endpoint: out.S3Endpoint,
			Prefix:   out.S3Prefix,
		})
		if err != nil {
			return nil, err
		}
		stores = append(stores, remote)
	}

	return putAll(ctx, stores, name, data)
}

func putAll(ctx context.Context, stores []artifact.Store, name string, data []byte) ([]string, error) {
	locations := make([]string, 0, len(stores))
	for _, s := range stores {
		loc, err := s.Put(ctx, name, data)
		if err != nil {
			return locations, err
		}
		locations = append(locations, loc)
	}
	return locations, nil
}
