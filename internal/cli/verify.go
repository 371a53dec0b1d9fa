package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/ppiankov/claimroot/internal/artifact"
	"github.com/ppiankov/claimroot/internal/claims"
	"github.com/ppiankov/claimroot/internal/merkle"
	"github.com/ppiankov/claimroot/internal/model"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify [proofs-file | s3://bucket/key]",
	Short: "Check every proof in a proofs file against its root",
	Long: `Verify validates a proofs file against the claim-set schema and checks
that every (index, address, amount) leaf is proven under the Merkle root.
All failures are reported, not just the first.

Example:
  claimroot verify proofs.json
  claimroot verify s3://my-bucket/airdrops/proofs.json --pairing positional`,
	Args: cobra.MaximumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, map[string]string{
			"pairing": "merkle.pairing",
		})
	},
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().String("pairing", model.DefaultConfig().Merkle.Pairing, "node pairing: sorted or positional")
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	location := cfg.Output.ProofsFile
	if len(args) == 1 {
		location = args[0]
	}

	pairing, err := merkle.ParsePairing(cfg.Merkle.Pairing)
	if err != nil {
		return err
	}

	data, err := fetchArtifact(cmd.Context(), cfg.Output, location)
	if err != nil {
		return err
	}

	set, err := claims.ParseClaimSet(data)
	if err != nil {
		return fmt.Errorf("%s: %w", location, err)
	}
	if err := set.Verify(pairing); err != nil {
		return fmt.Errorf("%s: verification failed:\n%w", location, err)
	}

	logger.Info("All proofs valid",
		zap.String("root", set.MerkleRoot),
		zap.Int("claims", len(set.Claims)),
		zap.String("digest", artifact.Digest(data)))

	fmt.Printf("✓ %d proofs valid under %s\n", len(set.Claims), set.MerkleRoot)
	return nil
}

// fetchArtifact loads a proofs file from disk or an s3:// location
func fetchArtifact(ctx context.Context, out model.OutputConfig, location string) ([]byte, error) {
	bucket, key, ok := artifact.ParseS3URL(location)
	if !ok {
		data, err := os.ReadFile(location)
		if err != nil {
			return nil, fmt.Errorf("failed to read proofs file: %w", err)
		}
		return data, nil
	}

	store, err := artifact.NewS3Store(ctx, artifact.S3StoreConfig{
		Bucket:   bucket,
		Region:   out.S3Region,
		Endpoint: out.S3Endpoint,
	})
	if err != nil {
		return nil, err
	}
	return store.Get(ctx, key)
}
