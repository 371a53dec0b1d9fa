package cli

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/claimroot/internal/cache"
	"github.com/ppiankov/claimroot/internal/claims"
	"github.com/ppiankov/claimroot/internal/model"
	"github.com/spf13/viper"
)

const (
	addrA = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	addrB = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
	addrC = "0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB"

	sortedRoot = "0x66c14ba1a65665db2c168d945b005b3053220e9db98df957acb062706a664d34"
)

func TestConfigKeys(t *testing.T) {
	keys := configKeys(reflect.TypeOf(model.Config{}), "")

	want := []string{
		"twitter.bearer_token",
		"http.timeout",
		"resolve.cache_ttl",
		"amount.per_claim",
		"merkle.pairing",
		"output.s3_bucket",
		"verbose",
	}
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	for _, k := range want {
		if !set[k] {
			t.Errorf("expected key %q in %v", k, keys)
		}
	}
	for alias := range envAliases {
		if !set[alias] {
			t.Errorf("alias target %q is not a config key", alias)
		}
	}
}

func TestLoadConfig_EnvAliases(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("NUM_TOKENS", "25")
	t.Setenv("CONVERSATION_ID", "12345")
	t.Setenv("CLAIMROOT_MERKLE_PAIRING", "positional")
	t.Setenv("CLAIMROOT_RESOLVE_TIMEOUT", "3s")
	bindEnv(viper.GetViper())

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Amount.PerClaim != "25" {
		t.Errorf("expected per_claim 25, got %q", cfg.Amount.PerClaim)
	}
	if cfg.Twitter.ConversationID != "12345" {
		t.Errorf("expected conversation 12345, got %q", cfg.Twitter.ConversationID)
	}
	if cfg.Merkle.Pairing != "positional" {
		t.Errorf("expected positional pairing, got %q", cfg.Merkle.Pairing)
	}
	if cfg.Resolve.Timeout.String() != "3s" {
		t.Errorf("expected 3s timeout, got %v", cfg.Resolve.Timeout)
	}

	// Untouched keys keep their defaults
	if cfg.Output.BatchSize != model.DefaultConfig().Output.BatchSize {
		t.Errorf("expected default batch size, got %d", cfg.Output.BatchSize)
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	if err := writeDefaultConfig(path); err != nil {
		t.Fatalf("writeDefaultConfig: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "pairing: sorted") {
		t.Errorf("expected defaults in config file, got:\n%s", data)
	}

	if err := writeDefaultConfig(path); err == nil {
		t.Error("expected an error when the file already exists")
	}
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(context.Background())
}

func TestCompileGenerateVerify(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", t.TempDir())

	dir := t.TempDir()
	entriesDir := filepath.Join(dir, "output")
	airdrop := filepath.Join(dir, "airdrop.jsonl")
	proofs := filepath.Join(dir, "proofs.json")

	if err := os.MkdirAll(entriesDir, 0o755); err != nil {
		t.Fatal(err)
	}
	batch := `{"twitter":"alice","address":"` + addrA + `"}
{"twitter":"bob","address":"` + strings.ToLower(addrB) + `"}
{"twitter":"carol","address":"` + addrC + `"}
`
	if err := os.WriteFile(filepath.Join(entriesDir, "batch-1.jsonl"), []byte(batch), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := execute(t, "compile", "--entries-dir", entriesDir, "--amount", "10", "--out", airdrop); err != nil {
		t.Fatalf("compile: %v", err)
	}
	if err := execute(t, "generate", "--in", airdrop, "--out", proofs, "--pairing", "sorted"); err != nil {
		t.Fatalf("generate: %v", err)
	}

	data, err := os.ReadFile(proofs)
	if err != nil {
		t.Fatal(err)
	}
	set, err := claims.ParseClaimSet(data)
	if err != nil {
		t.Fatalf("ParseClaimSet: %v", err)
	}
	if set.MerkleRoot != sortedRoot {
		t.Errorf("expected root %s, got %s", sortedRoot, set.MerkleRoot)
	}
	if got := set.Claims[addrB]; got.Index != 1 || got.Amount != "0x0a" {
		t.Errorf("unexpected claim for %s: %+v", addrB, got)
	}

	if err := execute(t, "verify", proofs, "--pairing", "sorted"); err != nil {
		t.Errorf("verify: %v", err)
	}
	if err := execute(t, "verify", proofs, "--pairing", "positional"); err == nil {
		t.Error("expected verification under the wrong pairing to fail")
	}
}

func TestGenerate_MalformedEntryIsFatal(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", t.TempDir())

	dir := t.TempDir()
	airdrop := filepath.Join(dir, "airdrop.jsonl")
	bad := `{"twitter":"alice","address":"` + addrA + `","amount":"10"}
{"twitter":"mallory","address":"0x1234","amount":"10"}
`
	if err := os.WriteFile(airdrop, []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}

	proofs := filepath.Join(dir, "proofs.json")
	if err := execute(t, "generate", "--in", airdrop, "--out", proofs, "--pairing", "sorted"); err == nil {
		t.Fatal("expected generate to reject a malformed address")
	}
	if _, err := os.Stat(proofs); !os.IsNotExist(err) {
		t.Errorf("expected no proofs file after a failed run, stat err = %v", err)
	}
}

func TestCacheClear(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", t.TempDir())

	dir := filepath.Join(t.TempDir(), "names")
	t.Setenv("CLAIMROOT_RESOLVE_CACHE_DIR", dir)

	store := cache.NewDiskCache(dir, time.Hour)
	if err := store.Set(cache.Key("ens", "foo.eth"), []byte{}, 0); err != nil {
		t.Fatal(err)
	}

	if err := execute(t, "cache", "clear", "foo.eth"); err != nil {
		t.Fatalf("cache clear foo.eth: %v", err)
	}
	if _, ok := store.Get(cache.Key("ens", "foo.eth")); ok {
		t.Error("expected foo.eth to be dropped")
	}

	if err := execute(t, "cache", "clear"); err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("expected cache dir removed, stat err = %v", err)
	}
}

func TestGenerateHelpNamesVerifierPerPairing(t *testing.T) {
	for _, want := range []string{"sorted", "OpenZeppelin", "positional", "merkletreejs"} {
		if !strings.Contains(generateCmd.Long, want) {
			t.Errorf("generate help does not mention %q", want)
		}
	}
	if usage := generateCmd.Flags().Lookup("pairing").Usage; !strings.Contains(usage, "merkletreejs") {
		t.Errorf("pairing flag usage does not name the positional verifier: %q", usage)
	}
}
