package model

import "time"

// Config holds all claimroot settings. Field tags serve both viper
// (mapstructure) and the YAML rendering used by `claimroot config`.
type Config struct {
	Twitter TwitterConfig `yaml:"twitter" mapstructure:"twitter"`
	HTTP    HTTPConfig    `yaml:"http" mapstructure:"http"`
	Extract ExtractConfig `yaml:"extract" mapstructure:"extract"`
	Resolve ResolveConfig `yaml:"resolve" mapstructure:"resolve"`
	Amount  AmountConfig  `yaml:"amount" mapstructure:"amount"`
	Merkle  MerkleConfig  `yaml:"merkle" mapstructure:"merkle"`
	Output  OutputConfig  `yaml:"output" mapstructure:"output"`
	Verbose bool          `yaml:"verbose" mapstructure:"verbose"`
}

// TwitterConfig configures engagement collection
type TwitterConfig struct {
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	BearerToken       string  `yaml:"bearer_token,omitempty" mapstructure:"bearer_token"`
	ConversationID    string  `yaml:"conversation_id" mapstructure:"conversation_id"`
	PageLimit         int     `yaml:"page_limit" mapstructure:"page_limit"` // 0 = until exhausted
	RequireRetweet    bool    `yaml:"require_retweet" mapstructure:"require_retweet"`
	IncludeQuotes     bool    `yaml:"include_quotes" mapstructure:"include_quotes"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// HTTPConfig is shared by every outbound HTTP client
type HTTPConfig struct {
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent  string        `yaml:"user_agent" mapstructure:"user_agent"`
	HTTPProxy  string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy    string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// ExtractConfig configures candidate extraction
type ExtractConfig struct {
	NameSuffix   string `yaml:"name_suffix" mapstructure:"name_suffix"`
	HexAddresses bool   `yaml:"hex_addresses" mapstructure:"hex_addresses"`
}

// ResolveConfig configures address resolution
type ResolveConfig struct {
	RPCURL            string        `yaml:"rpc_url,omitempty" mapstructure:"rpc_url"`
	Registry          string        `yaml:"registry" mapstructure:"registry"`
	Workers           int           `yaml:"workers" mapstructure:"workers"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int           `yaml:"burst_size" mapstructure:"burst_size"`
	CacheEnabled      bool          `yaml:"cache_enabled" mapstructure:"cache_enabled"`
	CacheDir          string        `yaml:"cache_dir" mapstructure:"cache_dir"`
	CacheTTL          time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// AmountConfig is the claim amount policy
type AmountConfig struct {
	PerClaim  string `yaml:"per_claim" mapstructure:"per_claim"`             // Base units, decimal or 0x-hex
	TableFile string `yaml:"table_file,omitempty" mapstructure:"table_file"` // Optional YAML lookup table
}

// MerkleConfig configures the commitment
type MerkleConfig struct {
	Pairing string `yaml:"pairing" mapstructure:"pairing"` // "sorted" or "positional"
}

// OutputConfig configures artifact locations
type OutputConfig struct {
	EntriesDir  string `yaml:"entries_dir" mapstructure:"entries_dir"`
	BatchSize   int    `yaml:"batch_size" mapstructure:"batch_size"`
	AirdropFile string `yaml:"airdrop_file" mapstructure:"airdrop_file"`
	ProofsFile  string `yaml:"proofs_file" mapstructure:"proofs_file"`
	S3Bucket    string `yaml:"s3_bucket,omitempty" mapstructure:"s3_bucket"`
	S3Region    string `yaml:"s3_region,omitempty" mapstructure:"s3_region"`
	S3Prefix    string `yaml:"s3_prefix,omitempty" mapstructure:"s3_prefix"`
	S3Endpoint  string `yaml:"s3_endpoint,omitempty" mapstructure:"s3_endpoint"`
}

// DefaultENSRegistry is the ENS registry deployment on Ethereum mainnet
const DefaultENSRegistry = "0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e"

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Twitter: TwitterConfig{
			BaseURL:           "https://api.twitter.com/2",
			PageLimit:         0,
			RequireRetweet:    true,
			IncludeQuotes:     true,
			RequestsPerSecond: 0.5,
			BurstSize:         1,
		},
		HTTP: HTTPConfig{
			Timeout:   30 * time.Second,
			UserAgent: "claimroot/0.1 (+https://github.com/ppiankov/claimroot)",
		},
		Extract: ExtractConfig{
			NameSuffix:   ".eth",
			HexAddresses: false,
		},
		Resolve: ResolveConfig{
			Registry:          DefaultENSRegistry,
			Workers:           8,
			Timeout:           15 * time.Second,
			RequestsPerSecond: 10,
			BurstSize:         10,
			CacheEnabled:      true,
			CacheDir:          ".claimroot-cache",
			CacheTTL:          24 * time.Hour,
		},
		Amount: AmountConfig{
			PerClaim: "10",
		},
		Merkle: MerkleConfig{
			Pairing: "sorted",
		},
		Output: OutputConfig{
			EntriesDir:  "output",
			BatchSize:   100,
			AirdropFile: "airdrop.jsonl",
			ProofsFile:  "proofs.json",
		},
	}
}
