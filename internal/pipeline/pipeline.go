package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ppiankov/claimroot/internal/cache"
	"github.com/ppiankov/claimroot/internal/collect"
	"github.com/ppiankov/claimroot/internal/extract"
	"github.com/ppiankov/claimroot/internal/model"
	"github.com/ppiankov/claimroot/internal/resolve"
	"github.com/ppiankov/claimroot/internal/util"
	"github.com/ppiankov/claimroot/internal/worker"
	"go.uber.org/zap"
)

// Pipeline wires the collect half of a run from configuration: engagement
// collection, then eligibility
type Pipeline struct {
	collector   *collect.Client
	eligibility *Eligibility
	closers     []func()
	config      *model.Config
	logger      *zap.Logger
}

// New creates a pipeline. Without an RPC URL, name tokens cannot be
// resolved and are dropped as unresolved.
func New(ctx context.Context, cfg *model.Config, logger *zap.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := util.NewHTTPClient(cfg.HTTP.Timeout, cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy)

	limiter := worker.NewLimiter(cfg.Resolve.RequestsPerSecond, cfg.Resolve.BurstSize)
	if host := hostOf(cfg.Twitter.BaseURL); host != "" {
		limiter.SetHostRate(host, cfg.Twitter.RequestsPerSecond, cfg.Twitter.BurstSize)
	}

	collector, err := collect.NewClient(collect.Options{
		BaseURL:     cfg.Twitter.BaseURL,
		BearerToken: cfg.Twitter.BearerToken,
		UserAgent:   cfg.HTTP.UserAgent,
		HTTPClient:  httpClient,
		Limiter:     limiter,
		PageLimit:   cfg.Twitter.PageLimit,
		Logger:      logger.Named("collect"),
	})
	if err != nil {
		return nil, err
	}

	p := &Pipeline{collector: collector, config: cfg, logger: logger}

	names, err := p.nameResolver(ctx, httpClient, limiter)
	if err != nil {
		return nil, err
	}

	resolver := resolve.New(names,
		resolve.WithSuffix(cfg.Extract.NameSuffix),
		resolve.WithTimeout(cfg.Resolve.Timeout),
		resolve.WithWorkers(cfg.Resolve.Workers),
		resolve.WithLogger(logger.Named("resolve")))

	p.eligibility = NewEligibility(
		extract.NewCandidateExtractor(cfg.Extract.NameSuffix, cfg.Extract.HexAddresses),
		resolver,
		logger)

	return p, nil
}

// nameResolver dials ENS when an RPC URL is configured and layers the
// resolution cache over it
func (p *Pipeline) nameResolver(ctx context.Context, httpClient *http.Client, limiter *worker.Limiter) (resolve.NameResolver, error) {
	cfg := p.config.Resolve
	if cfg.RPCURL == "" {
		p.logger.Warn("No RPC endpoint configured; name tokens will be dropped")
		return nil, nil
	}
	if !common.IsHexAddress(cfg.Registry) {
		return nil, fmt.Errorf("resolve.registry %q is not an address", cfg.Registry)
	}

	ens, err := resolve.DialENS(ctx, cfg.RPCURL, common.HexToAddress(cfg.Registry), httpClient, limiter)
	if err != nil {
		return nil, fmt.Errorf("dial name resolver: %w", err)
	}
	p.closers = append(p.closers, ens.Close)

	if !cfg.CacheEnabled {
		return ens, nil
	}
	store := cache.NewLayeredCache(cfg.CacheTTL, cfg.CacheDir, cfg.CacheTTL)
	return resolve.NewCachedResolver(ens, store, cfg.CacheTTL), nil
}

// Result is the outcome of a collect run
type Result struct {
	Claims  []model.ResolvedClaim
	Collect collect.Stats
	Stats   Stats
}

// Run collects the conversation's engagement and resolves eligible claims
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	tw := p.config.Twitter
	if tw.ConversationID == "" {
		return nil, fmt.Errorf("twitter.conversation_id not set")
	}

	records, collectStats, err := p.collector.Collect(ctx, tw.ConversationID, collect.CollectOptions{
		RequireRetweet: tw.RequireRetweet,
		IncludeQuotes:  tw.IncludeQuotes,
	})
	if err != nil {
		return nil, err
	}
	if collectStats.PageLimitHit {
		p.logger.Warn("Collection stopped at the page limit; later engagement was not read",
			zap.Int("pages", collectStats.PagesFetched))
	}

	claims, stats := p.eligibility.Run(ctx, records)
	return &Result{Claims: claims, Collect: collectStats, Stats: stats}, nil
}

// Close releases RPC connections
func (p *Pipeline) Close() {
	for _, c := range p.closers {
		c()
	}
	p.closers = nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
