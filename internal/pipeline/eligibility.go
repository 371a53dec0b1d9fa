package pipeline

import (
	"context"

	"github.com/ppiankov/claimroot/internal/extract"
	"github.com/ppiankov/claimroot/internal/model"
	"github.com/ppiankov/claimroot/internal/resolve"
	"go.uber.org/zap"
)

// Stats counts what each eligibility stage kept and dropped
type Stats struct {
	Records           int           `json:"records"`
	Candidates        int           `json:"candidates"`
	AuthorDuplicates  int           `json:"author_duplicates"`
	Resolve           resolve.Stats `json:"resolve"`
	AddressDuplicates int           `json:"address_duplicates"`
	Claims            int           `json:"claims"`
}

// Eligibility turns engagement records into unique, resolved claims:
// extract, dedupe by author, resolve, dedupe by address
type Eligibility struct {
	extractor *extract.CandidateExtractor
	resolver  *resolve.Resolver
	logger    *zap.Logger
}

// NewEligibility wires the eligibility stages
func NewEligibility(extractor *extract.CandidateExtractor, resolver *resolve.Resolver, logger *zap.Logger) *Eligibility {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Eligibility{extractor: extractor, resolver: resolver, logger: logger}
}

// Run passes records through every stage. Each stage only reads its
// input slice; survivors keep record order.
func (e *Eligibility) Run(ctx context.Context, records []model.EngagementRecord) ([]model.ResolvedClaim, Stats) {
	stats := Stats{Records: len(records)}

	candidates := e.extractor.ExtractAll(records)
	stats.Candidates = len(candidates)

	unique := extract.DedupeByAuthor(candidates)
	stats.AuthorDuplicates = len(candidates) - len(unique)

	resolved, resolveStats := e.resolver.ResolveAll(ctx, unique)
	stats.Resolve = resolveStats

	claims := extract.DedupeByAddress(resolved)
	stats.AddressDuplicates = len(resolved) - len(claims)
	stats.Claims = len(claims)

	e.logger.Info("Eligibility complete",
		zap.Int("records", stats.Records),
		zap.Int("candidates", stats.Candidates),
		zap.Int("author_duplicates", stats.AuthorDuplicates),
		zap.Int("resolved", resolveStats.Resolved),
		zap.Int("unresolved", resolveStats.Unresolved),
		zap.Int("invalid", resolveStats.Invalid),
		zap.Int("failed", resolveStats.Failed),
		zap.Int("address_duplicates", stats.AddressDuplicates),
		zap.Int("claims", stats.Claims))

	return claims, stats
}
