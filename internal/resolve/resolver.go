package resolve

import (
	"context"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ppiankov/claimroot/internal/model"
	"github.com/ppiankov/claimroot/internal/worker"
	"go.uber.org/zap"
)

// NameResolver maps a naming-service name to an address. found is false
// when the name has no address; err is reserved for lookup failures.
type NameResolver interface {
	ResolveName(ctx context.Context, name string) (addr common.Address, found bool, err error)
}

// Status is the result class of resolving one candidate
type Status int

const (
	StatusResolved   Status = iota // Candidate produced a claim
	StatusUnresolved               // Name has no address, or no name resolver is configured
	StatusInvalid                  // Token is not a checksum-valid address
	StatusFailed                   // Lookup errored, timed out or was cancelled
)

func (s Status) String() string {
	switch s {
	case StatusResolved:
		return "resolved"
	case StatusUnresolved:
		return "unresolved"
	case StatusInvalid:
		return "invalid"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the explicit result of resolving one candidate
type Outcome struct {
	Candidate model.Candidate
	Status    Status
	Claim     model.ResolvedClaim // Set only when Status is StatusResolved
	Err       error
}

// GetError lets an Outcome travel through a worker.Pool
func (o *Outcome) GetError() error {
	return o.Err
}

// Stats counts outcomes by status
type Stats struct {
	Candidates int `json:"candidates"`
	Resolved   int `json:"resolved"`
	Unresolved int `json:"unresolved"`
	Invalid    int `json:"invalid"`
	Failed     int `json:"failed"`
}

// Dropped is the number of candidates that produced no claim
func (s Stats) Dropped() int {
	return s.Unresolved + s.Invalid + s.Failed
}

func (s *Stats) add(status Status) {
	s.Candidates++
	switch status {
	case StatusResolved:
		s.Resolved++
	case StatusUnresolved:
		s.Unresolved++
	case StatusInvalid:
		s.Invalid++
	default:
		s.Failed++
	}
}

// Resolver turns candidates into claims
type Resolver struct {
	names   NameResolver
	suffix  string
	timeout time.Duration
	workers int
	logger  *zap.Logger
}

// Option configures a Resolver
type Option func(*Resolver)

// WithSuffix sets the naming-service suffix (default ".eth")
func WithSuffix(suffix string) Option {
	return func(r *Resolver) {
		if suffix == "" {
			return
		}
		if !strings.HasPrefix(suffix, ".") {
			suffix = "." + suffix
		}
		r.suffix = strings.ToLower(suffix)
	}
}

// WithTimeout bounds each name lookup
func WithTimeout(timeout time.Duration) Option {
	return func(r *Resolver) { r.timeout = timeout }
}

// WithWorkers sets how many lookups run at once
func WithWorkers(workers int) Option {
	return func(r *Resolver) { r.workers = workers }
}

// WithLogger sets the logger used for per-candidate debug output
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Resolver. names may be nil, in which case name tokens are
// never resolved and only raw addresses survive.
func New(names NameResolver, opts ...Option) *Resolver {
	r := &Resolver{
		names:   names,
		suffix:  ".eth",
		timeout: 15 * time.Second,
		workers: 8,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve classifies one candidate. It never returns an error; failures
// are carried in the Outcome.
func (r *Resolver) Resolve(ctx context.Context, candidate model.Candidate) Outcome {
	outcome := Outcome{Candidate: candidate}
	lower := strings.ToLower(candidate.Token)

	if strings.Contains(lower, r.suffix) {
		if r.names == nil {
			outcome.Status = StatusUnresolved
			return outcome
		}

		callCtx := ctx
		if r.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}

		addr, found, err := r.names.ResolveName(callCtx, lower)
		switch {
		case err != nil:
			outcome.Status = StatusFailed
			outcome.Err = err
		case !found || addr == (common.Address{}):
			outcome.Status = StatusUnresolved
		default:
			outcome.Status = StatusResolved
			outcome.Claim = model.ResolvedClaim{AuthorHandle: candidate.AuthorHandle, Address: addr}
		}
		return outcome
	}

	addr, err := ChecksumAddress(candidate.Token)
	if err != nil {
		outcome.Status = StatusInvalid
		outcome.Err = err
		return outcome
	}

	outcome.Status = StatusResolved
	outcome.Claim = model.ResolvedClaim{AuthorHandle: candidate.AuthorHandle, Address: addr}
	return outcome
}

// resolveJob adapts one candidate to the worker pool
type resolveJob struct {
	resolver  *Resolver
	candidate model.Candidate
}

func (j *resolveJob) Execute(ctx context.Context) worker.Result {
	outcome := j.resolver.Resolve(ctx, j.candidate)
	return &outcome
}

// ResolveAll resolves candidates concurrently and returns the survivors in
// input order, together with per-status counts.
func (r *Resolver) ResolveAll(ctx context.Context, candidates []model.Candidate) ([]model.ResolvedClaim, Stats) {
	outcomes := r.Outcomes(ctx, candidates)

	var stats Stats
	claims := make([]model.ResolvedClaim, 0, len(outcomes))
	for _, o := range outcomes {
		stats.add(o.Status)
		if o.Status == StatusResolved {
			claims = append(claims, o.Claim)
			continue
		}
		r.logger.Debug("Dropped candidate",
			zap.String("author", o.Candidate.AuthorHandle),
			zap.String("token", o.Candidate.Token),
			zap.Stringer("status", o.Status),
			zap.Error(o.Err))
	}

	return claims, stats
}

// Outcomes resolves every candidate and returns one Outcome per input
// position. Work that never ran because ctx ended is reported as failed.
func (r *Resolver) Outcomes(ctx context.Context, candidates []model.Candidate) []Outcome {
	outcomes := make([]Outcome, len(candidates))
	if len(candidates) == 0 {
		return outcomes
	}

	pool := worker.NewPool(ctx, r.workers)
	pool.Start()

	for _, c := range candidates {
		if !pool.Submit(&resolveJob{resolver: r, candidate: c}) {
			// ctx ended; stop in-flight lookups rather than wait them out
			pool.Shutdown()
			break
		}
	}

	slots := pool.Wait()
	for i, c := range candidates {
		if i < len(slots) && slots[i] != nil {
			outcomes[i] = *slots[i].(*Outcome)
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		outcomes[i] = Outcome{Candidate: c, Status: StatusFailed, Err: err}
	}

	return outcomes
}
