package claims

import (
	"errors"
	"fmt"

	"github.com/ppiankov/claimroot/internal/model"
)

// ErrNoClaims is returned when there is nothing to commit to
var ErrNoClaims = errors.New("no claims to index")

// Index numbers claims by position and attaches the policy amount. The
// result is dense in [0, N) and follows input order. Input is expected
// to be address-deduplicated already.
func Index(resolved []model.ResolvedClaim, policy AmountPolicy) ([]model.IndexedClaim, error) {
	if len(resolved) == 0 {
		return nil, ErrNoClaims
	}
	if policy == nil {
		return nil, fmt.Errorf("no amount policy: %w", ErrNoAmount)
	}

	indexed := make([]model.IndexedClaim, len(resolved))
	for i, c := range resolved {
		amount, err := policy.AmountFor(c)
		if err != nil {
			return nil, fmt.Errorf("claim %d: %w", i, err)
		}
		if err := checkAmount(amount); err != nil {
			return nil, fmt.Errorf("claim %d (%s): %w", i, c.Address.Hex(), err)
		}
		indexed[i] = model.IndexedClaim{
			Index:   uint64(i),
			Address: c.Address,
			Amount:  amount,
		}
	}

	return indexed, nil
}
