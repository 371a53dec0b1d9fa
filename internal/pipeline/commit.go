package pipeline

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ppiankov/claimroot/internal/claims"
	"github.com/ppiankov/claimroot/internal/merkle"
	"github.com/ppiankov/claimroot/internal/model"
	"github.com/ppiankov/claimroot/internal/resolve"
)

// Commitment is the result of committing to a claim list
type Commitment struct {
	Root    common.Hash
	Tree    *merkle.Tree
	Indexed []model.IndexedClaim
	Set     *claims.ClaimSet
}

// Commit indexes claims, builds the tree and exports every proof. Nothing
// is returned unless all steps succeed.
func Commit(resolved []model.ResolvedClaim, policy claims.AmountPolicy, pairing merkle.Pairing) (*Commitment, error) {
	indexed, err := claims.Index(resolved, policy)
	if err != nil {
		return nil, fmt.Errorf("index claims: %w", err)
	}

	leaves, err := merkle.Leaves(indexed)
	if err != nil {
		return nil, fmt.Errorf("hash leaves: %w", err)
	}

	tree, err := merkle.Build(leaves, pairing)
	if err != nil {
		return nil, fmt.Errorf("build tree: %w", err)
	}

	set, err := claims.Export(tree, indexed)
	if err != nil {
		return nil, fmt.Errorf("export proofs: %w", err)
	}

	return &Commitment{Root: tree.Root(), Tree: tree, Indexed: indexed, Set: set}, nil
}

// ToEntries renders claims as hand-off entries. amount may be empty.
func ToEntries(resolved []model.ResolvedClaim, amount string) []model.Entry {
	out := make([]model.Entry, len(resolved))
	for i, c := range resolved {
		out[i] = model.Entry{Handle: c.AuthorHandle, Address: c.Address.Hex(), Amount: amount}
	}
	return out
}

// EntryClaims re-validates hand-off entries and turns them into claims
// plus the amount policy they carry. Any malformed entry is an error.
// Uniqueness is re-applied in pipeline order: entries repeating an author
// handle (case-insensitive) keep only the first, then entries repeating an
// address keep only the first. The returned count covers both. Entries
// without an amount fall back to fallback, which may be nil.
func EntryClaims(entries []model.Entry, fallback *big.Int) ([]model.ResolvedClaim, claims.AmountPolicy, int, error) {
	resolved := make([]model.ResolvedClaim, 0, len(entries))
	amounts := make([]*big.Int, 0, len(entries))
	for i, e := range entries {
		addr, err := resolve.ChecksumAddress(e.Address)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("entry %d (@%s): %w", i+1, e.Handle, err)
		}
		var amount *big.Int
		if e.Amount != "" {
			if amount, err = claims.ParseAmount(e.Amount); err != nil {
				return nil, nil, 0, fmt.Errorf("entry %d (@%s): %w", i+1, e.Handle, err)
			}
		}
		resolved = append(resolved, model.ResolvedClaim{AuthorHandle: e.Handle, Address: addr})
		amounts = append(amounts, amount)
	}

	table := &claims.AmountTable{ByAddress: make(map[common.Address]*big.Int), Default: fallback}
	unique := make([]model.ResolvedClaim, 0, len(resolved))
	seenHandle := make(map[string]bool, len(resolved))
	seenAddr := make(map[common.Address]bool, len(resolved))
	for i, c := range resolved {
		// Entries without a handle are only deduplicated by address
		if key := handleKey(c.AuthorHandle); key != "" {
			if seenHandle[key] {
				continue
			}
			seenHandle[key] = true
		}
		if seenAddr[c.Address] {
			continue
		}
		seenAddr[c.Address] = true

		unique = append(unique, c)
		if amounts[i] != nil {
			table.ByAddress[c.Address] = amounts[i]
		}
	}

	return unique, table, len(resolved) - len(unique), nil
}

func handleKey(handle string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
}

// CompileEntries fills in every entry's amount from policy, keeping order.
// Addresses are re-validated and written checksum-cased.
func CompileEntries(entries []model.Entry, policy claims.AmountPolicy) ([]model.Entry, error) {
	out := make([]model.Entry, len(entries))
	for i, e := range entries {
		addr, err := resolve.ChecksumAddress(e.Address)
		if err != nil {
			return nil, fmt.Errorf("entry %d (@%s): %w", i+1, e.Handle, err)
		}
		amount, err := policy.AmountFor(model.ResolvedClaim{AuthorHandle: e.Handle, Address: addr})
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i+1, err)
		}
		out[i] = model.Entry{Handle: e.Handle, Address: addr.Hex(), Amount: amount.String()}
	}
	return out, nil
}

// NewAmountPolicy builds the configured amount policy. The per-claim amount
// is also returned as the fallback for entries that carry none.
func NewAmountPolicy(cfg model.AmountConfig) (claims.AmountPolicy, *big.Int, error) {
	perClaim, err := claims.ParseAmount(cfg.PerClaim)
	if err != nil {
		return nil, nil, fmt.Errorf("amount.per_claim: %w", err)
	}

	if cfg.TableFile == "" {
		return claims.ConstantAmount(perClaim), perClaim, nil
	}

	table, err := claims.LoadAmountTable(cfg.TableFile, perClaim)
	if err != nil {
		return nil, nil, err
	}
	return table, perClaim, nil
}
