package claims

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ppiankov/claimroot/internal/merkle"
	"github.com/ppiankov/claimroot/internal/model"
	"github.com/ppiankov/claimroot/internal/resolve"
)

// ErrInvalidProof is returned for claims whose proof does not reach the root
var ErrInvalidProof = errors.New("proof does not verify")

// Verify checks that indices form [0, N), every key is a checksum
// address and every proof reaches the root. All problems are reported.
func (s *ClaimSet) Verify(pairing merkle.Pairing) error {
	root, err := hexutil.Decode(s.MerkleRoot)
	if err != nil || len(root) != common.HashLength {
		return fmt.Errorf("bad merkle root %q", s.MerkleRoot)
	}
	rootHash := common.BytesToHash(root)

	n := len(s.Claims)
	seen := make(map[uint64]string, n)
	var errs []error

	// Sorted keys keep the error report stable
	keys := make([]string, 0, n)
	for k := range s.Claims {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		c := s.Claims[key]
		if err := verifyClaim(key, c, rootHash, pairing, n); err != nil {
			errs = append(errs, err)
		}
		if prev, dup := seen[c.Index]; dup {
			errs = append(errs, fmt.Errorf("%s: index %d already used by %s", key, c.Index, prev))
		}
		seen[c.Index] = key
	}

	return errors.Join(errs...)
}

func verifyClaim(key string, c ClaimProof, root common.Hash, pairing merkle.Pairing, n int) error {
	addr, err := resolve.ChecksumAddress(key)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if addr.Hex() != key {
		return fmt.Errorf("%s: key is not checksum-cased", key)
	}
	if c.Index >= uint64(n) {
		return fmt.Errorf("%s: index %d outside [0, %d)", key, c.Index, n)
	}

	amountBytes, err := hexutil.Decode(c.Amount)
	if err != nil {
		return fmt.Errorf("%s: amount %q: %w", key, c.Amount, err)
	}

	proof := make([]common.Hash, len(c.Proof))
	for i, p := range c.Proof {
		b, err := hexutil.Decode(p)
		if err != nil || len(b) != common.HashLength {
			return fmt.Errorf("%s: proof element %d is not a 32-byte hash", key, i)
		}
		proof[i] = common.BytesToHash(b)
	}

	leaf, err := merkle.LeafHash(model.IndexedClaim{
		Index:   c.Index,
		Address: addr,
		Amount:  new(big.Int).SetBytes(amountBytes),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}

	if !merkle.VerifyProof(pairing, proof, root, leaf, int(c.Index), n) {
		return fmt.Errorf("%s (index %d): %w", key, c.Index, ErrInvalidProof)
	}
	return nil
}
