package claims

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gowebpki/jcs"
	"github.com/ppiankov/claimroot/internal/merkle"
	"github.com/ppiankov/claimroot/internal/model"
)

// ErrTreeMismatch is returned when the claims do not match the tree leaves
var ErrTreeMismatch = errors.New("claims do not match tree")

// ClaimProof is what one account needs to claim on chain
type ClaimProof struct {
	Index  uint64   `json:"index"`
	Amount string   `json:"amount"`
	Proof  []string `json:"proof"`
}

// ClaimSet is the published artifact, keyed by checksum address
type ClaimSet struct {
	MerkleRoot string                `json:"merkleRoot"`
	Claims     map[string]ClaimProof `json:"claims"`
}

// Export attaches a proof to every claim and bundles them with the root
func Export(tree *merkle.Tree, indexed []model.IndexedClaim) (*ClaimSet, error) {
	if len(indexed) == 0 {
		return nil, ErrNoClaims
	}
	if tree.Len() != len(indexed) {
		return nil, fmt.Errorf("%d claims for %d leaves: %w", len(indexed), tree.Len(), ErrTreeMismatch)
	}

	set := &ClaimSet{
		MerkleRoot: tree.Root().Hex(),
		Claims:     make(map[string]ClaimProof, len(indexed)),
	}

	for _, c := range indexed {
		idx := int(c.Index)
		leaf, err := merkle.LeafHash(c)
		if err != nil {
			return nil, err
		}
		if treeLeaf, err := tree.Leaf(idx); err != nil || treeLeaf != leaf {
			return nil, fmt.Errorf("claim %d (%s): %w", c.Index, c.Address.Hex(), ErrTreeMismatch)
		}

		proof, err := tree.Proof(idx)
		if err != nil {
			return nil, err
		}

		key := c.Address.Hex()
		if _, dup := set.Claims[key]; dup {
			return nil, fmt.Errorf("duplicate address %s", key)
		}
		set.Claims[key] = ClaimProof{
			Index:  c.Index,
			Amount: AmountHex(c.Amount),
			Proof:  hashesToHex(proof),
		}
	}

	return set, nil
}

func hashesToHex(hashes []common.Hash) []string {
	out := make([]string, len(hashes))
	for i, h := range hashes {
		out[i] = h.Hex()
	}
	return out
}

// MarshalCanonical encodes the set as RFC 8785 canonical JSON, so the
// same claims always produce the same bytes
func (s *ClaimSet) MarshalCanonical() ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode claim set: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize claim set: %w", err)
	}
	return canonical, nil
}

// ParseClaimSet validates data against the artifact schema and decodes it
func ParseClaimSet(data []byte) (*ClaimSet, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, err
	}
	var set ClaimSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to decode claim set: %w", err)
	}
	return &set, nil
}
