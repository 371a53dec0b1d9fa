package merkle

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrNoLeaves is returned when a tree is built from nothing
	ErrNoLeaves = errors.New("no leaves to commit")
	// ErrIndexOutOfRange is returned for proof requests past the leaf layer
	ErrIndexOutOfRange = errors.New("leaf index out of range")
)

// Pairing decides how two sibling hashes are combined
type Pairing int

const (
	// PairingSorted hashes the smaller sibling first (OpenZeppelin MerkleProof)
	PairingSorted Pairing = iota
	// PairingPositional hashes left then right
	PairingPositional
)

func (p Pairing) String() string {
	switch p {
	case PairingSorted:
		return "sorted"
	case PairingPositional:
		return "positional"
	default:
		return fmt.Sprintf("pairing(%d)", int(p))
	}
}

// ParsePairing reads a pairing mode name. The empty string means sorted.
func ParsePairing(s string) (Pairing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sorted":
		return PairingSorted, nil
	case "positional":
		return PairingPositional, nil
	default:
		return 0, fmt.Errorf("unknown merkle pairing %q (want sorted or positional)", s)
	}
}

// Tree is a binary keccak256 Merkle tree. layers[0] is the leaf layer and
// the last layer holds only the root. An unpaired last node is promoted
// unchanged to the next layer.
type Tree struct {
	layers  [][]common.Hash
	pairing Pairing
}

// Build constructs the tree bottom-up without reordering leaves
func Build(leaves []common.Hash, pairing Pairing) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrNoLeaves
	}

	level := make([]common.Hash, len(leaves))
	copy(level, leaves)

	tree := &Tree{pairing: pairing, layers: [][]common.Hash{level}}
	for len(level) > 1 {
		level = nextLevel(level, pairing)
		tree.layers = append(tree.layers, level)
	}

	return tree, nil
}

func nextLevel(level []common.Hash, pairing Pairing) []common.Hash {
	next := make([]common.Hash, 0, (len(level)+1)/2)
	for i := 0; i < len(level); i += 2 {
		if i+1 == len(level) {
			next = append(next, level[i])
			continue
		}
		next = append(next, hashPair(level[i], level[i+1], pairing))
	}
	return next
}

func hashPair(left, right common.Hash, pairing Pairing) common.Hash {
	if pairing == PairingSorted && bytes.Compare(right[:], left[:]) < 0 {
		left, right = right, left
	}
	return crypto.Keccak256Hash(left[:], right[:])
}

// Root returns the commitment
func (t *Tree) Root() common.Hash {
	top := t.layers[len(t.layers)-1]
	return top[0]
}

// Len is the number of leaves
func (t *Tree) Len() int {
	return len(t.layers[0])
}

// Pairing reports how the tree was built
func (t *Tree) Pairing() Pairing {
	return t.pairing
}

// Leaf returns the leaf at index
func (t *Tree) Leaf(index int) (common.Hash, error) {
	if index < 0 || index >= t.Len() {
		return common.Hash{}, fmt.Errorf("leaf %d of %d: %w", index, t.Len(), ErrIndexOutOfRange)
	}
	return t.layers[0][index], nil
}

// Proof returns the sibling hashes from leaf to root. Levels where the
// node was promoted contribute no element.
func (t *Tree) Proof(index int) ([]common.Hash, error) {
	if index < 0 || index >= t.Len() {
		return nil, fmt.Errorf("leaf %d of %d: %w", index, t.Len(), ErrIndexOutOfRange)
	}

	proof := make([]common.Hash, 0, len(t.layers)-1)
	for _, layer := range t.layers[:len(t.layers)-1] {
		sibling := index ^ 1
		if sibling < len(layer) {
			proof = append(proof, layer[sibling])
		}
		index /= 2
	}
	return proof, nil
}
