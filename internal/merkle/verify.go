package merkle

import "github.com/ethereum/go-ethereum/common"

// Verify checks a sorted-pairing proof the way OpenZeppelin's
// MerkleProof.verify does. No index is needed.
func Verify(proof []common.Hash, root, leaf common.Hash) bool {
	node := leaf
	for _, sibling := range proof {
		node = hashPair(node, sibling, PairingSorted)
	}
	return node == root
}

// VerifyPositional checks a positional-pairing proof. The leaf index and
// the leaf count are needed to know each node's side and which levels
// promoted it.
func VerifyPositional(proof []common.Hash, root, leaf common.Hash, index, leafCount int) bool {
	if index < 0 || index >= leafCount {
		return false
	}

	node := leaf
	used := 0
	for width := leafCount; width > 1; width = (width + 1) / 2 {
		if index^1 < width {
			if used == len(proof) {
				return false
			}
			if index%2 == 0 {
				node = hashPair(node, proof[used], PairingPositional)
			} else {
				node = hashPair(proof[used], node, PairingPositional)
			}
			used++
		}
		index /= 2
	}

	return used == len(proof) && node == root
}

// VerifyProof dispatches on pairing
func VerifyProof(pairing Pairing, proof []common.Hash, root, leaf common.Hash, index, leafCount int) bool {
	if pairing == PairingPositional {
		return VerifyPositional(proof, root, leaf, index, leafCount)
	}
	return Verify(proof, root, leaf)
}
