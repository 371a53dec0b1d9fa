package merkle

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ppiankov/claimroot/internal/model"
)

// ErrAmountRange is returned for amounts that are nil, negative or wider than 256 bits
var ErrAmountRange = errors.New("amount outside uint256 range")

// leafSize is uint256 index + address + uint256 amount, tightly packed
const leafSize = 32 + common.AddressLength + 32

// LeafHash commits to one claim as
// keccak256(abi.encodePacked(uint256 index, address account, uint256 amount)).
func LeafHash(c model.IndexedClaim) (common.Hash, error) {
	if c.Amount == nil || c.Amount.Sign() < 0 || c.Amount.BitLen() > 256 {
		return common.Hash{}, fmt.Errorf("claim %d: %w", c.Index, ErrAmountRange)
	}

	buf := make([]byte, 0, leafSize)
	buf = append(buf, common.LeftPadBytes(new(big.Int).SetUint64(c.Index).Bytes(), 32)...)
	buf = append(buf, c.Address.Bytes()...)
	buf = append(buf, common.LeftPadBytes(c.Amount.Bytes(), 32)...)

	return crypto.Keccak256Hash(buf), nil
}

// Leaves hashes every claim, keeping input order
func Leaves(claims []model.IndexedClaim) ([]common.Hash, error) {
	leaves := make([]common.Hash, len(claims))
	for i, c := range claims {
		h, err := LeafHash(c)
		if err != nil {
			return nil, err
		}
		leaves[i] = h
	}
	return leaves, nil
}
