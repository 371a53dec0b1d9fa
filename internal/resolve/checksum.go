package resolve

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrNotHexAddress is returned for tokens that are not 20 hex-encoded bytes
	ErrNotHexAddress = errors.New("not a hex address")
	// ErrBadChecksum is returned for mixed-case tokens whose casing is not the EIP-55 checksum
	ErrBadChecksum = errors.New("address checksum mismatch")
)

// ChecksumAddress validates a raw address token. All-lower and all-upper
// hex are accepted; mixed case must already be the EIP-55 checksum.
func ChecksumAddress(token string) (common.Address, error) {
	if !common.IsHexAddress(token) {
		return common.Address{}, ErrNotHexAddress
	}

	addr := common.HexToAddress(token)

	body := token
	if len(body) == 42 {
		body = body[2:]
	}
	if isMixedCase(body) && addr.Hex()[2:] != body {
		return common.Address{}, ErrBadChecksum
	}

	return addr, nil
}

func isMixedCase(s string) bool {
	return strings.ToLower(s) != s && strings.ToUpper(s) != s
}
