package claims

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ppiankov/claimroot/internal/model"
	"gopkg.in/yaml.v3"
)

var (
	// ErrNoAmount is returned when a policy has no amount for a claim
	ErrNoAmount = errors.New("no amount for claim")
	// ErrBadAmount is returned for amounts that are not unsigned 256-bit integers
	ErrBadAmount = errors.New("amount is not a uint256")
)

// AmountPolicy decides how much each claim receives, in base units
type AmountPolicy interface {
	AmountFor(claim model.ResolvedClaim) (*big.Int, error)
}

type constantAmount struct {
	amount *big.Int
}

// ConstantAmount gives every claim the same amount
func ConstantAmount(amount *big.Int) AmountPolicy {
	return constantAmount{amount: new(big.Int).Set(amount)}
}

func (c constantAmount) AmountFor(model.ResolvedClaim) (*big.Int, error) {
	return new(big.Int).Set(c.amount), nil
}

// AmountTable looks amounts up by address, then by handle, then falls
// back to Default. Handles are compared case-insensitively.
type AmountTable struct {
	ByAddress map[common.Address]*big.Int
	ByHandle  map[string]*big.Int
	Default   *big.Int
}

// AmountFor implements AmountPolicy
func (t *AmountTable) AmountFor(claim model.ResolvedClaim) (*big.Int, error) {
	if a, ok := t.ByAddress[claim.Address]; ok {
		return new(big.Int).Set(a), nil
	}
	if a, ok := t.ByHandle[strings.ToLower(claim.AuthorHandle)]; ok {
		return new(big.Int).Set(a), nil
	}
	if t.Default != nil {
		return new(big.Int).Set(t.Default), nil
	}
	return nil, fmt.Errorf("%s (@%s): %w", claim.Address.Hex(), claim.AuthorHandle, ErrNoAmount)
}

// amountTableFile is the YAML layout of an amount table
type amountTableFile struct {
	Default   string            `yaml:"default"`
	Addresses map[string]string `yaml:"addresses"`
	Handles   map[string]string `yaml:"handles"`
}

// LoadAmountTable reads a YAML amount table. fallback is used as the
// default when the file does not name one; it may be nil.
func LoadAmountTable(path string, fallback *big.Int) (*AmountTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read amount table: %w", err)
	}
	return ParseAmountTable(data, fallback)
}

// ParseAmountTable decodes the YAML form of an amount table
func ParseAmountTable(data []byte, fallback *big.Int) (*AmountTable, error) {
	var raw amountTableFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse amount table: %w", err)
	}

	table := &AmountTable{
		ByAddress: make(map[common.Address]*big.Int, len(raw.Addresses)),
		ByHandle:  make(map[string]*big.Int, len(raw.Handles)),
		Default:   fallback,
	}

	if raw.Default != "" {
		d, err := ParseAmount(raw.Default)
		if err != nil {
			return nil, fmt.Errorf("default: %w", err)
		}
		table.Default = d
	}

	for addr, s := range raw.Addresses {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("amount table address %q is not a hex address", addr)
		}
		a, err := ParseAmount(s)
		if err != nil {
			return nil, fmt.Errorf("address %s: %w", addr, err)
		}
		table.ByAddress[common.HexToAddress(addr)] = a
	}

	for handle, s := range raw.Handles {
		a, err := ParseAmount(s)
		if err != nil {
			return nil, fmt.Errorf("handle %s: %w", handle, err)
		}
		table.ByHandle[strings.ToLower(strings.TrimPrefix(handle, "@"))] = a
	}

	return table, nil
}

// ParseAmount reads a base-unit amount written in decimal or 0x-hex
func ParseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount: %w", ErrBadAmount)
	}

	base, digits := 10, s
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base, digits = 16, s[2:]
	}

	a, ok := new(big.Int).SetString(digits, base)
	if !ok || digits == "" || strings.HasPrefix(digits, "-") || strings.HasPrefix(digits, "+") {
		return nil, fmt.Errorf("%q: %w", s, ErrBadAmount)
	}
	if err := checkAmount(a); err != nil {
		return nil, fmt.Errorf("%q: %w", s, err)
	}
	return a, nil
}

func checkAmount(a *big.Int) error {
	if a == nil || a.Sign() < 0 || a.BitLen() > 256 {
		return ErrBadAmount
	}
	return nil
}

// AmountHex renders an amount as whole lowercase bytes, 10 -> 0x0a, 0 -> 0x00
func AmountHex(a *big.Int) string {
	b := a.Bytes()
	if len(b) == 0 {
		return "0x00"
	}
	return hexutil.Encode(b)
}
