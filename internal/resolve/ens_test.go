package resolve

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

var (
	testRegistry = common.HexToAddress("0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e")
	testResolver = common.HexToAddress("0x4976fb03C32e5B8cfe2b6cCB31c09Ba78EBaBa41")
	testOwner    = common.HexToAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
)

// fakeChain answers resolver(bytes32) on the registry and addr(bytes32) on resolvers
type fakeChain struct {
	resolvers map[common.Hash]common.Address
	addrs     map[common.Hash]common.Address
	err       error
	calls     int
}

func word(addr common.Address) []byte {
	return common.LeftPadBytes(addr.Bytes(), 32)
}

func (f *fakeChain) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(msg.Data) != 36 {
		return nil, errors.New("unexpected calldata length")
	}
	node := common.BytesToHash(msg.Data[4:])

	switch {
	case *msg.To == testRegistry && bytes.Equal(msg.Data[:4], resolverSelector):
		if r, ok := f.resolvers[node]; ok {
			return word(r), nil
		}
		return word(common.Address{}), nil
	case bytes.Equal(msg.Data[:4], addrSelector):
		if a, ok := f.addrs[node]; ok {
			return word(a), nil
		}
		return word(common.Address{}), nil
	}
	// Account without code
	return nil, nil
}

func TestNamehash_Vectors(t *testing.T) {
	tests := map[string]string{
		"":        "0x0000000000000000000000000000000000000000000000000000000000000000",
		"eth":     "0x93cdeb708b7545dc668eb9280176169d1c33cfd8ed6f04690a0bcc88a93fc4ae",
		"foo.eth": "0xde9b09fd7c5f901e23a3f19fecc54828e9c848539801e86591bd9801b019f84f",
	}

	for name, want := range tests {
		if got := Namehash(name).Hex(); got != want {
			t.Errorf("Namehash(%q) = %s, want %s", name, got, want)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	got, err := NormalizeName("Foo.ETH")
	if err != nil {
		t.Fatalf("NormalizeName failed: %v", err)
	}
	if got != "foo.eth" {
		t.Errorf("expected foo.eth, got %s", got)
	}
}

func TestENSResolver_ResolveName(t *testing.T) {
	node := Namehash("foo.eth")
	chain := &fakeChain{
		resolvers: map[common.Hash]common.Address{node: testResolver},
		addrs:     map[common.Hash]common.Address{node: testOwner},
	}
	r := NewENSResolver(chain, testRegistry, nil, "https://rpc.example.org")

	addr, found, err := r.ResolveName(context.Background(), "Foo.ETH")
	if err != nil {
		t.Fatalf("ResolveName failed: %v", err)
	}
	if !found {
		t.Fatal("expected name to resolve")
	}
	if addr != testOwner {
		t.Errorf("expected %s, got %s", testOwner.Hex(), addr.Hex())
	}
	if chain.calls != 2 {
		t.Errorf("expected registry and resolver calls, got %d", chain.calls)
	}
}

func TestENSResolver_NoResolver(t *testing.T) {
	chain := &fakeChain{}
	r := NewENSResolver(chain, testRegistry, nil, "https://rpc.example.org")

	_, found, err := r.ResolveName(context.Background(), "nobody.eth")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Error("expected unregistered name to be not found")
	}
	if chain.calls != 1 {
		t.Errorf("expected only the registry call, got %d", chain.calls)
	}
}

func TestENSResolver_NoAddressRecord(t *testing.T) {
	node := Namehash("empty.eth")
	chain := &fakeChain{resolvers: map[common.Hash]common.Address{node: testResolver}}
	r := NewENSResolver(chain, testRegistry, nil, "https://rpc.example.org")

	_, found, err := r.ResolveName(context.Background(), "empty.eth")
	if err != nil || found {
		t.Errorf("expected not found without error, got found=%v err=%v", found, err)
	}
}

func TestENSResolver_RPCError(t *testing.T) {
	chain := &fakeChain{err: errors.New("connection refused")}
	r := NewENSResolver(chain, testRegistry, nil, "https://rpc.example.org")

	if _, _, err := r.ResolveName(context.Background(), "foo.eth"); err == nil {
		t.Error("expected RPC failure to surface as an error")
	}
}
