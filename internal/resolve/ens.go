package resolve

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ppiankov/claimroot/internal/worker"
	"golang.org/x/net/idna"
)

var (
	resolverSelector = crypto.Keccak256([]byte("resolver(bytes32)"))[:4]
	addrSelector     = crypto.Keccak256([]byte("addr(bytes32)"))[:4]

	// UTS-46 non-transitional mapping, as ENS names are normalized before hashing
	nameProfile = idna.New(
		idna.MapForLookup(),
		idna.Transitional(false),
		idna.StrictDomainName(false),
	)
)

// ContractCaller is the read-only slice of an Ethereum client the resolver needs
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ENSResolver resolves names through the ENS registry and the name's resolver contract
type ENSResolver struct {
	caller   ContractCaller
	registry common.Address
	limiter  *worker.Limiter
	endpoint string
	closer   func()
}

// DialENS connects to a JSON-RPC endpoint and returns a resolver using it
func DialENS(ctx context.Context, rpcURL string, registry common.Address, httpClient *http.Client, limiter *worker.Limiter) (*ENSResolver, error) {
	rpcClient, err := rpc.DialOptions(ctx, rpcURL, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	client := ethclient.NewClient(rpcClient)
	r := NewENSResolver(client, registry, limiter, rpcURL)
	r.closer = client.Close
	return r, nil
}

// NewENSResolver builds a resolver over an existing contract caller. The
// limiter may be nil; endpoint keys the limiter bucket.
func NewENSResolver(caller ContractCaller, registry common.Address, limiter *worker.Limiter, endpoint string) *ENSResolver {
	return &ENSResolver{
		caller:   caller,
		registry: registry,
		limiter:  limiter,
		endpoint: endpoint,
	}
}

// Close releases the underlying RPC connection, if the resolver owns one
func (r *ENSResolver) Close() {
	if r.closer != nil {
		r.closer()
	}
}

// ResolveName returns the address record of name. A name that does not
// normalize, has no resolver or has no address record is reported as not found.
func (r *ENSResolver) ResolveName(ctx context.Context, name string) (common.Address, bool, error) {
	normalized, err := NormalizeName(name)
	if err != nil {
		return common.Address{}, false, nil
	}
	node := Namehash(normalized)

	resolver, err := r.callAddress(ctx, r.registry, resolverSelector, node)
	if err != nil {
		return common.Address{}, false, fmt.Errorf("registry lookup for %s: %w", normalized, err)
	}
	if resolver == (common.Address{}) {
		return common.Address{}, false, nil
	}

	addr, err := r.callAddress(ctx, resolver, addrSelector, node)
	if err != nil {
		return common.Address{}, false, fmt.Errorf("addr lookup for %s: %w", normalized, err)
	}
	if addr == (common.Address{}) {
		return common.Address{}, false, nil
	}

	return addr, true, nil
}

// callAddress performs an eth_call of fn(node) and decodes a single address word
func (r *ENSResolver) callAddress(ctx context.Context, to common.Address, selector []byte, node common.Hash) (common.Address, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx, r.endpoint); err != nil {
			return common.Address{}, err
		}
	}

	data := make([]byte, 0, len(selector)+common.HashLength)
	data = append(data, selector...)
	data = append(data, node.Bytes()...)

	out, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return common.Address{}, err
	}
	// Calls to accounts without code return no data
	if len(out) < common.HashLength {
		return common.Address{}, nil
	}

	return common.BytesToAddress(out[common.HashLength-common.AddressLength : common.HashLength]), nil
}

// NormalizeName applies ENS name normalization (UTS-46 mapping, lowercase)
func NormalizeName(name string) (string, error) {
	normalized, err := nameProfile.ToUnicode(strings.TrimSpace(name))
	if err != nil {
		return "", fmt.Errorf("normalize %q: %w", name, err)
	}
	return normalized, nil
}

// Namehash computes the EIP-137 node of a normalized name
func Namehash(name string) common.Hash {
	var node common.Hash
	if name == "" {
		return node
	}

	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := crypto.Keccak256([]byte(labels[i]))
		node = crypto.Keccak256Hash(node.Bytes(), labelHash)
	}
	return node
}
