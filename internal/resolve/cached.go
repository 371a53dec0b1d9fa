package resolve

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ppiankov/claimroot/internal/cache"
)

const cacheNamespace = "ens"

// CachedResolver remembers lookups, including names that had no address.
// Lookup errors are never cached.
type CachedResolver struct {
	next  NameResolver
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedResolver wraps next with c
func NewCachedResolver(next NameResolver, c cache.Cache, ttl time.Duration) *CachedResolver {
	return &CachedResolver{next: next, cache: c, ttl: ttl}
}

// ResolveName serves from cache or delegates and records the answer
func (r *CachedResolver) ResolveName(ctx context.Context, name string) (common.Address, bool, error) {
	key := cache.Key(cacheNamespace, name)

	if val, ok := r.cache.Get(key); ok {
		switch len(val) {
		case 0:
			return common.Address{}, false, nil
		case common.AddressLength:
			return common.BytesToAddress(val), true, nil
		}
		// Anything else is a corrupt entry; fall through and refresh it
	}

	addr, found, err := r.next.ResolveName(ctx, name)
	if err != nil {
		return common.Address{}, false, err
	}

	val := []byte{}
	if found {
		val = addr.Bytes()
	}
	_ = r.cache.Set(key, val, r.ttl)

	return addr, found, nil
}

// Forget drops the cached answers for names so the next run looks them up
// again. Names are matched case-insensitively, as lookups are.
func Forget(c cache.Cache, names ...string) error {
	var errs []error
	for _, name := range names {
		key := cache.Key(cacheNamespace, strings.ToLower(strings.TrimSpace(name)))
		errs = append(errs, c.Delete(key))
	}
	return errors.Join(errs...)
}
