package resolve

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ppiankov/claimroot/internal/cache"
)

// countingResolver serves a fixed table and counts lookups
type countingResolver struct {
	table map[string]common.Address
	err   error
	calls int
}

func (c *countingResolver) ResolveName(ctx context.Context, name string) (common.Address, bool, error) {
	c.calls++
	if c.err != nil {
		return common.Address{}, false, c.err
	}
	addr, ok := c.table[name]
	return addr, ok, nil
}

func TestCachedResolver_CachesHitsAndMisses(t *testing.T) {
	owner := common.HexToAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
	next := &countingResolver{table: map[string]common.Address{"foo.eth": owner}}
	r := NewCachedResolver(next, cache.NewMemoryCache(time.Hour, time.Hour), time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		addr, found, err := r.ResolveName(ctx, "foo.eth")
		if err != nil || !found || addr != owner {
			t.Fatalf("lookup %d: got %s found=%v err=%v", i, addr.Hex(), found, err)
		}
		if _, found, _ := r.ResolveName(ctx, "missing.eth"); found {
			t.Fatalf("lookup %d: expected missing.eth to stay unresolved", i)
		}
	}

	if next.calls != 2 {
		t.Errorf("expected 2 upstream lookups, got %d", next.calls)
	}
}

func TestCachedResolver_DoesNotCacheErrors(t *testing.T) {
	next := &countingResolver{err: errors.New("rpc down")}
	r := NewCachedResolver(next, cache.NewMemoryCache(time.Hour, time.Hour), time.Hour)

	for i := 0; i < 2; i++ {
		if _, _, err := r.ResolveName(context.Background(), "foo.eth"); err == nil {
			t.Fatal("expected error")
		}
	}
	if next.calls != 2 {
		t.Errorf("expected every failing lookup to reach upstream, got %d calls", next.calls)
	}
}

func TestForget_DropsOnlyNamedEntries(t *testing.T) {
	owner := common.HexToAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
	next := &countingResolver{table: map[string]common.Address{"foo.eth": owner, "bar.eth": owner}}
	store := cache.NewLayeredCache(time.Hour, t.TempDir(), time.Hour)
	r := NewCachedResolver(next, store, time.Hour)
	ctx := context.Background()

	for _, name := range []string{"foo.eth", "bar.eth"} {
		if _, _, err := r.ResolveName(ctx, name); err != nil {
			t.Fatalf("ResolveName(%s): %v", name, err)
		}
	}

	if err := Forget(store, "FOO.eth"); err != nil {
		t.Fatalf("Forget failed: %v", err)
	}

	for _, name := range []string{"foo.eth", "bar.eth"} {
		if _, _, err := r.ResolveName(ctx, name); err != nil {
			t.Fatalf("ResolveName(%s): %v", name, err)
		}
	}

	// Two initial lookups plus one refresh of the forgotten name
	if next.calls != 3 {
		t.Errorf("expected 3 upstream lookups, got %d", next.calls)
	}
}
