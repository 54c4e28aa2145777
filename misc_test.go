package flowpager

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// tUsersBackend serves pages of "User N" strings addressed by 1-based page
// numbers. Page N holds users (N-1)*size .. N*size-1.
type tUsersBackend struct {
	mu       sync.Mutex
	requests []LoadRequest[int]
	failures map[string]error
	gates    map[LoadDirection]chan struct{}
	// lastPage highest existing page; 0 means unbounded.
	lastPage  int
	cancelled int
}

func newUsersBackend() *tUsersBackend {
	return &tUsersBackend{
		failures: make(map[string]error),
		gates:    make(map[LoadDirection]chan struct{}),
	}
}

func failureKey(direction LoadDirection, key int) string {
	return fmt.Sprintf("%s/%d", direction, key)
}

// failOnce makes the next load of (direction, key) return err.
func (b *tUsersBackend) failOnce(direction LoadDirection, key int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures[failureKey(direction, key)] = err
}

// block holds loads of direction until the returned function is called or the
// load context is cancelled.
func (b *tUsersBackend) block(direction LoadDirection) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	gate := make(chan struct{})
	b.gates[direction] = gate

	return sync.OnceFunc(func() {
		b.mu.Lock()
		delete(b.gates, direction)
		b.mu.Unlock()
		close(gate)
	})
}

func (b *tUsersBackend) Load(ctx context.Context, req LoadRequest[int]) (Page[int, string], error) {
	pageNumber := lo.FromPtrOr(req.Key, 1)

	b.mu.Lock()
	b.requests = append(b.requests, req)
	gate := b.gates[req.Direction]
	err, failing := b.failures[failureKey(req.Direction, pageNumber)]
	delete(b.failures, failureKey(req.Direction, pageNumber))
	b.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			b.mu.Lock()
			b.cancelled++
			b.mu.Unlock()
			return Page[int, string]{}, ctx.Err()
		}
	}

	if failing {
		return Page[int, string]{}, err
	}

	return b.page(pageNumber, req.RequestedSize), nil
}

func (b *tUsersBackend) page(pageNumber, size int) Page[int, string] {
	offset := (pageNumber - 1) * size
	items := make([]string, 0, size)
	for i := offset; i < offset+size; i++ {
		items = append(items, fmt.Sprintf("User %d", i))
	}

	ret := Page[int, string]{Items: items}
	if pageNumber > 1 {
		ret.PrevKey = lo.ToPtr(pageNumber - 1)
	}
	if b.lastPage == 0 || pageNumber < b.lastPage {
		ret.NextKey = lo.ToPtr(pageNumber + 1)
	}

	return ret
}

func (b *tUsersBackend) requestsFor(direction LoadDirection) []LoadRequest[int] {
	b.mu.Lock()
	defer b.mu.Unlock()

	return lo.Filter(b.requests, func(r LoadRequest[int], _ int) bool {
		return r.Direction == direction
	})
}

func (b *tUsersBackend) cancelledCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.cancelled
}

func testConfig() Config {
	return Config{
		PageSize:           20,
		EnablePlaceholders: false,
		MaxRetainedItems:   NoLimit,
		PrefetchDistance:   5,
	}
}

func newTestPager(t *testing.T, loader Loader[int, string], initialKey *int, cfg Config) *Pager[int, string] {
	t.Helper()

	p, err := New(loader, initialKey, cfg, WithLogger[int, string](zaptest.NewLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = p.Close()
	})

	return p
}

// waitSnapshot waits until the latest snapshot satisfies cond and returns it.
func waitSnapshot(t *testing.T, p *Pager[int, string], cond func(Snapshot[string]) bool) Snapshot[string] {
	t.Helper()

	require.Eventually(t, func() bool {
		return cond(p.Snapshot())
	}, 2*time.Second, 5*time.Millisecond)

	return p.Snapshot()
}

func settled(n int) func(Snapshot[string]) bool {
	return func(s Snapshot[string]) bool {
		return s.LoadState.IsIdle() && s.ItemCount() == n
	}
}

func firstItem(item string) func(Snapshot[string]) bool {
	return func(s Snapshot[string]) bool {
		items := s.Items()
		return s.LoadState.IsIdle() && len(items) > 0 && items[0] == item
	}
}
