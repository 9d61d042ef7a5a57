package state

import (
	"context"
	"sync"
	"time"

	"github.com/dhoulb/shelving/item"
	"github.com/dhoulb/shelving/provider"
)

// Cache is the registry of per-reference state entries. It is an explicit,
// constructor-injected object (never package-level) so lifecycle and tests
// stay deterministic. At most one live entry exists per canonical
// reference string; a closed entry is replaced on next access, never
// reused.
type Cache struct {
	mu      sync.Mutex
	docs    map[string]*DocumentState
	queries map[string]*QueryState

	provider provider.Provider
	now      func() time.Time
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithCacheClock replaces the timestamp source of new entries, for tests.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a cache registry fetching through the given provider.
func NewCache(p provider.Provider, opts ...CacheOption) *Cache {
	c := &Cache{
		docs:     map[string]*DocumentState{},
		queries:  map[string]*QueryState{},
		provider: p,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Document returns the cache entry for the reference, creating it in the
// loading shape and immediately scheduling a refresh when absent.
func (c *Cache) Document(ref item.DocumentRef) *DocumentState {
	s, created := c.document(ref)
	if created {
		go func() { _ = s.Refresh(context.Background()) }()
	}
	return s
}

// document returns the entry without scheduling, reporting whether it was
// created. The write-through provider uses this path to push observed
// values without triggering a second fetch.
func (c *Cache) document(ref item.DocumentRef) (*DocumentState, bool) {
	key := ref.String()
	c.mu.Lock()
	defer c.mu.Unlock()
	if s := c.docs[key]; s != nil && !s.Closed() {
		return s, false
	}
	s := newDocumentState(ref, c.provider, c.now)
	c.docs[key] = s
	return s, true
}

// Query returns the cache entry for the query reference, creating it and
// scheduling a refresh when absent.
func (c *Cache) Query(ref item.QueryRef) *QueryState {
	s, created := c.query(ref)
	if created {
		go func() { _ = s.Refresh(context.Background()) }()
	}
	return s
}

func (c *Cache) query(ref item.QueryRef) (*QueryState, bool) {
	key := ref.String()
	c.mu.Lock()
	defer c.mu.Unlock()
	if s := c.queries[key]; s != nil && !s.Closed() {
		return s, false
	}
	s := newQueryState(ref, c.provider, c.now)
	c.queries[key] = s
	return s, true
}

// RefreshStale refreshes every entry whose value is older than maxAge.
func (c *Cache) RefreshStale(ctx context.Context, maxAge time.Duration) {
	c.mu.Lock()
	docs := make([]*DocumentState, 0, len(c.docs))
	for _, s := range c.docs {
		docs = append(docs, s)
	}
	queries := make([]*QueryState, 0, len(c.queries))
	for _, s := range c.queries {
		queries = append(queries, s)
	}
	c.mu.Unlock()

	for _, s := range docs {
		if !s.Closed() {
			_ = s.RefreshStale(ctx, maxAge)
		}
	}
	for _, s := range queries {
		if !s.Closed() {
			_ = s.RefreshStale(ctx, maxAge)
		}
	}
}

// Poll runs RefreshStale on the given interval until ctx is cancelled,
// the pull-based counterpart of live subscriptions.
func (c *Cache) Poll(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RefreshStale(ctx, maxAge)
		}
	}
}

// Close closes every entry and empties the registry.
func (c *Cache) Close() {
	c.mu.Lock()
	docs, queries := c.docs, c.queries
	c.docs = map[string]*DocumentState{}
	c.queries = map[string]*QueryState{}
	c.mu.Unlock()
	for _, s := range docs {
		s.live.terminate()
		s.Close()
	}
	for _, s := range queries {
		s.live.terminate()
		s.Close()
	}
}
