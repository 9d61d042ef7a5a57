package memdb

import (
	"context"
	"sync"
	"time"

	"github.com/maruel/ksid"

	"github.com/dhoulb/shelving/item"
	"github.com/dhoulb/shelving/provider"
)

// Provider is the in-memory storage backend, one Table per collection.
// All table mutation, timestamp bookkeeping and change signalling happen
// under one lock so check-then-signal is atomic under real parallelism.
type Provider struct {
	mu     sync.RWMutex
	tables map[string]*Table
	closed bool

	now   func() time.Time
	newID func() string
}

// Option configures a Provider.
type Option func(*Provider)

// WithClock replaces the timestamp source, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// WithIDSource replaces the candidate id generator for AddItem. The
// default generates time-sortable ksid strings; tests inject colliding
// generators to exercise the retry loop.
func WithIDSource(newID func() string) Option {
	return func(p *Provider) { p.newID = newID }
}

// New creates an empty in-memory provider.
func New(opts ...Option) *Provider {
	p := &Provider{
		tables: map[string]*Table{},
		now:    time.Now,
		newID:  func() string { return ksid.NewID().String() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Close discards the provider. Every open sequence terminates and every
// further operation fails with a closed error.
func (p *Provider) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	tables := make([]*Table, 0, len(p.tables))
	for _, t := range p.tables {
		tables = append(tables, t)
	}
	p.mu.Unlock()
	for _, t := range tables {
		t.changed.broadcast()
	}
}

// Table returns the named collection's table, creating it if needed.
func (p *Provider) Table(collection string) *Table {
	p.mu.RLock()
	t := p.tables[collection]
	p.mu.RUnlock()
	if t != nil {
		return t
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if t = p.tables[collection]; t == nil {
		t = newTable(collection, p)
		p.tables[collection] = t
	}
	return t
}

func (p *Provider) GetItem(_ context.Context, collection, id string) (*item.Item, error) {
	t := p.Table(collection)
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, provider.Closed("memory provider")
	}
	return t.get(id), nil
}

func (p *Provider) AddItem(_ context.Context, collection string, data map[string]any) (string, error) {
	t := p.Table(collection)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", provider.Closed("memory provider")
	}
	return t.add(data), nil
}

func (p *Provider) SetItem(_ context.Context, collection, id string, data map[string]any) error {
	t := p.Table(collection)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return provider.Closed("memory provider")
	}
	t.set(id, data)
	return nil
}

func (p *Provider) UpdateItem(_ context.Context, collection, id string, updates map[string]any) error {
	t := p.Table(collection)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return provider.Closed("memory provider")
	}
	t.update(id, updates)
	return nil
}

func (p *Provider) DeleteItem(_ context.Context, collection, id string) error {
	t := p.Table(collection)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return provider.Closed("memory provider")
	}
	t.delete(id)
	return nil
}

func (p *Provider) GetQuery(_ context.Context, collection string, q item.Query) ([]*item.Item, error) {
	t := p.Table(collection)
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, provider.Closed("memory provider")
	}
	return t.query(q)
}

func (p *Provider) SetQuery(_ context.Context, collection string, q item.Query, data map[string]any) (int, error) {
	t := p.Table(collection)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, provider.Closed("memory provider")
	}
	return t.setQuery(q, data)
}

func (p *Provider) UpdateQuery(_ context.Context, collection string, q item.Query, updates map[string]any) (int, error) {
	t := p.Table(collection)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, provider.Closed("memory provider")
	}
	return t.updateQuery(q, updates)
}

func (p *Provider) DeleteQuery(_ context.Context, collection string, q item.Query) (int, error) {
	t := p.Table(collection)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, provider.Closed("memory provider")
	}
	return t.deleteQuery(q)
}

// ReplaceAll swaps a collection's whole item set, notifying only for ids
// whose value changed. File-backed providers use it to apply reloads.
func (p *Provider) ReplaceAll(collection string, items []*item.Item) error {
	t := p.Table(collection)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return provider.Closed("memory provider")
	}
	t.replaceAll(items)
	return nil
}

// Snapshot returns all items of a collection in unspecified order.
func (p *Provider) Snapshot(collection string) []*item.Item {
	t := p.Table(collection)
	p.mu.RLock()
	defer p.mu.RUnlock()
	return t.snapshot()
}

// Collections returns the names of all known collections.
func (p *Provider) Collections() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.tables))
	for name := range p.tables {
		names = append(names, name)
	}
	return names
}
