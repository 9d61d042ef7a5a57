// Package memdb is the reference in-memory storage backend: a keyed table
// per collection with query evaluation, per-key modification timestamps
// and change notification feeding asynchronous sequences.
//
// Query evaluation filters, sorts and limits the full item set on every
// call. No persistent index is kept; the backend is meant for tests,
// caches and small working sets, not as a primary store.
package memdb

import (
	"time"

	"github.com/dhoulb/shelving/item"
)

// queryWatch is a registered live query: its key gets a timestamp bump
// whenever a mutated item matches it. Refcounted by open cached sequences.
type queryWatch struct {
	query item.Query
	count int
}

// Table holds the items of one collection.
type Table struct {
	name string
	db   *Provider

	// The fields below are guarded by db.mu so that mutation, timestamp
	// bookkeeping and the change broadcast stay atomic.
	items   map[string]*item.Item
	times   map[string]time.Time
	watches map[string]*queryWatch
	changed *signal
}

func newTable(name string, db *Provider) *Table {
	return &Table{
		name:    name,
		db:      db,
		items:   map[string]*item.Item{},
		times:   map[string]time.Time{},
		watches: map[string]*queryWatch{},
		changed: newSignal(),
	}
}

// bump records a mutation of the given id under the table lock: the item's
// timestamp and the timestamp of every watched query the item matched
// before or matches after. Must be followed by a broadcast before the lock
// is released.
func (t *Table) bump(id string, prev, next *item.Item) {
	now := t.db.now()
	t.times[id] = now
	for key, w := range t.watches {
		if t.matchesWatch(w.query, prev) || t.matchesWatch(w.query, next) {
			t.times[key] = now
		}
	}
}

// matchesWatch is a conservative match: evaluation errors count as a
// match so a broken where expression wakes its watchers instead of
// silently starving them.
func (t *Table) matchesWatch(q item.Query, i *item.Item) bool {
	if i == nil {
		return false
	}
	ok, err := q.Match(i)
	return ok || err != nil
}

// get returns the stored item without copying. Callers treat items as
// immutable, so handing out the stored value is the round-trip guarantee.
func (t *Table) get(id string) *item.Item {
	return t.items[id]
}

// set stores the item under id, bumping timestamps and signalling.
func (t *Table) set(id string, data map[string]any) {
	prev := t.items[id]
	next := item.New(id, data)
	t.items[id] = next
	t.bump(id, prev, next)
	t.changed.broadcast()
}

// add stores data under a fresh id. Candidate ids that collide with an
// existing item are regenerated until a free one is found, which keeps
// ids unique without coordination even under a degenerate generator.
func (t *Table) add(data map[string]any) string {
	var id string
	for {
		id = t.db.newID()
		if _, occupied := t.items[id]; !occupied {
			break
		}
	}
	t.set(id, data)
	return id
}

// update merges updates into an existing item. Missing items are a no-op,
// never an error.
func (t *Table) update(id string, updates map[string]any) {
	prev := t.items[id]
	if prev == nil {
		return
	}
	next := prev.Merge(updates)
	t.items[id] = next
	t.bump(id, prev, next)
	t.changed.broadcast()
}

// delete removes an item. Missing items are a no-op.
func (t *Table) delete(id string) {
	prev := t.items[id]
	if prev == nil {
		return
	}
	delete(t.items, id)
	t.bump(id, prev, nil)
	t.changed.broadcast()
}

// snapshot returns all items in unspecified order.
func (t *Table) snapshot() []*item.Item {
	out := make([]*item.Item, 0, len(t.items))
	for _, i := range t.items {
		out = append(out, i)
	}
	return out
}

// query evaluates the full pipeline against the current items.
func (t *Table) query(q item.Query) ([]*item.Item, error) {
	return q.Apply(t.snapshot())
}

// setQuery overwrites the data of every item matching the query's filters.
// Limit and cursor are ignored so a stale page bound cannot narrow a bulk
// write. Returns the number of items written.
func (t *Table) setQuery(q item.Query, data map[string]any) (int, error) {
	ids, err := t.matchingIDs(q)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		prev := t.items[id]
		next := item.New(id, data)
		t.items[id] = next
		t.bump(id, prev, next)
	}
	if len(ids) > 0 {
		t.changed.broadcast()
	}
	return len(ids), nil
}

func (t *Table) updateQuery(q item.Query, updates map[string]any) (int, error) {
	ids, err := t.matchingIDs(q)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		prev := t.items[id]
		next := prev.Merge(updates)
		t.items[id] = next
		t.bump(id, prev, next)
	}
	if len(ids) > 0 {
		t.changed.broadcast()
	}
	return len(ids), nil
}

func (t *Table) deleteQuery(q item.Query) (int, error) {
	ids, err := t.matchingIDs(q)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		prev := t.items[id]
		delete(t.items, id)
		t.bump(id, prev, nil)
	}
	if len(ids) > 0 {
		t.changed.broadcast()
	}
	return len(ids), nil
}

func (t *Table) matchingIDs(q item.Query) ([]string, error) {
	var ids []string
	for id, i := range t.items {
		ok, err := q.Match(i)
		if err != nil {
			return nil, err
		}
		if ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// replaceAll swaps the whole item set, bumping only the ids whose value
// actually changed. Used by file-backed providers reloading from disk;
// an unchanged reload produces no notifications at all.
func (t *Table) replaceAll(items []*item.Item) {
	next := make(map[string]*item.Item, len(items))
	for _, i := range items {
		next[i.ID] = i
	}
	dirty := false
	for id, prev := range t.items {
		if _, still := next[id]; !still {
			t.bump(id, prev, nil)
			dirty = true
		}
	}
	for id, n := range next {
		prev := t.items[id]
		if !item.Equal(prev, n) {
			t.bump(id, prev, n)
			dirty = true
		}
	}
	t.items = next
	if dirty {
		t.changed.broadcast()
	}
}

// watchQuery registers a live query for timestamp maintenance, returning
// its canonical key. Paired with unwatchQuery.
func (t *Table) watchQuery(q item.Query) string {
	key := q.Key()
	w := t.watches[key]
	if w == nil {
		w = &queryWatch{query: q}
		t.watches[key] = w
		t.times[key] = t.db.now()
	}
	w.count++
	return key
}

func (t *Table) unwatchQuery(key string) {
	if w := t.watches[key]; w != nil {
		w.count--
		if w.count <= 0 {
			delete(t.watches, key)
			delete(t.times, key)
		}
	}
}

// Time exposes the modification timestamp of an item id or query key for
// consumers that trust "timestamp changed means value changed". The zero
// time means the key was never touched.
func (t *Table) Time(key string) time.Time {
	t.db.mu.RLock()
	defer t.db.mu.RUnlock()
	return t.times[key]
}
