package memdb

import (
	"context"
	"time"

	"github.com/dhoulb/shelving/item"
	"github.com/dhoulb/shelving/provider"
)

// ItemSequence emits the item's current value, then again whenever it
// changes by value. Unrelated mutations of the same table wake the
// sequence but are suppressed by the equality check. The channel closes
// when ctx is cancelled or the provider is closed.
func (p *Provider) ItemSequence(ctx context.Context, collection, id string) <-chan provider.ItemEvent {
	t := p.Table(collection)
	ch := make(chan provider.ItemEvent)
	go func() {
		defer close(ch)
		first := true
		var last *item.Item
		for {
			// Arm the wait before reading the snapshot so a mutation
			// landing in between still wakes the next iteration.
			wait := t.changed.wait()
			p.mu.RLock()
			closed := p.closed
			cur := t.get(id)
			p.mu.RUnlock()
			if closed {
				return
			}
			if first || !item.Equal(cur, last) {
				select {
				case ch <- provider.ItemEvent{Item: cur}:
				case <-ctx.Done():
					return
				}
				last, first = cur, false
			}
			select {
			case <-ctx.Done():
				return
			case <-wait:
			}
		}
	}()
	return ch
}

// QuerySequence emits the query's current result set, then again whenever
// the recomputed set differs by element-wise equality. A failing query
// (broken where expression) emits one terminal error event.
func (p *Provider) QuerySequence(ctx context.Context, collection string, q item.Query) <-chan provider.QueryEvent {
	t := p.Table(collection)
	ch := make(chan provider.QueryEvent)
	go func() {
		defer close(ch)
		first := true
		var last []*item.Item
		for {
			wait := t.changed.wait()
			p.mu.RLock()
			closed := p.closed
			cur, err := t.query(q)
			p.mu.RUnlock()
			if closed {
				return
			}
			if err != nil {
				select {
				case ch <- provider.QueryEvent{Err: err}:
				case <-ctx.Done():
				}
				return
			}
			if first || !item.EqualSlices(cur, last) {
				select {
				case ch <- provider.QueryEvent{Items: cur}:
				case <-ctx.Done():
					return
				}
				last, first = cur, false
			}
			select {
			case <-ctx.Done():
				return
			case <-wait:
			}
		}
	}()
	return ch
}

// CachedItemSequence is the cheaper variant of ItemSequence: it emits
// whenever the item's modification timestamp moves, without comparing
// values. For consumers that trust "timestamp changed means value
// changed".
func (p *Provider) CachedItemSequence(ctx context.Context, collection, id string) <-chan provider.ItemEvent {
	t := p.Table(collection)
	ch := make(chan provider.ItemEvent)
	go func() {
		defer close(ch)
		first := true
		var seen time.Time
		for {
			wait := t.changed.wait()
			p.mu.RLock()
			closed := p.closed
			ts := t.times[id]
			cur := t.get(id)
			p.mu.RUnlock()
			if closed {
				return
			}
			if first || !ts.Equal(seen) {
				select {
				case ch <- provider.ItemEvent{Item: cur}:
				case <-ctx.Done():
					return
				}
				seen, first = ts, false
			}
			select {
			case <-ctx.Done():
				return
			case <-wait:
			}
		}
	}()
	return ch
}

// CachedQuerySequence registers the query for timestamp maintenance
// (structurally equal queries share one timestamp slot) and emits whenever
// that timestamp moves. The registration is dropped when the sequence
// ends.
func (p *Provider) CachedQuerySequence(ctx context.Context, collection string, q item.Query) <-chan provider.QueryEvent {
	t := p.Table(collection)
	ch := make(chan provider.QueryEvent)
	go func() {
		defer close(ch)
		p.mu.Lock()
		key := t.watchQuery(q)
		p.mu.Unlock()
		defer func() {
			p.mu.Lock()
			t.unwatchQuery(key)
			p.mu.Unlock()
		}()

		first := true
		var seen time.Time
		for {
			wait := t.changed.wait()
			p.mu.RLock()
			closed := p.closed
			ts := t.times[key]
			var cur []*item.Item
			var err error
			if first || !ts.Equal(seen) {
				cur, err = t.query(q)
			}
			emit := first || !ts.Equal(seen)
			p.mu.RUnlock()
			if closed {
				return
			}
			if emit {
				if err != nil {
					select {
					case ch <- provider.QueryEvent{Err: err}:
					case <-ctx.Done():
					}
					return
				}
				select {
				case ch <- provider.QueryEvent{Items: cur}:
				case <-ctx.Done():
					return
				}
				seen, first = ts, false
			}
			select {
			case <-ctx.Done():
				return
			case <-wait:
			}
		}
	}()
	return ch
}
