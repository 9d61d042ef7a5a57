package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/dhoulb/shelving/item"
	"github.com/dhoulb/shelving/provider"
)

// Pagination pages through a limited, sorted query in either direction,
// keeping one merged window of everything loaded so far. The two edges
// load independently: fetching one cannot clobber an in-flight fetch of
// the other.
type Pagination struct {
	*State[[]*item.Item]
	Ref item.QueryRef

	provider provider.Provider

	mu           sync.Mutex
	windowMu     sync.Mutex
	startLoading bool
	startDone    bool
	endLoading   bool
	endDone      bool
}

// NewPagination creates a pagination over the query reference. The query
// must carry a positive limit and at least one sort key; paging is
// undefined without a stable order and a page size.
func NewPagination(p provider.Provider, ref item.QueryRef) (*Pagination, error) {
	if ref.Query.Limit <= 0 {
		return nil, fmt.Errorf("pagination requires a limited query")
	}
	if len(ref.Query.Sorts) == 0 {
		return nil, fmt.Errorf("pagination requires at least one sort key")
	}
	return &Pagination{
		State:    NewState[[]*item.Item](),
		Ref:      ref,
		provider: p,
	}, nil
}

// LoadEnd fetches one page beyond the last loaded item (the first page
// when nothing is loaded) and merges it into the window. A short page
// marks the end edge done. A failed fetch leaves the window and the edge
// flags unchanged and surfaces the error on the state.
func (p *Pagination) LoadEnd(ctx context.Context) error {
	p.mu.Lock()
	if p.endLoading || p.endDone {
		p.mu.Unlock()
		return nil
	}
	p.endLoading = true
	p.mu.Unlock()

	current, _ := p.Value()
	q := p.Ref.Query
	if len(current) > 0 {
		q = q.After(current[len(current)-1])
	}
	page, err := p.provider.GetQuery(ctx, p.Ref.Collection, q)

	p.mu.Lock()
	p.endLoading = false
	if err != nil {
		p.mu.Unlock()
		p.tryFail(err)
		return err
	}
	if len(page) < p.Ref.Query.Limit {
		p.endDone = true
	}
	p.mu.Unlock()

	// Merge against the freshest window so the two edges cannot clobber
	// each other's results.
	p.windowMu.Lock()
	latest, _ := p.Value()
	p.tryNext(mergeItems(latest, page, p.Ref.Query.Compare))
	p.windowMu.Unlock()
	return nil
}

// LoadStart fetches one page before the first loaded item (the last page
// of the query when nothing is loaded) and merges it into the window.
func (p *Pagination) LoadStart(ctx context.Context) error {
	p.mu.Lock()
	if p.startLoading || p.startDone {
		p.mu.Unlock()
		return nil
	}
	p.startLoading = true
	p.mu.Unlock()

	current, _ := p.Value()
	q := p.Ref.Query
	if len(current) > 0 {
		q = q.Before(current[0])
	}
	page, err := p.provider.GetQuery(ctx, p.Ref.Collection, q)

	p.mu.Lock()
	p.startLoading = false
	if err != nil {
		p.mu.Unlock()
		p.tryFail(err)
		return err
	}
	if len(page) < p.Ref.Query.Limit {
		p.startDone = true
	}
	p.mu.Unlock()

	// Merge against the freshest window so the two edges cannot clobber
	// each other's results.
	p.windowMu.Lock()
	latest, _ := p.Value()
	p.tryNext(mergeItems(latest, page, p.Ref.Query.Compare))
	p.windowMu.Unlock()
	return nil
}

// StartDone reports whether the start edge is proven exhausted.
func (p *Pagination) StartDone() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.startDone
}

// EndDone reports whether the end edge is proven exhausted.
func (p *Pagination) EndDone() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.endDone
}

// Items returns the currently loaded window.
func (p *Pagination) Items() []*item.Item {
	items, _ := p.Value()
	return items
}
