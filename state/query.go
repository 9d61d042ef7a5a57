package state

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dhoulb/shelving/item"
	"github.com/dhoulb/shelving/provider"
)

// QueryState is the process-wide cache entry for one query reference: the
// cached result window, refresh deduplication, the shared live
// subscription and forward "load more" paging.
type QueryState struct {
	*State[[]*item.Item]
	Ref item.QueryRef

	provider provider.Provider
	busy     atomic.Bool
	live     liveRef

	moreMu  sync.Mutex
	hasMore bool
}

func newQueryState(ref item.QueryRef, p provider.Provider, now func() time.Time) *QueryState {
	s := &QueryState{
		State:    NewState[[]*item.Item](),
		Ref:      ref,
		provider: p,
	}
	if now != nil {
		s.setClock(now)
	}
	return s
}

// Refresh fetches the query once, with the same drop-while-busy
// deduplication as DocumentState.Refresh.
func (s *QueryState) Refresh(ctx context.Context) error {
	if !s.busy.CompareAndSwap(false, true) {
		return nil
	}
	defer s.busy.Store(false)
	items, err := s.provider.GetQuery(ctx, s.Ref.Collection, s.Ref.Query)
	if err != nil {
		s.tryFail(err)
		return err
	}
	s.tryNext(items)
	return nil
}

// RefreshStale refreshes only when the cached window is older than maxAge.
func (s *QueryState) RefreshStale(ctx context.Context, maxAge time.Duration) error {
	if s.Age() <= maxAge {
		return nil
	}
	return s.Refresh(ctx)
}

// Start subscribes the observer and joins the shared live subscription.
func (s *QueryState) Start(o Observer[[]*item.Item]) func() {
	unsubscribe := s.Subscribe(o)
	s.live.acquire(s.watch)
	stopped := false
	return func() {
		if stopped {
			return
		}
		stopped = true
		unsubscribe()
		s.live.release()
	}
}

func (s *QueryState) watch(ctx context.Context) {
	defer s.live.terminate()
	for ev := range s.provider.QuerySequence(ctx, s.Ref.Collection, s.Ref.Query) {
		if ev.Err != nil {
			s.tryFail(ev.Err)
			return
		}
		if !s.tryNext(ev.Items) {
			return
		}
	}
}

// LoadMore fetches the page after the last cached item (or the full query
// when nothing is cached yet) and merges it into the window. HasMore
// flips by the full-page heuristic: a page of at least Limit items means
// more may exist, a short page is proof there is no more. A failed fetch
// leaves the window and HasMore unchanged and surfaces the error on the
// state.
func (s *QueryState) LoadMore(ctx context.Context) error {
	s.moreMu.Lock()
	defer s.moreMu.Unlock()

	current, got := s.Value()
	q := s.Ref.Query
	if got && len(current) > 0 {
		q = q.After(current[len(current)-1])
	}
	page, err := s.provider.GetQuery(ctx, s.Ref.Collection, q)
	if err != nil {
		s.tryFail(err)
		return err
	}
	s.tryNext(mergeItems(current, page, s.Ref.Query.Compare))
	s.hasMore = s.Ref.Query.Limit > 0 && len(page) >= s.Ref.Query.Limit
	return nil
}

// HasMore reports the best-effort result of the last LoadMore. It can be
// wrong when the backend's true result count equals the limit exactly;
// the next LoadMore then returns an empty page and settles it.
func (s *QueryState) HasMore() bool {
	s.moreMu.Lock()
	defer s.moreMu.Unlock()
	return s.hasMore
}
