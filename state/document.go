package state

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dhoulb/shelving/item"
	"github.com/dhoulb/shelving/provider"
)

// DocumentState is the process-wide cache entry for one document
// reference: its last fetched value (nil for an absent document), refresh
// deduplication and the shared live subscription.
type DocumentState struct {
	*State[*item.Item]
	Ref item.DocumentRef

	provider provider.Provider
	busy     atomic.Bool
	live     liveRef
}

func newDocumentState(ref item.DocumentRef, p provider.Provider, now func() time.Time) *DocumentState {
	s := &DocumentState{
		State:    NewState[*item.Item](),
		Ref:      ref,
		provider: p,
	}
	if now != nil {
		s.setClock(now)
	}
	return s
}

// Refresh fetches the document once. While a refresh is in flight any
// further Refresh call is dropped, not queued: N concurrent readers of
// the same reference cost one backend request. Callers that need a fetch
// started strictly after a point in time must wait out the in-flight one
// themselves.
func (s *DocumentState) Refresh(ctx context.Context) error {
	if !s.busy.CompareAndSwap(false, true) {
		return nil
	}
	defer s.busy.Store(false)
	i, err := s.provider.GetItem(ctx, s.Ref.Collection, s.Ref.ID)
	if err != nil {
		s.tryFail(err)
		return err
	}
	s.tryNext(i)
	return nil
}

// RefreshStale refreshes only when the cached value is older than maxAge.
func (s *DocumentState) RefreshStale(ctx context.Context, maxAge time.Duration) error {
	if s.Age() <= maxAge {
		return nil
	}
	return s.Refresh(ctx)
}

// Start subscribes the observer and joins the shared live subscription,
// opening it on the first watcher. The returned stop function removes the
// observer and closes the live subscription when it was the last watcher.
func (s *DocumentState) Start(o Observer[*item.Item]) func() {
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

// watch routes the provider's item sequence into the state until the
// sequence ends. An upstream error or completion is terminal for the
// subscription, not for the cached value.
func (s *DocumentState) watch(ctx context.Context) {
	defer s.live.terminate()
	for ev := range s.provider.ItemSequence(ctx, s.Ref.Collection, s.Ref.ID) {
		if ev.Err != nil {
			s.tryFail(ev.Err)
			return
		}
		if !s.tryNext(ev.Item) {
			return
		}
	}
}
