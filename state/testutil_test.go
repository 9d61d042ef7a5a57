package state

import (
	"context"
	"sync"
	"time"

	"github.com/dhoulb/shelving/item"
	"github.com/dhoulb/shelving/provider"
)

// fakeClock is a manually advanced time source safe for concurrent reads.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// stubProvider wraps the in-memory backend with call counting, optional
// blocking gates and injectable failures, for exercising refresh races
// and subscription ref-counting deterministically.
type stubProvider struct {
	provider.Through

	mu            sync.Mutex
	getItemCalls  int
	getQueryCalls int
	failWith      error
	seqOpen       int

	// When set, reads signal entered then block until gate is closed.
	entered chan struct{}
	gate    chan struct{}
}

func newStub(inner provider.Provider) *stubProvider {
	return &stubProvider{Through: provider.Through{Inner: inner}}
}

func (s *stubProvider) block() {
	s.mu.Lock()
	s.entered = make(chan struct{}, 8)
	s.gate = make(chan struct{})
	s.mu.Unlock()
}

func (s *stubProvider) fail(err error) {
	s.mu.Lock()
	s.failWith = err
	s.mu.Unlock()
}

func (s *stubProvider) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getItemCalls, s.getQueryCalls
}

func (s *stubProvider) openSequences() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seqOpen
}

func (s *stubProvider) enter() error {
	s.mu.Lock()
	entered, gate, err := s.entered, s.gate, s.failWith
	s.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	return err
}

func (s *stubProvider) GetItem(ctx context.Context, collection, id string) (*item.Item, error) {
	s.mu.Lock()
	s.getItemCalls++
	s.mu.Unlock()
	if err := s.enter(); err != nil {
		return nil, err
	}
	return s.Inner.GetItem(ctx, collection, id)
}

func (s *stubProvider) GetQuery(ctx context.Context, collection string, q item.Query) ([]*item.Item, error) {
	s.mu.Lock()
	s.getQueryCalls++
	s.mu.Unlock()
	if err := s.enter(); err != nil {
		return nil, err
	}
	return s.Inner.GetQuery(ctx, collection, q)
}

func (s *stubProvider) ItemSequence(ctx context.Context, collection, id string) <-chan provider.ItemEvent {
	s.mu.Lock()
	s.seqOpen++
	s.mu.Unlock()
	in := s.Inner.ItemSequence(ctx, collection, id)
	out := make(chan provider.ItemEvent)
	go func() {
		defer close(out)
		defer func() {
			s.mu.Lock()
			s.seqOpen--
			s.mu.Unlock()
		}()
		for ev := range in {
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (s *stubProvider) QuerySequence(ctx context.Context, collection string, q item.Query) <-chan provider.QueryEvent {
	s.mu.Lock()
	s.seqOpen++
	s.mu.Unlock()
	in := s.Inner.QuerySequence(ctx, collection, q)
	out := make(chan provider.QueryEvent)
	go func() {
		defer close(out)
		defer func() {
			s.mu.Lock()
			s.seqOpen--
			s.mu.Unlock()
		}()
		for ev := range in {
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
