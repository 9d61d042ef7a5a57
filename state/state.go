// Package state is the reactive caching layer that sits in front of any
// Provider: observable value containers, a per-reference cache registry
// with deduplicated refresh and ref-counted live subscriptions, and
// cursor pagination with order-preserving merge.
package state

import (
	"math"
	"sync"
	"time"
)

// Observer receives state notifications. Nil callbacks are skipped.
type Observer[T any] struct {
	Next     func(T)
	Error    func(error)
	Complete func()
}

// State is an observable container for one value. It is in exactly one of
// three shapes: loading (no value yet), value, or value plus error (the
// last good value is retained when a refresh fails). Closing is
// irreversible; mutating a closed state is a programming error and panics.
type State[T any] struct {
	mu      sync.Mutex
	value   T
	got     bool
	reason  error
	updated time.Time
	closed  bool
	subs    map[int]Observer[T]
	nextSub int

	now    func() time.Time
	onIdle func()
}

// NewState creates an empty state in the loading shape.
func NewState[T any]() *State[T] {
	return &State[T]{subs: map[int]Observer[T]{}, now: time.Now}
}

// setClock replaces the timestamp source, for tests.
func (s *State[T]) setClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// setOnIdle registers a callback invoked whenever the observer count
// drops to zero, used upstream to tear down live subscriptions.
func (s *State[T]) setOnIdle(f func()) {
	s.mu.Lock()
	s.onIdle = f
	s.mu.Unlock()
}

// Next stores a new value, clears any error and notifies observers.
// Calling Next on a closed state is a programming error and panics.
func (s *State[T]) Next(value T) {
	if !s.tryNext(value) {
		panic("state: Next after Close")
	}
}

// Fail records an error and notifies observers. The previous value (and
// its timestamp) are retained so consumers can show stale data alongside
// the error. Calling Fail on a closed state is a programming error and
// panics.
func (s *State[T]) Fail(reason error) {
	if !s.tryFail(reason) {
		panic("state: Fail after Close")
	}
}

// tryNext is Next for internal callers racing against Close: a refresh or
// live emission landing after teardown is dropped instead of panicking.
func (s *State[T]) tryNext(value T) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.value = value
	s.got = true
	s.reason = nil
	s.updated = s.now()
	subs := s.observers()
	s.mu.Unlock()
	for _, o := range subs {
		if o.Next != nil {
			o.Next(value)
		}
	}
	return true
}

func (s *State[T]) tryFail(reason error) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.reason = reason
	subs := s.observers()
	s.mu.Unlock()
	for _, o := range subs {
		if o.Error != nil {
			o.Error(reason)
		}
	}
	return true
}

// observers snapshots the current observer set. Called with mu held.
func (s *State[T]) observers() []Observer[T] {
	out := make([]Observer[T], 0, len(s.subs))
	for _, o := range s.subs {
		out = append(out, o)
	}
	return out
}

// Subscribe registers an observer and returns its unsubscribe function.
// If a value is already present the observer receives it immediately.
// Subscribing to a closed state completes the observer immediately.
func (s *State[T]) Subscribe(o Observer[T]) func() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if o.Complete != nil {
			o.Complete()
		}
		return func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = o
	got, value := s.got, s.value
	s.mu.Unlock()

	if got && o.Next != nil {
		o.Next(value)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			idle := len(s.subs) == 0 && !s.closed
			onIdle := s.onIdle
			s.mu.Unlock()
			if idle && onIdle != nil {
				onIdle()
			}
		})
	}
}

// Close completes all observers and marks the state terminal.
func (s *State[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := s.observers()
	s.subs = map[int]Observer[T]{}
	s.mu.Unlock()
	for _, o := range subs {
		if o.Complete != nil {
			o.Complete()
		}
	}
}

// Closed reports whether the state has been closed.
func (s *State[T]) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Loading reports whether no value has ever been produced.
func (s *State[T]) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.got
}

// Value returns the current value and whether one has been produced.
func (s *State[T]) Value() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.got
}

// Reason returns the current error, or nil.
func (s *State[T]) Reason() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Updated returns when the current value was produced; zero if never.
func (s *State[T]) Updated() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updated
}

// Age returns how long ago the current value was produced. A state that
// has never produced a value is infinitely old.
func (s *State[T]) Age() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updated.IsZero() {
		return math.MaxInt64
	}
	return s.now().Sub(s.updated)
}

// ObserverCount returns the number of registered observers.
func (s *State[T]) ObserverCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
