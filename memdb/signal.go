package memdb

import "sync"

// signal is a re-armable broadcast: every waiter obtained before a
// broadcast is woken by it, and the signal immediately re-arms for the
// next round. Sequence goroutines grab a wait channel before reading a
// snapshot so a mutation landing between snapshot and wait is never lost.
type signal struct {
	mu sync.Mutex
	ch chan struct{}
}

func newSignal() *signal {
	return &signal{ch: make(chan struct{})}
}

// wait returns a channel closed by the next broadcast.
func (s *signal) wait() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch
}

// broadcast wakes all current waiters and re-arms.
func (s *signal) broadcast() {
	s.mu.Lock()
	close(s.ch)
	s.ch = make(chan struct{})
	s.mu.Unlock()
}
