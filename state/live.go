package state

import (
	"context"
	"sync"
)

// liveRef counts the local consumers watching one cache entry and owns
// the single live backend subscription shared between them. The 0-to-1
// transition opens the subscription, the 1-to-0 transition cancels it, so
// at most one backend sequence is open per reference no matter how many
// local watchers there are.
type liveRef struct {
	mu       sync.Mutex
	watchers int
	stop     context.CancelFunc
}

// acquire registers one watcher. When this is the first watcher and no
// subscription is open, open is started in its own goroutine with a
// context cancelled on release of the last watcher.
func (l *liveRef) acquire(open func(ctx context.Context)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.watchers++
	if l.watchers == 1 && l.stop == nil {
		ctx, cancel := context.WithCancel(context.Background())
		l.stop = cancel
		go open(ctx)
	}
}

// release drops one watcher, tearing down the subscription at zero.
func (l *liveRef) release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.watchers > 0 {
		l.watchers--
	}
	if l.watchers == 0 && l.stop != nil {
		l.stop()
		l.stop = nil
	}
}

// terminate tears down after an upstream error or completion. Terminal
// for this subscription only: watchers stay registered but no new
// subscription is opened until the count passes through zero again.
func (l *liveRef) terminate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stop != nil {
		l.stop()
		l.stop = nil
	}
}
