package keylock

import (
	"context"
	"sync"

	"github.com/roach88/vaultledger/internal/fault"
)

// Local is an in-process keyed mutex.
//
// Entries are reference counted and removed when no goroutine holds or waits
// for them, so the map only grows with concurrently contended keys.
type Local struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	sem  chan struct{}
	refs int
}

// NewLocal creates an empty Local locker.
func NewLocal() *Local {
	return &Local{entries: make(map[string]*entry)}
}

// WithLock implements Locker. Waiting honours ctx cancellation.
func (l *Local) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	e := l.acquireRef(key)

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.releaseRef(key, e)
		return fault.Transient("acquire lock "+key, ctx.Err())
	}

	defer func() {
		<-e.sem
		l.releaseRef(key, e)
	}()

	return fn(ctx)
}

func (l *Local) acquireRef(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *Local) releaseRef(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

// size reports the number of live entries. Used for testing.
func (l *Local) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
