// Package lock serializes seat-map mutations per concert date.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrLockTimeout is returned when a lock could not be acquired before the
// context ended
var ErrLockTimeout = errors.New("timed out waiting for lock")

// Unlock releases a held lock. It is safe to call more than once.
type Unlock func()

// Locker hands out exclusive locks by key
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

// LocalLocker is an in-process keyed mutex. Locks on different keys never
// contend; entries are dropped once nobody holds or waits for them.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker creates an in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*slot)}
}

// Lock blocks until key is free or ctx is done
func (l *LocalLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, s)
		return nil, ErrLockTimeout
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.release(key, s)
		})
	}, nil
}

func (l *LocalLocker) release(key string, s *slot) {
	l.mu.Lock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
	l.mu.Unlock()
}

// held returns how many keys are tracked, for tests
func (l *LocalLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

var _ Locker = (*LocalLocker)(nil)
