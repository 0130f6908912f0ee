package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/domain"
)

// yieldInterval is how long a normal caller backs off when it grabbed a lock
// that a priority caller is waiting for.
const yieldInterval = time.Millisecond

// Locks hands out one exclusive lock per key (room id). Entries exist only
// while someone holds or waits for them.
type Locks struct {
	mu              sync.Mutex
	entries         map[string]*lockEntry
	timeout         time.Duration
	priorityTimeout time.Duration
}

type lockEntry struct {
	sem      chan struct{}
	refs     int // guarded by Locks.mu
	priority atomic.Int32
}

func NewLocks(timeout, priorityTimeout time.Duration) *Locks {
	if priorityTimeout < timeout {
		priorityTimeout = timeout
	}
	return &Locks{
		entries:         make(map[string]*lockEntry),
		timeout:         timeout,
		priorityTimeout: priorityTimeout,
	}
}

// Acquire waits for key's lock. Normal callers give up after the configured
// timeout with domain.ErrBusy; priority callers wait longer and normal callers
// step aside while one is pending. The returned release func is idempotent.
func (l *Locks) Acquire(ctx context.Context, key string, priority bool) (func(), error) {
	e := l.ref(key)
	wait := l.timeout
	if priority {
		e.priority.Add(1)
		defer e.priority.Add(-1)
		wait = l.priorityTimeout
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case e.sem <- struct{}{}:
			if !priority && e.priority.Load() > 0 {
				<-e.sem
				select {
				case <-time.After(yieldInterval):
					continue
				case <-timer.C:
				case <-ctx.Done():
					l.unref(key, e)
					return nil, fmt.Errorf("%w: %v", domain.ErrBusy, ctx.Err())
				}
				l.unref(key, e)
				return nil, domain.ErrBusy
			}
			var once sync.Once
			return func() {
				once.Do(func() {
					<-e.sem
					l.unref(key, e)
				})
			}, nil
		case <-timer.C:
			l.unref(key, e)
			return nil, domain.ErrBusy
		case <-ctx.Done():
			l.unref(key, e)
			return nil, fmt.Errorf("%w: %v", domain.ErrBusy, ctx.Err())
		}
	}
}

// Len reports how many keys currently have holders or waiters.
func (l *Locks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Locks) ref(key string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		e = &lockEntry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *Locks) unref(key string, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}
