package channel

import (
	"context"
	"sync"
)

// Future is a one-shot, multi-waiter completion primitive: a value is
// delivered exactly once to any number of waiters. Resolve is
// idempotent — only the first call has any effect.
//
// This is the Go rendering of the cooperative-scheduler "future" that
// Put, Take, Tail, and Done all return: a channel closed exactly once,
// which every receiver observes simultaneously.
type Future[T any] struct {
	mu       sync.Mutex
	done     chan struct{}
	value    T
	resolved bool
}

// NewFuture returns an unresolved Future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolve delivers v to every current and future waiter. Calling
// Resolve more than once has no effect after the first.
func (f *Future[T]) Resolve(v T) {
	f.mu.Lock()
	if f.resolved {
		f.mu.Unlock()
		return
	}
	f.value = v
	f.resolved = true
	close(f.done)
	f.mu.Unlock()
}

// Wait blocks until the future resolves and returns its value.
func (f *Future[T]) Wait() T {
	<-f.done
	f.mu.Lock()
	v := f.value
	f.mu.Unlock()
	return v
}

// Await blocks until the future resolves or ctx is done, whichever
// happens first. A context cancellation does not resolve the future
// itself — the future may still resolve later for other waiters.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		v := f.value
		f.mu.Unlock()
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done returns a channel that is closed once the future resolves,
// for use in select statements alongside other events.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// IsResolved reports whether Resolve has already been called.
func (f *Future[T]) IsResolved() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolved
}
