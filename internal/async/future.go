// Package async provides futures and a fail-fast join for asynchronous
// preconditions such as schema fetches.
//
// A Future settles exactly once. Code that depends on several futures uses
// JoinAll or OnSettled rather than chaining callbacks: all futures must
// settle before dependent work runs, and the first failure short-circuits the
// join.
package async

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// ErrNotSettled is returned by Err on a future that has not settled yet.
var ErrNotSettled = errors.New("future not settled")

// Waiter is the type-erased view of a Future used by joins.
type Waiter interface {
	Done() <-chan struct{}
	Err() error
}

// Future holds the eventual result of an asynchronous operation.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Go runs fn in a new goroutine and returns a future for its result.
// Cancelling ctx is the only way to cancel fn; the future itself has no
// cancellation of its own.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.val, f.err = fn(ctx)
	}()
	return f
}

// Resolved returns a future that has already succeeded with v.
func Resolved[T any](v T) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), val: v}
	close(f.done)
	return f
}

// Rejected returns a future that has already failed with err.
func Rejected[T any](err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), err: err}
	close(f.done)
	return f
}

// Done is closed when the future settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Err returns the failure of a settled future, or ErrNotSettled.
func (f *Future[T]) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return ErrNotSettled
	}
}

// Result returns the value and error of a settled future. Before the future
// settles it returns ErrNotSettled.
func (f *Future[T]) Result() (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	default:
		var zero T
		return zero, ErrNotSettled
	}
}

// Settled reports whether the future has settled.
func (f *Future[T]) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the future settles or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// JoinAll waits until every waiter has settled successfully. The first
// failure is returned as soon as it happens; remaining waiters are abandoned.
func JoinAll(ctx context.Context, ws ...Waiter) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range ws {
		if w == nil {
			continue
		}
		g.Go(func() error {
			select {
			case <-w.Done():
				return w.Err()
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	return g.Wait()
}

// OnSettled joins ws in the background and calls fn with the join result.
// The returned future settles after fn has returned, carrying the same error.
func OnSettled(ctx context.Context, fn func(error), ws ...Waiter) *Future[struct{}] {
	return Go(ctx, func(ctx context.Context) (struct{}, error) {
		err := JoinAll(ctx, ws...)
		fn(err)
		return struct{}{}, err
	})
}
