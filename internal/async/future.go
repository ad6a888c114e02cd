// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package async runs work on a background goroutine and delivers the result
// through a cancellable Future, keeping network-bound work off the caller's
// goroutine.
package async

import (
	"context"
)

// Future is the pending result of work started with Run.
type Future[T any] struct {
	done   chan struct{}
	cancel context.CancelFunc
	val    T
	err    error
}

// Run starts fn on its own goroutine with a context derived from ctx.
// Cancelling the Future cancels that context.
func Run[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	ctx, cancel := context.WithCancel(ctx)
	f := &Future[T]{
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go func() {
		defer close(f.done)
		defer cancel()
		f.val, f.err = fn(ctx)
	}()
	return f
}

// Done is closed once the work has finished.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Cancel asks the work to stop. It does not wait; use Await for that.
func (f *Future[T]) Cancel() {
	f.cancel()
}

// Await blocks until the work finishes or ctx is done. If ctx ends first the
// work keeps running and ctx.Err() is returned.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
