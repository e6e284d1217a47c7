// Package async provides a single-result deferred value and the combinators the lifecycle engine
// uses to chain steps without parking a goroutine between them.
//
// A [Future] completes exactly once with a value or an error. Continuations registered on a
// completed future run inline on the caller's goroutine, so a chain built from [Resolved]
// futures behaves like straight-line blocking code.
package async

import (
	"context"
	"fmt"
	"sync"
)

// Future is a value that becomes available later.
type Future[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	completed bool
	val       T
	err       error
	callbacks []func(T, error)
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// NewPromise returns a pending future and the function that completes it.
// Only the first call to complete has an effect.
func NewPromise[T any]() (*Future[T], func(T, error)) {
	f := newFuture[T]()
	return f, f.complete
}

// Resolved returns a future already completed with v.
func Resolved[T any](v T) *Future[T] {
	f := newFuture[T]()
	f.complete(v, nil)
	return f
}

// Failed returns a future already completed with err.
func Failed[T any](err error) *Future[T] {
	f := newFuture[T]()
	var zero T
	f.complete(zero, err)
	return f
}

// Of lifts a (value, error) pair into a completed future.
func Of[T any](v T, err error) *Future[T] {
	if err != nil {
		return Failed[T](err)
	}
	return Resolved(v)
}

// Go runs fn on a new goroutine and completes the returned future with its result.
// A panic inside fn fails the future instead of crashing the process.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	if err := ctx.Err(); err != nil {
		return Failed[T](err)
	}

	f := newFuture[T]()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				f.complete(zero, fmt.Errorf("async: panic: %v", r))
			}
		}()
		f.complete(fn(ctx))
	}()
	return f
}

func (f *Future[T]) complete(v T, err error) {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return
	}
	f.completed = true
	f.val, f.err = v, err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb(v, err)
	}
}

// Done is closed once the future has completed.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// IsDone reports whether the future has completed.
func (f *Future[T]) IsDone() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed
}

func (f *Future[T]) result() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.val, f.err
}

// Await blocks until the future completes or ctx is done.
// A result that is already available is returned even when ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	if f.IsDone() {
		return f.result()
	}

	select {
	case <-f.done:
		return f.result()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// OnComplete registers fn to receive the result. It runs inline when the future has already
// completed, otherwise on the goroutine that completes it.
func (f *Future[T]) OnComplete(fn func(T, error)) {
	f.mu.Lock()
	if !f.completed {
		f.callbacks = append(f.callbacks, fn)
		f.mu.Unlock()
		return
	}
	v, err := f.val, f.err
	f.mu.Unlock()
	fn(v, err)
}

// Then chains the next step onto f.
//
// The step is skipped when f fails or when ctx is done by the time f completes; the returned
// future then carries that error. Work already started is never undone.
func Then[T, U any](ctx context.Context, f *Future[T], step func(context.Context, T) *Future[U]) *Future[U] {
	out, resolve := NewPromise[U]()
	f.OnComplete(func(v T, err error) {
		var zero U
		if err != nil {
			resolve(zero, err)
			return
		}
		if err := ctx.Err(); err != nil {
			resolve(zero, err)
			return
		}
		next := step(ctx, v)
		if next == nil {
			resolve(zero, nil)
			return
		}
		next.OnComplete(resolve)
	})
	return out
}

// Map chains a synchronous transformation onto f with the same skip rules as [Then].
func Map[T, U any](ctx context.Context, f *Future[T], fn func(context.Context, T) (U, error)) *Future[U] {
	return Then(ctx, f, func(ctx context.Context, v T) *Future[U] {
		return Of(fn(ctx, v))
	})
}

// All completes with every result in input order, or with the first error observed.
func All[T any](futures []*Future[T]) *Future[[]T] {
	if len(futures) == 0 {
		return Resolved([]T{})
	}

	out, resolve := NewPromise[[]T]()
	results := make([]T, len(futures))

	var mu sync.Mutex
	remaining := len(futures)
	for i, f := range futures {
		f.OnComplete(func(v T, err error) {
			if err != nil {
				resolve(nil, err)
				return
			}
			mu.Lock()
			results[i] = v
			remaining--
			last := remaining == 0
			mu.Unlock()
			if last {
				resolve(results, nil)
			}
		})
	}
	return out
}
