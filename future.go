package ygggo_gamedb

import (
	"context"
	"errors"
	"sync"
)

var errFutureNotReady = errors.New("future not ready")

// Future is a single-assignment result written by a worker and read by the
// consumer.
type Future[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// resolve stores the outcome. Only the first call has an effect.
func (f *Future[T]) resolve(v T, err error) bool {
	set := false
	f.once.Do(func() {
		f.val, f.err = v, err
		close(f.done)
		set = true
	})
	return set
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Ready reports, without blocking, whether the result is available.
func (f *Future[T]) Ready() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Result returns the stored outcome. It must only be called once Ready is true.
func (f *Future[T]) Result() (T, error) {
	if !f.Ready() {
		var zero T
		return zero, errFutureNotReady
	}
	return f.val, f.err
}

// Wait blocks until the result is available or ctx ends.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
