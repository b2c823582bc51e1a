// Package memo provides a run-forever, single-flight memoizer for pure
// async initializers. A successful result is cached forever; a failed
// call is never cached, so the next caller retries from scratch.
package memo

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// Once wraps a fallible initializer fn so it runs at most once on
// success. Concurrent callers during the first in-flight execution
// share the same pending result via singleflight; once that call
// succeeds, every later caller gets the cached value without
// re-invoking fn. If fn fails, nothing is cached and the next call
// starts a fresh attempt.
type Once[T any] struct {
	fn    func() (T, error)
	group singleflight.Group

	mu    sync.RWMutex
	value T
	done  bool
}

// New builds a memoized initializer around fn.
func New[T any](fn func() (T, error)) *Once[T] {
	return &Once[T]{fn: fn}
}

// Get returns the cached value if already computed, otherwise runs fn
// (coalescing concurrent callers) and caches the result only on success.
func (o *Once[T]) Get() (T, error) {
	o.mu.RLock()
	if o.done {
		v := o.value
		o.mu.RUnlock()
		return v, nil
	}
	o.mu.RUnlock()

	v, err, _ := o.group.Do("", func() (any, error) {
		o.mu.RLock()
		if o.done {
			v := o.value
			o.mu.RUnlock()
			return v, nil
		}
		o.mu.RUnlock()

		result, err := o.fn()
		if err != nil {
			return result, err
		}

		o.mu.Lock()
		o.value = result
		o.done = true
		o.mu.Unlock()
		return result, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Reset clears any cached value, forcing the next Get to re-invoke fn.
// Primarily useful in tests.
func (o *Once[T]) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	var zero T
	o.value = zero
	o.done = false
}
