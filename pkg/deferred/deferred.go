// Package deferred provides single-assignment values that resolve
// asynchronously as resource requests complete.
package deferred

import (
	"context"
	"fmt"
	"sync"
)

// Value wraps a value of type T that becomes available only after its
// producing request completes. A Value is resolved exactly once; after
// resolution it is immutable and may be read by any number of consumers.
type Value[T any] struct {
	mu      sync.Mutex
	done    chan struct{}
	settled bool
	val     T
	err     error

	// Subscribers attached before settlement, notified in attachment order.
	waiters []func(T, error)
}

// New creates an unresolved value.
func New[T any]() *Value[T] {
	return &Value[T]{done: make(chan struct{})}
}

// Resolved creates a value that is already resolved with v.
func Resolved[T any](v T) *Value[T] {
	d := New[T]()
	_ = d.Resolve(v)
	return d
}

// Resolve settles the value. Resolving or rejecting a settled value is an
// error.
func (d *Value[T]) Resolve(v T) error {
	return d.settle(v, nil)
}

// Reject settles the value with an error, propagating failure to all
// readers and derived values.
func (d *Value[T]) Reject(err error) error {
	var zero T
	return d.settle(zero, err)
}

func (d *Value[T]) settle(v T, err error) error {
	d.mu.Lock()
	if d.settled {
		d.mu.Unlock()
		return fmt.Errorf("deferred value already resolved")
	}
	d.settled = true
	d.val = v
	d.err = err
	waiters := d.waiters
	d.waiters = nil
	close(d.done)
	d.mu.Unlock()

	for _, fn := range waiters {
		fn(v, err)
	}
	return nil
}

// Subscribe registers a continuation to run once the value settles.
// Continuations registered before settlement run in attachment order; a
// continuation registered after settlement runs immediately.
func (d *Value[T]) Subscribe(fn func(T, error)) {
	d.mu.Lock()
	if d.settled {
		v, err := d.val, d.err
		d.mu.Unlock()
		fn(v, err)
		return
	}
	d.waiters = append(d.waiters, fn)
	d.mu.Unlock()
}

// Wait blocks until the value settles or the context is cancelled. Used
// only at the process boundary; internal composition uses Subscribe.
func (d *Value[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-d.done:
		return d.val, d.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done returns a channel closed when the value settles.
func (d *Value[T]) Done() <-chan struct{} {
	return d.done
}

// Get returns the value if settled. The second return reports whether the
// value has settled.
func (d *Value[T]) Get() (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.settled || d.err != nil {
		var zero T
		return zero, false
	}
	return d.val, true
}

// Map derives a value that resolves with fn applied to in's result, or
// rejects if in rejects.
func Map[T, U any](in *Value[T], fn func(T) U) *Value[U] {
	out := New[U]()
	in.Subscribe(func(v T, err error) {
		if err != nil {
			_ = out.Reject(err)
			return
		}
		_ = out.Resolve(fn(v))
	})
	return out
}

// Combine2 derives a value that resolves only once both inputs have
// resolved.
func Combine2[A, B, U any](a *Value[A], b *Value[B], fn func(A, B) U) *Value[U] {
	out := New[U]()
	a.Subscribe(func(av A, err error) {
		if err != nil {
			_ = out.Reject(err)
			return
		}
		b.Subscribe(func(bv B, err error) {
			if err != nil {
				_ = out.Reject(err)
				return
			}
			_ = out.Resolve(fn(av, bv))
		})
	})
	return out
}

// Combine3 derives a value from three inputs.
func Combine3[A, B, C, U any](a *Value[A], b *Value[B], c *Value[C], fn func(A, B, C) U) *Value[U] {
	ab := Combine2(a, b, func(av A, bv B) [2]any { return [2]any{av, bv} })
	return Combine2(ab, c, func(abv [2]any, cv C) U {
		return fn(abv[0].(A), abv[1].(B), cv)
	})
}

// All derives a value that resolves with every input's result, in input
// order, once all inputs have resolved.
func All[T any](vals ...*Value[T]) *Value[[]T] {
	out := New[[]T]()
	if len(vals) == 0 {
		_ = out.Resolve(nil)
		return out
	}

	var mu sync.Mutex
	results := make([]T, len(vals))
	remaining := len(vals)
	settled := false

	for i, v := range vals {
		i, v := i, v
		v.Subscribe(func(val T, err error) {
			mu.Lock()
			if settled {
				mu.Unlock()
				return
			}
			if err != nil {
				settled = true
				mu.Unlock()
				_ = out.Reject(err)
				return
			}
			results[i] = val
			remaining--
			finished := remaining == 0
			if finished {
				settled = true
			}
			mu.Unlock()
			if finished {
				_ = out.Resolve(results)
			}
		})
	}
	return out
}
