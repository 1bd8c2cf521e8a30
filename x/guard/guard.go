// Package guard wraps a value behind a mutex whose callers may refuse to
// wait: TryDo skips the work when the lock is held elsewhere.
package guard

import "sync"

type Guarded[T any] struct {
	mu sync.Mutex
	v  T
}

func New[T any](v T) *Guarded[T] { return &Guarded[T]{v: v} }

// TryDo runs f with exclusive access if the lock is free right now and
// reports whether it ran.
func (g *Guarded[T]) TryDo(f func(v *T)) bool {
	if !g.mu.TryLock() {
		return false
	}
	defer g.mu.Unlock()
	f(&g.v)
	return true
}

// TryWith is TryDo returning f's result; ok is false when the lock was busy.
func TryWith[T, R any](g *Guarded[T], f func(v *T) R) (r R, ok bool) {
	ok = g.TryDo(func(v *T) { r = f(v) })
	return r, ok
}
