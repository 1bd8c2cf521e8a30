// Package oneshot provides a single-use rendezvous between one producer and
// one consumer. Create one per handoff and drop it afterwards.
package oneshot

import (
	"context"
	"sync/atomic"
)

type Rendezvous[T any] struct {
	ch  chan T
	set atomic.Bool
}

func New[T any]() *Rendezvous[T] {
	return &Rendezvous[T]{ch: make(chan T, 1)}
}

// Set hands v over. Only the first call delivers; later calls report false.
// Never blocks, so it is safe from callback context.
func (r *Rendezvous[T]) Set(v T) bool {
	if !r.set.CompareAndSwap(false, true) {
		return false
	}
	r.ch <- v
	return true
}

// Wait blocks until Set delivers or ctx is done.
func (r *Rendezvous[T]) Wait(ctx context.Context) (T, error) {
	select {
	case v := <-r.ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
