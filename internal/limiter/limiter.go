// Package limiter bounds how many invoices are processed at once.
package limiter

import (
	"context"

	"golang.org/x/sync/semaphore"
)

const DefaultCapacity = 3

// Limiter is a counting admission gate. One slot is held by one invoice for
// the whole of its sequential purchase attempts.
type Limiter struct {
	capacity int
	sem      *semaphore.Weighted
}

// New builds a limiter; non-positive capacity falls back to DefaultCapacity.
func New(capacity int) *Limiter {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Limiter{capacity: capacity, sem: semaphore.NewWeighted(int64(capacity))}
}

func (l *Limiter) Capacity() int { return l.capacity }

// Acquire blocks until a slot is free or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

func (l *Limiter) Release() {
	l.sem.Release(1)
}

// Do runs fn while holding a slot. The slot is released even if fn panics.
func (l *Limiter) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	defer l.Release()
	return fn(ctx)
}
