// Package limiter bounds concurrent outbound calls to LLM providers.
package limiter

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool limits concurrent provider calls using a weighted semaphore. A single
// Pool is shared by every request so that fan-out across many concurrent
// plans cannot exhaust outbound connections.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool creates a Pool that allows at most limit concurrent calls.
// A limit below 1 returns nil, which disables limiting.
func NewPool(limit int) *Pool {
	if limit < 1 {
		return nil
	}
	return &Pool{sem: semaphore.NewWeighted(int64(limit))}
}

// Run acquires a slot, runs fn, and releases the slot.
// Returns ctx.Err() if the context ends while waiting for a slot.
// A nil pool runs fn directly.
func (p *Pool) Run(ctx context.Context, fn func() error) error {
	release, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

// Acquire blocks until a slot is free and returns an idempotent release
// func. Used when the slot must outlive a single call, e.g. an open stream.
func (p *Pool) Acquire(ctx context.Context) (func(), error) {
	if p == nil || p.sem == nil {
		return func() {}, nil
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() { once.Do(func() { p.sem.Release(1) }) }, nil
}
