// Package resource tracks and limits the resources an operator context
// holds: the memory of its built tables and the IO bandwidth of its
// snapshots.
//
// The big allocations (owned coefficient tables, the gather buffer) are
// made once at build time and freed at destroy time, so a weighted
// semaphore models the memory budget exactly: reservations either fit
// or the build fails immediately. Nothing blocks waiting for another
// operator to be destroyed. Snapshot IO, by contrast, is a stream and
// gets a token-bucket limiter.
package resource

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimit is returned when a reservation would exceed the budget.
var ErrMemoryLimit = errors.New("resource: memory limit exceeded")

// Allocator hands out bytes against an optional hard limit.
type Allocator struct {
	limit int64
	sem   *semaphore.Weighted // nil when only tracking
	used  atomic.Int64
	io    *rate.Limiter // nil when unthrottled
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithIORate caps snapshot IO throughput at bytesPerSec. Non-positive
// rates leave IO unthrottled.
func WithIORate(bytesPerSec int64) Option {
	return func(a *Allocator) {
		if bytesPerSec > 0 {
			a.io = rate.NewLimiter(rate.Limit(bytesPerSec), int(bytesPerSec))
		}
	}
}

// NewAllocator returns an allocator with the given budget in bytes. A
// non-positive budget disables enforcement and keeps only the usage
// counter.
func NewAllocator(limit int64, opts ...Option) *Allocator {
	a := &Allocator{limit: limit}
	if limit > 0 {
		a.sem = semaphore.NewWeighted(limit)
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Reserve claims n bytes or fails without blocking.
func (a *Allocator) Reserve(n int64) error {
	if n <= 0 {
		return nil
	}
	if a.sem != nil && !a.sem.TryAcquire(n) {
		return fmt.Errorf("%w: %d bytes requested, %d of %d in use",
			ErrMemoryLimit, n, a.used.Load(), a.limit)
	}
	a.used.Add(n)
	return nil
}

// Release returns n bytes. Releases must pair with successful reserves.
func (a *Allocator) Release(n int64) {
	if n <= 0 {
		return
	}
	a.used.Add(-n)
	if a.sem != nil {
		a.sem.Release(n)
	}
}

// WaitIO blocks until the IO budget admits n more bytes. Requests
// larger than one second of budget are admitted in burst-sized slices.
func (a *Allocator) WaitIO(ctx context.Context, n int) error {
	if a.io == nil || n <= 0 {
		return nil
	}
	for n > 0 {
		chunk := min(n, a.io.Burst())
		if err := a.io.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// InUse returns the bytes currently reserved.
func (a *Allocator) InUse() int64 { return a.used.Load() }

// Limit returns the budget, 0 when unenforced.
func (a *Allocator) Limit() int64 {
	if a.sem == nil {
		return 0
	}
	return a.limit
}
