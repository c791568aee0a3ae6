package device

import (
	"context"
	"sync/atomic"
)

// Serial runs every kernel inline on the calling goroutine. It is the
// fallback backend and the reference the pool backend is checked
// against, since a single unit cannot reorder row writes.
type Serial struct {
	closed atomic.Bool
}

// NewSerial returns the inline backend.
func NewSerial() *Serial {
	return &Serial{}
}

// Name returns "serial".
func (s *Serial) Name() string { return "serial" }

// Units returns 1.
func (s *Serial) Units() int { return 1 }

// Launch runs the kernel over the whole range on the caller.
func (s *Serial) Launch(ctx context.Context, lo, hi int64, k Kernel) error {
	if s.closed.Load() {
		return ErrDeviceClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if lo < hi {
		return runKernel(0, lo, hi, k)
	}
	return nil
}

// Close marks the device closed.
func (s *Serial) Close() error {
	s.closed.Store(true)
	return nil
}
