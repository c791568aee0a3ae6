// Package device abstracts the execution units that iterate kernel
// rows.
//
// A Device owns a fixed number of units. Launch statically partitions a
// contiguous row range into one equal block per unit and runs the
// kernel on each; its return is the device barrier, so results are
// never read while a unit is still writing. Two backends exist: serial
// runs blocks inline on the calling goroutine, pool spreads them over
// resident worker goroutines.
//
// The backend is chosen automatically but can be pinned through the
// SPINSHELL_DEVICE environment variable ("serial" or "pool") when
// chasing a miscompare between the two.
package device

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
)

var (
	// ErrDeviceClosed is returned when launching on a closed device.
	ErrDeviceClosed = errors.New("device: closed")
	// ErrKernelPanic wraps a panic recovered from a kernel. The launch
	// that carried it fails as a whole.
	ErrKernelPanic = errors.New("device: kernel panicked")
)

// Kernel iterates the half-open row block [lo, hi) on one unit.
type Kernel func(unit int, lo, hi int64)

// Device runs kernels over statically partitioned row blocks.
type Device interface {
	// Name identifies the backend for logs.
	Name() string

	// Units returns the number of parallel execution units.
	Units() int

	// Launch splits [lo, hi) into Units contiguous blocks, runs the
	// kernel on every non-empty block and returns when the last one
	// finishes. Returning is the barrier: the rows are not readable
	// before. A kernel panic is recovered and returned as an error
	// wrapping ErrKernelPanic.
	Launch(ctx context.Context, lo, hi int64, k Kernel) error

	// Close releases the backend. Further launches fail.
	Close() error
}

// Kind names a device backend.
type Kind uint8

const (
	// KindSerial runs kernels inline.
	KindSerial Kind = iota
	// KindPool runs kernels on resident workers.
	KindPool
)

// String returns the SPINSHELL_DEVICE spelling of the kind.
func (k Kind) String() string {
	switch k {
	case KindSerial:
		return "serial"
	case KindPool:
		return "pool"
	default:
		return "unknown"
	}
}

// ParseKind parses a SPINSHELL_DEVICE value.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "serial":
		return KindSerial, true
	case "pool":
		return KindPool, true
	default:
		return KindSerial, false
	}
}

// DefaultKind returns the backend New would build: the environment
// override when set and valid, otherwise pool on multicore hosts and
// serial on single-CPU ones.
func DefaultKind() Kind {
	if override := os.Getenv("SPINSHELL_DEVICE"); override != "" {
		if kind, ok := ParseKind(override); ok {
			return kind
		}
	}
	if runtime.GOMAXPROCS(0) > 1 {
		return KindPool
	}
	return KindSerial
}

// New builds the default backend. Pool devices size themselves to
// GOMAXPROCS.
func New() Device {
	switch DefaultKind() {
	case KindPool:
		return NewPool(0)
	default:
		return NewSerial()
	}
}

// runKernel runs one block and converts a kernel panic into an error,
// so a bad row computation fails the launch instead of the process.
func runKernel(unit int, lo, hi int64, k Kernel) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrKernelPanic, r)
		}
	}()
	k(unit, lo, hi)
	return nil
}

// blocks yields the static partition of [lo, hi) into n contiguous
// near-equal blocks, front-loading the remainder.
func blocks(lo, hi int64, n int) func(unit int) (int64, int64) {
	rows := hi - lo
	q := rows / int64(n)
	r := rows % int64(n)
	return func(unit int) (int64, int64) {
		ulo := lo + int64(unit)*q + min(int64(unit), r)
		uhi := ulo + q
		if int64(unit) < r {
			uhi++
		}
		return ulo, uhi
	}
}
