package spinshell

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/spinshell/internal/comm"
	"github.com/hupe1980/spinshell/internal/device"
	"github.com/hupe1980/spinshell/internal/resource"
	"github.com/hupe1980/spinshell/msc"
	"github.com/hupe1980/spinshell/shell"
	"github.com/hupe1980/spinshell/subspace"
)

// Stats re-exports the shell layer's build statistics so callers need
// only this package.
type Stats = shell.Stats

// NormType selects which operator norm Norm computes.
type NormType int

const (
	// NormInfinity is the maximum absolute row sum. This is the only
	// norm a matrix-free operator can compute without assembling
	// columns.
	NormInfinity NormType = iota

	// Norm1 is the maximum absolute column sum.
	Norm1

	// NormFrobenius is the square root of the summed squared entries.
	NormFrobenius
)

// String returns the norm type's name.
func (t NormType) String() string {
	switch t {
	case NormInfinity:
		return "infinity"
	case Norm1:
		return "1"
	case NormFrobenius:
		return "frobenius"
	default:
		return "unknown"
	}
}

// Multiplies slower than this trigger a rate-limited warning.
const slowMultiplyThreshold = 500 * time.Millisecond

// Operator is a matrix-free spin-chain operator bound to its subspaces
// and runtime. Instances are built through FromTerms or FromEncoding
// and must be Close()'d to release their workers and memory
// reservation.
type Operator struct {
	shell   *shell.Context
	enc     *msc.Encoding
	spins   int
	left    subspace.Subspace
	right   subspace.Subspace
	dev     device.Device
	alloc   *resource.Allocator
	logger  *Logger
	metrics MetricsCollector
	slowLog rate.Sometimes
	closed  atomic.Bool
}

// newOperator assembles the runtime and builds the shell context.
// This is an internal constructor - external users go through the
// builder (FromTerms/FromEncoding).
func newOperator(enc *msc.Encoding, left, right subspace.Subspace, optFns ...Option) (*Operator, error) {
	start := time.Now()
	opts := applyOptions(optFns)

	fail := func(err error) (*Operator, error) {
		err = translateError(err)
		opts.metrics.RecordBuild(time.Since(start), err)
		opts.logger.LogBuild(context.Background(), Stats{}, time.Since(start), err)
		return nil, err
	}

	if enc == nil {
		return fail(errors.New("spinshell: no encoding configured"))
	}
	if left == nil || right == nil {
		return fail(errors.New("spinshell: no subspace configured"))
	}

	group, err := comm.NewGroup(opts.processes)
	if err != nil {
		return fail(err)
	}

	dev, err := opts.newDevice()
	if err != nil {
		return fail(err)
	}

	alloc := resource.NewAllocator(opts.memoryLimit, resource.WithIORate(opts.ioRate))

	sctx, err := shell.Build(shell.Config{
		Encoding:  enc,
		Left:      left,
		Right:     right,
		Group:     group,
		Device:    dev,
		Allocator: alloc,
		Logger:    opts.logger.Logger,
	})
	if err != nil {
		_ = dev.Close()
		return fail(err)
	}

	op := &Operator{
		shell:   sctx,
		enc:     enc,
		spins:   left.Spins(),
		left:    left,
		right:   right,
		dev:     dev,
		alloc:   alloc,
		logger:  opts.logger,
		metrics: opts.metrics,
		slowLog: rate.Sometimes{First: 1, Interval: time.Minute},
	}

	op.metrics.RecordBuild(time.Since(start), nil)
	op.logger.LogBuild(context.Background(), sctx.Stats(), time.Since(start), nil)
	return op, nil
}

// Multiply applies the operator to x and returns a freshly allocated
// result vector.
func (op *Operator) Multiply(ctx context.Context, x []complex128) ([]complex128, error) {
	rows, _ := op.Dims()
	y := make([]complex128, rows)
	if err := op.MultiplyInto(ctx, y, x); err != nil {
		return nil, err
	}
	return y, nil
}

// MultiplyInto applies the operator to x, overwriting y. The vectors
// must have the operator's column and row dimensions and must not
// alias.
func (op *Operator) MultiplyInto(ctx context.Context, y, x []complex128) error {
	start := time.Now()
	if op.closed.Load() {
		op.metrics.RecordMultiply(time.Since(start), ErrClosed)
		op.logger.LogMultiply(ctx, int64(len(y)), time.Since(start), ErrClosed)
		return ErrClosed
	}

	err := translateError(op.shell.Multiply(ctx, y, x))
	duration := time.Since(start)
	op.metrics.RecordMultiply(duration, err)
	op.logger.LogMultiply(ctx, int64(len(y)), duration, err)
	if err == nil && duration > slowMultiplyThreshold {
		op.slowLog.Do(func() {
			op.logger.LogSlowMultiply(ctx, int64(len(y)), duration, slowMultiplyThreshold)
		})
	}
	return err
}

// Norm computes the requested operator norm. Only NormInfinity is
// supported; the result is computed once and cached on the operator.
func (op *Operator) Norm(ctx context.Context, t NormType) (float64, error) {
	start := time.Now()
	if op.closed.Load() {
		op.metrics.RecordNorm(time.Since(start), ErrClosed)
		op.logger.LogNorm(ctx, t, 0, ErrClosed)
		return 0, ErrClosed
	}
	if t != NormInfinity {
		err := &ErrUnsupportedNorm{Type: t}
		op.metrics.RecordNorm(time.Since(start), err)
		op.logger.LogNorm(ctx, t, 0, err)
		return 0, err
	}

	norm, err := op.shell.InfinityNorm(ctx)
	err = translateError(err)
	op.metrics.RecordNorm(time.Since(start), err)
	op.logger.LogNorm(ctx, t, norm, err)
	return norm, err
}

// Dims returns the operator shape: output rows and input columns.
func (op *Operator) Dims() (rows, cols int64) {
	return op.left.Dim(), op.right.Dim()
}

// Spins returns the chain length the operator acts on.
func (op *Operator) Spins() int { return op.spins }

// Subspaces returns the output and input subspaces.
func (op *Operator) Subspaces() (left, right subspace.Subspace) {
	return op.left, op.right
}

// Encoding returns the operator's canonical encoding. The returned
// value is shared; callers must not mutate it.
func (op *Operator) Encoding() *msc.Encoding { return op.enc }

// Stats returns build-time facts about the operator: shape, term
// counts, mask locality, rank and device layout.
func (op *Operator) Stats() Stats {
	return op.shell.Stats()
}
