package spinshell

import (
	"errors"
	"fmt"

	"github.com/hupe1980/spinshell/internal/resource"
	"github.com/hupe1980/spinshell/shell"
)

var (
	// ErrClosed is returned by operations on a closed operator.
	ErrClosed = errors.New("operator closed")

	// ErrMemoryLimit is returned when building an operator would exceed
	// the configured memory budget.
	ErrMemoryLimit = errors.New("memory limit exceeded")

	// ErrAliasedVectors is returned when a multiply's input and output
	// share backing storage.
	ErrAliasedVectors = errors.New("input and output vectors alias")
)

// ErrDimensionMismatch indicates a vector length that does not match
// the operator shape.
//
// The original underlying error (if any) can be accessed via
// errors.Unwrap.
type ErrDimensionMismatch struct {
	Side     string // "input" or "output"
	Expected int64
	Actual   int64
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: %s vector has %d rows, expected %d", e.Side, e.Actual, e.Expected)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// ErrUnsupportedNorm indicates a norm type the shell backend cannot
// compute; only NormInfinity is available matrix-free.
type ErrUnsupportedNorm struct {
	Type NormType
}

func (e *ErrUnsupportedNorm) Error() string {
	return fmt.Sprintf("unsupported norm type: %s", e.Type)
}

func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, shell.ErrDestroyed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	if errors.Is(err, shell.ErrAliasedVectors) {
		return fmt.Errorf("%w: %w", ErrAliasedVectors, err)
	}
	if errors.Is(err, resource.ErrMemoryLimit) {
		return fmt.Errorf("%w: %w", ErrMemoryLimit, err)
	}

	var dim *shell.DimensionError
	if errors.As(err, &dim) {
		return &ErrDimensionMismatch{Side: dim.Side, Expected: dim.Want, Actual: dim.Got, cause: err}
	}

	return err
}
