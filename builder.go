// Package spinshell provides matrix-free spin-chain operators.
//
// This file implements the fluent builder API for constructing operators.
// Builders are immutable - each method returns a new builder with the
// updated configuration.
package spinshell

import (
	"github.com/hupe1980/spinshell/msc"
	"github.com/hupe1980/spinshell/subspace"
)

// FromTerms creates an operator builder over a Pauli-string sum. The
// terms are canonicalized immediately: sorted, merged and stripped of
// cancellations.
//
// The builder is immutable - each method returns a new builder with the
// updated configuration.
//
// Example:
//
//	op, err := spinshell.FromTerms(terms).
//	    Subspace(sector).
//	    Processes(4).
//	    MemoryLimit(2 << 30).
//	    Build()
func FromTerms(terms []msc.Term) OperatorBuilder {
	return OperatorBuilder{enc: msc.New(terms)}
}

// FromEncoding creates an operator builder over an existing canonical
// encoding, typically one returned by LoadEncoding.
func FromEncoding(e *msc.Encoding) OperatorBuilder {
	return OperatorBuilder{enc: e}
}

// OperatorBuilder is an immutable fluent builder for creating
// operators. Each method returns a new builder with the updated
// configuration.
type OperatorBuilder struct {
	enc         *msc.Encoding
	left        subspace.Subspace
	right       subspace.Subspace
	processes   int
	deviceKind  DeviceKind
	deviceUnits int
	memoryLimit int64
	ioRate      int64
	logger      *Logger
	metrics     MetricsCollector
}

// Subspace sets the same subspace on both sides of the operator. This
// is the common square case: input and output vectors share a basis.
func (b OperatorBuilder) Subspace(s subspace.Subspace) OperatorBuilder {
	b.left = s
	b.right = s
	return b
}

// LeftSubspace sets the output-side subspace for rectangular
// operators.
func (b OperatorBuilder) LeftSubspace(s subspace.Subspace) OperatorBuilder {
	b.left = s
	return b
}

// RightSubspace sets the input-side subspace for rectangular
// operators.
func (b OperatorBuilder) RightSubspace(s subspace.Subspace) OperatorBuilder {
	b.right = s
	return b
}

// Processes sets how many ranks share each multiply.
// Default: 1.
func (b OperatorBuilder) Processes(n int) OperatorBuilder {
	b.processes = n
	return b
}

// Device pins the kernel backend.
// Default: DeviceAuto.
func (b OperatorBuilder) Device(kind DeviceKind) OperatorBuilder {
	b.deviceKind = kind
	return b
}

// DeviceUnits sets how many units a pool device runs.
// Default: GOMAXPROCS.
func (b OperatorBuilder) DeviceUnits(n int) OperatorBuilder {
	b.deviceUnits = n
	return b
}

// MemoryLimit caps the bytes the operator may reserve.
// Default: unlimited.
func (b OperatorBuilder) MemoryLimit(bytes int64) OperatorBuilder {
	b.memoryLimit = bytes
	return b
}

// IORateLimit caps snapshot IO throughput in bytes per second.
// Default: unthrottled.
func (b OperatorBuilder) IORateLimit(bytesPerSec int64) OperatorBuilder {
	b.ioRate = bytesPerSec
	return b
}

// Logger configures structured logging.
func (b OperatorBuilder) Logger(l *Logger) OperatorBuilder {
	b.logger = l
	return b
}

// Metrics configures a metrics collector.
func (b OperatorBuilder) Metrics(mc MetricsCollector) OperatorBuilder {
	b.metrics = mc
	return b
}

// Build validates the configuration and constructs the operator.
func (b OperatorBuilder) Build() (*Operator, error) {
	optFns := []Option{
		WithProcesses(b.processes),
		WithDevice(b.deviceKind),
		WithMemoryLimit(b.memoryLimit),
		WithIORateLimit(b.ioRate),
	}
	if b.deviceUnits > 0 {
		optFns = append(optFns, WithDeviceUnits(b.deviceUnits))
	}
	if b.logger != nil {
		optFns = append(optFns, WithLogger(b.logger))
	}
	if b.metrics != nil {
		optFns = append(optFns, WithMetricsCollector(b.metrics))
	}
	return newOperator(b.enc, b.left, b.right, optFns...)
}
