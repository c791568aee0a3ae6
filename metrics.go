package spinshell

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    multiplyCounter   prometheus.Counter
//	    multiplyHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordMultiply(duration time.Duration, err error) {
//	    p.multiplyCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordBuild is called after each operator build attempt.
	// duration is the total time taken, err is nil if successful.
	RecordBuild(duration time.Duration, err error)

	// RecordMultiply is called after each multiply.
	RecordMultiply(duration time.Duration, err error)

	// RecordNorm is called after each norm computation, including
	// cached returns.
	RecordNorm(duration time.Duration, err error)

	// RecordSnapshot is called after each encoding snapshot save or
	// load. op is "save" or "load", bytes is the stored size when
	// known.
	RecordSnapshot(op string, bytes int64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBuild(time.Duration, error)                   {}
func (NoopMetricsCollector) RecordMultiply(time.Duration, error)                {}
func (NoopMetricsCollector) RecordNorm(time.Duration, error)                    {}
func (NoopMetricsCollector) RecordSnapshot(string, int64, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	BuildCount         atomic.Int64
	BuildErrors        atomic.Int64
	MultiplyCount      atomic.Int64
	MultiplyErrors     atomic.Int64
	MultiplyTotalNanos atomic.Int64
	NormCount          atomic.Int64
	NormErrors         atomic.Int64
	SnapshotCount      atomic.Int64
	SnapshotErrors     atomic.Int64
	SnapshotBytes      atomic.Int64
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(duration time.Duration, err error) {
	b.BuildCount.Add(1)
	if err != nil {
		b.BuildErrors.Add(1)
	}
}

// RecordMultiply implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMultiply(duration time.Duration, err error) {
	b.MultiplyCount.Add(1)
	b.MultiplyTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.MultiplyErrors.Add(1)
	}
}

// RecordNorm implements MetricsCollector.
func (b *BasicMetricsCollector) RecordNorm(duration time.Duration, err error) {
	b.NormCount.Add(1)
	if err != nil {
		b.NormErrors.Add(1)
	}
}

// RecordSnapshot implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSnapshot(op string, bytes int64, duration time.Duration, err error) {
	b.SnapshotCount.Add(1)
	b.SnapshotBytes.Add(bytes)
	if err != nil {
		b.SnapshotErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		BuildCount:       b.BuildCount.Load(),
		BuildErrors:      b.BuildErrors.Load(),
		MultiplyCount:    b.MultiplyCount.Load(),
		MultiplyErrors:   b.MultiplyErrors.Load(),
		MultiplyAvgNanos: b.getAvgMultiplyNanos(),
		NormCount:        b.NormCount.Load(),
		NormErrors:       b.NormErrors.Load(),
		SnapshotCount:    b.SnapshotCount.Load(),
		SnapshotErrors:   b.SnapshotErrors.Load(),
		SnapshotBytes:    b.SnapshotBytes.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgMultiplyNanos() int64 {
	count := b.MultiplyCount.Load()
	if count == 0 {
		return 0
	}
	return b.MultiplyTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	BuildCount       int64
	BuildErrors      int64
	MultiplyCount    int64
	MultiplyErrors   int64
	MultiplyAvgNanos int64
	NormCount        int64
	NormErrors       int64
	SnapshotCount    int64
	SnapshotErrors   int64
	SnapshotBytes    int64
}
