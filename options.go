package spinshell

import (
	"fmt"
	"log/slog"

	"github.com/hupe1980/spinshell/internal/device"
)

// DeviceKind selects the backend that runs row kernels inside each
// rank.
type DeviceKind int

const (
	// DeviceAuto picks the backend from the host: a worker pool on
	// multicore machines, serial otherwise. The SPINSHELL_DEVICE
	// environment variable overrides the choice.
	DeviceAuto DeviceKind = iota

	// DeviceSerial runs kernels inline on the calling goroutine.
	DeviceSerial

	// DevicePool runs kernels on resident worker goroutines.
	DevicePool
)

type options struct {
	processes   int
	deviceKind  DeviceKind
	deviceUnits int
	memoryLimit int64
	ioRate      int64
	metrics     MetricsCollector
	logger      *Logger
}

// Option configures operator construction and snapshot loading.
type Option func(*options)

// WithProcesses configures how many ranks share a multiply. Each rank
// owns a contiguous block of rows and contributes its block of the
// input vector to the gathered copy.
//
// Values below 1 fall back to a single rank.
func WithProcesses(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.processes = n
		}
	}
}

// WithDevice pins the kernel backend instead of auto-detecting it.
func WithDevice(kind DeviceKind) Option {
	return func(o *options) {
		o.deviceKind = kind
	}
}

// WithDeviceUnits configures how many units a pool device runs.
// Defaults to GOMAXPROCS. Ignored for serial devices.
func WithDeviceUnits(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.deviceUnits = n
		}
	}
}

// WithMemoryLimit caps the bytes an operator may reserve for its term
// tables and gather buffer. Builds that would exceed the cap fail with
// ErrMemoryLimit instead of blocking. Non-positive means unlimited.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithIORateLimit caps snapshot IO throughput in bytes per second.
// Non-positive means unthrottled.
func WithIORateLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioRate = bytesPerSec
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &spinshell.BasicMetricsCollector{}
//	op, _ := spinshell.FromTerms(terms).
//	    Subspace(sub).
//	    Metrics(metrics).
//	    Build()
//	// ... use op ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets
// it. Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		processes: 1,
		metrics:   NoopMetricsCollector{},
		logger:    NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

// newDevice builds the kernel backend the options describe.
func (o *options) newDevice() (device.Device, error) {
	switch o.deviceKind {
	case DeviceAuto:
		if o.deviceUnits > 0 && device.DefaultKind() == device.KindPool {
			return device.NewPool(o.deviceUnits), nil
		}
		return device.New(), nil
	case DeviceSerial:
		return device.NewSerial(), nil
	case DevicePool:
		return device.NewPool(o.deviceUnits), nil
	default:
		return nil, fmt.Errorf("spinshell: unknown device kind %d", o.deviceKind)
	}
}
