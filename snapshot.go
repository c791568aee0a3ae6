package spinshell

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/hupe1980/spinshell/internal/resource"
	"github.com/hupe1980/spinshell/msc"
)

// meteredWriter throttles and counts snapshot bytes on their way out.
type meteredWriter struct {
	ctx   context.Context
	alloc *resource.Allocator
	w     io.Writer
	n     int64
}

func (m *meteredWriter) Write(p []byte) (int, error) {
	if err := m.alloc.WaitIO(m.ctx, len(p)); err != nil {
		return 0, err
	}
	n, err := m.w.Write(p)
	m.n += int64(n)
	return n, err
}

// meteredReader is the inbound twin of meteredWriter.
type meteredReader struct {
	ctx   context.Context
	alloc *resource.Allocator
	r     io.Reader
	n     int64
}

func (m *meteredReader) Read(p []byte) (int, error) {
	n, err := m.r.Read(p)
	m.n += int64(n)
	if n > 0 {
		if werr := m.alloc.WaitIO(m.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}

// WriteEncoding writes the operator's encoding to w in the snapshot
// container format, honoring the operator's IO rate limit.
func (op *Operator) WriteEncoding(ctx context.Context, w io.Writer, codec msc.Compression) error {
	start := time.Now()
	if op.closed.Load() {
		op.metrics.RecordSnapshot("save", 0, time.Since(start), ErrClosed)
		return ErrClosed
	}

	mw := &meteredWriter{ctx: ctx, alloc: op.alloc, w: w}
	err := msc.Encode(mw, op.enc, op.spins, codec)
	op.metrics.RecordSnapshot("save", mw.n, time.Since(start), err)
	return err
}

// SaveEncoding writes the operator's encoding to a file. The write goes
// through a same-directory temp file and a rename, so a crash never
// leaves a truncated snapshot behind.
func (op *Operator) SaveEncoding(ctx context.Context, filename string, codec msc.Compression) error {
	err := saveAtomically(filename, func(w io.Writer) error {
		return op.WriteEncoding(ctx, w, codec)
	})
	op.logger.LogSnapshot(ctx, "save", filename, err)
	return err
}

// LoadEncoding reads an encoding snapshot from a file and returns the
// encoding and the chain length it was validated against.
//
// Options:
//   - WithIORateLimit: throttle the read.
//   - WithLogger, WithMetricsCollector: observe the load.
func LoadEncoding(ctx context.Context, filename string, optFns ...Option) (*msc.Encoding, int, error) {
	start := time.Now()
	opts := applyOptions(optFns)
	alloc := resource.NewAllocator(0, resource.WithIORate(opts.ioRate))

	f, err := os.Open(filename)
	if err != nil {
		opts.metrics.RecordSnapshot("load", 0, time.Since(start), err)
		opts.logger.LogSnapshot(ctx, "load", filename, err)
		return nil, 0, err
	}
	defer f.Close()

	mr := &meteredReader{ctx: ctx, alloc: alloc, r: bufio.NewReaderSize(f, 256*1024)}
	enc, spins, err := msc.Decode(mr)
	opts.metrics.RecordSnapshot("load", mr.n, time.Since(start), err)
	opts.logger.LogSnapshot(ctx, "load", filename, err)
	return enc, spins, err
}

// saveAtomically writes through a temp file in the target's directory
// and renames it into place.
func saveAtomically(filename string, writeFunc func(io.Writer) error) error {
	dir := filepath.Dir(filename)
	base := filepath.Base(filename)

	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	// Match typical file permissions (best-effort).
	_ = tmp.Chmod(0644)

	buf := bufio.NewWriterSize(tmp, 256*1024)
	if err := writeFunc(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpName, filename); err != nil {
		return err
	}

	// Best-effort: fsync the directory so the rename is durable on POSIX.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	tmpName = ""
	return nil
}
