// Package shell executes matrix-free operator kernels.
//
// A Context freezes one operator for a fixed pair of subspaces: the
// encoding's term tables are copied into kernel layout, the masks are
// partitioned into rank-local and global halves, the subspace mappings
// are bound once as function values, and the gather collective is
// allocated if any mask needs remote amplitudes. After Build the
// context is immutable except for the output vectors it writes, which
// is what makes concurrent row kernels safe without locks.
//
// The kernel layout differs from the canonical encoding in two ways.
// Masks are reordered local-first, so both multiply passes iterate a
// contiguous mask range. Within each mask group the real-classified
// terms precede the imaginary ones, and only the nonzero coefficient
// half is stored; the class boundary replaces a per-term flag and the
// table stays half the size of complex storage.
//
// Lifecycle is build once, use, destroy once: a destroyed context
// rejects every operation, and destroying twice is a no-op. Destroy
// only returns the memory reservation; the device and rank group are
// borrowed from the caller, who owns their lifetime.
package shell

import (
	"errors"
	"fmt"
	"log/slog"
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/spinshell/internal/comm"
	"github.com/hupe1980/spinshell/internal/device"
	"github.com/hupe1980/spinshell/internal/resource"
	"github.com/hupe1980/spinshell/msc"
	"github.com/hupe1980/spinshell/subspace"
)

var (
	// ErrDestroyed is returned by operations on a destroyed context.
	ErrDestroyed = errors.New("shell: context destroyed")
	// ErrAliasedVectors is returned when a multiply's input and output
	// share backing storage.
	ErrAliasedVectors = errors.New("shell: input and output vectors alias")
)

// DimensionError reports a vector length that does not match the
// operator shape.
type DimensionError struct {
	Side string // "input" or "output"
	Want int64
	Got  int64
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("shell: %s vector has %d rows, operator wants %d", e.Side, e.Got, e.Want)
}

// Config assembles everything a context freezes at build time. Left and
// Right are required; zero values elsewhere get working defaults (one
// rank, serial device, untracked memory, discarded logs).
type Config struct {
	// Encoding is the operator in canonical form. It is validated
	// against the subspaces' chain length and copied; the caller's
	// arrays are not retained.
	Encoding *msc.Encoding

	// Left indexes the output rows, Right the input columns.
	Left, Right subspace.Subspace

	// Group supplies the rank layout.
	Group *comm.Group

	// Device runs the row kernels.
	Device device.Device

	// Allocator charges the context's buffers against a budget.
	Allocator *resource.Allocator

	// Logger receives build and destroy diagnostics.
	Logger *slog.Logger
}

// Context is a built operator bound to its subspaces and runtime.
type Context struct {
	spins int
	left  subspace.Subspace
	right subspace.Subspace

	group *comm.Group
	dev   device.Device
	alloc *resource.Allocator
	log   *slog.Logger

	// Kernel tables: masks local-first, each group's real-class terms
	// before its imaginary-class ones.
	masks     []uint64
	groupOff  []int
	realCount []int
	signs     []uint64
	coeffHalf []float64
	numLocal  int

	// Mappings bound once so the row loops skip interface dispatch.
	leftI2S  func(int64) uint64
	rightS2I func(uint64) (int64, int)

	gather   *comm.AllGather
	reserved int64

	// One multiply at a time; rounds of the gather collective must not
	// overlap.
	mu        sync.Mutex
	destroyed atomic.Bool

	normOnce sync.Once
	normVal  float64
	normErr  error
}

// Build validates the configuration and freezes a context.
func Build(cfg Config) (*Context, error) {
	if cfg.Encoding == nil {
		return nil, errors.New("shell: config needs an encoding")
	}
	if cfg.Left == nil || cfg.Right == nil {
		return nil, errors.New("shell: config needs both subspaces")
	}
	spins := cfg.Left.Spins()
	if rs := cfg.Right.Spins(); rs != spins {
		return nil, fmt.Errorf("shell: left subspace has %d spins, right %d", spins, rs)
	}
	if err := cfg.Encoding.Validate(spins); err != nil {
		return nil, err
	}

	c := &Context{
		spins: spins,
		left:  cfg.Left,
		right: cfg.Right,
		group: cfg.Group,
		dev:   cfg.Device,
		alloc: cfg.Allocator,
		log:   cfg.Logger,
	}
	if c.group == nil {
		c.group, _ = comm.NewGroup(1)
	}
	if c.dev == nil {
		c.dev = device.NewSerial()
	}
	if c.alloc == nil {
		c.alloc = resource.NewAllocator(0)
	}
	if c.log == nil {
		c.log = slog.New(slog.DiscardHandler)
	}
	c.leftI2S = cfg.Left.IdxToState
	c.rightS2I = cfg.Right.StateToIdx

	c.buildTables(cfg.Encoding)

	bytes := c.tableBytes()
	needGather := c.group.Size() > 1 && c.numLocal < len(c.masks)
	if needGather {
		bytes += c.right.Dim() * 16
	}
	if err := c.alloc.Reserve(bytes); err != nil {
		return nil, err
	}
	c.reserved = bytes
	if needGather {
		c.gather = c.group.NewAllGather(c.right.Dim())
	}

	c.log.Debug("shell context built",
		slog.Int64("rows", c.left.Dim()),
		slog.Int64("cols", c.right.Dim()),
		slog.Int("masks", len(c.masks)),
		slog.Int("masks_local", c.numLocal),
		slog.Int("terms", len(c.signs)),
		slog.Int("ranks", c.group.Size()),
		slog.String("device", c.dev.Name()),
		slog.Int64("reserved_bytes", c.reserved),
	)
	return c, nil
}

// buildTables copies the encoding into kernel layout: local masks
// first, and real-class terms ahead of imaginary-class ones inside
// every group.
func (c *Context) buildTables(e *msc.Encoding) {
	useBits := c.localBits()
	isLocal := func(m uint64) bool {
		return useBits >= 0 && m>>uint(useBits) == 0
	}

	order := make([]int, 0, e.NumMasks())
	for i, m := range e.Masks {
		if isLocal(m) {
			order = append(order, i)
		}
	}
	c.numLocal = len(order)
	for i, m := range e.Masks {
		if !isLocal(m) {
			order = append(order, i)
		}
	}

	c.masks = make([]uint64, 0, e.NumMasks())
	c.groupOff = make([]int, 1, e.NumMasks()+1)
	c.realCount = make([]int, 0, e.NumMasks())
	c.signs = make([]uint64, 0, e.NumTerms())
	c.coeffHalf = make([]float64, 0, e.NumTerms())

	for _, mi := range order {
		mask := e.Masks[mi]
		signs, coeffs := e.TermsForMask(mi)

		c.masks = append(c.masks, mask)
		nreal := 0
		for pass := 0; pass < 2; pass++ {
			for t, s := range signs {
				if msc.TermIsReal(mask, s) != (pass == 0) {
					continue
				}
				c.signs = append(c.signs, s)
				if pass == 0 {
					c.coeffHalf = append(c.coeffHalf, real(coeffs[t]))
					nreal++
				} else {
					c.coeffHalf = append(c.coeffHalf, imag(coeffs[t]))
				}
			}
		}
		c.realCount = append(c.realCount, nreal)
		c.groupOff = append(c.groupOff, len(c.signs))
	}
}

// localBits returns how many low mask bits keep a flipped column inside
// the flipping rank's own block; a mask is rank-local when it fits in
// that many bits. It returns -1 when no mask is local: with a
// rectangular operator row and column ownership follow different
// dimensions, so even the identity mask crosses ranks.
func (c *Context) localBits() int {
	if c.group.Size() == 1 {
		return c.spins
	}
	if c.left.Dim() != c.right.Dim() {
		return -1
	}
	useBits := min(c.left.StableBits(), c.right.StableBits())
	for _, b := range c.group.Boundaries(c.left.Dim())[1 : c.group.Size()] {
		if b == 0 {
			continue
		}
		useBits = min(useBits, bits.TrailingZeros64(uint64(b)))
	}
	return useBits
}

func (c *Context) tableBytes() int64 {
	return int64(len(c.masks))*8 +
		int64(len(c.groupOff))*8 +
		int64(len(c.realCount))*8 +
		int64(len(c.signs))*8 +
		int64(len(c.coeffHalf))*8
}

// Dims returns the operator shape: output rows and input columns.
func (c *Context) Dims() (rows, cols int64) {
	return c.left.Dim(), c.right.Dim()
}

// Stats describes a built context for logs and tests.
type Stats struct {
	Rows, Cols     int64
	Masks          int
	MasksLocal     int
	Terms          int
	Ranks          int
	Device         string
	ReservedBytes  int64
	GatherRequired bool
}

// Stats returns the context's build-time facts.
func (c *Context) Stats() Stats {
	return Stats{
		Rows:           c.left.Dim(),
		Cols:           c.right.Dim(),
		Masks:          len(c.masks),
		MasksLocal:     c.numLocal,
		Terms:          len(c.signs),
		Ranks:          c.group.Size(),
		Device:         c.dev.Name(),
		ReservedBytes:  c.reserved,
		GatherRequired: c.gather != nil,
	}
}

// Destroy releases the context's memory reservation and invalidates it.
// Destroying twice is a no-op.
func (c *Context) Destroy() error {
	if !c.destroyed.CompareAndSwap(false, true) {
		return nil
	}
	// An in-flight multiply holds the lock; wait it out before the
	// tables go away.
	c.mu.Lock()
	defer c.mu.Unlock()

	c.alloc.Release(c.reserved)
	c.reserved = 0
	c.masks = nil
	c.groupOff = nil
	c.realCount = nil
	c.signs = nil
	c.coeffHalf = nil
	c.gather = nil

	c.log.Debug("shell context destroyed")
	return nil
}
