package shell

import (
	"context"
	"math"
	"math/bits"
	"sync/atomic"
	"unsafe"

	"github.com/hupe1980/spinshell/subspace"
)

// Multiply computes y = A*x. Both vectors are caller-owned; y is fully
// overwritten and x is only read. The call runs one collective round,
// so concurrent multiplies on the same context serialize.
func (c *Context) Multiply(ctx context.Context, y, x []complex128) error {
	if c.destroyed.Load() {
		return ErrDestroyed
	}
	rows, cols := c.Dims()
	if int64(len(y)) != rows {
		return &DimensionError{Side: "output", Want: rows, Got: int64(len(y))}
	}
	if int64(len(x)) != cols {
		return &DimensionError{Side: "input", Want: cols, Got: int64(len(x))}
	}
	if len(y) > 0 && len(x) > 0 && &y[0] == &x[0] {
		return ErrAliasedVectors
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed.Load() {
		return ErrDestroyed
	}

	add := plainAdd
	if c.right.MayAlias() {
		add = atomicAdd
	}

	if c.gather != nil {
		c.gather.Begin()
	}
	return c.group.ForEachRank(ctx, func(ctx context.Context, rank int) error {
		lo, hi := c.group.Range(rows, rank)

		// Publish the owned input block before the local pass so no
		// rank waits on a slow neighbor longer than it has to.
		if c.gather != nil {
			clo, chi := c.group.Range(cols, rank)
			c.gather.Contribute(rank, x[clo:chi])
		}

		// Local masks stay inside the owned rows; this pass also
		// initializes y, so it runs even when every mask is global.
		err := c.dev.Launch(ctx, lo, hi, func(_ int, blo, bhi int64) {
			c.localRows(y, x, blo, bhi)
		})
		if err != nil {
			return err
		}
		if c.gather == nil {
			return nil
		}

		if err := c.gather.Wait(ctx); err != nil {
			return err
		}
		xall := c.gather.Full()
		return c.dev.Launch(ctx, lo, hi, func(_ int, blo, bhi int64) {
			c.globalRows(y, xall, blo, bhi, add)
		})
	})
}

// localRows stores each owned row's contribution from the local masks.
// The store doubles as the zeroing of y.
func (c *Context) localRows(y, x []complex128, lo, hi int64) {
	for r := lo; r < hi; r++ {
		state := c.leftI2S(r)
		var acc complex128
		for mi := 0; mi < c.numLocal; mi++ {
			acc += c.maskEntry(mi, state, x)
		}
		y[r] = acc
	}
}

// globalRows accumulates the remaining masks from the gathered full
// input vector.
func (c *Context) globalRows(y, xall []complex128, lo, hi int64, add addFunc) {
	for r := lo; r < hi; r++ {
		state := c.leftI2S(r)
		var acc complex128
		for mi := c.numLocal; mi < len(c.masks); mi++ {
			acc += c.maskEntry(mi, state, xall)
		}
		if acc != 0 {
			add(&y[r], acc)
		}
	}
}

// maskEntry returns A[row, row^mask] * x[col] for one mask group, or
// zero when the flipped state leaves the input subspace. The sign
// parity is taken over the flipped state, and the fold sign reported by
// the input mapping transfers onto the amplitude.
func (c *Context) maskEntry(mi int, state uint64, x []complex128) complex128 {
	col := state ^ c.masks[mi]
	idx, fsign := c.rightS2I(col)
	if idx == subspace.NotFound {
		return 0
	}
	sumRe, sumIm := c.maskSums(mi, col)
	xv := x[idx]
	if fsign < 0 {
		xv = -xv
	}
	return complex(sumRe, sumIm) * xv
}

// maskSums totals one mask group's signed coefficient halves at the
// given column state: real-class terms into the real part, imaginary
// ones into the imaginary part.
func (c *Context) maskSums(mi int, col uint64) (sumRe, sumIm float64) {
	start, end := c.groupOff[mi], c.groupOff[mi+1]
	mid := start + c.realCount[mi]
	for t := start; t < mid; t++ {
		v := c.coeffHalf[t]
		if parityOdd(col & c.signs[t]) {
			v = -v
		}
		sumRe += v
	}
	for t := mid; t < end; t++ {
		v := c.coeffHalf[t]
		if parityOdd(col & c.signs[t]) {
			v = -v
		}
		sumIm += v
	}
	return sumRe, sumIm
}

func parityOdd(v uint64) bool {
	return bits.OnesCount64(v)&1 == 1
}

// addFunc accumulates a contribution into an output element.
type addFunc func(p *complex128, v complex128)

func plainAdd(p *complex128, v complex128) {
	*p += v
}

// atomicAdd accumulates with compare-and-swap per float half. A
// complex128 is two contiguous float64s, so the halves can race
// independently without tearing either one.
func atomicAdd(p *complex128, v complex128) {
	u := (*[2]uint64)(unsafe.Pointer(p))
	atomicAddFloat(&u[0], real(v))
	atomicAddFloat(&u[1], imag(v))
}

func atomicAddFloat(p *uint64, v float64) {
	for {
		old := atomic.LoadUint64(p)
		next := math.Float64bits(math.Float64frombits(old) + v)
		if atomic.CompareAndSwapUint64(p, old, next) {
			return
		}
	}
}
