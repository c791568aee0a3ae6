package shell

import (
	"context"
	"math"

	"github.com/hupe1980/spinshell/subspace"
)

// InfinityNorm returns the operator's infinity norm, the largest
// absolute row sum. The first call computes it with a full kernel sweep
// and caches the outcome; later calls return the cached value, or the
// cached error if that sweep failed.
//
// Row sums need no amplitudes, so the sweep runs without a collective:
// every rank totals its own rows over the full mask table and the rank
// maxima reduce at the end.
func (c *Context) InfinityNorm(ctx context.Context) (float64, error) {
	if c.destroyed.Load() {
		return 0, ErrDestroyed
	}
	c.normOnce.Do(func() {
		c.normVal, c.normErr = c.computeInfinityNorm(ctx)
	})
	return c.normVal, c.normErr
}

func (c *Context) computeInfinityNorm(ctx context.Context) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed.Load() {
		return 0, ErrDestroyed
	}

	rows, _ := c.Dims()
	rankMax := make([]float64, c.group.Size())
	err := c.group.ForEachRank(ctx, func(ctx context.Context, rank int) error {
		lo, hi := c.group.Range(rows, rank)
		unitMax := make([]float64, c.dev.Units())
		err := c.dev.Launch(ctx, lo, hi, func(unit int, blo, bhi int64) {
			unitMax[unit] = c.rowSumMax(blo, bhi)
		})
		if err != nil {
			return err
		}
		for _, m := range unitMax {
			rankMax[rank] = math.Max(rankMax[rank], m)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	var norm float64
	for _, m := range rankMax {
		norm = math.Max(norm, m)
	}
	return norm, nil
}

// rowSumMax returns the largest absolute row sum over a row block.
// Masks whose flipped state leaves the input subspace contribute
// nothing; a fold sign never changes an entry's magnitude.
func (c *Context) rowSumMax(lo, hi int64) float64 {
	var best float64
	for r := lo; r < hi; r++ {
		state := c.leftI2S(r)
		var total float64
		for mi := range c.masks {
			col := state ^ c.masks[mi]
			if idx, _ := c.rightS2I(col); idx == subspace.NotFound {
				continue
			}
			sumRe, sumIm := c.maskSums(mi, col)
			total += math.Hypot(sumRe, sumIm)
		}
		if total > best {
			best = total
		}
	}
	return best
}
