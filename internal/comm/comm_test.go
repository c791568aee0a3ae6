package comm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRangePartition(t *testing.T) {
	for size := 1; size <= 5; size++ {
		g, err := NewGroup(size)
		require.NoError(t, err)

		for _, dim := range []int64{1, 7, 16, 100} {
			var prev int64
			var smallest, largest int64 = dim, 0
			for rank := 0; rank < size; rank++ {
				lo, hi := g.Range(dim, rank)
				assert.Equal(t, prev, lo, "size=%d dim=%d rank=%d", size, dim, rank)
				assert.LessOrEqual(t, lo, hi)
				prev = hi

				count := hi - lo
				smallest = min(smallest, count)
				largest = max(largest, count)
			}
			assert.Equal(t, dim, prev, "ranges must cover the dimension")
			assert.LessOrEqual(t, largest-smallest, int64(1), "block sizes must differ by at most one")
		}
	}
}

func TestBoundaries(t *testing.T) {
	g, err := NewGroup(3)
	require.NoError(t, err)

	assert.Equal(t, []int64{0, 4, 7, 10}, g.Boundaries(10))
	assert.Equal(t, []int64{0, 1, 2, 2}, g.Boundaries(2))
}

func TestNewGroupRejectsEmpty(t *testing.T) {
	_, err := NewGroup(0)
	assert.Error(t, err)
}

func TestAllGatherAssemblesRounds(t *testing.T) {
	g, err := NewGroup(3)
	require.NoError(t, err)
	const dim = 10
	ag := g.NewAllGather(dim)
	assert.Equal(t, int64(dim*16), ag.Bytes())

	// Two rounds over the same buffer, with round-dependent data to
	// prove reuse does not leak stale entries.
	for round := 0; round < 2; round++ {
		ag.Begin()
		err := g.ForEachRank(context.Background(), func(ctx context.Context, rank int) error {
			lo, hi := g.Range(dim, rank)
			owned := make([]complex128, hi-lo)
			for i := range owned {
				owned[i] = complex(float64(lo+int64(i)), float64(round))
			}
			ag.Contribute(rank, owned)
			if err := ag.Wait(ctx); err != nil {
				return err
			}

			// After the barrier every rank sees the whole vector.
			full := ag.Full()
			for i := int64(0); i < dim; i++ {
				if full[i] != complex(float64(i), float64(round)) {
					return errors.New("incomplete gather")
				}
			}
			return nil
		})
		require.NoError(t, err)
	}
}

func TestAllGatherUnblocksOnRankFailure(t *testing.T) {
	g, err := NewGroup(2)
	require.NoError(t, err)
	ag := g.NewAllGather(8)
	boom := errors.New("boom")

	ag.Begin()
	err = g.ForEachRank(context.Background(), func(ctx context.Context, rank int) error {
		if rank == 0 {
			// Fails before contributing; rank 1 must not hang.
			return boom
		}
		lo, hi := g.Range(8, rank)
		ag.Contribute(rank, make([]complex128, hi-lo))
		return ag.Wait(ctx)
	})
	assert.Error(t, err)
}

func TestContributeRejectsWrongBlock(t *testing.T) {
	g, err := NewGroup(2)
	require.NoError(t, err)
	ag := g.NewAllGather(9)
	ag.Begin()

	assert.Panics(t, func() {
		ag.Contribute(0, make([]complex128, 3)) // rank 0 owns 5 rows
	})
}
