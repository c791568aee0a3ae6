// Package comm provides the rank layout and collective used by the
// shell kernels.
//
// A Group runs its ranks as goroutines inside one process, but the
// ownership arithmetic is the standard contiguous block distribution,
// so every index computation behaves exactly as it would across real
// processes and results cannot depend on the rank count. The one
// collective is AllGather: each rank deposits its owned slice of a
// vector into a shared full-length buffer and a barrier separates the
// deposits from the reads. Contexts keep their AllGather for their whole
// built lifetime, which is what makes the gather "one-time": the buffer
// is allocated once and every multiply reuses it.
package comm

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Group is a fixed-size set of cooperating ranks.
type Group struct {
	size int
}

// NewGroup returns a group of the given rank count.
func NewGroup(size int) (*Group, error) {
	if size < 1 {
		return nil, fmt.Errorf("comm: group size %d, want at least 1", size)
	}
	return &Group{size: size}, nil
}

// Size returns the rank count.
func (g *Group) Size() int { return g.size }

// Range returns the half-open row range owned by a rank under the
// contiguous block distribution: dim/size rows each, with the first
// dim%size ranks taking one extra.
func (g *Group) Range(dim int64, rank int) (lo, hi int64) {
	q := dim / int64(g.size)
	r := dim % int64(g.size)
	lo = int64(rank)*q + min(int64(rank), r)
	hi = lo + q
	if int64(rank) < r {
		hi++
	}
	return lo, hi
}

// Boundaries returns the size+1 ownership offsets of a dimension,
// starting at 0 and ending at dim.
func (g *Group) Boundaries(dim int64) []int64 {
	b := make([]int64, g.size+1)
	for rank := 0; rank < g.size; rank++ {
		_, hi := g.Range(dim, rank)
		b[rank+1] = hi
	}
	return b
}

// ForEachRank runs fn once per rank concurrently and returns the first
// error. The derived context is cancelled on failure so ranks blocked
// in a collective can bail out instead of waiting for a rank that will
// never arrive.
func (g *Group) ForEachRank(ctx context.Context, fn func(ctx context.Context, rank int) error) error {
	eg, ctx := errgroup.WithContext(ctx)
	for rank := 0; rank < g.size; rank++ {
		eg.Go(func() error {
			return fn(ctx, rank)
		})
	}
	return eg.Wait()
}

// AllGather assembles a full-length copy of a block-distributed vector.
// One round is: Begin, every rank Contribute, every rank Wait, then
// read Full. Rounds must not overlap; the shell context serializes
// multiplies for exactly that reason.
type AllGather struct {
	group *Group
	buf   []complex128

	mu      sync.Mutex
	pending int
	done    chan struct{}
}

// NewAllGather returns a collective over vectors of the given length.
// The full-length buffer is allocated here and reused for every round.
func (g *Group) NewAllGather(dim int64) *AllGather {
	return &AllGather{
		group: g,
		buf:   make([]complex128, dim),
	}
}

// Begin arms the barrier for the next round.
func (ag *AllGather) Begin() {
	ag.mu.Lock()
	ag.pending = ag.group.size
	ag.done = make(chan struct{})
	ag.mu.Unlock()
}

// Contribute deposits a rank's owned slice. The copy is the data
// movement a real deployment would put on the wire; afterwards the
// calling rank may keep computing until Wait.
func (ag *AllGather) Contribute(rank int, owned []complex128) {
	lo, hi := ag.group.Range(int64(len(ag.buf)), rank)
	if int64(len(owned)) != hi-lo {
		panic(fmt.Sprintf("comm: rank %d contributed %d rows, owns %d", rank, len(owned), hi-lo))
	}
	copy(ag.buf[lo:hi], owned)

	ag.mu.Lock()
	ag.pending--
	if ag.pending == 0 {
		close(ag.done)
	}
	ag.mu.Unlock()
}

// Wait blocks until every rank of the round has contributed, or until
// the context is cancelled because some rank failed.
func (ag *AllGather) Wait(ctx context.Context) error {
	ag.mu.Lock()
	done := ag.done
	ag.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Full returns the assembled vector. Valid only between a round's Wait
// and the next Begin.
func (ag *AllGather) Full() []complex128 { return ag.buf }

// Bytes returns the buffer footprint, for accounting against memory
// limits.
func (ag *AllGather) Bytes() int64 { return int64(len(ag.buf)) * 16 }
