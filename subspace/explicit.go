package subspace

import (
	"fmt"
	"slices"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// Explicit is a sector given by a caller-supplied state list. The list
// order defines the index order, so an Explicit subspace can reproduce
// any enumeration, including ones no analytic variant covers.
//
// Ascending lists get a compressed rank-select index for StateToIdx;
// arbitrary orders fall back to a hash map. Building the list itself is
// the caller's job and dominates construction cost for large sectors,
// so generators should emit states in ascending order when they can.
type Explicit struct {
	spins  int
	states []uint64
	ranks  *roaring64.Bitmap // ascending lists only
	lookup map[uint64]int64  // arbitrary orders
}

// NewExplicit returns the sector enumerating exactly the given states
// in the given order. The list must be non-empty, free of duplicates
// and within the chain; it is cloned, not retained.
func NewExplicit(spins int, states []uint64) (*Explicit, error) {
	return newExplicit(spins, slices.Clone(states))
}

func newExplicit(spins int, states []uint64) (*Explicit, error) {
	if err := checkSpins(spins); err != nil {
		return nil, err
	}
	if len(states) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrStateList)
	}
	for i, s := range states {
		if s>>uint(spins) != 0 {
			return nil, fmt.Errorf("%w: state %#x at %d exceeds %d spins", ErrStateList, s, i, spins)
		}
	}

	e := &Explicit{spins: spins, states: states}
	if slices.IsSorted(states) {
		e.ranks = roaring64.New()
		e.ranks.AddMany(states)
		if int64(e.ranks.GetCardinality()) != int64(len(states)) {
			return nil, fmt.Errorf("%w: duplicate states", ErrStateList)
		}
	} else {
		e.lookup = make(map[uint64]int64, len(states))
		for i, s := range states {
			if _, dup := e.lookup[s]; dup {
				return nil, fmt.Errorf("%w: duplicate state %#x", ErrStateList, s)
			}
			e.lookup[s] = int64(i)
		}
	}
	return e, nil
}

// FromSubspace materializes any subspace as an Explicit one with the
// same enumeration, mainly to validate analytic index arithmetic
// against plain lookups.
func FromSubspace(s Subspace) (*Explicit, error) {
	states := make([]uint64, s.Dim())
	for i := range states {
		states[i] = s.IdxToState(int64(i))
	}
	return newExplicit(s.Spins(), states)
}

// Spins returns the chain length.
func (e *Explicit) Spins() int { return e.spins }

// Dim returns the number of listed states.
func (e *Explicit) Dim() int64 { return int64(len(e.states)) }

// StateToIdx looks the state up by rank-select or hash, depending on
// the list order.
func (e *Explicit) StateToIdx(state uint64) (int64, int) {
	if e.ranks != nil {
		if !e.ranks.Contains(state) {
			return NotFound, 0
		}
		return int64(e.ranks.Rank(state)) - 1, 1
	}
	idx, ok := e.lookup[state]
	if !ok {
		return NotFound, 0
	}
	return idx, 1
}

// IdxToState returns the listed state at the index.
func (e *Explicit) IdxToState(idx int64) uint64 { return e.states[idx] }

// MayAlias reports false; the list maps states one-to-one.
func (e *Explicit) MayAlias() bool { return false }

// StableBits returns 0; an arbitrary list promises no index structure.
func (e *Explicit) StableBits() int { return 0 }
