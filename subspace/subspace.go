// Package subspace maps between bit-encoded spin configurations and the
// dense indices of a symmetry sector.
//
// A basis state is a uint64 whose bit i is spin i (0 = up). Each
// subspace variant enumerates the states of one sector and numbers them
// 0..Dim()-1. The analytic variants (Full, Parity, SpinConserve) convert
// in O(1) or O(popcount) closed form; Explicit carries a caller-supplied
// state list and falls back to rank-select or hash lookup.
//
// The mappings are pure and safe for concurrent use once constructed.
// Index-to-state trusts its argument to be in range, matching its use
// inside row loops; state-to-index is total and reports NotFound.
package subspace

import "errors"

// NotFound is returned by StateToIdx for states outside the subspace.
const NotFound int64 = -1

var (
	// ErrChainLength reports a chain length outside [1, 63].
	ErrChainLength = errors.New("subspace: chain length outside [1, 63]")
	// ErrFilling reports a spin-conserve filling outside [0, spins].
	ErrFilling = errors.New("subspace: filling outside chain")
	// ErrSpinflip reports spinflip folding requested away from half filling.
	ErrSpinflip = errors.New("subspace: spinflip requires half filling")
	// ErrStateList reports an unusable explicit state list.
	ErrStateList = errors.New("subspace: bad explicit state list")
)

// Subspace converts between basis states and dense sector indices.
type Subspace interface {
	// Spins returns the chain length the subspace is defined on.
	Spins() int

	// Dim returns the number of basis states in the sector.
	Dim() int64

	// StateToIdx returns the dense index of a basis state and the sign
	// the state's amplitude picks up under the mapping. States outside
	// the sector return (NotFound, 0); unfolded variants always return
	// sign +1.
	StateToIdx(state uint64) (int64, int)

	// IdxToState returns the basis state at a dense index. The index
	// must be in [0, Dim); out-of-range indices are not detected.
	IdxToState(idx int64) uint64

	// MayAlias reports whether StateToIdx is many-to-one, in which case
	// concurrent writers scattering into an output vector must
	// accumulate atomically.
	MayAlias() bool

	// StableBits returns how many low state bits pass through to the
	// index unchanged. Flipping only such bits moves an index within an
	// aligned block of size 2^StableBits, which the multiply engine
	// uses to classify masks as rank-local.
	StableBits() int
}

// Equal reports whether two subspaces enumerate the same states in the
// same order. It compares the full index-to-state sequence, so it is
// meant for validation and tests, not hot paths.
func Equal(a, b Subspace) bool {
	if a == b {
		return true
	}
	if a.Spins() != b.Spins() || a.Dim() != b.Dim() {
		return false
	}
	for i := int64(0); i < a.Dim(); i++ {
		if a.IdxToState(i) != b.IdxToState(i) {
			return false
		}
	}
	return true
}

func checkSpins(spins int) error {
	if spins < 1 || spins > 63 {
		return ErrChainLength
	}
	return nil
}
