package subspace

import (
	"math/bits"
)

// SpinflipSector selects the optional global spin-flip folding of a
// half-filled magnetization sector. The numeric values are the sign the
// folded amplitude picks up, so StateToIdx can return the sector value
// directly when it folds a state onto its complement's representative.
type SpinflipSector int

const (
	// SpinflipNone disables folding.
	SpinflipNone SpinflipSector = 0
	// SpinflipPlus keeps the symmetric combinations.
	SpinflipPlus SpinflipSector = 1
	// SpinflipMinus keeps the antisymmetric combinations.
	SpinflipMinus SpinflipSector = -1
)

// SpinConserveOption configures optional sector foldings.
type SpinConserveOption func(*spinConserveOptions)

type spinConserveOptions struct {
	flip SpinflipSector
}

// WithSpinflip folds the sector over the global spin-flip symmetry.
// Folding requires half filling (spins == 2*filling).
func WithSpinflip(sector SpinflipSector) SpinConserveOption {
	return func(o *spinConserveOptions) {
		o.flip = sector
	}
}

// SpinConserve is the fixed-magnetization sector: all states with
// exactly k down spins, enumerated in ascending integer order. The
// index of a state is its combinatorial (colexicographic) rank
//
//	rank(s) = sum over set bits p_1 < p_2 < ... of C(p_j, j)
//
// computed from a precomputed binomial table, and unranking greedily
// inverts it.
//
// With spinflip folding enabled the basis pairs every state with its
// bitwise complement and keeps the states with the top chain bit clear
// as representatives. Complement ranks mirror: rank(^s) equals
// C(spins, k) - 1 - rank(s), so representatives occupy exactly the
// first half of the unfolded ranks and keep their rank as folded index.
type SpinConserve struct {
	spins  int
	k      int
	flip   SpinflipSector
	dim    int64
	choose [][]int64 // choose[n][j] = C(n, j), n <= spins, j <= k
}

// NewSpinConserve returns the sector with k down spins on the given
// chain length.
func NewSpinConserve(spins, k int, opts ...SpinConserveOption) (*SpinConserve, error) {
	if err := checkSpins(spins); err != nil {
		return nil, err
	}
	if k < 0 || k > spins {
		return nil, ErrFilling
	}

	var o spinConserveOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.flip != SpinflipNone && spins != 2*k {
		return nil, ErrSpinflip
	}

	s := &SpinConserve{
		spins:  spins,
		k:      k,
		flip:   o.flip,
		choose: binomialTable(spins, k),
	}
	s.dim = s.choose[spins][k]
	if s.flip != SpinflipNone {
		s.dim /= 2
	}
	return s, nil
}

// Spins returns the chain length.
func (s *SpinConserve) Spins() int { return s.spins }

// Filling returns the number of down spins in the sector.
func (s *SpinConserve) Filling() int { return s.k }

// Spinflip returns the folding sector, SpinflipNone when unfolded.
func (s *SpinConserve) Spinflip() SpinflipSector { return s.flip }

// Dim returns C(spins, k), halved under spinflip folding.
func (s *SpinConserve) Dim() int64 { return s.dim }

// StateToIdx ranks the state within the sector. Under folding, states
// with the top chain bit set are mapped onto their complement and the
// returned sign is the folding sector's.
func (s *SpinConserve) StateToIdx(state uint64) (int64, int) {
	if state>>uint(s.spins) != 0 || bits.OnesCount64(state) != s.k {
		return NotFound, 0
	}
	sign := 1
	if s.flip != SpinflipNone && state>>uint(s.spins-1) != 0 {
		state = ^state & (1<<uint(s.spins) - 1)
		sign = int(s.flip)
	}
	return s.rank(state), sign
}

// IdxToState unranks the index; under folding it yields the
// representative, which has the top chain bit clear.
func (s *SpinConserve) IdxToState(idx int64) uint64 {
	var state uint64
	rem := idx
	p := s.spins - 1
	for j := s.k; j >= 1; j-- {
		for s.choose[p][j] > rem {
			p--
		}
		rem -= s.choose[p][j]
		state |= 1 << uint(p)
		p--
	}
	return state
}

// MayAlias reports whether folding maps complements onto one index.
func (s *SpinConserve) MayAlias() bool { return s.flip != SpinflipNone }

// StableBits returns 0; combinatorial ranks shift globally under any
// bit flip.
func (s *SpinConserve) StableBits() int { return 0 }

func (s *SpinConserve) rank(state uint64) int64 {
	var r int64
	j := 0
	for state != 0 {
		p := bits.TrailingZeros64(state)
		state &= state - 1
		j++
		r += s.choose[p][j]
	}
	return r
}

// binomialTable tabulates C(n, j) for n <= spins, j <= k by the Pascal
// recurrence. All entries fit int64 for chains up to 63 spins.
func binomialTable(spins, k int) [][]int64 {
	t := make([][]int64, spins+1)
	for n := range t {
		t[n] = make([]int64, k+1)
		t[n][0] = 1
		for j := 1; j <= min(n, k); j++ {
			t[n][j] = t[n-1][j-1] + t[n-1][j]
		}
	}
	return t
}
