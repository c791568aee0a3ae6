package testutil

import (
	"math"
	"math/rand"
	"sync"

	"github.com/hupe1980/spinshell/msc"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// NormFloat64 returns a standard normal pseudo-random number.
func (r *RNG) NormFloat64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.NormFloat64()
}

// FillState fills dst with Gaussian amplitudes and normalizes the
// result to unit length.
// Locks only once per call (preferred over drawing in a loop).
func (r *RNG) FillState(dst []complex128) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var norm float64
	for i := range dst {
		re, im := r.rand.NormFloat64(), r.rand.NormFloat64()
		dst[i] = complex(re, im)
		norm += re*re + im*im
	}

	if norm == 0 {
		norm = 1 // Avoid division by zero, though unlikely with floats
	}

	scale := complex(1/math.Sqrt(norm), 0)
	for i := range dst {
		dst[i] *= scale
	}
}

// State returns a fresh normalized random state of the given dimension.
func (r *RNG) State(dim int64) []complex128 {
	dst := make([]complex128, dim)
	r.FillState(dst)
	return dst
}

// HeisenbergChain returns nearest-neighbor XX+YY+ZZ couplings on an
// open chain of the given length.
func HeisenbergChain(spins int) []msc.Term {
	terms := make([]msc.Term, 0, 3*(spins-1))
	for i := 0; i < spins-1; i++ {
		terms = append(terms,
			msc.X(i).Mul(msc.X(i+1)),
			msc.Y(i).Mul(msc.Y(i+1)),
			msc.Z(i).Mul(msc.Z(i+1)),
		)
	}
	return terms
}

// IsingChain returns nearest-neighbor ZZ couplings with a transverse
// field of the given strength on every site.
func IsingChain(spins int, field float64) []msc.Term {
	terms := make([]msc.Term, 0, 2*spins-1)
	for i := 0; i < spins-1; i++ {
		terms = append(terms, msc.Z(i).Mul(msc.Z(i+1)))
	}
	for i := 0; i < spins; i++ {
		terms = append(terms, msc.X(i).Scale(complex(field, 0)))
	}
	return terms
}

// LongRangeXY returns XX+YY couplings between every pair of sites with
// power-law strength 1/|i-j|^alpha. Every mask touches distant sites,
// which defeats rank locality and exercises the gather path.
func LongRangeXY(spins int, alpha float64) []msc.Term {
	var terms []msc.Term
	for i := 0; i < spins; i++ {
		for j := i + 1; j < spins; j++ {
			c := complex(math.Pow(float64(j-i), -alpha), 0)
			terms = append(terms,
				msc.X(i).Mul(msc.X(j)).Scale(c),
				msc.Y(i).Mul(msc.Y(j)).Scale(c),
			)
		}
	}
	return terms
}
