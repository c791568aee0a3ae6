package subspace

import (
	"math/bits"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpinConserveEnumeration(t *testing.T) {
	s, err := NewSpinConserve(4, 2)
	require.NoError(t, err)

	assert.Equal(t, int64(6), s.Dim())
	assert.False(t, s.MayAlias())
	assert.Equal(t, 0, s.StableBits())

	// Ascending integer order of the 4-choose-2 states.
	want := []uint64{3, 5, 6, 9, 10, 12}
	for i, state := range want {
		assert.Equal(t, state, s.IdxToState(int64(i)))
		idx, sign := s.StateToIdx(state)
		assert.Equal(t, int64(i), idx)
		assert.Equal(t, 1, sign)
	}
}

func TestSpinConserveDimsMatchBinomials(t *testing.T) {
	// C(n, k) by direct product formula, small enough to stay exact.
	choose := func(n, k int) int64 {
		r := int64(1)
		for j := 1; j <= k; j++ {
			r = r * int64(n-k+j) / int64(j)
		}
		return r
	}

	for spins := 1; spins <= 10; spins++ {
		for k := 0; k <= spins; k++ {
			s, err := NewSpinConserve(spins, k)
			require.NoError(t, err)
			assert.Equal(t, choose(spins, k), s.Dim(), "L=%d k=%d", spins, k)
			roundTrip(t, s)
		}
	}
}

func TestSpinConserveRejectsOutsideStates(t *testing.T) {
	s, err := NewSpinConserve(6, 3)
	require.NoError(t, err)

	for _, state := range []uint64{0, 1, 0b111111, 0b110111, 1 << 6} {
		idx, sign := s.StateToIdx(state)
		assert.Equal(t, NotFound, idx, "state %#b", state)
		assert.Zero(t, sign)
	}
}

func TestSpinConserveRejectsBadFilling(t *testing.T) {
	_, err := NewSpinConserve(4, -1)
	assert.ErrorIs(t, err, ErrFilling)
	_, err = NewSpinConserve(4, 5)
	assert.ErrorIs(t, err, ErrFilling)
}

func TestComplementRankMirrors(t *testing.T) {
	// Folding leans on rank(^s) == C(L,k)-1-rank(s) at half filling.
	s, err := NewSpinConserve(6, 3)
	require.NoError(t, err)

	mask := uint64(1<<6 - 1)
	for i := int64(0); i < s.Dim(); i++ {
		state := s.IdxToState(i)
		ci, _ := s.StateToIdx(^state & mask)
		assert.Equal(t, s.Dim()-1-i, ci)
	}
}

func TestSpinflipFolding(t *testing.T) {
	for _, sector := range []SpinflipSector{SpinflipPlus, SpinflipMinus} {
		s, err := NewSpinConserve(4, 2, WithSpinflip(sector))
		require.NoError(t, err)

		assert.Equal(t, int64(3), s.Dim())
		assert.True(t, s.MayAlias())

		// Representatives have the top chain bit clear and keep their
		// unfolded rank.
		for i, want := range []uint64{3, 5, 6} {
			state := s.IdxToState(int64(i))
			assert.Equal(t, want, state)
			assert.Zero(t, state>>3, "representative with top bit set")

			idx, sign := s.StateToIdx(state)
			assert.Equal(t, int64(i), idx)
			assert.Equal(t, 1, sign)
		}

		// Complements fold onto the representative with the sector sign.
		for _, pair := range [][2]uint64{{12, 3}, {10, 5}, {9, 6}} {
			idx, sign := s.StateToIdx(pair[0])
			repIdx, _ := s.StateToIdx(pair[1])
			assert.Equal(t, repIdx, idx)
			assert.Equal(t, int(sector), sign)
		}
	}
}

func TestSpinflipRequiresHalfFilling(t *testing.T) {
	_, err := NewSpinConserve(5, 2, WithSpinflip(SpinflipPlus))
	assert.ErrorIs(t, err, ErrSpinflip)

	_, err = NewSpinConserve(6, 2, WithSpinflip(SpinflipMinus))
	assert.ErrorIs(t, err, ErrSpinflip)
}

func TestSpinflipDimHalves(t *testing.T) {
	for spins := 2; spins <= 12; spins += 2 {
		unfolded, err := NewSpinConserve(spins, spins/2)
		require.NoError(t, err)
		folded, err := NewSpinConserve(spins, spins/2, WithSpinflip(SpinflipPlus))
		require.NoError(t, err)

		assert.Equal(t, unfolded.Dim()/2, folded.Dim(), "L=%d", spins)

		// Folded round trip: indices hit representatives only.
		for i := int64(0); i < folded.Dim(); i++ {
			idx, sign := folded.StateToIdx(folded.IdxToState(i))
			assert.Equal(t, i, idx)
			assert.Equal(t, 1, sign)
		}
	}
}

func TestSpinConserveSignConventionUnderFolding(t *testing.T) {
	s, err := NewSpinConserve(6, 3, WithSpinflip(SpinflipMinus))
	require.NoError(t, err)

	// Every non-representative state reports the sector sign and the
	// same index as its complement.
	mask := uint64(1<<6 - 1)
	for state := uint64(0); state <= mask; state++ {
		if bits.OnesCount64(state) != 3 || state>>5 == 0 {
			continue
		}
		idx, sign := s.StateToIdx(state)
		compIdx, compSign := s.StateToIdx(^state & mask)
		assert.Equal(t, compIdx, idx)
		assert.Equal(t, -1, sign)
		assert.Equal(t, 1, compSign)
	}
}
