package shell

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/spinshell/msc"
	"github.com/hupe1980/spinshell/subspace"
)

// denseInfinityNorm is the row-sum norm of the dense matrix denseApply
// realizes, probed column by column with unit vectors.
func denseInfinityNorm(t *testing.T, terms []msc.Term, sub subspace.Subspace) float64 {
	t.Helper()
	rows := make([]float64, sub.Dim())
	for j := int64(0); j < sub.Dim(); j++ {
		x := make([]complex128, sub.Dim())
		x[j] = 1
		col := denseApply(t, terms, sub, sub, x)
		for i, v := range col {
			rows[i] += math.Hypot(real(v), imag(v))
		}
	}
	var norm float64
	for _, r := range rows {
		norm = math.Max(norm, r)
	}
	return norm
}

func TestInfinityNormConcreteChain(t *testing.T) {
	full, err := subspace.NewFull(4)
	require.NoError(t, err)

	// Three ZZ bonds contribute 3 to every row sum, four half-strength
	// X terms another 2.
	terms := []msc.Term{}
	for i := 0; i < 3; i++ {
		terms = append(terms, msc.Z(i).Mul(msc.Z(i+1)))
	}
	for i := 0; i < 4; i++ {
		terms = append(terms, msc.X(i).Scale(0.5))
	}

	c := buildCtx(t, terms, full, full, 1, nil)
	norm, err := c.InfinityNorm(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 5.0, norm, 1e-12)
}

func TestInfinityNormMatchesDense(t *testing.T) {
	full, err := subspace.NewFull(5)
	require.NoError(t, err)
	sc, err := subspace.NewSpinConserve(6, 2)
	require.NoError(t, err)

	tests := []struct {
		name  string
		terms []msc.Term
		sub   subspace.Subspace
		ranks int
	}{
		{name: "full basis single rank", terms: heisenberg(5), sub: full, ranks: 1},
		{name: "full basis three ranks", terms: heisenberg(5), sub: full, ranks: 3},
		{name: "fixed magnetization", terms: heisenberg(6), sub: sc, ranks: 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := buildCtx(t, tc.terms, tc.sub, tc.sub, tc.ranks, nil)
			norm, err := c.InfinityNorm(context.Background())
			require.NoError(t, err)
			assert.InDelta(t, denseInfinityNorm(t, tc.terms, tc.sub), norm, 1e-10)
		})
	}
}

func TestInfinityNormCachesFirstResult(t *testing.T) {
	full, err := subspace.NewFull(4)
	require.NoError(t, err)
	c := buildCtx(t, heisenberg(4), full, full, 1, nil)

	first, err := c.InfinityNorm(context.Background())
	require.NoError(t, err)
	second, err := c.InfinityNorm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestInfinityNormEmptyOperator(t *testing.T) {
	full, err := subspace.NewFull(3)
	require.NoError(t, err)
	c := buildCtx(t, nil, full, full, 1, nil)

	norm, err := c.InfinityNorm(context.Background())
	require.NoError(t, err)
	assert.Zero(t, norm)
}
