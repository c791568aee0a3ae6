package benchmark_test

import (
	"testing"

	"github.com/hupe1980/spinshell"
	"github.com/hupe1980/spinshell/subspace"
)

// ============================================================================
// Benchmark Configuration
// ============================================================================

// Standard chain lengths used across benchmarks for consistency.
const (
	spinsSmall  = 10 // 1k states - fast CI
	spinsMedium = 14 // 16k states - default
	spinsLarge  = 18 // 262k states - production-scale sweep step
)

// Seed for deterministic benchmarks - enables reproducible comparisons.
const benchSeed = 42

// ============================================================================
// Benchmark Helpers
// ============================================================================

// mustBuild finalizes a configured builder and ties the operator's
// lifetime to the benchmark.
func mustBuild(b *testing.B, builder spinshell.OperatorBuilder) *spinshell.Operator {
	b.Helper()
	op, err := builder.Build()
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { op.Close() })
	return op
}

func fullSector(b *testing.B, spins int) *subspace.Full {
	b.Helper()
	s, err := subspace.NewFull(spins)
	if err != nil {
		b.Fatal(err)
	}
	return s
}

// vectorBytes is the vector traffic of one multiply: the input is read
// and the output written once per mask pass.
func vectorBytes(rows, cols int64) int64 {
	return 16 * (rows + cols)
}
