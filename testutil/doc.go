// Package testutil provides testing utilities for spinshell.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating deterministic random state
// vectors and the standard spin-chain term sets the suites share.
//
// # Random State Generation
//
//	rng := testutil.NewRNG(seed)
//	x := rng.State(dim)        // normalized random state
//	rng.FillState(x)           // refill in place
//
// # Term Sets
//
//	terms := testutil.HeisenbergChain(12)
//	terms := testutil.IsingChain(12, 0.5)
//	terms := testutil.LongRangeXY(12, 1.5)
package testutil
