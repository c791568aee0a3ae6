// Package spinshell provides matrix-free spin-chain operators for Go.
//
// A spin-chain Hamiltonian over up to 63 spin-1/2 sites is described as
// a sum of Pauli strings, stored in a compact mask/sign/coefficient
// encoding instead of an assembled matrix. Operators apply to state
// vectors directly from that encoding, so memory scales with the number
// of terms rather than the number of nonzeros.
//
// # Quick Start
//
// Build a Heisenberg chain and apply it to a vector:
//
//	var terms []msc.Term
//	for i := 0; i < 11; i++ {
//	    terms = append(terms,
//	        msc.X(i).Mul(msc.X(i+1)),
//	        msc.Y(i).Mul(msc.Y(i+1)),
//	        msc.Z(i).Mul(msc.Z(i+1)),
//	    )
//	}
//
//	sector, _ := subspace.NewSpinConserve(12, 6)
//	op, err := spinshell.FromTerms(terms).
//	    Subspace(sector).
//	    Processes(4).
//	    Build()
//	if err != nil {
//	    panic(err)
//	}
//	defer op.Close()
//
//	y, err := op.Multiply(ctx, x)
//
// # Symmetry Subspaces
//
// Vectors live in a chosen subspace of the full 2^L product basis:
//
//   - Full: every product state
//   - Parity: fixed up-spin parity, half the full dimension
//   - SpinConserve: fixed total magnetization, optionally folded onto
//     global spin-flip symmetry sectors
//   - Explicit: a caller-supplied state list, for sectors no built-in
//     mapping covers
//
// Operators may be rectangular: the input and output subspaces are
// chosen independently as long as they share a chain length.
//
// # Parallelism
//
// A multiply fans out over a configurable number of ranks, each owning
// a contiguous block of rows, and within each rank over a device that
// runs row kernels serially or on a worker pool. Spin flips that stay
// inside a rank's block are applied from local data; the rest read a
// gathered copy of the input vector assembled once per multiply.
//
// # Persistence
//
// Encodings snapshot to a checksummed, optionally compressed container
// via SaveEncoding/LoadEncoding, and Explicit subspaces snapshot
// through their own Snapshot/OpenSnapshot, which maps the state table
// back zero-copy.
package spinshell
