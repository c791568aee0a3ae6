// Package msc implements the mask-sign-coefficient encoding of Pauli
// string sums.
//
// A spin-chain operator is a sum of terms c * X^mask * Z^sign, where mask
// and sign are bitmaps over the chain sites. Applied to a product state t
// (bit i is spin i, 0 = up), a term contributes
//
//	A[t XOR mask, t] = c * (-1)^popcount(t AND sign)
//
// so a single integer XOR and a parity count replace any stored matrix.
// The encoding keeps the terms in four parallel arrays grouped by mask:
// one entry per distinct mask, an offset table delimiting its group, and
// the sign/coefficient pairs of every term inside the group. Grouping by
// mask lets a matrix-vector product visit each source-to-target flip
// pattern exactly once.
//
// Coefficients are never mixed. A term is Hermitian exactly when its
// coefficient sits in the half selected by the parity of
// popcount(mask AND sign): even forces a real coefficient, odd an
// imaginary one. Validate enforces this termwise Hermiticity, and
// downstream consumers rely on it to store only the nonzero half of
// every coefficient.
package msc

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"slices"
)

var (
	// ErrMalformed reports a structurally inconsistent encoding, such as
	// an offset table that does not delimit the sign/coefficient arrays.
	ErrMalformed = errors.New("malformed msc encoding")
	// ErrSpinRange reports a mask or sign with bits beyond the chain length.
	ErrSpinRange = errors.New("operator acts outside spin chain")
	// ErrCoeffMixed reports a coefficient with weight in the half ruled
	// out by its term's parity class.
	ErrCoeffMixed = errors.New("coefficient inconsistent with term parity")
)

// coeffTol is the relative tolerance for the parity-class check in
// Validate. The forbidden half of a coefficient may carry floating-point
// dust from upstream arithmetic but nothing larger.
const coeffTol = 1e-12

// Term is a single Pauli string c * X^Mask * Z^Sign.
type Term struct {
	Mask  uint64
	Sign  uint64
	Coeff complex128
}

// Encoding is an operator in canonical mask-sign-coefficient form.
//
// The fields are exported so callers can assemble an encoding directly
// (for example when deserializing a foreign format); New is the usual
// construction path and Validate checks anything hand-built. The arrays
// of a canonical encoding satisfy:
//
//   - Masks is strictly ascending.
//   - MaskOffsets has len(Masks)+1 entries, starts at 0, is strictly
//     increasing, and ends at len(Signs).
//   - Signs and Coeffs have one entry per term; the terms of mask i
//     occupy [MaskOffsets[i], MaskOffsets[i+1]).
type Encoding struct {
	Masks       []uint64
	MaskOffsets []int
	Signs       []uint64
	Coeffs      []complex128
}

// New builds a canonical encoding from a list of terms. Terms sharing a
// (mask, sign) pair are merged by summing their coefficients, and terms
// whose merged coefficient is exactly zero are dropped. An empty or
// fully-cancelling list yields an encoding with no terms, which is a
// valid zero operator.
func New(terms []Term) *Encoding {
	ts := slices.Clone(terms)
	slices.SortFunc(ts, func(a, b Term) int {
		if a.Mask != b.Mask {
			if a.Mask < b.Mask {
				return -1
			}
			return 1
		}
		if a.Sign != b.Sign {
			if a.Sign < b.Sign {
				return -1
			}
			return 1
		}
		return 0
	})

	enc := &Encoding{MaskOffsets: []int{0}}
	for i := 0; i < len(ts); {
		j := i
		c := complex(0, 0)
		for j < len(ts) && ts[j].Mask == ts[i].Mask && ts[j].Sign == ts[i].Sign {
			c += ts[j].Coeff
			j++
		}
		if c != 0 {
			n := len(enc.Masks)
			if n == 0 || enc.Masks[n-1] != ts[i].Mask {
				enc.Masks = append(enc.Masks, ts[i].Mask)
				enc.MaskOffsets = append(enc.MaskOffsets, enc.MaskOffsets[len(enc.MaskOffsets)-1])
			}
			enc.Signs = append(enc.Signs, ts[i].Sign)
			enc.Coeffs = append(enc.Coeffs, c)
			enc.MaskOffsets[len(enc.MaskOffsets)-1]++
		}
		i = j
	}
	return enc
}

// NumMasks returns the number of distinct masks.
func (e *Encoding) NumMasks() int {
	return len(e.Masks)
}

// NumTerms returns the total number of terms across all masks.
func (e *Encoding) NumTerms() int {
	return len(e.Coeffs)
}

// MinSpins returns the smallest chain length on which the encoding is
// valid, i.e. one past the highest site any mask or sign touches. The
// zero operator and the bare identity report 0.
func (e *Encoding) MinSpins() int {
	var acc uint64
	for _, m := range e.Masks {
		acc |= m
	}
	for _, s := range e.Signs {
		acc |= s
	}
	return bits.Len64(acc)
}

// TermsForMask returns the signs and coefficients of the i-th mask
// group as sub-slices of the backing arrays.
func (e *Encoding) TermsForMask(i int) ([]uint64, []complex128) {
	lo, hi := e.MaskOffsets[i], e.MaskOffsets[i+1]
	return e.Signs[lo:hi], e.Coeffs[lo:hi]
}

// Terms expands the encoding back into a flat term list, in canonical
// order. The result round-trips through New unchanged.
func (e *Encoding) Terms() []Term {
	out := make([]Term, 0, e.NumTerms())
	for i, m := range e.Masks {
		signs, coeffs := e.TermsForMask(i)
		for k := range signs {
			out = append(out, Term{Mask: m, Sign: signs[k], Coeff: coeffs[k]})
		}
	}
	return out
}

// Validate checks the structural invariants of the encoding and that
// every mask and sign fits a chain of the given length. It returns an
// error wrapping ErrMalformed, ErrSpinRange or ErrCoeffMixed; a nil
// return means the encoding is safe to hand to a shell context.
func (e *Encoding) Validate(spins int) error {
	if spins < 1 || spins > 63 {
		return fmt.Errorf("%w: chain length %d outside [1, 63]", ErrSpinRange, spins)
	}
	if len(e.MaskOffsets) != len(e.Masks)+1 {
		return fmt.Errorf("%w: %d masks but %d offsets", ErrMalformed, len(e.Masks), len(e.MaskOffsets))
	}
	if len(e.Signs) != len(e.Coeffs) {
		return fmt.Errorf("%w: %d signs but %d coefficients", ErrMalformed, len(e.Signs), len(e.Coeffs))
	}
	if len(e.MaskOffsets) > 0 {
		if e.MaskOffsets[0] != 0 {
			return fmt.Errorf("%w: offsets start at %d, want 0", ErrMalformed, e.MaskOffsets[0])
		}
		if last := e.MaskOffsets[len(e.MaskOffsets)-1]; last != len(e.Signs) {
			return fmt.Errorf("%w: offsets end at %d, want %d", ErrMalformed, last, len(e.Signs))
		}
	}
	for i := 1; i < len(e.MaskOffsets); i++ {
		if e.MaskOffsets[i] <= e.MaskOffsets[i-1] {
			return fmt.Errorf("%w: empty or inverted mask group at %d", ErrMalformed, i-1)
		}
	}
	limit := uint64(1)<<uint(spins) - 1
	for i, m := range e.Masks {
		if i > 0 && m <= e.Masks[i-1] {
			return fmt.Errorf("%w: masks not strictly ascending at %d", ErrMalformed, i)
		}
		if m&^limit != 0 {
			return fmt.Errorf("%w: mask %#x exceeds %d spins", ErrSpinRange, m, spins)
		}
	}
	for i, m := range e.Masks {
		signs, coeffs := e.TermsForMask(i)
		for k, s := range signs {
			if s&^limit != 0 {
				return fmt.Errorf("%w: sign %#x exceeds %d spins", ErrSpinRange, s, spins)
			}
			if err := checkCoeff(m, s, coeffs[k]); err != nil {
				return fmt.Errorf("%w for term %d of mask %#x", err, k, m)
			}
		}
	}
	return nil
}

// TermIsReal reports whether a term with the given mask and sign has a
// purely real coefficient. Odd popcount(mask AND sign) means the X and Z
// factors overlap on an odd number of sites, each contributing a factor
// of i, so the coefficient must be purely imaginary instead.
func TermIsReal(mask, sign uint64) bool {
	return bits.OnesCount64(mask&sign)%2 == 0
}

func checkCoeff(mask, sign uint64, c complex128) error {
	mag := math.Hypot(real(c), imag(c))
	var stray float64
	if TermIsReal(mask, sign) {
		stray = math.Abs(imag(c))
	} else {
		stray = math.Abs(real(c))
	}
	if stray > coeffTol*mag {
		return fmt.Errorf("%w: coefficient %v", ErrCoeffMixed, c)
	}
	return nil
}
