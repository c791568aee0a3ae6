package msc

import (
	"fmt"
	"math/bits"
)

// Pauli constructors for single sites. Site numbering starts at 0 and a
// set bit means spin down, so Z reports +1 on the all-up state.

// Identity returns the identity term with unit coefficient.
func Identity() Term {
	return Term{Coeff: 1}
}

// X returns the spin-flip operator on the given site.
func X(site int) Term {
	return Term{Mask: siteBit(site), Coeff: 1}
}

// Y returns the Y operator on the given site. Mask and sign coincide and
// the single overlap bit makes the coefficient imaginary.
func Y(site int) Term {
	b := siteBit(site)
	return Term{Mask: b, Sign: b, Coeff: 1i}
}

// Z returns the Z operator on the given site.
func Z(site int) Term {
	return Term{Sign: siteBit(site), Coeff: 1}
}

// Scale returns the term with its coefficient multiplied by c.
func (t Term) Scale(c complex128) Term {
	t.Coeff *= c
	return t
}

// Mul returns the product t * u as a single term. Commuting u's X factors
// past t's Z factors picks up a -1 for every site where they meet, which
// is the only phase the XOR composition of masks and signs misses.
func (t Term) Mul(u Term) Term {
	c := t.Coeff * u.Coeff
	if bits.OnesCount64(u.Mask&t.Sign)%2 == 1 {
		c = -c
	}
	return Term{
		Mask:  t.Mask ^ u.Mask,
		Sign:  t.Sign ^ u.Sign,
		Coeff: c,
	}
}

func siteBit(site int) uint64 {
	if site < 0 || site > 63 {
		panic(fmt.Sprintf("msc: site %d outside [0, 63]", site))
	}
	return uint64(1) << uint(site)
}
