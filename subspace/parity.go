package subspace

import (
	"fmt"
	"math/bits"
)

// ParitySector selects the even or odd sector of the global spin-flip
// parity (popcount of the state modulo 2).
type ParitySector uint8

const (
	// ParityEven keeps states with an even number of down spins.
	ParityEven ParitySector = 0
	// ParityOdd keeps states with an odd number of down spins.
	ParityOdd ParitySector = 1
)

// String returns "+" or "-", the conventional sector labels.
func (p ParitySector) String() string {
	if p == ParityEven {
		return "+"
	}
	return "-"
}

// Parity is the sector of fixed total spin-flip parity. The top chain
// bit is redundant given the others, so the index is the state with bit
// spins-1 dropped and the dimension is half the full basis.
type Parity struct {
	spins  int
	sector ParitySector
}

// NewParity returns the parity sector on the given chain length.
func NewParity(spins int, sector ParitySector) (*Parity, error) {
	if err := checkSpins(spins); err != nil {
		return nil, err
	}
	if sector != ParityEven && sector != ParityOdd {
		return nil, fmt.Errorf("subspace: parity sector %d, want %d or %d", sector, ParityEven, ParityOdd)
	}
	return &Parity{spins: spins, sector: sector}, nil
}

// Spins returns the chain length.
func (p *Parity) Spins() int { return p.spins }

// Sector returns which parity sector this subspace selects.
func (p *Parity) Sector() ParitySector { return p.sector }

// Dim returns 2^(spins-1).
func (p *Parity) Dim() int64 { return int64(1) << uint(p.spins-1) }

// StateToIdx drops the top chain bit; states of the wrong parity or
// beyond the chain are NotFound.
func (p *Parity) StateToIdx(state uint64) (int64, int) {
	if state>>uint(p.spins) != 0 {
		return NotFound, 0
	}
	if ParitySector(bits.OnesCount64(state)%2) != p.sector {
		return NotFound, 0
	}
	return int64(state) & (p.Dim() - 1), 1
}

// IdxToState restores the top chain bit from the sector parity.
func (p *Parity) IdxToState(idx int64) uint64 {
	state := uint64(idx)
	if ParitySector(bits.OnesCount64(state)%2) != p.sector {
		state |= 1 << uint(p.spins-1)
	}
	return state
}

// MayAlias reports false; each sector state has a unique index.
func (p *Parity) MayAlias() bool { return false }

// StableBits returns spins-1; only the dropped top bit is rewritten.
func (p *Parity) StableBits() int { return p.spins - 1 }
