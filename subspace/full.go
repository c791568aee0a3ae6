package subspace

// Full is the unconstrained sector: every configuration of the chain is
// a basis state and the state is its own index.
type Full struct {
	spins int
}

// NewFull returns the full product basis on the given chain length.
func NewFull(spins int) (*Full, error) {
	if err := checkSpins(spins); err != nil {
		return nil, err
	}
	return &Full{spins: spins}, nil
}

// Spins returns the chain length.
func (f *Full) Spins() int { return f.spins }

// Dim returns 2^spins.
func (f *Full) Dim() int64 { return int64(1) << uint(f.spins) }

// StateToIdx returns the state itself; states beyond the chain are NotFound.
func (f *Full) StateToIdx(state uint64) (int64, int) {
	if state >= uint64(f.Dim()) {
		return NotFound, 0
	}
	return int64(state), 1
}

// IdxToState returns the index itself.
func (f *Full) IdxToState(idx int64) uint64 { return uint64(idx) }

// MayAlias reports false; the identity mapping is one-to-one.
func (f *Full) MayAlias() bool { return false }

// StableBits returns the chain length; every state bit passes through.
func (f *Full) StableBits() int { return f.spins }
