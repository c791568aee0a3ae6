package subspace

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"unsafe"

	"github.com/hupe1980/spinshell/internal/mmap"
)

// Explicit snapshots persist a state list so expensive external
// generators run once. Layout is little-endian: a 24-byte header, the
// states back to back, and a CRC32 (IEEE) footer over the state bytes.
// The fixed header keeps the state table 8-byte aligned, so a loaded
// snapshot can be used directly from a memory mapping.

const (
	// explicitMagic identifies explicit subspace snapshots (ASCII "SUB0").
	explicitMagic = 0x53554230
	// explicitVersion is the current snapshot format version.
	explicitVersion = 0x00010000

	explicitHeaderSize = 24
)

// ErrSnapshot reports an unreadable or corrupted subspace snapshot.
var ErrSnapshot = errors.New("subspace: bad snapshot")

var explicitCRCTable = crc32.MakeTable(crc32.IEEE)

// Snapshot writes the state list so OpenSnapshot can map it back in.
func (e *Explicit) Snapshot(w io.Writer) error {
	var header [explicitHeaderSize]byte
	binary.LittleEndian.PutUint32(header[0:], explicitMagic)
	binary.LittleEndian.PutUint32(header[4:], explicitVersion)
	binary.LittleEndian.PutUint32(header[8:], uint32(e.spins))
	binary.LittleEndian.PutUint64(header[16:], uint64(len(e.states)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write snapshot header: %w", err)
	}

	crc := crc32.New(explicitCRCTable)
	buf := make([]byte, 0, 8*4096)
	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		crc.Write(buf)
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("write snapshot states: %w", err)
		}
		buf = buf[:0]
		return nil
	}
	for _, s := range e.states {
		buf = binary.LittleEndian.AppendUint64(buf, s)
		if len(buf) == cap(buf) {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	var footer [4]byte
	binary.LittleEndian.PutUint32(footer[:], crc.Sum32())
	if _, err := w.Write(footer[:]); err != nil {
		return fmt.Errorf("write snapshot footer: %w", err)
	}
	return nil
}

// MappedExplicit is an Explicit subspace whose state table lives in a
// memory-mapped snapshot. Close releases the mapping; the subspace must
// not be used afterwards.
type MappedExplicit struct {
	*Explicit
	m *mmap.File
}

// OpenSnapshot maps a snapshot written by Snapshot and rebuilds the
// lookup side of the subspace over the mapped state table. The table
// itself is not copied.
func OpenSnapshot(path string) (*MappedExplicit, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	e, err := explicitFromMapping(m)
	if err != nil {
		m.Close()
		return nil, err
	}
	return &MappedExplicit{Explicit: e, m: m}, nil
}

// Close unmaps the snapshot.
func (me *MappedExplicit) Close() error {
	return me.m.Close()
}

func explicitFromMapping(m *mmap.File) (*Explicit, error) {
	b := m.Bytes()
	if len(b) < explicitHeaderSize+4 {
		return nil, fmt.Errorf("%w: %d bytes is below the minimum layout", ErrSnapshot, len(b))
	}
	if magic := binary.LittleEndian.Uint32(b[0:]); magic != explicitMagic {
		return nil, fmt.Errorf("%w: magic %#x", ErrSnapshot, magic)
	}
	if version := binary.LittleEndian.Uint32(b[4:]); version != explicitVersion {
		return nil, fmt.Errorf("%w: version %#x", ErrSnapshot, version)
	}
	spins := int(binary.LittleEndian.Uint32(b[8:]))
	count := binary.LittleEndian.Uint64(b[16:])
	// Bounding count first keeps the size arithmetic below from
	// wrapping on a hostile header.
	if count > uint64(len(b))/8 {
		return nil, fmt.Errorf("%w: state count %d exceeds file size", ErrSnapshot, count)
	}
	if want := explicitHeaderSize + 8*count + 4; uint64(len(b)) != want {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrSnapshot, len(b), want)
	}

	payload := b[explicitHeaderSize : explicitHeaderSize+8*count]
	m.Advise(mmap.AccessSequential)
	if sum := crc32.Checksum(payload, explicitCRCTable); sum != binary.LittleEndian.Uint32(b[len(b)-4:]) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrSnapshot)
	}
	m.Advise(mmap.AccessRandom)

	if count == 0 {
		return nil, fmt.Errorf("%w: empty", ErrSnapshot)
	}
	states := unsafe.Slice((*uint64)(unsafe.Pointer(&payload[0])), count)
	// The table is reinterpreted in place, which only works on
	// little-endian hosts. Catch the mismatch instead of serving
	// garbled states.
	if states[0] != binary.LittleEndian.Uint64(payload) {
		return nil, fmt.Errorf("%w: big-endian host cannot map snapshots", ErrSnapshot)
	}
	return newExplicit(spins, states)
}
