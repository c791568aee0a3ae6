package msc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Snapshot format for encodings. A fixed little-endian header is
// followed by a single payload block holding the four arrays back to
// back (masks, offsets, signs, coefficients as re/im float64 pairs).
// The header records the compression actually applied to the block and
// a CRC32 of the uncompressed payload.

const (
	// snapshotMagic identifies encoding snapshot files (ASCII "MSC0").
	snapshotMagic = 0x4D534330
	// snapshotVersion is the current snapshot format version.
	snapshotVersion = 0x00010000
)

var (
	ErrInvalidMagic   = errors.New("invalid magic number")
	ErrInvalidVersion = errors.New("unsupported snapshot version")
	ErrChecksum       = errors.New("snapshot checksum mismatch")
	ErrCompression    = errors.New("unknown compression type")
)

// Compression selects the payload compression of a snapshot.
type Compression uint8

const (
	// CompressionNone stores the payload as-is.
	CompressionNone Compression = 0
	// CompressionLZ4 applies LZ4 block compression (fast).
	CompressionLZ4 Compression = 1
	// CompressionZSTD applies ZSTD compression (better ratio).
	CompressionZSTD Compression = 2
)

// crcTable is the IEEE polynomial table shared by all snapshot checksums.
var crcTable = crc32.MakeTable(crc32.IEEE)

// ZSTD coders are pooled so repeated snapshots reuse their window buffers.
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// snapshotHeader is the fixed 56-byte header at the start of every
// snapshot. Codec records the compression actually stored, which may
// fall back to CompressionNone when the payload is incompressible.
type snapshotHeader struct {
	Magic      uint32
	Version    uint32
	Codec      uint8
	Padding1   [3]byte
	Spins      uint32
	NumMasks   uint64
	NumTerms   uint64
	RawSize    uint64 // payload bytes before compression
	StoredSize uint64 // payload bytes following the header
	Checksum   uint32 // CRC32 (IEEE) of the uncompressed payload
	Padding2   [4]byte
}

// Encode validates the encoding and writes a snapshot of it for a chain
// of the given length. The requested compression is dropped silently
// when it does not shrink the payload.
func Encode(w io.Writer, e *Encoding, spins int, codec Compression) error {
	if err := e.Validate(spins); err != nil {
		return err
	}
	payload := appendPayload(nil, e)
	sum := crc32.Checksum(payload, crcTable)

	stored, actual, err := compressPayload(payload, codec)
	if err != nil {
		return err
	}

	h := snapshotHeader{
		Magic:      snapshotMagic,
		Version:    snapshotVersion,
		Codec:      uint8(actual),
		Spins:      uint32(spins),
		NumMasks:   uint64(e.NumMasks()),
		NumTerms:   uint64(e.NumTerms()),
		RawSize:    uint64(len(payload)),
		StoredSize: uint64(len(stored)),
		Checksum:   sum,
	}
	if err := binary.Write(w, binary.LittleEndian, h); err != nil {
		return fmt.Errorf("write snapshot header: %w", err)
	}
	if _, err := w.Write(stored); err != nil {
		return fmt.Errorf("write snapshot payload: %w", err)
	}
	return nil
}

// Decode reads a snapshot produced by Encode and returns the encoding
// together with the chain length it was written for. The payload
// checksum and all structural invariants are verified before returning.
func Decode(r io.Reader) (*Encoding, int, error) {
	var h snapshotHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, 0, fmt.Errorf("read snapshot header: %w", err)
	}
	if h.Magic != snapshotMagic {
		return nil, 0, fmt.Errorf("%w: %#x", ErrInvalidMagic, h.Magic)
	}
	if h.Version != snapshotVersion {
		return nil, 0, fmt.Errorf("%w: %#x", ErrInvalidVersion, h.Version)
	}
	if want := payloadSize(h.NumMasks, h.NumTerms); h.RawSize != want {
		return nil, 0, fmt.Errorf("%w: payload size %d, want %d", ErrMalformed, h.RawSize, want)
	}

	stored := make([]byte, h.StoredSize)
	if _, err := io.ReadFull(r, stored); err != nil {
		return nil, 0, fmt.Errorf("read snapshot payload: %w", err)
	}
	payload, err := decompressPayload(stored, Compression(h.Codec), h.RawSize)
	if err != nil {
		return nil, 0, err
	}
	if sum := crc32.Checksum(payload, crcTable); sum != h.Checksum {
		return nil, 0, fmt.Errorf("%w: got %#x, want %#x", ErrChecksum, sum, h.Checksum)
	}

	e := parsePayload(payload, int(h.NumMasks), int(h.NumTerms))
	if err := e.Validate(int(h.Spins)); err != nil {
		return nil, 0, err
	}
	return e, int(h.Spins), nil
}

func payloadSize(numMasks, numTerms uint64) uint64 {
	return numMasks*8 + (numMasks+1)*8 + numTerms*8 + numTerms*16
}

func appendPayload(buf []byte, e *Encoding) []byte {
	for _, m := range e.Masks {
		buf = binary.LittleEndian.AppendUint64(buf, m)
	}
	for _, off := range e.MaskOffsets {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(off))
	}
	for _, s := range e.Signs {
		buf = binary.LittleEndian.AppendUint64(buf, s)
	}
	for _, c := range e.Coeffs {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(real(c)))
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(imag(c)))
	}
	return buf
}

func parsePayload(payload []byte, numMasks, numTerms int) *Encoding {
	e := &Encoding{
		Masks:       make([]uint64, numMasks),
		MaskOffsets: make([]int, numMasks+1),
		Signs:       make([]uint64, numTerms),
		Coeffs:      make([]complex128, numTerms),
	}
	next := func() uint64 {
		v := binary.LittleEndian.Uint64(payload)
		payload = payload[8:]
		return v
	}
	for i := range e.Masks {
		e.Masks[i] = next()
	}
	for i := range e.MaskOffsets {
		e.MaskOffsets[i] = int(next())
	}
	for i := range e.Signs {
		e.Signs[i] = next()
	}
	for i := range e.Coeffs {
		re := math.Float64frombits(next())
		im := math.Float64frombits(next())
		e.Coeffs[i] = complex(re, im)
	}
	return e
}

// compressPayload applies the requested compression and reports what was
// actually stored. Payloads that compress poorly (ratio above 0.9) are
// kept uncompressed.
func compressPayload(payload []byte, codec Compression) ([]byte, Compression, error) {
	if codec == CompressionNone || len(payload) == 0 {
		return payload, CompressionNone, nil
	}

	var compressed []byte
	switch codec {
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(payload)))
		n, err := lz4.CompressBlock(payload, buf, nil)
		if err != nil {
			return nil, 0, fmt.Errorf("lz4 compress: %w", err)
		}
		compressed = buf[:n] // n == 0 means incompressible
	case CompressionZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(payload, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, 0, fmt.Errorf("%w: %d", ErrCompression, codec)
	}

	if len(compressed) == 0 || float64(len(compressed)) > float64(len(payload))*0.9 {
		return payload, CompressionNone, nil
	}
	return compressed, codec, nil
}

func decompressPayload(stored []byte, codec Compression, rawSize uint64) ([]byte, error) {
	switch codec {
	case CompressionNone:
		if uint64(len(stored)) != rawSize {
			return nil, fmt.Errorf("%w: stored %d bytes, want %d", ErrMalformed, len(stored), rawSize)
		}
		return stored, nil
	case CompressionLZ4:
		out := make([]byte, rawSize)
		n, err := lz4.UncompressBlock(stored, out)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if uint64(n) != rawSize {
			return nil, fmt.Errorf("%w: decompressed %d bytes, want %d", ErrMalformed, n, rawSize)
		}
		return out, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		out, err := dec.DecodeAll(stored, make([]byte, 0, rawSize))
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if uint64(len(out)) != rawSize {
			return nil, fmt.Errorf("%w: decompressed %d bytes, want %d", ErrMalformed, len(out), rawSize)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrCompression, codec)
	}
}

