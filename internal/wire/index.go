package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// EncodedIndexSize returns the serialized length of idx, trailer included.
func EncodedIndexSize(idx *Index) uint64 {
	return 8 + 8*uint64(len(idx.Offsets)) + 8 + uint64(len(idx.Meta)) + TrailerSize
}

// EncodeIndex serializes the trailing index block. The offsets must be in
// write order: strictly increasing from zero.
func EncodeIndex(idx *Index) ([]byte, error) {
	if err := validateOffsets(idx.Offsets); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}

	size := EncodedIndexSize(idx)
	buf := make([]byte, 0, size)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(idx.Offsets)))
	for _, off := range idx.Offsets {
		buf = binary.LittleEndian.AppendUint64(buf, off)
	}
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(idx.Meta)))
	buf = append(buf, idx.Meta...)
	buf = binary.LittleEndian.AppendUint64(buf, size)
	buf = binary.LittleEndian.AppendUint32(buf, Version)
	buf = append(buf, Magic[:]...)
	return buf, nil
}

// DecodeTrailer parses the fixed footer from the last TrailerSize bytes of
// a shard file. The magic is validated before any other field is trusted.
func DecodeTrailer(b []byte) (Trailer, error) {
	if len(b) != TrailerSize {
		return Trailer{}, fmt.Errorf("%w: trailer window is %d bytes, want %d", ErrTruncatedIndex, len(b), TrailerSize)
	}
	if !bytes.Equal(b[12:], Magic[:]) {
		return Trailer{}, ErrBadMagic
	}
	t := Trailer{
		IndexSize: binary.LittleEndian.Uint64(b[:8]),
		Version:   binary.LittleEndian.Uint32(b[8:12]),
	}
	if t.Version == 0 || t.Version > Version {
		return t, fmt.Errorf("%w: %d", ErrUnsupportedVersion, t.Version)
	}
	if t.IndexSize < MinIndexSize {
		return t, fmt.Errorf("%w: index size %d below minimum %d", ErrTruncatedIndex, t.IndexSize, MinIndexSize)
	}
	return t, nil
}

// DecodeIndex parses a whole index block, trailer included, as located by
// DecodeTrailer. Every byte of b must be accounted for.
func DecodeIndex(b []byte) (*Index, error) {
	if len(b) < MinIndexSize {
		return nil, ErrTruncatedIndex
	}
	if _, err := DecodeTrailer(b[len(b)-TrailerSize:]); err != nil {
		return nil, err
	}
	body := b[: len(b)-TrailerSize : len(b)-TrailerSize]

	count := binary.LittleEndian.Uint64(body)
	rest := uint64(len(body)) - 8
	if count > rest/8 {
		return nil, fmt.Errorf("%w: %d offsets do not fit in %d bytes", ErrTruncatedIndex, count, rest)
	}
	offsets := make([]uint64, count)
	pos := 8
	for i := range offsets {
		offsets[i] = binary.LittleEndian.Uint64(body[pos:])
		pos += 8
	}

	if len(body)-pos < 8 {
		return nil, ErrTruncatedIndex
	}
	metaLen := binary.LittleEndian.Uint64(body[pos:])
	pos += 8
	if metaLen != uint64(len(body)-pos) {
		return nil, fmt.Errorf("%w: metadata length %d, %d bytes remain", ErrCorruptIndex, metaLen, len(body)-pos)
	}
	meta := body[pos:]

	if err := validateOffsets(offsets); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}

	idx := &Index{Offsets: offsets}
	if len(meta) > 0 {
		idx.Meta = meta
	}
	return idx, nil
}

// validateOffsets enforces the offset table invariants: the first record
// begins at byte zero and positions strictly increase.
func validateOffsets(offsets []uint64) error {
	if len(offsets) == 0 {
		return nil
	}
	if offsets[0] != 0 {
		return fmt.Errorf("first offset is %d, want 0", offsets[0])
	}
	for i := 1; i < len(offsets); i++ {
		if offsets[i] <= offsets[i-1] {
			return fmt.Errorf("offset %d (%d) not after offset %d (%d)", i, offsets[i], i-1, offsets[i-1])
		}
	}
	if len(offsets) > math.MaxInt32 {
		return ErrSizeOverflow
	}
	return nil
}
