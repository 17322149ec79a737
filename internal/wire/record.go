package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// recordHeaderSize is the record size field preceding every block.
const recordHeaderSize = 8

// entryFixedSize is the fixed portion of an encoded entry: the four length
// prefixes with no string or payload bytes.
const entryFixedSize = 4 + 4 + 2 + 8

// EncodedRecordSize returns the exact serialized length of rec, including
// the record size field itself.
func EncodedRecordSize(rec *Record) (uint64, error) {
	if err := validateRecord(rec); err != nil {
		return 0, err
	}
	size := uint64(recordHeaderSize)
	size += 4 + uint64(len(rec.Key))
	size += 4 + uint64(len(rec.Meta))
	size += 4
	for i := range rec.Entries {
		e := &rec.Entries[i]
		size += uint64(entryFixedSize)
		size += uint64(len(e.Name)) + uint64(len(e.ContentType)) + uint64(len(e.CodecTag))
		size += uint64(len(e.Payload))
	}
	return size, nil
}

// EncodeRecord serializes rec into a single record block. The declared
// record size is computed, never producer-supplied, so it always equals the
// bytes emitted.
func EncodeRecord(rec *Record) ([]byte, error) {
	size, err := EncodedRecordSize(rec)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, size)
	buf = binary.LittleEndian.AppendUint64(buf, size)
	buf = appendBytes32(buf, []byte(rec.Key))
	buf = appendBytes32(buf, rec.Meta)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(rec.Entries)))
	for i := range rec.Entries {
		e := &rec.Entries[i]
		buf = appendBytes32(buf, []byte(e.Name))
		buf = appendBytes32(buf, []byte(e.ContentType))
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(e.CodecTag)))
		buf = append(buf, e.CodecTag...)
		buf = binary.LittleEndian.AppendUint64(buf, uint64(len(e.Payload)))
		buf = append(buf, e.Payload...)
	}
	return buf, nil
}

// DecodeRecord parses one record block from the front of b and returns the
// record together with the number of bytes consumed.
//
// The returned record's byte fields alias b; callers must not modify b
// while the record is in use.
func DecodeRecord(b []byte) (*Record, int, error) {
	if len(b) < recordHeaderSize {
		return nil, 0, ErrTruncatedRecord
	}
	size := binary.LittleEndian.Uint64(b)
	if size < recordHeaderSize {
		return nil, 0, ErrSizeMismatch
	}
	if size > uint64(len(b)) {
		return nil, 0, ErrTruncatedRecord
	}

	d := decoder{b: b[:size], off: recordHeaderSize}

	rec := &Record{}
	key, err := d.bytes32()
	if err != nil {
		return nil, 0, err
	}
	rec.Key = string(key)
	if rec.Meta, err = d.bytes32(); err != nil {
		return nil, 0, err
	}

	count, err := d.u32()
	if err != nil {
		return nil, 0, err
	}
	// Each entry occupies at least its fixed prefixes; bound the
	// allocation by what the block can actually hold.
	if maxEntries := d.remaining() / entryFixedSize; int(count) > maxEntries {
		return nil, 0, ErrTruncatedRecord
	}
	rec.Entries = make([]FileEntry, 0, count)
	for range count {
		e, err := d.entry()
		if err != nil {
			return nil, 0, err
		}
		rec.Entries = append(rec.Entries, e)
	}

	if d.off != len(d.b) {
		return nil, 0, ErrSizeMismatch
	}
	return rec, int(size), nil
}

// validateRecord checks field width limits and entry invariants before
// encoding.
func validateRecord(rec *Record) error {
	if len(rec.Key) > math.MaxUint32 || len(rec.Meta) > math.MaxUint32 {
		return ErrSizeOverflow
	}
	if len(rec.Entries) > math.MaxUint32 {
		return ErrSizeOverflow
	}
	for i := range rec.Entries {
		e := &rec.Entries[i]
		if e.Name == "" {
			return fmt.Errorf("%w: entry %d has empty name", ErrInvalidRecord, i)
		}
		if e.ContentType == "" {
			return fmt.Errorf("%w: entry %q has empty content type", ErrInvalidRecord, e.Name)
		}
		if e.CodecTag == "" {
			return fmt.Errorf("%w: entry %q has empty codec tag", ErrInvalidRecord, e.Name)
		}
		if len(e.Name) > math.MaxUint32 || len(e.ContentType) > math.MaxUint32 {
			return ErrSizeOverflow
		}
		if len(e.CodecTag) > math.MaxUint16 {
			return ErrSizeOverflow
		}
	}
	return nil
}

// appendBytes32 appends a u32 length prefix followed by b.
func appendBytes32(dst, b []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(b)))
	return append(dst, b...)
}

// decoder is a bounds-checked cursor over a single record block.
type decoder struct {
	b   []byte
	off int
}

func (d *decoder) remaining() int {
	return len(d.b) - d.off
}

func (d *decoder) take(n int) ([]byte, error) {
	if n < 0 || d.remaining() < n {
		return nil, ErrTruncatedRecord
	}
	b := d.b[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *decoder) u16() (uint16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (d *decoder) u32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *decoder) u64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// bytes32 reads a u32 length prefix and that many bytes. Zero-length
// fields decode as nil so encode/decode round-trips compare equal.
func (d *decoder) bytes32() ([]byte, error) {
	n, err := d.u32()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return d.take(int(n))
}

func (d *decoder) entry() (FileEntry, error) {
	var e FileEntry

	name, err := d.bytes32()
	if err != nil {
		return e, err
	}
	e.Name = string(name)

	ctype, err := d.bytes32()
	if err != nil {
		return e, err
	}
	e.ContentType = string(ctype)

	tagLen, err := d.u16()
	if err != nil {
		return e, err
	}
	tag, err := d.take(int(tagLen))
	if err != nil {
		return e, err
	}
	e.CodecTag = string(tag)

	payloadLen, err := d.u64()
	if err != nil {
		return e, err
	}
	if payloadLen > uint64(d.remaining()) {
		return e, ErrTruncatedRecord
	}
	if payloadLen > 0 {
		if e.Payload, err = d.take(int(payloadLen)); err != nil {
			return e, err
		}
	}
	return e, nil
}
