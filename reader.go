package shard

import (
	"encoding/binary"
	"fmt"
	"io"
	"iter"

	"github.com/meigma/shard/codec"
	"github.com/meigma/shard/internal/wire"
)

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithReaderRegistry sets the codec registry used to decode entry payloads.
// Defaults to codec.Default().
func WithReaderRegistry(r *codec.Registry) ReaderOption {
	return func(rd *Reader) {
		rd.registry = r
	}
}

// Reader provides sequential and O(1) random access to a finalized shard.
//
// The offsets table and shard metadata are loaded into memory on
// construction; memory scales with record count, not shard size. A Reader
// performs only positioned reads and is safe for concurrent use.
type Reader struct {
	src        ByteSource
	registry   *codec.Registry
	offsets    []uint64
	meta       []byte
	indexStart uint64
}

// NewReader validates the shard footer in src, loads the index, and returns
// a Reader. It fails with ErrBadMagic if src is not a finalized shard,
// ErrTruncatedIndex if src is shorter than the index claims,
// ErrUnsupportedVersion for a footer from a newer format, and
// ErrCorruptIndex for an index violating its structural invariants. On
// failure no partial state is retained.
func NewReader(src ByteSource, opts ...ReaderOption) (*Reader, error) {
	size := src.Size()
	if size < wire.TrailerSize {
		return nil, fmt.Errorf("%w: file is %d bytes", wire.ErrBadMagic, size)
	}

	trailer := make([]byte, wire.TrailerSize)
	if _, err := src.ReadAt(trailer, size-wire.TrailerSize); err != nil {
		return nil, fmt.Errorf("shard: read trailer: %w", err)
	}
	t, err := wire.DecodeTrailer(trailer)
	if err != nil {
		return nil, err
	}
	if t.IndexSize > uint64(size) {
		return nil, fmt.Errorf("%w: index size %d exceeds file size %d", wire.ErrTruncatedIndex, t.IndexSize, size)
	}

	block := make([]byte, t.IndexSize)
	indexStart := uint64(size) - t.IndexSize
	if _, err := src.ReadAt(block, int64(indexStart)); err != nil {
		return nil, fmt.Errorf("shard: read index: %w", err)
	}
	idx, err := wire.DecodeIndex(block)
	if err != nil {
		return nil, err
	}
	if n := len(idx.Offsets); n > 0 && idx.Offsets[n-1] >= indexStart {
		return nil, fmt.Errorf("%w: last record offset %d not before index start %d", wire.ErrCorruptIndex, idx.Offsets[n-1], indexStart)
	}

	r := &Reader{
		src:        src,
		registry:   codec.Default(),
		offsets:    idx.Offsets,
		meta:       idx.Meta,
		indexStart: indexStart,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// RecordCount returns the number of records in the shard.
func (r *Reader) RecordCount() uint64 {
	return uint64(len(r.offsets))
}

// Metadata returns the opaque shard-level metadata from the index, or nil.
// The returned slice is shared; callers must not modify it.
func (r *Reader) Metadata() []byte {
	return r.meta
}

// Offsets returns the byte position of each record, in file order.
// The returned slice is shared; callers must not modify it.
func (r *Reader) Offsets() []uint64 {
	return r.offsets
}

// Size returns the total shard size in bytes.
func (r *Reader) Size() int64 {
	return r.src.Size()
}

// DataSize returns the size in bytes of the record region, i.e. the byte
// position where the index begins.
func (r *Reader) DataSize() uint64 {
	return r.indexStart
}

// ReadRecord reads and decodes record i in O(1) via the offsets table.
// Entry payloads are decompressed through the codec registry; an
// unregistered tag yields ErrUnsupportedCodec. Fails with
// ErrIndexOutOfRange when i is outside [0, RecordCount).
func (r *Reader) ReadRecord(i int) (*Record, error) {
	if i < 0 || i >= len(r.offsets) {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(r.offsets))
	}

	off := r.offsets[i]
	end := r.indexStart
	if i+1 < len(r.offsets) {
		end = r.offsets[i+1]
	}
	length := end - off

	rec, err := r.readRecordAt(off, length)
	if err != nil {
		return nil, fmt.Errorf("shard: record %d: %w", i, err)
	}
	return rec, nil
}

// Records returns a restartable iterator over all records in file order.
// Iteration reads sequentially from byte zero following the per-record size
// prefixes and stops after RecordCount records; the offsets table is not
// consulted. Each ranged loop rereads the shard from the start.
func (r *Reader) Records() iter.Seq2[*Record, error] {
	return func(yield func(*Record, error) bool) {
		section := io.NewSectionReader(r.src, 0, int64(r.indexStart))
		s := NewScanner(section, WithScannerRegistry(r.registry))
		for i := 0; i < len(r.offsets) && s.Scan(); i++ {
			if !yield(s.Record(), nil) {
				return
			}
		}
		if err := s.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// readRecordAt reads one record block of the given length at off and
// decodes it, payloads included.
func (r *Reader) readRecordAt(off, length uint64) (*Record, error) {
	if length < 8 {
		return nil, wire.ErrTruncatedRecord
	}

	buf := make([]byte, length)
	if _, err := r.src.ReadAt(buf, int64(off)); err != nil {
		return nil, fmt.Errorf("read at %d: %w", off, err)
	}

	// The record's own size field must agree with the gap the offsets
	// table implies.
	if declared := binary.LittleEndian.Uint64(buf); declared != length {
		return nil, fmt.Errorf("%w: declared %d bytes, offsets imply %d", wire.ErrSizeMismatch, declared, length)
	}

	rec, _, err := wire.DecodeRecord(buf)
	if err != nil {
		return nil, err
	}
	if err := decodePayloads(r.registry, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// decodePayloads runs each entry payload through its codec in place.
func decodePayloads(reg *codec.Registry, rec *Record) error {
	for i := range rec.Entries {
		e := &rec.Entries[i]
		if e.CodecTag == codec.TagNone {
			continue
		}
		decoded, err := reg.Decode(e.CodecTag, e.Payload)
		if err != nil {
			return fmt.Errorf("decode entry %q: %w", e.Name, err)
		}
		e.Payload = decoded
	}
	return nil
}
