package shard

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/meigma/shard/codec"
	"github.com/meigma/shard/internal/wire"
)

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithScannerRegistry sets the codec registry used to decode entry
// payloads. Defaults to codec.Default().
func WithScannerRegistry(r *codec.Registry) ScannerOption {
	return func(s *Scanner) {
		s.registry = r
	}
}

// DefaultMaxRecordSize is the default record size limit for Scanner (4GB).
// The limit guards against allocating for a garbage size prefix when a
// scanner is pointed at a non-record stream.
const DefaultMaxRecordSize = 4 << 30

// WithMaxRecordSize sets the record size limit. Zero disables the limit.
func WithMaxRecordSize(limit uint64) ScannerOption {
	return func(s *Scanner) {
		s.maxRecordSize = limit
	}
}

// Scanner reads records sequentially from a plain byte stream by following
// the per-record size prefixes, without consulting any index. This supports
// pure streaming of a shard whose footer is not yet available, such as
// tailing a write-in-progress file for monitoring.
//
// The stream must begin at a record boundary. Scanning stops cleanly when
// the stream ends exactly at a boundary; a stream ending mid-record
// surfaces ErrTruncatedRecord from Err. On a finalized shard the Scanner
// will run past the last record into the index block and fail there; use
// [Reader.Records] for finalized shards.
//
// Usage follows bufio.Scanner:
//
//	s := shard.NewScanner(r)
//	for s.Scan() {
//	    rec := s.Record()
//	    ...
//	}
//	if err := s.Err(); err != nil {
//	    ...
//	}
type Scanner struct {
	r             io.Reader
	registry      *codec.Registry
	maxRecordSize uint64
	rec           *Record
	err           error
	done          bool
}

// NewScanner returns a Scanner reading records from r.
func NewScanner(r io.Reader, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		r:             r,
		registry:      codec.Default(),
		maxRecordSize: DefaultMaxRecordSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan advances to the next record. It returns false when the stream is
// exhausted or an error occurred; Err distinguishes the two.
func (s *Scanner) Scan() bool {
	if s.done {
		return false
	}
	rec, err := s.next()
	if err != nil {
		s.done = true
		if !errors.Is(err, io.EOF) {
			s.err = err
		}
		return false
	}
	s.rec = rec
	return true
}

// Record returns the record read by the last successful Scan. The record
// is valid until the next Scan call.
func (s *Scanner) Record() *Record {
	return s.rec
}

// Err returns the first error encountered. A stream that ends exactly at a
// record boundary is not an error.
func (s *Scanner) Err() error {
	return s.err
}

// next reads one record block from the stream.
func (s *Scanner) next() (*Record, error) {
	var header [8]byte
	if _, err := io.ReadFull(s.r, header[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: stream ends inside record size field", wire.ErrTruncatedRecord)
		}
		return nil, err
	}

	size := binary.LittleEndian.Uint64(header[:])
	if size < uint64(len(header)) {
		return nil, fmt.Errorf("%w: declared size %d below header size", wire.ErrSizeMismatch, size)
	}
	if s.maxRecordSize > 0 && size > s.maxRecordSize {
		return nil, fmt.Errorf("%w: declared record size %d exceeds limit %d", wire.ErrSizeOverflow, size, s.maxRecordSize)
	}

	buf := make([]byte, size)
	copy(buf, header[:])
	if _, err := io.ReadFull(s.r, buf[len(header):]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: stream ends inside %d byte record", wire.ErrTruncatedRecord, size)
		}
		return nil, fmt.Errorf("shard: scan: %w", err)
	}

	rec, _, err := wire.DecodeRecord(buf)
	if err != nil {
		return nil, err
	}
	if err := decodePayloads(s.registry, rec); err != nil {
		return nil, err
	}
	return rec, nil
}
