package shard

import (
	"errors"

	"github.com/meigma/shard/codec"
	"github.com/meigma/shard/internal/wire"
)

// Format errors re-exported from internal/wire. All indicate that the byte
// stream does not conform to the format contract and are unrecoverable for
// that shard or record; no best-effort recovery is attempted.
var (
	// ErrBadMagic is returned when the footer magic is absent or wrong;
	// the file is not a finalized shard.
	ErrBadMagic = wire.ErrBadMagic

	// ErrUnsupportedVersion is returned when the footer declares a format
	// version newer than this package supports.
	ErrUnsupportedVersion = wire.ErrUnsupportedVersion

	// ErrTruncatedIndex is returned when the file is shorter than the
	// index size implied by the footer.
	ErrTruncatedIndex = wire.ErrTruncatedIndex

	// ErrCorruptIndex is returned when the index parses but violates a
	// structural invariant.
	ErrCorruptIndex = wire.ErrCorruptIndex

	// ErrTruncatedRecord is returned when a record block declares more
	// bytes than are available.
	ErrTruncatedRecord = wire.ErrTruncatedRecord

	// ErrSizeMismatch is returned when a record's declared size does not
	// equal the bytes its fields actually occupy.
	ErrSizeMismatch = wire.ErrSizeMismatch

	// ErrInvalidRecord is returned by WriteRecord for records that cannot
	// be encoded (empty entry name or content type).
	ErrInvalidRecord = wire.ErrInvalidRecord

	// ErrSizeOverflow is returned when a field exceeds its wire width.
	ErrSizeOverflow = wire.ErrSizeOverflow
)

// ErrUnsupportedCodec is re-exported from the codec package. Unlike the
// format errors it may be legitimately retried after registering the codec.
var ErrUnsupportedCodec = codec.ErrUnsupportedCodec

// Sentinel errors specific to the shard package.
var (
	// ErrAlreadyFinalized is returned when a Writer is used after
	// Finalize.
	ErrAlreadyFinalized = errors.New("shard: writer already finalized")

	// ErrShardFull is returned by WriteRecord when the record would push
	// the shard past the configured size limit.
	ErrShardFull = errors.New("shard: shard size limit exceeded")

	// ErrIndexOutOfRange is returned by ReadRecord for a record index
	// outside [0, RecordCount).
	ErrIndexOutOfRange = errors.New("shard: record index out of range")
)
