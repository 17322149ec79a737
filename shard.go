package shard

import (
	"io"

	"github.com/meigma/shard/internal/wire"
)

// Re-export types from internal/wire for the public API.
type (
	// FileEntry is one named, typed, optionally compressed payload
	// within a record.
	FileEntry = wire.FileEntry

	// Record is one sample: a key, optional opaque metadata, and an
	// ordered sequence of file entries.
	Record = wire.Record
)

// Format constants re-exported from internal/wire.
const (
	// Version is the shard format version written by this package.
	Version = wire.Version

	// TrailerSize is the fixed number of bytes at the end of a finalized
	// shard containing the index size, format version, and magic.
	TrailerSize = wire.TrailerSize
)

// CodecNone is the identity codec tag. Payloads with this tag are stored
// verbatim. A FileEntry with an empty CodecTag is written as CodecNone.
const CodecNone = "none"

// ByteSource provides positioned random access to a finalized shard.
//
// Implementations must support concurrent ReadAt calls; *os.File satisfies
// this. Size reports the total store length in bytes.
type ByteSource interface {
	io.ReaderAt
	Size() int64
}
