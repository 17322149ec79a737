package wire

import "errors"

// Format constants.
const (
	// Version is the shard format version written by this package.
	Version uint32 = 1

	// MagicSize is the length in bytes of the footer magic.
	MagicSize = 8

	// TrailerSize is the fixed trailer length at end-of-file:
	// index_size:u64 | version:u32 | magic:[8]byte.
	TrailerSize = 8 + 4 + MagicSize

	// MinIndexSize is the smallest legal index block: a zero-record,
	// zero-metadata index plus the trailer.
	MinIndexSize = 8 + 8 + TrailerSize
)

// Magic is the fixed sentinel at the absolute end of a finalized shard.
// The leading non-ASCII byte and embedded CR/LF guard against text-mode
// corruption, after the PNG signature's example.
var Magic = [MagicSize]byte{0x89, 'S', 'H', 'R', 'D', '\r', '\n', 0x1a}

// Sentinel errors for format violations.
var (
	// ErrBadMagic is returned when the footer magic is absent or wrong;
	// the file is not a finalized shard.
	ErrBadMagic = errors.New("shard: bad magic, not a shard file")

	// ErrUnsupportedVersion is returned when the footer declares a format
	// version newer than this package supports.
	ErrUnsupportedVersion = errors.New("shard: unsupported format version")

	// ErrTruncatedIndex is returned when the file is shorter than the
	// index size implied by the footer.
	ErrTruncatedIndex = errors.New("shard: truncated index")

	// ErrCorruptIndex is returned when the index parses but violates a
	// structural invariant (offsets not strictly increasing from zero, or
	// declared sizes inconsistent with the block length).
	ErrCorruptIndex = errors.New("shard: corrupt index")

	// ErrTruncatedRecord is returned when a record block declares more
	// bytes than are available.
	ErrTruncatedRecord = errors.New("shard: truncated record")

	// ErrSizeMismatch is returned when a record's declared size does not
	// equal the bytes actually occupied by its fields. This is the
	// primary corruption detector for record blocks.
	ErrSizeMismatch = errors.New("shard: record size mismatch")

	// ErrInvalidRecord is returned when a record cannot be encoded
	// (empty entry name or content type).
	ErrInvalidRecord = errors.New("shard: invalid record")

	// ErrSizeOverflow is returned when a field exceeds its wire width.
	ErrSizeOverflow = errors.New("shard: size overflow")
)

// FileEntry is one named, typed, optionally compressed payload within a
// record.
//
// The on-disk payload length always describes the stored bytes. When
// CodecTag is not "none" the stored bytes are the compressed form and the
// original size is not recorded separately.
type FileEntry struct {
	// Name identifies the entry within its record (e.g., "img.jpg").
	// Must be non-empty.
	Name string

	// ContentType describes the payload, conventionally as a MIME type
	// (e.g., "image/jpeg"). Opaque to the format beyond non-emptiness.
	ContentType string

	// CodecTag selects the compression codec for the payload. "none"
	// stores the payload verbatim.
	CodecTag string

	// Payload is the entry content as stored: raw bytes for "none",
	// codec output otherwise.
	Payload []byte
}

// Record is one sample: a key, optional opaque metadata, and an ordered
// sequence of file entries. Entry order is meaningful; entries are
// retrieved by position or by name scan.
//
// Key uniqueness within a shard is a producer convention, not enforced by
// the format.
type Record struct {
	// Key identifies the sample.
	Key string

	// Meta is optional record-level metadata. The format does not
	// interpret it; producers choose the encoding.
	Meta []byte

	// Entries are the sample's files, in producer order.
	Entries []FileEntry
}

// Entry returns the first entry with the given name, scanning in order.
func (r *Record) Entry(name string) (*FileEntry, bool) {
	for i := range r.Entries {
		if r.Entries[i].Name == name {
			return &r.Entries[i], true
		}
	}
	return nil, false
}

// Index is the shard-wide directory written once at the end of the file.
type Index struct {
	// Offsets holds the byte position where each record begins, in write
	// order. Offsets[0] is 0 and values are strictly increasing.
	Offsets []uint64

	// Meta is opaque shard-level metadata.
	Meta []byte
}

// Trailer is the decoded fixed footer.
type Trailer struct {
	// IndexSize is the length of the whole index block, trailer included.
	IndexSize uint64

	// Version is the format version declared by the footer.
	Version uint32
}
