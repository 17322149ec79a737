package shard

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/meigma/shard/codec"
	"github.com/meigma/shard/internal/wire"
)

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithWriterRegistry sets the codec registry used to encode entry payloads.
// Defaults to codec.Default().
func WithWriterRegistry(r *codec.Registry) WriterOption {
	return func(w *Writer) {
		w.registry = r
	}
}

// WithShardMetadata sets the opaque shard-level metadata written into the
// index on Finalize.
func WithShardMetadata(meta []byte) WriterOption {
	return func(w *Writer) {
		w.meta = meta
	}
}

// WithMaxShardSize caps the record region at limit bytes. WriteRecord
// returns ErrShardFull for a record that would push a non-empty shard past
// the limit; a first record larger than the limit is still accepted so
// oversized samples have somewhere to live. Zero means no limit.
func WithMaxShardSize(limit uint64) WriterOption {
	return func(w *Writer) {
		w.maxSize = limit
	}
}

// WithWriterLogger sets the logger for write progress. Defaults to no
// logging.
func WithWriterLogger(logger *slog.Logger) WriterOption {
	return func(w *Writer) {
		w.logger = logger
	}
}

// Writer builds a shard file by appending records sequentially and writing
// the trailing index on Finalize.
//
// A Writer moves through two states: open, accepting WriteRecord calls, and
// finalized. The shard is not readable until Finalize succeeds; a writer
// abandoned before Finalize leaves record bytes with no index, which readers
// reject. Writing is strictly single-writer; a Writer is not safe for
// concurrent use.
type Writer struct {
	w        io.Writer
	file     *os.File // non-nil when the Writer owns the file (Create)
	registry *codec.Registry
	meta     []byte
	maxSize  uint64
	logger   *slog.Logger

	offsets   []uint64
	next      uint64 // byte position where the next record begins
	finalized bool
	sticky    error // set after an unrecoverable partial write
}

// NewWriter returns a Writer that appends to w, which must be empty and
// positioned at byte zero. The caller retains ownership of w; Finalize does
// not close it.
func NewWriter(w io.Writer, opts ...WriterOption) *Writer {
	sw := &Writer{
		w:        w,
		registry: codec.Default(),
		offsets:  make([]uint64, 0, 1024),
	}
	for _, opt := range opts {
		opt(sw)
	}
	return sw
}

// Create creates the file at path and returns a Writer that owns it.
// Finalize syncs and closes the file. An existing file at path is
// truncated.
func Create(path string, opts ...WriterOption) (*Writer, error) {
	f, err := os.Create(path) //nolint:gosec // user-provided path is intentional
	if err != nil {
		return nil, fmt.Errorf("create shard: %w", err)
	}
	sw := NewWriter(f, opts...)
	sw.file = f
	return sw, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (w *Writer) log() *slog.Logger {
	if w.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return w.logger
}

// RecordCount returns the number of records successfully written so far.
func (w *Writer) RecordCount() uint64 {
	return uint64(len(w.offsets))
}

// Offset returns the byte position where the next record would begin, i.e.
// the size of the record region written so far.
func (w *Writer) Offset() uint64 {
	return w.next
}

// SetMetadata replaces the shard-level metadata to be written on Finalize.
// Valid only before Finalize.
func (w *Writer) SetMetadata(meta []byte) error {
	if w.finalized {
		return ErrAlreadyFinalized
	}
	w.meta = meta
	return nil
}

// WriteRecord encodes rec and appends it to the shard.
//
// Entry payloads are run through the codec named by their CodecTag; an
// empty tag is written as "none". rec is not modified. On an I/O error the
// write is rolled back to the last successful record when the store
// supports it, leaving the Writer open for retry; otherwise the Writer is
// poisoned and further writes fail.
func (w *Writer) WriteRecord(rec *Record) error {
	if w.finalized {
		return ErrAlreadyFinalized
	}
	if w.sticky != nil {
		return fmt.Errorf("shard: writer unusable after failed write: %w", w.sticky)
	}

	stored, err := w.encodePayloads(rec)
	if err != nil {
		return err
	}
	block, err := wire.EncodeRecord(stored)
	if err != nil {
		return err
	}

	if w.maxSize > 0 && len(w.offsets) > 0 && w.next+uint64(len(block)) > w.maxSize {
		return ErrShardFull
	}

	if err := w.append(block); err != nil {
		return fmt.Errorf("shard: write record %q: %w", rec.Key, err)
	}

	w.offsets = append(w.offsets, w.next)
	w.next += uint64(len(block))
	w.log().Debug("record written", "key", rec.Key, "entries", len(rec.Entries), "size", len(block))
	return nil
}

// Finalize writes the trailing index, transitioning the Writer to its
// finalized state. For file-owning Writers (Create) the file is synced and
// closed. Finalize is valid once; any later call, and any later
// WriteRecord, returns ErrAlreadyFinalized.
func (w *Writer) Finalize() error {
	if w.finalized {
		return ErrAlreadyFinalized
	}
	if w.sticky != nil {
		return fmt.Errorf("shard: writer unusable after failed write: %w", w.sticky)
	}

	block, err := wire.EncodeIndex(&wire.Index{Offsets: w.offsets, Meta: w.meta})
	if err != nil {
		return err
	}
	if err := w.append(block); err != nil {
		return fmt.Errorf("shard: finalize: %w", err)
	}
	w.finalized = true

	if w.file != nil {
		if err := w.file.Sync(); err != nil {
			w.file.Close()
			return fmt.Errorf("shard: finalize: sync: %w", err)
		}
		if err := w.file.Close(); err != nil {
			return fmt.Errorf("shard: finalize: close: %w", err)
		}
	}

	w.log().Info("shard finalized",
		"records", len(w.offsets),
		"data_size", w.next,
		"index_size", len(block))
	return nil
}

// Abort discards a file-owning Writer, closing and removing the partial
// file. For Writers over a caller-owned store it only marks the Writer
// finalized. Abort after Finalize is a no-op.
func (w *Writer) Abort() error {
	if w.finalized {
		return nil
	}
	w.finalized = true
	if w.file == nil {
		return nil
	}
	name := w.file.Name()
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("shard: abort: %w", err)
	}
	if err := os.Remove(name); err != nil {
		return fmt.Errorf("shard: abort: %w", err)
	}
	return nil
}

// encodePayloads returns a copy of rec with each entry payload run through
// its codec and empty tags normalized to "none".
func (w *Writer) encodePayloads(rec *Record) (*Record, error) {
	stored := &Record{
		Key:     rec.Key,
		Meta:    rec.Meta,
		Entries: make([]FileEntry, len(rec.Entries)),
	}
	for i := range rec.Entries {
		e := rec.Entries[i]
		if e.CodecTag == "" {
			e.CodecTag = CodecNone
		}
		if e.CodecTag != CodecNone {
			encoded, err := w.registry.Encode(e.CodecTag, e.Payload)
			if err != nil {
				return nil, fmt.Errorf("shard: encode entry %q: %w", e.Name, err)
			}
			e.Payload = encoded
		}
		stored.Entries[i] = e
	}
	return stored, nil
}

// truncater is satisfied by stores that can roll back a partial write;
// *os.File is one.
type truncater interface {
	Truncate(int64) error
	io.Seeker
}

// append writes block, rolling back to the pre-write position on failure
// when the store supports it.
func (w *Writer) append(block []byte) error {
	n, err := w.w.Write(block)
	if err == nil && n < len(block) {
		err = io.ErrShortWrite
	}
	if err == nil {
		return nil
	}

	if n > 0 {
		if t, ok := w.w.(truncater); ok && w.rollback(t) {
			return err
		}
		// Partial bytes are stuck in the store; poison the writer so a
		// later Finalize cannot write an index over garbage.
		w.sticky = err
	}
	return err
}

// rollback restores the store to the end of the last successful record.
func (w *Writer) rollback(t truncater) bool {
	if w.next > uint64(1)<<62 {
		return false
	}
	if err := t.Truncate(int64(w.next)); err != nil {
		w.log().Warn("rollback truncate failed", "error", err)
		return false
	}
	if _, err := t.Seek(int64(w.next), io.SeekStart); err != nil {
		w.log().Warn("rollback seek failed", "error", err)
		return false
	}
	return true
}
