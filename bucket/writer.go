package bucket

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/meigma/shard"
	"github.com/meigma/shard/codec"
)

// DefaultMaxShardSize is the record-region cap at which the Writer rotates
// to a new shard (256MB).
const DefaultMaxShardSize = 256 << 20

// WriterOption configures a bucket Writer.
type WriterOption func(*Writer)

// WithMaxShardSize sets the per-shard record-region cap that triggers
// rotation. Zero restores the default.
func WithMaxShardSize(limit uint64) WriterOption {
	return func(w *Writer) {
		w.maxShardSize = limit
	}
}

// WithWriterRegistry sets the codec registry used to encode entry payloads.
// Defaults to codec.Default().
func WithWriterRegistry(r *codec.Registry) WriterOption {
	return func(w *Writer) {
		w.registry = r
	}
}

// WithWriterLogger sets the logger for shard lifecycle events. Defaults to
// no logging.
func WithWriterLogger(logger *slog.Logger) WriterOption {
	return func(w *Writer) {
		w.logger = logger
	}
}

// Writer appends records to a dataset, rotating to a new shard whenever the
// current one reaches the size cap. Close finalizes the open shard.
//
// Like the shard Writer it wraps, a bucket Writer is single-writer and not
// safe for concurrent use.
type Writer struct {
	dir          string
	dataset      string
	maxShardSize uint64
	registry     *codec.Registry
	logger       *slog.Logger

	seq     int
	cur     *shard.Writer
	curFile *os.File
	hasher  hash.Hash
	paths   []string
	closed  bool
}

// Create starts a bucket Writer for the named dataset under dir. The first
// shard file is created immediately.
func Create(dir, dataset string, opts ...WriterOption) (*Writer, error) {
	w := &Writer{
		dir:          dir,
		dataset:      dataset,
		maxShardSize: DefaultMaxShardSize,
		registry:     codec.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.maxShardSize == 0 {
		w.maxShardSize = DefaultMaxShardSize
	}
	if err := w.openShard(); err != nil {
		return nil, err
	}
	return w, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (w *Writer) log() *slog.Logger {
	if w.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return w.logger
}

// Append writes rec to the current shard, rotating first when the record
// would push the shard past the size cap.
func (w *Writer) Append(rec *shard.Record) error {
	if w.closed {
		return shard.ErrAlreadyFinalized
	}

	err := w.cur.WriteRecord(rec)
	if errors.Is(err, shard.ErrShardFull) {
		if err := w.rotate(); err != nil {
			return err
		}
		err = w.cur.WriteRecord(rec)
	}
	return err
}

// Close finalizes the open shard. The Writer is unusable afterwards.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.finishShard()
}

// Shards returns the paths of all shards written so far, including the one
// currently open.
func (w *Writer) Shards() []string {
	return w.paths
}

// rotate finalizes the current shard and opens the next one.
func (w *Writer) rotate() error {
	if err := w.finishShard(); err != nil {
		return err
	}
	w.seq++
	return w.openShard()
}

// openShard creates the shard file for the current sequence number.
func (w *Writer) openShard() error {
	path := filepath.Join(w.dir, ShardName(w.dataset, w.seq))
	f, err := os.Create(path) //nolint:gosec // path is derived from caller-provided dir and dataset
	if err != nil {
		return fmt.Errorf("bucket: create shard %d: %w", w.seq, err)
	}

	w.curFile = f
	w.hasher = sha256.New()
	w.cur = shard.NewWriter(io.MultiWriter(f, w.hasher),
		shard.WithWriterRegistry(w.registry),
		shard.WithMaxShardSize(w.maxShardSize),
		shard.WithWriterLogger(w.logger),
	)
	w.paths = append(w.paths, path)
	w.log().Info("shard opened", "dataset", w.dataset, "seq", w.seq, "path", path)
	return nil
}

// finishShard stamps the manifest into the current shard and finalizes it.
// The digest is taken before the index bytes are written, so it covers
// exactly the record region.
func (w *Writer) finishShard() error {
	m := Manifest{
		Dataset:    w.dataset,
		Seq:        w.seq,
		Records:    w.cur.RecordCount(),
		DataSHA256: hex.EncodeToString(w.hasher.Sum(nil)),
	}
	meta, err := m.encode()
	if err != nil {
		return err
	}
	if err := w.cur.SetMetadata(meta); err != nil {
		return err
	}
	if err := w.cur.Finalize(); err != nil {
		return err
	}
	if err := w.curFile.Sync(); err != nil {
		return fmt.Errorf("bucket: sync shard %d: %w", w.seq, err)
	}
	if err := w.curFile.Close(); err != nil {
		return fmt.Errorf("bucket: close shard %d: %w", w.seq, err)
	}
	w.log().Info("shard finalized", "dataset", w.dataset, "seq", w.seq, "records", m.Records)
	return nil
}
