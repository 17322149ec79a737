package bucket

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/shard"
	"github.com/meigma/shard/codec"
)

// defaultOpenConcurrency bounds parallel index loads and verification.
const defaultOpenConcurrency = 8

// OpenOption configures Open.
type OpenOption func(*Bucket)

// WithReaderRegistry sets the codec registry used to decode entry payloads.
// Defaults to codec.Default().
func WithReaderRegistry(r *codec.Registry) OpenOption {
	return func(b *Bucket) {
		b.registry = r
	}
}

// Bucket is the read side of a dataset: every shard of the dataset opened
// together and exposed as one logical record sequence.
//
// Record positions are global: position i falls in the shard whose
// cumulative count first exceeds i. A Bucket only ever performs positioned
// reads and is safe for concurrent use.
type Bucket struct {
	dir      string
	dataset  string
	registry *codec.Registry

	paths     []string
	files     []*shard.File
	manifests []*Manifest
	cum       []uint64 // cum[i] = records in shards 0..i inclusive
}

// Open opens every shard of the named dataset under dir. Shards are
// discovered by probing sequence numbers from zero until a gap; indexes are
// loaded in parallel. A dataset with no shard 0 fails with fs.ErrNotExist.
func Open(ctx context.Context, dir, dataset string, opts ...OpenOption) (*Bucket, error) {
	b := &Bucket{
		dir:      dir,
		dataset:  dataset,
		registry: codec.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}

	for seq := 0; ; seq++ {
		path := filepath.Join(dir, ShardName(dataset, seq))
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				break
			}
			return nil, fmt.Errorf("bucket: stat shard %d: %w", seq, err)
		}
		b.paths = append(b.paths, path)
	}
	if len(b.paths) == 0 {
		return nil, fmt.Errorf("bucket: dataset %q has no shards in %s: %w", dataset, dir, fs.ErrNotExist)
	}

	b.files = make([]*shard.File, len(b.paths))
	b.manifests = make([]*Manifest, len(b.paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultOpenConcurrency)
	for i, path := range b.paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := shard.Open(path, shard.WithReaderRegistry(b.registry))
			if err != nil {
				return fmt.Errorf("bucket: open shard %d: %w", i, err)
			}
			m, err := ParseManifest(f.Metadata())
			if err != nil {
				f.Close()
				return fmt.Errorf("bucket: shard %d: %w", i, err)
			}
			b.files[i] = f
			b.manifests[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		b.Close()
		return nil, err
	}

	b.cum = make([]uint64, len(b.files))
	var total uint64
	for i, f := range b.files {
		total += f.RecordCount()
		b.cum[i] = total
	}
	return b, nil
}

// Close closes every open shard, returning the first error.
func (b *Bucket) Close() error {
	var first error
	for _, f := range b.files {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Len returns the number of shards.
func (b *Bucket) Len() int {
	return len(b.files)
}

// Shard returns the open reader for shard seq.
func (b *Bucket) Shard(seq int) *shard.File {
	return b.files[seq]
}

// Manifest returns the parsed manifest for shard seq.
func (b *Bucket) Manifest(seq int) *Manifest {
	return b.manifests[seq]
}

// RecordCount returns the total number of records across all shards.
func (b *Bucket) RecordCount() uint64 {
	if len(b.cum) == 0 {
		return 0
	}
	return b.cum[len(b.cum)-1]
}

// ReadRecord reads the record at global position i.
func (b *Bucket) ReadRecord(i uint64) (*shard.Record, error) {
	if i >= b.RecordCount() {
		return nil, fmt.Errorf("%w: %d of %d", shard.ErrIndexOutOfRange, i, b.RecordCount())
	}
	s := sort.Search(len(b.cum), func(j int) bool { return b.cum[j] > i })
	local := i
	if s > 0 {
		local -= b.cum[s-1]
	}
	return b.files[s].ReadRecord(int(local))
}

// Records returns a restartable iterator over all records in shard order.
func (b *Bucket) Records() iter.Seq2[*shard.Record, error] {
	return func(yield func(*shard.Record, error) bool) {
		for _, f := range b.files {
			for rec, err := range f.Records() {
				if !yield(rec, err) {
					return
				}
				if err != nil {
					return
				}
			}
		}
	}
}

// Verify recomputes each shard's record-region digest and compares it with
// the manifest, in parallel. It returns the first mismatch or I/O error.
func (b *Bucket) Verify(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultOpenConcurrency)
	for i := range b.files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return b.verifyShard(i)
		})
	}
	return g.Wait()
}

// verifyShard hashes shard i's record region with an independent file
// handle so concurrent readers are undisturbed.
func (b *Bucket) verifyShard(i int) error {
	f, err := os.Open(b.paths[i]) //nolint:gosec // paths were built by Open
	if err != nil {
		return fmt.Errorf("bucket: verify shard %d: %w", i, err)
	}
	defer f.Close()

	dataSize := b.files[i].DataSize()
	if dataSize > uint64(1)<<62 {
		return fmt.Errorf("bucket: verify shard %d: %w", i, shard.ErrSizeOverflow)
	}
	hasher := sha256.New()
	if _, err := io.Copy(hasher, io.NewSectionReader(f, 0, int64(dataSize))); err != nil {
		return fmt.Errorf("bucket: verify shard %d: %w", i, err)
	}

	got := hex.EncodeToString(hasher.Sum(nil))
	if want := b.manifests[i].DataSHA256; got != want {
		return fmt.Errorf("bucket: shard %d digest mismatch: manifest %s, computed %s", i, want, got)
	}
	return nil
}
