package shard

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/shard/codec"
)

// buildShard writes records to an in-memory shard and returns its bytes.
func buildShard(tb testing.TB, meta []byte, recs ...*Record) []byte {
	tb.Helper()
	var buf bytes.Buffer
	w := NewWriter(&buf, WithShardMetadata(meta))
	for _, rec := range recs {
		require.NoError(tb, w.WriteRecord(rec), "WriteRecord %q failed", rec.Key)
	}
	require.NoError(tb, w.Finalize(), "Finalize failed")
	return buf.Bytes()
}

// openShard opens an in-memory shard or fails the test.
func openShard(tb testing.TB, b []byte, opts ...ReaderOption) *Reader {
	tb.Helper()
	r, err := NewReader(bytes.NewReader(b), opts...)
	require.NoError(tb, err, "NewReader failed")
	return r
}

// textRecord builds a single-entry record for tests.
func textRecord(key, name, payload string) *Record {
	return &Record{
		Key: key,
		Entries: []FileEntry{
			{Name: name, ContentType: "text/plain", CodecTag: "none", Payload: []byte(payload)},
		},
	}
}

func TestWriterStateMachine(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteRecord(textRecord("a", "x.txt", "hi")))
	assert.Equal(t, uint64(1), w.RecordCount())
	require.NoError(t, w.Finalize())

	assert.ErrorIs(t, w.WriteRecord(textRecord("b", "y.txt", "no")), ErrAlreadyFinalized)
	assert.ErrorIs(t, w.Finalize(), ErrAlreadyFinalized)
	assert.ErrorIs(t, w.SetMetadata([]byte("late")), ErrAlreadyFinalized)
}

func TestWriterEmptyShard(t *testing.T) {
	t.Parallel()

	// Zero records is a valid shard: just an index.
	b := buildShard(t, []byte("meta"))
	r := openShard(t, b)
	assert.Equal(t, uint64(0), r.RecordCount())
	assert.Equal(t, []byte("meta"), r.Metadata())
	assert.Equal(t, uint64(0), r.DataSize())
}

func TestWriterMaxShardSize(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewWriter(&buf, WithMaxShardSize(64))

	// A first record beyond the cap is still accepted.
	big := textRecord("big", "blob.bin", string(bytes.Repeat([]byte{'x'}, 100)))
	require.NoError(t, w.WriteRecord(big))

	err := w.WriteRecord(textRecord("next", "y.txt", "hi"))
	assert.ErrorIs(t, err, ErrShardFull)

	// The shard stays writable after a refused record.
	require.NoError(t, w.Finalize())
	r := openShard(t, buf.Bytes())
	assert.Equal(t, uint64(1), r.RecordCount())
}

func TestWriterCompressesPayloads(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte("compress me "), 1024)
	rec := &Record{
		Key: "a",
		Entries: []FileEntry{
			{Name: "big.txt", ContentType: "text/plain", CodecTag: "zstd", Payload: payload},
		},
	}
	b := buildShard(t, nil, rec)
	assert.Less(t, len(b), len(payload), "stored shard should be smaller than the raw payload")

	// The caller's record must not be mutated by encoding.
	assert.Equal(t, payload, rec.Entries[0].Payload)
	assert.Equal(t, "zstd", rec.Entries[0].CodecTag)

	got, err := openShard(t, b).ReadRecord(0)
	require.NoError(t, err)
	assert.Equal(t, payload, got.Entries[0].Payload)
}

func TestWriterNormalizesEmptyCodecTag(t *testing.T) {
	t.Parallel()

	rec := &Record{
		Key: "a",
		Entries: []FileEntry{
			{Name: "x.txt", ContentType: "text/plain", Payload: []byte("hi")},
		},
	}
	b := buildShard(t, nil, rec)
	assert.Empty(t, rec.Entries[0].CodecTag, "caller record must not be mutated")

	got, err := openShard(t, b).ReadRecord(0)
	require.NoError(t, err)
	assert.Equal(t, CodecNone, got.Entries[0].CodecTag)
	assert.Equal(t, []byte("hi"), got.Entries[0].Payload)
}

func TestWriterUnknownCodec(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewWriter(&buf)
	err := w.WriteRecord(&Record{
		Key: "a",
		Entries: []FileEntry{
			{Name: "x.bin", ContentType: "application/octet-stream", CodecTag: "zz", Payload: []byte("hi")},
		},
	})
	assert.ErrorIs(t, err, ErrUnsupportedCodec)

	// The failed record left no bytes behind.
	assert.Equal(t, uint64(0), w.RecordCount())
	assert.Zero(t, buf.Len())
}

func TestWriterInvalidRecord(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewWriter(&buf)
	err := w.WriteRecord(&Record{
		Key:     "a",
		Entries: []FileEntry{{ContentType: "text/plain", CodecTag: "none"}},
	})
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestCreateFinalizeAndOpen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data-000000.shard")
	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteRecord(textRecord("a", "x.txt", "hi")))
	require.NoError(t, w.Finalize())

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, uint64(1), f.RecordCount())

	rec, err := f.ReadRecord(0)
	require.NoError(t, err)
	assert.Equal(t, "a", rec.Key)
}

func TestCreateFailsOnBadPath(t *testing.T) {
	t.Parallel()

	_, err := Create(filepath.Join(t.TempDir(), "missing", "dir", "x.shard"))
	assert.Error(t, err)
}

func TestWriterAbort(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "aborted.shard")
	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteRecord(textRecord("a", "x.txt", "hi")))
	require.NoError(t, w.Abort())

	_, err = os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.ErrorIs(t, w.WriteRecord(textRecord("b", "y.txt", "no")), ErrAlreadyFinalized)
}

// flakyStore fails one Write call partway through, then behaves. It supports
// rollback via Truncate and Seek like a file does.
type flakyStore struct {
	buf    []byte
	failAt int // 1-based write call to fail
	writes int
}

func (f *flakyStore) Write(p []byte) (int, error) {
	f.writes++
	if f.writes == f.failAt {
		n := len(p) / 2
		f.buf = append(f.buf, p[:n]...)
		return n, errors.New("disk full")
	}
	f.buf = append(f.buf, p...)
	return len(p), nil
}

func (f *flakyStore) Truncate(n int64) error {
	if n < 0 || n > int64(len(f.buf)) {
		return errors.New("bad truncate")
	}
	f.buf = f.buf[:n]
	return nil
}

func (f *flakyStore) Seek(off int64, _ int) (int64, error) {
	return off, nil
}

func TestWriterRetryAfterFailedWrite(t *testing.T) {
	t.Parallel()

	store := &flakyStore{failAt: 2}
	w := NewWriter(store)
	require.NoError(t, w.WriteRecord(textRecord("a", "x.txt", "hi")))

	// The second write fails partway; the store rolls back to the last
	// successful record and the writer stays open.
	err := w.WriteRecord(textRecord("b", "y.txt", "hello"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAlreadyFinalized)
	assert.Equal(t, uint64(1), w.RecordCount())

	// Retry succeeds and the shard is fully readable.
	require.NoError(t, w.WriteRecord(textRecord("b", "y.txt", "hello")))
	require.NoError(t, w.Finalize())

	r := openShard(t, store.buf)
	assert.Equal(t, uint64(2), r.RecordCount())
	rec, err := r.ReadRecord(1)
	require.NoError(t, err)
	assert.Equal(t, "b", rec.Key)
}

func TestWriterPoisonedWithoutRollback(t *testing.T) {
	t.Parallel()

	// A bare io.Writer cannot roll back a partial write; the writer must
	// refuse to continue rather than finalize over garbage.
	store := &flakyWriter{failAt: 2}
	w := NewWriter(store)
	require.NoError(t, w.WriteRecord(textRecord("a", "x.txt", "hi")))
	require.Error(t, w.WriteRecord(textRecord("b", "y.txt", "hello")))

	assert.Error(t, w.WriteRecord(textRecord("c", "z.txt", "again")))
	assert.Error(t, w.Finalize())
}

// flakyWriter is flakyStore without rollback support.
type flakyWriter struct {
	buf    []byte
	failAt int
	writes int
}

func (f *flakyWriter) Write(p []byte) (int, error) {
	f.writes++
	if f.writes == f.failAt {
		n := len(p) / 2
		f.buf = append(f.buf, p[:n]...)
		return n, errors.New("disk full")
	}
	f.buf = append(f.buf, p...)
	return len(p), nil
}

func TestWriterCustomRegistry(t *testing.T) {
	t.Parallel()

	reg := codec.NewRegistry()
	reg.Register("zz", passthrough{})

	var buf bytes.Buffer
	w := NewWriter(&buf, WithWriterRegistry(reg))
	require.NoError(t, w.WriteRecord(&Record{
		Key: "a",
		Entries: []FileEntry{
			{Name: "x.bin", ContentType: "application/octet-stream", CodecTag: "zz", Payload: []byte("hi")},
		},
	}))
	require.NoError(t, w.Finalize())

	// Reading with a registry that knows "zz" works.
	r := openShard(t, buf.Bytes(), WithReaderRegistry(reg))
	rec, err := r.ReadRecord(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), rec.Entries[0].Payload)
}

// passthrough is a codec that stores bytes unchanged, for registry tests.
type passthrough struct{}

func (passthrough) Encode(src []byte) ([]byte, error) { return src, nil }
func (passthrough) Decode(src []byte) ([]byte, error) { return src, nil }
