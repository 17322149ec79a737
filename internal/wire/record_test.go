package wire

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mustEncodeRecord encodes a record or fails the test.
func mustEncodeRecord(tb testing.TB, rec *Record) []byte {
	tb.Helper()
	b, err := EncodeRecord(rec)
	require.NoError(tb, err, "EncodeRecord failed")
	return b
}

func TestRecordRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rec  Record
	}{
		{
			name: "zero entries",
			rec:  Record{Key: "empty"},
		},
		{
			name: "empty key",
			rec: Record{
				Entries: []FileEntry{
					{Name: "a", ContentType: "text/plain", CodecTag: "none", Payload: []byte("x")},
				},
			},
		},
		{
			name: "zero length payload",
			rec: Record{
				Key: "k",
				Entries: []FileEntry{
					{Name: "empty.bin", ContentType: "application/octet-stream", CodecTag: "none"},
				},
			},
		},
		{
			name: "metadata and multiple entries",
			rec: Record{
				Key:  "sample-42",
				Meta: []byte(`{"label":3}`),
				Entries: []FileEntry{
					{Name: "img.jpg", ContentType: "image/jpeg", CodecTag: "none", Payload: []byte{0xff, 0xd8, 0x00, 0x01}},
					{Name: "label.txt", ContentType: "text/plain", CodecTag: "none", Payload: []byte("cat")},
				},
			},
		},
		{
			name: "multi-byte text",
			rec: Record{
				Key:  "日本語-キー",
				Meta: []byte("méta"),
				Entries: []FileEntry{
					{Name: "файл.txt", ContentType: "text/plain; charset=utf-8", CodecTag: "none", Payload: []byte("héllo wörld")},
				},
			},
		},
		{
			name: "arbitrary payload bytes",
			rec: Record{
				Key: "bin",
				Entries: []FileEntry{
					{Name: "z.bin", ContentType: "application/octet-stream", CodecTag: "none", Payload: []byte{0x00, 0x01, 0xfe, 0xff, '\n', 0x00}},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b := mustEncodeRecord(t, &tt.rec)

			declared := binary.LittleEndian.Uint64(b)
			assert.Equal(t, uint64(len(b)), declared, "declared size must equal encoded length")

			got, n, err := DecodeRecord(b)
			require.NoError(t, err)
			assert.Equal(t, len(b), n, "decode must consume the whole block")
			assert.Equal(t, tt.rec.Key, got.Key)
			assert.Equal(t, tt.rec.Meta, got.Meta)
			require.Len(t, got.Entries, len(tt.rec.Entries))
			for i := range tt.rec.Entries {
				assert.Equal(t, tt.rec.Entries[i].Name, got.Entries[i].Name)
				assert.Equal(t, tt.rec.Entries[i].ContentType, got.Entries[i].ContentType)
				assert.Equal(t, tt.rec.Entries[i].CodecTag, got.Entries[i].CodecTag)
				assert.Equal(t, tt.rec.Entries[i].Payload, got.Entries[i].Payload)
			}
		})
	}
}

func TestRecordRoundTripTrailingBytes(t *testing.T) {
	t.Parallel()

	rec := Record{
		Key:     "a",
		Entries: []FileEntry{{Name: "x", ContentType: "text/plain", CodecTag: "none", Payload: []byte("hi")}},
	}
	b := mustEncodeRecord(t, &rec)
	// A decoder handed more bytes than one record must stop at the
	// declared size.
	got, n, err := DecodeRecord(append(b, 0xaa, 0xbb, 0xcc))
	require.NoError(t, err)
	assert.Equal(t, len(b), n)
	assert.Equal(t, "a", got.Key)
}

func TestDecodeRecordTruncated(t *testing.T) {
	t.Parallel()

	rec := Record{
		Key:  "trunc",
		Meta: []byte("m"),
		Entries: []FileEntry{
			{Name: "a.bin", ContentType: "application/octet-stream", CodecTag: "none", Payload: bytes.Repeat([]byte{0x42}, 64)},
		},
	}
	b := mustEncodeRecord(t, &rec)

	// Every proper prefix must fail with ErrTruncatedRecord; the size
	// field promises more bytes than are available.
	for cut := 1; cut < len(b); cut++ {
		_, _, err := DecodeRecord(b[:len(b)-cut])
		assert.ErrorIs(t, err, ErrTruncatedRecord, "prefix of %d bytes", len(b)-cut)
	}
}

func TestDecodeRecordSizeMismatch(t *testing.T) {
	t.Parallel()

	rec := Record{
		Key:     "a",
		Entries: []FileEntry{{Name: "x", ContentType: "text/plain", CodecTag: "none", Payload: []byte("hi")}},
	}
	b := mustEncodeRecord(t, &rec)

	t.Run("declared size too large for fields", func(t *testing.T) {
		t.Parallel()
		// Inflate the record size field; decoding consumes fewer bytes
		// than declared.
		grown := append(mustEncodeRecord(t, &rec), 0x00, 0x00)
		binary.LittleEndian.PutUint64(grown, uint64(len(grown)))
		_, _, err := DecodeRecord(grown)
		assert.ErrorIs(t, err, ErrSizeMismatch)
	})

	t.Run("declared size below header", func(t *testing.T) {
		t.Parallel()
		bad := bytes.Clone(b)
		binary.LittleEndian.PutUint64(bad, 3)
		_, _, err := DecodeRecord(bad)
		assert.ErrorIs(t, err, ErrSizeMismatch)
	})

	t.Run("corrupted payload length", func(t *testing.T) {
		t.Parallel()
		bad := bytes.Clone(b)
		// payload_len sits 8 bytes before the payload at the end.
		off := len(bad) - 2 - 8
		binary.LittleEndian.PutUint64(bad[off:], 1<<40)
		_, _, err := DecodeRecord(bad)
		assert.ErrorIs(t, err, ErrTruncatedRecord)
	})

	t.Run("corrupted entry count", func(t *testing.T) {
		t.Parallel()
		bad := bytes.Clone(b)
		// entry_count follows size(8) + key_len(4)+key(1) + meta_len(4).
		binary.LittleEndian.PutUint32(bad[17:], 1<<30)
		_, _, err := DecodeRecord(bad)
		assert.ErrorIs(t, err, ErrTruncatedRecord)
	})
}

func TestEncodeRecordInvalid(t *testing.T) {
	t.Parallel()

	t.Run("empty entry name", func(t *testing.T) {
		t.Parallel()
		_, err := EncodeRecord(&Record{
			Entries: []FileEntry{{ContentType: "text/plain", CodecTag: "none"}},
		})
		assert.ErrorIs(t, err, ErrInvalidRecord)
	})

	t.Run("empty content type", func(t *testing.T) {
		t.Parallel()
		_, err := EncodeRecord(&Record{
			Entries: []FileEntry{{Name: "a", CodecTag: "none"}},
		})
		assert.ErrorIs(t, err, ErrInvalidRecord)
	})

	t.Run("empty codec tag", func(t *testing.T) {
		t.Parallel()
		_, err := EncodeRecord(&Record{
			Entries: []FileEntry{{Name: "a", ContentType: "text/plain"}},
		})
		assert.ErrorIs(t, err, ErrInvalidRecord)
	})
}

func TestEncodedRecordSize(t *testing.T) {
	t.Parallel()

	rec := Record{
		Key:  "k",
		Meta: []byte("meta"),
		Entries: []FileEntry{
			{Name: "a", ContentType: "text/plain", CodecTag: "gzip", Payload: []byte("abc")},
			{Name: "b", ContentType: "image/png", CodecTag: "none"},
		},
	}
	size, err := EncodedRecordSize(&rec)
	require.NoError(t, err)
	b := mustEncodeRecord(t, &rec)
	assert.Equal(t, uint64(len(b)), size)
}

func TestRecordEntryLookup(t *testing.T) {
	t.Parallel()

	rec := Record{
		Key: "k",
		Entries: []FileEntry{
			{Name: "a", ContentType: "text/plain", CodecTag: "none", Payload: []byte("1")},
			{Name: "b", ContentType: "text/plain", CodecTag: "none", Payload: []byte("2")},
			{Name: "a", ContentType: "text/plain", CodecTag: "none", Payload: []byte("3")},
		},
	}

	e, ok := rec.Entry("b")
	require.True(t, ok)
	assert.Equal(t, []byte("2"), e.Payload)

	// First match wins for duplicate names.
	e, ok = rec.Entry("a")
	require.True(t, ok)
	assert.Equal(t, []byte("1"), e.Payload)

	_, ok = rec.Entry("missing")
	assert.False(t, ok)
}
