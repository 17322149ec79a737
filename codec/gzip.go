package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// TagGzip is the tag for the gzip codec.
const TagGzip = "gzip"

// Gzip is the gzip codec backed by klauspost/compress.
//
// Writers and readers are created per call, so the zero value is usable and
// safe for concurrent use.
type Gzip struct{}

// Encode implements Codec.
func (Gzip) Encode(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(src); err != nil {
		return nil, fmt.Errorf("codec: gzip encode: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("codec: gzip encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode implements Codec.
func (Gzip) Decode(src []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("codec: gzip decode: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("codec: gzip decode: %w", err)
	}
	return out, nil
}
