package codec

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// TagZstd is the tag for the Zstandard codec.
const TagZstd = "zstd"

// DefaultMaxDecoderMemory caps zstd decoder memory (256MB).
const DefaultMaxDecoderMemory = 256 << 20

// Zstd is the Zstandard codec backed by klauspost/compress.
//
// A single Zstd value shares one encoder and one decoder; both support
// concurrent EncodeAll/DecodeAll calls, so the codec is safe for concurrent
// use. Construction is lazy so building the default registry stays cheap.
type Zstd struct {
	once sync.Once
	enc  *zstd.Encoder
	dec  *zstd.Decoder
	err  error
}

// NewZstd returns a Zstd codec with default settings.
func NewZstd() *Zstd {
	return &Zstd{}
}

func (z *Zstd) init() {
	z.once.Do(func() {
		z.enc, z.err = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1), zstd.WithLowerEncoderMem(true))
		if z.err != nil {
			return
		}
		z.dec, z.err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(DefaultMaxDecoderMemory))
	})
}

// Encode implements Codec.
func (z *Zstd) Encode(src []byte) ([]byte, error) {
	z.init()
	if z.err != nil {
		return nil, fmt.Errorf("codec: zstd init: %w", z.err)
	}
	return z.enc.EncodeAll(src, nil), nil
}

// Decode implements Codec.
func (z *Zstd) Decode(src []byte) ([]byte, error) {
	z.init()
	if z.err != nil {
		return nil, fmt.Errorf("codec: zstd init: %w", z.err)
	}
	out, err := z.dec.DecodeAll(src, nil)
	if err != nil {
		return nil, fmt.Errorf("codec: zstd decode: %w", err)
	}
	return out, nil
}
