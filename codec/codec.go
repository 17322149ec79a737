// Package codec provides the compression codec registry for shard file
// entries.
//
// Codecs are selected by string tag. The identity codec "none" is always
// present; "zstd" and "gzip" are registered in the default registry.
// Additional codecs may be registered at process start. A shard written
// with a tag unknown to the reading process fails with [ErrUnsupportedCodec]
// rather than a format error: the bytes remain valid, only undecodable here.
package codec

import (
	"fmt"
	"sync"
)

// ErrUnsupportedCodec is returned when a codec tag is not registered.
// Distinct from format corruption; the operation may be retried after
// registering the codec.
var ErrUnsupportedCodec = fmt.Errorf("codec: unsupported codec")

// TagNone is the identity codec tag.
const TagNone = "none"

// Codec is a pure encode/decode function pair. Implementations must be
// safe for concurrent use.
type Codec interface {
	// Encode returns the stored form of src.
	Encode(src []byte) ([]byte, error)

	// Decode reverses Encode.
	Decode(src []byte) ([]byte, error)
}

// Registry maps codec tags to Codec implementations.
//
// The zero value is not usable; call NewRegistry. A Registry is safe for
// concurrent use.
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]Codec
}

// NewRegistry returns a registry containing only the identity codec.
func NewRegistry() *Registry {
	return &Registry{
		codecs: map[string]Codec{TagNone: identity{}},
	}
}

// Register adds or replaces the codec for tag.
func (r *Registry) Register(tag string, c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[tag] = c
}

// Lookup returns the codec registered for tag.
func (r *Registry) Lookup(tag string) (Codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[tag]
	return c, ok
}

// Encode runs src through the codec registered for tag.
func (r *Registry) Encode(tag string, src []byte) ([]byte, error) {
	c, ok := r.Lookup(tag)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCodec, tag)
	}
	return c.Encode(src)
}

// Decode reverses Encode for the codec registered for tag.
func (r *Registry) Decode(tag string, src []byte) ([]byte, error) {
	c, ok := r.Lookup(tag)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCodec, tag)
	}
	return c.Decode(src)
}

// identity is the "none" codec: payloads pass through unchanged.
type identity struct{}

func (identity) Encode(src []byte) ([]byte, error) { return src, nil }
func (identity) Decode(src []byte) ([]byte, error) { return src, nil }

// defaultRegistry holds the process-wide registry returned by Default.
var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry, preloaded with the "none",
// "zstd", and "gzip" codecs.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
		defaultRegistry.Register(TagZstd, NewZstd())
		defaultRegistry.Register(TagGzip, Gzip{})
	})
	return defaultRegistry
}
