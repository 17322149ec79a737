// Package wire implements the binary layout of shard record blocks and the
// trailing index.
//
// All multi-byte integers are little-endian. Strings and blobs are
// length-prefixed, never NUL-terminated, so arbitrary bytes round-trip
// exactly.
//
// Record block:
//
//	record_size:u64 | key_len:u32 | key | meta_len:u32 | meta |
//	entry_count:u32 | entries...
//
// File entry:
//
//	name_len:u32 | name | ctype_len:u32 | ctype |
//	codec_len:u16 | codec_tag | payload_len:u64 | payload
//
// Trailing index:
//
//	record_count:u64 | offsets:[u64; record_count] |
//	shard_meta_len:u64 | shard_meta |
//	index_size:u64 | version:u32 | magic:[8]byte
//
// The final 20 bytes (index_size, version, magic) form a fixed trailer. A
// reader locates the index by reading the trailer from end-of-file,
// validating the magic and version, and seeking back index_size bytes.
// index_size counts the whole index block, trailer included.
package wire
