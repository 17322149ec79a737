// Package bucket groups the shards of one dataset under a directory.
//
// Shards are named with the dataset name and a zero-padded sequence number
// (e.g., "train-000000.shard"), the convention higher-level tooling relies
// on for brace-range expansion. A bucket Writer rotates to a new shard when
// the current one reaches its size cap; a Bucket opens every shard of a
// dataset and exposes them as one logical record sequence.
//
// Each shard written by this package carries a JSON manifest in its shard
// metadata recording the dataset name, shard sequence, record count, and a
// SHA256 digest of the record region. Bucket.Verify recomputes the digests
// to detect bit rot. The core shard format does not interpret any of this;
// the manifest is ordinary opaque shard metadata.
package bucket
