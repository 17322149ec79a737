package bucket

import (
	"encoding/json"
	"fmt"
)

// Manifest is the JSON document stored in each shard's metadata.
type Manifest struct {
	// Dataset is the bucket's dataset name.
	Dataset string `json:"dataset"`

	// Seq is the shard's position in the dataset, starting at 0.
	Seq int `json:"seq"`

	// Records is the number of records in the shard.
	Records uint64 `json:"records"`

	// DataSHA256 is the hex SHA256 digest of the shard's record region
	// (every byte before the index).
	DataSHA256 string `json:"data_sha256"`
}

// ParseManifest decodes a shard metadata blob written by this package.
func ParseManifest(meta []byte) (*Manifest, error) {
	if len(meta) == 0 {
		return nil, fmt.Errorf("bucket: shard has no manifest")
	}
	var m Manifest
	if err := json.Unmarshal(meta, &m); err != nil {
		return nil, fmt.Errorf("bucket: parse manifest: %w", err)
	}
	return &m, nil
}

// encode serializes the manifest for storage in shard metadata.
func (m *Manifest) encode() ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("bucket: encode manifest: %w", err)
	}
	return b, nil
}

// ShardName returns the file name for shard seq of the named dataset,
// following the zero-padded convention (e.g., "train-000042.shard").
func ShardName(dataset string, seq int) string {
	return fmt.Sprintf("%s-%06d.shard", dataset, seq)
}
