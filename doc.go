// Package shard implements a self-indexing binary container format for
// large sample-oriented datasets.
//
// A shard file is a sequence of record blocks followed by a single trailing
// index. Each record bundles the files of one sample (e.g., an image and its
// label) together with a key and optional metadata. The trailing index maps
// record positions to byte offsets, so a finalized shard supports both pure
// sequential streaming and O(1) random access to any record without an
// external index file.
//
// # Writing
//
// A Writer appends records sequentially and writes the index on Finalize:
//
//	w, err := shard.Create("train-000000.shard")
//	if err != nil {
//	    return err
//	}
//	err = w.WriteRecord(&shard.Record{
//	    Key: "sample-0",
//	    Entries: []shard.FileEntry{
//	        {Name: "img.jpg", ContentType: "image/jpeg", CodecTag: "none", Payload: img},
//	        {Name: "meta.json", ContentType: "application/json", CodecTag: "zstd", Payload: meta},
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	err = w.Finalize()
//
// A shard is not readable until Finalize succeeds. A writer abandoned before
// Finalize leaves record bytes with no index; readers reject such files.
//
// # Reading
//
//	r, err := shard.Open("train-000000.shard")
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//	rec, err := r.ReadRecord(0)
//
// A Reader performs only positioned reads against its store, so a single
// Reader is safe for concurrent use and any number of Readers may share one
// underlying file.
//
// # Compression
//
// Each file entry names a codec by tag. The [codec] subpackage provides the
// registry; "none", "zstd", and "gzip" are available by default and
// additional codecs may be registered at process start.
package shard
