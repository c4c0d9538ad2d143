// Package index implements the FileIndexFile schema (spec.md §3) and its
// on-disk container format (spec.md §4.6): a length-prefixed,
// Zstandard-compressed, protobuf-schema-defined payload.
package index

import "github.com/falk/mar/pkg/codec"

// Timestamp mirrors the wire shape of google.protobuf.Timestamp: field 1
// is whole seconds since the Unix epoch, field 2 is the nanosecond
// remainder.
type Timestamp struct {
	Seconds int64
	Nanos   int32
}

// ChunkInfo describes one stored, possibly-compressed slice of a file's
// original bytes.
type ChunkInfo struct {
	CompressedLength uint32
	CompressedMethod codec.Method
	OriginalLength   uint32
}

// FileInfo is the metadata record for one logical file (spec.md §3).
type FileInfo struct {
	Path string
	// Chunks is the ordered sequence describing how the body is segmented.
	Chunks []ChunkInfo

	ChunksCRC32  uint32
	ChunksSHA256 []byte

	OriginalCRC32  uint32
	OriginalSHA256 []byte

	ModifiedTime Timestamp

	// Priority is reserved for future ordering hints; always 0 today.
	Priority uint32
}

// FileEntry pairs a FileInfo with its location in the data file.
type FileEntry struct {
	Info FileInfo

	// FileIndex is unused; always 0 (spec.md §3).
	FileIndex uint32

	BodyOffset uint64
	BodySize   uint64
}

// FileIndexFile is the full, finalized index: FileEntry values sorted
// ascending by Info.Path (byte-wise) at write time.
type FileIndexFile struct {
	Entries []FileEntry
}
