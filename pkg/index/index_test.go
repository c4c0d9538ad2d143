package index

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/falk/mar/pkg/codec"
)

func sampleIndex() FileIndexFile {
	return FileIndexFile{
		Entries: []FileEntry{
			{
				Info: FileInfo{
					Path: "/a.txt",
					Chunks: []ChunkInfo{
						{CompressedLength: 8, CompressedMethod: codec.Passthrough, OriginalLength: 8},
					},
					ChunksCRC32:    1,
					ChunksSHA256:   []byte{1, 2, 3},
					OriginalCRC32:  2,
					OriginalSHA256: []byte{4, 5, 6},
					ModifiedTime:   Timestamp{Seconds: 1700000000, Nanos: 123},
					Priority:       0,
				},
				BodyOffset: 0,
				BodySize:   8,
			},
			{
				Info: FileInfo{
					Path: "/b/c.bin",
					Chunks: []ChunkInfo{
						{CompressedLength: 100, CompressedMethod: codec.Zstandard, OriginalLength: 400},
						{CompressedLength: 50, CompressedMethod: codec.LZ4, OriginalLength: 200},
					},
					OriginalSHA256: bytes.Repeat([]byte{0xAB}, 32),
				},
				BodyOffset: 8,
				BodySize:   150,
			},
		},
	}
}

func TestWireRoundTrip(t *testing.T) {
	f := sampleIndex()
	raw := Marshal(f)
	got, err := Unmarshal(raw)
	require.NoError(t, err)
	require.Equal(t, f, got)
}

func TestContainerRoundTrip(t *testing.T) {
	f := sampleIndex()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, f))

	got, err := Read(&buf)
	require.NoError(t, err)
	require.Equal(t, f, got)
}

func TestContainerBadMagic(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("XXXX00000000")))
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestContainerEmptyIndex(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FileIndexFile{}))
	got, err := Read(&buf)
	require.NoError(t, err)
	require.Empty(t, got.Entries)
}
