package pack

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/falk/mar/pkg/codec"
	"github.com/falk/mar/pkg/index"
	"github.com/falk/mar/pkg/planner"
	"github.com/falk/mar/pkg/walk"
)

// memDataFile is an in-memory stand-in for the append-only .mar.dat file,
// satisfying the packer's narrow dataFile interface without touching disk.
type memDataFile struct {
	buf []byte
	pos int64
}

func (m *memDataFile) Write(p []byte) (int, error) {
	if int(m.pos) < len(m.buf) {
		m.buf = m.buf[:m.pos]
	}
	m.buf = append(m.buf, p...)
	m.pos = int64(len(m.buf))
	return len(p), nil
}

func (m *memDataFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		m.pos = offset
	case io.SeekEnd:
		m.pos = int64(len(m.buf)) + offset
	case io.SeekCurrent:
		m.pos += offset
	}
	return m.pos, nil
}

func writeTree(t *testing.T, files map[string][]byte) string {
	t.Helper()
	root := t.TempDir()
	for rel, data := range files {
		full := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, data, 0o644))
	}
	return root
}

func bodyBytes(t *testing.T, data *memDataFile, offset, size uint64) []byte {
	t.Helper()
	require.LessOrEqual(t, offset+size, uint64(len(data.buf)))
	return data.buf[offset : offset+size]
}

func TestPackBasic(t *testing.T) {
	root := writeTree(t, map[string][]byte{
		"a.txt":     []byte("hello world"),
		"sub/b.txt": bytes.Repeat([]byte{0x00}, 64*1024),
		".DS_Store": []byte("finder junk"),
	})

	data := &memDataFile{}
	idx, err := Pack(root, data, Options{Jobs: 2})
	require.NoError(t, err)
	require.Len(t, idx.Entries, 2)

	idx = Finalize(idx)
	paths := []string{idx.Entries[0].Info.Path, idx.Entries[1].Info.Path}
	require.Equal(t, []string{"/a.txt", "/sub/b.txt"}, paths)

	for _, e := range idx.Entries {
		require.NotEmpty(t, e.Info.Chunks)
		body := bodyBytes(t, data, e.BodyOffset, e.BodySize)
		require.Equal(t, len(body), int(e.BodySize))
	}
}

func TestPackDedupSharesBody(t *testing.T) {
	payload := bytes.Repeat([]byte("duplicate-me "), 1000)
	root := writeTree(t, map[string][]byte{
		"one.bin":   payload,
		"two.bin":   payload,
		"three.bin": payload,
	})

	data := &memDataFile{}
	idx, err := Pack(root, data, Options{Jobs: 4, Dedup: true})
	require.NoError(t, err)
	require.Len(t, idx.Entries, 3)

	offset, size := idx.Entries[0].BodyOffset, idx.Entries[0].BodySize
	for _, e := range idx.Entries {
		require.Equal(t, offset, e.BodyOffset)
		require.Equal(t, size, e.BodySize)
	}

	// Only one copy of the compressed body should have been appended.
	require.LessOrEqual(t, len(data.buf), int(size)+1024)
}

func TestPackWithoutDedupWritesEachBody(t *testing.T) {
	payload := bytes.Repeat([]byte("duplicate-me "), 1000)
	root := writeTree(t, map[string][]byte{
		"one.bin": payload,
		"two.bin": payload,
	})

	data := &memDataFile{}
	idx, err := Pack(root, data, Options{Jobs: 2, Dedup: false})
	require.NoError(t, err)
	require.Len(t, idx.Entries, 2)
	require.NotEqual(t, idx.Entries[0].BodyOffset, idx.Entries[1].BodyOffset)
}

func TestPackFilesRejectsEscapedPath(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	escapedFile := filepath.Join(outside, "escaped.txt")
	require.NoError(t, os.WriteFile(escapedFile, []byte("x"), 0o644))

	data := &memDataFile{}
	_, err := PackFiles(root, []walk.File{{AbsPath: escapedFile, Size: 1}}, data, Options{Jobs: 1})
	require.ErrorIs(t, err, ErrPathEscape)
}

func TestPackUsesRequestedCodecPolicy(t *testing.T) {
	payload := bytes.Repeat([]byte("small"), 10)
	root := writeTree(t, map[string][]byte{"small.txt": payload})

	data := &memDataFile{}
	idx, err := Pack(root, data, Options{Jobs: 1, Policy: planner.PolicyLZ4SmallFiles})
	require.NoError(t, err)
	require.Len(t, idx.Entries, 1)

	// Under PolicyLZ4SmallFiles a small file is stored as LZ4 or
	// Passthrough, never Zstandard.
	method := idx.Entries[0].Info.Chunks[0].CompressedMethod
	require.Contains(t, []codec.Method{codec.Passthrough, codec.LZ4}, method)
}

func TestFinalizeSortsByPath(t *testing.T) {
	unsorted := index.FileIndexFile{
		Entries: []index.FileEntry{
			{Info: index.FileInfo{Path: "/z.txt"}},
			{Info: index.FileInfo{Path: "/a.txt"}},
			{Info: index.FileInfo{Path: "/m/b.txt"}},
		},
	}

	sorted := Finalize(unsorted)
	require.Equal(t, []string{"/a.txt", "/m/b.txt", "/z.txt"}, []string{
		sorted.Entries[0].Info.Path, sorted.Entries[1].Info.Path, sorted.Entries[2].Info.Path,
	})
	// Finalize must not mutate its input.
	require.Equal(t, "/z.txt", unsorted.Entries[0].Info.Path)
}
