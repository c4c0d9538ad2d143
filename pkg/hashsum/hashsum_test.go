package hashsum

import (
	"bytes"
	"crypto/sha256"
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSumMatchesStdlib(t *testing.T) {
	data := []byte("abcdefgh")
	sums, err := Sum(bytes.NewReader(data))
	require.NoError(t, err)

	require.Equal(t, int64(len(data)), sums.Size)
	require.Equal(t, crc32.ChecksumIEEE(data), sums.CRC32)
	require.Equal(t, sha256.Sum256(data), sums.SHA256)
}

func TestSumBytesMatchesSum(t *testing.T) {
	data := bytes.Repeat([]byte("xyz"), 20000)
	fromReader, err := Sum(bytes.NewReader(data))
	require.NoError(t, err)
	fromBytes := SumBytes(data)
	require.Equal(t, fromReader, fromBytes)
}

func TestSumEmpty(t *testing.T) {
	sums, err := Sum(bytes.NewReader(nil))
	require.NoError(t, err)
	require.Equal(t, int64(0), sums.Size)
	require.Equal(t, sha256.Sum256(nil), sums.SHA256)
}
