package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestZstdRoundTrip(t *testing.T) {
	src := bytes.Repeat([]byte("abc"), 10000)
	compressed, err := CompressZstd(src)
	require.NoError(t, err)
	require.Less(t, len(compressed), len(src))

	out, err := DecompressZstd(compressed)
	require.NoError(t, err)
	require.True(t, bytes.Equal(out, src))
}

func TestZstdIncompressible(t *testing.T) {
	src := []byte("abcdefgh")
	compressed, err := CompressZstd(src)
	require.NoError(t, err)
	out, err := DecompressZstd(compressed)
	require.NoError(t, err)
	require.True(t, bytes.Equal(out, src))
}

func TestLZ4RoundTrip(t *testing.T) {
	src := bytes.Repeat([]byte("hello world, lz4 block format"), 5000)
	compressed, err := CompressLZ4(src)
	require.NoError(t, err)
	require.Less(t, len(compressed), len(src))

	out, err := DecompressLZ4(compressed, len(src))
	require.NoError(t, err)
	require.True(t, bytes.Equal(out, src))
}

func TestPassthrough(t *testing.T) {
	src := []byte("raw bytes")
	require.Equal(t, src, Passthrough(src))
}
