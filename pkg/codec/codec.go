// Package codec is a thin facade over the compressors used to store chunk
// bodies: LZ4 block format, Zstandard, and passthrough (identity).
package codec

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Method identifies which codec produced a chunk's compressed bytes.
type Method uint32

const (
	Passthrough Method = 0
	LZ4         Method = 1
	Zstandard   Method = 2
)

func (m Method) String() string {
	switch m {
	case Passthrough:
		return "passthrough"
	case LZ4:
		return "lz4"
	case Zstandard:
		return "zstd"
	default:
		return fmt.Sprintf("method(%d)", uint32(m))
	}
}

// Error wraps a codec failure with the method that produced it.
type Error struct {
	Method Method
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("codec %s: %v", e.Method, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

var zstdDecoder, _ = zstd.NewReader(nil)

var zstdEncoderPools sync.Map // map[zstd.EncoderLevel]*sync.Pool

func zstdEncoderPool(level zstd.EncoderLevel) *sync.Pool {
	if p, ok := zstdEncoderPools.Load(level); ok {
		return p.(*sync.Pool)
	}
	pool := &sync.Pool{
		New: func() any {
			enc, _ := zstd.NewWriter(nil,
				zstd.WithEncoderLevel(level),
				zstd.WithEncoderConcurrency(1),
			)
			return enc
		},
	}
	actual, _ := zstdEncoderPools.LoadOrStore(level, pool)
	return actual.(*sync.Pool)
}

// CompressZstd compresses src at Zstandard level 22 ("best compression").
func CompressZstd(src []byte) ([]byte, error) {
	pool := zstdEncoderPool(zstd.SpeedBestCompression)
	enc := pool.Get().(*zstd.Encoder)
	defer pool.Put(enc)

	out := enc.EncodeAll(src, make([]byte, 0, len(src)))
	return out, nil
}

// DecompressZstd reverses CompressZstd.
func DecompressZstd(src []byte) ([]byte, error) {
	out, err := zstdDecoder.DecodeAll(src, nil)
	if err != nil {
		return nil, &Error{Method: Zstandard, Err: err}
	}
	return out, nil
}

// lz4HCLevel approximates liblz4's HC level 12 (spec.md §4.3); pierrec's
// CompressionLevel scale tops out at Level9, the highest level it exposes.
const lz4HCLevel = lz4.Level9

// CompressLZ4 compresses src using the raw LZ4 block format (no frame
// header, no size prefix) at a high compression level.
func CompressLZ4(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}
	dst := make([]byte, lz4.CompressBlockBound(len(src)))
	n, err := lz4.CompressBlockHC(src, dst, lz4HCLevel, nil, nil)
	if err != nil {
		return nil, &Error{Method: LZ4, Err: err}
	}
	if n == 0 {
		// Incompressible: CompressBlockHC reports this by returning 0.
		return nil, &Error{Method: LZ4, Err: fmt.Errorf("input is not compressible")}
	}
	return dst[:n], nil
}

// DecompressLZ4 reverses CompressLZ4; dstLen is the known decompressed size.
func DecompressLZ4(src []byte, dstLen int) ([]byte, error) {
	dst := make([]byte, dstLen)
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return nil, &Error{Method: LZ4, Err: err}
	}
	if n != dstLen {
		return nil, &Error{Method: LZ4, Err: fmt.Errorf("decompressed %d bytes, expected %d", n, dstLen)}
	}
	return dst, nil
}

// Passthrough returns src unchanged; cost-free by construction.
func Passthrough(src []byte) []byte {
	return src
}
