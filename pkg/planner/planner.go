// Package planner decides, per file, between whole-file and chunked
// compression, and selects a codec per chunk (spec.md §4.4).
package planner

import (
	"github.com/falk/mar/pkg/codec"
	"github.com/falk/mar/pkg/index"
)

// ChunkSize is the stride used for Shape B (multi-chunk) files.
const ChunkSize = 4 * 1024 * 1024

// singleChunkThreshold is the largest size eligible for Shape A.
const singleChunkThreshold = 8 * 1024 * 1024

// compressibleRatio is the "does this chunk compress well enough to keep"
// threshold: a chunk must compress to under 3/4 of its original size.
const compressibleRatioNum, compressibleRatioDen = 3, 4

// coalesceThreshold: the last chunk is a coalesce candidate only if its
// compressed size is under 3/4 of ChunkSize.
const coalesceThresholdNum, coalesceThresholdDen = 3, 4

// Policy selects which codec family the planner is allowed to use.
// PolicyZstdOnly is spec.md §9's canonical, default policy; PolicyLZ4SmallFiles
// is the "earlier variant" spec.md §9 names as an implementer-exposed knob.
type Policy int

const (
	PolicyZstdOnly Policy = iota
	PolicyLZ4SmallFiles
)

// lz4SmallFileThreshold is the "earlier variant"'s own CHUNK_SIZE (spec.md
// §9: "512 KiB vs 4 MiB"), used only to decide whether a whole file is
// small enough to try LZ4 under PolicyLZ4SmallFiles. Shape B's stride
// remains ChunkSize (4 MiB) under both policies: fully replicating a
// second, independently-sized chunking scheme is out of scope for what is
// explicitly an optional implementer knob (spec.md §9's open question).
const lz4SmallFileThreshold = 512 * 1024

// Chunk is one planned, already-compressed slice of a file's bytes.
type Chunk struct {
	Info       index.ChunkInfo
	Compressed []byte
}

// Plan produces the ordered chunk list for a file's bytes, using the
// canonical Zstandard-only, coalescing policy (spec.md §4.4).
func Plan(data []byte) ([]Chunk, error) {
	return PlanWithPolicy(data, PolicyZstdOnly)
}

// PlanWithPolicy is Plan parameterized by Policy, resolving the open
// question in spec.md §9 about the LZ4-for-small-files variant.
func PlanWithPolicy(data []byte, policy Policy) ([]Chunk, error) {
	n := len(data)

	if policy == PolicyLZ4SmallFiles && n <= lz4SmallFileThreshold {
		return planSingleChunk(data, compressLZ4Preferred)
	}

	if n <= singleChunkThreshold {
		return planSingleChunk(data, compressZstdPreferred)
	}

	wholeFile, err := codec.CompressZstd(data)
	if err != nil {
		return nil, err
	}
	if len(wholeFile) <= 2*ChunkSize {
		// Whole-file Zstandard output is small enough that seek-based
		// random access is not worth the chunking overhead.
		return []Chunk{singleChunkFrom(data, wholeFile)}, nil
	}

	return planChunked(data, policy)
}

func compressZstdPreferred(src []byte) (codec.Method, []byte, error) {
	compressed, err := codec.CompressZstd(src)
	if err != nil {
		return 0, nil, err
	}
	if len(compressed) < len(src) {
		return codec.Zstandard, compressed, nil
	}
	return codec.Passthrough, src, nil
}

func compressLZ4Preferred(src []byte) (codec.Method, []byte, error) {
	if len(src) == 0 {
		return codec.Passthrough, src, nil
	}
	compressed, err := codec.CompressLZ4(src)
	if err != nil {
		return codec.Passthrough, src, nil
	}
	if len(compressed) < len(src) {
		return codec.LZ4, compressed, nil
	}
	return codec.Passthrough, src, nil
}

func planSingleChunk(data []byte, pick func([]byte) (codec.Method, []byte, error)) ([]Chunk, error) {
	method, compressed, err := pick(data)
	if err != nil {
		return nil, err
	}
	return []Chunk{{
		Info: index.ChunkInfo{
			CompressedLength: uint32(len(compressed)),
			CompressedMethod: method,
			OriginalLength:   uint32(len(data)),
		},
		Compressed: compressed,
	}}, nil
}

func singleChunkFrom(data, wholeFileZstd []byte) Chunk {
	if len(data) > len(wholeFileZstd) {
		return Chunk{
			Info: index.ChunkInfo{
				CompressedLength: uint32(len(wholeFileZstd)),
				CompressedMethod: codec.Zstandard,
				OriginalLength:   uint32(len(data)),
			},
			Compressed: wholeFileZstd,
		}
	}
	return Chunk{
		Info: index.ChunkInfo{
			CompressedLength: uint32(len(data)),
			CompressedMethod: codec.Passthrough,
			OriginalLength:   uint32(len(data)),
		},
		Compressed: data,
	}
}

// planChunked implements Shape B: CHUNK_SIZE strides with trailing-chunk
// coalescing (spec.md §4.4, steps 1-2).
func planChunked(data []byte, policy Policy) ([]Chunk, error) {
	n := len(data)
	var chunks []Chunk
	var starts []int // start offset of each emitted chunk, parallel to chunks

	for i := 0; i < n; i += ChunkSize {
		end := i + ChunkSize
		if end > n {
			end = n
		}

		if len(chunks) > 0 {
			last := &chunks[len(chunks)-1]
			lastStart := starts[len(starts)-1]
			if last.Info.CompressedMethod != codec.Passthrough &&
				int(last.Info.CompressedLength) < (ChunkSize*coalesceThresholdNum)/coalesceThresholdDen {
				extended := data[lastStart:end]
				extendedCompressed, err := codec.CompressZstd(extended)
				if err != nil {
					return nil, err
				}
				if len(extendedCompressed) < ChunkSize {
					last.Info.OriginalLength = uint32(len(extended))
					last.Info.CompressedLength = uint32(len(extendedCompressed))
					last.Info.CompressedMethod = codec.Zstandard
					last.Compressed = extendedCompressed
					continue
				}
			}
		}

		src := data[i:end]
		method, compressed, err := chunkCodec(src, policy, len(chunks) == 0)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, Chunk{
			Info: index.ChunkInfo{
				CompressedLength: uint32(len(compressed)),
				CompressedMethod: method,
				OriginalLength:   uint32(len(src)),
			},
			Compressed: compressed,
		})
		starts = append(starts, i)
	}

	return chunks, nil
}

func chunkCodec(src []byte, policy Policy, isFirstChunk bool) (codec.Method, []byte, error) {
	if policy == PolicyLZ4SmallFiles && isFirstChunk {
		compressed, err := codec.CompressLZ4(src)
		if err == nil && len(compressed)*compressibleRatioDen < len(src)*compressibleRatioNum {
			return codec.LZ4, compressed, nil
		}
	}

	compressed, err := codec.CompressZstd(src)
	if err != nil {
		return 0, nil, err
	}
	if len(compressed)*compressibleRatioDen < len(src)*compressibleRatioNum {
		return codec.Zstandard, compressed, nil
	}
	return codec.Passthrough, src, nil
}

// Concat returns the concatenation of every chunk's compressed bytes, in
// order, ready to append to the data file.
func Concat(chunks []Chunk) []byte {
	total := 0
	for _, c := range chunks {
		total += len(c.Compressed)
	}
	out := make([]byte, 0, total)
	for _, c := range chunks {
		out = append(out, c.Compressed...)
	}
	return out
}

// ChunkInfos extracts the index.ChunkInfo slice, parallel to Concat's byte
// layout.
func ChunkInfos(chunks []Chunk) []index.ChunkInfo {
	infos := make([]index.ChunkInfo, len(chunks))
	for i, c := range chunks {
		infos[i] = c.Info
	}
	return infos
}
