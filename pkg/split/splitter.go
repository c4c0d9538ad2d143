// Package split implements the shard splitter (spec.md §4.7): a greedy,
// dedup-aware bin-packer that redistributes an archive's entries across N
// balanced output shards.
package split

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/falk/mar/pkg/index"
)

// shard accumulates the entries routed to one output archive plus its
// running weight, used only to pick the least-loaded shard at assignment
// time.
type shard struct {
	entries []index.FileEntry
	size    uint64
}

// weight is Σ chunk.compressed_length, falling back to original_length
// for a chunk whose compressed_length is zero (spec.md §4.7 step 1).
func weight(e index.FileEntry) uint64 {
	var total uint64
	for _, c := range e.Info.Chunks {
		if c.CompressedLength != 0 {
			total += uint64(c.CompressedLength)
		} else {
			total += uint64(c.OriginalLength)
		}
	}
	return total
}

// Plan performs the greedy longest-processing-time bin-packing step
// (spec.md §4.7 steps 1-3): sort entries descending by weight, then place
// each into the least-loaded shard, sharing placement across entries with
// identical original_sha256 so deduplicated bodies land together.
func Plan(entries []index.FileEntry, count int) ([][]index.FileEntry, error) {
	if count < 1 {
		return nil, fmt.Errorf("split: shard count must be at least 1, got %d", count)
	}

	sorted := append([]index.FileEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return weight(sorted[i]) > weight(sorted[j])
	})

	shards := make([]shard, count)
	seenSha := make(map[string]int)

	for _, e := range sorted {
		key := string(e.Info.OriginalSHA256)
		if idx, ok := seenSha[key]; ok {
			shards[idx].entries = append(shards[idx].entries, e)
			continue
		}

		minIdx := 0
		for i := range shards {
			if shards[i].size < shards[minIdx].size {
				minIdx = i
			}
		}
		shards[minIdx].entries = append(shards[minIdx].entries, e)
		shards[minIdx].size += weight(e)
		seenSha[key] = minIdx
	}

	out := make([][]index.FileEntry, count)
	for i, s := range shards {
		// Restore ascending-weight order within the shard (spec.md §4.7
		// step 4: "reverse the shard's entry list").
		reversed := make([]index.FileEntry, len(s.entries))
		for j, e := range s.entries {
			reversed[len(s.entries)-1-j] = e
		}
		out[i] = reversed
	}
	return out, nil
}

// srcDat is the subset of the source .dat file the splitter reads from:
// seek-then-read-exact of a known-length chunk.
type srcDat interface {
	io.ReaderAt
}

// WriteShard copies the entries assigned to one shard from src (the
// source archive's data file) into dst (the new shard's data file),
// deduplicating bodies that share original_sha256 within the shard, and
// returns the shard's finalized index.
func WriteShard(dst io.Writer, src srcDat, entries []index.FileEntry) (index.FileIndexFile, error) {
	shardSeen := make(map[string]uint64)
	var offset uint64
	outEntries := make([]index.FileEntry, 0, len(entries))

	for _, e := range entries {
		key := string(e.Info.OriginalSHA256)
		if bodyOffset, ok := shardSeen[key]; ok {
			outEntries = append(outEntries, index.FileEntry{
				Info:       e.Info,
				BodyOffset: bodyOffset,
				BodySize:   e.BodySize,
			})
			continue
		}

		written, err := copyBody(dst, src, e)
		if err != nil {
			return index.FileIndexFile{}, err
		}
		if written != e.BodySize {
			return index.FileIndexFile{}, fmt.Errorf("split: body size mismatch for %s: wrote %d, expected %d",
				e.Info.Path, written, e.BodySize)
		}

		outEntries = append(outEntries, index.FileEntry{
			Info:       e.Info,
			BodyOffset: offset,
			BodySize:   written,
		})
		shardSeen[key] = offset
		offset += written
	}

	return index.FileIndexFile{Entries: outEntries}, nil
}

func copyBody(dst io.Writer, src srcDat, e index.FileEntry) (uint64, error) {
	var written uint64
	readOffset := int64(e.BodyOffset)
	for _, c := range e.Info.Chunks {
		buf := make([]byte, c.CompressedLength)
		sr := io.NewSectionReader(src, readOffset, int64(c.CompressedLength))
		if _, err := io.ReadFull(sr, buf); err != nil {
			return written, fmt.Errorf("split: read body chunk for %s: %w", e.Info.Path, err)
		}
		if _, err := dst.Write(buf); err != nil {
			return written, fmt.Errorf("split: write shard body for %s: %w", e.Info.Path, err)
		}
		readOffset += int64(c.CompressedLength)
		written += uint64(c.CompressedLength)
	}
	return written, nil
}

// Result names one shard's output files, ready for the caller to create.
type Result struct {
	Index int
	Data  index.FileIndexFile
}

// Split runs Plan then WriteShard for every shard, creating each shard's
// data file via newDataFile. Shard index files are not written here: the
// caller writes each Result's Data as the shard's index. The caller
// supplies the data-file factory so this package stays independent of the
// concrete on-disk layout.
func Split(src srcDat, entries []index.FileEntry, count int, newDataFile func(k int) (io.WriteCloser, error)) ([]Result, error) {
	shards, err := Plan(entries, count)
	if err != nil {
		return nil, err
	}

	results := make([]Result, count)
	for k, shardEntries := range shards {
		dst, err := newDataFile(k)
		if err != nil {
			return nil, fmt.Errorf("split: create shard %d data file: %w", k, err)
		}

		idx, err := WriteShard(dst, src, shardEntries)
		closeErr := dst.Close()
		if err != nil {
			return nil, err
		}
		if closeErr != nil {
			return nil, fmt.Errorf("split: close shard %d data file: %w", k, closeErr)
		}

		results[k] = Result{Index: k, Data: idx}
	}
	return results, nil
}

// OpenSourceDat opens base's .dat file for random-access reads.
func OpenSourceDat(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("split: open source data file: %w", err)
	}
	return f, nil
}

// bytesSrcDat adapts an in-memory buffer to srcDat, used by tests.
type bytesSrcDat struct {
	data []byte
}

func (b *bytesSrcDat) ReadAt(p []byte, off int64) (int, error) {
	return bytes.NewReader(b.data).ReadAt(p, off)
}

// NewBytesSrcDat wraps data as a srcDat for tests and small in-memory
// splits.
func NewBytesSrcDat(data []byte) srcDat {
	return &bytesSrcDat{data: data}
}
