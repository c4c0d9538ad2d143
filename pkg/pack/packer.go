// Package pack implements the parallel packing pipeline (spec.md §4.5): a
// bounded worker pool that hashes, compresses, deduplicates by content
// hash, and appends bodies to the data file while building the index.
package pack

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/falk/mar/pkg/hashsum"
	"github.com/falk/mar/pkg/index"
	"github.com/falk/mar/pkg/planner"
	"github.com/falk/mar/pkg/walk"
)

// ErrPathEscape is an invariant violation (spec.md §7): a walked path did
// not begin with the input root.
var ErrPathEscape = errors.New("pack: file path does not start with input root")

// ErrDedupMismatch is an invariant violation: a deduped-pending entry's
// checksums did not match the committed entry sharing its hash.
var ErrDedupMismatch = errors.New("pack: dedup target checksum mismatch")

const dsStore = ".DS_Store"

// Options configures one packing run.
type Options struct {
	// Jobs is the worker pool size.
	Jobs int
	// Dedup enables content-addressed body sharing across files with
	// identical original_sha256.
	Dedup bool
	// Policy selects the planner's codec policy; the zero value is
	// planner.PolicyZstdOnly, the canonical default.
	Policy planner.Policy
	// Progress, if non-nil, is called once per processed file, including
	// files resolved as dedup hits, from whichever worker goroutine
	// handled it.
	Progress func(line string)
}

// dataFile is the subset of *os.File the packer needs: append under a
// mutex, and nothing else. A narrow interface keeps tests independent of
// the filesystem.
type dataFile interface {
	io.Writer
	io.Seeker
}

// partialFileInfo is recorded for a file whose body matched an
// already-seen hash; it is resolved against the dedup table at finalize
// time (spec.md §4.5).
type partialFileInfo struct {
	path         string
	modifiedTime index.Timestamp
	crc32        uint32
	sha256       [32]byte
}

type packer struct {
	opts Options

	queueMu sync.Mutex
	queue   []walk.File
	cursor  int

	dataMu   sync.Mutex
	dataFile dataFile

	dedupMu      sync.Mutex
	knownHashes  map[[32]byte]struct{}
	dedupTable   map[[32]byte]index.FileEntry
	dedupPending []partialFileInfo

	errOnce  sync.Once
	firstErr error
	cancel   chan struct{}
}

// Pack walks root and packs every regular file into dataFile under opts.
// The returned index's entries are collected and dedup-resolved but not
// yet sorted (spec.md §3's lifecycle treats "collected" and "sorted" as
// distinct steps) — call Finalize before writing the index.
func Pack(root string, dataFile dataFile, opts Options) (index.FileIndexFile, error) {
	files, err := walk.Walk(root)
	if err != nil {
		return index.FileIndexFile{}, fmt.Errorf("pack: walk: %w", err)
	}

	return PackFiles(root, files, dataFile, opts)
}

// PackFiles packs a pre-enumerated file list; exposed separately so
// callers (and tests) can supply their own file list without touching the
// filesystem walk.
func PackFiles(root string, files []walk.File, dataFile dataFile, opts Options) (index.FileIndexFile, error) {
	if opts.Jobs < 1 {
		opts.Jobs = 1
	}

	// Pace the pool by descending size so no single worker is left
	// processing one huge file while the others sit idle (spec.md §4.5).
	sorted := append([]walk.File(nil), files...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Size > sorted[j].Size })

	p := &packer{
		opts:        opts,
		queue:       sorted,
		dataFile:    dataFile,
		knownHashes: make(map[[32]byte]struct{}),
		dedupTable:  make(map[[32]byte]index.FileEntry),
		cancel:      make(chan struct{}),
	}

	var wg sync.WaitGroup
	entriesCh := make(chan []index.FileEntry, opts.Jobs)

	for worker := 0; worker < opts.Jobs; worker++ {
		wg.Add(1)
		go func(workerNo int) {
			defer wg.Done()
			entries := p.runWorker(root, workerNo)
			entriesCh <- entries
		}(worker)
	}

	wg.Wait()
	close(entriesCh)

	if p.firstErr != nil {
		return index.FileIndexFile{}, p.firstErr
	}

	var entries []index.FileEntry
	for batch := range entriesCh {
		entries = append(entries, batch...)
	}

	resolved, err := p.resolveDedupPending(entries)
	if err != nil {
		return index.FileIndexFile{}, err
	}

	return index.FileIndexFile{Entries: resolved}, nil
}

// Finalize sorts f's entries ascending by path (spec.md §3: "collected
// into a single vector after all workers terminate; sorted; written
// once"), returning a new FileIndexFile ready for index.Write. Callers
// that time the finalize step (e.g. the CLI's reported dec_ms) should call
// Finalize immediately before index.Write so the timed window matches.
func Finalize(f index.FileIndexFile) index.FileIndexFile {
	sorted := append([]index.FileEntry(nil), f.Entries...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Info.Path < sorted[j].Info.Path
	})
	return index.FileIndexFile{Entries: sorted}
}

func (p *packer) fail(err error) {
	p.errOnce.Do(func() {
		p.firstErr = err
		close(p.cancel)
	})
}

func (p *packer) next() (walk.File, bool) {
	p.queueMu.Lock()
	defer p.queueMu.Unlock()
	if p.cursor >= len(p.queue) {
		return walk.File{}, false
	}
	f := p.queue[p.cursor]
	p.cursor++
	return f, true
}

func (p *packer) runWorker(root string, workerNo int) []index.FileEntry {
	var entries []index.FileEntry
	for {
		select {
		case <-p.cancel:
			return entries
		default:
		}

		file, ok := p.next()
		if !ok {
			return entries
		}

		if filepath.Base(file.AbsPath) == dsStore {
			continue
		}

		entry, skipped, err := p.processFile(root, file, workerNo)
		if err != nil {
			p.fail(err)
			return entries
		}
		if !skipped {
			entries = append(entries, entry)
		}
	}
}

func (p *packer) processFile(root string, file walk.File, workerNo int) (index.FileEntry, bool, error) {
	f, err := os.Open(file.AbsPath)
	if err != nil {
		return index.FileEntry{}, false, fmt.Errorf("pack: open %s: %w", file.AbsPath, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return index.FileEntry{}, false, fmt.Errorf("pack: stat %s: %w", file.AbsPath, err)
	}

	data := make([]byte, 0, stat.Size())
	buf := make([]byte, 32*1024)
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			data = append(data, buf[:n]...)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return index.FileEntry{}, false, fmt.Errorf("pack: read %s: %w", file.AbsPath, rerr)
		}
	}

	if !strings.HasPrefix(file.AbsPath, root) {
		return index.FileEntry{}, false, ErrPathEscape
	}
	relativePath := file.AbsPath[len(root):]

	sums := hashsum.SumBytes(data)
	modTime := fileModTimestamp(stat)

	if p.opts.Dedup {
		p.dedupMu.Lock()
		if _, seen := p.knownHashes[sums.SHA256]; seen {
			p.dedupPending = append(p.dedupPending, partialFileInfo{
				path:         relativePath,
				modifiedTime: modTime,
				crc32:        sums.CRC32,
				sha256:       sums.SHA256,
			})
			p.dedupMu.Unlock()
			if p.opts.Progress != nil {
				p.opts.Progress(fmt.Sprintf("dedup %s", relativePath))
			}
			return index.FileEntry{}, true, nil
		}
		p.knownHashes[sums.SHA256] = struct{}{}
		p.dedupMu.Unlock()
	}

	chunks, err := planner.PlanWithPolicy(data, p.opts.Policy)
	if err != nil {
		return index.FileEntry{}, false, fmt.Errorf("pack: plan %s: %w", relativePath, err)
	}
	compressed := planner.Concat(chunks)
	chunkSums := hashsum.SumBytes(compressed)

	info := index.FileInfo{
		Path:           relativePath,
		Chunks:         planner.ChunkInfos(chunks),
		ChunksCRC32:    chunkSums.CRC32,
		ChunksSHA256:   chunkSums.SHA256[:],
		OriginalCRC32:  sums.CRC32,
		OriginalSHA256: sums.SHA256[:],
		ModifiedTime:   modTime,
		Priority:       0,
	}

	offset, err := p.appendBody(compressed)
	if err != nil {
		return index.FileEntry{}, false, err
	}

	entry := index.FileEntry{
		Info:       info,
		FileIndex:  0,
		BodyOffset: uint64(offset),
		BodySize:   uint64(len(compressed)),
	}

	if p.opts.Dedup {
		p.dedupMu.Lock()
		p.dedupTable[sums.SHA256] = entry
		p.dedupMu.Unlock()
	}

	if p.opts.Progress != nil {
		p.opts.Progress(fmt.Sprintf("%d: %s (%d chunks, %d -> %d bytes)",
			workerNo, relativePath, len(chunks), len(data), len(compressed)))
	}

	return entry, false, nil
}

func (p *packer) appendBody(compressed []byte) (int64, error) {
	p.dataMu.Lock()
	defer p.dataMu.Unlock()

	offset, err := p.dataFile.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("pack: seek data file: %w", err)
	}
	if _, err := p.dataFile.Write(compressed); err != nil {
		return 0, fmt.Errorf("pack: write data file: %w", err)
	}
	return offset, nil
}

func (p *packer) resolveDedupPending(entries []index.FileEntry) ([]index.FileEntry, error) {
	if len(p.dedupPending) == 0 {
		return entries, nil
	}

	for _, pending := range p.dedupPending {
		target, ok := p.dedupTable[pending.sha256]
		if !ok {
			return nil, fmt.Errorf("pack: %w: no committed entry for dedup hash", ErrDedupMismatch)
		}
		if target.Info.OriginalSHA256 != nil && !bytesEqual(target.Info.OriginalSHA256, pending.sha256[:]) {
			return nil, ErrDedupMismatch
		}
		if target.Info.OriginalCRC32 != pending.crc32 {
			return nil, ErrDedupMismatch
		}

		info := target.Info
		info.Path = pending.path
		info.ModifiedTime = pending.modifiedTime

		entries = append(entries, index.FileEntry{
			Info:       info,
			FileIndex:  target.FileIndex,
			BodyOffset: target.BodyOffset,
			BodySize:   target.BodySize,
		})
	}
	return entries, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func fileModTimestamp(stat os.FileInfo) index.Timestamp {
	mt := stat.ModTime()
	return index.Timestamp{Seconds: mt.Unix(), Nanos: int32(mt.Nanosecond())}
}
