package index

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/falk/mar/pkg/codec"
)

// magic identifies the MARI index container (spec.md §4.6).
var magic = [4]byte{'M', 'A', 'R', 'I'}

// ErrBadMagic is returned when an index file does not begin with "MARI".
// Per spec.md §7 this is an invariant violation, not a user error.
var ErrBadMagic = errors.New("index: bad magic, expected MARI")

// ErrLengthMismatch is returned when the decompressed payload length does
// not match the framed raw_length field.
var ErrLengthMismatch = errors.New("index: decompressed length does not match header")

// Write serializes f as the MARI container: magic, big-endian
// compressed_length, big-endian raw_length, then the Zstandard stream of
// the protobuf-encoded payload.
func Write(w io.Writer, f FileIndexFile) error {
	raw := Marshal(f)
	compressed, err := codec.CompressZstd(raw)
	if err != nil {
		return fmt.Errorf("index: compress: %w", err)
	}

	var header [12]byte
	copy(header[0:4], magic[:])
	binary.BigEndian.PutUint32(header[4:8], uint32(len(compressed)))
	binary.BigEndian.PutUint32(header[8:12], uint32(len(raw)))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("index: write header: %w", err)
	}
	if _, err := w.Write(compressed); err != nil {
		return fmt.Errorf("index: write payload: %w", err)
	}
	return nil
}

// Read parses the MARI container produced by Write.
func Read(r io.Reader) (FileIndexFile, error) {
	var header [12]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return FileIndexFile{}, fmt.Errorf("index: read header: %w", err)
	}
	if string(header[0:4]) != string(magic[:]) {
		return FileIndexFile{}, ErrBadMagic
	}
	compressedLen := binary.BigEndian.Uint32(header[4:8])
	rawLen := binary.BigEndian.Uint32(header[8:12])

	compressed := make([]byte, compressedLen)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return FileIndexFile{}, fmt.Errorf("index: read payload: %w", err)
	}

	raw, err := codec.DecompressZstd(compressed)
	if err != nil {
		return FileIndexFile{}, fmt.Errorf("index: decompress: %w", err)
	}
	if uint32(len(raw)) != rawLen {
		return FileIndexFile{}, ErrLengthMismatch
	}

	f, err := Unmarshal(raw)
	if err != nil {
		return FileIndexFile{}, fmt.Errorf("index: decode: %w", err)
	}
	return f, nil
}
