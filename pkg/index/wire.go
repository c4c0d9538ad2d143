package index

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/falk/mar/pkg/codec"
)

// Field numbers, matching mar.proto's declaration order.
const (
	fieldTimestampSeconds = protowire.Number(1)
	fieldTimestampNanos   = protowire.Number(2)

	fieldChunkCompressedLength = protowire.Number(1)
	fieldChunkCompressedMethod = protowire.Number(2)
	fieldChunkOriginalLength   = protowire.Number(3)

	fieldInfoPath           = protowire.Number(1)
	fieldInfoChunks         = protowire.Number(2)
	fieldInfoChunksCRC32    = protowire.Number(3)
	fieldInfoChunksSHA256   = protowire.Number(4)
	fieldInfoOriginalCRC32  = protowire.Number(5)
	fieldInfoOriginalSHA256 = protowire.Number(6)
	fieldInfoModifiedTime   = protowire.Number(7)
	fieldInfoPriority       = protowire.Number(8)

	fieldEntryInfo       = protowire.Number(1)
	fieldEntryFileIndex  = protowire.Number(2)
	fieldEntryBodyOffset = protowire.Number(3)
	fieldEntryBodySize   = protowire.Number(4)

	fieldIndexEntries = protowire.Number(1)
)

func appendTimestamp(b []byte, ts Timestamp) []byte {
	if ts.Seconds != 0 {
		b = protowire.AppendTag(b, fieldTimestampSeconds, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(ts.Seconds))
	}
	if ts.Nanos != 0 {
		b = protowire.AppendTag(b, fieldTimestampNanos, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(uint32(ts.Nanos)))
	}
	return b
}

func consumeTimestamp(data []byte) (Timestamp, error) {
	var ts Timestamp
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return ts, protowire.ParseError(n)
		}
		data = data[n:]
		switch num {
		case fieldTimestampSeconds:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return ts, protowire.ParseError(n)
			}
			ts.Seconds = int64(v)
			data = data[n:]
		case fieldTimestampNanos:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return ts, protowire.ParseError(n)
			}
			ts.Nanos = int32(uint32(v))
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return ts, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return ts, nil
}

func appendChunkInfo(b []byte, c ChunkInfo) []byte {
	if c.CompressedLength != 0 {
		b = protowire.AppendTag(b, fieldChunkCompressedLength, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(c.CompressedLength))
	}
	if c.CompressedMethod != 0 {
		b = protowire.AppendTag(b, fieldChunkCompressedMethod, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(c.CompressedMethod))
	}
	if c.OriginalLength != 0 {
		b = protowire.AppendTag(b, fieldChunkOriginalLength, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(c.OriginalLength))
	}
	return b
}

func consumeChunkInfo(data []byte) (ChunkInfo, error) {
	var c ChunkInfo
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return c, protowire.ParseError(n)
		}
		data = data[n:]
		switch num {
		case fieldChunkCompressedLength:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return c, protowire.ParseError(n)
			}
			c.CompressedLength = uint32(v)
			data = data[n:]
		case fieldChunkCompressedMethod:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return c, protowire.ParseError(n)
			}
			c.CompressedMethod = codec.Method(uint32(v))
			data = data[n:]
		case fieldChunkOriginalLength:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return c, protowire.ParseError(n)
			}
			c.OriginalLength = uint32(v)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return c, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return c, nil
}

func appendFileInfo(b []byte, info FileInfo) []byte {
	if info.Path != "" {
		b = protowire.AppendTag(b, fieldInfoPath, protowire.BytesType)
		b = protowire.AppendString(b, info.Path)
	}
	for _, c := range info.Chunks {
		b = protowire.AppendTag(b, fieldInfoChunks, protowire.BytesType)
		b = protowire.AppendBytes(b, appendChunkInfo(nil, c))
	}
	if info.ChunksCRC32 != 0 {
		b = protowire.AppendTag(b, fieldInfoChunksCRC32, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(info.ChunksCRC32))
	}
	if len(info.ChunksSHA256) > 0 {
		b = protowire.AppendTag(b, fieldInfoChunksSHA256, protowire.BytesType)
		b = protowire.AppendBytes(b, info.ChunksSHA256)
	}
	if info.OriginalCRC32 != 0 {
		b = protowire.AppendTag(b, fieldInfoOriginalCRC32, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(info.OriginalCRC32))
	}
	if len(info.OriginalSHA256) > 0 {
		b = protowire.AppendTag(b, fieldInfoOriginalSHA256, protowire.BytesType)
		b = protowire.AppendBytes(b, info.OriginalSHA256)
	}
	if info.ModifiedTime != (Timestamp{}) {
		b = protowire.AppendTag(b, fieldInfoModifiedTime, protowire.BytesType)
		b = protowire.AppendBytes(b, appendTimestamp(nil, info.ModifiedTime))
	}
	if info.Priority != 0 {
		b = protowire.AppendTag(b, fieldInfoPriority, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(info.Priority))
	}
	return b
}

func consumeFileInfo(data []byte) (FileInfo, error) {
	var info FileInfo
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return info, protowire.ParseError(n)
		}
		data = data[n:]
		switch num {
		case fieldInfoPath:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return info, protowire.ParseError(n)
			}
			info.Path = v
			data = data[n:]
		case fieldInfoChunks:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return info, protowire.ParseError(n)
			}
			c, err := consumeChunkInfo(v)
			if err != nil {
				return info, err
			}
			info.Chunks = append(info.Chunks, c)
			data = data[n:]
		case fieldInfoChunksCRC32:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return info, protowire.ParseError(n)
			}
			info.ChunksCRC32 = uint32(v)
			data = data[n:]
		case fieldInfoChunksSHA256:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return info, protowire.ParseError(n)
			}
			info.ChunksSHA256 = append([]byte(nil), v...)
			data = data[n:]
		case fieldInfoOriginalCRC32:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return info, protowire.ParseError(n)
			}
			info.OriginalCRC32 = uint32(v)
			data = data[n:]
		case fieldInfoOriginalSHA256:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return info, protowire.ParseError(n)
			}
			info.OriginalSHA256 = append([]byte(nil), v...)
			data = data[n:]
		case fieldInfoModifiedTime:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return info, protowire.ParseError(n)
			}
			ts, err := consumeTimestamp(v)
			if err != nil {
				return info, err
			}
			info.ModifiedTime = ts
			data = data[n:]
		case fieldInfoPriority:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return info, protowire.ParseError(n)
			}
			info.Priority = uint32(v)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return info, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return info, nil
}

func appendFileEntry(b []byte, e FileEntry) []byte {
	b = protowire.AppendTag(b, fieldEntryInfo, protowire.BytesType)
	b = protowire.AppendBytes(b, appendFileInfo(nil, e.Info))
	if e.FileIndex != 0 {
		b = protowire.AppendTag(b, fieldEntryFileIndex, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(e.FileIndex))
	}
	if e.BodyOffset != 0 {
		b = protowire.AppendTag(b, fieldEntryBodyOffset, protowire.VarintType)
		b = protowire.AppendVarint(b, e.BodyOffset)
	}
	if e.BodySize != 0 {
		b = protowire.AppendTag(b, fieldEntryBodySize, protowire.VarintType)
		b = protowire.AppendVarint(b, e.BodySize)
	}
	return b
}

func consumeFileEntry(data []byte) (FileEntry, error) {
	var e FileEntry
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return e, protowire.ParseError(n)
		}
		data = data[n:]
		switch num {
		case fieldEntryInfo:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return e, protowire.ParseError(n)
			}
			info, err := consumeFileInfo(v)
			if err != nil {
				return e, err
			}
			e.Info = info
			data = data[n:]
		case fieldEntryFileIndex:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return e, protowire.ParseError(n)
			}
			e.FileIndex = uint32(v)
			data = data[n:]
		case fieldEntryBodyOffset:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return e, protowire.ParseError(n)
			}
			e.BodyOffset = v
			data = data[n:]
		case fieldEntryBodySize:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return e, protowire.ParseError(n)
			}
			e.BodySize = v
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return e, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return e, nil
}

// Marshal encodes f as the protobuf wire bytes for FileIndexFile.
func Marshal(f FileIndexFile) []byte {
	var b []byte
	for _, e := range f.Entries {
		b = protowire.AppendTag(b, fieldIndexEntries, protowire.BytesType)
		b = protowire.AppendBytes(b, appendFileEntry(nil, e))
	}
	return b
}

// Unmarshal decodes the protobuf wire bytes for FileIndexFile.
func Unmarshal(data []byte) (FileIndexFile, error) {
	var f FileIndexFile
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return f, fmt.Errorf("index: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case fieldIndexEntries:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return f, fmt.Errorf("index: %w", protowire.ParseError(n))
			}
			e, err := consumeFileEntry(v)
			if err != nil {
				return f, fmt.Errorf("index: %w", err)
			}
			f.Entries = append(f.Entries, e)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return f, fmt.Errorf("index: %w", protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return f, nil
}
