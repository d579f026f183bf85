package chunkserver

import (
	"context"

	"github.com/NebulousLabs/errors"
)

// errChunkNotDone is returned by a ChunkStore operation that would need to
// block on an in-flight write (or background job) finishing first; the
// caller translates it to StatusNotDone rather than blocking the
// connection's goroutine.
var errChunkNotDone = errors.New("chunk not yet fully written")

// ChunkStore is the opaque on-disk-format boundary named in spec.md §1:
// "the on-disk chunk file format is an opaque ChunkStore interface - this
// core owns the bytes-on-the-wire and bookkeeping, never the file layout."
// Implementations are free to lay out headers, CRCs, and block maps
// however they choose.
type ChunkStore interface {
	// Open prepares chunkID/version/partType for I/O, creating it if
	// create is true. It returns the chunk's current block count.
	Open(ctx context.Context, chunkID uint64, version uint32, partType ChunkPartType, create bool) (blockCount uint16, err error)

	// ReadBlock reads size bytes at offset within blockNum into dst,
	// returning the CRC the store has recorded for that block.
	ReadBlock(ctx context.Context, chunkID uint64, blockNum uint16, offset, size uint32, dst []byte) (crc uint32, err error)

	// WriteBlock writes data (len(data) == size) at offset within blockNum,
	// verifying it against crc before committing.
	WriteBlock(ctx context.Context, chunkID uint64, blockNum uint16, offset, size, crc uint32, data []byte) error

	// Close releases any resources Open acquired for chunkID.
	Close(ctx context.Context, chunkID uint64) error

	// Prefetch hints that blockNum will likely be read soon.
	Prefetch(ctx context.Context, chunkID uint64, blockNum uint16) error

	// TestCRC verifies every block of chunkID against its recorded CRC,
	// the operation a background scrub job drives (GLOSSARY: "Background
	// job").
	TestCRC(ctx context.Context, chunkID uint64) error

	// Delete removes chunkID's backing bytes entirely.
	Delete(ctx context.Context, chunkID uint64) error
}
