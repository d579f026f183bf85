package chunkserver

import "net"

// Dialect identifies one of the two coexisting wire encodings (GLOSSARY).
type Dialect uint8

const (
	DialectLegacy Dialect = iota
	DialectCurrent
)

func (d Dialect) String() string {
	if d == DialectLegacy {
		return "legacy"
	}
	return "current"
}

// MessageSerializer is a tagged variant dispatched by Dialect, per §9's
// design-note guidance ("model as a tagged variant {Legacy, Current}
// dispatched by match"). Both variants implement the same contract so
// ConnectionEntry code never branches on dialect directly.
type MessageSerializer interface {
	Dialect() Dialect

	// SerializeReadDataFrame produces a complete CSTOCL_READ_DATA packet
	// (header, chunkId, offset, size, crc) sized to also hold dataLen bytes
	// of block data, which the caller copies into the returned slice's tail
	// (ReadDataPayloadOffset onward) so the frame's declared length matches
	// what is actually written to the wire.
	SerializeReadDataFrame(chunkID uint64, offset, size, crc uint32, dataLen int) []byte

	// ReadDataPayloadOffset is the byte offset within a SerializeReadDataFrame
	// result at which the caller should copy the raw block bytes.
	ReadDataPayloadOffset() int

	// SerializeReadStatus produces a complete CSTOCL_READ_STATUS packet.
	SerializeReadStatus(chunkID uint64, status Status) []byte

	// SerializeWriteStatus produces a complete CSTOCL_WRITE_STATUS packet.
	SerializeWriteStatus(chunkID uint64, writeID uint32, status Status) []byte

	// DeserializeReadRequest parses a CLTOCS_READ / SAU_CLTOCS_READ (or
	// SAU_CLTOCS_PREFETCH, same payload shape) payload.
	DeserializeReadRequest(payload []byte) (readRequest, error)

	// DeserializeWriteInit parses a CLTOCS_WRITE / SAU_CLTOCS_WRITE_INIT
	// payload, including the forwarding chain.
	DeserializeWriteInit(payload []byte) (writeInitRequest, error)

	// DeserializeWriteData parses a CLTOCS_WRITE_DATA payload. dataOffset
	// is the offset within payload at which the raw block bytes begin,
	// letting the caller avoid a copy when reading straight off the wire.
	DeserializeWriteData(payload []byte) (writeDataRequest, dataOffset int, err error)

	// DeserializeWriteEnd parses a SAU_CLTOCS_WRITE_END payload. Legacy has
	// no equivalent packet (WriteEnd is implicit after the chain length is
	// exhausted in MFS); the Current implementation is the only one a
	// connection will ever latch for this message.
	DeserializeWriteEnd(payload []byte) (uint64, error)

	// SerializeWriteInitForward encodes a WriteInit's remaining chain in
	// this serializer's dialect for forwarding to the downstream peer (the
	// caller picks the dialect from the peer's version). Each entry's part
	// type and peer version are written as given; they are not re-encoded
	// for the downstream peer's version.
	SerializeWriteInitForward(chunkID uint64, version uint32, partType ChunkPartType, chain []chainEntry) []byte

	// DeserializeGetChunkBlocks parses a GetChunkBlocks / TestChunk
	// payload (both name the same chunkId+version+partType triple in the
	// original protocol).
	DeserializeGetChunkBlocks(payload []byte) (chunkID uint64, version uint32, partType ChunkPartType, err error)

	// SerializeGetChunkBlocksResponse produces a complete GetChunkBlocks
	// reply packet.
	SerializeGetChunkBlocksResponse(chunkID uint64, version uint32, partType ChunkPartType, blocks uint16, status Status) []byte
}

// readRequest is the dialect-neutral decoded form of CLTOCS_READ /
// SAU_CLTOCS_READ / SAU_CLTOCS_PREFETCH.
type readRequest struct {
	ChunkID  uint64
	Version  uint32
	PartType ChunkPartType
	Offset   uint32
	Size     uint32
}

// chainEntry is one hop of a write chain (GLOSSARY: "Write chain").
type chainEntry struct {
	Addr        net.TCPAddr
	PartType    ChunkPartType
	PeerVersion uint32
}

// writeInitRequest is the dialect-neutral decoded form of CLTOCS_WRITE /
// SAU_CLTOCS_WRITE_INIT.
type writeInitRequest struct {
	ChunkID  uint64
	Version  uint32
	PartType ChunkPartType
	Chain    []chainEntry
}

// writeDataRequest is the dialect-neutral decoded form of
// CLTOCS_WRITE_DATA / SAU_CLTOCS_WRITE_DATA, excluding the raw block bytes
// (see DeserializeWriteData's dataOffset return).
type writeDataRequest struct {
	ChunkID  uint64
	WriteID  uint32
	BlockNum uint16
	Offset   uint32
	Size     uint32
	CRC      uint32
}

// serializerForType returns the MessageSerializer singleton matching t's
// dialect, or nil if t is in neither recognized range.
func serializerForType(t PacketType) MessageSerializer {
	switch {
	case t.isLegacy():
		return legacySerializer{}
	case t.isCurrent():
		return currentSerializer{}
	default:
		return nil
	}
}
