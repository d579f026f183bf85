package chunkserver

import (
	"encoding/binary"

	"github.com/NebulousLabs/errors"
)

// Wire framing is [type:u32][length:u32][payload:length bytes], identical
// in both dialects (spec.md §6). Fixed-position byte layout is mandated by
// protocol compatibility, so this package encodes/decodes with
// encoding/binary directly rather than Sia's reflection-based encoding
// package - see DESIGN.md.

// PacketHeaderSize is the size, in bytes, of the type+length prefix.
const PacketHeaderSize = 8

// MFSBLOCKSIZE is the size of a single block within a chunk.
const MFSBLOCKSIZE = 64 * 1024

// SFSBLOCKSIZE is an alias kept for parity with spec.md's naming in the
// read-pipeline description (§4.7); it is numerically identical to
// MFSBLOCKSIZE (the legacy and current dialects address blocks the same
// way).
const SFSBLOCKSIZE = MFSBLOCKSIZE

// SFSCHUNKSIZE is the size of a full chunk (64 MiB, per GLOSSARY).
const SFSCHUNKSIZE = 64 * 1024 * 1024

// MaxPacketSize is the largest payload this core will accept, per spec.md §6.
const MaxPacketSize = 100000 + MFSBLOCKSIZE

// PacketType identifies the wire packet. Legacy and current dialects use
// disjoint ranges (§4.4).
type PacketType uint32

// Legacy (MFS) packet types actually handled by this core.
const (
	CltocsReadLegacy      PacketType = 200
	CstoclReadDataLegacy  PacketType = 201
	CstoclReadStatusLegacy PacketType = 202
	CltocsWriteLegacy     PacketType = 210
	CltocsWriteDataLegacy PacketType = 211
	CstoclWriteStatusLegacy PacketType = 212
	AnToAnNop             PacketType = 0
	AnToAnPing            PacketType = 1
	AnToAnPingReply       PacketType = 2

	// kMaxOldPacketType bounds the legacy dialect's type space (§4.4).
	kMaxOldPacketType PacketType = 39999
)

// Current (SAU_) packet types.
const (
	kMinSauPacketType PacketType = 40000

	SauCltocsRead        PacketType = 40000
	SauCstoclReadData    PacketType = 40001
	SauCstoclReadStatus  PacketType = 40002
	SauCltocsWriteInit   PacketType = 40010
	SauCltocsWriteData   PacketType = 40011
	SauCstoclWriteStatus PacketType = 40012
	SauCltocsWriteEnd    PacketType = 40013
	SauCltocsPrefetch    PacketType = 40020
	SauCstocsGetChunkBlocks PacketType = 40030
	SauCstocsGetChunkBlocksResponse PacketType = 40031

	SauCltocsHddListV2      PacketType = 40040
	SauCltocsListDiskGroups PacketType = 40041
	SauCltocsChart          PacketType = 40042
	SauCltocsTestChunk      PacketType = 40043
	SauCltocsAdminDiskGroups PacketType = 40044

	// Replies to the admin-surface requests above. ListDiskGroups and
	// AdminDiskGroups share one reply type: both name the same
	// list-the-configured-groups operation in the original protocol,
	// just reachable from two different request types (see DESIGN.md).
	SauCstoclHddListV2      PacketType = 40045
	SauCstoclListDiskGroups PacketType = 40046
	SauAntoclChart          PacketType = 40047

	kMaxSauPacketType PacketType = 49999
)

// isLegacy reports whether t belongs to the legacy dialect's type range.
func (t PacketType) isLegacy() bool {
	return t <= kMaxOldPacketType
}

// isCurrent reports whether t belongs to the current dialect's type range.
func (t PacketType) isCurrent() bool {
	return t >= kMinSauPacketType && t <= kMaxSauPacketType
}

// packetHeader is the decoded [type][length] prefix.
type packetHeader struct {
	Type   PacketType
	Length uint32
}

// decodeHeader parses exactly PacketHeaderSize bytes of wire data.
func decodeHeader(b []byte) (packetHeader, error) {
	if len(b) < PacketHeaderSize {
		return packetHeader{}, errors.New("short packet header")
	}
	h := packetHeader{
		Type:   PacketType(binary.BigEndian.Uint32(b[0:4])),
		Length: binary.BigEndian.Uint32(b[4:8]),
	}
	if h.Length > MaxPacketSize {
		return packetHeader{}, errBadPacketLength
	}
	return h, nil
}

// encodeHeader writes the [type][length] prefix for a payload of the given
// length into a freshly allocated buffer big enough to also hold payload.
func encodeHeader(t PacketType, length uint32) []byte {
	b := make([]byte, PacketHeaderSize+length)
	binary.BigEndian.PutUint32(b[0:4], uint32(t))
	binary.BigEndian.PutUint32(b[4:8], length)
	return b
}
