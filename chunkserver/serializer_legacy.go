package chunkserver

import (
	"encoding/binary"
	"net"

	"github.com/NebulousLabs/errors"
)

// legacySerializer implements the MFS-era fixed-layout dialect (CSTOCL_*,
// CLTOCS_* type codes). It never carries a part-type byte: legacy peers
// only ever speak Standard chunk parts.
type legacySerializer struct{}

func (legacySerializer) Dialect() Dialect { return DialectLegacy }

// SerializeReadDataFrame: chunkId(8) + offset(4) + size(4) + crc(4),
// followed by dataLen bytes of raw block data the caller fills in.
func (legacySerializer) SerializeReadDataFrame(chunkID uint64, offset, size, crc uint32, dataLen int) []byte {
	b := encodeHeader(CstoclReadDataLegacy, uint32(20+dataLen))
	p := b[PacketHeaderSize:]
	binary.BigEndian.PutUint64(p[0:8], chunkID)
	binary.BigEndian.PutUint32(p[8:12], offset)
	binary.BigEndian.PutUint32(p[12:16], size)
	binary.BigEndian.PutUint32(p[16:20], crc)
	return b
}

func (legacySerializer) ReadDataPayloadOffset() int {
	return PacketHeaderSize + 20
}

// SerializeReadStatus: chunkId(8) + status(1).
func (legacySerializer) SerializeReadStatus(chunkID uint64, status Status) []byte {
	b := encodeHeader(CstoclReadStatusLegacy, 9)
	p := b[PacketHeaderSize:]
	binary.BigEndian.PutUint64(p[0:8], chunkID)
	p[8] = byte(status)
	return b
}

// SerializeWriteStatus: chunkId(8) + writeId(4) + status(1).
func (legacySerializer) SerializeWriteStatus(chunkID uint64, writeID uint32, status Status) []byte {
	b := encodeHeader(CstoclWriteStatusLegacy, 13)
	p := b[PacketHeaderSize:]
	binary.BigEndian.PutUint64(p[0:8], chunkID)
	binary.BigEndian.PutUint32(p[8:12], writeID)
	p[12] = byte(status)
	return b
}

// DeserializeReadRequest: chunkId(8) + version(4) + offset(4) + size(4). No
// part-type byte in the legacy dialect (always Standard).
func (legacySerializer) DeserializeReadRequest(payload []byte) (readRequest, error) {
	if len(payload) != 20 {
		return readRequest{}, errors.New("legacy read request: bad length")
	}
	return readRequest{
		ChunkID:  binary.BigEndian.Uint64(payload[0:8]),
		Version:  binary.BigEndian.Uint32(payload[8:12]),
		PartType: StandardPartType,
		Offset:   binary.BigEndian.Uint32(payload[12:16]),
		Size:     binary.BigEndian.Uint32(payload[16:20]),
	}, nil
}

// legacy chain entry: ip(4) + port(2).
const legacyChainEntrySize = 6

func (legacySerializer) DeserializeWriteInit(payload []byte) (writeInitRequest, error) {
	if len(payload) < 12 {
		return writeInitRequest{}, errors.New("legacy write init: too short")
	}
	chunkID := binary.BigEndian.Uint64(payload[0:8])
	version := binary.BigEndian.Uint32(payload[8:12])
	rest := payload[12:]
	if len(rest)%legacyChainEntrySize != 0 {
		return writeInitRequest{}, errors.New("legacy write init: malformed chain")
	}
	n := len(rest) / legacyChainEntrySize
	chain := make([]chainEntry, 0, n)
	for i := 0; i < n; i++ {
		e := rest[i*legacyChainEntrySize : (i+1)*legacyChainEntrySize]
		ip := net.IPv4(e[0], e[1], e[2], e[3])
		port := binary.BigEndian.Uint16(e[4:6])
		chain = append(chain, chainEntry{
			Addr:     net.TCPAddr{IP: ip, Port: int(port)},
			PartType: StandardPartType,
		})
	}
	return writeInitRequest{ChunkID: chunkID, Version: version, PartType: StandardPartType, Chain: chain}, nil
}

func (legacySerializer) SerializeWriteInitForward(chunkID uint64, version uint32, _ ChunkPartType, chain []chainEntry) []byte {
	length := uint32(12 + legacyChainEntrySize*len(chain))
	b := encodeHeader(CltocsWriteLegacy, length)
	p := b[PacketHeaderSize:]
	binary.BigEndian.PutUint64(p[0:8], chunkID)
	binary.BigEndian.PutUint32(p[8:12], version)
	for i, c := range chain {
		e := p[12+i*legacyChainEntrySize:]
		ip4 := c.Addr.IP.To4()
		copy(e[0:4], ip4)
		binary.BigEndian.PutUint16(e[4:6], uint16(c.Addr.Port))
	}
	return b
}

// legacy write data: chunkId(8) + writeId(4) + blockNum(2) + offset(4) +
// size(4) + crc(4), followed by size bytes of raw data.
const legacyWriteDataPrefixSize = 8 + 4 + 2 + 4 + 4 + 4

func (legacySerializer) DeserializeWriteData(payload []byte) (writeDataRequest, int, error) {
	if len(payload) < legacyWriteDataPrefixSize {
		return writeDataRequest{}, 0, errors.New("legacy write data: too short")
	}
	r := writeDataRequest{
		ChunkID:  binary.BigEndian.Uint64(payload[0:8]),
		WriteID:  binary.BigEndian.Uint32(payload[8:12]),
		BlockNum: binary.BigEndian.Uint16(payload[12:14]),
		Offset:   binary.BigEndian.Uint32(payload[14:18]),
		Size:     binary.BigEndian.Uint32(payload[18:22]),
		CRC:      binary.BigEndian.Uint32(payload[22:26]),
	}
	if uint32(len(payload)-legacyWriteDataPrefixSize) != r.Size {
		return writeDataRequest{}, 0, errBadPacketLength
	}
	return r, legacyWriteDataPrefixSize, nil
}

// DeserializeWriteEnd has no legacy equivalent: MFS signals end-of-write
// implicitly. A connection latched to Legacy must never receive this
// message type; callers that do should treat it as a protocol violation.
func (legacySerializer) DeserializeWriteEnd([]byte) (uint64, error) {
	return 0, errProtocolViolation
}

// DeserializeGetChunkBlocks and SerializeGetChunkBlocksResponse have no
// legacy equivalent: GetChunkBlocks and TestChunk are SAU_-only packet
// types (§6), so a connection latched to Legacy must never reach either.
func (legacySerializer) DeserializeGetChunkBlocks([]byte) (uint64, uint32, ChunkPartType, error) {
	return 0, 0, ChunkPartType{}, errProtocolViolation
}

func (legacySerializer) SerializeGetChunkBlocksResponse(chunkID uint64, _ uint32, _ ChunkPartType, _ uint16, status Status) []byte {
	b := encodeHeader(CstoclReadStatusLegacy, 9)
	p := b[PacketHeaderSize:]
	binary.BigEndian.PutUint64(p[0:8], chunkID)
	p[8] = byte(status)
	return b
}
