package chunkserver

import (
	"encoding/binary"
	"net"

	"github.com/NebulousLabs/errors"
)

// currentSerializer implements the SAU_ dialect (SAU_CLTOCS_*,
// SAU_CSTOCL_* type codes). Every request carries an explicit 3-byte part
// type (kind, k, m), and the write session is bounded by an explicit WriteEnd message
// rather than MFS's implicit end-of-chain.
type currentSerializer struct{}

func (currentSerializer) Dialect() Dialect { return DialectCurrent }

func encodePartType(pt ChunkPartType) [3]byte {
	return [3]byte{byte(pt.Kind), pt.K, pt.M}
}

func decodePartType(b []byte) ChunkPartType {
	return ChunkPartType{Kind: ChunkPartTypeKind(b[0]), K: b[1], M: b[2]}
}

// SerializeReadDataFrame: chunkId(8) + offset(4) + size(4) + crc(4),
// followed by dataLen bytes of raw block data the caller fills in.
func (currentSerializer) SerializeReadDataFrame(chunkID uint64, offset, size, crc uint32, dataLen int) []byte {
	b := encodeHeader(SauCstoclReadData, uint32(20+dataLen))
	p := b[PacketHeaderSize:]
	binary.BigEndian.PutUint64(p[0:8], chunkID)
	binary.BigEndian.PutUint32(p[8:12], offset)
	binary.BigEndian.PutUint32(p[12:16], size)
	binary.BigEndian.PutUint32(p[16:20], crc)
	return b
}

func (currentSerializer) ReadDataPayloadOffset() int {
	return PacketHeaderSize + 20
}

func (currentSerializer) SerializeReadStatus(chunkID uint64, status Status) []byte {
	b := encodeHeader(SauCstoclReadStatus, 9)
	p := b[PacketHeaderSize:]
	binary.BigEndian.PutUint64(p[0:8], chunkID)
	p[8] = byte(status)
	return b
}

func (currentSerializer) SerializeWriteStatus(chunkID uint64, writeID uint32, status Status) []byte {
	b := encodeHeader(SauCstoclWriteStatus, 13)
	p := b[PacketHeaderSize:]
	binary.BigEndian.PutUint64(p[0:8], chunkID)
	binary.BigEndian.PutUint32(p[8:12], writeID)
	p[12] = byte(status)
	return b
}

// DeserializeReadRequest: chunkId(8)+version(4)+partType(3)+offset(4)+size(4).
func (currentSerializer) DeserializeReadRequest(payload []byte) (readRequest, error) {
	if len(payload) != 23 {
		return readRequest{}, errors.New("current read request: bad length")
	}
	return readRequest{
		ChunkID:  binary.BigEndian.Uint64(payload[0:8]),
		Version:  binary.BigEndian.Uint32(payload[8:12]),
		PartType: decodePartType(payload[12:15]),
		Offset:   binary.BigEndian.Uint32(payload[15:19]),
		Size:     binary.BigEndian.Uint32(payload[19:23]),
	}, nil
}

// current chain entry: ip(4) + port(2) + partType(3) + peerVersion(4) = 13.
const currentChainEntrySize = 13

func (currentSerializer) DeserializeWriteInit(payload []byte) (writeInitRequest, error) {
	if len(payload) < 15 {
		return writeInitRequest{}, errors.New("current write init: too short")
	}
	chunkID := binary.BigEndian.Uint64(payload[0:8])
	version := binary.BigEndian.Uint32(payload[8:12])
	partType := decodePartType(payload[12:15])
	rest := payload[15:]
	if len(rest)%currentChainEntrySize != 0 {
		return writeInitRequest{}, errors.New("current write init: malformed chain")
	}
	n := len(rest) / currentChainEntrySize
	chain := make([]chainEntry, 0, n)
	for i := 0; i < n; i++ {
		e := rest[i*currentChainEntrySize : (i+1)*currentChainEntrySize]
		ip := net.IPv4(e[0], e[1], e[2], e[3])
		port := binary.BigEndian.Uint16(e[4:6])
		chain = append(chain, chainEntry{
			Addr:        net.TCPAddr{IP: ip, Port: int(port)},
			PartType:    decodePartType(e[6:9]),
			PeerVersion: binary.BigEndian.Uint32(e[9:13]),
		})
	}
	return writeInitRequest{ChunkID: chunkID, Version: version, PartType: partType, Chain: chain}, nil
}

func (currentSerializer) SerializeWriteInitForward(chunkID uint64, version uint32, partType ChunkPartType, chain []chainEntry) []byte {
	length := uint32(15 + currentChainEntrySize*len(chain))
	b := encodeHeader(SauCltocsWriteInit, length)
	p := b[PacketHeaderSize:]
	binary.BigEndian.PutUint64(p[0:8], chunkID)
	binary.BigEndian.PutUint32(p[8:12], version)
	pt := encodePartType(partType)
	copy(p[12:15], pt[:])
	for i, c := range chain {
		e := p[15+i*currentChainEntrySize:]
		ip4 := c.Addr.IP.To4()
		copy(e[0:4], ip4)
		binary.BigEndian.PutUint16(e[4:6], uint16(c.Addr.Port))
		cpt := encodePartType(c.PartType)
		copy(e[6:9], cpt[:])
		binary.BigEndian.PutUint32(e[9:13], c.PeerVersion)
	}
	return b
}

// current write data: chunkId(8)+writeId(4)+blockNum(2)+offset(4)+size(4)+crc(4).
const currentWriteDataPrefixSize = 8 + 4 + 2 + 4 + 4 + 4

func (currentSerializer) DeserializeWriteData(payload []byte) (writeDataRequest, int, error) {
	if len(payload) < currentWriteDataPrefixSize {
		return writeDataRequest{}, 0, errors.New("current write data: too short")
	}
	r := writeDataRequest{
		ChunkID:  binary.BigEndian.Uint64(payload[0:8]),
		WriteID:  binary.BigEndian.Uint32(payload[8:12]),
		BlockNum: binary.BigEndian.Uint16(payload[12:14]),
		Offset:   binary.BigEndian.Uint32(payload[14:18]),
		Size:     binary.BigEndian.Uint32(payload[18:22]),
		CRC:      binary.BigEndian.Uint32(payload[22:26]),
	}
	if uint32(len(payload)-currentWriteDataPrefixSize) != r.Size {
		return writeDataRequest{}, 0, errBadPacketLength
	}
	return r, currentWriteDataPrefixSize, nil
}

// DeserializeWriteEnd: chunkId(8).
func (currentSerializer) DeserializeWriteEnd(payload []byte) (uint64, error) {
	if len(payload) != 8 {
		return 0, errors.New("write end: bad length")
	}
	return binary.BigEndian.Uint64(payload[0:8]), nil
}

// DeserializeGetChunkBlocks: chunkId(8)+version(4)+partType(3) = 15.
func (currentSerializer) DeserializeGetChunkBlocks(payload []byte) (uint64, uint32, ChunkPartType, error) {
	if len(payload) != 15 {
		return 0, 0, ChunkPartType{}, errors.New("current get chunk blocks: bad length")
	}
	return binary.BigEndian.Uint64(payload[0:8]),
		binary.BigEndian.Uint32(payload[8:12]),
		decodePartType(payload[12:15]),
		nil
}

// SerializeGetChunkBlocksResponse: chunkId(8)+version(4)+partType(3)+
// blocks(2)+status(1) = 18.
func (currentSerializer) SerializeGetChunkBlocksResponse(chunkID uint64, version uint32, partType ChunkPartType, blocks uint16, status Status) []byte {
	b := encodeHeader(SauCstocsGetChunkBlocksResponse, 18)
	p := b[PacketHeaderSize:]
	binary.BigEndian.PutUint64(p[0:8], chunkID)
	binary.BigEndian.PutUint32(p[8:12], version)
	pt := encodePartType(partType)
	copy(p[12:15], pt[:])
	binary.BigEndian.PutUint16(p[15:17], blocks)
	p[17] = byte(status)
	return b
}
