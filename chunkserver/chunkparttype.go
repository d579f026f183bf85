package chunkserver

// ChunkPartTypeKind discriminates the replication/erasure scheme used to
// address a chunk part (GLOSSARY: "Chunk part type").
type ChunkPartTypeKind uint8

const (
	PartStandard ChunkPartTypeKind = iota
	PartXOR
	PartEC
)

// ChunkPartType changes how chain/address tuples are encoded on the wire
// (§6). K/M are only meaningful for PartXOR (K = data, M = parity count 1)
// and PartEC (K = data shards, M = parity shards).
type ChunkPartType struct {
	Kind ChunkPartTypeKind
	K    uint8
	M    uint8
}

// StandardPartType is the zero-value, non-erasure-coded part type.
var StandardPartType = ChunkPartType{Kind: PartStandard}

// kFirstXorVersion and kFirstECVersion gate which encoding a downstream
// peer in a write chain expects, per spec.md §6: "chain entries... must be
// re-encoded in the downstream peer's version (EC, XOR, or Standard) as
// selected by peerVersion >= kFirstECVersion / >= kFirstXorVersion / else
// Standard."
const (
	kFirstXorVersion uint32 = 0x1A0900
	kFirstECVersion  uint32 = 0x1B0000
)

// partTypeForPeerVersion selects the chain re-encoding to use for a
// downstream peer advertising peerVersion, given the part type negotiated
// with that peer (k, m carried alongside the version field on the wire).
func partTypeForPeerVersion(peerVersion uint32, k, m uint8) ChunkPartType {
	switch {
	case peerVersion >= kFirstECVersion:
		return ChunkPartType{Kind: PartEC, K: k, M: m}
	case peerVersion >= kFirstXorVersion:
		return ChunkPartType{Kind: PartXOR, K: k, M: m}
	default:
		return StandardPartType
	}
}
