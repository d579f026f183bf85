package chunkserver

import (
	"github.com/NebulousLabs/errors"
	"github.com/klauspost/reedsolomon"

	"github.com/leil-io/saunafs-chunkserver/build"
)

// errUnconstructibleECShape is returned when a chain entry's (k, m) part
// type describes a shard split reedsolomon itself refuses to build an
// encoder for.
var errUnconstructibleECShape = errors.New("chunk part type describes an unconstructible erasure-coding shape")

// validateECShape confirms that a PartEC(k, m) chain entry is
// constructible before admitting it into a write chain (spec.md §6:
// "chain entries... must be re-encoded in the downstream peer's
// version... as selected by peerVersion"); a chain entry that claims a
// shard count reedsolomon itself would reject must be refused up front
// rather than failing mid-forward.
func validateECShape(pt ChunkPartType) error {
	if pt.Kind != PartEC {
		return nil
	}
	if _, err := reedsolomon.New(int(pt.K), int(pt.M)); err != nil {
		return errors.Compose(errUnconstructibleECShape, err)
	}
	return nil
}

// reencodeChainEntry returns the ChunkPartType a chain entry must be
// re-encoded to before forwarding, given the downstream peer's advertised
// version and the (k, m) negotiated for this write (§6). It validates the
// resulting shape so a malformed (k, m) pair is caught before the entry is
// ever put on the wire to the next hop.
func reencodeChainEntry(peerVersion uint32, k, m uint8) (ChunkPartType, error) {
	pt := partTypeForPeerVersion(peerVersion, k, m)
	if err := validateECShape(pt); err != nil {
		return ChunkPartType{}, err
	}
	return pt, nil
}

// ecEncoder builds a reedsolomon.Encoder for an already-validated
// PartEC(k, m) part type. Callers must call validateECShape (or
// reencodeChainEntry) first; ecEncoder panics on a shape it cannot build,
// since that indicates a chain entry slipped past validation.
func ecEncoder(pt ChunkPartType) reedsolomon.Encoder {
	if pt.Kind != PartEC {
		build.Critical("ecEncoder called with non-EC part type", pt)
	}
	enc, err := reedsolomon.New(int(pt.K), int(pt.M))
	if err != nil {
		build.Critical("ecEncoder: part type was not validated", pt, err)
	}
	return enc
}
