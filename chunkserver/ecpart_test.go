package chunkserver

import "testing"

func TestValidateECShapeAcceptsReasonableShape(t *testing.T) {
	pt := ChunkPartType{Kind: PartEC, K: 10, M: 3}
	if err := validateECShape(pt); err != nil {
		t.Fatalf("expected valid EC shape to pass: %v", err)
	}
}

func TestValidateECShapeRejectsZeroDataShards(t *testing.T) {
	pt := ChunkPartType{Kind: PartEC, K: 0, M: 3}
	if err := validateECShape(pt); err == nil {
		t.Fatal("expected rejection of zero data shards")
	}
}

func TestValidateECShapeIgnoresNonECKinds(t *testing.T) {
	if err := validateECShape(StandardPartType); err != nil {
		t.Fatalf("Standard part type must always validate: %v", err)
	}
	if err := validateECShape(ChunkPartType{Kind: PartXOR, K: 1, M: 1}); err != nil {
		t.Fatalf("XOR part type must always validate: %v", err)
	}
}

func TestReencodeChainEntrySelectsByPeerVersion(t *testing.T) {
	pt, err := reencodeChainEntry(kFirstECVersion, 10, 3)
	if err != nil {
		t.Fatal(err)
	}
	if pt.Kind != PartEC {
		t.Fatalf("expected PartEC for peer at kFirstECVersion, got %v", pt.Kind)
	}

	pt, err = reencodeChainEntry(kFirstXorVersion, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if pt.Kind != PartXOR {
		t.Fatalf("expected PartXOR for peer at kFirstXorVersion, got %v", pt.Kind)
	}

	pt, err = reencodeChainEntry(0, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if pt.Kind != PartStandard {
		t.Fatalf("expected PartStandard for old peer, got %v", pt.Kind)
	}
}

func TestEcEncoderBuildsUsableEncoder(t *testing.T) {
	pt := ChunkPartType{Kind: PartEC, K: 4, M: 2}
	enc := ecEncoder(pt)

	shards := make([][]byte, 6)
	for i := range shards {
		shards[i] = make([]byte, 128)
	}
	if err := enc.Encode(shards); err != nil {
		t.Fatalf("encode: %v", err)
	}
	ok, err := enc.Verify(shards)
	if err != nil || !ok {
		t.Fatalf("verify failed: ok=%v err=%v", ok, err)
	}
}
