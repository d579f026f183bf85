package chunkserver

import (
	"bytes"
	"net"
	"testing"
)

func TestSerializerRoundTripReadRequest(t *testing.T) {
	for _, s := range []MessageSerializer{legacySerializer{}, currentSerializer{}} {
		req := readRequest{ChunkID: 42, Version: 1, PartType: StandardPartType, Offset: 100, Size: 50}
		var payload []byte
		if s.Dialect() == DialectLegacy {
			payload = make([]byte, 20)
			encodeReadLegacyForTest(payload, req)
		} else {
			payload = make([]byte, 23)
			encodeReadCurrentForTest(payload, req)
		}
		got, err := s.DeserializeReadRequest(payload)
		if err != nil {
			t.Fatalf("%v: %v", s.Dialect(), err)
		}
		if got != req {
			t.Fatalf("%v: round trip mismatch: got %+v want %+v", s.Dialect(), got, req)
		}
	}
}

func encodeReadLegacyForTest(b []byte, r readRequest) {
	putU64(b[0:8], r.ChunkID)
	putU32(b[8:12], r.Version)
	putU32(b[12:16], r.Offset)
	putU32(b[16:20], r.Size)
}

func encodeReadCurrentForTest(b []byte, r readRequest) {
	putU64(b[0:8], r.ChunkID)
	putU32(b[8:12], r.Version)
	pt := encodePartType(r.PartType)
	copy(b[12:15], pt[:])
	putU32(b[15:19], r.Offset)
	putU32(b[19:23], r.Size)
}

func putU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[7-i] = byte(v >> (8 * i))
	}
}
func putU32(b []byte, v uint32) {
	for i := 0; i < 4; i++ {
		b[3-i] = byte(v >> (8 * i))
	}
}

func TestSerializerReadStatusRoundTrip(t *testing.T) {
	leg := legacySerializer{}.SerializeReadStatus(7, StatusWrongSize)
	cur := currentSerializer{}.SerializeReadStatus(7, StatusWrongSize)
	if bytes.Equal(leg, cur) {
		t.Fatal("legacy and current dialects must produce bit-distinct output")
	}
	hdr, err := decodeHeader(leg)
	if err != nil || hdr.Type != CstoclReadStatusLegacy {
		t.Fatalf("bad legacy header: %+v %v", hdr, err)
	}
	hdr, err = decodeHeader(cur)
	if err != nil || hdr.Type != SauCstoclReadStatus {
		t.Fatalf("bad current header: %+v %v", hdr, err)
	}
}

func TestSerializerWriteInitChainRoundTrip(t *testing.T) {
	chain := []chainEntry{
		{Addr: net.TCPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 9422}, PartType: StandardPartType, PeerVersion: 0x10000},
	}
	s := currentSerializer{}
	packet := s.SerializeWriteInitForward(1, 1, StandardPartType, chain)
	hdr, err := decodeHeader(packet)
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.DeserializeWriteInit(packet[PacketHeaderSize : PacketHeaderSize+hdr.Length])
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Chain) != 1 || got.Chain[0].Addr.Port != 9422 {
		t.Fatalf("chain round trip failed: %+v", got)
	}
}

func TestPacketTypeRanges(t *testing.T) {
	if !SauCltocsRead.isCurrent() || SauCltocsRead.isLegacy() {
		t.Fatal("SAU type misclassified")
	}
	if !CltocsReadLegacy.isLegacy() || CltocsReadLegacy.isCurrent() {
		t.Fatal("legacy type misclassified")
	}
}
