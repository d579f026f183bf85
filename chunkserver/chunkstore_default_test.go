package chunkserver

import (
	"context"
	"hash/crc32"
	"os"
	"testing"
)

func newTestStore(t *testing.T) *DefaultChunkStore {
	t.Helper()
	dir, err := os.MkdirTemp("", "chunkstore_test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return NewDefaultChunkStore(dir)
}

func TestDefaultChunkStoreWriteReadBlock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Open(ctx, 1, 1, StandardPartType, true); err != nil {
		t.Fatal(err)
	}

	data := make([]byte, 128)
	for i := range data {
		data[i] = byte(i)
	}
	crc := crc32.ChecksumIEEE(data)
	if err := s.WriteBlock(ctx, 1, 0, 0, uint32(len(data)), crc, data); err != nil {
		t.Fatal(err)
	}

	dst := make([]byte, 128)
	gotCRC, err := s.ReadBlock(ctx, 1, 0, 0, uint32(len(data)), dst)
	if err != nil {
		t.Fatal(err)
	}
	if gotCRC != crc {
		t.Fatalf("crc mismatch: got %d want %d", gotCRC, crc)
	}
	for i := range data {
		if dst[i] != data[i] {
			t.Fatalf("data mismatch at %d", i)
		}
	}
}

func TestDefaultChunkStoreWriteBlockBadCRCRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Open(ctx, 2, 1, StandardPartType, true); err != nil {
		t.Fatal(err)
	}
	data := []byte("hello")
	if err := s.WriteBlock(ctx, 2, 0, 0, uint32(len(data)), 0xDEADBEEF, data); err == nil {
		t.Fatal("expected CRC mismatch error")
	}
}

func TestDefaultChunkStoreTestCRC(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Open(ctx, 3, 1, StandardPartType, true); err != nil {
		t.Fatal(err)
	}
	data := []byte("block data for scrub")
	crc := crc32.ChecksumIEEE(data)
	if err := s.WriteBlock(ctx, 3, 0, 0, uint32(len(data)), crc, data); err != nil {
		t.Fatal(err)
	}
	if err := s.TestCRC(ctx, 3); err != nil {
		t.Fatalf("TestCRC: %v", err)
	}
}

func TestDefaultChunkStoreDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Open(ctx, 4, 1, StandardPartType, true); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, 4); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Open(ctx, 4, 1, StandardPartType, false); err == nil {
		t.Fatal("expected error opening deleted chunk without create")
	}
}

