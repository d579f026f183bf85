package chunkserver

import (
	"errors"
	"os"
	"testing"
	"time"
)

func TestFolderLockUnlockRoundTrip(t *testing.T) {
	dir, err := os.MkdirTemp("", "folder_lock_test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	f := NewFolder(dir, dir)
	if err := f.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if f.lockDev == 0 && f.lockIno == 0 {
		t.Fatal("expected dev/ino to be populated after Lock")
	}
	if err := f.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
}

func TestFolderRecentErrorsRingBound(t *testing.T) {
	f := NewFolder("/tmp/x", "/tmp/x")
	now := time.Now()
	for i := 0; i < lastErrorSize+5; i++ {
		f.RecordIoError(uint64(i), now, errors.New("boom"))
	}
	errs := f.RecentErrors()
	if len(errs) != lastErrorSize {
		t.Fatalf("expected ring bounded to %d entries, got %d", lastErrorSize, len(errs))
	}
	// oldest surviving entry should be chunk ID 5 (0..4 evicted).
	if errs[0].ChunkID != 5 {
		t.Fatalf("expected oldest surviving entry to be chunk 5, got %d", errs[0].ChunkID)
	}
	if errs[len(errs)-1].ChunkID != uint64(lastErrorSize+4) {
		t.Fatalf("expected newest entry to be chunk %d, got %d", lastErrorSize+4, errs[len(errs)-1].ChunkID)
	}
}

func TestHddStatisticsAdvanceResetsCurrentBucket(t *testing.T) {
	var h HddStatistics
	h.RecordRead()
	h.RecordRead()
	h.Advance()
	if h.Reads[h.current] != 0 {
		t.Fatal("new bucket should start at zero after Advance")
	}
}

func TestFolderScanLifecycle(t *testing.T) {
	dir, err := os.MkdirTemp("", "folder_scan_test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	f := NewFolder(dir, dir)
	f.BeginScan()
	if f.Scan != ScanInProgress {
		t.Fatal("expected ScanInProgress")
	}

	fresh := NewFolderChunks()
	fresh.Insert(NewChunk(1, 1, StandardPartType, 0))
	f.FinishScanning(fresh)
	if f.Scan != ScanDone {
		t.Fatal("expected ScanDone")
	}
	f.EndScanBookkeeping()

	chunks := f.Chunks()
	if chunks.Size() != 1 {
		t.Fatalf("expected 1 chunk after scan, got %d", chunks.Size())
	}
	f.ReleaseChunks()
}
