package chunkserver

import (
	"sync"
	"testing"
	"time"
)

func TestChunkLockUnlock(t *testing.T) {
	c := NewChunk(1, 1, StandardPartType, 0)
	c.Lock()
	if c.State() != ChunkLocked {
		t.Fatal("expected Locked after Lock")
	}
	c.Unlock()
	if c.State() != ChunkAvailable {
		t.Fatal("expected Available after Unlock")
	}
}

func TestChunkLockContention(t *testing.T) {
	c := NewChunk(1, 1, StandardPartType, 0)
	c.Lock()

	var wg sync.WaitGroup
	wg.Add(1)
	acquired := make(chan struct{})
	go func() {
		defer wg.Done()
		c.Lock()
		close(acquired)
		c.Unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock must not acquire while first holds it")
	case <-time.After(20 * time.Millisecond):
	}

	c.Unlock()
	wg.Wait()
}

func TestChunkMarkToBeDeleted(t *testing.T) {
	c := NewChunk(1, 1, StandardPartType, 0)
	c.MarkToBeDeleted()
	if c.State() != ChunkToBeDeleted {
		t.Fatal("expected ToBeDeleted")
	}
}
