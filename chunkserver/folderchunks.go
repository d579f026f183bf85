package chunkserver

import "github.com/NebulousLabs/fastrand"

// FolderChunks partitions the chunks resident on one Folder into a tested
// and an untested section of a single backing slice, split at
// firstUntestedChunk (GLOSSARY: "Folder chunks"). Moving a chunk between
// sections is a constant-time swap-with-boundary rather than a slice
// shift, which is what lets the background scrub job cycle through every
// chunk exactly once per pass in O(1) per step.
type FolderChunks struct {
	chunks             []*Chunk
	index              map[uint64]int
	firstUntestedChunk int
}

// NewFolderChunks returns an empty FolderChunks.
func NewFolderChunks() *FolderChunks {
	return &FolderChunks{index: make(map[uint64]int)}
}

// Size reports the total number of chunks tracked.
func (f *FolderChunks) Size() int {
	return len(f.chunks)
}

// Insert adds c and immediately marks it tested: a freshly inserted chunk
// counts as fresh, so it sorts into the tested prefix and is deferred to
// next cycle rather than tested again this pass.
func (f *FolderChunks) Insert(c *Chunk) {
	f.chunks = append(f.chunks, c)
	c.IndexInFolder = len(f.chunks) - 1
	f.index[c.ChunkID] = c.IndexInFolder
	f.MarkAsTested(c.ChunkID)
}

// Remove deletes the chunk identified by chunkID, maintaining the
// tested/untested partition by swapping in the last element of whichever
// section chunkID's slot belonged to.
func (f *FolderChunks) Remove(chunkID uint64) {
	i, ok := f.index[chunkID]
	if !ok {
		return
	}
	last := len(f.chunks) - 1

	if i < f.firstUntestedChunk {
		// i is in the tested section: swap with the last tested element,
		// then shrink the tested section by pulling its new last element
		// (previously the first untested one) down to close the gap.
		lastTested := f.firstUntestedChunk - 1
		f.swap(i, lastTested)
		f.firstUntestedChunk--
		if lastTested != last {
			f.swap(lastTested, last)
		}
	} else {
		f.swap(i, last)
	}

	delete(f.index, chunkID)
	f.chunks = f.chunks[:last]
}

func (f *FolderChunks) swap(i, j int) {
	if i == j {
		return
	}
	f.chunks[i], f.chunks[j] = f.chunks[j], f.chunks[i]
	f.chunks[i].IndexInFolder = i
	f.chunks[j].IndexInFolder = j
	f.index[f.chunks[i].ChunkID] = i
	f.index[f.chunks[j].ChunkID] = j
}

// MarkAsTested moves chunkID from the untested section into the tested
// section by swapping it with the element currently at
// firstUntestedChunk, then advancing the boundary.
func (f *FolderChunks) MarkAsTested(chunkID uint64) {
	i, ok := f.index[chunkID]
	if !ok || i < f.firstUntestedChunk {
		return
	}
	f.swap(i, f.firstUntestedChunk)
	f.firstUntestedChunk++
}

// ChunkToTest returns the next chunk the scrub job should verify: the
// first element of the untested section, or nil if every chunk has
// already been tested this pass. It does not mutate the partition; the
// caller marks the chunk tested once verification succeeds.
func (f *FolderChunks) ChunkToTest() *Chunk {
	if f.firstUntestedChunk >= len(f.chunks) {
		return nil
	}
	return f.chunks[f.firstUntestedChunk]
}

// Shuffle resets the tested/untested boundary to the start and randomly
// permutes the whole slice, starting a fresh scrub cycle in a new order
// (so the same chunk doesn't always test first after a restart).
func (f *FolderChunks) Shuffle() {
	perm := fastrand.Perm(len(f.chunks))
	shuffled := make([]*Chunk, len(f.chunks))
	for i, p := range perm {
		shuffled[i] = f.chunks[p]
	}
	f.chunks = shuffled
	for i, c := range f.chunks {
		c.IndexInFolder = i
		f.index[c.ChunkID] = i
	}
	f.firstUntestedChunk = 0
}

// GetRandomChunk returns an arbitrary chunk, uniformly selected, or nil if
// FolderChunks is empty. Used to pick read/write candidates for ad hoc
// verification outside the scrub cycle.
func (f *FolderChunks) GetRandomChunk() *Chunk {
	if len(f.chunks) == 0 {
		return nil
	}
	return f.chunks[fastrand.Intn(len(f.chunks))]
}

// Get looks up a chunk by ID.
func (f *FolderChunks) Get(chunkID uint64) (*Chunk, bool) {
	i, ok := f.index[chunkID]
	if !ok {
		return nil, false
	}
	return f.chunks[i], true
}
