package chunkserver

// JobType distinguishes the kinds of background work a connection can
// enqueue without blocking its own goroutine (GLOSSARY: "Background job").
type JobType uint8

const (
	JobRead JobType = iota
	JobWrite
	JobTestChunk
	JobChunkOp
)

// JobResult is delivered back to the owning connection once a Job
// finishes running on a worker goroutine.
type JobResult struct {
	JobID  uint32
	Status Status
	Data   []byte
	CRC    uint32
	Blocks uint16
	Err    error
}

// Job is one unit of ChunkStore work dispatched to the BackgroundJobPool.
// Fn does the actual I/O; its return value becomes the JobResult delivered
// on Done.
type Job struct {
	ID   uint32
	Type JobType
	Fn   func() JobResult

	// Done receives exactly one JobResult when Fn completes. Submit's
	// caller picks this channel - a connection's own jobDone for work it
	// wants to wait on, or a throwaway one-shot channel for fire-and-forget
	// jobs (§4.5's "null callback", e.g. prefetch or the close-on-WriteEnd
	// job) - mirroring the "wakeupFd" the connection's select loop watches
	// (§4.5, §4.8; see DESIGN.md for the channel translation of the
	// eventfd the poll loop originally used).
	Done chan JobResult
}

// newJob constructs a Job that delivers its completion on done.
func newJob(id uint32, t JobType, done chan JobResult, fn func() JobResult) *Job {
	return &Job{ID: id, Type: t, Fn: fn, Done: done}
}
