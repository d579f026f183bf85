package chunkserver

import (
	"context"
	"net"
	"time"

	"github.com/NebulousLabs/entropy-mnemonics"
	"github.com/NebulousLabs/fastrand"
)

// ConnectionState is one node of the per-connection state machine (§4.6).
type ConnectionState uint8

const (
	StateIdle ConnectionState = iota
	StateRead
	StateGetBlock
	StateWriteLast
	StateConnecting
	StateWriteInit
	StateWriteForward
	StateWriteFinish
	StateClose
	StateCloseWait
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRead:
		return "Read"
	case StateGetBlock:
		return "GetBlock"
	case StateWriteLast:
		return "WriteLast"
	case StateConnecting:
		return "Connecting"
	case StateWriteInit:
		return "WriteInit"
	case StateWriteForward:
		return "WriteForward"
	case StateWriteFinish:
		return "WriteFinish"
	case StateClose:
		return "Close"
	case StateCloseWait:
		return "CloseWait"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// idleTimeout closes a connection that has issued no activity for this
// long (§5, "Cancellation & timeouts").
const idleTimeout = 10 * time.Second

// maxConnectRetries bounds the forward-connect backoff loop (§5).
const maxConnectRetries = 10

// connectRetryBackoff implements the exact formula from §5:
// 300000*2^(n>>1) microseconds for odd n, 200000*2^(n>>1) for even n.
func connectRetryBackoff(n int) time.Duration {
	base := 200000
	if n%2 == 1 {
		base = 300000
	}
	us := base << uint(n>>1)
	return time.Duration(us) * time.Microsecond
}

// ConnectionEntry is one client or upstream-peer TCP session (GLOSSARY:
// "ConnectionEntry"). A single goroutine (Run) owns every field below for
// the entry's whole lifetime: no other goroutine ever touches them
// directly, which is why none of the accesses here take a lock (§5,
// "Thus ConnectionEntry fields need no internal locking") - the Go
// translation of that invariant is "only the owning goroutine closes over
// this struct," not a literal poll-thread affinity.
type ConnectionEntry struct {
	debugID string

	client  net.Conn
	forward net.Conn

	store   ChunkStore
	jobs    *BackgroundJobPool
	bufPool *BufferPool

	state ConnectionState

	serializer MessageSerializer

	chunkID       uint64
	chunkVersion  uint32
	chunkPartType ChunkPartType
	offset        uint32
	size          uint32
	isChunkOpen   bool

	forwardChain []chainEntry
	peerVersion  uint32

	readJob         *Job
	writeJob        *Job
	getBlocksJob    *Job
	writeJobWriteID uint32
	todoReadCounter int

	partiallyCompletedWrites map[uint32]bool

	connectRetryCounter int
	connectStartTime    time.Time

	lastActivityTime time.Time

	outputPackets [][]byte

	jobDone chan JobResult
}

// NewConnectionEntry constructs an entry for an accepted client socket.
func NewConnectionEntry(client net.Conn, store ChunkStore, jobs *BackgroundJobPool, bufPool *BufferPool) *ConnectionEntry {
	id := connectionDebugID()
	return &ConnectionEntry{
		debugID:                  id,
		client:                   client,
		store:                    store,
		jobs:                     jobs,
		bufPool:                  bufPool,
		state:                    StateIdle,
		partiallyCompletedWrites: make(map[uint32]bool),
		lastActivityTime:         time.Now(),
		jobDone:                  make(chan JobResult, 4),
	}
}

// connectionDebugID derives a short, human-speakable identifier for log
// correlation from four bytes of randomness, the same motivation (and
// mechanism) as gateway.go's gatewayID stamp.
func connectionDebugID() string {
	seed := fastrand.Bytes(4)
	phrase, err := mnemonics.ToPhrase(seed, mnemonics.English)
	if err != nil {
		return "conn-unknown"
	}
	return phrase.String()
}

// touch records connection activity for the idle timeout.
func (c *ConnectionEntry) touch() {
	c.lastActivityTime = time.Now()
}

// CheckIdleTimeout moves the connection to Close if it has been idle too
// long while in a state where idleness is meaningful (§4.6).
func (c *ConnectionEntry) CheckIdleTimeout(now time.Time) {
	switch c.state {
	case StateClose, StateCloseWait, StateClosed:
		return
	}
	if now.Sub(c.lastActivityTime) > idleTimeout {
		c.state = StateClose
	}
}

// enqueue appends a fully-serialized packet to the client output queue.
func (c *ConnectionEntry) enqueue(packet []byte) {
	c.outputPackets = append(c.outputPackets, packet)
}

// DispatchPacket routes one parsed packet to the handler for the
// connection's current state, per the transition table in §4.6.
func (c *ConnectionEntry) DispatchPacket(ctx context.Context, t PacketType, payload []byte) error {
	c.touch()

	if c.serializer == nil {
		s := serializerForType(t)
		if s == nil {
			c.state = StateClose
			return errUnknownPacketType
		}
		c.serializer = s
	} else if s := serializerForType(t); s != nil && s.Dialect() != c.serializer.Dialect() {
		c.state = StateClose
		return errSerializerLatched
	}

	switch c.state {
	case StateIdle:
		return c.dispatchIdle(ctx, t, payload)
	case StateWriteLast, StateWriteForward:
		return c.dispatchWrite(ctx, t, payload)
	default:
		// A packet arriving outside a state that accepts one is a
		// protocol violation (§4.6 default transition: "Anything else
		// -> Close").
		c.state = StateClose
		return errProtocolViolation
	}
}

func (c *ConnectionEntry) dispatchIdle(ctx context.Context, t PacketType, payload []byte) error {
	switch t {
	case AnToAnPing:
		c.enqueue(encodeHeader(AnToAnPingReply, uint32(len(payload))))
		return nil
	case CltocsReadLegacy, SauCltocsRead, SauCltocsPrefetch:
		return c.handleRead(ctx, payload, t == SauCltocsPrefetch)
	case CltocsWriteLegacy, SauCltocsWriteInit:
		return c.handleWriteInit(ctx, payload)
	case SauCstocsGetChunkBlocks:
		return c.handleGetChunkBlocks(ctx, payload)
	case SauCltocsHddListV2:
		c.enqueue(encodeHeader(SauCstoclHddListV2, 0))
		return nil
	case SauCltocsListDiskGroups, SauCltocsAdminDiskGroups:
		c.enqueue(encodeHeader(SauCstoclListDiskGroups, 0))
		return nil
	case SauCltocsChart:
		c.enqueue(encodeHeader(SauAntoclChart, 0))
		return nil
	case SauCltocsTestChunk:
		return c.handleTestChunk(ctx, payload)
	default:
		c.state = StateClose
		return errUnknownPacketType
	}
}

func (c *ConnectionEntry) dispatchWrite(ctx context.Context, t PacketType, payload []byte) error {
	switch t {
	case CltocsWriteDataLegacy, SauCltocsWriteData:
		return c.handleWriteData(ctx, t, payload)
	case SauCltocsWriteEnd:
		return c.handleWriteEnd(ctx, payload)
	default:
		c.state = StateClose
		return errUnknownPacketType
	}
}

// DeliverJobResult feeds a completed background job back into the state
// machine, selected by which slot the job id occupies (read, write, or
// getBlocks), mirroring the callback dispatch of §4.5/§4.6.
func (c *ConnectionEntry) DeliverJobResult(res JobResult) {
	switch {
	case c.readJob != nil && res.JobID == c.readJob.ID:
		c.readJob = nil
		c.onReadJobDone(res)
	case c.writeJob != nil && res.JobID == c.writeJob.ID:
		c.writeJob = nil
		c.onWriteJobDone(res)
	case c.getBlocksJob != nil && res.JobID == c.getBlocksJob.ID:
		c.getBlocksJob = nil
		c.onGetBlocksJobDone(res)
	}
}

func (c *ConnectionEntry) onGetBlocksJobDone(res JobResult) {
	c.enqueue(c.serializer.SerializeGetChunkBlocksResponse(c.chunkID, c.chunkVersion, c.chunkPartType, res.Blocks, res.Status))
	c.state = StateIdle
}

// activeJob returns whichever background job is currently outstanding for
// this entry, or nil. The state machine only ever has one of the three in
// flight at a time.
func (c *ConnectionEntry) activeJob() *Job {
	switch {
	case c.readJob != nil:
		return c.readJob
	case c.writeJob != nil:
		return c.writeJob
	case c.getBlocksJob != nil:
		return c.getBlocksJob
	default:
		return nil
	}
}

// beginClose starts the Close -> CloseWait -> Closed sequence (§4.6). A
// job still in flight has its callback redirected via ChangeCallback so
// the entry is reclaimed only once that outstanding I/O genuinely
// finishes - never by racing store.Close against the job still running on
// a pool worker.
func (c *ConnectionEntry) beginClose(ctx context.Context) {
	job := c.activeJob()
	if job != nil {
		c.readJob, c.writeJob, c.getBlocksJob = nil, nil, nil
		closeDone := make(chan JobResult, 1)
		if c.jobs.ChangeCallback(job, closeDone) {
			c.state = StateCloseWait
			go c.delayedClose(ctx, closeDone)
			return
		}
		// ChangeCallback only fails once the job has already left the
		// pending set, which happens right before its result is handed to
		// its (still original) Done channel - i.e. this entry's jobDone.
		// That send is at most a few instructions away, so waiting for it
		// here is bounded and keeps it from being mistaken for a later
		// job's completion once this entry moves past CloseWait.
		<-c.jobDone
	}
	if c.isChunkOpen {
		c.store.Close(ctx, c.chunkID)
		c.isChunkOpen = false
	}
	c.state = StateClosed
}

// delayedClose waits for the job beginClose redirected to actually
// finish, then closes the chunk and advances the entry to Closed. It runs
// detached from the connection's own goroutine, which is safe because
// beginClose has already cleared every job-slot field before spawning it.
func (c *ConnectionEntry) delayedClose(ctx context.Context, closeDone chan JobResult) {
	<-closeDone
	if c.isChunkOpen {
		c.store.Close(ctx, c.chunkID)
		c.isChunkOpen = false
	}
	c.state = StateClosed
}

// Close tears down both sockets. Queued output packets are plain byte
// slices, not buffers borrowed from bufPool, so there is nothing to return
// to the pool.
func (c *ConnectionEntry) Close() {
	if c.client != nil {
		c.client.Close()
	}
	if c.forward != nil {
		c.forward.Close()
	}
}
