package chunkserver

import (
	"context"
	"net"
	"time"
)

// handleWriteInit parses a WriteInit/Write request received in Idle,
// opens (or queues opening) the chunk, and either dials the next hop in
// the forwarding chain or moves straight to WriteLast when none remains
// (§4.6).
func (c *ConnectionEntry) handleWriteInit(ctx context.Context, payload []byte) error {
	req, err := c.serializer.DeserializeWriteInit(payload)
	if err != nil {
		c.state = StateClose
		return err
	}

	c.chunkID = req.ChunkID
	c.chunkVersion = req.Version
	c.chunkPartType = req.PartType
	c.partiallyCompletedWrites = make(map[uint32]bool)

	chunkID, version, partType := req.ChunkID, req.Version, req.PartType
	_, err = c.jobs.Submit(JobWrite, make(chan JobResult, 1), func() JobResult {
		if _, err := c.store.Open(ctx, chunkID, version, partType, true); err != nil {
			return JobResult{Status: statusFromStoreError(err), Err: err}
		}
		return JobResult{Status: StatusOK}
	})
	if err != nil {
		c.state = StateClose
		return err
	}
	c.isChunkOpen = true
	// The open job's result only matters if it errors; failure surfaces
	// through the next write's status rather than blocking here, matching
	// §4.6's "submit open job" without a dedicated wait state - so its
	// completion goes to a throwaway channel, not entry.jobDone.

	if len(req.Chain) == 0 {
		c.state = StateWriteLast
		return nil
	}

	head := req.Chain[0]
	c.forwardChain = req.Chain[1:]
	c.peerVersion = head.PeerVersion

	conn, err := net.DialTimeout("tcp", head.Addr.String(), 0)
	if err == nil {
		c.forward = conn
		c.state = StateWriteInit
		return c.sendForwardInit()
	}

	c.connectRetryCounter = 0
	c.connectStartTime = time.Now()
	c.state = StateConnecting
	return c.retryConnect(ctx, head.Addr)
}

// retryConnect drives the Connecting state's non-blocking-connect retry
// loop (§4.6, §5): up to maxConnectRetries attempts with the exact
// exponential backoff formula, after which the client is told CANTCONNECT
// and the entry proceeds to drain via WriteFinish.
func (c *ConnectionEntry) retryConnect(ctx context.Context, addr net.TCPAddr) error {
	for c.connectRetryCounter < maxConnectRetries {
		conn, err := net.DialTimeout("tcp", addr.String(), connectRetryBackoff(c.connectRetryCounter))
		if err == nil {
			c.forward = conn
			c.state = StateWriteInit
			return c.sendForwardInit()
		}
		c.connectRetryCounter++
	}
	c.enqueue(c.serializer.SerializeWriteStatus(c.chunkID, 0, StatusCantConnect))
	c.state = StateWriteFinish
	return errChainConnectFail
}

// sendForwardInit re-serializes the remaining chain in the downstream
// peer's dialect and writes it to the forward socket, then advances to
// WriteForward once drained.
func (c *ConnectionEntry) sendForwardInit() error {
	downstream := serializerForDialectOf(c.peerVersion)
	packet := downstream.SerializeWriteInitForward(c.chunkID, c.chunkVersion, c.chunkPartType, c.forwardChain)
	if _, err := c.forward.Write(packet); err != nil {
		c.enqueue(c.serializer.SerializeWriteStatus(c.chunkID, 0, StatusCantConnect))
		c.state = StateWriteFinish
		return err
	}
	c.state = StateWriteForward
	return nil
}

// serializerForDialectOf picks the wire dialect a downstream peer expects
// based on its advertised version, the same threshold logic used to pick
// its ChunkPartType encoding (§6).
func serializerForDialectOf(peerVersion uint32) MessageSerializer {
	if peerVersion >= kFirstXorVersion {
		return currentSerializer{}
	}
	return legacySerializer{}
}

// handleWriteData validates and submits one WriteData sub-operation,
// forwarding the raw packet - header and payload byte-for-byte - downstream
// first when a chain is present (§4.6, §6). The header is re-framed from t
// and len(payload) because the caller already split header from payload
// while reading off the wire.
func (c *ConnectionEntry) handleWriteData(ctx context.Context, t PacketType, payload []byte) error {
	req, dataOffset, err := c.serializer.DeserializeWriteData(payload)
	if err != nil {
		c.enqueue(c.serializer.SerializeWriteStatus(c.chunkID, 0, StatusWrongSize))
		c.state = StateWriteFinish
		return err
	}
	if req.ChunkID != c.chunkID {
		c.enqueue(c.serializer.SerializeWriteStatus(req.ChunkID, req.WriteID, StatusWrongChunkID))
		c.state = StateWriteFinish
		return errProtocolViolation
	}

	if c.state == StateWriteForward && c.forward != nil {
		framed := encodeHeader(t, uint32(len(payload)))
		copy(framed[PacketHeaderSize:], payload)
		if _, err := c.forward.Write(framed); err != nil {
			c.enqueue(c.serializer.SerializeWriteStatus(c.chunkID, req.WriteID, StatusDisconnected))
			c.state = StateWriteFinish
			return err
		}
	}

	data := payload[dataOffset:]
	chunkID, blockNum, offset, size, crc := c.chunkID, req.BlockNum, req.Offset, req.Size, req.CRC
	job, err := c.jobs.Submit(JobWrite, c.jobDone, func() JobResult {
		if err := c.store.WriteBlock(ctx, chunkID, blockNum, offset, size, crc, data); err != nil {
			return JobResult{Status: statusFromStoreError(err), Err: err}
		}
		return JobResult{Status: StatusOK}
	})
	if err != nil {
		c.enqueue(c.serializer.SerializeWriteStatus(c.chunkID, req.WriteID, StatusIO))
		c.state = StateWriteFinish
		return err
	}
	c.writeJob = job
	c.writeJobWriteID = req.WriteID
	return nil
}

// onWriteJobDone implements the local half of the XOR-on-a-set protocol
// (§4.6, §8 property 6): in WriteLast, a write completing locally is
// sufficient to tell the client. In WriteForward, a writeId toggles
// membership in partiallyCompletedWrites - the client only sees
// WriteStatus once both the local job and the downstream ack have
// happened, in either order.
func (c *ConnectionEntry) onWriteJobDone(res JobResult) {
	writeID := c.writeJobWriteID
	if res.Status != StatusOK {
		c.enqueue(c.serializer.SerializeWriteStatus(c.chunkID, writeID, res.Status))
		c.state = StateWriteFinish
		return
	}

	if c.state != StateWriteForward {
		c.enqueue(c.serializer.SerializeWriteStatus(c.chunkID, writeID, StatusOK))
		return
	}

	if c.partiallyCompletedWrites[writeID] {
		delete(c.partiallyCompletedWrites, writeID)
		c.enqueue(c.serializer.SerializeWriteStatus(c.chunkID, writeID, StatusOK))
	} else {
		c.partiallyCompletedWrites[writeID] = true
	}
}

// OnDownstreamAck implements the downstream half of the same protocol,
// driven by whatever goroutine reads WriteStatus packets off the forward
// socket.
func (c *ConnectionEntry) OnDownstreamAck(writeID uint32, status Status) {
	if status != StatusOK {
		c.enqueue(c.serializer.SerializeWriteStatus(c.chunkID, writeID, status))
		c.state = StateWriteFinish
		return
	}

	if c.partiallyCompletedWrites[writeID] {
		delete(c.partiallyCompletedWrites, writeID)
		c.enqueue(c.serializer.SerializeWriteStatus(c.chunkID, writeID, StatusOK))
	} else {
		c.partiallyCompletedWrites[writeID] = true
	}
}

// handleWriteEnd implements §4.6's WriteEnd transition: only valid once
// every in-flight write has drained and every completion has been
// flushed to the client, in which case the chunk is closed and the
// connection becomes reusable by returning to Idle.
func (c *ConnectionEntry) handleWriteEnd(ctx context.Context, payload []byte) error {
	if _, err := c.serializer.DeserializeWriteEnd(payload); err != nil {
		c.state = StateClose
		return err
	}

	if c.writeJob != nil || len(c.partiallyCompletedWrites) != 0 || len(c.outputPackets) != 0 {
		c.state = StateWriteFinish
		return nil
	}

	if c.isChunkOpen {
		// Close job with null callback (§4.6): nothing tracks its
		// completion, so it gets a throwaway channel rather than jobDone.
		c.jobs.Submit(JobWrite, make(chan JobResult, 1), func() JobResult {
			c.store.Close(ctx, c.chunkID)
			return JobResult{Status: StatusOK}
		})
		c.isChunkOpen = false
	}
	if c.forward != nil {
		c.forward.Close()
		c.forward = nil
	}
	c.state = StateIdle
	return nil
}
