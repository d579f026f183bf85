package chunkserver

import "context"

// handleRead parses a Read/Prefetch request received in Idle and starts
// the restartable read pipeline of §4.7.
func (c *ConnectionEntry) handleRead(ctx context.Context, payload []byte, prefetch bool) error {
	req, err := c.serializer.DeserializeReadRequest(payload)
	if err != nil {
		c.state = StateClose
		return err
	}

	if prefetch {
		c.jobs.Submit(JobRead, make(chan JobResult, 1), func() JobResult {
			c.store.Prefetch(ctx, req.ChunkID, uint16(req.Offset/MFSBLOCKSIZE))
			return JobResult{Status: StatusOK}
		})
		return nil
	}

	if uint64(req.Offset)+uint64(req.Size) > SFSCHUNKSIZE {
		c.enqueue(c.serializer.SerializeReadStatus(req.ChunkID, StatusWrongOffset))
		return nil
	}

	c.chunkID = req.ChunkID
	c.chunkVersion = req.Version
	c.chunkPartType = req.PartType
	c.offset = req.Offset
	c.size = req.Size
	c.isChunkOpen = false
	c.todoReadCounter = 0
	c.state = StateRead
	return c.readContinue(ctx)
}

// readContinue is the restartable stepper described in §4.7: it is
// called once from handleRead and again, each time a block has been both
// read and sent, from whichever of onReadJobDone or sendFinished brings
// todoReadCounter to zero, until size reaches zero.
func (c *ConnectionEntry) readContinue(ctx context.Context) error {
	if c.size == 0 {
		c.enqueue(c.serializer.SerializeReadStatus(c.chunkID, StatusOK))
		if c.isChunkOpen {
			c.store.Close(ctx, c.chunkID)
			c.isChunkOpen = false
		}
		c.state = StateIdle
		return nil
	}

	thisPartOffset := c.offset % MFSBLOCKSIZE
	thisPartSize := c.size
	if remaining := uint32(MFSBLOCKSIZE) - thisPartOffset; thisPartSize > remaining {
		thisPartSize = remaining
	}

	blockNum := uint16(c.offset / MFSBLOCKSIZE)
	openIfNeeded := !c.isChunkOpen
	chunkID, version, partType := c.chunkID, c.chunkVersion, c.chunkPartType
	offsetWithinBlock, size := thisPartOffset, thisPartSize

	job, err := c.jobs.Submit(JobRead, c.jobDone, func() JobResult {
		if openIfNeeded {
			if _, err := c.store.Open(ctx, chunkID, version, partType, false); err != nil {
				return JobResult{Status: statusFromStoreError(err), Err: err}
			}
		}
		dst := make([]byte, size)
		crc, err := c.store.ReadBlock(ctx, chunkID, blockNum, offsetWithinBlock, size, dst)
		if err != nil {
			return JobResult{Status: statusFromStoreError(err), Err: err}
		}
		return JobResult{Status: StatusOK, Data: dst, CRC: crc}
	})
	if err != nil {
		c.state = StateClose
		return err
	}
	c.isChunkOpen = true
	c.readJob = job
	// One count for the disk read in flight, one for the wire send that
	// will follow it once the read completes (§4.7): readContinue must
	// not be called again until both have happened, bounding how many
	// outputPackets entries a fast disk can pile up ahead of a slow
	// client.
	c.todoReadCounter += 2

	c.offset += thisPartSize
	c.size -= thisPartSize
	return nil
}

// onReadJobDone is the read-finished callback of §4.7: on success it
// emits the read-data prefix and block bytes and decrements the disk-read
// half of the two-phase counter; readContinue only runs again once
// sendFinished has also decremented the wire-send half.
func (c *ConnectionEntry) onReadJobDone(res JobResult) {
	if res.Status != StatusOK {
		c.enqueue(c.serializer.SerializeReadStatus(c.chunkID, res.Status))
		c.state = StateIdle
		return
	}

	offset := c.offset - uint32(len(res.Data))
	frame := c.serializer.SerializeReadDataFrame(c.chunkID, offset, uint32(len(res.Data)), res.CRC, len(res.Data))
	copy(frame[c.serializer.ReadDataPayloadOffset():], res.Data)
	c.enqueue(frame)

	c.todoReadCounter--
	if c.todoReadCounter <= 0 {
		c.readContinue(context.Background())
	}
}

// sendFinished is invoked once a packet attached by readContinue has been
// fully drained to the client socket (§4.7's wire-send half).
func (c *ConnectionEntry) sendFinished(ctx context.Context) {
	if c.state != StateRead {
		return
	}
	c.todoReadCounter--
	if c.todoReadCounter <= 0 {
		c.readContinue(ctx)
	}
}
