package chunkserver

import "context"

// handleGetChunkBlocks parses a GetChunkBlocks request received in Idle and
// submits the getBlocks job of §4.5, moving to GetBlock until it completes
// (§4.6).
func (c *ConnectionEntry) handleGetChunkBlocks(ctx context.Context, payload []byte) error {
	chunkID, version, partType, err := c.serializer.DeserializeGetChunkBlocks(payload)
	if err != nil {
		c.state = StateClose
		return err
	}
	c.chunkID = chunkID
	c.chunkVersion = version
	c.chunkPartType = partType

	job, err := c.jobs.Submit(JobChunkOp, c.jobDone, func() JobResult {
		blocks, err := c.store.Open(ctx, chunkID, version, partType, false)
		if err != nil {
			return JobResult{Status: statusFromStoreError(err), Err: err}
		}
		return JobResult{Status: StatusOK, Blocks: blocks}
	})
	if err != nil {
		c.state = StateClose
		return err
	}
	c.getBlocksJob = job
	c.state = StateGetBlock
	return nil
}

// handleTestChunk queues a background CRC scrub for one chunk and stays
// Idle immediately: nothing in the wire protocol waits on its result, the
// same fire-and-forget enqueue the original core performs (it hands the
// chunk to a test queue rather than tracking a job id on the entry).
func (c *ConnectionEntry) handleTestChunk(ctx context.Context, payload []byte) error {
	chunkID, _, _, err := c.serializer.DeserializeGetChunkBlocks(payload)
	if err != nil {
		c.state = StateClose
		return err
	}
	// Best-effort, like Prefetch: a full job queue just means this scrub
	// is skipped rather than a reason to drop the connection.
	c.jobs.Submit(JobTestChunk, make(chan JobResult, 1), func() JobResult {
		err := c.store.TestCRC(ctx, chunkID)
		return JobResult{Status: statusFromStoreError(err), Err: err}
	})
	return nil
}
