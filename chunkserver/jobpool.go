package chunkserver

import (
	"sync"

	"github.com/NebulousLabs/fastrand"
	"github.com/NebulousLabs/threadgroup"
)

// BackgroundJobPool runs ChunkStore I/O off the connection goroutines that
// requested it, so a slow disk never stalls the event loop driving every
// other connection on the same worker (GLOSSARY: "Background job").
type BackgroundJobPool struct {
	queue chan *Job
	tg    threadgroup.ThreadGroup

	mu      sync.Mutex
	pending map[uint32]*Job
	disabled bool
}

// NewBackgroundJobPool starts workerCount worker goroutines draining a
// queue bounded at queueDepth; a full queue means errJobQueueFull is
// returned to the caller instead of blocking it indefinitely.
func NewBackgroundJobPool(workerCount, queueDepth int) *BackgroundJobPool {
	p := &BackgroundJobPool{
		queue:   make(chan *Job, queueDepth),
		pending: make(map[uint32]*Job),
	}
	for i := 0; i < workerCount; i++ {
		if err := p.tg.Add(); err != nil {
			break
		}
		go p.worker()
	}
	return p
}

func (p *BackgroundJobPool) worker() {
	defer p.tg.Done()
	for {
		select {
		case job := <-p.queue:
			p.run(job)
		case <-p.tg.StopChan():
			return
		}
	}
}

func (p *BackgroundJobPool) run(job *Job) {
	p.mu.Lock()
	_, stillPending := p.pending[job.ID]
	p.mu.Unlock()
	if !stillPending {
		// disableJob removed it before a worker picked it up.
		return
	}

	result := job.Fn()
	result.JobID = job.ID

	p.mu.Lock()
	delete(p.pending, job.ID)
	p.mu.Unlock()

	job.Done <- result
}

// newJobID picks a random, currently-unused job identifier, mirroring
// fastrand's use for collision-resistant IDs elsewhere in the pack (e.g.
// gatewayID in gateway.go). The caller must hold p.mu.
func (p *BackgroundJobPool) newJobID() (uint32, error) {
	for attempt := 0; attempt < 64; attempt++ {
		id := fastrand.Uint64n(1<<32 - 1)
		candidate := uint32(id) + 1 // never 0, reserved as "no job"
		_, taken := p.pending[candidate]
		if !taken {
			return candidate, nil
		}
	}
	return 0, errNoJobSlot
}

// Submit enqueues fn as a background job whose result is delivered on
// done, and returns the Job the caller can use with DisableJob or
// ChangeCallback. It fails with errJobQueueFull if the queue is saturated,
// or if the pool has been disabled (e.g. the owning connection is tearing
// down).
func (p *BackgroundJobPool) Submit(t JobType, done chan JobResult, fn func() JobResult) (*Job, error) {
	p.mu.Lock()
	if p.disabled {
		p.mu.Unlock()
		return nil, errJobQueueFull
	}
	id, err := p.newJobID()
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}
	job := newJob(id, t, done, fn)
	p.pending[id] = job
	p.mu.Unlock()

	select {
	case p.queue <- job:
		return job, nil
	default:
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
		return nil, errJobQueueFull
	}
}

// DisableJob cancels a job that a worker has not yet picked off the queue,
// so its Fn never runs and nothing is ever sent on its Done channel. A job
// already running when this is called finishes regardless - ChangeCallback
// is the primitive for taking over an already-running job's completion
// (see beginClose), since disabling it here would just make its result
// vanish into a Done channel nobody is still watching.
func (p *BackgroundJobPool) DisableJob(id uint32) {
	p.mu.Lock()
	delete(p.pending, id)
	p.mu.Unlock()
}

// ChangeCallback swaps which result channel a still-pending job will
// deliver to, used by beginClose to hand a still-in-flight job off to
// delayedClose without re-submitting the underlying disk work. Reports
// whether the job was still pending: false means it already ran to
// completion and its result was (or is about to be) delivered on its
// original Done channel instead.
func (p *BackgroundJobPool) ChangeCallback(job *Job, newDone chan JobResult) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.pending[job.ID]; !ok {
		return false
	}
	job.Done = newDone
	return true
}

// Disable stops the pool from accepting new jobs; already-running jobs
// finish normally. Used ahead of Stop so in-flight connections get a
// prompt errJobQueueFull instead of racing pool shutdown.
func (p *BackgroundJobPool) Disable() {
	p.mu.Lock()
	p.disabled = true
	p.mu.Unlock()
}

// Stop waits for every worker goroutine to exit.
func (p *BackgroundJobPool) Stop() error {
	return p.tg.Stop()
}
