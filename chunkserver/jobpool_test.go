package chunkserver

import (
	"testing"
	"time"
)

func TestBackgroundJobPoolSubmitAndComplete(t *testing.T) {
	p := NewBackgroundJobPool(2, 8)
	defer p.Stop()

	done := make(chan JobResult, 1)
	job, err := p.Submit(JobRead, done, func() JobResult {
		return JobResult{Status: StatusOK, Data: []byte("ok")}
	})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case res := <-job.Done:
		if res.Status != StatusOK || string(res.Data) != "ok" {
			t.Fatalf("unexpected result: %+v", res)
		}
	case <-time.After(time.Second):
		t.Fatal("job did not complete in time")
	}
}

func TestBackgroundJobPoolQueueFull(t *testing.T) {
	// zero workers: nothing ever drains the queue, so it fills immediately.
	p := NewBackgroundJobPool(0, 1)
	defer p.Stop()

	done := make(chan JobResult, 2)
	if _, err := p.Submit(JobRead, done, func() JobResult { return JobResult{} }); err != nil {
		t.Fatalf("first submit should succeed: %v", err)
	}
	if _, err := p.Submit(JobRead, done, func() JobResult { return JobResult{} }); err == nil {
		t.Fatal("expected errJobQueueFull once queue is saturated")
	}
}

func TestBackgroundJobPoolDisableRejectsNewJobs(t *testing.T) {
	p := NewBackgroundJobPool(1, 4)
	defer p.Stop()
	p.Disable()
	if _, err := p.Submit(JobRead, make(chan JobResult, 1), func() JobResult { return JobResult{} }); err == nil {
		t.Fatal("expected submit to fail once pool is disabled")
	}
}

func TestBackgroundJobPoolDisableJobPreventsStaleSend(t *testing.T) {
	// zero workers so the job never actually runs; DisableJob should make
	// it vanish from pending bookkeeping even though nothing drains it.
	p := NewBackgroundJobPool(0, 4)
	defer p.Stop()

	job, err := p.Submit(JobWrite, make(chan JobResult, 1), func() JobResult { return JobResult{} })
	if err != nil {
		t.Fatal(err)
	}
	p.DisableJob(job.ID)

	p.mu.Lock()
	_, stillPending := p.pending[job.ID]
	p.mu.Unlock()
	if stillPending {
		t.Fatal("job should have been removed from pending bookkeeping")
	}
}

func TestBackgroundJobPoolChangeCallback(t *testing.T) {
	p := NewBackgroundJobPool(0, 4)
	defer p.Stop()

	job, err := p.Submit(JobRead, make(chan JobResult, 1), func() JobResult { return JobResult{Status: StatusOK} })
	if err != nil {
		t.Fatal(err)
	}
	newDone := make(chan JobResult, 1)
	if !p.ChangeCallback(job, newDone) {
		t.Fatal("expected ChangeCallback to report the job still pending")
	}
	if job.Done != newDone {
		t.Fatal("expected job.Done to be swapped to newDone")
	}
}

func TestBackgroundJobPoolChangeCallbackFailsOnceCompleted(t *testing.T) {
	p := NewBackgroundJobPool(1, 4)
	defer p.Stop()

	done := make(chan JobResult, 1)
	job, err := p.Submit(JobRead, done, func() JobResult { return JobResult{Status: StatusOK} })
	if err != nil {
		t.Fatal(err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job did not complete in time")
	}

	if p.ChangeCallback(job, make(chan JobResult, 1)) {
		t.Fatal("expected ChangeCallback to fail for an already-completed job")
	}
}
