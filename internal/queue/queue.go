// Package queue holds generation jobs waiting for the worker.
package queue

import (
	"sync"

	"github.com/google/uuid"

	"github.com/bobarin/leadreel/internal/pipeline"
)

// Queue is an in-memory FIFO of pipeline jobs plus the flag that marks a
// drain in progress. All state is guarded by one mutex so that checking for
// work and clearing the flag happen together.
//
// The queue also holds per-lead locks. The worker holds a lead's lock while
// it produces that lead's record and files; anything deleting them takes
// the lock first.
type Queue struct {
	mu       sync.Mutex
	pending  []pipeline.Job
	busy     bool
	locked   map[uuid.UUID]struct{}
	unlocked *sync.Cond
}

func New() *Queue {
	q := &Queue{locked: make(map[uuid.UUID]struct{})}
	q.unlocked = sync.NewCond(&q.mu)
	return q
}

// EnqueueMany appends jobs in order and returns the queue length.
func (q *Queue) EnqueueMany(jobs []pipeline.Job) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, jobs...)
	return len(q.pending)
}

// EnqueueNew appends the jobs whose lead is not already queued, checking and
// appending under one lock. It returns the jobs added and the queue length.
func (q *Queue) EnqueueNew(jobs []pipeline.Job) ([]pipeline.Job, int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	seen := make(map[uuid.UUID]struct{}, len(q.pending)+len(jobs))
	for _, job := range q.pending {
		seen[job.LeadID] = struct{}{}
	}
	var added []pipeline.Job
	for _, job := range jobs {
		if _, ok := seen[job.LeadID]; ok {
			continue
		}
		seen[job.LeadID] = struct{}{}
		added = append(added, job)
	}
	q.pending = append(q.pending, added...)
	return added, len(q.pending)
}

// TryStart marks the queue busy if it is idle and has work. The caller that
// gets true owns the drain until Next reports empty.
func (q *Queue) TryStart() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.busy || len(q.pending) == 0 {
		return false
	}
	q.busy = true
	return true
}

// Next pops the oldest job. When the queue is empty it clears the busy flag
// before returning false, so a job enqueued afterwards always finds the
// queue idle.
func (q *Queue) Next() (pipeline.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		q.busy = false
		return pipeline.Job{}, false
	}
	job := q.pending[0]
	q.pending[0] = pipeline.Job{}
	q.pending = q.pending[1:]
	return job, true
}

// Abort clears the busy flag without draining, used when a drain cannot
// start. Pending jobs are kept.
func (q *Queue) Abort() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.busy = false
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.busy
}

// PendingFor counts queued jobs for a campaign.
func (q *Queue) PendingFor(campaignID uuid.UUID) int {
	return len(q.PendingLeadIDs(campaignID))
}

// PendingLeadIDs lists the leads of a campaign that are still queued.
func (q *Queue) PendingLeadIDs(campaignID uuid.UUID) []uuid.UUID {
	q.mu.Lock()
	defer q.mu.Unlock()
	var ids []uuid.UUID
	for _, job := range q.pending {
		if job.CampaignID == campaignID {
			ids = append(ids, job.LeadID)
		}
	}
	return ids
}

// LockLead blocks until the lead's lock is free and takes it.
func (q *Queue) LockLead(leadID uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if _, held := q.locked[leadID]; !held {
			break
		}
		q.unlocked.Wait()
	}
	q.locked[leadID] = struct{}{}
}

// TryLockIdleLead takes the lead's lock only if it is free and the lead has
// no queued job, so a caller never removes output that is about to be
// regenerated.
func (q *Queue) TryLockIdleLead(leadID uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, held := q.locked[leadID]; held {
		return false
	}
	for _, job := range q.pending {
		if job.LeadID == leadID {
			return false
		}
	}
	q.locked[leadID] = struct{}{}
	return true
}

func (q *Queue) UnlockLead(leadID uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.locked, leadID)
	q.unlocked.Broadcast()
}
