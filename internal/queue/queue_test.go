package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobarin/leadreel/internal/pipeline"
)

func jobsFor(campaign uuid.UUID, n int) []pipeline.Job {
	jobs := make([]pipeline.Job, n)
	for i := range jobs {
		jobs[i] = pipeline.Job{LeadID: uuid.New(), CampaignID: campaign}
	}
	return jobs
}

func TestFIFO(t *testing.T) {
	q := New()
	jobs := jobsFor(uuid.New(), 3)
	assert.Equal(t, 3, q.EnqueueMany(jobs))

	require.True(t, q.TryStart())
	for _, want := range jobs {
		got, ok := q.Next()
		require.True(t, ok)
		assert.Equal(t, want.LeadID, got.LeadID)
	}
	_, ok := q.Next()
	assert.False(t, ok)
	assert.False(t, q.Busy())
}

func TestTryStartSingleDrain(t *testing.T) {
	q := New()
	assert.False(t, q.TryStart(), "empty queue must not start")

	q.EnqueueMany(jobsFor(uuid.New(), 1))
	assert.True(t, q.TryStart())
	assert.False(t, q.TryStart(), "second drain must not start while busy")
	assert.True(t, q.Busy())
}

func TestNextClearsBusyWhenEmpty(t *testing.T) {
	q := New()
	q.EnqueueMany(jobsFor(uuid.New(), 1))
	require.True(t, q.TryStart())

	_, ok := q.Next()
	require.True(t, ok)
	assert.True(t, q.Busy())

	_, ok = q.Next()
	require.False(t, ok)
	assert.False(t, q.Busy())

	// Work enqueued after the drain ended is picked up by a new drain.
	q.EnqueueMany(jobsFor(uuid.New(), 1))
	assert.True(t, q.TryStart())
}

func TestAbortKeepsJobs(t *testing.T) {
	q := New()
	q.EnqueueMany(jobsFor(uuid.New(), 2))
	require.True(t, q.TryStart())
	q.Abort()

	assert.False(t, q.Busy())
	assert.Equal(t, 2, q.Len())
}

func TestPendingFor(t *testing.T) {
	q := New()
	a, b := uuid.New(), uuid.New()
	aJobs := jobsFor(a, 2)
	q.EnqueueMany(aJobs)
	q.EnqueueMany(jobsFor(b, 3))

	assert.Equal(t, 2, q.PendingFor(a))
	assert.Equal(t, 3, q.PendingFor(b))
	assert.Equal(t, 0, q.PendingFor(uuid.New()))
	assert.Equal(t, []uuid.UUID{aJobs[0].LeadID, aJobs[1].LeadID}, q.PendingLeadIDs(a))
}

// No job may be left behind when producers race the drain loop.
func TestConcurrentEnqueueNeverStrandsJobs(t *testing.T) {
	q := New()
	campaign := uuid.New()

	var mu sync.Mutex
	processed := 0
	var drains sync.WaitGroup

	kick := func() {
		if !q.TryStart() {
			return
		}
		drains.Add(1)
		go func() {
			defer drains.Done()
			for {
				if _, ok := q.Next(); !ok {
					return
				}
				mu.Lock()
				processed++
				mu.Unlock()
			}
		}()
	}

	var producers sync.WaitGroup
	for i := 0; i < 20; i++ {
		producers.Add(1)
		go func() {
			defer producers.Done()
			for j := 0; j < 25; j++ {
				q.EnqueueMany(jobsFor(campaign, 1))
				kick()
			}
		}()
	}
	producers.Wait()
	drains.Wait()

	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 500, processed)
	assert.False(t, q.Busy())
}

func TestEnqueueNewSkipsQueuedLeads(t *testing.T) {
	q := New()
	campaign := uuid.New()
	first := jobsFor(campaign, 2)
	added, depth := q.EnqueueNew(first)
	require.Len(t, added, 2)
	assert.Equal(t, 2, depth)

	again := append([]pipeline.Job{first[1]}, jobsFor(campaign, 1)...)
	again = append(again, again[1])
	added, depth = q.EnqueueNew(again)
	require.Len(t, added, 1)
	assert.Equal(t, again[1].LeadID, added[0].LeadID)
	assert.Equal(t, 3, depth)
}

// Two requests for the same leads must queue each lead once.
func TestConcurrentEnqueueNewQueuesLeadOnce(t *testing.T) {
	q := New()
	jobs := jobsFor(uuid.New(), 50)

	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			added, _ := q.EnqueueNew(jobs)
			mu.Lock()
			total += len(added)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, total)
	assert.Equal(t, 50, q.Len())
}

func TestTryLockIdleLead(t *testing.T) {
	q := New()
	jobs := jobsFor(uuid.New(), 1)
	idle := uuid.New()

	q.EnqueueMany(jobs)
	assert.False(t, q.TryLockIdleLead(jobs[0].LeadID), "queued lead must not be locked for removal")

	require.True(t, q.TryLockIdleLead(idle))
	assert.False(t, q.TryLockIdleLead(idle))
	q.UnlockLead(idle)
	assert.True(t, q.TryLockIdleLead(idle))
}

func TestLockLeadWaitsForUnlock(t *testing.T) {
	q := New()
	lead := uuid.New()
	require.True(t, q.TryLockIdleLead(lead))

	acquired := make(chan struct{})
	go func() {
		q.LockLead(lead)
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("LockLead returned while the lead was locked")
	case <-time.After(50 * time.Millisecond):
	}

	q.UnlockLead(lead)
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("LockLead did not return after unlock")
	}
	assert.False(t, q.TryLockIdleLead(lead))
}
