package worker

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobarin/leadreel/internal/db"
	"github.com/bobarin/leadreel/internal/logging"
	"github.com/bobarin/leadreel/internal/models"
	"github.com/bobarin/leadreel/internal/queue"
	"github.com/bobarin/leadreel/internal/style"
)

type countingKicker struct {
	mu    sync.Mutex
	kicks int
}

func (k *countingKicker) Kick(context.Context) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.kicks++
	return true
}

func newDispatchFixture(t *testing.T, leads int) (*Dispatcher, *fakeStore, *queue.Queue, *countingKicker) {
	t.Helper()
	secondary := "/intros/broll.mp4"
	campaign := &models.Campaign{
		ID:                 uuid.New(),
		IntroVideoPath:     "/intros/hello.mp4",
		SecondaryVideoPath: &secondary,
		Settings: models.JSONB{
			style.KeyStyle:    "full_screen",
			style.KeyPosition: "top_left",
		},
	}
	store := &fakeStore{campaign: campaign, counts: map[models.VideoStatus]int{}}
	for i := 0; i < leads; i++ {
		store.leads = append(store.leads, models.Lead{
			ID:         uuid.New(),
			CampaignID: campaign.ID,
			WebsiteURL: "https://example.com",
		})
	}
	q := queue.New()
	k := &countingKicker{}
	return NewDispatcher(context.Background(), store, q, k, logging.Discard()), store, q, k
}

func TestEnqueueGenerationAllLeads(t *testing.T) {
	d, store, q, k := newDispatchFixture(t, 3)

	n, err := d.EnqueueGeneration(context.Background(), store.campaign.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, q.Len())
	assert.Equal(t, 1, k.kicks)

	job, ok := q.Next()
	require.True(t, ok)
	assert.Equal(t, store.leads[0].ID, job.LeadID)
	assert.Equal(t, "/intros/broll.mp4", job.SecondaryVideoPath)
	assert.Equal(t, style.StyleFullScreen, job.Settings.Style)
	assert.Equal(t, style.PositionTopLeft, job.Settings.Position)
}

func TestEnqueueGenerationSubsetSkipsQueued(t *testing.T) {
	d, store, q, _ := newDispatchFixture(t, 3)
	ctx := context.Background()
	first := store.leads[0].ID

	n, err := d.EnqueueGeneration(ctx, store.campaign.ID, []uuid.UUID{first, first})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = d.EnqueueGeneration(ctx, store.campaign.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 3, q.Len())
}

func TestConcurrentEnqueueGenerationQueuesLeadOnce(t *testing.T) {
	d, store, q, _ := newDispatchFixture(t, 3)

	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := d.EnqueueGeneration(context.Background(), store.campaign.ID, nil)
			assert.NoError(t, err)
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, total)
	assert.Equal(t, 3, q.Len())
}

func TestEnqueueGenerationErrors(t *testing.T) {
	d, store, _, k := newDispatchFixture(t, 1)
	ctx := context.Background()

	_, err := d.EnqueueGeneration(ctx, uuid.New(), nil)
	assert.ErrorIs(t, err, db.ErrNotFound)

	store.campaign.Settings[style.KeyStyle] = "giant_bubble"
	_, err = d.EnqueueGeneration(ctx, store.campaign.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidSettings)
	assert.Contains(t, err.Error(), style.KeyStyle)
	assert.Zero(t, k.kicks)
}

func TestStatusCountsQueuedAsPending(t *testing.T) {
	d, store, q, _ := newDispatchFixture(t, 2)
	ctx := context.Background()
	store.counts = map[models.VideoStatus]int{
		models.VideoStatusCompleted:  4,
		models.VideoStatusProcessing: 1,
		models.VideoStatusFailed:     2,
	}

	_, err := d.EnqueueGeneration(ctx, store.campaign.ID, nil)
	require.NoError(t, err)

	sc, err := d.Status(ctx, store.campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCounts{
		Completed:  4,
		Processing: 1,
		Pending:    2,
		Failed:     2,
		Total:      9,
	}, *sc)
	assert.ElementsMatch(t, q.PendingLeadIDs(store.campaign.ID), store.excluded)

	_, err = d.Status(ctx, uuid.New())
	assert.ErrorIs(t, err, db.ErrNotFound)
}
