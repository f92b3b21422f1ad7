//go:build integration

package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobarin/leadreel/internal/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	database, err := New(url)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, database.EnsureSchema(context.Background()))
	return database
}

func seedLead(t *testing.T, database *DB) (*models.Campaign, *models.Lead) {
	t.Helper()
	ctx := context.Background()

	c := &models.Campaign{
		ID:             uuid.New(),
		Name:           "integration",
		IntroVideoPath: "/intros/hello.mp4",
		Settings:       models.JSONB{"video_style": "small_bubble"},
	}
	require.NoError(t, database.CreateCampaign(ctx, c))

	l := &models.Lead{ID: uuid.New(), CampaignID: c.ID, WebsiteURL: "https://example.com"}
	require.NoError(t, database.CreateLead(ctx, l))
	return c, l
}

func TestUpsertVideoRecordIsIdempotentPerLead(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()
	c, l := seedLead(t, database)

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	rec := &models.VideoRecord{
		LeadID:     l.ID,
		CampaignID: c.ID,
		Slug:       uuid.NewString()[:12],
		Status:     models.VideoStatusProcessing,
		ExpiresAt:  &expires,
	}
	require.NoError(t, database.UpsertVideoRecord(ctx, rec))
	firstID := rec.ID

	video := "/data/videos/" + l.ID.String() + ".mp4"
	done := &models.VideoRecord{
		LeadID:     l.ID,
		CampaignID: c.ID,
		Slug:       rec.Slug,
		Status:     models.VideoStatusCompleted,
		VideoPath:  &video,
		ExpiresAt:  &expires,
	}
	require.NoError(t, database.UpsertVideoRecord(ctx, done))
	assert.Equal(t, firstID, done.ID)

	got, err := database.GetVideoRecordByLead(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VideoStatusCompleted, got.Status)
	assert.Equal(t, video, *got.VideoPath)
	assert.Nil(t, got.ErrorMessage)

	counts, err := database.CountByStatus(ctx, c.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, map[models.VideoStatus]int{models.VideoStatusCompleted: 1}, counts)

	counts, err = database.CountByStatus(ctx, c.ID, []uuid.UUID{l.ID})
	require.NoError(t, err)
	assert.Empty(t, counts)

	bySlug, err := database.GetVideoRecordBySlug(ctx, rec.Slug)
	require.NoError(t, err)
	assert.Equal(t, l.ID, bySlug.LeadID)

	_, err = database.DeleteFinishedVideoRecord(ctx, l.ID, "stale-slug")
	assert.ErrorIs(t, err, ErrNotFound)

	deleted, err := database.DeleteFinishedVideoRecord(ctx, l.ID, rec.Slug)
	require.NoError(t, err)
	assert.Equal(t, l.ID, deleted.LeadID)

	_, err = database.GetVideoRecordByLead(ctx, l.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListExpiredVideos(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()
	c, l := seedLead(t, database)

	past := time.Now().Add(-time.Hour)
	rec := &models.VideoRecord{
		LeadID: l.ID, CampaignID: c.ID, Slug: uuid.NewString()[:12],
		Status: models.VideoStatusCompleted, ExpiresAt: &past,
	}
	require.NoError(t, database.UpsertVideoRecord(ctx, rec))

	expired, err := database.ListExpiredVideos(ctx, time.Now())
	require.NoError(t, err)
	ids := make([]uuid.UUID, 0, len(expired))
	for _, e := range expired {
		ids = append(ids, e.LeadID)
	}
	assert.Contains(t, ids, l.ID)
}

func TestGetLeadsForCampaignFilter(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()
	c, l := seedLead(t, database)

	other := &models.Lead{ID: uuid.New(), CampaignID: c.ID, WebsiteURL: "https://example.org"}
	require.NoError(t, database.CreateLead(ctx, other))

	all, err := database.GetLeadsForCampaign(ctx, c.ID, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	some, err := database.GetLeadsForCampaign(ctx, c.ID, []uuid.UUID{other.ID})
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, other.ID, some[0].ID)
	assert.NotEqual(t, l.ID, some[0].ID)
}

func TestDeleteFinishedVideoRecordKeepsProcessing(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()
	c, l := seedLead(t, database)

	rec := &models.VideoRecord{
		LeadID: l.ID, CampaignID: c.ID, Slug: uuid.NewString()[:12],
		Status: models.VideoStatusProcessing,
	}
	require.NoError(t, database.UpsertVideoRecord(ctx, rec))

	_, err := database.DeleteFinishedVideoRecord(ctx, l.ID, rec.Slug)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := database.GetVideoRecordByLead(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VideoStatusProcessing, got.Status)
}

func TestFailProcessingVideos(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()
	c, l := seedLead(t, database)

	video := "/data/videos/" + l.ID.String() + ".mp4"
	rec := &models.VideoRecord{
		LeadID: l.ID, CampaignID: c.ID, Slug: uuid.NewString()[:12],
		Status: models.VideoStatusProcessing, VideoPath: &video,
	}
	require.NoError(t, database.UpsertVideoRecord(ctx, rec))

	failed, err := database.FailProcessingVideos(ctx, "interrupted")
	require.NoError(t, err)
	require.NotEmpty(t, failed)

	got, err := database.GetVideoRecordByLead(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VideoStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "interrupted", *got.ErrorMessage)
	assert.Nil(t, got.VideoPath)
}
