package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bobarin/leadreel/internal/models"
	"github.com/google/uuid"
)

const videoColumns = `
	id, lead_id, campaign_id, slug, status,
	video_path, preview_path, thumbnail_path, background_path,
	error_message, expires_at, created_at, updated_at
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVideoRecord(row rowScanner) (*models.VideoRecord, error) {
	v := &models.VideoRecord{}
	err := row.Scan(
		&v.ID, &v.LeadID, &v.CampaignID, &v.Slug, &v.Status,
		&v.VideoPath, &v.PreviewPath, &v.ThumbnailPath, &v.BackgroundPath,
		&v.ErrorMessage, &v.ExpiresAt, &v.CreatedAt, &v.UpdatedAt,
	)
	return v, err
}

// UpsertVideoRecord writes the record for rec.LeadID, replacing any earlier
// run. rec.ID, CreatedAt and UpdatedAt are filled from the stored row.
func (db *DB) UpsertVideoRecord(ctx context.Context, rec *models.VideoRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	query := `
		INSERT INTO generated_videos (
			id, lead_id, campaign_id, slug, status,
			video_path, preview_path, thumbnail_path, background_path,
			error_message, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (lead_id) DO UPDATE SET
			campaign_id = EXCLUDED.campaign_id,
			slug = EXCLUDED.slug,
			status = EXCLUDED.status,
			video_path = EXCLUDED.video_path,
			preview_path = EXCLUDED.preview_path,
			thumbnail_path = EXCLUDED.thumbnail_path,
			background_path = EXCLUDED.background_path,
			error_message = EXCLUDED.error_message,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	err := db.QueryRowContext(
		ctx, query,
		rec.ID, rec.LeadID, rec.CampaignID, rec.Slug, rec.Status,
		rec.VideoPath, rec.PreviewPath, rec.ThumbnailPath, rec.BackgroundPath,
		rec.ErrorMessage, rec.ExpiresAt,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert video record: %w", err)
	}
	return nil
}

// GetVideoRecordByLead retrieves the record for a lead.
func (db *DB) GetVideoRecordByLead(ctx context.Context, leadID uuid.UUID) (*models.VideoRecord, error) {
	query := `SELECT ` + videoColumns + ` FROM generated_videos WHERE lead_id = $1`

	rec, err := scanVideoRecord(db.QueryRowContext(ctx, query, leadID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("video for lead %s: %w", leadID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video record: %w", err)
	}
	return rec, nil
}

// GetVideoRecordBySlug retrieves a record by its public slug.
func (db *DB) GetVideoRecordBySlug(ctx context.Context, slug string) (*models.VideoRecord, error) {
	query := `SELECT ` + videoColumns + ` FROM generated_videos WHERE slug = $1`

	rec, err := scanVideoRecord(db.QueryRowContext(ctx, query, slug))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("video %s: %w", slug, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video record: %w", err)
	}
	return rec, nil
}

// DeleteFinishedVideoRecord removes the lead's record only if it is still
// the finished run identified by slug, and returns the deleted row. A record
// that was re-run or is processing is left alone and ErrNotFound returned.
func (db *DB) DeleteFinishedVideoRecord(ctx context.Context, leadID uuid.UUID, slug string) (*models.VideoRecord, error) {
	query := `
		DELETE FROM generated_videos
		WHERE lead_id = $1
		  AND slug = $2
		  AND status IN ('completed', 'failed')
		RETURNING ` + videoColumns

	rec, err := scanVideoRecord(db.QueryRowContext(ctx, query, leadID, slug))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("finished video %s for lead %s: %w", slug, leadID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete video record: %w", err)
	}
	return rec, nil
}

// FailProcessingVideos marks every processing record as failed with message
// and clears its paths. It returns the records it changed.
func (db *DB) FailProcessingVideos(ctx context.Context, message string) ([]models.VideoRecord, error) {
	query := `
		UPDATE generated_videos
		SET status = 'failed',
			error_message = $1,
			video_path = NULL,
			preview_path = NULL,
			thumbnail_path = NULL,
			background_path = NULL,
			updated_at = NOW()
		WHERE status = 'processing'
		RETURNING ` + videoColumns
	return db.listVideos(ctx, query, message)
}

// CountByStatus counts a campaign's records per status, skipping the leads
// in exclude.
func (db *DB) CountByStatus(ctx context.Context, campaignID uuid.UUID, exclude []uuid.UUID) (map[models.VideoStatus]int, error) {
	query := `
		SELECT status, COUNT(*)
		FROM generated_videos
		WHERE campaign_id = $1
		  AND NOT (lead_id = ANY($2::uuid[]))
		GROUP BY status
	`

	rows, err := db.QueryContext(ctx, query, campaignID, uuidArray(exclude))
	if err != nil {
		return nil, fmt.Errorf("failed to count videos: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.VideoStatus]int)
	for rows.Next() {
		var status models.VideoStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[status] = n
	}

	return counts, rows.Err()
}

// ListExpiredVideos returns finished records whose expiry is before now.
func (db *DB) ListExpiredVideos(ctx context.Context, now time.Time) ([]models.VideoRecord, error) {
	query := `SELECT ` + videoColumns + `
		FROM generated_videos
		WHERE expires_at < $1
		  AND status IN ('completed', 'failed')
		ORDER BY expires_at ASC
	`
	return db.listVideos(ctx, query, now)
}

// ListCompletedVideosOldestFirst returns completed records, oldest first.
func (db *DB) ListCompletedVideosOldestFirst(ctx context.Context) ([]models.VideoRecord, error) {
	query := `SELECT ` + videoColumns + `
		FROM generated_videos
		WHERE status = 'completed'
		ORDER BY updated_at ASC, id ASC
	`
	return db.listVideos(ctx, query)
}

func (db *DB) listVideos(ctx context.Context, query string, args ...interface{}) ([]models.VideoRecord, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	var out []models.VideoRecord
	for rows.Next() {
		rec, err := scanVideoRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video record: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}
