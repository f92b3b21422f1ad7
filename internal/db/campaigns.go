package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bobarin/leadreel/internal/models"
	"github.com/google/uuid"
)

// GetCampaign retrieves a campaign with its style settings.
func (db *DB) GetCampaign(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	query := `
		SELECT id, name, intro_video_path, secondary_video_path, settings, created_at, updated_at
		FROM campaigns
		WHERE id = $1
	`

	c := &models.Campaign{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.IntroVideoPath, &c.SecondaryVideoPath,
		&c.Settings, &c.CreatedAt, &c.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("campaign %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	return c, nil
}

// CreateCampaign inserts a campaign. Used by local setups and tests.
func (db *DB) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	query := `
		INSERT INTO campaigns (id, name, intro_video_path, secondary_video_path, settings)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	return db.QueryRowContext(
		ctx, query,
		c.ID, c.Name, c.IntroVideoPath, c.SecondaryVideoPath, c.Settings,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}
