package db

import (
	"context"
	"fmt"

	"github.com/bobarin/leadreel/internal/models"
	"github.com/google/uuid"
)

// GetLeadsForCampaign lists a campaign's leads in creation order. When ids
// is non-empty only those leads are returned.
func (db *DB) GetLeadsForCampaign(ctx context.Context, campaignID uuid.UUID, ids []uuid.UUID) ([]models.Lead, error) {
	query := `
		SELECT id, campaign_id, website_url, first_name, company, created_at
		FROM leads
		WHERE campaign_id = $1
		  AND (cardinality($2::uuid[]) = 0 OR id = ANY($2::uuid[]))
		ORDER BY created_at ASC, id ASC
	`

	rows, err := db.QueryContext(ctx, query, campaignID, uuidArray(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	var leads []models.Lead
	for rows.Next() {
		var l models.Lead
		if err := rows.Scan(&l.ID, &l.CampaignID, &l.WebsiteURL, &l.FirstName, &l.Company, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, l)
	}

	return leads, rows.Err()
}

// CreateLead inserts a lead. Used by local setups and tests.
func (db *DB) CreateLead(ctx context.Context, l *models.Lead) error {
	query := `
		INSERT INTO leads (id, campaign_id, website_url, first_name, company)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	return db.QueryRowContext(
		ctx, query,
		l.ID, l.CampaignID, l.WebsiteURL, l.FirstName, l.Company,
	).Scan(&l.CreatedAt)
}
