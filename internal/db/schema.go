package db

import (
	"context"
	"fmt"
)

// Schema holds the tables this service reads and writes. Campaigns and
// leads are owned by the dashboard; they are only created here for local
// setups and tests.
const Schema = `
CREATE TABLE IF NOT EXISTS campaigns (
	id                   UUID PRIMARY KEY,
	name                 TEXT NOT NULL DEFAULT '',
	intro_video_path     TEXT NOT NULL,
	secondary_video_path TEXT,
	settings             JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS leads (
	id          UUID PRIMARY KEY,
	campaign_id UUID NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
	website_url TEXT NOT NULL,
	first_name  TEXT,
	company     TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS leads_campaign_id_idx ON leads (campaign_id);

CREATE TABLE IF NOT EXISTS generated_videos (
	id              UUID PRIMARY KEY,
	lead_id         UUID NOT NULL UNIQUE REFERENCES leads(id) ON DELETE CASCADE,
	campaign_id     UUID NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
	slug            TEXT NOT NULL UNIQUE,
	status          TEXT NOT NULL CHECK (status IN ('pending', 'processing', 'completed', 'failed')),
	video_path      TEXT,
	preview_path    TEXT,
	thumbnail_path  TEXT,
	background_path TEXT,
	error_message   TEXT,
	expires_at      TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS generated_videos_campaign_status_idx ON generated_videos (campaign_id, status);
CREATE INDEX IF NOT EXISTS generated_videos_expires_at_idx ON generated_videos (expires_at);
`

// EnsureSchema creates any missing tables.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
