package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Enums
type VideoStatus string

const (
	VideoStatusPending    VideoStatus = "pending"
	VideoStatusProcessing VideoStatus = "processing"
	VideoStatusCompleted  VideoStatus = "completed"
	VideoStatusFailed     VideoStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s VideoStatus) Valid() bool {
	switch s {
	case VideoStatusPending, VideoStatusProcessing, VideoStatusCompleted, VideoStatusFailed:
		return true
	}
	return false
}

// Terminal statuses are never touched again by the worker until a re-run.
func (s VideoStatus) Terminal() bool {
	return s == VideoStatusCompleted || s == VideoStatusFailed
}

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// Models

// Campaign owns the intro clip and the style settings shared by its leads.
type Campaign struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	IntroVideoPath     string    `json:"intro_video_path"`
	SecondaryVideoPath *string   `json:"secondary_video_path,omitempty"`
	Settings           JSONB     `json:"settings,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type Lead struct {
	ID         uuid.UUID `json:"id"`
	CampaignID uuid.UUID `json:"campaign_id"`
	WebsiteURL string    `json:"website_url"`
	FirstName  *string   `json:"first_name,omitempty"`
	Company    *string   `json:"company,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// VideoRecord is the persisted outcome of generating one lead's video.
// There is at most one per lead; re-runs overwrite it.
type VideoRecord struct {
	ID             uuid.UUID   `json:"id"`
	LeadID         uuid.UUID   `json:"lead_id"`
	CampaignID     uuid.UUID   `json:"campaign_id"`
	Slug           string      `json:"slug"`
	Status         VideoStatus `json:"status"`
	VideoPath      *string     `json:"video_path,omitempty"`
	PreviewPath    *string     `json:"preview_path,omitempty"`
	ThumbnailPath  *string     `json:"thumbnail_path,omitempty"`
	BackgroundPath *string     `json:"background_path,omitempty"`
	ErrorMessage   *string     `json:"error_message,omitempty"`
	ExpiresAt      *time.Time  `json:"expires_at,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Paths lists the artifact paths that are set on the record.
func (r *VideoRecord) Paths() map[string]string {
	out := make(map[string]string, 4)
	for kind, p := range map[string]*string{
		ArtifactVideo:      r.VideoPath,
		ArtifactPreview:    r.PreviewPath,
		ArtifactThumbnail:  r.ThumbnailPath,
		ArtifactBackground: r.BackgroundPath,
	} {
		if p != nil && *p != "" {
			out[kind] = *p
		}
	}
	return out
}

// Artifact kinds.
const (
	ArtifactVideo      = "video"
	ArtifactPreview    = "preview"
	ArtifactThumbnail  = "thumbnail"
	ArtifactBackground = "background"
)

// StatusCounts summarizes a campaign's video generation progress.
type StatusCounts struct {
	Completed  int `json:"completed"`
	Processing int `json:"processing"`
	Pending    int `json:"pending"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}

// API Request/Response types

type GenerateRequest struct {
	LeadIDs []uuid.UUID `json:"lead_ids,omitempty" validate:"max=10000"`
}

type GenerateResponse struct {
	Queued int `json:"queued"`
}

type DeleteVideoResponse struct {
	LeadID  uuid.UUID `json:"lead_id"`
	Deleted []string  `json:"deleted"`
}

type WorkerStatsResponse struct {
	Busy                bool  `json:"busy"`
	Pending             int   `json:"pending"`
	Processed           int64 `json:"processed"`
	Completed           int64 `json:"completed"`
	Failed              int64 `json:"failed"`
	StatusWriteFailures int64 `json:"status_write_failures"`
}
