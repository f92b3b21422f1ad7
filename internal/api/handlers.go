package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bobarin/leadreel/internal/db"
	"github.com/bobarin/leadreel/internal/events"
	"github.com/bobarin/leadreel/internal/models"
	"github.com/bobarin/leadreel/internal/worker"
)

// Generator queues generation and reports campaign progress.
type Generator interface {
	EnqueueGeneration(ctx context.Context, campaignID uuid.UUID, leadIDs []uuid.UUID) (int, error)
	Status(ctx context.Context, campaignID uuid.UUID) (*models.StatusCounts, error)
}

type VideoStore interface {
	GetVideoRecordByLead(ctx context.Context, leadID uuid.UUID) (*models.VideoRecord, error)
	GetVideoRecordBySlug(ctx context.Context, slug string) (*models.VideoRecord, error)
	DeleteFinishedVideoRecord(ctx context.Context, leadID uuid.UUID, slug string) (*models.VideoRecord, error)
}

// LeadGuard keeps deletes away from leads that are queued or generating.
type LeadGuard interface {
	TryLockIdleLead(leadID uuid.UUID) bool
	UnlockLead(leadID uuid.UUID)
}

// Files deletes a record's artifacts.
type Files interface {
	DeleteFilesForRecord(ctx context.Context, rec *models.VideoRecord) []string
}

type StatsSource interface {
	Stats() models.WorkerStatsResponse
}

type Handler struct {
	generator Generator
	videos    VideoStore
	files     Files
	guard     LeadGuard
	stats     StatsSource
	events    events.Publisher
	validate  *validator.Validate
	log       *logrus.Entry
}

func NewHandler(generator Generator, videos VideoStore, files Files, guard LeadGuard, stats StatsSource, publisher events.Publisher, log *logrus.Entry) *Handler {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Handler{
		generator: generator,
		videos:    videos,
		files:     files,
		guard:     guard,
		stats:     stats,
		events:    publisher,
		validate:  validator.New(),
		log:       log,
	}
}

// GenerateVideos handles POST /v1/campaigns/{id}/generate
// An empty body or empty lead_ids queues every lead of the campaign.
func (h *Handler) GenerateVideos(w http.ResponseWriter, r *http.Request) {
	campaignID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid campaign ID")
		return
	}

	var req models.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "Too many lead IDs")
		return
	}

	queued, err := h.generator.EnqueueGeneration(r.Context(), campaignID, req.LeadIDs)
	switch {
	case errors.Is(err, db.ErrNotFound):
		respondError(w, http.StatusNotFound, "Campaign not found")
		return
	case errors.Is(err, worker.ErrInvalidSettings):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		h.log.WithError(err).WithField("campaign_id", campaignID).Error("failed to enqueue generation")
		respondError(w, http.StatusInternalServerError, "Failed to enqueue generation")
		return
	}

	respondJSON(w, http.StatusAccepted, models.GenerateResponse{Queued: queued})
}

// GetCampaignStatus handles GET /v1/campaigns/{id}/status
func (h *Handler) GetCampaignStatus(w http.ResponseWriter, r *http.Request) {
	campaignID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid campaign ID")
		return
	}

	counts, err := h.generator.Status(r.Context(), campaignID)
	if errors.Is(err, db.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Campaign not found")
		return
	}
	if err != nil {
		h.log.WithError(err).WithField("campaign_id", campaignID).Error("failed to count videos")
		respondError(w, http.StatusInternalServerError, "Failed to get status")
		return
	}

	respondJSON(w, http.StatusOK, counts)
}

// GetVideo handles GET /v1/videos/{slug}
func (h *Handler) GetVideo(w http.ResponseWriter, r *http.Request) {
	rec, err := h.videos.GetVideoRecordBySlug(r.Context(), chi.URLParam(r, "slug"))
	if errors.Is(err, db.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Video not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get video")
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

// DeleteLeadVideo handles DELETE /v1/leads/{id}/video
func (h *Handler) DeleteLeadVideo(w http.ResponseWriter, r *http.Request) {
	leadID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid lead ID")
		return
	}

	rec, err := h.videos.GetVideoRecordByLead(r.Context(), leadID)
	if errors.Is(err, db.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Video not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get video")
		return
	}
	if rec.Status == models.VideoStatusProcessing || !h.guard.TryLockIdleLead(leadID) {
		respondError(w, http.StatusConflict, "Video is being generated")
		return
	}
	defer h.guard.UnlockLead(leadID)

	removed, err := h.videos.DeleteFinishedVideoRecord(r.Context(), leadID, rec.Slug)
	if errors.Is(err, db.ErrNotFound) {
		respondError(w, http.StatusConflict, "Video changed, try again")
		return
	}
	if err != nil {
		h.log.WithError(err).WithField("lead_id", leadID).Error("failed to delete video record")
		respondError(w, http.StatusInternalServerError, "Failed to delete video")
		return
	}
	deleted := h.files.DeleteFilesForRecord(r.Context(), removed)

	ev := events.Event{Type: events.TypeDeleted, LeadID: leadID, CampaignID: rec.CampaignID, Slug: rec.Slug}
	if err := h.events.Publish(r.Context(), ev); err != nil {
		h.log.WithError(err).WithField("lead_id", leadID).Warn("failed to publish event")
	}

	respondJSON(w, http.StatusOK, models.DeleteVideoResponse{LeadID: leadID, Deleted: deleted})
}

// WorkerStats handles GET /v1/worker
func (h *Handler) WorkerStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.stats.Stats())
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
