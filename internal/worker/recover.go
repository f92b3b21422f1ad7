package worker

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bobarin/leadreel/internal/models"
)

// InterruptedMessage is recorded on jobs that were running when the previous
// process stopped.
const InterruptedMessage = "interrupted: service stopped before the video finished"

// InterruptedStore finds and fails records left processing.
type InterruptedStore interface {
	FailProcessingVideos(ctx context.Context, message string) ([]models.VideoRecord, error)
}

// LeadFiles removes whatever a run left behind for a lead.
type LeadFiles interface {
	RemoveLeadArtifacts(leadID uuid.UUID)
}

// RecoverInterrupted marks every record still processing as failed and
// removes its partial files. It must run before the worker takes jobs, when
// no record can legitimately be processing.
func RecoverInterrupted(ctx context.Context, store InterruptedStore, files LeadFiles, log *logrus.Entry) (int, error) {
	recs, err := store.FailProcessingVideos(ctx, InterruptedMessage)
	if err != nil {
		return 0, fmt.Errorf("failed to recover interrupted videos: %w", err)
	}
	for _, rec := range recs {
		files.RemoveLeadArtifacts(rec.LeadID)
		log.WithFields(logrus.Fields{"lead_id": rec.LeadID, "slug": rec.Slug}).Warn("marked interrupted video as failed")
	}
	return len(recs), nil
}
