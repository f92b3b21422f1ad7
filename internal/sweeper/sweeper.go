// Package sweeper deletes generated videos once they expire, and the oldest
// completed videos when the data directory grows past its cap.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/bobarin/leadreel/internal/db"
	"github.com/bobarin/leadreel/internal/models"
	"github.com/bobarin/leadreel/internal/storage"
)

type Store interface {
	ListExpiredVideos(ctx context.Context, now time.Time) ([]models.VideoRecord, error)
	ListCompletedVideosOldestFirst(ctx context.Context) ([]models.VideoRecord, error)
	DeleteFinishedVideoRecord(ctx context.Context, leadID uuid.UUID, slug string) (*models.VideoRecord, error)
}

// Guard keeps removals away from leads the worker is producing or about to
// produce.
type Guard interface {
	TryLockIdleLead(leadID uuid.UUID) bool
	UnlockLead(leadID uuid.UUID)
}

type Files interface {
	DeleteFilesForRecord(ctx context.Context, rec *models.VideoRecord) []string
	UsageBytes() (int64, error)
}

// Report summarizes one sweep.
type Report struct {
	Expired    int   `json:"expired"`
	Evicted    int   `json:"evicted"`
	FreedBytes int64 `json:"freed_bytes"`
}

type Sweeper struct {
	store    Store
	files    Files
	guard    Guard
	capBytes int64
	log      *logrus.Entry

	now    func() time.Time
	sizeOf func(models.VideoRecord) int64

	mu   sync.Mutex
	cron *cron.Cron
}

// New returns a sweeper. capBytes <= 0 disables the size cap.
func New(store Store, files Files, guard Guard, capBytes int64, log *logrus.Entry) *Sweeper {
	return &Sweeper{
		store:    store,
		files:    files,
		guard:    guard,
		capBytes: capBytes,
		log:      log,
		now:      time.Now,
		sizeOf:   recordSize,
	}
}

// Start runs RunOnce on schedule (standard cron syntax or descriptors such
// as "@every 1h").
func (s *Sweeper) Start(ctx context.Context, schedule string) error {
	logger := cron.PrintfLogger(s.log)
	c := cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))

	_, err := c.AddFunc(schedule, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.log.WithError(err).Error("retention sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", schedule, err)
	}

	s.cron = c
	c.Start()
	s.log.WithField("schedule", schedule).Info("retention sweeper started")
	return nil
}

// Stop halts the schedule and waits for a running sweep.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// RunOnce deletes expired records, then evicts the oldest completed records
// until usage is back under the cap.
func (s *Sweeper) RunOnce(ctx context.Context) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := &Report{}

	expired, err := s.store.ListExpiredVideos(ctx, s.now())
	if err != nil {
		return report, err
	}
	for i := range expired {
		freed, ok := s.remove(ctx, &expired[i], "expired")
		if ok {
			report.Expired++
			report.FreedBytes += freed
		}
	}

	if s.capBytes > 0 {
		if err := s.enforceCap(ctx, report); err != nil {
			return report, err
		}
	}

	if report.Expired > 0 || report.Evicted > 0 {
		s.log.WithFields(logrus.Fields{
			"expired":     report.Expired,
			"evicted":     report.Evicted,
			"freed_bytes": report.FreedBytes,
		}).Info("retention sweep finished")
	}
	return report, nil
}

func (s *Sweeper) enforceCap(ctx context.Context, report *Report) error {
	usage, err := s.files.UsageBytes()
	if err != nil {
		return err
	}
	excess := usage - s.capBytes
	if excess <= 0 {
		return nil
	}

	completed, err := s.store.ListCompletedVideosOldestFirst(ctx)
	if err != nil {
		return err
	}

	victims := SelectEvictions(completed, s.sizeOf, excess)
	s.log.WithFields(logrus.Fields{
		"usage_bytes": usage,
		"cap_bytes":   s.capBytes,
		"victims":     len(victims),
	}).Warn("storage over cap")

	for i := range victims {
		freed, ok := s.remove(ctx, &victims[i], "evicted")
		if ok {
			report.Evicted++
			report.FreedBytes += freed
		}
	}
	return nil
}

func (s *Sweeper) remove(ctx context.Context, rec *models.VideoRecord, reason string) (int64, bool) {
	log := s.log.WithFields(logrus.Fields{"lead_id": rec.LeadID, "slug": rec.Slug, "reason": reason})

	if !s.guard.TryLockIdleLead(rec.LeadID) {
		log.Debug("lead is queued or generating, skipped")
		return 0, false
	}
	defer s.guard.UnlockLead(rec.LeadID)

	// The record goes first and only if it is still the listed run. Files
	// are removed for the row that was actually deleted.
	deleted, err := s.store.DeleteFinishedVideoRecord(ctx, rec.LeadID, rec.Slug)
	if errors.Is(err, db.ErrNotFound) {
		log.Debug("video changed since listing, skipped")
		return 0, false
	}
	if err != nil {
		log.WithError(err).Error("failed to delete video record")
		return 0, false
	}

	size := s.sizeOf(*deleted)
	s.files.DeleteFilesForRecord(ctx, deleted)
	log.Debug("video removed")
	return size, true
}

// SelectEvictions returns the shortest prefix of recs (oldest first) whose
// combined size covers excess.
func SelectEvictions(recs []models.VideoRecord, sizeOf func(models.VideoRecord) int64, excess int64) []models.VideoRecord {
	if excess <= 0 {
		return nil
	}
	var freed int64
	for i, rec := range recs {
		freed += sizeOf(rec)
		if freed >= excess {
			return recs[:i+1]
		}
	}
	return recs
}

func recordSize(rec models.VideoRecord) int64 {
	return lo.SumBy(lo.Values(rec.Paths()), storage.FileSize)
}
