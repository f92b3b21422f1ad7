package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bobarin/leadreel/internal/events"
	"github.com/bobarin/leadreel/internal/models"
	"github.com/bobarin/leadreel/internal/pipeline"
	"github.com/bobarin/leadreel/internal/queue"
	"github.com/bobarin/leadreel/internal/services"
)

// ErrStatusWrite marks a failure to persist a record transition. It is kept
// apart from pipeline failures: the video may be fine while its record is
// stale.
var ErrStatusWrite = errors.New("status write failed")

const (
	statusWriteTimeout = 10 * time.Second

	// The final write of a job is retried; losing it would leave the record
	// processing.
	finalWriteAttempts = 4
	baseRetryDelay     = 500 * time.Millisecond
	maxRetryDelay      = 5 * time.Second
)

// Store persists video records.
type Store interface {
	UpsertVideoRecord(ctx context.Context, rec *models.VideoRecord) error
}

// Processor renders one job.
type Processor interface {
	Run(ctx context.Context, renderer pipeline.Renderer, job pipeline.Job) (*pipeline.Result, error)
}

// Session is a renderer shared by every job of one drain.
type Session interface {
	pipeline.Renderer
	Close()
}

// SessionFactory opens a renderer session for a drain.
type SessionFactory func(ctx context.Context) (Session, error)

// Publisher mirrors finished artifacts.
type Publisher interface {
	Publish(ctx context.Context, artifacts map[string]string) error
}

type Config struct {
	Queue     *queue.Queue
	Store     Store
	Pipeline  Processor
	Sessions  SessionFactory
	Events    events.Publisher
	Artifacts Publisher
	// TTL is how long a generated video is kept.
	TTL time.Duration
	Log *logrus.Entry
}

type Worker struct {
	queue     *queue.Queue
	store     Store
	pipeline  Processor
	sessions  SessionFactory
	events    events.Publisher
	artifacts Publisher
	ttl       time.Duration
	log       *logrus.Entry

	now        func() time.Time
	newSlug    func() string
	retryDelay func(attempt int) time.Duration

	drains sync.WaitGroup

	processed           atomic.Int64
	completed           atomic.Int64
	failed              atomic.Int64
	statusWriteFailures atomic.Int64
}

func New(cfg Config) *Worker {
	if cfg.Events == nil {
		cfg.Events = events.Nop{}
	}
	return &Worker{
		queue:     cfg.Queue,
		store:     cfg.Store,
		pipeline:  cfg.Pipeline,
		sessions:  cfg.Sessions,
		events:    cfg.Events,
		artifacts: cfg.Artifacts,
		ttl:       cfg.TTL,
		log:       cfg.Log,
		now:        time.Now,
		newSlug:    NewSlug,
		retryDelay: retryDelay,
	}
}

// NewSlug returns a short random public identifier for a video.
func NewSlug() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Kick starts a drain if none is running and there is work. It never
// blocks on the drain itself.
func (w *Worker) Kick(ctx context.Context) bool {
	if !w.queue.TryStart() {
		return false
	}
	w.drains.Add(1)
	go func() {
		defer w.drains.Done()
		w.drain(ctx)
	}()
	return true
}

// Wait blocks until the running drain, if any, has returned.
func (w *Worker) Wait() {
	w.drains.Wait()
}

// Stats reports worker counters.
func (w *Worker) Stats() models.WorkerStatsResponse {
	return models.WorkerStatsResponse{
		Busy:                w.queue.Busy(),
		Pending:             w.queue.Len(),
		Processed:           w.processed.Load(),
		Completed:           w.completed.Load(),
		Failed:              w.failed.Load(),
		StatusWriteFailures: w.statusWriteFailures.Load(),
	}
}

func (w *Worker) drain(ctx context.Context) {
	w.log.WithField("pending", w.queue.Len()).Info("drain started")

	var renderer pipeline.Renderer
	session, err := w.sessions(ctx)
	if err != nil {
		// Keep draining so every queued lead gets a failed record instead of
		// sitting in the queue.
		w.log.WithError(err).Error("failed to open renderer session")
		renderer = unavailableRenderer{err: err}
	} else {
		defer session.Close()
		renderer = session
	}

	n := 0
	for {
		if ctx.Err() != nil {
			w.queue.Abort()
			w.log.WithField("pending", w.queue.Len()).Warn("drain cancelled")
			return
		}
		job, ok := w.queue.Next()
		if !ok {
			break
		}
		w.processJob(ctx, renderer, job)
		n++
	}

	w.log.WithField("jobs", n).Info("drain finished")
}

func (w *Worker) processJob(ctx context.Context, renderer pipeline.Renderer, job pipeline.Job) {
	log := w.log.WithFields(logrus.Fields{"lead_id": job.LeadID, "campaign_id": job.CampaignID})

	// Held until the final write so retention and deletes leave this lead's
	// record and files alone.
	w.queue.LockLead(job.LeadID)
	defer w.queue.UnlockLead(job.LeadID)

	start := w.now()

	expires := start.Add(w.ttl)
	rec := &models.VideoRecord{
		LeadID:     job.LeadID,
		CampaignID: job.CampaignID,
		Slug:       w.newSlug(),
		Status:     models.VideoStatusProcessing,
		ExpiresAt:  &expires,
	}
	if err := w.writeStatus(ctx, rec, 1, log); err == nil {
		w.publish(ctx, events.Event{Type: events.TypeProcessing, LeadID: job.LeadID, CampaignID: job.CampaignID, Slug: rec.Slug}, log)
	}

	log.Info("processing lead")
	res, err := w.runSafely(ctx, renderer, job)
	w.processed.Add(1)

	final := &models.VideoRecord{
		ID:         rec.ID,
		LeadID:     job.LeadID,
		CampaignID: job.CampaignID,
		Slug:       rec.Slug,
		ExpiresAt:  rec.ExpiresAt,
	}
	ev := events.Event{LeadID: job.LeadID, CampaignID: job.CampaignID, Slug: rec.Slug}

	if err != nil {
		w.failed.Add(1)
		msg := err.Error()
		final.Status = models.VideoStatusFailed
		final.ErrorMessage = &msg
		ev.Type = events.TypeFailed
		ev.Stage = string(pipeline.FailedStage(err))
		ev.Error = msg
		log.WithError(err).WithField("stage", ev.Stage).Error("lead failed")
	} else {
		w.completed.Add(1)
		final.Status = models.VideoStatusCompleted
		final.VideoPath = &res.VideoPath
		final.PreviewPath = &res.PreviewPath
		final.ThumbnailPath = &res.ThumbnailPath
		final.BackgroundPath = &res.BackgroundPath
		ev.Type = events.TypeCompleted
		log.WithField("elapsed", w.now().Sub(start).String()).Info("lead completed")

		if w.artifacts != nil {
			if err := w.artifacts.Publish(ctx, res.Artifacts()); err != nil {
				log.WithError(err).Warn("failed to mirror artifacts")
			}
		}
	}

	if err := w.writeStatus(ctx, final, finalWriteAttempts, log); err != nil {
		return
	}
	w.publish(ctx, ev, log)
}

// runSafely turns a panic inside the pipeline into a job failure.
func (w *Worker) runSafely(ctx context.Context, renderer pipeline.Renderer, job pipeline.Job) (res *pipeline.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()
	return w.pipeline.Run(ctx, renderer, job)
}

// writeStatus upserts rec, trying up to attempts times. Writes are detached
// from ctx so a shutdown mid-job still records the outcome.
func (w *Worker) writeStatus(ctx context.Context, rec *models.VideoRecord, attempts int, log *logrus.Entry) error {
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := w.retryDelay(attempt)
			log.WithError(err).WithFields(logrus.Fields{"status": rec.Status, "attempt": attempt}).Warn("retrying status write")
			time.Sleep(delay)
		}
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
		err = w.store.UpsertVideoRecord(wctx, rec)
		cancel()
		if err == nil {
			return nil
		}
	}

	w.statusWriteFailures.Add(1)
	err = fmt.Errorf("%w: %s: %v", ErrStatusWrite, rec.Status, err)
	log.WithError(err).WithFields(logrus.Fields{"kind": "status_write", "status": rec.Status}).Error("failed to persist video status")
	w.publish(ctx, events.Event{
		Type:       events.TypeStatusWriteError,
		LeadID:     rec.LeadID,
		CampaignID: rec.CampaignID,
		Slug:       rec.Slug,
		Error:      err.Error(),
	}, log)
	return err
}

func retryDelay(attempt int) time.Duration {
	delay := float64(baseRetryDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(maxRetryDelay) {
		delay = float64(maxRetryDelay)
	}
	jitter := delay * 0.25 * rand.Float64()
	return time.Duration(delay + jitter)
}

func (w *Worker) publish(ctx context.Context, e events.Event, log *logrus.Entry) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := w.events.Publish(pctx, e); err != nil {
		log.WithError(err).WithField("event", e.Type).Warn("failed to publish event")
	}
}

type unavailableRenderer struct {
	err error
}

func (r unavailableRenderer) Capture(context.Context, string, string) (*services.CaptureResult, error) {
	return nil, fmt.Errorf("renderer unavailable: %w", r.err)
}
