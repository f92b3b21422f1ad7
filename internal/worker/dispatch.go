package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/bobarin/leadreel/internal/models"
	"github.com/bobarin/leadreel/internal/pipeline"
	"github.com/bobarin/leadreel/internal/queue"
	"github.com/bobarin/leadreel/internal/style"
)

// ErrInvalidSettings is returned when a campaign's style settings cannot be
// resolved.
var ErrInvalidSettings = errors.New("invalid campaign settings")

// CampaignStore reads campaigns, leads and record counts.
type CampaignStore interface {
	GetCampaign(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	GetLeadsForCampaign(ctx context.Context, campaignID uuid.UUID, ids []uuid.UUID) ([]models.Lead, error)
	CountByStatus(ctx context.Context, campaignID uuid.UUID, exclude []uuid.UUID) (map[models.VideoStatus]int, error)
}

// Kicker starts a queue drain.
type Kicker interface {
	Kick(ctx context.Context) bool
}

// Dispatcher turns generation requests into queued jobs and reports progress.
type Dispatcher struct {
	store  CampaignStore
	queue  *queue.Queue
	worker Kicker
	// runCtx outlives the HTTP request that triggered the drain.
	runCtx context.Context
	log    *logrus.Entry
}

func NewDispatcher(runCtx context.Context, store CampaignStore, q *queue.Queue, w Kicker, log *logrus.Entry) *Dispatcher {
	return &Dispatcher{store: store, queue: q, worker: w, runCtx: runCtx, log: log}
}

// EnqueueGeneration queues a job for every lead of the campaign (or only the
// given leads) and starts the worker if it is idle. Leads that are already
// queued are skipped. It returns the number of jobs added.
func (d *Dispatcher) EnqueueGeneration(ctx context.Context, campaignID uuid.UUID, leadIDs []uuid.UUID) (int, error) {
	campaign, err := d.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return 0, err
	}

	settings, err := style.Parse(campaign.Settings)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}

	leads, err := d.store.GetLeadsForCampaign(ctx, campaignID, lo.Uniq(leadIDs))
	if err != nil {
		return 0, err
	}

	secondary := ""
	if campaign.SecondaryVideoPath != nil {
		secondary = *campaign.SecondaryVideoPath
	}
	jobs := lo.Map(leads, func(l models.Lead, _ int) pipeline.Job {
		return pipeline.Job{
			LeadID:             l.ID,
			CampaignID:         campaignID,
			WebsiteURL:         l.WebsiteURL,
			IntroVideoPath:     campaign.IntroVideoPath,
			SecondaryVideoPath: secondary,
			Settings:           settings,
		}
	})
	added, depth := d.queue.EnqueueNew(jobs)
	if len(added) == 0 {
		return 0, nil
	}

	started := d.worker.Kick(d.runCtx)
	d.log.WithFields(logrus.Fields{
		"campaign_id": campaignID,
		"queued":      len(added),
		"depth":       depth,
		"started":     started,
	}).Info("generation enqueued")

	return len(added), nil
}

// Status combines stored record counts with jobs still waiting in memory.
// Queued leads are counted as pending even if an older record exists.
func (d *Dispatcher) Status(ctx context.Context, campaignID uuid.UUID) (*models.StatusCounts, error) {
	if _, err := d.store.GetCampaign(ctx, campaignID); err != nil {
		return nil, err
	}

	queued := d.queue.PendingLeadIDs(campaignID)
	counts, err := d.store.CountByStatus(ctx, campaignID, queued)
	if err != nil {
		return nil, err
	}

	sc := &models.StatusCounts{
		Completed:  counts[models.VideoStatusCompleted],
		Processing: counts[models.VideoStatusProcessing],
		Pending:    counts[models.VideoStatusPending] + len(queued),
		Failed:     counts[models.VideoStatusFailed],
	}
	sc.Total = sc.Completed + sc.Processing + sc.Pending + sc.Failed
	return sc, nil
}
