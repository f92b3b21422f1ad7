// Package pipeline turns one lead into a finished video: screenshot, scrolling
// background, overlay composite, preview and thumbnail. Each run works in a
// private workspace that is removed however the run ends.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/bobarin/leadreel/internal/filtergraph"
	"github.com/bobarin/leadreel/internal/models"
	"github.com/bobarin/leadreel/internal/services"
	"github.com/bobarin/leadreel/internal/style"
)

type Stage string

const (
	StageInit       Stage = "init"
	StageScreenshot Stage = "screenshot"
	StageBackground Stage = "background"
	StageOverlay    Stage = "overlay"
	StagePreview    Stage = "preview"
	StageThumbnail  Stage = "thumbnail"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// StageError records which stage stopped a run.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// FailedStage extracts the stage from err, or StageFailed if err did not
// come from a run.
func FailedStage(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return StageFailed
}

// Job is everything needed to render one lead.
type Job struct {
	LeadID             uuid.UUID
	CampaignID         uuid.UUID
	WebsiteURL         string
	IntroVideoPath     string
	SecondaryVideoPath string
	Settings           style.Settings
}

// Renderer captures a full-page screenshot of a URL.
type Renderer interface {
	Capture(ctx context.Context, url, outputPath string) (*services.CaptureResult, error)
}

// Compositor runs the media operations.
type Compositor interface {
	Probe(ctx context.Context, path string) (*services.MediaInfo, error)
	SynthesizeBackground(ctx context.Context, job services.BackgroundJob) error
	CompositeOverlay(ctx context.Context, job services.OverlayJob) error
	TrimPreview(ctx context.Context, in, out string, seconds float64) error
	ExtractThumbnail(ctx context.Context, in, out string, offset float64) error
}

// Files resolves workspace and artifact paths.
type Files interface {
	PrepareWorkspace(leadID uuid.UUID) (string, error)
	RemoveWorkspace(leadID uuid.UUID) error
	VideoPath(leadID uuid.UUID) string
	PreviewPath(leadID uuid.UUID) string
	ThumbnailPath(leadID uuid.UUID) string
	ScreenshotPath(leadID uuid.UUID) string
}

type Options struct {
	ScrollMode      filtergraph.ScrollMode
	ScrollStep      float64
	PreviewSeconds  float64
	ThumbnailOffset float64
}

func DefaultOptions() Options {
	return Options{
		ScrollMode:      filtergraph.ScrollStepped,
		ScrollStep:      3,
		PreviewSeconds:  8,
		ThumbnailOffset: 3,
	}
}

// Result holds the persisted artifact paths of a successful run.
type Result struct {
	VideoPath      string
	PreviewPath    string
	ThumbnailPath  string
	BackgroundPath string
	Duration       float64
}

// Artifacts maps artifact kinds to their paths.
func (r *Result) Artifacts() map[string]string {
	return map[string]string{
		models.ArtifactVideo:      r.VideoPath,
		models.ArtifactPreview:    r.PreviewPath,
		models.ArtifactThumbnail:  r.ThumbnailPath,
		models.ArtifactBackground: r.BackgroundPath,
	}
}

type Pipeline struct {
	compositor Compositor
	files      Files
	opts       Options
	log        *logrus.Entry
}

func New(compositor Compositor, files Files, opts Options, log *logrus.Entry) *Pipeline {
	return &Pipeline{compositor: compositor, files: files, opts: opts, log: log}
}

// Run renders job. Errors are *StageError.
func (p *Pipeline) Run(ctx context.Context, renderer Renderer, job Job) (*Result, error) {
	log := p.log.WithFields(logrus.Fields{"lead_id": job.LeadID, "campaign_id": job.CampaignID})

	ws, err := p.files.PrepareWorkspace(job.LeadID)
	if err != nil {
		return nil, &StageError{Stage: StageInit, Err: err}
	}
	defer func() {
		if err := p.files.RemoveWorkspace(job.LeadID); err != nil {
			log.WithError(err).Warn("failed to remove workspace")
		}
	}()

	res, err := p.run(ctx, log, renderer, job, ws)
	if err != nil {
		p.discardArtifacts(job.LeadID, log)
		log.WithField("stage", FailedStage(err)).WithError(err).Warn("pipeline failed")
		return nil, err
	}

	log.WithField("duration", res.Duration).Info("pipeline done")
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, log *logrus.Entry, renderer Renderer, job Job, ws string) (*Result, error) {
	layout := job.Settings.Layout()

	// Only full_screen has a phase the secondary clip can fill.
	secondaryPath := job.SecondaryVideoPath
	if secondaryPath != "" && !style.IsFullScreen(layout) {
		log.Debug("secondary clip ignored for bubble layout")
		secondaryPath = ""
	}

	intro, err := p.probeInputs(ctx, job.IntroVideoPath, secondaryPath)
	if err != nil {
		return nil, &StageError{Stage: StageInit, Err: err}
	}

	log = log.WithField("stage", StageScreenshot)
	shotPath := filepath.Join(ws, "screenshot.png")
	shot, err := renderer.Capture(ctx, job.WebsiteURL, shotPath)
	if err != nil {
		return nil, &StageError{Stage: StageScreenshot, Err: err}
	}
	log.WithField("height", shot.FullHeight).Debug("screenshot captured")

	scroll := p.scrollFor(job.Settings, intro.Duration)
	bgPath := filepath.Join(ws, "background.mp4")
	bgJob := services.BackgroundJob{
		ScreenshotPath: shotPath,
		OutputPath:     bgPath,
		Graph:          filtergraph.BackgroundGraph(scroll),
		Duration:       filtergraph.BackgroundDuration(layout, intro.Duration, scroll.Duration),
	}
	if err := p.compositor.SynthesizeBackground(ctx, bgJob); err != nil {
		return nil, &StageError{Stage: StageBackground, Err: err}
	}

	res := &Result{
		VideoPath:      p.files.VideoPath(job.LeadID),
		PreviewPath:    p.files.PreviewPath(job.LeadID),
		ThumbnailPath:  p.files.ThumbnailPath(job.LeadID),
		BackgroundPath: p.files.ScreenshotPath(job.LeadID),
		Duration:       intro.Duration,
	}

	overlay := services.OverlayJob{
		BackgroundPath: bgPath,
		PrimaryPath:    job.IntroVideoPath,
		SecondaryPath:  secondaryPath,
		OutputPath:     res.VideoPath,
		Graph: filtergraph.OverlayGraph(layout, filtergraph.OverlayInputs{
			IntroDuration: intro.Duration,
			HasSecondary:  secondaryPath != "",
		}),
		IncludeAudio: intro.HasAudio,
	}
	if err := p.compositor.CompositeOverlay(ctx, overlay); err != nil {
		return nil, &StageError{Stage: StageOverlay, Err: err}
	}

	if err := p.compositor.TrimPreview(ctx, res.VideoPath, res.PreviewPath, p.opts.PreviewSeconds); err != nil {
		return nil, &StageError{Stage: StagePreview, Err: err}
	}

	if err := p.compositor.ExtractThumbnail(ctx, res.VideoPath, res.ThumbnailPath, p.thumbnailOffset(intro.Duration)); err != nil {
		return nil, &StageError{Stage: StageThumbnail, Err: err}
	}
	if err := copyFile(shotPath, res.BackgroundPath); err != nil {
		return nil, &StageError{Stage: StageThumbnail, Err: err}
	}

	return res, nil
}

// probeInputs checks the intro (and secondary) clips concurrently and
// returns the intro's media info.
func (p *Pipeline) probeInputs(ctx context.Context, introPath, secondaryPath string) (*services.MediaInfo, error) {
	var intro *services.MediaInfo
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		info, err := p.compositor.Probe(gctx, introPath)
		if err != nil {
			return fmt.Errorf("intro video unreadable: %w", err)
		}
		intro = info
		return nil
	})
	if secondaryPath != "" {
		g.Go(func() error {
			if _, err := p.compositor.Probe(gctx, secondaryPath); err != nil {
				return fmt.Errorf("secondary video unreadable: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return intro, nil
}

func (p *Pipeline) scrollFor(s style.Settings, intro float64) filtergraph.Scroll {
	if p.opts.ScrollMode == filtergraph.ScrollSmooth {
		return filtergraph.Scroll{Mode: filtergraph.ScrollSmooth, Duration: s.ScrollDurationSeconds}
	}
	return filtergraph.Scroll{
		Mode:     filtergraph.ScrollStepped,
		Duration: filtergraph.SteppedScrollDuration(intro),
		Step:     p.opts.ScrollStep,
	}
}

// Very short intros would put the default offset past the last frame.
func (p *Pipeline) thumbnailOffset(duration float64) float64 {
	if duration <= 0 {
		return 0
	}
	return math.Min(p.opts.ThumbnailOffset, duration/2)
}

// discardArtifacts removes persisted outputs of a failed run so nothing is
// left that no record points to.
func (p *Pipeline) discardArtifacts(leadID uuid.UUID, log *logrus.Entry) {
	for _, path := range []string{
		p.files.VideoPath(leadID),
		p.files.PreviewPath(leadID),
		p.files.ThumbnailPath(leadID),
		p.files.ScreenshotPath(leadID),
	} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.WithError(err).WithField("path", path).Warn("failed to remove partial artifact")
		}
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}
