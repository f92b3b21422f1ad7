package services

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/bobarin/leadreel/internal/filtergraph"
)

// Output encoding shared by every rendered artifact.
const (
	videoCodec   = "libx264"
	audioCodec   = "aac"
	audioBitrate = "192k"
	pixelFormat  = "yuv420p"
	x264Preset   = "veryfast"
	x264CRF      = "23"

	ThumbnailWidth  = 460
	ThumbnailHeight = 250
)

// ---------------------------------------------------------------------------
// FFmpegService
// ---------------------------------------------------------------------------

type FFmpegService struct {
	ffmpegPath  string
	ffprobePath string
	log         *logrus.Entry
}

func NewFFmpegService(ffmpegPath, ffprobePath string, log *logrus.Entry) *FFmpegService {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegService{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		log:         log,
	}
}

// BackgroundJob turns a screenshot into a scrolling background clip.
type BackgroundJob struct {
	ScreenshotPath string
	OutputPath     string
	Graph          filtergraph.Graph
	Duration       float64
}

// OverlayJob composites the intro clip (and an optional secondary clip) over
// a background clip.
type OverlayJob struct {
	BackgroundPath string
	PrimaryPath    string
	SecondaryPath  string
	OutputPath     string
	Graph          filtergraph.Graph
	// IncludeAudio maps the primary clip's audio track when it has one.
	IncludeAudio bool
}

// SynthesizeBackground renders the scrolling background from a still image.
func (s *FFmpegService) SynthesizeBackground(ctx context.Context, job BackgroundJob) error {
	s.log.WithField("duration", job.Duration).Debugf("synthesizing background: %s", job.Graph)
	return s.run(ctx, "synthesize background", backgroundArgs(job))
}

// CompositeOverlay renders the final lead video.
func (s *FFmpegService) CompositeOverlay(ctx context.Context, job OverlayJob) error {
	s.log.WithField("audio", job.IncludeAudio).Debugf("compositing overlay: %s", job.Graph)
	return s.run(ctx, "composite overlay", overlayArgs(job))
}

// TrimPreview re-encodes the first seconds of in.
func (s *FFmpegService) TrimPreview(ctx context.Context, in, out string, seconds float64) error {
	return s.run(ctx, "trim preview", previewArgs(in, out, seconds))
}

// ExtractThumbnail grabs a single frame at offset seconds, cropped to fill
// ThumbnailWidth×ThumbnailHeight.
func (s *FFmpegService) ExtractThumbnail(ctx context.Context, in, out string, offset float64) error {
	return s.run(ctx, "extract thumbnail", thumbnailArgs(in, out, offset))
}

// run executes ffmpeg and returns its stderr verbatim on failure. Partial
// output files are left for the caller's workspace cleanup.
func (s *FFmpegService) run(ctx context.Context, op string, args []string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.ffmpegPath, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg %s cancelled: %w", op, ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("ffmpeg %s failed: %s", op, msg)
	}
	return nil
}

func backgroundArgs(job BackgroundJob) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-loop", "1",
		"-framerate", strconv.Itoa(filtergraph.FrameRate),
		"-i", job.ScreenshotPath,
		"-filter_complex", job.Graph.String(),
		"-map", "[" + job.Graph.Output + "]",
		"-t", seconds(job.Duration),
		"-r", strconv.Itoa(filtergraph.FrameRate),
		"-c:v", videoCodec,
		"-preset", x264Preset,
		"-crf", x264CRF,
		"-pix_fmt", pixelFormat,
		"-an",
		"-y",
		job.OutputPath,
	}
}

func overlayArgs(job OverlayJob) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", job.BackgroundPath, // 0
		"-i", job.PrimaryPath, // 1
	}
	if job.SecondaryPath != "" {
		args = append(args, "-i", job.SecondaryPath) // 2
	}

	args = append(args,
		"-filter_complex", job.Graph.String(),
		"-map", "["+job.Graph.Output+"]",
	)
	if job.IncludeAudio {
		args = append(args, "-map", "1:a:0?", "-c:a", audioCodec, "-b:a", audioBitrate)
	} else {
		args = append(args, "-an")
	}

	return append(args,
		"-r", strconv.Itoa(filtergraph.FrameRate),
		"-c:v", videoCodec,
		"-preset", x264Preset,
		"-crf", x264CRF,
		"-pix_fmt", pixelFormat,
		"-movflags", "+faststart",
		"-shortest",
		"-y",
		job.OutputPath,
	)
}

func previewArgs(in, out string, secs float64) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-i", in,
		"-t", seconds(secs),
		"-map", "0:v:0",
		"-map", "0:a:0?",
		"-c:v", videoCodec,
		"-preset", x264Preset,
		"-crf", x264CRF,
		"-pix_fmt", pixelFormat,
		"-c:a", audioCodec,
		"-b:a", audioBitrate,
		"-movflags", "+faststart",
		"-y",
		out,
	}
}

func thumbnailArgs(in, out string, offset float64) []string {
	vf := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d",
		ThumbnailWidth, ThumbnailHeight, ThumbnailWidth, ThumbnailHeight)
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", seconds(offset),
		"-i", in,
		"-frames:v", "1",
		"-vf", vf,
		"-q:v", "3",
		"-y",
		out,
	}
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
