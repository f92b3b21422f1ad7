package services

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/tidwall/gjson"
)

// MediaInfo is the subset of ffprobe output the pipeline needs.
type MediaInfo struct {
	Duration float64
	HasAudio bool
	Width    int
	Height   int
}

// Probe inspects a media file with ffprobe.
func (s *FFmpegService) Probe(ctx context.Context, path string) (*MediaInfo, error) {
	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.ffprobePath, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("ffprobe %s failed: %s", path, msg)
	}

	return parseProbe(stdout.Bytes())
}

// ProbeDuration returns the container duration in seconds.
func (s *FFmpegService) ProbeDuration(ctx context.Context, path string) (float64, error) {
	info, err := s.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	return info.Duration, nil
}

func parseProbe(out []byte) (*MediaInfo, error) {
	if !gjson.ValidBytes(out) {
		return nil, fmt.Errorf("ffprobe returned invalid JSON")
	}

	doc := gjson.ParseBytes(out)
	info := &MediaInfo{
		Duration: doc.Get("format.duration").Float(),
		HasAudio: doc.Get(`streams.#(codec_type=="audio")`).Exists(),
	}

	video := doc.Get(`streams.#(codec_type=="video")`)
	if video.Exists() {
		info.Width = int(video.Get("width").Int())
		info.Height = int(video.Get("height").Int())
		// Some containers only carry the duration on the stream.
		if info.Duration <= 0 {
			info.Duration = video.Get("duration").Float()
		}
	}

	if info.Duration <= 0 {
		return nil, fmt.Errorf("ffprobe reported no duration")
	}
	return info, nil
}
