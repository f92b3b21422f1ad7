package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bobarin/leadreel/internal/config"
	"github.com/bobarin/leadreel/internal/logging"
	"github.com/bobarin/leadreel/internal/pipeline"
	"github.com/bobarin/leadreel/internal/services"
	"github.com/bobarin/leadreel/internal/style"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render one video for a URL without touching the database",
	Long:  "Runs the full pipeline (screenshot, background, overlay, preview, thumbnail) for a single website and intro clip, writing the artifacts under DATA_DIR.",
	RunE:  runRender,
}

var (
	renderURL          string
	renderIntro        string
	renderSecondary    string
	renderStyle        string
	renderPosition     string
	renderShape        string
	renderDisplayDelay float64
	renderTransition   float64
	renderScroll       float64
	renderLeadID       string
)

func init() {
	renderCmd.Flags().StringVarP(&renderURL, "url", "u", "", "Website to capture (required)")
	renderCmd.Flags().StringVarP(&renderIntro, "intro", "i", "", "Path to the intro video (required)")
	renderCmd.Flags().StringVar(&renderSecondary, "secondary", "", "Optional clip shown full-frame after the transition (full_screen only)")
	renderCmd.Flags().StringVar(&renderStyle, "style", string(style.DefaultStyle), "small_bubble, big_bubble or full_screen")
	renderCmd.Flags().StringVar(&renderPosition, "position", string(style.DefaultPosition), "bottom_left, bottom_right, top_left or top_right")
	renderCmd.Flags().StringVar(&renderShape, "shape", string(style.DefaultShape), "circle or square")
	renderCmd.Flags().Float64Var(&renderDisplayDelay, "display-delay", 0, "Seconds before the bubble appears (full_screen only, default depends on style)")
	renderCmd.Flags().Float64Var(&renderTransition, "transition", style.DefaultFullscreenTransition, "Seconds before switching to full frame (full_screen only)")
	renderCmd.Flags().Float64Var(&renderScroll, "scroll", style.DefaultScrollDuration, "Scroll duration in smooth mode")
	renderCmd.Flags().StringVar(&renderLeadID, "lead-id", "", "Lead ID used to name the artifacts (default: random)")
	_ = renderCmd.MarkFlagRequired("url")
	_ = renderCmd.MarkFlagRequired("intro")

	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, _ []string) error {
	cfg := config.Read()
	if err := cfg.ValidateRendering(); err != nil {
		return err
	}

	if err := services.ValidatePageURL(renderURL); err != nil {
		return err
	}

	leadID := uuid.New()
	if renderLeadID != "" {
		id, err := uuid.Parse(renderLeadID)
		if err != nil {
			return fmt.Errorf("invalid --lead-id: %w", err)
		}
		leadID = id
	}

	settings, err := renderSettings(cmd)
	if err != nil {
		return err
	}

	logger := logging.New(cfg.LogLevel, "text")
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	stor, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}

	ffmpeg := services.NewFFmpegService(cfg.FFmpegPath, cfg.FFprobePath, logging.Component(logger, "ffmpeg"))
	pipe := pipeline.New(ffmpeg, stor, pipelineOptions(cfg), logging.Component(logger, "pipeline"))

	browser, err := services.NewBrowser(ctx, browserOptions(cfg), logging.Component(logger, "browser"))
	if err != nil {
		return err
	}
	defer browser.Close()

	res, err := pipe.Run(ctx, browser, pipeline.Job{
		LeadID:             leadID,
		WebsiteURL:         renderURL,
		IntroVideoPath:     renderIntro,
		SecondaryVideoPath: renderSecondary,
		Settings:           settings,
	})
	if err != nil {
		return err
	}

	if err := stor.Publish(ctx, res.Artifacts()); err != nil {
		logger.WithError(err).Warn("failed to mirror artifacts")
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]interface{}{
		"lead_id":    leadID,
		"video":      res.VideoPath,
		"preview":    res.PreviewPath,
		"thumbnail":  res.ThumbnailPath,
		"background": res.BackgroundPath,
		"duration":   res.Duration,
	})
}

// renderSettings builds style settings from the flags. The display delay is
// only passed when set so the style's default applies otherwise.
func renderSettings(cmd *cobra.Command) (style.Settings, error) {
	raw := map[string]interface{}{
		style.KeyStyle:                renderStyle,
		style.KeyPosition:             renderPosition,
		style.KeyShape:                renderShape,
		style.KeyFullscreenTransition: renderTransition,
		style.KeyScrollDuration:       renderScroll,
	}
	if cmd.Flags().Changed("display-delay") {
		raw[style.KeyDisplayDelay] = renderDisplayDelay
	}
	return style.Parse(raw)
}
