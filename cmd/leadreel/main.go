// Command leadreel renders personalized lead videos: a scrolling capture of
// the lead's website with the campaign's intro clip composited on top.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bobarin/leadreel/internal/config"
	"github.com/bobarin/leadreel/internal/pipeline"
	"github.com/bobarin/leadreel/internal/services"
	"github.com/bobarin/leadreel/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:           "leadreel",
	Short:         "Personalized lead video generator",
	Long:          "leadreel captures each lead's website, turns it into a scrolling background and composites the campaign's intro clip over it.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func pipelineOptions(cfg *config.Config) pipeline.Options {
	return pipeline.Options{
		ScrollMode:      cfg.ScrollMode,
		ScrollStep:      cfg.ScrollStepSeconds,
		PreviewSeconds:  cfg.PreviewSeconds,
		ThumbnailOffset: cfg.ThumbnailOffsetSeconds,
	}
}

func browserOptions(cfg *config.Config) services.BrowserOptions {
	opts := services.DefaultBrowserOptions()
	opts.ExecPath = cfg.ChromePath
	return opts
}

// openStorage creates the data dir layout, with the S3 mirror when one is
// configured.
func openStorage(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*storage.Storage, error) {
	var mirror storage.Mirror
	if cfg.MirrorEnabled() {
		m, err := storage.NewS3Mirror(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		mirror = m
		log.WithField("bucket", cfg.S3.Bucket).Info("S3 mirror enabled")
	}
	return storage.New(cfg.DataDir, mirror, log.WithField("component", "storage"))
}
