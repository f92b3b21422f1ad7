package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/bobarin/leadreel/internal/config"
	"github.com/bobarin/leadreel/internal/db"
	"github.com/bobarin/leadreel/internal/logging"
	"github.com/bobarin/leadreel/internal/queue"
	"github.com/bobarin/leadreel/internal/sweeper"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one retention pass and exit",
	Long:  "Deletes expired videos and, when the data dir is over STORAGE_CAP_MB, the oldest completed ones.",
	RunE:  runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	ctx := cmd.Context()

	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	stor, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// No worker runs in this process. Records re-run by a server since the
	// listing are still skipped by the conditional delete.
	guard := queue.New()
	report, err := sweeper.New(database, stor, guard, cfg.StorageCapBytes, logging.Component(logger, "sweeper")).RunOnce(ctx)
	if err != nil {
		return err
	}
	return json.NewEncoder(cmd.OutOrStdout()).Encode(report)
}
