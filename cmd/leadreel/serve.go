package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bobarin/leadreel/internal/api"
	"github.com/bobarin/leadreel/internal/config"
	"github.com/bobarin/leadreel/internal/db"
	"github.com/bobarin/leadreel/internal/events"
	"github.com/bobarin/leadreel/internal/logging"
	"github.com/bobarin/leadreel/internal/pipeline"
	"github.com/bobarin/leadreel/internal/queue"
	"github.com/bobarin/leadreel/internal/services"
	"github.com/bobarin/leadreel/internal/sweeper"
	"github.com/bobarin/leadreel/internal/worker"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server, worker and retention sweeper",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (overrides API_PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if servePort != "" {
		cfg.APIPort = servePort
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	log := logging.Component(logger, "main")
	log.Info("starting leadreel")

	// runCtx outlives individual requests; cancelled on shutdown.
	runCtx, stop := context.WithCancel(context.Background())
	defer stop()

	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()
	log.Info("connected to database")

	if cfg.AutoMigrate {
		if err := database.EnsureSchema(runCtx); err != nil {
			return err
		}
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.RedisURL != "" {
		rp, err := events.NewRedisPublisher(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rp.Close()
		publisher = rp
		log.Info("publishing status events to redis")
	}

	stor, err := openStorage(runCtx, cfg, logger)
	if err != nil {
		return err
	}

	// Nothing is queued yet, so any processing record belongs to a job the
	// previous process never finished.
	if cfg.WorkerEnabled {
		n, err := worker.RecoverInterrupted(runCtx, database, stor, logging.Component(logger, "worker"))
		if err != nil {
			return err
		}
		if n > 0 {
			log.WithField("videos", n).Warn("recovered interrupted videos")
		}
	}

	ffmpeg := services.NewFFmpegService(cfg.FFmpegPath, cfg.FFprobePath, logging.Component(logger, "ffmpeg"))
	pipe := pipeline.New(ffmpeg, stor, pipelineOptions(cfg), logging.Component(logger, "pipeline"))

	q := queue.New()
	browserOpts := browserOptions(cfg)
	browserLog := logging.Component(logger, "browser")
	w := worker.New(worker.Config{
		Queue:    q,
		Store:    database,
		Pipeline: pipe,
		Sessions: func(ctx context.Context) (worker.Session, error) {
			b, err := services.NewBrowser(ctx, browserOpts, browserLog)
			if err != nil {
				return nil, err
			}
			return b, nil
		},
		Events:    publisher,
		Artifacts: stor,
		TTL:       cfg.VideoTTL,
		Log:       logging.Component(logger, "worker"),
	})

	var kicker worker.Kicker = w
	if !cfg.WorkerEnabled {
		kicker = noopKicker{}
		log.Warn("worker disabled, jobs will be queued but not processed")
	}
	dispatcher := worker.NewDispatcher(runCtx, database, q, kicker, logging.Component(logger, "dispatcher"))

	sweep := sweeper.New(database, stor, q, cfg.StorageCapBytes, logging.Component(logger, "sweeper"))
	if err := sweep.Start(runCtx, cfg.RetentionSchedule); err != nil {
		return err
	}
	defer sweep.Stop()

	handler := api.NewHandler(dispatcher, database, stor, q, w, publisher, logging.Component(logger, "api"))
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
		Log:                logging.Component(logger, "http"),
	})

	if cfg.BackendAPIKey != "" {
		log.Info("API key authentication enabled")
	} else {
		log.Warn("no BACKEND_API_KEY set, API is unprotected (dev mode)")
	}

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.APIPort).Info("API server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return err
	}

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}

	// Cancels the running job, which is still recorded as failed.
	stop()
	w.Wait()

	log.Info("server exited")
	return nil
}

type noopKicker struct{}

func (noopKicker) Kick(context.Context) bool { return false }
