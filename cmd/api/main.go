// Command api serves the financial document over HTTP and runs Google Drive
// sync jobs in the background.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/financial-control/internal/api"
	"github.com/dvloznov/financial-control/internal/cloudsync"
	"github.com/dvloznov/financial-control/internal/config"
	"github.com/dvloznov/financial-control/internal/datastore"
	"github.com/dvloznov/financial-control/internal/jobs"
	"github.com/dvloznov/financial-control/internal/jobs/inmemory"
	"github.com/dvloznov/financial-control/internal/logger"
	"github.com/dvloznov/financial-control/internal/metrics"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error: reading .env: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Load()
	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Directory holding the financial document (file backend)")
	flag.StringVar(&cfg.StorageBackend, "backend", cfg.StorageBackend, "Storage backend: file, gcs or memory")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	flag.Parse()

	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	backend, closeBackend, err := config.OpenBackend(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StorageBackend).Msg("Failed to open storage backend")
	}
	defer closeBackend()

	store, err := datastore.New(ctx, backend, datastore.WithLogger(log), datastore.WithMetrics(m))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open local store")
	}

	adapter := cloudsync.NewAdapter(cloudsync.WithLogger(log), cloudsync.WithMetrics(m))
	if creds, ok := cfg.DriveCredentials(); ok {
		adapter.SetCredentials(creds)
	} else {
		log.Warn().Msg("No Google Drive credentials configured - sync endpoints will be disabled")
	}

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore, inmemory.WithWorkers(1), inmemory.WithLogger(log))
	runner := jobs.NewSyncRunner(store, adapter, cfg.SyncTimeout, log)

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		Handler: api.NewRouter(api.Deps{
			Store:     store,
			Drive:     adapter,
			Publisher: jobQueue,
			Jobs:      jobStore,
			Metrics:   m,
			Log:       log,

			SyncTimeout: cfg.SyncTimeout,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Msg("Starting sync worker")
		return jobQueue.Start(gctx, runner.Handle)
	})

	g.Go(func() error {
		log.Info().Int("port", cfg.Port).Str("backend", cfg.StorageBackend).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		serverErr := server.Shutdown(shutdownCtx)
		if err := jobQueue.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error stopping job queue")
		}
		return serverErr
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server exited with error")
		closeBackend()
		os.Exit(1)
	}
	log.Info().Msg("Server exited")
}
