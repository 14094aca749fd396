package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/dvloznov/txn-quality/internal/api/handlers"
	"github.com/dvloznov/txn-quality/internal/api/middleware"
	"github.com/dvloznov/txn-quality/internal/app"
	"github.com/dvloznov/txn-quality/internal/config"
	"github.com/dvloznov/txn-quality/internal/jobs/inmemory"
	"github.com/dvloznov/txn-quality/internal/logger"
	"github.com/dvloznov/txn-quality/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := logger.New("info")
		l.Fatal().Err(err).Msg("Failed to load configuration")
	}

	addr := flag.String("addr", cfg.HTTPAddr, "HTTP listen address (or set HTTP_ADDR env)")
	flag.Parse()

	log := logger.New(cfg.LogLevel)
	ctx := logger.WithContext(context.Background(), log)

	services, err := app.Build(ctx, cfg, log, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Close()

	// Ingest runs replace the whole table, so they run one at a time.
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.JobQueueSize, 1, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	log.Info().Msg("Starting job worker")
	if err := jobQueue.Start(workerCtx, pipeline.JobHandler(services.Ingest)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job worker")
	}

	mux := handlers.NewRouter(handlers.Router{
		Sales:   handlers.NewSalesHandler(services.Reports, cfg.DefaultTimezone),
		Ingest:  handlers.NewIngestHandler(jobQueue, cfg.IngestDir),
		Jobs:    handlers.NewJobsHandler(jobStore),
		Runs:    handlers.NewRunsHandler(services.Repo),
		Metrics: promhttp.Handler(),
	})

	server := &http.Server{
		Addr:         *addr,
		Handler:      middleware.Chain(mux, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", *addr).
			Str("backend", cfg.StoreBackend).
			Str("default_timezone", cfg.DefaultTimezone).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let an in-flight ingest finish before cancelling the worker context.
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
