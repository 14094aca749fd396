package main

import (
	"context"
	"flag"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/dvloznov/txn-quality/internal/app"
	"github.com/dvloznov/txn-quality/internal/config"
	"github.com/dvloznov/txn-quality/internal/logger"
	"github.com/dvloznov/txn-quality/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
)

// One-shot ingest for schedulers; exits non-zero when the batch fails.
func main() {
	source := flag.String("source", "", "batch file path or gs:// URI")
	timeout := flag.Duration("timeout", 10*time.Minute, "maximum run time")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		l := logger.New("info")
		l.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.New(cfg.LogLevel)

	if *source == "" {
		log.Fatal().Msg("Error: -source is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	services, err := app.Build(ctx, cfg, log, prometheus.NewRegistry())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Close()

	log.Info().Str("source", *source).Str("backend", cfg.StoreBackend).Msg("Starting ingestion")

	result, err := pipeline.IngestBatch(ctx, *source, services.Ingest)
	if err != nil {
		services.Close()
		log.Fatal().Err(err).Msg("Ingestion failed")
	}

	fmt.Printf("Ingestion completed: run %s, %d read, %d inserted, %d skipped, %d flagged\n",
		result.RunID,
		result.Stats.RecordsRead,
		result.Stats.RecordsInserted,
		result.Stats.RecordsSkipped,
		result.Stats.RecordsFlagged)
}
