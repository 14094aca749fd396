// Package pipeline loads transaction batches, enriches them with normalized
// timestamps and quality flags, and writes them to the store.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/txn-quality/internal/logger"
	"github.com/dvloznov/txn-quality/internal/quality"
	"github.com/dvloznov/txn-quality/internal/repository"
)

// Deps holds the collaborators of an ingest run.
type Deps struct {
	Store    Store
	Fetcher  SourceFetcher
	Enricher *Enricher
	Detector *quality.DuplicateDetector
	Metrics  Recorder         // optional
	Now      func() time.Time // optional, defaults to time.Now
}

// Result summarises a finished ingest run.
type Result struct {
	RunID string              `json:"run_id"`
	Stats repository.RunStats `json:"stats"`
}

// NewIngestPipeline creates the standard five-step ingest pipeline.
func NewIngestPipeline(deps Deps) *Pipeline {
	return NewPipeline(
		&StartRunStep{Runs: deps.Store},
		&LoadStep{Fetcher: deps.Fetcher},
		&EnrichStep{Enricher: deps.Enricher},
		&PersistStep{Transactions: deps.Store, Detector: deps.Detector, Now: deps.Now},
		&MarkSuccessStep{Runs: deps.Store},
	)
}

// IngestBatch loads the batch file at source (a local path or gs:// URI),
// enriches it and replaces the stored transactions with it. A failure after
// the run was recorded marks the run FAILED.
func IngestBatch(ctx context.Context, source string, deps Deps) (*Result, error) {
	log := logger.FromContext(ctx).With().Str("source", source).Logger()
	ctx = logger.WithContext(ctx, log)

	if deps.Detector == nil {
		deps.Detector = quality.NewDuplicateDetector(quality.DefaultDuplicateThreshold)
	}
	recorder := deps.Metrics
	if recorder == nil {
		recorder = nopRecorder{}
	}

	started := time.Now()
	state := &PipelineState{Source: source}

	if err := NewIngestPipeline(deps).Execute(ctx, state); err != nil {
		if state.RunID != "" {
			deps.Store.MarkRunFailed(ctx, state.RunID, err)
		}
		recorder.ObserveBatch(BatchFailed, time.Since(started))
		log.Error().Err(err).Str("run_id", state.RunID).Msg("Ingest run failed")
		return nil, fmt.Errorf("IngestBatch: %w", err)
	}

	recorder.ObserveRecords(OutcomeRead, state.Stats.RecordsRead)
	recorder.ObserveRecords(OutcomeInserted, state.Stats.RecordsInserted)
	recorder.ObserveRecords(OutcomeSkipped, state.Stats.RecordsSkipped)
	for flag, n := range CountFlags(state.Enriched) {
		recorder.ObserveFlag(flag, n)
	}
	recorder.ObserveBatch(BatchSucceeded, time.Since(started))

	log.Info().
		Str("run_id", state.RunID).
		Int("read", state.Stats.RecordsRead).
		Int("inserted", state.Stats.RecordsInserted).
		Int("skipped", state.Stats.RecordsSkipped).
		Int("flagged", state.Stats.RecordsFlagged).
		Msg("Ingest run completed")

	return &Result{RunID: state.RunID, Stats: state.Stats}, nil
}
