package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/txn-quality/internal/domain"
	"github.com/dvloznov/txn-quality/internal/quality"
	"github.com/dvloznov/txn-quality/internal/repository"
)

// PipelineStep represents a single step in the ingestion pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Source   string
	RunID    string
	Raw      []domain.RawTransaction
	Enriched []domain.EnrichedTransaction
	Stats    repository.RunStats
}

// Step 1: StartRunStep records an ingest run (status=RUNNING).
type StartRunStep struct {
	Runs repository.RunRepository
}

func (s *StartRunStep) Execute(ctx context.Context, state *PipelineState) error {
	runID, err := s.Runs.StartRun(ctx, state.Source)
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	state.RunID = runID
	return nil
}

// Step 2: LoadStep fetches the batch file and decodes its rows.
type LoadStep struct {
	Fetcher SourceFetcher
}

func (s *LoadStep) Execute(ctx context.Context, state *PipelineState) error {
	data, err := s.Fetcher.Fetch(ctx, state.Source)
	if err != nil {
		return fmt.Errorf("fetch source: %w", err)
	}
	raws, err := ParseTransactionsCSV(data)
	if err != nil {
		return fmt.Errorf("decode source: %w: %w", ErrInvalidBatch, err)
	}
	state.Raw = raws
	state.Stats.RecordsRead = len(raws)
	return nil
}

// Step 3: EnrichStep normalizes timestamps and flags out-of-order records.
type EnrichStep struct {
	Enricher *Enricher
}

func (s *EnrichStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Enriched = s.Enricher.Enrich(state.Raw)
	return nil
}

// Step 4: PersistStep flags near-duplicates and replaces the stored batch.
type PersistStep struct {
	Transactions repository.TransactionRepository
	Detector     *quality.DuplicateDetector
	Now          func() time.Time
}

func (s *PersistStep) Execute(ctx context.Context, state *PipelineState) error {
	MarkDuplicates(state.Enriched, s.Detector)

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	rows, _ := BuildRows(ctx, state.Enriched, state.RunID, now())

	inserted, err := s.Transactions.ReplaceTransactions(ctx, rows)
	if err != nil {
		return fmt.Errorf("replace transactions: %w", err)
	}

	state.Stats.RecordsInserted = inserted
	state.Stats.RecordsSkipped = len(state.Enriched) - inserted
	state.Stats.RecordsFlagged = countFlagged(state.Enriched)
	return nil
}

// Step 5: MarkSuccessStep marks the ingest run as SUCCESS.
type MarkSuccessStep struct {
	Runs repository.RunRepository
}

func (s *MarkSuccessStep) Execute(ctx context.Context, state *PipelineState) error {
	if err := s.Runs.MarkRunSucceeded(ctx, state.RunID, state.Stats); err != nil {
		return fmt.Errorf("mark run succeeded: %w", err)
	}
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially, stopping at the first failure.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}
