package pipeline_test

import (
	"context"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/dvloznov/txn-quality/internal/domain"
	"github.com/dvloznov/txn-quality/internal/repository"
)

// memoryStore is an in-memory pipeline.Store.
type memoryStore struct {
	mu sync.Mutex

	rows   []*repository.TransactionRow
	runs   map[string]*repository.RunRow
	nextID int

	StartRunErr error
	ReplaceErr  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{runs: make(map[string]*repository.RunRow)}
}

func (m *memoryStore) ReplaceTransactions(ctx context.Context, rows []*repository.TransactionRow) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReplaceErr != nil {
		return 0, m.ReplaceErr
	}
	m.rows = append([]*repository.TransactionRow(nil), rows...)
	return len(rows), nil
}

func (m *memoryStore) ListSales(ctx context.Context) ([]repository.SaleRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []repository.SaleRow
	for _, r := range m.rows {
		if r.ProcessedTimestamp != nil {
			out = append(out, repository.SaleRow{ProcessedTimestamp: *r.ProcessedTimestamp, Amount: r.Amount})
		}
	}
	return out, nil
}

func (m *memoryStore) ListQualityFlags(ctx context.Context) ([]domain.FlagSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.FlagSet, len(m.rows))
	for i, r := range m.rows {
		out[i] = r.QualityFlags
	}
	return out, nil
}

func (m *memoryStore) StartRun(ctx context.Context, source string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StartRunErr != nil {
		return "", m.StartRunErr
	}
	m.nextID++
	id := fmt.Sprintf("run-%d", m.nextID)
	m.runs[id] = &repository.RunRow{RunID: id, Source: source, Status: repository.RunStatusRunning, StartedAt: time.Now()}
	return id, nil
}

func (m *memoryStore) MarkRunSucceeded(ctx context.Context, runID string, stats repository.RunStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("run %s not found", runID)
	}
	run.Status = repository.RunStatusSuccess
	run.RunStats = stats
	return nil
}

func (m *memoryStore) MarkRunFailed(ctx context.Context, runID string, runErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run, ok := m.runs[runID]; ok {
		run.Status = repository.RunStatusFailed
		run.ErrorMessage = repository.TruncateError(runErr)
	}
}

func (m *memoryStore) ListRuns(ctx context.Context, limit int) ([]*repository.RunRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*repository.RunRow
	for _, r := range m.runs {
		out = append(out, r)
	}
	return out, nil
}

// mapFetcher serves batch files from memory.
type mapFetcher map[string]string

func (f mapFetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	data, ok := f[source]
	if !ok {
		return nil, fmt.Errorf("no such source %s: %w", source, fs.ErrNotExist)
	}
	return []byte(data), nil
}

// countingRecorder tallies metrics observations.
type countingRecorder struct {
	records map[string]int
	flags   map[domain.Flag]int
	batches map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		records: make(map[string]int),
		flags:   make(map[domain.Flag]int),
		batches: make(map[string]int),
	}
}

func (c *countingRecorder) ObserveRecords(outcome string, n int)       { c.records[outcome] += n }
func (c *countingRecorder) ObserveFlag(flag domain.Flag, n int)        { c.flags[flag] += n }
func (c *countingRecorder) ObserveBatch(status string, _ time.Duration) { c.batches[status]++ }
