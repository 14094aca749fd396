// Package repository defines the storage contract shared by the SQLite and
// BigQuery backends.
package repository

import (
	"context"
	"time"

	"github.com/dvloznov/txn-quality/internal/domain"
)

// Ingest run statuses.
const (
	RunStatusRunning = "RUNNING"
	RunStatusSuccess = "SUCCESS"
	RunStatusFailed  = "FAILED"
)

// TimestampLayout is the text form of every stored timestamp (UTC, second precision).
const TimestampLayout = "2006-01-02 15:04:05"

// MaxErrorMessageLen caps the error text stored on a failed run.
const MaxErrorMessageLen = 2000

// TransactionRepository provides transaction storage and the reads the reports need.
type TransactionRepository interface {
	// ReplaceTransactions deletes every stored transaction and inserts rows in
	// their place. Rows the store rejects are skipped; the count of rows
	// actually written is returned.
	ReplaceTransactions(ctx context.Context, rows []*TransactionRow) (int, error)

	// ListSales returns the amount and instant of every transaction with a processed timestamp.
	ListSales(ctx context.Context) ([]SaleRow, error)

	// ListQualityFlags returns the flag set of every stored transaction.
	ListQualityFlags(ctx context.Context) ([]domain.FlagSet, error)
}

// RunRepository records ingest runs.
type RunRepository interface {
	// StartRun inserts a new run with status=RUNNING and returns its id.
	StartRun(ctx context.Context, source string) (string, error)

	// MarkRunSucceeded sets status=SUCCESS, finished_at and the run counters.
	MarkRunSucceeded(ctx context.Context, runID string, stats RunStats) error

	// MarkRunFailed sets status=FAILED, finished_at and error_message. Failures
	// to record the status are logged, not returned.
	MarkRunFailed(ctx context.Context, runID string, runErr error)

	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]*RunRow, error)
}

// Repository is the full storage surface a backend implements.
type Repository interface {
	TransactionRepository
	RunRepository
	Close() error
}

// TransactionRow is one enriched transaction as stored.
type TransactionRow struct {
	TransactionID   string  `json:"transaction_id"`
	CustomerID      string  `json:"customer_id"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	Status          string  `json:"status"`
	ProductCategory string  `json:"product_category"`

	OriginalTimestamp string `json:"original_timestamp"`
	OriginalTimezone  string `json:"original_timezone,omitempty"` // stored as NULL when empty

	ProcessedTimestamp *time.Time `json:"processed_timestamp,omitempty"`
	ProcessedTimezone  string     `json:"processed_timezone"`

	QualityFlags domain.FlagSet `json:"data_quality_flags"`

	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
}

// SaleRow is the slice of a transaction the sales reports aggregate.
type SaleRow struct {
	ProcessedTimestamp time.Time
	Amount             float64
}

// RunStats are the counters recorded on a successful run.
type RunStats struct {
	RecordsRead     int `json:"records_read"`
	RecordsInserted int `json:"records_inserted"`
	RecordsSkipped  int `json:"records_skipped"`
	RecordsFlagged  int `json:"records_flagged"`
}

// RunRow is one ingest run.
type RunRow struct {
	RunID        string     `json:"run_id"`
	Source       string     `json:"source"`
	Status       string     `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	RunStats
}

// TruncateError returns the error text of err capped at MaxErrorMessageLen.
func TruncateError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > MaxErrorMessageLen {
		msg = msg[:MaxErrorMessageLen]
	}
	return msg
}
