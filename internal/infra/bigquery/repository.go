// Package bigquery is the warehouse storage backend. It keeps the same
// transactions and ingest_runs tables as the SQLite backend in a BigQuery dataset.
package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/txn-quality/internal/domain"
	"github.com/dvloznov/txn-quality/internal/repository"
)

const (
	transactionsTable = "transactions"
	ingestRunsTable   = "ingest_runs"
)

// Dataset locates the tables of one deployment.
type Dataset struct {
	ProjectID string
	DatasetID string
}

// table returns the fully qualified, backquoted name of a table for use in SQL.
func (d Dataset) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", d.ProjectID, d.DatasetID, name)
}

// BigQueryRepository is the BigQuery implementation of repository.Repository.
// It holds a shared client for all operations.
type BigQueryRepository struct {
	client  *bigquery.Client
	dataset Dataset
}

var _ repository.Repository = (*BigQueryRepository)(nil)

// NewBigQueryRepository creates a repository with its own client.
func NewBigQueryRepository(ctx context.Context, projectID, datasetID string) (*BigQueryRepository, error) {
	if projectID == "" {
		return nil, fmt.Errorf("NewBigQueryRepository: project id is required")
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryRepository: creating client: %w", err)
	}
	return NewBigQueryRepositoryWithClient(client, datasetID), nil
}

// NewBigQueryRepositoryWithClient wraps an existing client.
func NewBigQueryRepositoryWithClient(client *bigquery.Client, datasetID string) *BigQueryRepository {
	return &BigQueryRepository{
		client:  client,
		dataset: Dataset{ProjectID: client.Project(), DatasetID: datasetID},
	}
}

// Close closes the BigQuery client connection.
func (r *BigQueryRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// EnsureTables creates the dataset tables that do not exist yet.
func (r *BigQueryRepository) EnsureTables(ctx context.Context) error {
	return EnsureTablesWithClient(ctx, r.client, r.dataset)
}

// ReplaceTransactions delegates to ReplaceTransactionsWithClient.
func (r *BigQueryRepository) ReplaceTransactions(ctx context.Context, rows []*repository.TransactionRow) (int, error) {
	return ReplaceTransactionsWithClient(ctx, r.client, r.dataset, rows)
}

// ListSales delegates to ListSalesWithClient.
func (r *BigQueryRepository) ListSales(ctx context.Context) ([]repository.SaleRow, error) {
	return ListSalesWithClient(ctx, r.client, r.dataset)
}

// ListQualityFlags delegates to ListQualityFlagsWithClient.
func (r *BigQueryRepository) ListQualityFlags(ctx context.Context) ([]domain.FlagSet, error) {
	return ListQualityFlagsWithClient(ctx, r.client, r.dataset)
}

// StartRun delegates to StartRunWithClient.
func (r *BigQueryRepository) StartRun(ctx context.Context, source string) (string, error) {
	return StartRunWithClient(ctx, r.client, r.dataset, source)
}

// MarkRunSucceeded delegates to MarkRunSucceededWithClient.
func (r *BigQueryRepository) MarkRunSucceeded(ctx context.Context, runID string, stats repository.RunStats) error {
	return MarkRunSucceededWithClient(ctx, r.client, r.dataset, runID, stats)
}

// MarkRunFailed delegates to MarkRunFailedWithClient.
func (r *BigQueryRepository) MarkRunFailed(ctx context.Context, runID string, runErr error) {
	MarkRunFailedWithClient(ctx, r.client, r.dataset, runID, runErr)
}

// ListRuns delegates to ListRunsWithClient.
func (r *BigQueryRepository) ListRuns(ctx context.Context, limit int) ([]*repository.RunRow, error) {
	return ListRunsWithClient(ctx, r.client, r.dataset, limit)
}

// runQuery runs a DML statement and waits for it to finish.
func runQuery(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("run query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
