package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/txn-quality/internal/logger"
	"github.com/dvloznov/txn-quality/internal/repository"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

// StartRunWithClient inserts a new ingest run with status=RUNNING and returns its id.
func StartRunWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, source string) (string, error) {
	runID := uuid.NewString()

	q := client.Query(fmt.Sprintf(`
		INSERT %s (
			run_id,
			source,
			status,
			started_at,
			records_read,
			records_inserted,
			records_skipped,
			records_flagged
		)
		VALUES (@run_id, @source, @status, @started_at, 0, 0, 0, 0)
	`, ds.table(ingestRunsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
		{Name: "source", Value: source},
		{Name: "status", Value: repository.RunStatusRunning},
		{Name: "started_at", Value: time.Now()},
	}

	if err := runQuery(ctx, q); err != nil {
		return "", fmt.Errorf("StartRun: %w", err)
	}
	return runID, nil
}

// MarkRunSucceededWithClient sets status=SUCCESS, finished_at and the run counters.
func MarkRunSucceededWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, runID string, stats repository.RunStats) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_at = @finished_at,
		    error_message = NULL,
		    records_read = @records_read,
		    records_inserted = @records_inserted,
		    records_skipped = @records_skipped,
		    records_flagged = @records_flagged
		WHERE run_id = @run_id
	`, ds.table(ingestRunsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: repository.RunStatusSuccess},
		{Name: "finished_at", Value: time.Now()},
		{Name: "records_read", Value: stats.RecordsRead},
		{Name: "records_inserted", Value: stats.RecordsInserted},
		{Name: "records_skipped", Value: stats.RecordsSkipped},
		{Name: "records_flagged", Value: stats.RecordsFlagged},
		{Name: "run_id", Value: runID},
	}

	if err := runQuery(ctx, q); err != nil {
		return fmt.Errorf("MarkRunSucceeded: %w", err)
	}
	return nil
}

// MarkRunFailedWithClient sets status=FAILED, finished_at and error_message.
func MarkRunFailedWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, runID string, runErr error) {
	log := logger.FromContext(ctx)

	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_at = @finished_at,
		    error_message = @error_message
		WHERE run_id = @run_id
	`, ds.table(ingestRunsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: repository.RunStatusFailed},
		{Name: "finished_at", Value: time.Now()},
		{Name: "error_message", Value: repository.TruncateError(runErr)},
		{Name: "run_id", Value: runID},
	}

	if err := runQuery(ctx, q); err != nil {
		log.Error().
			Err(err).
			Str("run_id", runID).
			Msg("MarkRunFailed: update")
	}
}

// ListRunsWithClient returns up to limit runs, newest first. A non-positive
// limit returns all runs.
func ListRunsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, limit int) ([]*repository.RunRow, error) {
	sql := fmt.Sprintf(`
		SELECT
			run_id,
			source,
			status,
			started_at,
			finished_at,
			error_message,
			records_read,
			records_inserted,
			records_skipped,
			records_flagged
		FROM %s
		ORDER BY started_at DESC
	`, ds.table(ingestRunsTable))

	var params []bigquery.QueryParameter
	if limit > 0 {
		sql += " LIMIT @limit"
		params = append(params, bigquery.QueryParameter{Name: "limit", Value: limit})
	}

	q := client.Query(sql)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListRuns: query read: %w", err)
	}

	var runs []*repository.RunRow
	for {
		var rec IngestRunRecord
		err := it.Next(&rec)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListRuns: iter next: %w", err)
		}
		runs = append(runs, fromRunRecord(&rec))
	}
	return runs, nil
}
