package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dvloznov/txn-quality/internal/logger"
	"github.com/dvloznov/txn-quality/internal/repository"
	"github.com/google/uuid"
)

// StartRun inserts a new ingest run with status=RUNNING and returns its id.
func (s *Store) StartRun(ctx context.Context, source string) (string, error) {
	runID := uuid.NewString()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingest_runs (run_id, source, status, started_at)
		VALUES (?, ?, ?, ?)
	`, runID, source, repository.RunStatusRunning, formatTime(s.now()))
	if err != nil {
		return "", fmt.Errorf("StartRun: insert: %w", err)
	}
	return runID, nil
}

// MarkRunSucceeded sets status=SUCCESS, finished_at and the run counters.
func (s *Store) MarkRunSucceeded(ctx context.Context, runID string, stats repository.RunStats) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE ingest_runs
		SET status = ?,
		    finished_at = ?,
		    error_message = NULL,
		    records_read = ?,
		    records_inserted = ?,
		    records_skipped = ?,
		    records_flagged = ?
		WHERE run_id = ?
	`,
		repository.RunStatusSuccess,
		formatTime(s.now()),
		stats.RecordsRead,
		stats.RecordsInserted,
		stats.RecordsSkipped,
		stats.RecordsFlagged,
		runID,
	)
	if err != nil {
		return fmt.Errorf("MarkRunSucceeded: update: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("MarkRunSucceeded: run %s not found", runID)
	}
	return nil
}

// MarkRunFailed sets status=FAILED, finished_at and error_message.
func (s *Store) MarkRunFailed(ctx context.Context, runID string, runErr error) {
	log := logger.FromContext(ctx)

	_, err := s.db.ExecContext(ctx, `
		UPDATE ingest_runs
		SET status = ?,
		    finished_at = ?,
		    error_message = ?
		WHERE run_id = ?
	`, repository.RunStatusFailed, formatTime(s.now()), repository.TruncateError(runErr), runID)
	if err != nil {
		log.Error().
			Err(err).
			Str("run_id", runID).
			Msg("MarkRunFailed: update")
	}
}

// ListRuns returns up to limit runs, newest first. A non-positive limit returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*repository.RunRow, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, source, status, started_at, finished_at, error_message,
		       records_read, records_inserted, records_skipped, records_flagged
		FROM ingest_runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("ListRuns: query: %w", err)
	}
	defer rows.Close()

	var runs []*repository.RunRow
	for rows.Next() {
		var (
			r          repository.RunRow
			startedAt  string
			finishedAt sql.NullString
			errMsg     sql.NullString
		)
		if err := rows.Scan(
			&r.RunID, &r.Source, &r.Status, &startedAt, &finishedAt, &errMsg,
			&r.RecordsRead, &r.RecordsInserted, &r.RecordsSkipped, &r.RecordsFlagged,
		); err != nil {
			return nil, fmt.Errorf("ListRuns: scan: %w", err)
		}

		if r.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, fmt.Errorf("ListRuns: %w", err)
		}
		if finishedAt.Valid {
			t, err := parseTime(finishedAt.String)
			if err != nil {
				return nil, fmt.Errorf("ListRuns: %w", err)
			}
			r.FinishedAt = &t
		}
		r.ErrorMessage = errMsg.String
		runs = append(runs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListRuns: iterate: %w", err)
	}
	return runs, nil
}
