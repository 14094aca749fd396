package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dvloznov/txn-quality/internal/domain"
	"github.com/dvloznov/txn-quality/internal/logger"
	"github.com/dvloznov/txn-quality/internal/repository"
)

const insertTransactionSQL = `
	INSERT INTO transactions (
		transaction_id,
		customer_id,
		amount,
		currency,
		original_timestamp,
		original_timezone,
		processed_timestamp,
		processed_timezone,
		status,
		product_category,
		data_quality_flags,
		run_id,
		created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// ReplaceTransactions deletes every stored transaction and inserts rows, in
// one database transaction. A row the database rejects is logged and skipped.
func (s *Store) ReplaceTransactions(ctx context.Context, rows []*repository.TransactionRow) (int, error) {
	log := logger.FromContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("ReplaceTransactions: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
		return 0, fmt.Errorf("ReplaceTransactions: delete existing rows: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertTransactionSQL)
	if err != nil {
		return 0, fmt.Errorf("ReplaceTransactions: prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i, row := range rows {
		flags, err := row.QualityFlags.MarshalJSON()
		if err == nil {
			_, err = stmt.ExecContext(ctx,
				row.TransactionID,
				row.CustomerID,
				row.Amount,
				row.Currency,
				row.OriginalTimestamp,
				nullString(row.OriginalTimezone),
				nullTime(row.ProcessedTimestamp),
				row.ProcessedTimezone,
				row.Status,
				row.ProductCategory,
				string(flags),
				row.RunID,
				formatTime(row.CreatedAt),
			)
		}
		if err != nil {
			log.Warn().
				Err(err).
				Int("position", i).
				Str("transaction_id", row.TransactionID).
				Msg("Skipping row due to error")
			continue
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("ReplaceTransactions: commit: %w", err)
	}

	log.Info().Int("rows", inserted).Msg("Inserted rows into the database")
	return inserted, nil
}

// ListSales returns every transaction that has a processed timestamp.
func (s *Store) ListSales(ctx context.Context) ([]repository.SaleRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT processed_timestamp, amount
		FROM transactions
		WHERE processed_timestamp IS NOT NULL
		ORDER BY processed_timestamp, id
	`)
	if err != nil {
		return nil, fmt.Errorf("ListSales: query: %w", err)
	}
	defer rows.Close()

	var sales []repository.SaleRow
	for rows.Next() {
		var (
			ts     string
			amount float64
		)
		if err := rows.Scan(&ts, &amount); err != nil {
			return nil, fmt.Errorf("ListSales: scan: %w", err)
		}
		at, err := parseTime(ts)
		if err != nil {
			return nil, fmt.Errorf("ListSales: %w", err)
		}
		sales = append(sales, repository.SaleRow{ProcessedTimestamp: at, Amount: amount})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListSales: iterate: %w", err)
	}
	return sales, nil
}

// ListQualityFlags returns the decoded flag document of every stored row.
func (s *Store) ListQualityFlags(ctx context.Context) ([]domain.FlagSet, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data_quality_flags FROM transactions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("ListQualityFlags: query: %w", err)
	}
	defer rows.Close()

	var out []domain.FlagSet
	for rows.Next() {
		var doc sql.NullString
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("ListQualityFlags: scan: %w", err)
		}
		flags, err := domain.ParseFlagSet(doc.String)
		if err != nil {
			return nil, fmt.Errorf("ListQualityFlags: %w", err)
		}
		out = append(out, flags)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListQualityFlags: iterate: %w", err)
	}
	return out, nil
}

// ListTransactions returns the stored rows in insertion order.
func (s *Store) ListTransactions(ctx context.Context) ([]*repository.TransactionRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT transaction_id, customer_id, amount, currency,
		       original_timestamp, original_timezone,
		       processed_timestamp, processed_timezone,
		       status, product_category, data_quality_flags,
		       run_id, created_at
		FROM transactions
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: query: %w", err)
	}
	defer rows.Close()

	var out []*repository.TransactionRow
	for rows.Next() {
		var (
			r                                           repository.TransactionRow
			customer, currency, originalTS, originalTZ  sql.NullString
			processedTS, status, category, flags, runID sql.NullString
			createdAt                                   string
		)
		if err := rows.Scan(
			&r.TransactionID, &customer, &r.Amount, &currency,
			&originalTS, &originalTZ,
			&processedTS, &r.ProcessedTimezone,
			&status, &category, &flags,
			&runID, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("ListTransactions: scan: %w", err)
		}

		r.CustomerID = customer.String
		r.Currency = currency.String
		r.OriginalTimestamp = originalTS.String
		r.OriginalTimezone = originalTZ.String
		r.Status = status.String
		r.ProductCategory = category.String
		r.RunID = runID.String

		if processedTS.Valid {
			at, err := parseTime(processedTS.String)
			if err != nil {
				return nil, fmt.Errorf("ListTransactions: %w", err)
			}
			r.ProcessedTimestamp = &at
		}
		if r.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("ListTransactions: %w", err)
		}
		if r.QualityFlags, err = domain.ParseFlagSet(flags.String); err != nil {
			return nil, fmt.Errorf("ListTransactions: %w", err)
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListTransactions: iterate: %w", err)
	}
	return out, nil
}
