package bigquery

import (
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/txn-quality/internal/domain"
	"github.com/dvloznov/txn-quality/internal/repository"
)

// TransactionRecord is a row of the transactions table.
type TransactionRecord struct {
	TransactionID   string              `bigquery:"transaction_id"`   // REQUIRED
	CustomerID      bigquery.NullString `bigquery:"customer_id"`      // NULLABLE
	Amount          float64             `bigquery:"amount"`           // REQUIRED
	Currency        bigquery.NullString `bigquery:"currency"`         // NULLABLE
	Status          bigquery.NullString `bigquery:"status"`           // NULLABLE
	ProductCategory bigquery.NullString `bigquery:"product_category"` // NULLABLE

	OriginalTimestamp bigquery.NullString `bigquery:"original_timestamp"` // NULLABLE
	OriginalTimezone  bigquery.NullString `bigquery:"original_timezone"`  // NULLABLE

	ProcessedTimestamp bigquery.NullTimestamp `bigquery:"processed_timestamp"` // NULLABLE
	ProcessedTimezone  string                 `bigquery:"processed_timezone"`  // REQUIRED

	DataQualityFlags string `bigquery:"data_quality_flags"` // REQUIRED, JSON document

	RunID     bigquery.NullString `bigquery:"run_id"`     // NULLABLE
	CreatedAt time.Time           `bigquery:"created_at"` // REQUIRED
}

// IngestRunRecord is a row of the ingest_runs table.
type IngestRunRecord struct {
	RunID  string `bigquery:"run_id"` // REQUIRED
	Source string `bigquery:"source"` // REQUIRED
	Status string `bigquery:"status"` // REQUIRED

	StartedAt  time.Time              `bigquery:"started_at"`  // REQUIRED
	FinishedAt bigquery.NullTimestamp `bigquery:"finished_at"` // NULLABLE

	ErrorMessage bigquery.NullString `bigquery:"error_message"` // NULLABLE

	RecordsRead     int64 `bigquery:"records_read"`
	RecordsInserted int64 `bigquery:"records_inserted"`
	RecordsSkipped  int64 `bigquery:"records_skipped"`
	RecordsFlagged  int64 `bigquery:"records_flagged"`
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

// toRecord converts a repository row. Timestamps are truncated to the second
// to match the SQLite backend.
func toRecord(row *repository.TransactionRow) (*TransactionRecord, error) {
	flags, err := row.QualityFlags.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode flags: %w", err)
	}

	rec := &TransactionRecord{
		TransactionID:     row.TransactionID,
		CustomerID:        nullString(row.CustomerID),
		Amount:            row.Amount,
		Currency:          nullString(row.Currency),
		Status:            nullString(row.Status),
		ProductCategory:   nullString(row.ProductCategory),
		OriginalTimestamp: nullString(row.OriginalTimestamp),
		OriginalTimezone:  nullString(row.OriginalTimezone),
		ProcessedTimezone: row.ProcessedTimezone,
		DataQualityFlags:  string(flags),
		RunID:             nullString(row.RunID),
		CreatedAt:         row.CreatedAt.UTC().Truncate(time.Second),
	}
	if row.ProcessedTimestamp != nil {
		rec.ProcessedTimestamp = bigquery.NullTimestamp{
			Timestamp: row.ProcessedTimestamp.UTC().Truncate(time.Second),
			Valid:     true,
		}
	}
	return rec, nil
}

func fromRunRecord(rec *IngestRunRecord) *repository.RunRow {
	run := &repository.RunRow{
		RunID:        rec.RunID,
		Source:       rec.Source,
		Status:       rec.Status,
		StartedAt:    rec.StartedAt.UTC(),
		ErrorMessage: rec.ErrorMessage.StringVal,
		RunStats: repository.RunStats{
			RecordsRead:     int(rec.RecordsRead),
			RecordsInserted: int(rec.RecordsInserted),
			RecordsSkipped:  int(rec.RecordsSkipped),
			RecordsFlagged:  int(rec.RecordsFlagged),
		},
	}
	if rec.FinishedAt.Valid {
		t := rec.FinishedAt.Timestamp.UTC()
		run.FinishedAt = &t
	}
	return run
}

// decodeFlags parses a stored flag document, tolerating NULL.
func decodeFlags(doc bigquery.NullString) (domain.FlagSet, error) {
	if !doc.Valid {
		return domain.FlagSet{}, nil
	}
	return domain.ParseFlagSet(doc.StringVal)
}
