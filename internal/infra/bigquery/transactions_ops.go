package bigquery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/txn-quality/internal/domain"
	"github.com/dvloznov/txn-quality/internal/logger"
	"github.com/dvloznov/txn-quality/internal/repository"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// EnsureTablesWithClient creates the transactions and ingest_runs tables from
// the record structs when they are missing.
func EnsureTablesWithClient(ctx context.Context, client *bigquery.Client, ds Dataset) error {
	tables := []struct {
		name   string
		record interface{}
	}{
		{transactionsTable, TransactionRecord{}},
		{ingestRunsTable, IngestRunRecord{}},
	}

	for _, t := range tables {
		schema, err := bigquery.InferSchema(t.record)
		if err != nil {
			return fmt.Errorf("EnsureTables: infer %s schema: %w", t.name, err)
		}

		table := client.DatasetInProject(ds.ProjectID, ds.DatasetID).Table(t.name)
		err = table.Create(ctx, &bigquery.TableMetadata{Schema: schema})
		if err != nil && !isAlreadyExists(err) {
			return fmt.Errorf("EnsureTables: create %s: %w", t.name, err)
		}
	}
	return nil
}

func isAlreadyExists(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict
}

// ReplaceTransactionsWithClient overwrites the transactions table with rows
// through a single load job with WRITE_TRUNCATE, so the table is replaced
// atomically and never holds rows in the streaming buffer that a later replace
// would have to touch. Rows that cannot be encoded are logged and skipped.
func ReplaceTransactionsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, rows []*repository.TransactionRow) (int, error) {
	log := logger.FromContext(ctx)

	records := make([]*TransactionRecord, 0, len(rows))
	for i, row := range rows {
		rec, err := toRecord(row)
		if err != nil {
			log.Warn().Err(err).Int("position", i).Str("transaction_id", row.TransactionID).Msg("Skipping row due to error")
			continue
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		q := client.Query(fmt.Sprintf(`TRUNCATE TABLE %s`, ds.table(transactionsTable)))
		if err := runQuery(ctx, q); err != nil {
			return 0, fmt.Errorf("ReplaceTransactions: truncate: %w", err)
		}
		return 0, nil
	}

	payload, err := encodeLoadRows(records)
	if err != nil {
		return 0, fmt.Errorf("ReplaceTransactions: %w", err)
	}
	schema, err := bigquery.InferSchema(TransactionRecord{})
	if err != nil {
		return 0, fmt.Errorf("ReplaceTransactions: infer schema: %w", err)
	}

	source := bigquery.NewReaderSource(bytes.NewReader(payload))
	source.SourceFormat = bigquery.JSON
	source.Schema = schema

	loader := client.DatasetInProject(ds.ProjectID, ds.DatasetID).Table(transactionsTable).LoaderFrom(source)
	loader.WriteDisposition = bigquery.WriteTruncate
	loader.CreateDisposition = bigquery.CreateIfNeeded

	job, err := loader.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("ReplaceTransactions: starting load job: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("ReplaceTransactions: waiting for load job: %w", err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("ReplaceTransactions: load job: %w", err)
	}

	log.Info().Int("rows", len(records)).Msg("Loaded rows into BigQuery")
	return len(records), nil
}

// loadRow is the newline-delimited JSON form of a TransactionRecord. NULL
// columns are written as JSON null.
type loadRow struct {
	TransactionID      string  `json:"transaction_id"`
	CustomerID         *string `json:"customer_id"`
	Amount             float64 `json:"amount"`
	Currency           *string `json:"currency"`
	Status             *string `json:"status"`
	ProductCategory    *string `json:"product_category"`
	OriginalTimestamp  *string `json:"original_timestamp"`
	OriginalTimezone   *string `json:"original_timezone"`
	ProcessedTimestamp *string `json:"processed_timestamp"`
	ProcessedTimezone  string  `json:"processed_timezone"`
	DataQualityFlags   string  `json:"data_quality_flags"`
	RunID              *string `json:"run_id"`
	CreatedAt          string  `json:"created_at"`
}

func optional(s bigquery.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.StringVal
	return &v
}

// encodeLoadRows renders records as newline-delimited JSON for a load job.
func encodeLoadRows(records []*TransactionRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range records {
		row := loadRow{
			TransactionID:     rec.TransactionID,
			CustomerID:        optional(rec.CustomerID),
			Amount:            rec.Amount,
			Currency:          optional(rec.Currency),
			Status:            optional(rec.Status),
			ProductCategory:   optional(rec.ProductCategory),
			OriginalTimestamp: optional(rec.OriginalTimestamp),
			OriginalTimezone:  optional(rec.OriginalTimezone),
			ProcessedTimezone: rec.ProcessedTimezone,
			DataQualityFlags:  rec.DataQualityFlags,
			RunID:             optional(rec.RunID),
			CreatedAt:         rec.CreatedAt.UTC().Format(time.RFC3339),
		}
		if rec.ProcessedTimestamp.Valid {
			ts := rec.ProcessedTimestamp.Timestamp.UTC().Format(time.RFC3339)
			row.ProcessedTimestamp = &ts
		}
		if err := enc.Encode(row); err != nil {
			return nil, fmt.Errorf("encode row %s: %w", rec.TransactionID, err)
		}
	}
	return buf.Bytes(), nil
}

// ListSalesWithClient returns every transaction that has a processed timestamp.
func ListSalesWithClient(ctx context.Context, client *bigquery.Client, ds Dataset) ([]repository.SaleRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT processed_timestamp, amount
		FROM %s
		WHERE processed_timestamp IS NOT NULL
		ORDER BY processed_timestamp
	`, ds.table(transactionsTable)))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListSales: query read: %w", err)
	}

	var sales []repository.SaleRow
	for {
		var r struct {
			ProcessedTimestamp bigquery.NullTimestamp `bigquery:"processed_timestamp"`
			Amount             float64                `bigquery:"amount"`
		}
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListSales: iter next: %w", err)
		}
		if !r.ProcessedTimestamp.Valid {
			continue
		}
		sales = append(sales, repository.SaleRow{
			ProcessedTimestamp: r.ProcessedTimestamp.Timestamp.UTC(),
			Amount:             r.Amount,
		})
	}
	return sales, nil
}

// ListQualityFlagsWithClient returns the decoded flag document of every stored row.
func ListQualityFlagsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset) ([]domain.FlagSet, error) {
	q := client.Query(fmt.Sprintf(`SELECT data_quality_flags FROM %s`, ds.table(transactionsTable)))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListQualityFlags: query read: %w", err)
	}

	var out []domain.FlagSet
	for {
		var r struct {
			DataQualityFlags bigquery.NullString `bigquery:"data_quality_flags"`
		}
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListQualityFlags: iter next: %w", err)
		}
		flags, err := decodeFlags(r.DataQualityFlags)
		if err != nil {
			return nil, fmt.Errorf("ListQualityFlags: %w", err)
		}
		out = append(out, flags)
	}
	return out, nil
}
