package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dvloznov/txn-quality/internal/config"
	"github.com/dvloznov/txn-quality/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_SQLiteIngestAndReport(t *testing.T) {
	dir := t.TempDir()
	batch := filepath.Join(dir, "batch.csv")
	require.NoError(t, os.WriteFile(batch, []byte(
		"transaction_id,customer_id,amount,currency,timestamp,timezone,status,product_category\n"+
			"T1,C1,10.50,USD,2024-01-15 10:00:00,UTC,completed,books\n"+
			"T2,C2,4.50,USD,2024-01-15 11:00:00,,completed,toys\n"), 0o644))

	cfg := &config.Config{
		LogLevel:                  "info",
		DefaultTimezone:           "UTC",
		DuplicateThresholdSeconds: 10,
		StoreBackend:              config.BackendSQLite,
		DatabasePath:              filepath.Join(dir, "test.db"),
		JobQueueSize:              1,
	}

	svc, err := Build(context.Background(), cfg, zerolog.Nop(), prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	assert.Equal(t, 10*time.Second, svc.Ingest.Detector.Threshold())

	result, err := pipeline.IngestBatch(context.Background(), batch, svc.Ingest)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Stats.RecordsInserted)

	daily, err := svc.Reports.DailySummary(context.Background(), "2024-01-15", "2024-01-15", "UTC")
	require.NoError(t, err)
	require.Len(t, daily.Data, 1)
	assert.Equal(t, 15.0, daily.Data[0].TotalSales)

	report, err := svc.Reports.QualityReport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.TotalRecords)
	assert.Equal(t, 1, report.IssuesFound.MissingTimezones)
}

func TestBuild_UnknownBackend(t *testing.T) {
	cfg := &config.Config{StoreBackend: "postgres"}

	_, err := Build(context.Background(), cfg, zerolog.Nop(), prometheus.NewRegistry())
	assert.Error(t, err)
}
