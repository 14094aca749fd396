package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/dvloznov/txn-quality/internal/pipeline"
	"github.com/dvloznov/txn-quality/internal/reporting"
	"github.com/dvloznov/txn-quality/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBatch = "transaction_id,customer_id,amount,currency,timestamp,timezone,status,product_category\n" +
	"T1,C1,10.00,USD,2024-01-15 10:00:00,UTC,completed,books\n" +
	"T2,C1,10.00,USD,2024-01-15 10:00:05,UTC,completed,books\n" +
	"T3,C2,5.00,USD,garbage,UTC,completed,toys\n"

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("DATABASE_PATH", filepath.Join(dir, "txq.db"))
	t.Setenv("DEFAULT_TIMEZONE", "UTC")
	t.Setenv("LOG_LEVEL", "error")

	batch := filepath.Join(dir, "batch.csv")
	require.NoError(t, os.WriteFile(batch, []byte(sampleBatch), 0o644))
	return batch
}

func execute(t *testing.T, args ...string) ([]byte, error) {
	t.Helper()
	cmd := newRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.Bytes(), err
}

func TestCLI_IngestThenReport(t *testing.T) {
	batch := setupEnv(t)

	out, err := execute(t, "ingest", "--source", batch)
	require.NoError(t, err)
	var result pipeline.Result
	require.NoError(t, json.Unmarshal(out, &result))
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 3, result.Stats.RecordsRead)
	assert.Equal(t, 3, result.Stats.RecordsInserted)

	out, err = execute(t, "report", "quality")
	require.NoError(t, err)
	var quality reporting.QualityReport
	require.NoError(t, json.Unmarshal(out, &quality))
	assert.Equal(t, 3, quality.TotalRecords)
	assert.Equal(t, 1, quality.IssuesFound.InvalidDates)
	assert.Equal(t, 1, quality.IssuesFound.DuplicateTransactions)

	out, err = execute(t, "report", "daily", "--start", "2024-01-15", "--end", "2024-01-15")
	require.NoError(t, err)
	var daily reporting.DailySummary
	require.NoError(t, json.Unmarshal(out, &daily))
	require.Len(t, daily.Data, 1)
	assert.Equal(t, 20.0, daily.Data[0].TotalSales)
	assert.Equal(t, "UTC", daily.Timezone)

	out, err = execute(t, "report", "hourly", "--date", "2024-01-15", "--timezone", "Asia/Kolkata")
	require.NoError(t, err)
	var hourly reporting.HourlySummary
	require.NoError(t, json.Unmarshal(out, &hourly))
	require.Len(t, hourly.Data, 1)
	assert.Equal(t, "2024-01-15 15:00:00", hourly.Data[0].Hour)

	out, err = execute(t, "runs")
	require.NoError(t, err)
	var runs []repository.RunRow
	require.NoError(t, json.Unmarshal(out, &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, repository.RunStatusSuccess, runs[0].Status)
}

func TestCLI_IngestMissingFileRecordsFailedRun(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "ingest", "--source", filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)

	out, err := execute(t, "runs")
	require.NoError(t, err)
	var runs []repository.RunRow
	require.NoError(t, json.Unmarshal(out, &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, repository.RunStatusFailed, runs[0].Status)
	assert.NotEmpty(t, runs[0].ErrorMessage)
}

func TestCLI_ReportRejectsBadInput(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "report", "compare", "--period1", "2024-13", "--period2", "2024-01")
	assert.ErrorIs(t, err, reporting.ErrInvalidPeriod)

	_, err = execute(t, "report", "daily", "--start", "2024-01-15")
	assert.Error(t, err, "missing --end")
}

func TestCLI_Migrate(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, string(out), `"status": "ready"`)
}

func TestCLI_UploadNeedsBucket(t *testing.T) {
	batch := setupEnv(t)
	t.Setenv("GCS_BUCKET", "")

	_, err := execute(t, "upload", "--file", batch)
	assert.Error(t, err)
}
