package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/dvloznov/txn-quality/internal/api/handlers"
	"github.com/dvloznov/txn-quality/internal/api/middleware"
	"github.com/dvloznov/txn-quality/internal/domain"
	"github.com/dvloznov/txn-quality/internal/jobs"
	"github.com/dvloznov/txn-quality/internal/jobs/inmemory"
	"github.com/dvloznov/txn-quality/internal/logger"
	"github.com/dvloznov/txn-quality/internal/reporting"
	"github.com/dvloznov/txn-quality/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	sales []repository.SaleRow
	flags []domain.FlagSet
	runs  []*repository.RunRow
	err   error
}

func (f *fakeRepo) ReplaceTransactions(context.Context, []*repository.TransactionRow) (int, error) {
	return 0, nil
}
func (f *fakeRepo) ListSales(context.Context) ([]repository.SaleRow, error) { return f.sales, f.err }
func (f *fakeRepo) ListQualityFlags(context.Context) ([]domain.FlagSet, error) {
	return f.flags, f.err
}
func (f *fakeRepo) StartRun(context.Context, string) (string, error) { return "", nil }
func (f *fakeRepo) MarkRunSucceeded(context.Context, string, repository.RunStats) error {
	return nil
}
func (f *fakeRepo) MarkRunFailed(context.Context, string, error) {}
func (f *fakeRepo) ListRuns(_ context.Context, limit int) ([]*repository.RunRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

type testServer struct {
	handler  http.Handler
	store    *inmemory.Store
	queue    *inmemory.Queue
	logs     *bytes.Buffer
	inputDir string
}

func newTestServer(t *testing.T, repo *fakeRepo) *testServer {
	t.Helper()
	store := inmemory.NewStore()
	queue := inmemory.NewQueue(4, 1, store)
	t.Cleanup(func() { _ = queue.Close() })

	inputDir := t.TempDir()
	reg := prometheus.NewRegistry()
	mux := handlers.NewRouter(handlers.Router{
		Sales:   handlers.NewSalesHandler(reporting.NewService(repo, 10*time.Second), "UTC"),
		Ingest:  handlers.NewIngestHandler(queue, inputDir),
		Jobs:    handlers.NewJobsHandler(store),
		Runs:    handlers.NewRunsHandler(repo),
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	logs := &bytes.Buffer{}
	return &testServer{
		handler:  middleware.Chain(mux, logger.NewWithWriter(logs)),
		store:    store,
		queue:    queue,
		logs:     logs,
		inputDir: inputDir,
	}
}

func (s *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func saleAt(ts string, amount float64) repository.SaleRow {
	at, _ := time.Parse(time.RFC3339, ts)
	return repository.SaleRow{ProcessedTimestamp: at, Amount: amount}
}

func TestDailySales(t *testing.T) {
	srv := newTestServer(t, &fakeRepo{sales: []repository.SaleRow{
		saleAt("2024-01-15T10:00:00Z", 100),
		saleAt("2024-01-16T03:00:00Z", 50),
	}})

	rec := srv.do(t, http.MethodGet, "/api/sales/daily?start_date=2024-01-15&end_date=2024-01-16&timezone=America/New_York", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body reporting.DailySummary
	decode(t, rec, &body)
	assert.Equal(t, "America/New_York", body.Timezone)
	assert.Equal(t, "2024-01-15 to 2024-01-16", body.Period)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "2024-01-15", body.Data[0].Date)
	assert.Equal(t, 150.0, body.Data[0].TotalSales)
}

func TestDailySales_DefaultTimezone(t *testing.T) {
	srv := newTestServer(t, &fakeRepo{})

	rec := srv.do(t, http.MethodGet, "/api/sales/daily?start_date=2024-01-15&end_date=2024-01-16", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	decode(t, rec, &body)
	assert.Equal(t, "UTC", body["timezone"])
	assert.Equal(t, []interface{}{}, body["data"])
}

func TestSalesEndpoints_BadRequests(t *testing.T) {
	srv := newTestServer(t, &fakeRepo{})

	tests := []struct {
		name      string
		target    string
		wantError string
	}{
		{name: "daily missing params", target: "/api/sales/daily?start_date=2024-01-15", wantError: "Missing query parameters"},
		{name: "daily bad date", target: "/api/sales/daily?start_date=01/15/2024&end_date=2024-01-16", wantError: "Invalid date format"},
		{name: "daily reversed range", target: "/api/sales/daily?start_date=2024-01-16&end_date=2024-01-15", wantError: "Invalid date range"},
		{name: "daily bad timezone", target: "/api/sales/daily?start_date=2024-01-15&end_date=2024-01-16&timezone=Mars/Base", wantError: "Invalid timezone"},
		{name: "hourly missing date", target: "/api/sales/hourly", wantError: "Missing query parameters"},
		{name: "hourly bad date", target: "/api/sales/hourly?date=today", wantError: "Invalid date format"},
		{name: "compare missing", target: "/api/sales/compare?period1=2024-01", wantError: "Missing query parameters"},
		{name: "compare bad period", target: "/api/sales/compare?period1=2024-01&period2=2024-13", wantError: "Invalid period format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(t, http.MethodGet, tt.target, "")
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			var body middleware.ErrorResponse
			decode(t, rec, &body)
			assert.Equal(t, tt.wantError, body.Error)
			assert.Equal(t, http.StatusBadRequest, body.Code)
			assert.NotEmpty(t, body.Message)
			assert.NotEmpty(t, body.Timestamp)
		})
	}
}

func TestHourlySales(t *testing.T) {
	srv := newTestServer(t, &fakeRepo{sales: []repository.SaleRow{
		saleAt("2024-01-15T14:05:00Z", 10),
		saleAt("2024-01-15T14:45:00Z", 5),
	}})

	rec := srv.do(t, http.MethodGet, "/api/sales/hourly?date=2024-01-15", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body reporting.HourlySummary
	decode(t, rec, &body)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "2024-01-15 14:00:00", body.Data[0].Hour)
	assert.Equal(t, 2, body.Data[0].TransactionCount)
}

func TestComparePeriods(t *testing.T) {
	srv := newTestServer(t, &fakeRepo{sales: []repository.SaleRow{
		saleAt("2024-02-10T10:00:00Z", 10),
	}})

	rec := srv.do(t, http.MethodGet, "/api/sales/compare?period1=2024-01&period2=2024-02", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Period2 map[string]interface{} `json:"period2"`
		Growth  map[string]interface{} `json:"growth"`
	}
	decode(t, rec, &body)
	v, ok := body.Growth["sales_change_percent"]
	assert.True(t, ok)
	assert.Nil(t, v, "zero base serializes as null")
	assert.Equal(t, 10.0, body.Period2["total_sales"])
}

func TestDataQuality(t *testing.T) {
	srv := newTestServer(t, &fakeRepo{flags: []domain.FlagSet{
		domain.NewFlagSet(domain.FlagMissingTimezone),
		domain.NewFlagSet(),
	}})

	rec := srv.do(t, http.MethodGet, "/api/data-quality", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body reporting.QualityReport
	decode(t, rec, &body)
	assert.Equal(t, 2, body.TotalRecords)
	assert.Equal(t, 1, body.IssuesFound.MissingTimezones)
}

func TestDataQuality_RepositoryFailure(t *testing.T) {
	srv := newTestServer(t, &fakeRepo{err: errors.New("connection refused")})

	rec := srv.do(t, http.MethodGet, "/api/data-quality", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body middleware.ErrorResponse
	decode(t, rec, &body)
	assert.Equal(t, "Internal Server Error", body.Error)
	assert.Equal(t, "Failed to retrieve data quality report", body.Message)
	assert.Contains(t, srv.logs.String(), "connection refused")
}

func TestIngest_EnqueuesJob(t *testing.T) {
	srv := newTestServer(t, &fakeRepo{})

	rec := srv.do(t, http.MethodPost, "/api/ingest", `{"source":"data/batch.csv"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var body map[string]string
	decode(t, rec, &body)
	assert.Equal(t, "pending", body["status"])
	require.NotEmpty(t, body["job_id"])
	assert.True(t, filepath.IsAbs(body["source"]), "local source is resolved: %s", body["source"])
	assert.True(t, strings.HasSuffix(body["source"], filepath.Join("data", "batch.csv")))

	rec = srv.do(t, http.MethodGet, "/api/jobs/"+body["job_id"], "")
	require.Equal(t, http.StatusOK, rec.Code)
	var job jobs.IngestJob
	decode(t, rec, &job)
	assert.Equal(t, body["source"], job.Source)
	assert.Equal(t, jobs.JobStatusPending, job.Status)

	rec = srv.do(t, http.MethodGet, "/api/jobs?source="+url.QueryEscape(body["source"]), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Jobs  []jobs.IngestJob `json:"jobs"`
		Count int              `json:"count"`
	}
	decode(t, rec, &list)
	assert.Equal(t, 1, list.Count)
}

func TestIngest_AcceptsGCSURI(t *testing.T) {
	srv := newTestServer(t, &fakeRepo{})

	rec := srv.do(t, http.MethodPost, "/api/ingest", `{"source":"gs://bucket/batches/day1.csv"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var body map[string]string
	decode(t, rec, &body)
	assert.Equal(t, "gs://bucket/batches/day1.csv", body["source"])
}

func TestIngest_RejectsSourcesOutsideInputDir(t *testing.T) {
	srv := newTestServer(t, &fakeRepo{})

	outside := filepath.Join(t.TempDir(), "secret.csv")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o600))
	require.NoError(t, os.Symlink(outside, filepath.Join(srv.inputDir, "link.csv")))

	for _, source := range []string{"../secret.csv", "/etc/passwd", "a/../../secret.csv", ".", "link.csv", outside} {
		t.Run(source, func(t *testing.T) {
			payload, err := json.Marshal(map[string]string{"source": source})
			require.NoError(t, err)

			rec := srv.do(t, http.MethodPost, "/api/ingest", string(payload))
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	rec := srv.do(t, http.MethodGet, "/api/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Count int `json:"count"`
	}
	decode(t, rec, &list)
	assert.Zero(t, list.Count)
}

func TestIngest_LocalSourcesDisabledWithoutInputDir(t *testing.T) {
	store := inmemory.NewStore()
	queue := inmemory.NewQueue(1, 1, store)
	t.Cleanup(func() { _ = queue.Close() })
	handler := handlers.NewIngestHandler(queue, "")

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", strings.NewReader(`{"source":"batch.csv"}`))
	rec := httptest.NewRecorder()
	handler.Enqueue(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "gs://")

	req = httptest.NewRequest(http.MethodPost, "/api/ingest", strings.NewReader(`{"source":"gs://b/o.csv"}`))
	rec = httptest.NewRecorder()
	handler.Enqueue(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestIngest_BadRequests(t *testing.T) {
	srv := newTestServer(t, &fakeRepo{})

	rec := srv.do(t, http.MethodPost, "/api/ingest", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/ingest", `{"source":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/ingest", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestIngest_QueueClosed(t *testing.T) {
	srv := newTestServer(t, &fakeRepo{})
	require.NoError(t, srv.queue.Close())

	rec := srv.do(t, http.MethodPost, "/api/ingest", `{"source":"batch.csv"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetJob_NotFound(t *testing.T) {
	srv := newTestServer(t, &fakeRepo{})

	rec := srv.do(t, http.MethodGet, "/api/jobs/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRuns(t *testing.T) {
	started := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	srv := newTestServer(t, &fakeRepo{runs: []*repository.RunRow{
		{RunID: "r2", Source: "b.csv", Status: repository.RunStatusSuccess, StartedAt: started},
		{RunID: "r1", Source: "a.csv", Status: repository.RunStatusFailed, StartedAt: started, ErrorMessage: "boom"},
	}})

	rec := srv.do(t, http.MethodGet, "/api/runs?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Runs  []repository.RunRow `json:"runs"`
		Count int                 `json:"count"`
	}
	decode(t, rec, &body)
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "r2", body.Runs[0].RunID)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, &fakeRepo{})

	rec := srv.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")

	rec = srv.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t, &fakeRepo{})

	rec := srv.do(t, http.MethodGet, "/api/nothing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body middleware.ErrorResponse
	decode(t, rec, &body)
	assert.Equal(t, "Not Found", body.Error)
	assert.Equal(t, http.StatusNotFound, body.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
}
