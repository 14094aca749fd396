package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dvloznov/txn-quality/internal/api/middleware"
	"github.com/dvloznov/txn-quality/internal/gcsuploader"
	"github.com/dvloznov/txn-quality/internal/jobs"
	"github.com/dvloznov/txn-quality/internal/logger"
	"github.com/dvloznov/txn-quality/internal/repository"
)

// IngestHandler accepts batch files for asynchronous ingestion. Sources are
// gs:// URIs or files inside inputDir; with no inputDir only gs:// is allowed.
type IngestHandler struct {
	publisher jobs.Publisher
	inputDir  string
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(publisher jobs.Publisher, inputDir string) *IngestHandler {
	return &IngestHandler{publisher: publisher, inputDir: inputDir}
}

// Enqueue handles POST /api/ingest
func (h *IngestHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Source string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body", "body must be a JSON object")
		return
	}
	req.Source = strings.TrimSpace(req.Source)
	if req.Source == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body", "source is required")
		return
	}
	source, err := resolveSource(req.Source, h.inputDir)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid source", err.Error())
		return
	}

	log := logger.FromContext(r.Context())
	job := &jobs.IngestJob{Source: source}
	if err := h.publisher.PublishIngest(r.Context(), job); err != nil {
		if errors.Is(err, jobs.ErrQueueClosed) {
			middleware.WriteError(w, http.StatusServiceUnavailable, "Service Unavailable", "ingest queue is closed")
			return
		}
		log.Error().Err(err).Str("source", source).Msg("Failed to enqueue ingest job")
		middleware.WriteError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to enqueue ingest job")
		return
	}

	log.Info().Str("job_id", job.JobID).Str("source", source).Msg("Ingest job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"source": source,
		"status": string(jobs.JobStatusPending),
	})
}

// resolveSource returns the source a job should read. Local paths are
// resolved against inputDir, symlinks included, and must stay inside it.
func resolveSource(source, inputDir string) (string, error) {
	if gcsuploader.IsGCSURI(source) {
		return source, nil
	}
	if inputDir == "" {
		return "", errors.New("local sources are disabled, use a gs:// URI")
	}

	root, err := filepath.Abs(inputDir)
	if err != nil {
		return "", fmt.Errorf("ingest directory: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	path := source
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	path = filepath.Clean(path)
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}

	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("source %q is outside the ingest directory", source)
	}
	return path, nil
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore) *JobsHandler {
	return &JobsHandler{store: store}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Not Found", "Job not found")
			return
		}
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		Source: query.Get("source"),
		Status: jobs.JobStatus(query.Get("status")),
		Limit:  intParam(query.Get("limit")),
		Offset: intParam(query.Get("offset")),
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// RunsHandler lists recorded ingest runs.
type RunsHandler struct {
	runs repository.RunRepository
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(runs repository.RunRepository) *RunsHandler {
	return &RunsHandler{runs: runs}
}

// ListRuns handles GET /api/runs
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}

	runs, err := h.runs.ListRuns(r.Context(), limit)
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("Failed to list runs")
		middleware.WriteError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to list runs")
		return
	}
	if runs == nil {
		runs = []*repository.RunRow{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

func intParam(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
