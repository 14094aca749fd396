package handlers

import (
	"net/http"
	"strings"

	"github.com/dvloznov/txn-quality/internal/api/middleware"
)

// Router holds the handlers mounted by NewRouter. Metrics may be nil.
type Router struct {
	Sales   *SalesHandler
	Ingest  *IngestHandler
	Jobs    *JobsHandler
	Runs    *RunsHandler
	Metrics http.Handler
}

// only restricts h to one method, answering anything else with a JSON 405.
func only(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method Not Allowed", "Method not allowed")
			return
		}
		h(w, r)
	}
}

// NewRouter builds the API mux. Unknown paths get a JSON 404.
func NewRouter(rt Router) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/sales/daily", only(http.MethodGet, rt.Sales.DailySales))
	mux.HandleFunc("/api/sales/hourly", only(http.MethodGet, rt.Sales.HourlySales))
	mux.HandleFunc("/api/sales/compare", only(http.MethodGet, rt.Sales.ComparePeriods))
	mux.HandleFunc("/api/data-quality", only(http.MethodGet, rt.Sales.DataQuality))

	mux.HandleFunc("/api/ingest", only(http.MethodPost, rt.Ingest.Enqueue))
	mux.HandleFunc("/api/jobs", only(http.MethodGet, rt.Jobs.ListJobs))
	mux.HandleFunc("/api/jobs/", only(http.MethodGet, func(w http.ResponseWriter, r *http.Request) {
		jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
		if jobID == "" || strings.Contains(jobID, "/") {
			middleware.WriteError(w, http.StatusBadRequest, "Bad Request", "Job ID is required")
			return
		}
		rt.Jobs.GetJob(w, r, jobID)
	}))
	mux.HandleFunc("/api/runs", only(http.MethodGet, rt.Runs.ListRuns))

	mux.HandleFunc("/health", Health)
	if rt.Metrics != nil {
		mux.Handle("/metrics", rt.Metrics)
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not Found", "The requested endpoint does not exist")
	})
	return mux
}
