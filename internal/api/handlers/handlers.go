// Package handlers implements the HTTP endpoints of the reporting API.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dvloznov/txn-quality/internal/api/middleware"
	"github.com/dvloznov/txn-quality/internal/logger"
	"github.com/dvloznov/txn-quality/internal/reporting"
)

// Reports is the reporting service used by SalesHandler.
type Reports interface {
	DailySummary(ctx context.Context, startDate, endDate, timezone string) (*reporting.DailySummary, error)
	HourlySummary(ctx context.Context, date, timezone string) (*reporting.HourlySummary, error)
	ComparePeriods(ctx context.Context, period1, period2, timezone string) (*reporting.PeriodComparison, error)
	QualityReport(ctx context.Context) (*reporting.QualityReport, error)
}

// SalesHandler serves the sales summaries and the data quality report.
type SalesHandler struct {
	reports         Reports
	defaultTimezone string
}

// NewSalesHandler creates a SalesHandler. Requests without a timezone
// parameter use defaultTimezone.
func NewSalesHandler(reports Reports, defaultTimezone string) *SalesHandler {
	if defaultTimezone == "" {
		defaultTimezone = "UTC"
	}
	return &SalesHandler{reports: reports, defaultTimezone: defaultTimezone}
}

func (h *SalesHandler) timezone(r *http.Request) string {
	if tz := r.URL.Query().Get("timezone"); tz != "" {
		return tz
	}
	return h.defaultTimezone
}

// DailySales handles GET /api/sales/daily
func (h *SalesHandler) DailySales(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	start, end := query.Get("start_date"), query.Get("end_date")
	if start == "" || end == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Missing query parameters", "start_date and end_date are required")
		return
	}

	summary, err := h.reports.DailySummary(r.Context(), start, end, h.timezone(r))
	if err != nil {
		writeReportError(w, r, err, "Failed to retrieve daily sales")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, summary)
}

// HourlySales handles GET /api/sales/hourly
func (h *SalesHandler) HourlySales(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Missing query parameters", "date parameter is required")
		return
	}

	summary, err := h.reports.HourlySummary(r.Context(), date, h.timezone(r))
	if err != nil {
		writeReportError(w, r, err, "Failed to retrieve hourly sales")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, summary)
}

// ComparePeriods handles GET /api/sales/compare
func (h *SalesHandler) ComparePeriods(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	p1, p2 := query.Get("period1"), query.Get("period2")
	if p1 == "" || p2 == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Missing query parameters", "period1 and period2 are required")
		return
	}

	comparison, err := h.reports.ComparePeriods(r.Context(), p1, p2, h.timezone(r))
	if err != nil {
		writeReportError(w, r, err, "Failed to compare periods")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, comparison)
}

// DataQuality handles GET /api/data-quality
func (h *SalesHandler) DataQuality(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.QualityReport(r.Context())
	if err != nil {
		writeReportError(w, r, err, "Failed to retrieve data quality report")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, report)
}

// writeReportError maps reporting errors onto 400 replies and anything else
// onto a logged 500 with failureMessage.
func writeReportError(w http.ResponseWriter, r *http.Request, err error, failureMessage string) {
	switch {
	case errors.Is(err, reporting.ErrInvalidDate):
		middleware.WriteError(w, http.StatusBadRequest, "Invalid date format", "dates must be in YYYY-MM-DD format")
	case errors.Is(err, reporting.ErrInvalidRange):
		middleware.WriteError(w, http.StatusBadRequest, "Invalid date range", "start_date must not be after end_date")
	case errors.Is(err, reporting.ErrInvalidPeriod):
		middleware.WriteError(w, http.StatusBadRequest, "Invalid period format", "period1 and period2 must be in YYYY-MM format")
	case errors.Is(err, reporting.ErrInvalidTimezone):
		middleware.WriteError(w, http.StatusBadRequest, "Invalid timezone", err.Error())
	default:
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Str("path", r.URL.Path).Msg(failureMessage)
		middleware.WriteError(w, http.StatusInternalServerError, "Internal Server Error", failureMessage)
	}
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
