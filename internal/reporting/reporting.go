// Package reporting aggregates stored transactions into sales summaries and
// the data quality report.
package reporting

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/txn-quality/internal/repository"
)

var (
	ErrInvalidDate     = errors.New("date must be in YYYY-MM-DD format")
	ErrInvalidPeriod   = errors.New("period must be in YYYY-MM format")
	ErrInvalidTimezone = errors.New("unknown timezone")
	ErrInvalidRange    = errors.New("start date is after end date")
)

const hourLayout = "2006-01-02 15:04:05"

var periodPattern = regexp.MustCompile(`^(\d{4})-(\d{1,2})$`)

// Service answers report queries against a transaction repository.
type Service struct {
	repo               repository.TransactionRepository
	duplicateThreshold time.Duration
}

// NewService creates a Service. duplicateThreshold is only quoted in the
// quality report text.
func NewService(repo repository.TransactionRepository, duplicateThreshold time.Duration) *Service {
	return &Service{repo: repo, duplicateThreshold: duplicateThreshold}
}

// loadLocation resolves a query timezone. Only exact tz database names are
// accepted; an empty name means UTC.
func loadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC, nil
	}
	if name == "Local" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTimezone, name)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTimezone, name)
	}
	return loc, nil
}

func parseDate(s string) (civil.Date, error) {
	d, err := civil.ParseDate(strings.TrimSpace(s))
	if err != nil {
		return civil.Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}

// parsePeriod parses "YYYY-MM" (single-digit months allowed) into the first
// and last day of that month.
func parsePeriod(s string) (civil.Date, civil.Date, error) {
	m := periodPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return civil.Date{}, civil.Date{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return civil.Date{}, civil.Date{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}

	start := civil.Date{Year: year, Month: time.Month(month), Day: 1}
	end := civil.DateOf(time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC))
	return start, end, nil
}

func inRange(d, start, end civil.Date) bool {
	return !d.Before(start) && !d.After(end)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// percentChange returns the change from base to v in percent, or nil when
// base is zero.
func percentChange(base, v float64) *float64 {
	if base == 0 {
		return nil
	}
	pct := round2((v - base) / base * 100)
	return &pct
}
