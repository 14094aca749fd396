package reporting

import (
	"context"
	"fmt"

	"github.com/dvloznov/txn-quality/internal/domain"
)

// IssueCounts counts stored records carrying each flag.
type IssueCounts struct {
	InvalidDates          int `json:"invalid_dates"`
	MissingTimezones      int `json:"missing_timezones"`
	DuplicateTransactions int `json:"duplicate_transactions"`
	OutOfOrderRecords     int `json:"out_of_order_records"`
}

// ResolutionSummary describes how each kind of issue is handled.
type ResolutionSummary struct {
	InvalidDates     string `json:"invalid_dates"`
	MissingTimezones string `json:"missing_timezones"`
	Duplicates       string `json:"duplicates"`
	OutOfOrder       string `json:"out_of_order"`
}

// QualityReport is the response of QualityReport.
type QualityReport struct {
	TotalRecords      int               `json:"total_records"`
	IssuesFound       IssueCounts       `json:"issues_found"`
	ResolutionSummary ResolutionSummary `json:"resolution_summary"`
}

// QualityReport counts the stored records and how many carry each flag.
func (s *Service) QualityReport(ctx context.Context) (*QualityReport, error) {
	flagSets, err := s.repo.ListQualityFlags(ctx)
	if err != nil {
		return nil, fmt.Errorf("QualityReport: %w", err)
	}

	report := &QualityReport{
		TotalRecords: len(flagSets),
		ResolutionSummary: ResolutionSummary{
			InvalidDates:     "Unparseable timestamps kept without a processed time and left out of sales reports",
			MissingTimezones: "Assumed UTC when the local timestamp was valid",
			Duplicates:       fmt.Sprintf("Kept the latest record of each pair within a %s threshold", s.duplicateThreshold),
			OutOfOrder:       "Flagged in arrival order; reports aggregate by actual transaction time",
		},
	}

	for _, flags := range flagSets {
		if flags.Has(domain.FlagInvalidDateFormat) {
			report.IssuesFound.InvalidDates++
		}
		if flags.Has(domain.FlagMissingTimezone) {
			report.IssuesFound.MissingTimezones++
		}
		if flags.Has(domain.FlagDuplicateCandidate) {
			report.IssuesFound.DuplicateTransactions++
		}
		if flags.Has(domain.FlagOutOfOrder) {
			report.IssuesFound.OutOfOrderRecords++
		}
	}
	return report, nil
}
