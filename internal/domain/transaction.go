package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ProcessedTimezone is the zone every processed timestamp is expressed in.
const ProcessedTimezone = "UTC"

// RawTransaction is one input row exactly as it was read from the batch file.
// Amount is kept as text; it is coerced to a number only where a number is needed.
type RawTransaction struct {
	TransactionID   string `json:"transaction_id"`
	CustomerID      string `json:"customer_id"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	Timestamp       string `json:"timestamp"`
	Timezone        string `json:"timezone"`
	Status          string `json:"status"`
	ProductCategory string `json:"product_category"`
}

// ParseAmount coerces the raw amount into a finite float.
func (r RawTransaction) ParseAmount() (float64, error) {
	s := strings.TrimSpace(r.Amount)
	if s == "" {
		return 0, fmt.Errorf("amount is empty")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("amount %q is not numeric: %w", r.Amount, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("amount %q is not a finite number", r.Amount)
	}
	return v, nil
}

// HasMissingTimezone reports whether the raw timezone label is blank or one of
// the textual null markers that spreadsheet exports leave behind.
func (r RawTransaction) HasMissingTimezone() bool {
	return IsMissingLabel(r.Timezone)
}

// IsMissingLabel reports whether s is empty or a "nan"/"none" placeholder.
func IsMissingLabel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nan", "none":
		return true
	}
	return false
}

// EnrichedTransaction is a raw transaction plus the results of the enrichment stages.
type EnrichedTransaction struct {
	RawTransaction

	ProcessedTimestamp *time.Time // UTC; nil when the raw timestamp could not be normalized
	ProcessedTimezone  string     // ProcessedTimezone once normalization succeeded
	Flags              FlagSet
}

// HasTimestamp reports whether normalization produced an instant.
func (t *EnrichedTransaction) HasTimestamp() bool {
	return t.ProcessedTimestamp != nil
}
