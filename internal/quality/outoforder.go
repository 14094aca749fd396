// Package quality holds the batch-level data quality detectors.
package quality

import (
	"time"

	"github.com/dvloznov/txn-quality/internal/domain"
)

// DetectOutOfOrder returns the positions, in ascending order, of records whose
// processed timestamp is strictly earlier than the closest preceding record
// that has one. Records without a timestamp are skipped and never flagged.
func DetectOutOfOrder(txs []domain.EnrichedTransaction) []int {
	var (
		flagged []int
		last    time.Time
		seen    bool
	)
	for i := range txs {
		ts := txs[i].ProcessedTimestamp
		if ts == nil {
			continue
		}
		if seen && ts.Before(last) {
			flagged = append(flagged, i)
		}
		last = *ts
		seen = true
	}
	return flagged
}
