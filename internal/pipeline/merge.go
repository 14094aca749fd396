package pipeline

import (
	"context"
	"time"

	"github.com/dvloznov/txn-quality/internal/domain"
	"github.com/dvloznov/txn-quality/internal/logger"
	"github.com/dvloznov/txn-quality/internal/quality"
	"github.com/dvloznov/txn-quality/internal/repository"
)

// MarkDuplicates runs near-duplicate detection over txs and adds the
// duplicate_candidate flag to every record it reports. Flags already present
// are kept, so running it again changes nothing. It returns how many records
// gained the flag.
func MarkDuplicates(txs []domain.EnrichedTransaction, detector *quality.DuplicateDetector) int {
	added := 0
	for _, pos := range detector.Detect(txs) {
		if txs[pos].Flags.Add(domain.FlagDuplicateCandidate) {
			added++
		}
	}
	return added
}

// BuildRows converts enriched records into storage rows. Records whose amount
// is not a finite number are logged and left out; the number left out is
// returned alongside the rows.
func BuildRows(ctx context.Context, txs []domain.EnrichedTransaction, runID string, now time.Time) ([]*repository.TransactionRow, int) {
	log := logger.FromContext(ctx)
	createdAt := now.UTC().Truncate(time.Second)

	rows := make([]*repository.TransactionRow, 0, len(txs))
	skipped := 0
	for i := range txs {
		tx := &txs[i]

		amount, err := tx.ParseAmount()
		if err != nil {
			skipped++
			log.Warn().
				Err(err).
				Int("position", i).
				Str("transaction_id", tx.TransactionID).
				Msg("Skipping row due to error")
			continue
		}

		row := &repository.TransactionRow{
			TransactionID:     tx.TransactionID,
			CustomerID:        tx.CustomerID,
			Amount:            amount,
			Currency:          tx.Currency,
			Status:            tx.Status,
			ProductCategory:   tx.ProductCategory,
			OriginalTimestamp: tx.Timestamp,
			OriginalTimezone:  tx.Timezone,
			ProcessedTimezone: domain.ProcessedTimezone,
			QualityFlags:      domain.NewFlagSet(tx.Flags.List()...),
			RunID:             runID,
			CreatedAt:         createdAt,
		}
		if tx.ProcessedTimestamp != nil {
			ts := tx.ProcessedTimestamp.UTC()
			row.ProcessedTimestamp = &ts
		}
		rows = append(rows, row)
	}

	return rows, skipped
}

// CountFlags tallies how many records carry each flag.
func CountFlags(txs []domain.EnrichedTransaction) map[domain.Flag]int {
	counts := make(map[domain.Flag]int, len(domain.AllFlags))
	for i := range txs {
		for _, f := range txs[i].Flags.List() {
			counts[f]++
		}
	}
	return counts
}

// countFlagged returns the number of records with at least one flag.
func countFlagged(txs []domain.EnrichedTransaction) int {
	n := 0
	for i := range txs {
		if !txs[i].Flags.IsEmpty() {
			n++
		}
	}
	return n
}
