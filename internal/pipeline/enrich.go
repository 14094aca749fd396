package pipeline

import (
	"github.com/dvloznov/txn-quality/internal/domain"
	"github.com/dvloznov/txn-quality/internal/quality"
	"github.com/rs/zerolog"
)

// Enricher runs the per-record and order-dependent enrichment stages.
type Enricher struct {
	normalizer TimestampNormalizer
	log        zerolog.Logger
}

// NewEnricher creates an Enricher around a timestamp normalizer.
func NewEnricher(normalizer TimestampNormalizer, log zerolog.Logger) *Enricher {
	return &Enricher{
		normalizer: normalizer,
		log:        log.With().Str("component", "enricher").Logger(),
	}
}

// Enrich returns one enriched record per raw record, in the same order.
//
// Each record is normalized on its own: a timestamp that cannot be
// interpreted is tagged invalid_date_format, and a blank timezone label is
// tagged missing_timezone whether or not normalization succeeded. The batch
// is then scanned in arrival order and records that go back in time are
// tagged out_of_order.
func (e *Enricher) Enrich(raws []domain.RawTransaction) []domain.EnrichedTransaction {
	txs := make([]domain.EnrichedTransaction, len(raws))

	for i, raw := range raws {
		tx := domain.EnrichedTransaction{RawTransaction: raw}

		if ts, ok := e.normalizer.Normalize(raw.Timestamp, raw.Timezone); ok {
			tx.ProcessedTimestamp = &ts
			tx.ProcessedTimezone = domain.ProcessedTimezone
		} else {
			tx.Flags.Add(domain.FlagInvalidDateFormat)
		}

		if raw.HasMissingTimezone() {
			tx.Flags.Add(domain.FlagMissingTimezone)
		}

		txs[i] = tx
	}

	outOfOrder := quality.DetectOutOfOrder(txs)
	for _, pos := range outOfOrder {
		txs[pos].Flags.Add(domain.FlagOutOfOrder)
	}

	e.log.Debug().
		Int("records", len(txs)).
		Int("out_of_order", len(outOfOrder)).
		Msg("Enriched batch")

	return txs
}
