package quality

import (
	"math"
	"sort"
	"time"

	"github.com/dvloznov/txn-quality/internal/domain"
)

const (
	// DefaultDuplicateThreshold is the widest gap between two near-duplicate records.
	DefaultDuplicateThreshold = 10 * time.Second

	// amountTolerance is the largest amount difference still treated as equal.
	amountTolerance = 0.01
)

// DuplicateDetector finds records that look like the same sale recorded twice.
type DuplicateDetector struct {
	threshold time.Duration
}

// NewDuplicateDetector creates a detector with the given time window. A
// negative threshold selects DefaultDuplicateThreshold.
func NewDuplicateDetector(threshold time.Duration) *DuplicateDetector {
	if threshold < 0 {
		threshold = DefaultDuplicateThreshold
	}
	return &DuplicateDetector{threshold: threshold}
}

// Threshold returns the configured time window.
func (d *DuplicateDetector) Threshold() time.Duration {
	return d.threshold
}

type candidate struct {
	pos    int
	at     time.Time
	amount float64
	valid  bool
}

// Detect sorts the timestamped records by instant and compares each adjacent
// pair. For every matching pair the earlier record's position is returned;
// the later one is kept as authoritative. Positions come back ascending.
func (d *DuplicateDetector) Detect(txs []domain.EnrichedTransaction) []int {
	candidates := make([]candidate, 0, len(txs))
	for i := range txs {
		if txs[i].ProcessedTimestamp == nil {
			continue
		}
		amount, err := txs[i].ParseAmount()
		candidates = append(candidates, candidate{
			pos:    i,
			at:     *txs[i].ProcessedTimestamp,
			amount: amount,
			valid:  err == nil,
		})
	}

	// Stable so records sharing an instant keep arrival order.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].at.Before(candidates[j].at)
	})

	flagged := make(map[int]bool)
	for i := 1; i < len(candidates); i++ {
		prev, cur := candidates[i-1], candidates[i]
		if d.matches(txs[prev.pos], txs[cur.pos], prev, cur) {
			flagged[prev.pos] = true
		}
	}

	out := make([]int, 0, len(flagged))
	for pos := range flagged {
		out = append(out, pos)
	}
	sort.Ints(out)
	return out
}

func (d *DuplicateDetector) matches(a, b domain.EnrichedTransaction, ca, cb candidate) bool {
	if a.CustomerID != b.CustomerID || a.Status != b.Status || a.ProductCategory != b.ProductCategory {
		return false
	}
	if !ca.valid || !cb.valid || math.Abs(ca.amount-cb.amount) >= amountTolerance {
		return false
	}
	gap := cb.at.Sub(ca.at)
	if gap < 0 {
		gap = -gap
	}
	return gap <= d.threshold
}
