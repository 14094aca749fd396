package quality

import (
	"testing"
	"time"

	"github.com/dvloznov/txn-quality/internal/domain"
	"github.com/stretchr/testify/assert"
)

var base = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func at(offset time.Duration) *time.Time {
	t := base.Add(offset)
	return &t
}

func sale(customer, amount string, ts *time.Time) domain.EnrichedTransaction {
	return domain.EnrichedTransaction{
		RawTransaction: domain.RawTransaction{
			CustomerID:      customer,
			Amount:          amount,
			Status:          "completed",
			ProductCategory: "electronics",
		},
		ProcessedTimestamp: ts,
	}
}

func TestDetectOutOfOrder(t *testing.T) {
	tests := []struct {
		name  string
		times []*time.Time
		want  []int
	}{
		{
			name:  "second record earlier than first",
			times: []*time.Time{at(0), at(-time.Hour), at(time.Hour)},
			want:  []int{1},
		},
		{
			name:  "strictly increasing",
			times: []*time.Time{at(0), at(time.Minute), at(time.Hour)},
			want:  nil,
		},
		{
			name:  "ties are in order",
			times: []*time.Time{at(0), at(0), at(0)},
			want:  nil,
		},
		{
			name:  "absent instants do not move the pointer",
			times: []*time.Time{at(time.Hour), nil, at(time.Minute)},
			want:  []int{2},
		},
		{
			name:  "leading absent instant",
			times: []*time.Time{nil, at(time.Hour), at(0)},
			want:  []int{2},
		},
		{
			name:  "compares to the closest predecessor only",
			times: []*time.Time{at(2 * time.Hour), at(0), at(time.Hour)},
			want:  []int{1},
		},
		{
			name:  "empty batch",
			times: nil,
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txs := make([]domain.EnrichedTransaction, len(tt.times))
			for i, ts := range tt.times {
				txs[i] = sale("C1", "10.00", ts)
			}
			assert.Equal(t, tt.want, DetectOutOfOrder(txs))
		})
	}
}

func TestDuplicateDetector_Detect(t *testing.T) {
	tests := []struct {
		name string
		txs  []domain.EnrichedTransaction
		want []int
	}{
		{
			name: "five seconds apart flags the earlier",
			txs: []domain.EnrichedTransaction{
				sale("C1", "99.99", at(5*time.Second)),
				sale("C1", "99.99", at(0)),
			},
			want: []int{1},
		},
		{
			name: "fifteen seconds apart flags neither",
			txs: []domain.EnrichedTransaction{
				sale("C1", "99.99", at(0)),
				sale("C1", "99.99", at(15*time.Second)),
			},
			want: []int{},
		},
		{
			name: "exactly at threshold",
			txs: []domain.EnrichedTransaction{
				sale("C1", "99.99", at(0)),
				sale("C1", "99.99", at(10*time.Second)),
			},
			want: []int{0},
		},
		{
			name: "amount within tolerance",
			txs: []domain.EnrichedTransaction{
				sale("C1", "99.990", at(0)),
				sale("C1", "99.995", at(time.Second)),
			},
			want: []int{0},
		},
		{
			name: "amount outside tolerance",
			txs: []domain.EnrichedTransaction{
				sale("C1", "99.99", at(0)),
				sale("C1", "100.01", at(time.Second)),
			},
			want: []int{},
		},
		{
			name: "different customer",
			txs: []domain.EnrichedTransaction{
				sale("C1", "99.99", at(0)),
				sale("C2", "99.99", at(time.Second)),
			},
			want: []int{},
		},
		{
			name: "non numeric amount never matches",
			txs: []domain.EnrichedTransaction{
				sale("C1", "abc", at(0)),
				sale("C1", "abc", at(time.Second)),
			},
			want: []int{},
		},
		{
			name: "absent instants excluded",
			txs: []domain.EnrichedTransaction{
				sale("C1", "99.99", nil),
				sale("C1", "99.99", at(0)),
			},
			want: []int{},
		},
		{
			name: "chain flags each earlier member",
			txs: []domain.EnrichedTransaction{
				sale("C1", "5.00", at(0)),
				sale("C1", "5.00", at(8*time.Second)),
				sale("C1", "5.00", at(16*time.Second)),
			},
			want: []int{0, 1},
		},
		{
			name: "only adjacent pairs are compared",
			txs: []domain.EnrichedTransaction{
				sale("C1", "5.00", at(0)),
				sale("C2", "5.00", at(time.Second)),
				sale("C1", "5.00", at(2*time.Second)),
			},
			want: []int{},
		},
		{
			name: "equal instants keep arrival order",
			txs: []domain.EnrichedTransaction{
				sale("C1", "5.00", at(0)),
				sale("C1", "5.00", at(0)),
			},
			want: []int{0},
		},
	}

	d := NewDuplicateDetector(DefaultDuplicateThreshold)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Detect(tt.txs))
		})
	}
}

func TestDuplicateDetector_StatusAndCategoryMustMatch(t *testing.T) {
	a := sale("C1", "5.00", at(0))
	b := sale("C1", "5.00", at(time.Second))
	b.Status = "refunded"

	c := sale("C1", "5.00", at(0))
	e := sale("C1", "5.00", at(time.Second))
	e.ProductCategory = "books"

	d := NewDuplicateDetector(DefaultDuplicateThreshold)
	assert.Empty(t, d.Detect([]domain.EnrichedTransaction{a, b}))
	assert.Empty(t, d.Detect([]domain.EnrichedTransaction{c, e}))
}

func TestNewDuplicateDetector_Threshold(t *testing.T) {
	assert.Equal(t, DefaultDuplicateThreshold, NewDuplicateDetector(-1).Threshold())
	assert.Equal(t, time.Duration(0), NewDuplicateDetector(0).Threshold())
	assert.Equal(t, time.Minute, NewDuplicateDetector(time.Minute).Threshold())

	txs := []domain.EnrichedTransaction{
		sale("C1", "5.00", at(0)),
		sale("C1", "5.00", at(30*time.Second)),
	}
	assert.Equal(t, []int{0}, NewDuplicateDetector(time.Minute).Detect(txs))
}
