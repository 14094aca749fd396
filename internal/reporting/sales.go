package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/civil"
)

// DailySales is the aggregate of one local calendar day.
type DailySales struct {
	Date              string  `json:"date"`
	TotalSales        float64 `json:"total_sales"`
	TransactionCount  int     `json:"transaction_count"`
	AverageOrderValue float64 `json:"average_order_value"`
}

// DailyTotals summarises a DailySummary.
type DailyTotals struct {
	TotalSales        float64 `json:"total_sales"`
	TotalTransactions int     `json:"total_transactions"`
	AverageDailySales float64 `json:"average_daily_sales"`
}

// DailySummary is the response of DailySummary.
type DailySummary struct {
	Data     []DailySales `json:"data"`
	Timezone string       `json:"timezone"`
	Period   string       `json:"period"`
	Summary  DailyTotals  `json:"summary"`
}

// HourlySales is the aggregate of one local clock hour.
type HourlySales struct {
	Hour             string  `json:"hour"`
	UTCOffset        string  `json:"utc_offset"`
	TotalSales       float64 `json:"total_sales"`
	TransactionCount int     `json:"transaction_count"`
}

// HourlySummary is the response of HourlySummary.
type HourlySummary struct {
	Data     []HourlySales `json:"data"`
	Timezone string        `json:"timezone"`
	Date     string        `json:"date"`
}

// PeriodSummary is the aggregate of one calendar month.
type PeriodSummary struct {
	Start            string  `json:"start"`
	End              string  `json:"end"`
	TotalSales       float64 `json:"total_sales"`
	TransactionCount int     `json:"transaction_count"`
}

// Growth holds the change from period1 to period2, nil when period1 is zero.
type Growth struct {
	SalesChangePercent       *float64 `json:"sales_change_percent"`
	TransactionChangePercent *float64 `json:"transaction_change_percent"`
}

// PeriodComparison is the response of ComparePeriods.
type PeriodComparison struct {
	Period1  PeriodSummary `json:"period1"`
	Period2  PeriodSummary `json:"period2"`
	Growth   Growth        `json:"growth"`
	Timezone string        `json:"timezone"`
}

// DailySummary totals sales per local day in timezone for every day from
// startDate to endDate inclusive. Days without sales are left out.
func (s *Service) DailySummary(ctx context.Context, startDate, endDate, timezone string) (*DailySummary, error) {
	start, err := parseDate(startDate)
	if err != nil {
		return nil, err
	}
	end, err := parseDate(endDate)
	if err != nil {
		return nil, err
	}
	if start.After(end) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidRange, start, end)
	}
	loc, err := loadLocation(timezone)
	if err != nil {
		return nil, err
	}

	sales, err := s.repo.ListSales(ctx)
	if err != nil {
		return nil, fmt.Errorf("DailySummary: %w", err)
	}

	type bucket struct {
		total float64
		count int
	}
	days := make(map[civil.Date]*bucket)
	for _, sale := range sales {
		d := civil.DateOf(sale.ProcessedTimestamp.In(loc))
		if !inRange(d, start, end) {
			continue
		}
		b, ok := days[d]
		if !ok {
			b = &bucket{}
			days[d] = b
		}
		b.total += sale.Amount
		b.count++
	}

	keys := make([]civil.Date, 0, len(days))
	for d := range days {
		keys = append(keys, d)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	out := &DailySummary{
		Data:     make([]DailySales, 0, len(keys)),
		Timezone: timezone,
		Period:   fmt.Sprintf("%s to %s", startDate, endDate),
	}

	var total float64
	for _, d := range keys {
		b := days[d]
		day := DailySales{
			Date:              d.String(),
			TotalSales:        round2(b.total),
			TransactionCount:  b.count,
			AverageOrderValue: round2(b.total / float64(b.count)),
		}
		out.Data = append(out.Data, day)
		total += day.TotalSales
		out.Summary.TotalTransactions += b.count
	}

	out.Summary.TotalSales = round2(total)
	if len(keys) > 0 {
		out.Summary.AverageDailySales = round2(out.Summary.TotalSales / float64(len(keys)))
	}
	return out, nil
}

// HourlySummary totals sales per local clock hour of date in timezone. Each
// hour is keyed by its instant, so an hour repeated by a daylight saving
// change appears twice with different offsets.
func (s *Service) HourlySummary(ctx context.Context, date, timezone string) (*HourlySummary, error) {
	day, err := parseDate(date)
	if err != nil {
		return nil, err
	}
	loc, err := loadLocation(timezone)
	if err != nil {
		return nil, err
	}

	sales, err := s.repo.ListSales(ctx)
	if err != nil {
		return nil, fmt.Errorf("HourlySummary: %w", err)
	}

	type bucket struct {
		start time.Time
		total float64
		count int
	}
	hours := make(map[int64]*bucket)
	for _, sale := range sales {
		local := sale.ProcessedTimestamp.In(loc)
		if civil.DateOf(local) != day {
			continue
		}
		start := startOfLocalHour(local)
		key := start.Unix()
		b, ok := hours[key]
		if !ok {
			b = &bucket{start: start}
			hours[key] = b
		}
		b.total += sale.Amount
		b.count++
	}

	buckets := make([]*bucket, 0, len(hours))
	for _, b := range hours {
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].start.Before(buckets[j].start) })

	out := &HourlySummary{
		Data:     make([]HourlySales, 0, len(buckets)),
		Timezone: timezone,
		Date:     date,
	}
	for _, b := range buckets {
		out.Data = append(out.Data, HourlySales{
			Hour:             b.start.Format(hourLayout),
			UTCOffset:        b.start.Format("-07:00"),
			TotalSales:       round2(b.total),
			TransactionCount: b.count,
		})
	}
	return out, nil
}

// startOfLocalHour returns the instant at which the local clock of t last
// showed a whole hour, keeping t's zone.
func startOfLocalHour(t time.Time) time.Time {
	offset := time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
	return t.Add(-offset)
}

// ComparePeriods totals two calendar months (YYYY-MM) in timezone and the
// percentage change from period1 to period2.
func (s *Service) ComparePeriods(ctx context.Context, period1, period2, timezone string) (*PeriodComparison, error) {
	p1Start, p1End, err := parsePeriod(period1)
	if err != nil {
		return nil, err
	}
	p2Start, p2End, err := parsePeriod(period2)
	if err != nil {
		return nil, err
	}
	loc, err := loadLocation(timezone)
	if err != nil {
		return nil, err
	}

	sales, err := s.repo.ListSales(ctx)
	if err != nil {
		return nil, fmt.Errorf("ComparePeriods: %w", err)
	}

	p1 := PeriodSummary{Start: p1Start.String(), End: p1End.String()}
	p2 := PeriodSummary{Start: p2Start.String(), End: p2End.String()}
	var t1, t2 float64
	for _, sale := range sales {
		d := civil.DateOf(sale.ProcessedTimestamp.In(loc))
		if inRange(d, p1Start, p1End) {
			t1 += sale.Amount
			p1.TransactionCount++
		}
		if inRange(d, p2Start, p2End) {
			t2 += sale.Amount
			p2.TransactionCount++
		}
	}
	p1.TotalSales = round2(t1)
	p2.TotalSales = round2(t2)

	return &PeriodComparison{
		Period1: p1,
		Period2: p2,
		Growth: Growth{
			SalesChangePercent:       percentChange(p1.TotalSales, p2.TotalSales),
			TransactionChangePercent: percentChange(float64(p1.TransactionCount), float64(p2.TransactionCount)),
		},
		Timezone: timezone,
	}, nil
}
