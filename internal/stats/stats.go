// Package stats computes distributional summaries from transaction batches.
//
// All functions are pure: they take a batch and return statistic groups
// without touching storage or shared state.
package stats

import (
	"math"
	"sort"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Config holds the thresholds the engine applies while summarizing.
type Config struct {
	// OutlierPercentile caps amounts before amount statistics are computed.
	// Filtering applies to the amount group only; velocity, temporal and
	// population statistics always use the unfiltered batch.
	OutlierPercentile float64
}

// Engine computes statistic groups from a batch.
type Engine struct {
	cfg Config
}

// NewEngine creates a statistics engine.
func NewEngine(cfg Config) *Engine {
	if cfg.OutlierPercentile <= 0 || cfg.OutlierPercentile > 100 {
		cfg.OutlierPercentile = 99.5
	}
	return &Engine{cfg: cfg}
}

// AmountStats is the amount distribution group.
type AmountStats struct {
	Median float64
	Mean   float64
	Std    float64
	P25    float64
	P75    float64
	P95    float64
	P99    float64
	Min    float64
	Max    float64
}

// VelocityStats is the per-sender daily frequency group.
type VelocityStats struct {
	Median24h float64
	Mean24h   float64
	P9524h    float64
}

// TemporalStats holds peak activity periods, sorted ascending.
type TemporalStats struct {
	PeakHours []int
	PeakDays  []int
}

// PopulationStats holds batch population counts.
type PopulationStats struct {
	TransactionCount    int64
	UniqueSenders       int64
	UniqueBeneficiaries int64
}

// AmountStatistics computes the amount distribution of a batch after
// filtering extreme outliers above the configured percentile.
func (e *Engine) AmountStatistics(batch domain.Batch) AmountStats {
	amounts := make([]float64, 0, len(batch))
	for _, row := range batch {
		amounts = append(amounts, row.Amount)
	}
	amounts = e.filterOutliers(amounts)
	if len(amounts) == 0 {
		return AmountStats{}
	}

	sort.Float64s(amounts)

	return AmountStats{
		Median: quantile(amounts, 0.50),
		Mean:   mean(amounts),
		Std:    populationStd(amounts),
		P25:    quantile(amounts, 0.25),
		P75:    quantile(amounts, 0.75),
		P95:    quantile(amounts, 0.95),
		P99:    quantile(amounts, 0.99),
		Min:    amounts[0],
		Max:    amounts[len(amounts)-1],
	}
}

// filterOutliers drops values above the configured percentile of the input.
func (e *Engine) filterOutliers(values []float64) []float64 {
	if len(values) == 0 {
		return values
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	upper := quantile(sorted, e.cfg.OutlierPercentile/100)

	filtered := make([]float64, 0, len(values))
	for _, v := range values {
		if v <= upper {
			filtered = append(filtered, v)
		}
	}
	return filtered
}

// VelocityStatistics computes the distribution of transactions per sender per
// calendar day. This measures per-sender daily frequency, not per-transaction
// velocity. Dates are derived in UTC so the same batch always profiles the
// same way regardless of the offsets its timestamps carry.
func (e *Engine) VelocityStatistics(batch domain.Batch) VelocityStats {
	if len(batch) == 0 {
		return VelocityStats{}
	}

	type senderDay struct {
		sender string
		day    string
	}
	dailyCounts := make(map[senderDay]int)
	for _, row := range batch {
		key := senderDay{
			sender: row.SenderID,
			day:    row.Timestamp.UTC().Format("2006-01-02"),
		}
		dailyCounts[key]++
	}

	counts := make([]float64, 0, len(dailyCounts))
	for _, n := range dailyCounts {
		counts = append(counts, float64(n))
	}
	sort.Float64s(counts)

	return VelocityStats{
		Median24h: quantile(counts, 0.50),
		Mean24h:   mean(counts),
		P9524h:    quantile(counts, 0.95),
	}
}

// TemporalPatterns identifies hours and weekdays whose transaction count
// strictly exceeds the mean count over observed periods. Days use 0=Monday.
func (e *Engine) TemporalPatterns(batch domain.Batch) TemporalStats {
	hourCounts := make(map[int]int)
	dayCounts := make(map[int]int)
	for _, row := range batch {
		ts := row.Timestamp.UTC()
		hourCounts[ts.Hour()]++
		// time.Weekday has Sunday=0; shift so Monday=0..Sunday=6.
		dayCounts[(int(ts.Weekday())+6)%7]++
	}

	return TemporalStats{
		PeakHours: peakPeriods(hourCounts),
		PeakDays:  peakPeriods(dayCounts),
	}
}

// peakPeriods returns the periods whose count strictly exceeds the mean count
// across observed periods, sorted ascending.
func peakPeriods(counts map[int]int) []int {
	if len(counts) == 0 {
		return []int{}
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	meanCount := float64(total) / float64(len(counts))

	peaks := make([]int, 0, len(counts))
	for period, n := range counts {
		if float64(n) > meanCount {
			peaks = append(peaks, period)
		}
	}
	sort.Ints(peaks)
	return peaks
}

// PopulationStatistics counts rows and distinct parties.
func (e *Engine) PopulationStatistics(batch domain.Batch) PopulationStats {
	senders := make(map[string]struct{})
	beneficiaries := make(map[string]struct{})
	for _, row := range batch {
		senders[row.SenderID] = struct{}{}
		beneficiaries[row.BeneficiaryID] = struct{}{}
	}

	return PopulationStats{
		TransactionCount:    int64(len(batch)),
		UniqueSenders:       int64(len(senders)),
		UniqueBeneficiaries: int64(len(beneficiaries)),
	}
}

// FraudRate returns the fraction of true labels, or 0 for an empty sequence.
func FraudRate(labels []bool) float64 {
	if len(labels) == 0 {
		return 0.0
	}
	frauds := 0
	for _, l := range labels {
		if l {
			frauds++
		}
	}
	return float64(frauds) / float64(len(labels))
}

// quantile computes the q-th quantile of a sorted slice using linear
// interpolation between closest ranks.
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}

	rank := q * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// populationStd computes the population standard deviation.
func populationStd(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	sumSq := 0.0
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}
