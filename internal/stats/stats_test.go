package stats

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func batchFromAmounts(amounts []float64) domain.Batch {
	base := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	batch := make(domain.Batch, len(amounts))
	for i, a := range amounts {
		batch[i] = domain.TransactionRow{
			Amount:        a,
			SenderID:      fmt.Sprintf("sender-%03d", i),
			BeneficiaryID: fmt.Sprintf("benef-%03d", i),
			Timestamp:     base.Add(time.Duration(i) * time.Minute),
		}
	}
	return batch
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAmountStatistics(t *testing.T) {
	engine := NewEngine(Config{})

	t.Run("HundredToThousand", func(t *testing.T) {
		// Filtering disabled so the interpolation bounds are visible on the
		// raw distribution.
		unfiltered := NewEngine(Config{OutlierPercentile: 100})
		amounts := []float64{100, 200, 300, 400, 500, 600, 700, 800, 900, 1000}
		s := unfiltered.AmountStatistics(batchFromAmounts(amounts))

		if s.Median < 500 || s.Median > 600 {
			t.Errorf("median = %v, want within [500, 600]", s.Median)
		}
		if s.P95 < 900 || s.P95 > 1000 {
			t.Errorf("p95 = %v, want within [900, 1000]", s.P95)
		}
		if s.P99 < 950 {
			t.Errorf("p99 = %v, want >= 950", s.P99)
		}
		if !almostEqual(s.Mean, 550) {
			t.Errorf("mean = %v, want 550", s.Mean)
		}
		if s.Min != 100 || s.Max != 1000 {
			t.Errorf("min/max = %v/%v, want 100/1000", s.Min, s.Max)
		}

		// Percentile ordering invariant.
		if !(s.Min <= s.P25 && s.P25 <= s.Median && s.Median <= s.P75 &&
			s.P75 <= s.P95 && s.P95 <= s.P99 && s.P99 <= s.Max) {
			t.Errorf("percentiles out of order: %+v", s)
		}
	})

	t.Run("OutlierFiltered", func(t *testing.T) {
		amounts := make([]float64, 0, 201)
		for i := 1; i <= 200; i++ {
			amounts = append(amounts, float64(i))
		}
		amounts = append(amounts, 1_000_000)

		s := engine.AmountStatistics(batchFromAmounts(amounts))
		if s.Max > 200 {
			t.Errorf("max = %v, outlier was not filtered", s.Max)
		}
	})

	t.Run("ZeroVariance", func(t *testing.T) {
		s := engine.AmountStatistics(batchFromAmounts([]float64{250, 250, 250, 250}))
		if s.Std != 0 {
			t.Errorf("std = %v, want 0", s.Std)
		}
		if s.Median != 250 || s.Min != 250 || s.Max != 250 {
			t.Errorf("degenerate stats wrong: %+v", s)
		}
	})

	t.Run("EmptyBatch", func(t *testing.T) {
		s := engine.AmountStatistics(domain.Batch{})
		if s != (AmountStats{}) {
			t.Errorf("expected zero stats for empty batch, got %+v", s)
		}
	})

	t.Run("PopulationStd", func(t *testing.T) {
		// Population std of [2, 4, 4, 4, 5, 5, 7, 9] is exactly 2.
		unfiltered := NewEngine(Config{OutlierPercentile: 100})
		s := unfiltered.AmountStatistics(batchFromAmounts([]float64{2, 4, 4, 4, 5, 5, 7, 9}))
		if !almostEqual(s.Std, 2) {
			t.Errorf("std = %v, want 2", s.Std)
		}
	})
}

func TestVelocityStatistics(t *testing.T) {
	engine := NewEngine(Config{})

	day1 := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	batch := domain.Batch{
		{Amount: 10, SenderID: "alice", BeneficiaryID: "x", Timestamp: day1},
		{Amount: 10, SenderID: "alice", BeneficiaryID: "x", Timestamp: day1.Add(time.Hour)},
		{Amount: 10, SenderID: "alice", BeneficiaryID: "x", Timestamp: day1.Add(2 * time.Hour)},
		{Amount: 10, SenderID: "alice", BeneficiaryID: "x", Timestamp: day2},
		{Amount: 10, SenderID: "bob", BeneficiaryID: "y", Timestamp: day1},
	}

	// Daily counts: alice/day1=3, alice/day2=1, bob/day1=1.
	s := engine.VelocityStatistics(batch)
	if s.Median24h != 1 {
		t.Errorf("median = %v, want 1", s.Median24h)
	}
	if !almostEqual(s.Mean24h, 5.0/3.0) {
		t.Errorf("mean = %v, want 5/3", s.Mean24h)
	}
	if !almostEqual(s.P9524h, 2.8) {
		t.Errorf("p95 = %v, want 2.8", s.P9524h)
	}

	t.Run("TimezoneNormalized", func(t *testing.T) {
		offset := time.FixedZone("UTC+5", 5*3600)
		// 02:00 at +05 is 21:00 the previous day in UTC; both rows land on
		// the same UTC date for the same sender.
		sameDay := domain.Batch{
			{SenderID: "carol", BeneficiaryID: "z", Timestamp: time.Date(2026, 8, 25, 2, 0, 0, 0, offset)},
			{SenderID: "carol", BeneficiaryID: "z", Timestamp: time.Date(2026, 8, 24, 22, 0, 0, 0, time.UTC)},
		}
		v := engine.VelocityStatistics(sameDay)
		if v.Median24h != 2 {
			t.Errorf("median = %v, want 2 (rows should share a UTC date)", v.Median24h)
		}
	})

	t.Run("EmptyBatch", func(t *testing.T) {
		if s := engine.VelocityStatistics(domain.Batch{}); s != (VelocityStats{}) {
			t.Errorf("expected zero stats, got %+v", s)
		}
	})
}

func TestTemporalPatterns(t *testing.T) {
	engine := NewEngine(Config{})

	monday := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC) // a Monday
	wednesday := monday.Add(48 * time.Hour)

	batch := domain.Batch{
		{SenderID: "a", BeneficiaryID: "x", Timestamp: monday.Add(9 * time.Hour)},
		{SenderID: "b", BeneficiaryID: "x", Timestamp: monday.Add(9*time.Hour + 10*time.Minute)},
		{SenderID: "c", BeneficiaryID: "x", Timestamp: monday.Add(9*time.Hour + 20*time.Minute)},
		{SenderID: "d", BeneficiaryID: "x", Timestamp: monday.Add(12 * time.Hour)},
		{SenderID: "e", BeneficiaryID: "x", Timestamp: wednesday.Add(15 * time.Hour)},
	}

	// Hour counts: 9h=3, 12h=1, 15h=1 → mean 5/3, only hour 9 is peak.
	// Day counts: Monday=4, Wednesday=1 → mean 2.5, only Monday (0) is peak.
	s := engine.TemporalPatterns(batch)

	if len(s.PeakHours) != 1 || s.PeakHours[0] != 9 {
		t.Errorf("peak hours = %v, want [9]", s.PeakHours)
	}
	if len(s.PeakDays) != 1 || s.PeakDays[0] != 0 {
		t.Errorf("peak days = %v, want [0] (Monday)", s.PeakDays)
	}

	t.Run("UniformActivityHasNoPeaks", func(t *testing.T) {
		uniform := domain.Batch{
			{SenderID: "a", BeneficiaryID: "x", Timestamp: monday.Add(8 * time.Hour)},
			{SenderID: "b", BeneficiaryID: "x", Timestamp: monday.Add(10 * time.Hour)},
			{SenderID: "c", BeneficiaryID: "x", Timestamp: monday.Add(14 * time.Hour)},
		}
		u := engine.TemporalPatterns(uniform)
		// Every hour has count 1 == mean; strictly-greater means no peaks.
		if len(u.PeakHours) != 0 {
			t.Errorf("peak hours = %v, want none for uniform counts", u.PeakHours)
		}
	})
}

func TestPopulationStatistics(t *testing.T) {
	engine := NewEngine(Config{})

	ts := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	batch := domain.Batch{
		{SenderID: "s1", BeneficiaryID: "b1", Timestamp: ts},
		{SenderID: "s1", BeneficiaryID: "b2", Timestamp: ts},
		{SenderID: "s2", BeneficiaryID: "b1", Timestamp: ts},
	}

	s := engine.PopulationStatistics(batch)
	if s.TransactionCount != 3 {
		t.Errorf("transaction count = %d, want 3", s.TransactionCount)
	}
	if s.UniqueSenders != 2 {
		t.Errorf("unique senders = %d, want 2", s.UniqueSenders)
	}
	if s.UniqueBeneficiaries != 2 {
		t.Errorf("unique beneficiaries = %d, want 2", s.UniqueBeneficiaries)
	}
}

func TestFraudRate(t *testing.T) {
	tests := []struct {
		name   string
		labels []bool
		want   float64
	}{
		{"NoLabels", nil, 0.0},
		{"AllLegitimate", []bool{false, false, false}, 0.0},
		{"Quarter", []bool{true, false, false, false}, 0.25},
		{"AllFraud", []bool{true, true}, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FraudRate(tt.labels); !almostEqual(got, tt.want) {
				t.Errorf("FraudRate(%v) = %v, want %v", tt.labels, got, tt.want)
			}
		})
	}
}

func TestQuantile(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		q      float64
		want   float64
	}{
		{"Empty", nil, 0.5, 0},
		{"Single", []float64{42}, 0.95, 42},
		{"MedianEven", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"MedianOdd", []float64{1, 2, 3}, 0.5, 2},
		{"Interpolated", []float64{10, 20}, 0.25, 12.5},
		{"Floor", []float64{1, 2, 3}, 0, 1},
		{"Ceil", []float64{1, 2, 3}, 1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := quantile(tt.sorted, tt.q); !almostEqual(got, tt.want) {
				t.Errorf("quantile(%v, %v) = %v, want %v", tt.sorted, tt.q, got, tt.want)
			}
		})
	}
}
