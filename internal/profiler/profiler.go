// Package profiler builds and refreshes corridor profiles from transaction
// batches.
package profiler

import (
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/stats"
)

var (
	ErrInvalidInput = errors.New("invalid input")
)

// Generator orchestrates the statistics engine to produce full corridor
// profiles, and implements the blended refresh policy.
type Generator struct {
	engine *stats.Engine
	cfg    domain.ProfilerConfig
}

// NewGenerator creates a profile generator. Zero-valued thresholds fall back
// to production defaults (28-day window, 1000-row minimum, 99.5 outlier
// percentile, 0.3 blend factor).
func NewGenerator(cfg domain.ProfilerConfig) *Generator {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 28
	}
	if cfg.MinTransactions <= 0 {
		cfg.MinTransactions = 1000
	}
	if cfg.OutlierPercentile <= 0 {
		cfg.OutlierPercentile = 99.5
	}
	if cfg.BlendFactor <= 0 || cfg.BlendFactor > 1 {
		cfg.BlendFactor = 0.3
	}

	return &Generator{
		engine: stats.NewEngine(stats.Config{OutlierPercentile: cfg.OutlierPercentile}),
		cfg:    cfg,
	}
}

// BlendFactor returns the configured default blend factor.
func (g *Generator) BlendFactor() float64 {
	return g.cfg.BlendFactor
}

// Generate builds a corridor profile from a batch. Batches below the minimum
// sample size still produce a profile; the shortfall is reported as an
// advisory warning, never an error.
func (g *Generator) Generate(batch domain.Batch, corridorCode string, fraudLabels []bool) (*domain.CorridorProfile, []string, error) {
	if corridorCode == "" {
		return nil, nil, fmt.Errorf("%w: corridor code is required", ErrInvalidInput)
	}
	if fraudLabels != nil && len(fraudLabels) != len(batch) {
		return nil, nil, fmt.Errorf("%w: fraud labels length %d does not match batch length %d",
			ErrInvalidInput, len(fraudLabels), len(batch))
	}

	var warnings []string
	if len(batch) < g.cfg.MinTransactions {
		warnings = append(warnings, fmt.Sprintf(
			"corridor %s has only %d transactions; minimum recommended is %d",
			corridorCode, len(batch), g.cfg.MinTransactions))
	}

	amount := g.engine.AmountStatistics(batch)
	velocity := g.engine.VelocityStatistics(batch)
	temporal := g.engine.TemporalPatterns(batch)
	population := g.engine.PopulationStatistics(batch)

	now := time.Now().UTC()

	profile := &domain.CorridorProfile{
		CorridorCode: corridorCode,

		MedianAmount: amount.Median,
		MeanAmount:   amount.Mean,
		StdAmount:    amount.Std,
		P25Amount:    amount.P25,
		P75Amount:    amount.P75,
		P95Amount:    amount.P95,
		P99Amount:    amount.P99,
		MinAmount:    amount.Min,
		MaxAmount:    amount.Max,

		MedianVelocity24h: velocity.Median24h,
		MeanVelocity24h:   velocity.Mean24h,
		P95Velocity24h:    velocity.P9524h,

		PeakHours: temporal.PeakHours,
		PeakDays:  temporal.PeakDays,

		TransactionCount:    population.TransactionCount,
		UniqueSenders:       population.UniqueSenders,
		UniqueBeneficiaries: population.UniqueBeneficiaries,

		BaselineFraudRate: stats.FraudRate(fraudLabels),

		ProfileDate:    now,
		Version:        ISOWeekVersion(now),
		DataWindowDays: g.cfg.WindowDays,
	}

	return profile, warnings, nil
}

// Update refreshes an existing profile with a new batch using exponential
// smoothing. blendFactor is the weight given to the new data; 0 keeps the
// existing profile's metrics, 1 replaces them.
//
// Distribution metrics move slowly, extremes only widen, temporal patterns
// are replaced outright, and the transaction count accumulates. Unique sender
// and beneficiary counts carry over unchanged; true deduplication across
// batches would need a persisted identity set per corridor.
func (g *Generator) Update(newBatch domain.Batch, existing *domain.CorridorProfile, fraudLabels []bool, blendFactor float64) (*domain.CorridorProfile, []string, error) {
	if existing == nil {
		return nil, nil, fmt.Errorf("%w: existing profile is required", ErrInvalidInput)
	}
	if blendFactor < 0 || blendFactor > 1 {
		return nil, nil, fmt.Errorf("%w: blend factor %v outside [0, 1]", ErrInvalidInput, blendFactor)
	}

	fresh, warnings, err := g.Generate(newBatch, existing.CorridorCode, fraudLabels)
	if err != nil {
		return nil, nil, err
	}

	blended := &domain.CorridorProfile{
		CorridorCode: existing.CorridorCode,

		// Amount distribution - blended
		MedianAmount: blend(existing.MedianAmount, fresh.MedianAmount, blendFactor),
		MeanAmount:   blend(existing.MeanAmount, fresh.MeanAmount, blendFactor),
		StdAmount:    blend(existing.StdAmount, fresh.StdAmount, blendFactor),
		P25Amount:    blend(existing.P25Amount, fresh.P25Amount, blendFactor),
		P75Amount:    blend(existing.P75Amount, fresh.P75Amount, blendFactor),
		P95Amount:    blend(existing.P95Amount, fresh.P95Amount, blendFactor),
		P99Amount:    blend(existing.P99Amount, fresh.P99Amount, blendFactor),
		MinAmount:    min(existing.MinAmount, fresh.MinAmount),
		MaxAmount:    max(existing.MaxAmount, fresh.MaxAmount),

		// Velocity distribution - blended
		MedianVelocity24h: blend(existing.MedianVelocity24h, fresh.MedianVelocity24h, blendFactor),
		MeanVelocity24h:   blend(existing.MeanVelocity24h, fresh.MeanVelocity24h, blendFactor),
		P95Velocity24h:    blend(existing.P95Velocity24h, fresh.P95Velocity24h, blendFactor),

		// Temporal patterns - use new data
		PeakHours: fresh.PeakHours,
		PeakDays:  fresh.PeakDays,

		// Population - cumulative count, carried-over unique parties
		TransactionCount:    existing.TransactionCount + fresh.TransactionCount,
		UniqueSenders:       existing.UniqueSenders,
		UniqueBeneficiaries: existing.UniqueBeneficiaries,

		// Fraud rate - blended
		BaselineFraudRate: blend(existing.BaselineFraudRate, fresh.BaselineFraudRate, blendFactor),

		// Metadata - restamped
		ProfileDate:    fresh.ProfileDate,
		Version:        fresh.Version,
		DataWindowDays: g.cfg.WindowDays,
	}

	return blended, warnings, nil
}

// ISOWeekVersion formats a profile version string, e.g. "2026-W35".
func ISOWeekVersion(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// blend applies exponential smoothing between an old and a new value.
func blend(oldValue, newValue, blendFactor float64) float64 {
	return (1-blendFactor)*oldValue + blendFactor*newValue
}
