// Package validate gates profiles before they reach the store.
//
// Validation separates errors from warnings: errors block a save, warnings
// accompany an accepted profile so operators can review drift and data
// quality without losing a refresh cycle.
package validate

import (
	"fmt"
	"math"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Validator checks structural soundness, plausibility bounds, and
// refresh-over-refresh drift. Operator-defined CEL checks run last and only
// ever add warnings.
type Validator struct {
	cfg    domain.ValidatorConfig
	checks *CheckEngine
}

// NewValidator creates a validator and compiles any configured custom checks.
func NewValidator(cfg domain.ValidatorConfig) (*Validator, error) {
	if cfg.MaxDriftPercent <= 0 {
		cfg.MaxDriftPercent = 25
	}
	if cfg.MinTransactionCount <= 0 {
		cfg.MinTransactionCount = 100
	}
	if cfg.MaxFraudRate <= 0 {
		cfg.MaxFraudRate = 0.10
	}
	if cfg.MaxMedianAmount <= 0 {
		cfg.MaxMedianAmount = 100_000
	}
	if cfg.MaxMedianVelocity <= 0 {
		cfg.MaxMedianVelocity = 50
	}

	checks, err := NewCheckEngine()
	if err != nil {
		return nil, err
	}
	if err := checks.LoadChecks(cfg.CustomChecks); err != nil {
		return nil, err
	}

	return &Validator{cfg: cfg, checks: checks}, nil
}

// ReloadChecks swaps the custom check set, for hot-reloading from config.
func (v *Validator) ReloadChecks(configs []domain.CheckConfig) error {
	return v.checks.LoadChecks(configs)
}

// ChecksCount returns the number of compiled custom checks.
func (v *Validator) ChecksCount() int {
	return v.checks.ChecksCount()
}

// ValidateProfile checks a single profile in isolation.
func (v *Validator) ValidateProfile(profile *domain.CorridorProfile) domain.ValidationResult {
	var result domain.ValidationResult

	if profile == nil {
		result.Errors = append(result.Errors, "profile is required")
		return result
	}

	// Required fields
	if profile.CorridorCode == "" {
		result.Errors = append(result.Errors, "corridor_code is required")
	}
	if profile.Version == "" {
		result.Errors = append(result.Errors, "version is required")
	}

	// Bounds errors
	if profile.MedianAmount <= 0 {
		result.Errors = append(result.Errors,
			fmt.Sprintf("median_amount must be positive: %v", profile.MedianAmount))
	}
	if profile.MedianVelocity24h < 0 {
		result.Errors = append(result.Errors,
			fmt.Sprintf("median_velocity_24h cannot be negative: %v", profile.MedianVelocity24h))
	}
	if profile.BaselineFraudRate < 0 || profile.BaselineFraudRate > 1 {
		result.Errors = append(result.Errors,
			fmt.Sprintf("baseline_fraud_rate %v outside [0, 1]", profile.BaselineFraudRate))
	}

	// Consistency errors: the distribution summary must be internally ordered.
	ordered := profile.MinAmount <= profile.P25Amount &&
		profile.P25Amount <= profile.MedianAmount &&
		profile.MedianAmount <= profile.P75Amount &&
		profile.P75Amount <= profile.P95Amount &&
		profile.P95Amount <= profile.P99Amount &&
		profile.P99Amount <= profile.MaxAmount
	if !ordered {
		result.Errors = append(result.Errors, "amount percentiles are out of order")
	}
	if profile.MedianVelocity24h > profile.P95Velocity24h {
		result.Errors = append(result.Errors,
			fmt.Sprintf("median_velocity_24h %v exceeds p95_velocity_24h %v",
				profile.MedianVelocity24h, profile.P95Velocity24h))
	}

	// Plausibility warnings; always reported, even alongside errors
	if profile.TransactionCount < v.cfg.MinTransactionCount {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("transaction_count %d below recommended minimum %d",
				profile.TransactionCount, v.cfg.MinTransactionCount))
	}
	if profile.BaselineFraudRate > v.cfg.MaxFraudRate {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("baseline_fraud_rate %v exceeds %v", profile.BaselineFraudRate, v.cfg.MaxFraudRate))
	}
	if profile.MedianAmount > v.cfg.MaxMedianAmount {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("median_amount %v exceeds %v", profile.MedianAmount, v.cfg.MaxMedianAmount))
	}
	if profile.MedianVelocity24h > v.cfg.MaxMedianVelocity {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("median_velocity_24h %v exceeds %v", profile.MedianVelocity24h, v.cfg.MaxMedianVelocity))
	}
	if isRoundAmount(profile.MedianAmount) {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("median_amount %v is suspiciously round; possible synthetic or test data", profile.MedianAmount))
	}
	if profile.StdAmount == 0 && profile.TransactionCount > 1 {
		result.Warnings = append(result.Warnings, "std_amount is zero with multiple transactions")
	}
	if profile.TransactionCount > 0 && profile.UniqueSenders > 0 {
		ratio := float64(profile.TransactionCount) / float64(profile.UniqueSenders)
		if ratio < 1 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("more unique senders (%d) than transactions (%d); possible data issue",
					profile.UniqueSenders, profile.TransactionCount))
		} else if ratio > 100 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("transactions per sender ratio %.1f is unusually concentrated", ratio))
		}
	}

	result.Warnings = append(result.Warnings, v.checks.Evaluate(profile)...)

	return result
}

// ValidateUpdate checks a refreshed profile against the one it replaces. The
// new profile is first validated in isolation; a corridor code mismatch then
// invalidates the comparison outright, and drift beyond the configured
// percentage produces a warning per metric.
func (v *Validator) ValidateUpdate(oldProfile, newProfile *domain.CorridorProfile) domain.ValidationResult {
	if oldProfile == nil || newProfile == nil {
		var result domain.ValidationResult
		result.Errors = append(result.Errors, "both profiles are required")
		return result
	}

	result := v.ValidateProfile(newProfile)

	if oldProfile.CorridorCode != newProfile.CorridorCode {
		result.Errors = append(result.Errors,
			fmt.Sprintf("corridor code mismatch: %s vs %s",
				oldProfile.CorridorCode, newProfile.CorridorCode))
		return result
	}

	result.Warnings = append(result.Warnings, v.DriftWarnings(oldProfile, newProfile)...)

	return result
}

// DriftWarnings compares the drift-tracked metrics of two profiles and
// returns one warning per metric that moved beyond the configured threshold.
// Exposed so callers can publish drift events without re-running the full
// update validation.
func (v *Validator) DriftWarnings(oldProfile, newProfile *domain.CorridorProfile) []string {
	driftMetrics := []struct {
		name     string
		oldValue float64
		newValue float64
	}{
		{"median_amount", oldProfile.MedianAmount, newProfile.MedianAmount},
		{"p95_amount", oldProfile.P95Amount, newProfile.P95Amount},
		{"median_velocity_24h", oldProfile.MedianVelocity24h, newProfile.MedianVelocity24h},
		{"baseline_fraud_rate", oldProfile.BaselineFraudRate, newProfile.BaselineFraudRate},
	}

	var warnings []string
	for _, m := range driftMetrics {
		// A zero baseline has no meaningful relative drift.
		if m.oldValue == 0 {
			continue
		}
		driftPct := math.Abs(m.newValue-m.oldValue) / math.Abs(m.oldValue) * 100
		if driftPct > v.cfg.MaxDriftPercent {
			warnings = append(warnings,
				fmt.Sprintf("%s drifted %.1f%% (%.4g to %.4g), threshold %.0f%%",
					m.name, driftPct, m.oldValue, m.newValue, v.cfg.MaxDriftPercent))
		}
	}
	return warnings
}

// isRoundAmount reports whether a median landed exactly on a common round
// figure. Real corridor medians interpolate to fractional values; an exact
// round number usually means synthetic data slipped into the window.
func isRoundAmount(v float64) bool {
	switch v {
	case 100, 200, 500, 1000:
		return true
	}
	return false
}
