// Package scoring maps raw transaction values to anomaly scores against a
// corridor profile.
package scoring

import (
	"errors"
	"fmt"
	"math"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Feature selects which profile distribution a value is scored against.
type Feature string

const (
	FeatureAmount   Feature = "amount"
	FeatureVelocity Feature = "velocity"
)

var ErrUnknownFeature = errors.New("unknown feature")

// referencePoints are the profile anchors a score is interpolated between.
type referencePoints struct {
	median float64
	p95    float64
	p99    float64
}

// Score normalizes a raw value against a corridor profile, returning an
// anomaly score in [0, 1]. Values at or below the median score 0; the score
// ramps linearly to 0.5 at the 95th percentile, to 0.9 at the 99th, and
// approaches 1 asymptotically beyond that.
//
// Velocity profiles carry no p99, so it is approximated as 1.5x the p95.
// Degenerate anchors (equal or inverted reference points from uniform
// corridors) make a segment empty; the value falls through to the next one.
func Score(value float64, profile *domain.CorridorProfile, feature Feature) (float64, error) {
	if profile == nil {
		return 0, errors.New("profile is required")
	}

	var ref referencePoints
	switch feature {
	case FeatureAmount:
		ref = referencePoints{
			median: profile.MedianAmount,
			p95:    profile.P95Amount,
			p99:    profile.P99Amount,
		}
	case FeatureVelocity:
		ref = referencePoints{
			median: profile.MedianVelocity24h,
			p95:    profile.P95Velocity24h,
			p99:    profile.P95Velocity24h * 1.5,
		}
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFeature, feature)
	}

	return normalize(value, ref), nil
}

func normalize(value float64, ref referencePoints) float64 {
	if value <= ref.median {
		return 0.0
	}
	if value <= ref.p95 && ref.p95 > ref.median {
		return 0.5 * (value - ref.median) / (ref.p95 - ref.median)
	}
	if value <= ref.p99 && ref.p99 > ref.p95 {
		return 0.5 + 0.4*(value-ref.p95)/(ref.p99-ref.p95)
	}
	if ref.p99 <= 0 {
		return 1.0
	}
	score := 0.9 + 0.1*(1-math.Exp(-(value-ref.p99)/ref.p99))
	return math.Min(score, 1.0)
}
