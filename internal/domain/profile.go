// Package domain defines the core interfaces and types for Kestrel.
package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRecord indicates a serialized profile record that fails schema
// validation at the decoding boundary.
var ErrInvalidRecord = errors.New("invalid profile record")

// CorridorProfile is the statistical baseline for one payment corridor at one
// version. A profile is an immutable snapshot: updates blend into a fresh
// value, they never mutate a stored profile in place.
type CorridorProfile struct {
	CorridorCode string

	// Amount distribution
	MedianAmount float64
	MeanAmount   float64
	StdAmount    float64
	P25Amount    float64
	P75Amount    float64
	P95Amount    float64
	P99Amount    float64
	MinAmount    float64
	MaxAmount    float64

	// Velocity distribution (transactions per sender per 24h)
	MedianVelocity24h float64
	MeanVelocity24h   float64
	P95Velocity24h    float64

	// Temporal patterns. Hours are 0-23, days are 0=Monday..6=Sunday.
	PeakHours []int
	PeakDays  []int

	// Population statistics
	TransactionCount    int64
	UniqueSenders       int64
	UniqueBeneficiaries int64

	// Risk baseline
	BaselineFraudRate float64

	// Metadata
	ProfileDate    time.Time
	Version        string // ISO week, e.g. "2026-W35"
	DataWindowDays int
}

// ProfileRecord is the wire/storage representation of a CorridorProfile,
// grouped the way downstream consumers read it.
type ProfileRecord struct {
	CorridorCode       string             `json:"corridor_code"`
	AmountDistribution AmountDistribution `json:"amount_distribution"`
	VelocityDist       VelocityDist       `json:"velocity_distribution"`
	TemporalPatterns   TemporalPatterns   `json:"temporal_patterns"`
	Population         Population         `json:"population"`
	Risk               Risk               `json:"risk"`
	Metadata           ProfileMeta        `json:"metadata"`
}

// AmountDistribution holds the amount statistic group.
type AmountDistribution struct {
	Median float64 `json:"median"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	P25    float64 `json:"p25"`
	P75    float64 `json:"p75"`
	P95    float64 `json:"p95"`
	P99    float64 `json:"p99"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// VelocityDist holds the per-sender daily frequency statistic group.
type VelocityDist struct {
	Median24h float64 `json:"median_24h"`
	Mean24h   float64 `json:"mean_24h"`
	P9524h    float64 `json:"p95_24h"`
}

// TemporalPatterns holds peak activity periods.
type TemporalPatterns struct {
	PeakHours []int `json:"peak_hours"`
	PeakDays  []int `json:"peak_days"`
}

// Population holds batch population counts.
type Population struct {
	TransactionCount    int64 `json:"transaction_count"`
	UniqueSenders       int64 `json:"unique_senders"`
	UniqueBeneficiaries int64 `json:"unique_beneficiaries"`
}

// Risk holds the corridor risk baseline.
type Risk struct {
	BaselineFraudRate float64 `json:"baseline_fraud_rate"`
}

// ProfileMeta holds profile provenance.
type ProfileMeta struct {
	ProfileDate    time.Time `json:"profile_date"`
	Version        string    `json:"version"`
	DataWindowDays int       `json:"data_window_days"`
}

// ToRecord converts a profile to its grouped wire representation.
func (p *CorridorProfile) ToRecord() *ProfileRecord {
	return &ProfileRecord{
		CorridorCode: p.CorridorCode,
		AmountDistribution: AmountDistribution{
			Median: p.MedianAmount,
			Mean:   p.MeanAmount,
			Std:    p.StdAmount,
			P25:    p.P25Amount,
			P75:    p.P75Amount,
			P95:    p.P95Amount,
			P99:    p.P99Amount,
			Min:    p.MinAmount,
			Max:    p.MaxAmount,
		},
		VelocityDist: VelocityDist{
			Median24h: p.MedianVelocity24h,
			Mean24h:   p.MeanVelocity24h,
			P9524h:    p.P95Velocity24h,
		},
		TemporalPatterns: TemporalPatterns{
			PeakHours: p.PeakHours,
			PeakDays:  p.PeakDays,
		},
		Population: Population{
			TransactionCount:    p.TransactionCount,
			UniqueSenders:       p.UniqueSenders,
			UniqueBeneficiaries: p.UniqueBeneficiaries,
		},
		Risk: Risk{
			BaselineFraudRate: p.BaselineFraudRate,
		},
		Metadata: ProfileMeta{
			ProfileDate:    p.ProfileDate,
			Version:        p.Version,
			DataWindowDays: p.DataWindowDays,
		},
	}
}

// FromRecord converts a wire record back to a profile, validating the
// schema. Malformed records fail here with ErrInvalidRecord rather than as a
// late field-access surprise downstream.
func FromRecord(r *ProfileRecord) (*CorridorProfile, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}
	if r.CorridorCode == "" {
		return nil, fmt.Errorf("%w: corridor_code is required", ErrInvalidRecord)
	}
	if r.Metadata.Version == "" {
		return nil, fmt.Errorf("%w: metadata.version is required", ErrInvalidRecord)
	}
	if r.Metadata.DataWindowDays <= 0 {
		return nil, fmt.Errorf("%w: metadata.data_window_days must be positive", ErrInvalidRecord)
	}
	if r.Population.TransactionCount < 0 {
		return nil, fmt.Errorf("%w: population.transaction_count must be non-negative", ErrInvalidRecord)
	}

	return &CorridorProfile{
		CorridorCode:        r.CorridorCode,
		MedianAmount:        r.AmountDistribution.Median,
		MeanAmount:          r.AmountDistribution.Mean,
		StdAmount:           r.AmountDistribution.Std,
		P25Amount:           r.AmountDistribution.P25,
		P75Amount:           r.AmountDistribution.P75,
		P95Amount:           r.AmountDistribution.P95,
		P99Amount:           r.AmountDistribution.P99,
		MinAmount:           r.AmountDistribution.Min,
		MaxAmount:           r.AmountDistribution.Max,
		MedianVelocity24h:   r.VelocityDist.Median24h,
		MeanVelocity24h:     r.VelocityDist.Mean24h,
		P95Velocity24h:      r.VelocityDist.P9524h,
		PeakHours:           r.TemporalPatterns.PeakHours,
		PeakDays:            r.TemporalPatterns.PeakDays,
		TransactionCount:    r.Population.TransactionCount,
		UniqueSenders:       r.Population.UniqueSenders,
		UniqueBeneficiaries: r.Population.UniqueBeneficiaries,
		BaselineFraudRate:   r.Risk.BaselineFraudRate,
		ProfileDate:         r.Metadata.ProfileDate,
		Version:             r.Metadata.Version,
		DataWindowDays:      r.Metadata.DataWindowDays,
	}, nil
}

// MarshalProfile serializes a profile to its grouped JSON form.
func MarshalProfile(p *CorridorProfile) ([]byte, error) {
	return json.Marshal(p.ToRecord())
}

// UnmarshalProfile deserializes and validates a grouped JSON profile.
func UnmarshalProfile(data []byte) (*CorridorProfile, error) {
	var r ProfileRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return FromRecord(&r)
}
