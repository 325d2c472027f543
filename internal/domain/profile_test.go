package domain

import (
	"errors"
	"testing"
	"time"
)

func sampleProfile() *CorridorProfile {
	return &CorridorProfile{
		CorridorCode:        "US-MX",
		MedianAmount:        347.5,
		MeanAmount:          412.8,
		StdAmount:           150.2,
		P25Amount:           150,
		P75Amount:           600,
		P95Amount:           1200,
		P99Amount:           2500,
		MinAmount:           10,
		MaxAmount:           3000,
		MedianVelocity24h:   2,
		MeanVelocity24h:     2.4,
		P95Velocity24h:      8,
		PeakHours:           []int{10, 14},
		PeakDays:            []int{0, 4},
		TransactionCount:    5000,
		UniqueSenders:       800,
		UniqueBeneficiaries: 650,
		BaselineFraudRate:   0.015,
		ProfileDate:         time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
		Version:             "2026-W35",
		DataWindowDays:      28,
	}
}

func TestProfileRoundTrip(t *testing.T) {
	original := sampleProfile()

	data, err := MarshalProfile(original)
	if err != nil {
		t.Fatalf("MarshalProfile failed: %v", err)
	}

	decoded, err := UnmarshalProfile(data)
	if err != nil {
		t.Fatalf("UnmarshalProfile failed: %v", err)
	}

	if decoded.CorridorCode != original.CorridorCode {
		t.Errorf("corridor = %q, want %q", decoded.CorridorCode, original.CorridorCode)
	}
	if decoded.MedianAmount != original.MedianAmount {
		t.Errorf("median = %v, want %v", decoded.MedianAmount, original.MedianAmount)
	}
	if decoded.Version != original.Version {
		t.Errorf("version = %q, want %q", decoded.Version, original.Version)
	}
	if len(decoded.PeakHours) != 2 || decoded.PeakHours[0] != 10 {
		t.Errorf("peak hours = %v", decoded.PeakHours)
	}
}

func TestFromRecordRejectsMalformed(t *testing.T) {
	valid := sampleProfile().ToRecord()

	t.Run("NilRecord", func(t *testing.T) {
		if _, err := FromRecord(nil); !errors.Is(err, ErrInvalidRecord) {
			t.Errorf("err = %v, want ErrInvalidRecord", err)
		}
	})

	t.Run("MissingCorridorCode", func(t *testing.T) {
		r := *valid
		r.CorridorCode = ""
		if _, err := FromRecord(&r); !errors.Is(err, ErrInvalidRecord) {
			t.Errorf("err = %v, want ErrInvalidRecord", err)
		}
	})

	t.Run("MissingVersion", func(t *testing.T) {
		r := *valid
		r.Metadata.Version = ""
		if _, err := FromRecord(&r); !errors.Is(err, ErrInvalidRecord) {
			t.Errorf("err = %v, want ErrInvalidRecord", err)
		}
	})

	t.Run("NonPositiveWindow", func(t *testing.T) {
		r := *valid
		r.Metadata.DataWindowDays = 0
		if _, err := FromRecord(&r); !errors.Is(err, ErrInvalidRecord) {
			t.Errorf("err = %v, want ErrInvalidRecord", err)
		}
	})

	t.Run("NegativeTransactionCount", func(t *testing.T) {
		r := *valid
		r.Population.TransactionCount = -1
		if _, err := FromRecord(&r); !errors.Is(err, ErrInvalidRecord) {
			t.Errorf("err = %v, want ErrInvalidRecord", err)
		}
	})
}

func TestUnmarshalProfileRejectsGarbage(t *testing.T) {
	if _, err := UnmarshalProfile([]byte(`{not json`)); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("err = %v, want ErrInvalidRecord", err)
	}
}
