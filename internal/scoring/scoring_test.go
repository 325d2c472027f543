package scoring

import (
	"errors"
	"math"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func testProfile() *domain.CorridorProfile {
	return &domain.CorridorProfile{
		CorridorCode:      "US-MX",
		MedianAmount:      100,
		P95Amount:         500,
		P99Amount:         1000,
		MedianVelocity24h: 2,
		P95Velocity24h:    8,
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScoreAmount(t *testing.T) {
	profile := testProfile()

	t.Run("AtOrBelowMedian", func(t *testing.T) {
		for _, v := range []float64{0, 50, 100} {
			got, err := Score(v, profile, FeatureAmount)
			if err != nil {
				t.Fatalf("Score(%v): %v", v, err)
			}
			if got != 0 {
				t.Errorf("Score(%v) = %v, want 0", v, got)
			}
		}
	})

	t.Run("MedianToP95Ramp", func(t *testing.T) {
		// Midpoint of [100, 500] scores half of 0.5.
		got, err := Score(300, profile, FeatureAmount)
		if err != nil {
			t.Fatalf("Score: %v", err)
		}
		if !almostEqual(got, 0.25) {
			t.Errorf("Score(300) = %v, want 0.25", got)
		}
	})

	t.Run("P95ToP99Ramp", func(t *testing.T) {
		got, err := Score(750, profile, FeatureAmount)
		if err != nil {
			t.Fatalf("Score: %v", err)
		}
		if !almostEqual(got, 0.7) {
			t.Errorf("Score(750) = %v, want 0.7", got)
		}
	})

	t.Run("ContinuousAtAnchors", func(t *testing.T) {
		eps := 1e-6
		anchors := []struct {
			name  string
			point float64
		}{
			{"P95", 500},
			{"P99", 1000},
		}
		for _, a := range anchors {
			below, _ := Score(a.point-eps, profile, FeatureAmount)
			at, _ := Score(a.point, profile, FeatureAmount)
			above, _ := Score(a.point+eps, profile, FeatureAmount)
			if math.Abs(at-below) > 1e-3 || math.Abs(above-at) > 1e-3 {
				t.Errorf("%s discontinuity: %v / %v / %v", a.name, below, at, above)
			}
		}
	})

	t.Run("TailApproachesOne", func(t *testing.T) {
		prev, _ := Score(1000, profile, FeatureAmount)
		if !almostEqual(prev, 0.9) {
			t.Errorf("Score(p99) = %v, want 0.9", prev)
		}
		for _, v := range []float64{2000, 5000, 50000, 1e9} {
			got, _ := Score(v, profile, FeatureAmount)
			if got < prev {
				t.Errorf("Score(%v) = %v decreased from %v", v, got, prev)
			}
			if got > 1.0 {
				t.Errorf("Score(%v) = %v exceeds 1", v, got)
			}
			prev = got
		}
		far, _ := Score(1e9, profile, FeatureAmount)
		if far < 0.999 {
			t.Errorf("Score(1e9) = %v, want close to 1", far)
		}
	})

	t.Run("Monotonic", func(t *testing.T) {
		prev := -1.0
		for v := 0.0; v <= 3000; v += 10 {
			got, err := Score(v, profile, FeatureAmount)
			if err != nil {
				t.Fatalf("Score(%v): %v", v, err)
			}
			if got < prev {
				t.Fatalf("Score(%v) = %v decreased from %v", v, got, prev)
			}
			prev = got
		}
	})
}

func TestScoreVelocity(t *testing.T) {
	profile := testProfile()

	// p99 is approximated as 1.5 * p95 = 12.
	t.Run("Anchors", func(t *testing.T) {
		tests := []struct {
			value float64
			want  float64
		}{
			{2, 0},    // median
			{5, 0.25}, // midpoint of [2, 8]
			{8, 0.5},  // p95
			{10, 0.7}, // midpoint of [8, 12]
			{12, 0.9}, // approximated p99
		}
		for _, tt := range tests {
			got, err := Score(tt.value, profile, FeatureVelocity)
			if err != nil {
				t.Fatalf("Score(%v): %v", tt.value, err)
			}
			if !almostEqual(got, tt.want) {
				t.Errorf("Score(%v) = %v, want %v", tt.value, got, tt.want)
			}
		}
	})
}

func TestScoreDegenerate(t *testing.T) {
	t.Run("UniformCorridor", func(t *testing.T) {
		// Every anchor equal: anything above scores through the tail.
		flat := &domain.CorridorProfile{
			MedianAmount: 250, P95Amount: 250, P99Amount: 250,
		}
		got, err := Score(250, flat, FeatureAmount)
		if err != nil {
			t.Fatalf("Score: %v", err)
		}
		if got != 0 {
			t.Errorf("Score(median) = %v, want 0", got)
		}
		above, err := Score(300, flat, FeatureAmount)
		if err != nil {
			t.Fatalf("Score: %v", err)
		}
		if above < 0.9 || above > 1.0 {
			t.Errorf("Score(300) = %v, want tail score in [0.9, 1]", above)
		}
	})

	t.Run("ZeroProfile", func(t *testing.T) {
		zero := &domain.CorridorProfile{}
		got, err := Score(100, zero, FeatureAmount)
		if err != nil {
			t.Fatalf("Score: %v", err)
		}
		if got != 1.0 {
			t.Errorf("Score(100) = %v, want 1 when all anchors are zero", got)
		}
	})

	t.Run("EqualP95P99", func(t *testing.T) {
		p := &domain.CorridorProfile{
			MedianAmount: 100, P95Amount: 500, P99Amount: 500,
		}
		mid, err := Score(300, p, FeatureAmount)
		if err != nil {
			t.Fatalf("Score: %v", err)
		}
		if !almostEqual(mid, 0.25) {
			t.Errorf("Score(300) = %v, want 0.25", mid)
		}
		tail, err := Score(600, p, FeatureAmount)
		if err != nil {
			t.Fatalf("Score: %v", err)
		}
		if tail < 0.9 || tail > 1.0 {
			t.Errorf("Score(600) = %v, want tail score", tail)
		}
	})
}

func TestScoreErrors(t *testing.T) {
	t.Run("UnknownFeature", func(t *testing.T) {
		_, err := Score(10, testProfile(), Feature("entropy"))
		if !errors.Is(err, ErrUnknownFeature) {
			t.Errorf("err = %v, want ErrUnknownFeature", err)
		}
	})

	t.Run("NilProfile", func(t *testing.T) {
		if _, err := Score(10, nil, FeatureAmount); err == nil {
			t.Error("expected an error for a nil profile")
		}
	})
}
