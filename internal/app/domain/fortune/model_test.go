package fortune

import (
	"testing"

	"github.com/solji-labs/solji-program-sub000/internal/config"
)

func TestPickWalksBucketsInOrder(t *testing.T) {
	params := config.Default().Fortune

	// Regular table: 10/25/30/20/15. Rolls sit safely inside each bucket to
	// keep the expectations independent of float rounding at the edges.
	cases := []struct {
		roll float64
		want string
	}{
		{0.0, OutcomeGreatLuck},
		{0.05, OutcomeGreatLuck},
		{0.12, OutcomeGoodLuck},
		{0.34, OutcomeGoodLuck},
		{0.36, OutcomeNeutral},
		{0.64, OutcomeNeutral},
		{0.66, OutcomeBadLuck},
		{0.84, OutcomeBadLuck},
	}
	for _, tc := range cases {
		got, err := Pick(params.Regular, params.GreatBadLuckSplit, tc.roll)
		if err != nil {
			t.Fatalf("Pick(%v): %v", tc.roll, err)
		}
		if got != tc.want {
			t.Errorf("Pick(%v) = %q, want %q", tc.roll, got, tc.want)
		}
	}
}

func TestPickExpandsGreatBadLuck(t *testing.T) {
	params := config.Default().Fortune

	// The last 15% of the regular table expands into three equal thirds.
	cases := []struct {
		roll float64
		want string
	}{
		{0.86, OutcomeLateFortune},
		{0.89, OutcomeLateFortune},
		{0.91, OutcomeMisfortune},
		{0.94, OutcomeMisfortune},
		{0.96, OutcomeGreatMisfortune},
		{0.999, OutcomeGreatMisfortune},
	}
	for _, tc := range cases {
		got, err := Pick(params.Regular, params.GreatBadLuckSplit, tc.roll)
		if err != nil {
			t.Fatalf("Pick(%v): %v", tc.roll, err)
		}
		if got != tc.want {
			t.Errorf("Pick(%v) = %q, want %q", tc.roll, got, tc.want)
		}
	}
}

func TestPickRejectsOutOfRangeRoll(t *testing.T) {
	params := config.Default().Fortune
	if _, err := Pick(params.Regular, params.GreatBadLuckSplit, 1.0); err == nil {
		t.Error("expected error for roll = 1.0")
	}
	if _, err := Pick(params.Regular, params.GreatBadLuckSplit, -0.1); err == nil {
		t.Error("expected error for negative roll")
	}
}

func TestPickNeverReturnsLumpedBucket(t *testing.T) {
	params := config.Default().Fortune
	for roll := 0.0; roll < 1.0; roll += 0.001 {
		got, err := Pick(params.Enhanced, params.GreatBadLuckSplit, roll)
		if err != nil {
			t.Fatalf("Pick(%v): %v", roll, err)
		}
		if got == OutcomeGreatBadLuck {
			t.Fatalf("roll %v returned the lumped bucket", roll)
		}
	}
}
