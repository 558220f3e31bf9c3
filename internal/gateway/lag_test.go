package gateway

import (
	"math"
	"testing"
	"time"
)

func TestLagTracker_Empty(t *testing.T) {
	if s := NewLagTracker(8).Summary(); s != (LagSummary{}) {
		t.Errorf("expected zero summary, got %+v", s)
	}
}

func TestLagTracker_Percentiles(t *testing.T) {
	lt := NewLagTracker(1000)
	for i := 1; i <= 100; i++ {
		lt.Record(float64(i))
	}

	s := lt.Summary()
	if s.Count != 100 {
		t.Fatalf("expected 100 samples, got %d", s.Count)
	}
	if math.Abs(s.P50-50.5) > 0.01 {
		t.Errorf("p50: got %f, want 50.5", s.P50)
	}
	if math.Abs(s.P99-99.01) > 0.01 {
		t.Errorf("p99: got %f, want 99.01", s.P99)
	}
}

func TestLagTracker_KeepsMostRecent(t *testing.T) {
	lt := NewLagTracker(10)
	for i := 1; i <= 20; i++ {
		lt.Record(float64(i))
	}

	s := lt.Summary()
	if s.Count != 10 {
		t.Fatalf("expected 10 samples, got %d", s.Count)
	}
	// Only 11..20 remain.
	if s.P50 < 11 {
		t.Errorf("p50 %f includes evicted samples", s.P50)
	}
}

func TestLagTracker_Observe(t *testing.T) {
	lt := NewLagTracker(4)
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	lt.Observe(at, at.Add(250*time.Millisecond))

	if s := lt.Summary(); s.P50 != 250 {
		t.Errorf("expected 250ms, got %f", s.P50)
	}
}
