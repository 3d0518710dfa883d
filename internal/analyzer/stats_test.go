package analyzer

import (
	"testing"
	"time"
)

func TestLatencyStatsSnapshot(t *testing.T) {
	stats := NewLatencyStats(time.Hour)
	for i, ms := range []int64{100, 200, 300, 400, 500} {
		outcome := "ok"
		if i == 4 {
			outcome = "connectivity_error"
		}
		stats.Record(ms, outcome)
	}

	snap := stats.Snapshot()
	if snap.Count != 5 {
		t.Fatalf("expected count=5, got %d", snap.Count)
	}
	if snap.MinMs != 100 || snap.MaxMs != 500 {
		t.Fatalf("expected min=100 max=500, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
	if snap.AvgMs != 300 {
		t.Fatalf("expected avg=300, got %f", snap.AvgMs)
	}
	if snap.P50Ms != 300 {
		t.Fatalf("expected p50=300, got %f", snap.P50Ms)
	}
	if snap.P95Ms != 480 {
		t.Fatalf("expected p95=480, got %f", snap.P95Ms)
	}
	if snap.Outcomes["ok"] != 4 || snap.Outcomes["connectivity_error"] != 1 {
		t.Fatalf("unexpected outcome counts %v", snap.Outcomes)
	}
}

func TestLatencyStatsPrunesOldSamples(t *testing.T) {
	stats := NewLatencyStats(10 * time.Millisecond)
	stats.Record(100, "ok")
	time.Sleep(25 * time.Millisecond)

	if snap := stats.Snapshot(); snap.Count != 0 {
		t.Fatalf("expected count=0 after prune, got %d", snap.Count)
	}

	stats.Record(200, "ok")
	snap := stats.Snapshot()
	if snap.Count != 1 || snap.MinMs != 200 {
		t.Fatalf("expected one fresh sample of 200ms, got %+v", snap)
	}
}

func TestLatencyStatsClampsNegative(t *testing.T) {
	stats := NewLatencyStats(0)
	stats.Record(-10, "ok")
	if snap := stats.Snapshot(); snap.MinMs != 0 {
		t.Fatalf("expected clamped duration=0, got %d", snap.MinMs)
	}
}

func TestLatencyStatsEmptySnapshotHasOutcomeMap(t *testing.T) {
	snap := NewLatencyStats(time.Hour).Snapshot()
	if snap.Outcomes == nil {
		t.Fatal("expected non-nil outcomes map")
	}
}
