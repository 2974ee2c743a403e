package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestProgress_Fraction(t *testing.T) {
	tests := []struct {
		p    Progress
		want float64
	}{
		{Progress{Phase: PhaseWalking}, 0},
		{Progress{Phase: PhaseHashing, Candidates: 4, Hashed: 1}, 0.25},
		{Progress{Phase: PhaseDone}, 1},
		{Progress{Phase: PhaseHashing, Candidates: 2, Hashed: 3}, 1},
	}
	for _, tt := range tests {
		if got := tt.p.Fraction(); got != tt.want {
			t.Errorf("Fraction(%+v) = %f, want %f", tt.p, got, tt.want)
		}
	}
}

func TestProgress_ItemsPerSecond(t *testing.T) {
	p := Progress{Phase: PhaseWalking, Discovered: 50, Hashed: 4, Duration: 2 * time.Second}
	if got := p.ItemsPerSecond(); got != 25 {
		t.Fatalf("walking rate = %f, want 25", got)
	}
	p.Phase = PhaseHashing
	if got := p.ItemsPerSecond(); got != 2 {
		t.Fatalf("hashing rate = %f, want 2", got)
	}
	if got := (Progress{Discovered: 10}).ItemsPerSecond(); got != 0 {
		t.Fatalf("zero duration rate = %f, want 0", got)
	}
}

func TestTracker_FollowsRun(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a"), "same")
	writeFile(t, filepath.Join(root, "b"), "same")
	writeFile(t, filepath.Join(root, "c"), "diff")
	writeFile(t, filepath.Join(root, "d"), "unique size")

	var totals []int
	opts := Options{OnTotal: func(n int) { totals = append(totals, n) }}
	tracker := NewTracker()
	tracker.Attach(&opts)

	if got := tracker.Snapshot(); got.Phase != PhaseWalking || got.Hashed != 0 {
		t.Fatalf("unexpected initial snapshot %+v", got)
	}

	if _, err := FindDuplicates(context.Background(), root, opts); err != nil {
		t.Fatal(err)
	}
	got := tracker.Snapshot()
	if got.Phase != PhaseHashing {
		t.Fatalf("expected hashing phase before Finish, got %v", got.Phase)
	}
	if got.Discovered != 4 || got.Total != 4 || got.Candidates != 3 || got.Hashed != 3 {
		t.Fatalf("unexpected snapshot %+v", got)
	}
	if len(totals) != 1 || totals[0] != 4 {
		t.Fatalf("chained OnTotal not called once with 4: %v", totals)
	}

	tracker.Finish()
	if got := tracker.Snapshot(); got.Phase != PhaseDone || got.Fraction() != 1 {
		t.Fatalf("unexpected final snapshot %+v", got)
	}
}

func TestTracker_ReportSendsFinalSnapshot(t *testing.T) {
	tracker := NewTracker()
	tracker.Finish()

	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan Progress, 1)
	done := make(chan struct{})
	go func() {
		tracker.Report(ctx, ch, time.Hour)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Report did not return after cancel")
	}
	select {
	case p := <-ch:
		if p.Phase != PhaseDone {
			t.Fatalf("expected final done snapshot, got %v", p.Phase)
		}
	default:
		t.Fatal("expected a final snapshot")
	}
}

func TestTracker_ReportNeverBlocks(t *testing.T) {
	tracker := NewTracker()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// Unbuffered with no reader: every send must be dropped.
	ch := make(chan Progress)
	done := make(chan struct{})
	go func() {
		tracker.Report(ctx, ch, time.Millisecond)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Report blocked on a full channel")
	}
}
