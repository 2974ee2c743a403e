package engine

import (
	"context"
	"sync/atomic"
	"time"
)

// Phase is the stage a run is in.
type Phase int32

const (
	PhaseWalking Phase = iota
	PhaseHashing
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseWalking:
		return "walking"
	case PhaseHashing:
		return "hashing"
	default:
		return "done"
	}
}

// Progress is a snapshot of a running search.
type Progress struct {
	Phase Phase
	// Discovered is the number of eligible files found so far.
	Discovered int64
	// Total is the eligible file count, known once the walk is over.
	Total int64
	// Candidates is the number of files that need hashing.
	Candidates int64
	// Hashed is the cumulative number of digests computed.
	Hashed    int64
	StartTime time.Time
	Duration  time.Duration
}

// Fraction returns hashing completion in [0, 1].
func (p Progress) Fraction() float64 {
	if p.Candidates <= 0 {
		if p.Phase == PhaseDone {
			return 1
		}
		return 0
	}
	return min(float64(p.Hashed)/float64(p.Candidates), 1)
}

// ItemsPerSecond returns the rate of the current phase.
func (p Progress) ItemsPerSecond() float64 {
	if p.Duration.Seconds() == 0 {
		return 0
	}
	n := p.Discovered
	if p.Phase != PhaseWalking {
		n = p.Hashed
	}
	return float64(n) / p.Duration.Seconds()
}

// Tracker turns engine callbacks into Progress snapshots. Callbacks only
// touch atomics so they never block the hash pool.
type Tracker struct {
	phase      atomic.Int32
	discovered atomic.Int64
	total      atomic.Int64
	candidates atomic.Int64
	hashed     atomic.Int64
	start      time.Time
}

// NewTracker starts the clock.
func NewTracker() *Tracker {
	return &Tracker{start: time.Now()}
}

// Attach chains the tracker in front of any callbacks already set on opts.
func (t *Tracker) Attach(opts *Options) {
	onDiscover, onTotal, onCandidates, onProgress := opts.OnDiscover, opts.OnTotal, opts.OnCandidates, opts.OnProgress

	opts.OnDiscover = func(n int) {
		t.discovered.Store(int64(n))
		if onDiscover != nil {
			onDiscover(n)
		}
	}
	opts.OnTotal = func(n int) {
		t.total.Store(int64(n))
		if onTotal != nil {
			onTotal(n)
		}
	}
	opts.OnCandidates = func(n int) {
		t.candidates.Store(int64(n))
		t.phase.Store(int32(PhaseHashing))
		if onCandidates != nil {
			onCandidates(n)
		}
	}
	opts.OnProgress = func(n int) {
		t.hashed.Store(int64(n))
		if onProgress != nil {
			onProgress(n)
		}
	}
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Progress {
	return Progress{
		Phase:      Phase(t.phase.Load()),
		Discovered: t.discovered.Load(),
		Total:      t.total.Load(),
		Candidates: t.candidates.Load(),
		Hashed:     t.hashed.Load(),
		StartTime:  t.start,
		Duration:   time.Since(t.start),
	}
}

// Finish marks the run as done.
func (t *Tracker) Finish() {
	t.phase.Store(int32(PhaseDone))
}

// Report sends a snapshot on ch every interval until ctx is done, then sends
// a final snapshot. Sends never block: a snapshot is dropped if ch is full.
func (t *Tracker) Report(ctx context.Context, ch chan<- Progress, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			select {
			case ch <- t.Snapshot():
			default:
			}
		case <-ctx.Done():
			select {
			case ch <- t.Snapshot():
			default:
			}
			return
		}
	}
}
