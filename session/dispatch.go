package session

import (
	"math"
	"time"

	"github.com/justapithecus/uvlens/metrics"
	"github.com/justapithecus/uvlens/types"
)

// EmitReason identifies which rule let a snapshot through.
type EmitReason string

const (
	// EmitFirst is the first snapshot a dispatcher ever sees.
	EmitFirst EmitReason = "first"
	// EmitPhaseChange fires on any phase transition.
	EmitPhaseChange EmitReason = "phase_change"
	// EmitError fires on the first snapshot carrying an error.
	EmitError EmitReason = "error"
	// EmitComplete fires on the first completed snapshot.
	EmitComplete EmitReason = "complete"
	// EmitCounts fires when any package-status count moved.
	EmitCounts EmitReason = "counts"
	// EmitProgress is an ordinary emission that cleared the throttle.
	EmitProgress EmitReason = "progress"
	// EmitForced is a caller-forced emission, such as the final flush.
	EmitForced EmitReason = "forced"
)

// DispatchConfig tunes the snapshot throttle.
type DispatchConfig struct {
	// MinInterval is the least time between ordinary emissions.
	MinInterval time.Duration
	// MinProgressDelta is the least overall-progress movement, in
	// points, an ordinary emission requires.
	MinProgressDelta float64
}

func (c DispatchConfig) withDefaults() DispatchConfig {
	if c.MinInterval <= 0 {
		c.MinInterval = 200 * time.Millisecond
	}
	if c.MinProgressDelta <= 0 {
		c.MinProgressDelta = 1.0
	}
	return c
}

// Callbacks receive emitted snapshots. Any field may be nil. All are
// invoked synchronously on the feeding goroutine.
type Callbacks struct {
	// OnStatusChange receives every emitted snapshot.
	OnStatusChange func(types.Snapshot)
	// OnError receives the first snapshot carrying an error.
	OnError func(types.Snapshot)
	// OnComplete receives the first completed snapshot.
	OnComplete func(types.Snapshot)
}

// Dispatcher throttles snapshot emission so per-frame transport noise
// cannot flood consumers, while materially significant changes always
// pass immediately.
type Dispatcher struct {
	cfg       DispatchConfig
	cb        Callbacks
	collector *metrics.Collector

	emitted       bool
	lastEmitAt    time.Time
	lastProgress  float64
	lastPhase     types.InstallPhase
	lastCounts    types.PackageCounts
	errorNotified bool
	doneNotified  bool
}

// NewDispatcher returns a dispatcher over the given callbacks. Zero
// config fields take defaults. The collector may be nil.
func NewDispatcher(cfg DispatchConfig, cb Callbacks, collector *metrics.Collector) *Dispatcher {
	return &Dispatcher{cfg: cfg.withDefaults(), cb: cb, collector: collector}
}

// Dispatch offers a snapshot for emission. Forced offers and material
// changes (first snapshot, phase change, first error, first
// completion, package-count movement) always emit; anything else must
// clear both the interval and progress-delta gates. Reports the emit
// reason, or false when the snapshot was withheld.
func (d *Dispatcher) Dispatch(snap types.Snapshot, now time.Time, force bool) (EmitReason, bool) {
	reason, ok := d.decide(snap, now, force)
	if !ok {
		d.collector.IncEmitSuppressed()
		return "", false
	}

	d.emitted = true
	d.lastEmitAt = now
	d.lastProgress = snap.OverallProgress
	d.lastPhase = snap.Phase
	d.lastCounts = snap.Packages

	if reason == EmitProgress {
		d.collector.IncEmitThrottled()
	} else {
		d.collector.IncEmitForced()
	}

	if d.cb.OnStatusChange != nil {
		d.cb.OnStatusChange(snap)
	}
	if snap.Error != "" && !d.errorNotified {
		d.errorNotified = true
		if d.cb.OnError != nil {
			d.cb.OnError(snap)
		}
	}
	if snap.IsComplete && !d.doneNotified {
		d.doneNotified = true
		if d.cb.OnComplete != nil {
			d.cb.OnComplete(snap)
		}
	}
	return reason, true
}

func (d *Dispatcher) decide(snap types.Snapshot, now time.Time, force bool) (EmitReason, bool) {
	if force {
		return EmitForced, true
	}
	if !d.emitted {
		return EmitFirst, true
	}
	if snap.Phase != d.lastPhase {
		return EmitPhaseChange, true
	}
	if snap.Error != "" && !d.errorNotified {
		return EmitError, true
	}
	if snap.IsComplete && !d.doneNotified {
		return EmitComplete, true
	}
	if snap.Packages != d.lastCounts {
		return EmitCounts, true
	}
	if now.Sub(d.lastEmitAt) >= d.cfg.MinInterval &&
		math.Abs(snap.OverallProgress-d.lastProgress) >= d.cfg.MinProgressDelta {
		return EmitProgress, true
	}
	return "", false
}
