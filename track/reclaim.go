package track

import "time"

// ReclaimConfig bounds how long and how many finished entries are
// retained.
type ReclaimConfig struct {
	// MaxAge evicts terminal entries untouched for this long.
	MaxAge time.Duration
	// Capacity is the tracked-entry count that triggers pressure
	// eviction, applied per collection.
	Capacity int
	// TargetRatio is the fraction of Capacity eviction reduces a
	// collection to once triggered.
	TargetRatio float64
}

func (c ReclaimConfig) withDefaults() ReclaimConfig {
	if c.MaxAge <= 0 {
		c.MaxAge = 5 * time.Minute
	}
	if c.Capacity <= 0 {
		c.Capacity = 1000
	}
	if c.TargetRatio <= 0 || c.TargetRatio > 1 {
		c.TargetRatio = 0.8
	}
	return c
}

// SweepStats reports what one sweep removed.
type SweepStats struct {
	Downloads int
	Streams   int
}

// Reclaimer bounds tracker and engine memory for long sessions.
// Sweeps are caller-driven; the reclaimer owns no timer. Active
// entries and persistent counters are never touched.
type Reclaimer struct {
	cfg       ReclaimConfig
	tracker   *Tracker
	engine    *Engine
	estimator *Estimator
}

// NewReclaimer returns a reclaimer over the given collections. The
// estimator may be nil. Zero config fields take defaults.
func NewReclaimer(cfg ReclaimConfig, tracker *Tracker, engine *Engine, estimator *Estimator) *Reclaimer {
	return &Reclaimer{
		cfg:       cfg.withDefaults(),
		tracker:   tracker,
		engine:    engine,
		estimator: estimator,
	}
}

// Sweep evicts stale terminal entries, then relieves capacity
// pressure by dropping the oldest terminal entries until each
// collection is back under its target size.
func (r *Reclaimer) Sweep(now time.Time) SweepStats {
	var stats SweepStats

	evicted := r.tracker.EvictOlderThan(r.cfg.MaxAge, now)
	if over := r.tracker.Len() - r.cfg.Capacity; over > 0 {
		target := int(float64(r.cfg.Capacity) * r.cfg.TargetRatio)
		evicted = append(evicted, r.tracker.EvictOldestTerminal(r.tracker.Len()-target)...)
	}
	stats.Downloads = len(evicted)
	if r.estimator != nil {
		for _, pkg := range evicted {
			r.estimator.Forget(pkg)
		}
	}

	stats.Streams = len(r.engine.EvictOlderThan(r.cfg.MaxAge, now))
	if over := r.engine.Len() - r.cfg.Capacity; over > 0 {
		target := int(float64(r.cfg.Capacity) * r.cfg.TargetRatio)
		stats.Streams += len(r.engine.EvictOldestTerminal(r.engine.Len() - target))
	}

	return stats
}
