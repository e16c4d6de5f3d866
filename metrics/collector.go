// Package metrics provides per-session pipeline counters.
//
// The Collector accumulates counters while a session consumes installer
// output. It is a leaf package with no internal dependencies; event
// kinds and association tiers arrive as plain strings to keep it that
// way.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all pipeline counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Line pipeline
	Lines        int64
	Events       int64
	EventsByKind map[string]int64
	UnknownLines int64
	DroppedLines int64

	// Stream association
	Associations   map[string]int64
	SuspectStreams int64

	// Downloads
	DownloadsCompleted int64
	DownloadsFailed    int64

	// Reclaim
	EvictedDownloads int64
	EvictedStreams   int64

	// Dispatcher
	EmitsForced     int64
	EmitsThrottled  int64
	EmitsSuppressed int64

	// Dimensions (informational, set at construction)
	SessionID string
}

// Collector accumulates counters for a single session.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	// Line pipeline
	lines        int64
	events       int64
	eventsByKind map[string]int64
	unknownLines int64
	droppedLines int64

	// Stream association
	associations   map[string]int64
	suspectStreams int64

	// Downloads
	downloadsCompleted int64
	downloadsFailed    int64

	// Reclaim
	evictedDownloads int64
	evictedStreams   int64

	// Dispatcher
	emitsForced     int64
	emitsThrottled  int64
	emitsSuppressed int64

	// Dimensions
	sessionID string
}

// NewCollector creates a Collector labeled with the session id.
func NewCollector(sessionID string) *Collector {
	return &Collector{
		eventsByKind: make(map[string]int64),
		associations: make(map[string]int64),
		sessionID:    sessionID,
	}
}

// --- Line pipeline ---

// IncLine records one consumed log line.
func (c *Collector) IncLine() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.lines++
	c.mu.Unlock()
}

// IncEvent records one classified event by kind.
func (c *Collector) IncEvent(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.events++
	c.eventsByKind[kind]++
	c.mu.Unlock()
}

// IncUnknown records a line no classifier rule matched.
func (c *Collector) IncUnknown() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.unknownLines++
	c.mu.Unlock()
}

// IncDropped records a line abandoned by the per-line recovery guard.
func (c *Collector) IncDropped() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.droppedLines++
	c.mu.Unlock()
}

// --- Stream association ---

// IncAssociation records a stream binding by heuristic tier.
func (c *Collector) IncAssociation(tier string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.associations[tier]++
	c.mu.Unlock()
}

// IncSuspect records a stream whose byte estimate overran its package.
func (c *Collector) IncSuspect() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.suspectStreams++
	c.mu.Unlock()
}

// --- Downloads ---

// IncDownloadCompleted records a download completion.
func (c *Collector) IncDownloadCompleted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.downloadsCompleted++
	c.mu.Unlock()
}

// IncDownloadFailed records a download failure.
func (c *Collector) IncDownloadFailed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.downloadsFailed++
	c.mu.Unlock()
}

// --- Reclaim ---

// AddEvicted records entries removed by a reclaim sweep.
func (c *Collector) AddEvicted(downloads, streams int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.evictedDownloads += int64(downloads)
	c.evictedStreams += int64(streams)
	c.mu.Unlock()
}

// --- Dispatcher ---

// IncEmitForced records an emission bypassing the throttle.
func (c *Collector) IncEmitForced() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.emitsForced++
	c.mu.Unlock()
}

// IncEmitThrottled records an emission that passed the throttle gates.
func (c *Collector) IncEmitThrottled() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.emitsThrottled++
	c.mu.Unlock()
}

// IncEmitSuppressed records a snapshot withheld by the throttle.
func (c *Collector) IncEmitSuppressed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.emitsSuppressed++
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all counters.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byKind := make(map[string]int64, len(c.eventsByKind))
	for k, v := range c.eventsByKind {
		byKind[k] = v
	}
	assoc := make(map[string]int64, len(c.associations))
	for k, v := range c.associations {
		assoc[k] = v
	}

	return Snapshot{
		Lines:        c.lines,
		Events:       c.events,
		EventsByKind: byKind,
		UnknownLines: c.unknownLines,
		DroppedLines: c.droppedLines,

		Associations:   assoc,
		SuspectStreams: c.suspectStreams,

		DownloadsCompleted: c.downloadsCompleted,
		DownloadsFailed:    c.downloadsFailed,

		EvictedDownloads: c.evictedDownloads,
		EvictedStreams:   c.evictedStreams,

		EmitsForced:     c.emitsForced,
		EmitsThrottled:  c.emitsThrottled,
		EmitsSuppressed: c.emitsSuppressed,

		SessionID: c.sessionID,
	}
}
