package track

import (
	"sort"
	"time"
)

// StreamState is the observed lifecycle state of a transport stream.
type StreamState string

// Stream states. A stream is created in open when its headers frame is
// seen, moves to receiving on the first data frame, and to closed when
// a frame carries the end-of-stream flag.
const (
	StreamOpen      StreamState = "open"
	StreamReceiving StreamState = "receiving"
	StreamClosed    StreamState = "closed"
)

// Stream is the per-stream record. Package stays set after close so
// the final report can render a transfer timeline.
type Stream struct {
	ID             uint32
	State          StreamState
	Package        string
	Confidence     float64
	FrameCount     int64
	EstimatedBytes int64
	Suspect        bool
	OpenedAt       time.Time
	LastFrameAt    time.Time
}

// Terminal reports whether the stream has closed.
func (s Stream) Terminal() bool {
	return s.State == StreamClosed
}

// EngineConfig tunes the association heuristics.
type EngineConfig struct {
	// ClusterTolerance is the window within which download start times
	// are considered simultaneous for tie-breaking.
	ClusterTolerance time.Duration
	// OverrunMargin marks a stream suspect once its byte estimate
	// exceeds this multiple of the bound package's total.
	OverrunMargin float64
	// CompletionThreshold is the fraction of total bytes the estimate
	// must reach for an end-of-stream to count as a completed download.
	CompletionThreshold float64
	// DefaultFrameSize is the frame size assumed until a settings
	// frame negotiates one.
	DefaultFrameSize int64
}

func (c EngineConfig) withDefaults() EngineConfig {
	if c.ClusterTolerance <= 0 {
		c.ClusterTolerance = 100 * time.Millisecond
	}
	if c.OverrunMargin <= 0 {
		c.OverrunMargin = 1.2
	}
	if c.CompletionThreshold <= 0 {
		c.CompletionThreshold = 0.9
	}
	if c.DefaultFrameSize <= 0 {
		c.DefaultFrameSize = 16384
	}
	return c
}

// FrameResult reports what a data frame changed, so callers can move
// registry statuses and log bindings.
type FrameResult struct {
	Package    string
	Associated bool
	Suspect    bool
	Completed  bool
	Capped     bool
}

// Engine matches opaque transport stream ids to package downloads.
// The log never states the mapping; the engine infers it from download
// start order, transfer sizes, and frame arithmetic. Not safe for
// concurrent use.
type Engine struct {
	cfg       EngineConfig
	tracker   *Tracker
	streams   map[uint32]*Stream
	order     []uint32
	frameSize int64
}

// NewEngine returns an engine bound to the tracker it associates
// streams against. Zero config fields take defaults.
func NewEngine(cfg EngineConfig, tracker *Tracker) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		cfg:       cfg,
		tracker:   tracker,
		streams:   make(map[uint32]*Stream),
		frameSize: cfg.DefaultFrameSize,
	}
}

// SetMaxFrameSize records a negotiated max frame size from a settings
// frame. Applies to estimates for all streams from then on.
func (e *Engine) SetMaxFrameSize(size int64) {
	if size > 0 {
		e.frameSize = size
	}
}

// MaxFrameSize returns the frame size currently used for estimates.
func (e *Engine) MaxFrameSize() int64 {
	return e.frameSize
}

// OpenStream registers a headers frame for the stream id and attempts
// to bind the stream to a package. Returns the bound package, if any.
func (e *Engine) OpenStream(id uint32, now time.Time) (string, bool) {
	s, ok := e.streams[id]
	if !ok {
		s = &Stream{ID: id, State: StreamOpen, OpenedAt: now, LastFrameAt: now}
		e.streams[id] = s
		e.order = append(e.order, id)
	}
	s.LastFrameAt = now
	if s.Package == "" {
		e.associate(s)
	}
	return s.Package, s.Package != ""
}

// DataFrame records a data frame for the stream id, opening and
// binding the stream first if this is its first sighting.
func (e *Engine) DataFrame(id uint32, endStream bool, now time.Time) FrameResult {
	var res FrameResult

	s, ok := e.streams[id]
	if !ok {
		s = &Stream{ID: id, State: StreamOpen, OpenedAt: now, LastFrameAt: now}
		e.streams[id] = s
		e.order = append(e.order, id)
	}
	if s.State == StreamClosed {
		res.Package = s.Package
		return res
	}
	if s.Package == "" {
		if e.associate(s) {
			res.Associated = true
		}
	}
	res.Package = s.Package

	s.State = StreamReceiving
	s.FrameCount++
	s.EstimatedBytes = s.FrameCount * e.frameSize
	s.LastFrameAt = now

	if s.Package != "" {
		if !s.Suspect && e.overrun(s) {
			s.Suspect = true
			res.Suspect = true
		}
		if !s.Suspect {
			// A bound stream can outlive its evicted download record.
			_ = e.tracker.UpdateEstimated(s.Package, s.EstimatedBytes, now)
		}
	}

	if endStream {
		e.closeStream(s, now, &res)
	}
	return res
}

// associate binds the stream to the most plausible active download.
func (e *Engine) associate(s *Stream) bool {
	actives := e.tracker.ActiveDownloads()
	cands := make([]Candidate, 0, len(actives))
	for _, d := range actives {
		cands = append(cands, Candidate{
			Package:     d.Package,
			TotalBytes:  d.TotalBytes,
			StartedAt:   d.StartedAt,
			StreamCount: d.StreamCount,
			OpenStreams: len(d.StreamIDs),
		})
	}
	pkg, conf, ok := Pick(cands, e.cfg.ClusterTolerance)
	if !ok {
		return false
	}
	s.Package = pkg
	s.Confidence = conf
	_ = e.tracker.AssociateStream(pkg, s.ID)
	return true
}

func (e *Engine) overrun(s *Stream) bool {
	d, ok := e.tracker.Get(s.Package)
	if !ok || d.TotalBytes <= 0 {
		return false
	}
	return float64(s.EstimatedBytes) > e.cfg.OverrunMargin*float64(d.TotalBytes)
}

// closeStream runs the end-of-stream decision. The signal is
// authoritative even for suspect streams: a download completes when
// the byte estimate clears the threshold, or unconditionally when the
// total size is unknown. Below threshold the download stays active
// with its displayed progress capped.
func (e *Engine) closeStream(s *Stream, now time.Time, res *FrameResult) {
	s.State = StreamClosed
	if s.Package == "" {
		return
	}
	e.tracker.ReleaseStream(s.Package, s.ID)

	d, ok := e.tracker.Get(s.Package)
	if !ok || d.Status == DownloadCompleted {
		return
	}

	if d.TotalBytes <= 0 {
		_ = e.tracker.Complete(s.Package, now)
		res.Completed = true
		return
	}

	effective := s.EstimatedBytes
	if d.BytesReceived > effective {
		effective = d.BytesReceived
	}
	if float64(effective) >= e.cfg.CompletionThreshold*float64(d.TotalBytes) {
		_ = e.tracker.Complete(s.Package, now)
		res.Completed = true
		return
	}

	e.tracker.MarkCapped(s.Package)
	res.Capped = true
}

// Get returns a copy of the stream record for id.
func (e *Engine) Get(id uint32) (Stream, bool) {
	s, ok := e.streams[id]
	if !ok {
		return Stream{}, false
	}
	return *s, true
}

// Streams returns copies of every stream in first-seen order.
func (e *Engine) Streams() []Stream {
	out := make([]Stream, 0, len(e.order))
	for _, id := range e.order {
		if s, ok := e.streams[id]; ok {
			out = append(out, *s)
		}
	}
	return out
}

// Len returns the number of tracked streams.
func (e *Engine) Len() int {
	return len(e.streams)
}

// EvictOlderThan removes closed streams whose last frame is older than
// maxAge, returning the evicted stream ids.
func (e *Engine) EvictOlderThan(maxAge time.Duration, now time.Time) []uint32 {
	cutoff := now.Add(-maxAge)
	var removed []uint32
	for _, id := range e.order {
		s, ok := e.streams[id]
		if !ok || !s.Terminal() {
			continue
		}
		if s.LastFrameAt.Before(cutoff) {
			delete(e.streams, id)
			removed = append(removed, id)
		}
	}
	if len(removed) > 0 {
		e.compactOrder()
	}
	return removed
}

// EvictOldestTerminal removes up to n closed streams, oldest last
// frame first, returning the evicted stream ids.
func (e *Engine) EvictOldestTerminal(n int) []uint32 {
	if n <= 0 {
		return nil
	}
	var victims []uint32
	for _, id := range e.order {
		if s, ok := e.streams[id]; ok && s.Terminal() {
			victims = append(victims, id)
		}
	}
	sort.SliceStable(victims, func(i, j int) bool {
		return e.streams[victims[i]].LastFrameAt.Before(e.streams[victims[j]].LastFrameAt)
	})
	if len(victims) > n {
		victims = victims[:n]
	}
	for _, id := range victims {
		delete(e.streams, id)
	}
	if len(victims) > 0 {
		e.compactOrder()
	}
	return victims
}

func (e *Engine) compactOrder() {
	kept := e.order[:0]
	for _, id := range e.order {
		if _, ok := e.streams[id]; ok {
			kept = append(kept, id)
		}
	}
	e.order = kept
}
