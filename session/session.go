// Package session folds classified installer output into live
// installation state.
//
// A Session consumes raw byte chunks, reassembles lines across chunk
// boundaries, classifies each line, and applies the resulting event to
// its phase machine, package registry, and download trackers, strictly
// in arrival order. Processing is single-threaded by construction; a
// session owns no goroutines and no timers. Wrap a session in a Guard
// when more than one goroutine must touch it.
package session

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/justapithecus/uvlens/classify"
	"github.com/justapithecus/uvlens/log"
	"github.com/justapithecus/uvlens/metrics"
	"github.com/justapithecus/uvlens/phase"
	"github.com/justapithecus/uvlens/registry"
	"github.com/justapithecus/uvlens/track"
	"github.com/justapithecus/uvlens/types"
)

// Tuning adjusts the pipeline heuristics. Zero fields take defaults.
type Tuning struct {
	// AssociationTolerance clusters download start times for the
	// stream association tie-break.
	AssociationTolerance time.Duration
	// OverrunMargin marks streams suspect past this multiple of the
	// bound package's size.
	OverrunMargin float64
	// CompletionThreshold is the byte fraction an end-of-stream must
	// reach to complete a download.
	CompletionThreshold float64
	// DefaultFrameSize seeds byte estimation before any settings frame.
	DefaultFrameSize int64
	// RateWindow and RateSamples bound the transfer-rate window.
	RateWindow  time.Duration
	RateSamples int
	// EmitInterval and EmitProgressDelta gate ordinary snapshot
	// emissions.
	EmitInterval      time.Duration
	EmitProgressDelta float64
}

// Config configures a Session.
type Config struct {
	// ID identifies the session. Generated when empty.
	ID string
	// Tuning adjusts heuristics; zero fields take defaults.
	Tuning Tuning
	// Reclaim bounds retained terminal entries for Sweep.
	Reclaim track.ReclaimConfig
	// Callbacks receive emitted snapshots.
	Callbacks Callbacks
	// Logger receives pipeline diagnostics. Nop when nil.
	Logger *log.Logger
	// Collector accumulates pipeline counters. May be nil.
	Collector *metrics.Collector
}

// Session is a single installation's log-to-state pipeline. Not safe
// for concurrent use; see Guard.
type Session struct {
	id        string
	logger    *log.Logger
	collector *metrics.Collector

	machine    *phase.Machine
	packages   *registry.Registry
	tracker    *track.Tracker
	engine     *track.Engine
	estimator  *track.Estimator
	reclaimer  *track.Reclaimer
	dispatcher *Dispatcher

	startedAt time.Time
	logClock  time.Duration

	carry []byte

	uvVersion        string
	pythonVersion    string
	requirementsPath string
	decisionCount    int64
	resolvedCount    int
	resolveDuration  time.Duration
	expectedWheels   int
	preparedCount    int
	auditedCount     int
	installWheels    int
	installedCount   int

	message  string
	errMsg   string
	warnings []string

	lineCount    int64
	eventCount   int64
	unknownCount int64

	maxProgress float64
	isComplete  bool
	closed      bool
}

// New constructs a session. The zero Config is usable: it yields an
// anonymous session with default tuning and no callbacks.
func New(cfg Config) *Session {
	id := cfg.ID
	if id == "" {
		id = uuid.NewString()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Nop()
	}

	tracker := track.NewTracker()
	engine := track.NewEngine(track.EngineConfig{
		ClusterTolerance:    cfg.Tuning.AssociationTolerance,
		OverrunMargin:       cfg.Tuning.OverrunMargin,
		CompletionThreshold: cfg.Tuning.CompletionThreshold,
		DefaultFrameSize:    cfg.Tuning.DefaultFrameSize,
	}, tracker)
	estimator := track.NewEstimator(cfg.Tuning.RateWindow, cfg.Tuning.RateSamples)

	dispatchCfg := DispatchConfig{
		MinInterval:      cfg.Tuning.EmitInterval,
		MinProgressDelta: cfg.Tuning.EmitProgressDelta,
	}

	now := time.Now()
	return &Session{
		id:         id,
		logger:     logger.WithSession(id),
		collector:  cfg.Collector,
		machine:    phase.NewMachine(now),
		packages:   registry.NewRegistry(),
		tracker:    tracker,
		engine:     engine,
		estimator:  estimator,
		reclaimer:  track.NewReclaimer(cfg.Reclaim, tracker, engine, estimator),
		dispatcher: NewDispatcher(dispatchCfg, cfg.Callbacks, cfg.Collector),
		startedAt:  now,
	}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Feed consumes a chunk of raw installer output. Chunk boundaries are
// arbitrary: a trailing partial line is carried until the next chunk
// or Close completes it.
func (s *Session) Feed(chunk []byte) {
	if s.closed || len(chunk) == 0 {
		return
	}
	data := chunk
	if len(s.carry) > 0 {
		data = append(s.carry, chunk...)
		s.carry = nil
	}
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		s.processLine(string(data[:i]))
		data = data[i+1:]
	}
	if len(data) > 0 {
		s.carry = append([]byte(nil), data...)
	}
}

// Close flushes any trailing partial line, forces a final emission,
// and returns the final report. Feeds after Close are ignored.
func (s *Session) Close() types.Report {
	if !s.closed {
		if len(s.carry) > 0 {
			line := string(s.carry)
			s.carry = nil
			s.processLine(line)
		}
		s.closed = true
		s.dispatcher.Dispatch(s.buildSnapshot(), s.now(), true)
	}
	return s.buildReport()
}

// Sweep runs one reclaim pass over finished downloads and streams.
// Callers own the cadence; the session schedules nothing itself.
func (s *Session) Sweep(now time.Time) track.SweepStats {
	stats := s.reclaimer.Sweep(now)
	if stats.Downloads > 0 || stats.Streams > 0 {
		s.collector.AddEvicted(stats.Downloads, stats.Streams)
		s.logger.Debug("reclaim sweep", map[string]any{
			"downloads": stats.Downloads,
			"streams":   stats.Streams,
		})
	}
	return stats
}

// now is the session clock: wall start plus the largest log offset
// seen, so replayed logs keep their original timeline.
func (s *Session) now() time.Time {
	return s.startedAt.Add(s.logClock)
}

// processLine classifies and applies one complete line. A panic while
// processing abandons that line only; the session keeps its
// last-known-good state.
func (s *Session) processLine(line string) {
	defer func() {
		if r := recover(); r != nil {
			s.collector.IncDropped()
			s.logger.Error("recovered line processing panic", map[string]any{
				"panic": fmt.Sprint(r),
				"line":  line,
			})
		}
	}()

	line = strings.TrimSuffix(line, "\r")
	s.lineCount++
	s.collector.IncLine()

	ev, ok := classify.Classify(line)
	if !ok {
		return
	}
	s.advanceClock(ev)

	if ev.Kind() == types.KindUnknown {
		s.unknownCount++
		s.collector.IncUnknown()
		return
	}
	s.eventCount++
	s.collector.IncEvent(string(ev.Kind()))
	s.apply(ev)

	s.dispatcher.Dispatch(s.buildSnapshot(), s.now(), false)
}

// advanceClock moves the log clock to the largest offset observed.
// Milestone lines carry no offset and leave the clock alone.
func (s *Session) advanceClock(ev types.Event) {
	var at time.Duration
	switch e := ev.(type) {
	case types.ProcessStart:
		at = e.At
	case types.RequirementsFile:
		at = e.At
	case types.PythonVersion:
		at = e.At
	case types.ResolverDecision:
		at = e.At
	case types.DependencyAdded:
		at = e.At
	case types.PrepareBatch:
		at = e.At
	case types.DownloadPrepare:
		at = e.At
	case types.TransferHeaders:
		at = e.At
	case types.TransferData:
		at = e.At
	case types.TransferSettings:
		at = e.At
	case types.InstallStart:
		at = e.At
	case types.Unknown:
		at = e.At
	}
	if at > s.logClock {
		s.logClock = at
	}
}

func (s *Session) apply(ev types.Event) {
	now := s.now()
	switch e := ev.(type) {
	case types.ProcessStart:
		s.uvVersion = e.Version
		s.transition(types.PhaseStarted, now)
		s.message = "uv " + e.Version

	case types.RequirementsFile:
		s.requirementsPath = e.Path
		s.transition(types.PhaseReadingRequirements, now)
		s.message = "reading " + e.Path

	case types.PythonVersion:
		s.pythonVersion = e.Version
		s.transition(types.PhaseResolving, now)
		s.message = "solving with python " + e.Version

	case types.ResolverDecision:
		s.decisionCount++
		s.transition(types.PhaseResolving, now)

	case types.DependencyAdded:
		s.packages.Upsert(registry.Patch{Name: e.Name, VersionSpec: e.VersionSpec}, now)

	case types.ResolutionDone:
		s.resolvedCount = e.Count
		s.resolveDuration = e.Duration
		s.transition(types.PhaseResolved, now)
		s.message = fmt.Sprintf("resolved %d packages in %s", e.Count, e.Duration)

	case types.PrepareBatch:
		s.expectedWheels = e.Total
		s.transition(types.PhasePreparingDownload, now)
		s.message = fmt.Sprintf("preparing %d wheels", e.Total)

	case types.DownloadPrepare:
		s.applyDownloadPrepare(e, now)

	case types.TransferSettings:
		s.engine.SetMaxFrameSize(e.MaxFrameSize)

	case types.TransferHeaders:
		if pkg, ok := s.engine.OpenStream(e.StreamID, now); ok {
			s.noteAssociation(e.StreamID, pkg)
		}

	case types.TransferData:
		s.applyTransferData(e, now)

	case types.PackagesPrepared:
		s.preparedCount = e.Count
		s.transition(types.PhasePrepared, now)
		s.message = fmt.Sprintf("prepared %d packages in %s", e.Count, e.Duration)

	case types.PackagesAudited:
		s.auditedCount = e.Count
		s.message = fmt.Sprintf("audited %d packages in %s", e.Count, e.Duration)

	case types.InstallStart:
		s.installWheels = e.Wheels
		s.transition(types.PhaseInstalling, now)
		s.beginInstall(now)
		s.message = fmt.Sprintf("installing %d wheels", e.Wheels)

	case types.PackageChanged:
		s.applyPackageChanged(e, now)

	case types.InstallComplete:
		s.installedCount = e.Count
		s.transition(types.PhaseInstalled, now)
		s.finishInstall(now)
		s.isComplete = true
		s.message = fmt.Sprintf("installed %d packages in %s", e.Count, e.Duration)

	case types.ErrorLine:
		s.applyError(e.Message, now)

	case types.WarningLine:
		s.warnings = append(s.warnings, e.Message)
	}
}

func (s *Session) applyDownloadPrepare(e types.DownloadPrepare, now time.Time) {
	s.packages.Upsert(registry.Patch{
		Name:      e.Name,
		Version:   e.Version,
		URL:       e.URL,
		SizeBytes: e.TotalBytes,
	}, now)
	s.tracker.Start(e.Name, e.TotalBytes, e.URL, now)
	s.transition(types.PhasePreparingDownload, now)

	if e.TotalBytes > 0 {
		s.message = fmt.Sprintf("downloading %s==%s (%s)", e.Name, e.Version, humanize.IBytes(uint64(e.TotalBytes)))
	} else {
		s.message = fmt.Sprintf("downloading %s==%s", e.Name, e.Version)
	}
}

func (s *Session) applyTransferData(e types.TransferData, now time.Time) {
	res := s.engine.DataFrame(e.StreamID, e.EndStream, now)
	if res.Associated {
		s.noteAssociation(e.StreamID, res.Package)
	}
	if res.Suspect {
		s.collector.IncSuspect()
		s.logger.Warn("stream estimate overran package size", map[string]any{
			"stream_id": e.StreamID,
			"package":   res.Package,
		})
	}
	if res.Package == "" {
		return
	}

	s.transition(types.PhaseDownloading, now)
	if p, ok := s.packages.Get(res.Package); ok && p.Status == registry.StatusPending {
		s.packages.SetStatus(res.Package, registry.StatusDownloading, now)
	}
	if d, ok := s.tracker.Get(res.Package); ok {
		s.estimator.Observe(d, now)
	}
	if res.Completed {
		s.packages.SetStatus(res.Package, registry.StatusDownloaded, now)
		s.collector.IncDownloadCompleted()
		s.logger.Debug("download complete", map[string]any{
			"package":   res.Package,
			"stream_id": e.StreamID,
		})
	}
}

func (s *Session) applyPackageChanged(e types.PackageChanged, now time.Time) {
	if e.Removed {
		s.message = fmt.Sprintf("- %s==%s", e.Name, e.Version)
		return
	}
	s.packages.Upsert(registry.Patch{Name: e.Name, Version: e.Version}, now)
	s.packages.SetStatus(e.Name, registry.StatusInstalled, now)
	s.message = fmt.Sprintf("+ %s==%s", e.Name, e.Version)
}

func (s *Session) applyError(msg string, now time.Time) {
	if s.errMsg == "" {
		s.errMsg = msg
	}
	s.message = msg
	s.transition(types.PhaseError, now)

	for _, d := range s.tracker.ActiveDownloads() {
		_ = s.tracker.Fail(d.Package, msg, now)
		s.packages.SetStatus(d.Package, registry.StatusFailed, now)
		s.collector.IncDownloadFailed()
	}
	s.logger.Error("installer error", map[string]any{"error": msg})
}

// beginInstall moves packages whose downloads finished cleanly into
// the installing status.
func (s *Session) beginInstall(now time.Time) {
	for _, p := range s.packages.All() {
		if p.Status == registry.StatusFailed {
			continue
		}
		if d, ok := s.tracker.Get(p.Name); ok && d.Status == track.DownloadCompleted {
			s.packages.SetStatus(p.Name, registry.StatusInstalling, now)
		}
	}
}

// finishInstall marks every non-failed package installed.
func (s *Session) finishInstall(now time.Time) {
	for _, p := range s.packages.All() {
		if p.Status == registry.StatusFailed {
			continue
		}
		s.packages.SetStatus(p.Name, registry.StatusInstalled, now)
	}
}

func (s *Session) transition(target types.InstallPhase, now time.Time) {
	from := s.machine.Current()
	if s.machine.TransitionTo(target, now) {
		s.logger.Debug("phase transition", map[string]any{
			"from": string(from),
			"to":   string(target),
		})
	}
}

func (s *Session) noteAssociation(id uint32, pkg string) {
	st, ok := s.engine.Get(id)
	if !ok {
		return
	}
	tier := track.TierLabel(st.Confidence)
	s.collector.IncAssociation(tier)
	s.logger.Debug("stream associated", map[string]any{
		"stream_id":  id,
		"package":    pkg,
		"confidence": st.Confidence,
		"tier":       tier,
	})
}
