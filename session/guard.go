package session

import (
	"sync"
	"time"

	"github.com/justapithecus/uvlens/track"
	"github.com/justapithecus/uvlens/types"
)

// Guard serializes access to a Session. The session itself is
// single-threaded; a Guard lets a feeder goroutine, a sweeper, and
// snapshot readers share one session without interleaving.
type Guard struct {
	mu sync.Mutex
	s  *Session
}

// NewGuard wraps s.
func NewGuard(s *Session) *Guard {
	return &Guard{s: s}
}

// ID returns the wrapped session's id.
func (g *Guard) ID() string {
	return g.s.ID()
}

// Feed forwards a chunk under the lock.
func (g *Guard) Feed(chunk []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.s.Feed(chunk)
}

// Close closes the session and returns the final report.
func (g *Guard) Close() types.Report {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.s.Close()
}

// Snapshot returns the current point-in-time view.
func (g *Guard) Snapshot() types.Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.s.Snapshot()
}

// Downloads returns the live per-package rows.
func (g *Guard) Downloads() []types.DownloadProgress {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.s.Downloads()
}

// Report builds the full summary without closing the session.
func (g *Guard) Report() types.Report {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.s.Report()
}

// Result builds the compact terminal summary.
func (g *Guard) Result() types.InstallResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.s.Result()
}

// Sweep runs one reclaim pass.
func (g *Guard) Sweep(now time.Time) track.SweepStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.s.Sweep(now)
}
