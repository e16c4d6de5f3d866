// Package phase tracks the installation lifecycle phase.
//
// Transitions follow a fixed adjacency map. The only backward movement
// is the preparing_download/downloading cycle, which installers exhibit
// when preparing the next wheel while a previous one is still in
// flight. The error phase is reachable from everywhere.
package phase

import (
	"time"

	"github.com/justapithecus/uvlens/types"
)

// transitions is the adjacency map of allowed forward moves. Beyond the
// strict linear order it admits the skips the installer itself shows: a
// run with no requirements file goes started -> resolving, and a fully
// cached run goes resolved -> installing with no download phases.
var transitions = map[types.InstallPhase][]types.InstallPhase{
	types.PhaseIdle:                {types.PhaseStarted},
	types.PhaseStarted:             {types.PhaseReadingRequirements, types.PhaseResolving},
	types.PhaseReadingRequirements: {types.PhaseResolving},
	types.PhaseResolving:           {types.PhaseResolved},
	types.PhaseResolved:            {types.PhasePreparingDownload, types.PhaseDownloading, types.PhasePrepared, types.PhaseInstalling},
	types.PhasePreparingDownload:   {types.PhaseDownloading, types.PhasePrepared},
	types.PhaseDownloading:         {types.PhasePreparingDownload, types.PhasePrepared},
	types.PhasePrepared:            {types.PhaseInstalling},
	types.PhaseInstalling:          {types.PhaseInstalled},
	types.PhaseInstalled:           {},
	types.PhaseError:               {},
}

// Machine tracks the current phase, an append-only history, and
// phase-entry timestamps for duration accounting. Not safe for
// concurrent use; sessions drive it from a single goroutine.
type Machine struct {
	current   types.InstallPhase
	history   []types.InstallPhase
	enteredAt []time.Time
}

// NewMachine returns a machine in the idle phase.
func NewMachine(now time.Time) *Machine {
	return &Machine{
		current:   types.PhaseIdle,
		history:   []types.InstallPhase{types.PhaseIdle},
		enteredAt: []time.Time{now},
	}
}

// Current returns the current phase.
func (m *Machine) Current() types.InstallPhase {
	return m.current
}

// TransitionTo attempts a transition and reports whether it was
// accepted. Rejected transitions leave state untouched. Self
// transitions are rejected so history never records the same phase
// twice in a row. Once the machine reaches prepared or later, moves to
// any earlier phase are rejected; error is always accepted.
func (m *Machine) TransitionTo(target types.InstallPhase, now time.Time) bool {
	if target == m.current {
		return false
	}
	if target != types.PhaseError {
		if m.current.Rank() >= types.PhasePrepared.Rank() && target.Before(m.current) {
			return false
		}
		if !adjacent(m.current, target) {
			return false
		}
	}

	m.current = target
	m.history = append(m.history, target)
	m.enteredAt = append(m.enteredAt, now)
	return true
}

// Reset returns the machine to idle, clearing history. Re-entry from
// error happens only through this explicit path.
func (m *Machine) Reset(now time.Time) {
	m.current = types.PhaseIdle
	m.history = []types.InstallPhase{types.PhaseIdle}
	m.enteredAt = []time.Time{now}
}

// History returns a copy of the phase history, oldest first.
func (m *Machine) History() []types.InstallPhase {
	out := make([]types.InstallPhase, len(m.history))
	copy(out, m.history)
	return out
}

// EnteredAt returns when the phase was most recently entered.
func (m *Machine) EnteredAt(p types.InstallPhase) (time.Time, bool) {
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i] == p {
			return m.enteredAt[i], true
		}
	}
	return time.Time{}, false
}

// Durations returns total time spent in each phase visited so far. The
// current phase accrues up to now. Phases visited more than once (the
// download cycle) accumulate across visits.
func (m *Machine) Durations(now time.Time) map[types.InstallPhase]time.Duration {
	out := make(map[types.InstallPhase]time.Duration, len(m.history))
	for i, p := range m.history {
		end := now
		if i+1 < len(m.history) {
			end = m.enteredAt[i+1]
		}
		d := end.Sub(m.enteredAt[i])
		if d < 0 {
			d = 0
		}
		out[p] += d
	}
	return out
}

func adjacent(from, to types.InstallPhase) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
