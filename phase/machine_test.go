package phase

import (
	"testing"
	"time"

	"github.com/justapithecus/uvlens/types"
)

var t0 = time.Date(2024, 11, 14, 10, 0, 0, 0, time.UTC)

// drive applies transitions in order, returning the accept results.
func drive(m *Machine, phases ...types.InstallPhase) []bool {
	out := make([]bool, len(phases))
	for i, p := range phases {
		out[i] = m.TransitionTo(p, t0.Add(time.Duration(i)*time.Second))
	}
	return out
}

func TestMachine_HappyPath(t *testing.T) {
	m := NewMachine(t0)
	results := drive(m,
		types.PhaseStarted,
		types.PhaseReadingRequirements,
		types.PhaseResolving,
		types.PhaseResolved,
		types.PhasePreparingDownload,
		types.PhaseDownloading,
		types.PhasePrepared,
		types.PhaseInstalling,
		types.PhaseInstalled,
	)

	for i, ok := range results {
		if !ok {
			t.Errorf("transition %d rejected, want accepted", i)
		}
	}
	if m.Current() != types.PhaseInstalled {
		t.Errorf("Current() = %s, want installed", m.Current())
	}
}

func TestMachine_DownloadCycle(t *testing.T) {
	m := NewMachine(t0)
	drive(m, types.PhaseStarted, types.PhaseResolving, types.PhaseResolved, types.PhasePreparingDownload)

	// Interleaved prepare/download is the one allowed cycle.
	results := drive(m,
		types.PhaseDownloading,
		types.PhasePreparingDownload,
		types.PhaseDownloading,
	)
	for i, ok := range results {
		if !ok {
			t.Errorf("cycle transition %d rejected", i)
		}
	}

	// History may alternate but never repeats a phase consecutively.
	hist := m.History()
	for i := 1; i < len(hist); i++ {
		if hist[i] == hist[i-1] {
			t.Errorf("history repeats %s consecutively", hist[i])
		}
	}
}

func TestMachine_SelfTransitionRejected(t *testing.T) {
	m := NewMachine(t0)
	drive(m, types.PhaseStarted)

	if m.TransitionTo(types.PhaseStarted, t0.Add(time.Minute)) {
		t.Error("self transition accepted, want rejected")
	}
	if got := len(m.History()); got != 2 {
		t.Errorf("history length = %d, want 2", got)
	}
}

func TestMachine_NoRegressionAfterPrepared(t *testing.T) {
	m := NewMachine(t0)
	drive(m,
		types.PhaseStarted, types.PhaseResolving, types.PhaseResolved,
		types.PhasePreparingDownload, types.PhaseDownloading, types.PhasePrepared,
	)

	for _, earlier := range []types.InstallPhase{
		types.PhaseDownloading,
		types.PhasePreparingDownload,
		types.PhaseResolving,
		types.PhaseIdle,
	} {
		if m.TransitionTo(earlier, t0.Add(time.Hour)) {
			t.Errorf("regression to %s accepted after prepared", earlier)
		}
	}
	if m.Current() != types.PhasePrepared {
		t.Errorf("Current() = %s, want prepared", m.Current())
	}
}

func TestMachine_ErrorReachableFromAnywhere(t *testing.T) {
	stops := [][]types.InstallPhase{
		{},
		{types.PhaseStarted},
		{types.PhaseStarted, types.PhaseResolving},
		{types.PhaseStarted, types.PhaseResolving, types.PhaseResolved, types.PhaseInstalling, types.PhaseInstalled},
	}

	for _, path := range stops {
		m := NewMachine(t0)
		drive(m, path...)
		if !m.TransitionTo(types.PhaseError, t0.Add(time.Hour)) {
			t.Errorf("error rejected from %s", m.Current())
		}
	}
}

func TestMachine_SkipPaths(t *testing.T) {
	// No requirements file read: started -> resolving.
	m := NewMachine(t0)
	drive(m, types.PhaseStarted)
	if !m.TransitionTo(types.PhaseResolving, t0.Add(time.Second)) {
		t.Error("started -> resolving rejected")
	}

	// Fully cached run: resolved -> installing.
	m = NewMachine(t0)
	drive(m, types.PhaseStarted, types.PhaseResolving, types.PhaseResolved)
	if !m.TransitionTo(types.PhaseInstalling, t0.Add(time.Second)) {
		t.Error("resolved -> installing rejected")
	}
}

func TestMachine_NonAdjacentRejected(t *testing.T) {
	m := NewMachine(t0)

	if m.TransitionTo(types.PhaseDownloading, t0) {
		t.Error("idle -> downloading accepted, want rejected")
	}
	if m.Current() != types.PhaseIdle {
		t.Errorf("Current() = %s, want idle", m.Current())
	}
}

func TestMachine_Reset(t *testing.T) {
	m := NewMachine(t0)
	drive(m, types.PhaseStarted, types.PhaseResolving)
	m.TransitionTo(types.PhaseError, t0.Add(time.Minute))

	m.Reset(t0.Add(2 * time.Minute))

	if m.Current() != types.PhaseIdle {
		t.Errorf("Current() = %s, want idle after reset", m.Current())
	}
	if got := len(m.History()); got != 1 {
		t.Errorf("history length = %d, want 1", got)
	}
	if !m.TransitionTo(types.PhaseStarted, t0.Add(3*time.Minute)) {
		t.Error("started rejected after reset")
	}
}

func TestMachine_Durations(t *testing.T) {
	m := NewMachine(t0)
	m.TransitionTo(types.PhaseStarted, t0.Add(1*time.Second))
	m.TransitionTo(types.PhaseResolving, t0.Add(3*time.Second))

	durs := m.Durations(t0.Add(10 * time.Second))

	if got := durs[types.PhaseIdle]; got != 1*time.Second {
		t.Errorf("idle duration = %v, want 1s", got)
	}
	if got := durs[types.PhaseStarted]; got != 2*time.Second {
		t.Errorf("started duration = %v, want 2s", got)
	}
	if got := durs[types.PhaseResolving]; got != 7*time.Second {
		t.Errorf("resolving duration = %v, want 7s", got)
	}
}

func TestMachine_EnteredAt(t *testing.T) {
	m := NewMachine(t0)
	entered := t0.Add(5 * time.Second)
	m.TransitionTo(types.PhaseStarted, entered)

	got, ok := m.EnteredAt(types.PhaseStarted)
	if !ok {
		t.Fatal("EnteredAt returned false")
	}
	if !got.Equal(entered) {
		t.Errorf("EnteredAt = %v, want %v", got, entered)
	}

	if _, ok := m.EnteredAt(types.PhaseInstalled); ok {
		t.Error("EnteredAt for unvisited phase returned true")
	}
}
