package reader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/justapithecus/uvlens/session"
	"github.com/justapithecus/uvlens/types"
)

// installLog is a compact complete run: two packages resolved and
// installed, no transfer frames.
const installLog = `    0.000108s DEBUG uv uv 0.5.21 (dd1934c9c 2024-11-14)
    0.002341s DEBUG uv_requirements::specification Reading requirements from: requirements.txt
    0.015482s DEBUG uv_resolver::resolver Solving with installed Python version: 3.11.9
    0.018873s DEBUG uv_resolver::resolver Adding direct dependency: torch>=2.5
    0.019020s DEBUG uv_resolver::resolver Adding direct dependency: flask==3.1.0
Resolved 2 packages in 379ms
    6.004112s DEBUG uv_installer::installer::install_blocking num_wheels=2
 + flask==3.1.0
 + torch==2.5.1
Installed 2 packages in 821ms
`

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "uv.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func replaySession(t *testing.T, path string, chunkSize int) types.Report {
	t.Helper()
	guard := session.NewGuard(session.New(session.Config{ID: "replay-test"}))
	if err := Replay(path, guard, chunkSize); err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	return guard.Close()
}

func TestReplay_FullLog(t *testing.T) {
	path := writeLog(t, installLog)
	rep := replaySession(t, path, 0)

	if rep.Outcome != types.OutcomeSucceeded {
		t.Errorf("outcome = %q, want succeeded", rep.Outcome)
	}
	if rep.Phase != types.PhaseInstalled {
		t.Errorf("phase = %q, want installed", rep.Phase)
	}
	if rep.Packages.Installed != 2 {
		t.Errorf("installed = %d, want 2", rep.Packages.Installed)
	}
	if rep.UvVersion != "0.5.21" {
		t.Errorf("uv version = %q, want 0.5.21", rep.UvVersion)
	}
	if want := int64(strings.Count(installLog, "\n")); rep.Lines != want {
		t.Errorf("lines = %d, want %d", rep.Lines, want)
	}
}

func TestReplay_TinyChunksMatchLargeChunks(t *testing.T) {
	path := writeLog(t, installLog)

	tiny := replaySession(t, path, 1)
	large := replaySession(t, path, 64*1024)

	if tiny.Phase != large.Phase {
		t.Errorf("phase mismatch: tiny %q, large %q", tiny.Phase, large.Phase)
	}
	if tiny.Lines != large.Lines {
		t.Errorf("line count mismatch: tiny %d, large %d", tiny.Lines, large.Lines)
	}
	if tiny.Packages != large.Packages {
		t.Errorf("package counts mismatch: tiny %+v, large %+v", tiny.Packages, large.Packages)
	}
	if tiny.Events != large.Events {
		t.Errorf("event count mismatch: tiny %d, large %d", tiny.Events, large.Events)
	}
}

func TestReplay_MissingFile(t *testing.T) {
	guard := session.NewGuard(session.New(session.Config{}))

	err := Replay(filepath.Join(t.TempDir(), "absent.log"), guard, 0)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "open log") {
		t.Errorf("error = %v, want open log context", err)
	}
}

func TestReplay_EmptyFile(t *testing.T) {
	path := writeLog(t, "")
	rep := replaySession(t, path, 0)

	if rep.Lines != 0 {
		t.Errorf("lines = %d, want 0", rep.Lines)
	}
	if rep.Outcome != types.OutcomeIncomplete {
		t.Errorf("outcome = %q, want incomplete", rep.Outcome)
	}
}

func TestReplay_TruncatedLog(t *testing.T) {
	partial := strings.Join(strings.SplitAfter(installLog, "\n")[:6], "")
	path := writeLog(t, partial)
	rep := replaySession(t, path, 0)

	if rep.Outcome != types.OutcomeIncomplete {
		t.Errorf("outcome = %q, want incomplete", rep.Outcome)
	}
	if rep.Phase != types.PhaseResolved {
		t.Errorf("phase = %q, want resolved", rep.Phase)
	}
}
