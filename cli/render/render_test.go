package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/justapithecus/uvlens/types"
)

func snapshot(phase types.InstallPhase, msg string) types.Snapshot {
	return types.Snapshot{
		Version:   "1",
		SessionID: "sess-001",
		Phase:     phase,
		Message:   msg,
	}
}

func TestPlain_PrintsMilestones(t *testing.T) {
	var buf bytes.Buffer
	p := NewPlain(&buf, false)

	p.OnSnapshot(snapshot(types.PhaseResolving, "Resolving dependencies"))
	p.OnSnapshot(snapshot(types.PhaseResolved, "Resolved 10 packages in 1.2s"))

	out := buf.String()
	if !strings.Contains(out, "Resolving dependencies") {
		t.Errorf("output missing resolving milestone:\n%s", out)
	}
	if !strings.Contains(out, "Resolved 10 packages in 1.2s") {
		t.Errorf("output missing resolved milestone:\n%s", out)
	}
}

func TestPlain_SuppressesRepeatedMessage(t *testing.T) {
	var buf bytes.Buffer
	p := NewPlain(&buf, false)

	p.OnSnapshot(snapshot(types.PhaseResolving, "Resolving dependencies"))
	p.OnSnapshot(snapshot(types.PhaseResolving, "Resolving dependencies"))

	if got := strings.Count(buf.String(), "Resolving dependencies"); got != 1 {
		t.Errorf("message printed %d times, want 1", got)
	}
}

func TestPlain_EmptyMessageSkipped(t *testing.T) {
	var buf bytes.Buffer
	p := NewPlain(&buf, false)

	p.OnSnapshot(snapshot(types.PhaseStarted, ""))

	if buf.Len() != 0 {
		t.Errorf("expected no output for empty message, got %q", buf.String())
	}
}

func TestPlain_BarDuringDownload(t *testing.T) {
	var buf bytes.Buffer
	p := NewPlain(&buf, true)

	snap := snapshot(types.PhaseDownloading, "Downloading packages")
	snap.OverallProgress = 40
	snap.CurrentOperation = "downloading torch"
	p.OnSnapshot(snap)

	if p.bar == nil {
		t.Fatal("expected bar during downloading phase")
	}

	done := snapshot(types.PhaseInstalling, "Installing packages")
	done.OverallProgress = 85
	p.OnSnapshot(done)

	if p.bar != nil {
		t.Error("expected bar cleared after leaving download phase")
	}
}

func TestPlain_NoBarWhenDisabled(t *testing.T) {
	var buf bytes.Buffer
	p := NewPlain(&buf, false)

	snap := snapshot(types.PhaseDownloading, "Downloading packages")
	snap.OverallProgress = 40
	p.OnSnapshot(snap)

	if p.bar != nil {
		t.Error("expected no bar when bars are disabled")
	}
}

func TestPlain_ResultSucceeded(t *testing.T) {
	var buf bytes.Buffer
	p := NewPlain(&buf, false)

	p.OnResult(types.InstallResult{
		Outcome:    types.OutcomeSucceeded,
		Phase:      types.PhaseInstalled,
		Packages:   types.PackageCounts{Total: 3, Resolved: 3, Downloaded: 3, Installed: 3},
		DurationMS: 6004,
	})

	out := buf.String()
	if !strings.Contains(out, "installed 3 packages") {
		t.Errorf("success line missing package count:\n%s", out)
	}
	if !strings.Contains(out, "6.004s") {
		t.Errorf("success line missing elapsed time:\n%s", out)
	}
}

func TestPlain_ResultFailed(t *testing.T) {
	var buf bytes.Buffer
	p := NewPlain(&buf, false)

	p.OnResult(types.InstallResult{
		Outcome:    types.OutcomeFailed,
		Phase:      types.PhaseError,
		Error:      "Failed to fetch wheel",
		DurationMS: 1500,
	})

	out := buf.String()
	if !strings.Contains(out, "failed after 1.5s") {
		t.Errorf("failure line missing duration:\n%s", out)
	}
	if !strings.Contains(out, "Failed to fetch wheel") {
		t.Errorf("failure line missing error:\n%s", out)
	}
}

func TestPlain_ResultIncomplete(t *testing.T) {
	var buf bytes.Buffer
	p := NewPlain(&buf, false)

	p.OnResult(types.InstallResult{
		Outcome:    types.OutcomeIncomplete,
		Phase:      types.PhaseDownloading,
		DurationMS: 2000,
	})

	if !strings.Contains(buf.String(), "ended in phase downloading") {
		t.Errorf("incomplete line missing phase:\n%s", buf.String())
	}
}

func TestPlain_ResultWarnings(t *testing.T) {
	var buf bytes.Buffer
	p := NewPlain(&buf, false)

	p.OnResult(types.InstallResult{
		Outcome:  types.OutcomeSucceeded,
		Warnings: 2,
	})

	if !strings.Contains(buf.String(), "2 warning(s)") {
		t.Errorf("expected warning count in output:\n%s", buf.String())
	}
}

func sampleReport() types.Report {
	return types.Report{
		SessionID:        "sess-001",
		Outcome:          types.OutcomeSucceeded,
		Phase:            types.PhaseInstalled,
		UvVersion:        "0.5.21",
		PythonVersion:    "3.12.8",
		RequirementsPath: "requirements.txt",
		DurationMS:       6004,
		PhaseMS: map[string]int64{
			"resolving":   1200,
			"downloading": 3100,
			"installing":  900,
		},
		Packages: types.PackageCounts{Total: 2, Resolved: 2, Downloaded: 2, Installed: 2},
		Downloads: []types.DownloadReport{
			{
				Package:       "torch",
				TotalBytes:    66492975,
				BytesReceived: 66492975,
				Percent:       100,
				DurationMS:    2800,
				Streams:       1,
				Status:        "completed",
			},
			{
				Package:       "flask",
				TotalBytes:    1048576,
				BytesReceived: 1048576,
				Percent:       100,
				DurationMS:    400,
				Streams:       1,
				Status:        "completed",
			},
		},
		Streams: []types.StreamReport{
			{ID: 1, Package: "torch", Confidence: 0.9, Frames: 3653, StartMS: 1300, EndMS: 4100},
			{ID: 3, Package: "flask", Confidence: 0.9, Frames: 64, StartMS: 1400, EndMS: 1800},
		},
		Lines:  120,
		Events: 95,
	}
}

func TestFormatReport_Header(t *testing.T) {
	var buf bytes.Buffer
	if err := FormatReport(&buf, sampleReport()); err != nil {
		t.Fatalf("FormatReport() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"sess-001",
		"succeeded",
		"0.5.21",
		"3.12.8",
		"requirements.txt",
		"6.004s",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestFormatReport_PhasesInRankOrder(t *testing.T) {
	var buf bytes.Buffer
	if err := FormatReport(&buf, sampleReport()); err != nil {
		t.Fatalf("FormatReport() error = %v", err)
	}

	out := buf.String()
	resolving := strings.Index(out, "resolving")
	downloading := strings.Index(out, "downloading")
	installing := strings.Index(out, "installing")
	if resolving < 0 || downloading < 0 || installing < 0 {
		t.Fatalf("phase rows missing:\n%s", out)
	}
	if !(resolving < downloading && downloading < installing) {
		t.Errorf("phases out of order: resolving=%d downloading=%d installing=%d",
			resolving, downloading, installing)
	}
}

func TestFormatReport_DownloadRows(t *testing.T) {
	var buf bytes.Buffer
	if err := FormatReport(&buf, sampleReport()); err != nil {
		t.Fatalf("FormatReport() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "torch") {
		t.Errorf("report missing torch row:\n%s", out)
	}
	if !strings.Contains(out, "63 MiB") {
		t.Errorf("report missing humanized torch size:\n%s", out)
	}
	if !strings.Contains(out, "1.0 MiB") {
		t.Errorf("report missing humanized flask size:\n%s", out)
	}
	if !strings.Contains(out, "100%") {
		t.Errorf("report missing percent column:\n%s", out)
	}
}

func TestFormatReport_StreamTimeline(t *testing.T) {
	var buf bytes.Buffer
	if err := FormatReport(&buf, sampleReport()); err != nil {
		t.Fatalf("FormatReport() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "TIMELINE") {
		t.Errorf("report missing stream timeline header:\n%s", out)
	}
	if !strings.Contains(out, "=") {
		t.Errorf("report missing timeline bars:\n%s", out)
	}
}

func TestFormatReport_SuspectMarker(t *testing.T) {
	rep := sampleReport()
	rep.Streams = append(rep.Streams, types.StreamReport{
		ID: 5, Confidence: 0, Frames: 12, StartMS: 2000, EndMS: 2100, Suspect: true,
	})

	var buf bytes.Buffer
	if err := FormatReport(&buf, rep); err != nil {
		t.Fatalf("FormatReport() error = %v", err)
	}

	if !strings.Contains(buf.String(), "(suspect)") {
		t.Errorf("report missing suspect marker:\n%s", buf.String())
	}
}

func TestFormatReport_WarningsAndError(t *testing.T) {
	rep := sampleReport()
	rep.Outcome = types.OutcomeFailed
	rep.Error = "Failed to fetch wheel"
	rep.Warnings = []string{"warning: hard links unsupported"}

	var buf bytes.Buffer
	if err := FormatReport(&buf, rep); err != nil {
		t.Fatalf("FormatReport() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Failed to fetch wheel") {
		t.Errorf("report missing error line:\n%s", out)
	}
	if !strings.Contains(out, "hard links unsupported") {
		t.Errorf("report missing warning line:\n%s", out)
	}
}

func TestFormatReport_EmptySections(t *testing.T) {
	rep := types.Report{
		SessionID: "sess-002",
		Outcome:   types.OutcomeIncomplete,
		Phase:     types.PhaseResolving,
	}

	var buf bytes.Buffer
	if err := FormatReport(&buf, rep); err != nil {
		t.Fatalf("FormatReport() error = %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "downloads:") {
		t.Errorf("empty report should omit downloads section:\n%s", out)
	}
	if strings.Contains(out, "streams:") {
		t.Errorf("empty report should omit streams section:\n%s", out)
	}
}

func TestTimelineBar_SpansAxis(t *testing.T) {
	tests := []struct {
		name       string
		start, end int64
		axisStart  int64
		axisEnd    int64
		wantFirst  byte
		wantLast   byte
	}{
		{"full span", 0, 100, 0, 100, '=', '='},
		{"first half", 0, 50, 0, 100, '=', '.'},
		{"second half", 50, 100, 0, 100, '.', '='},
		{"degenerate axis", 10, 10, 10, 10, '=', '='},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := timelineBar(tt.start, tt.end, tt.axisStart, tt.axisEnd)
			if len(bar) != timelineWidth {
				t.Fatalf("bar length = %d, want %d", len(bar), timelineWidth)
			}
			if bar[0] != tt.wantFirst {
				t.Errorf("bar[0] = %c, want %c (bar %q)", bar[0], tt.wantFirst, bar)
			}
			if bar[len(bar)-1] != tt.wantLast {
				t.Errorf("bar[last] = %c, want %c (bar %q)", bar[len(bar)-1], tt.wantLast, bar)
			}
		})
	}
}

func TestTimelineBar_TinySpanStillVisible(t *testing.T) {
	bar := timelineBar(500, 501, 0, 100000)
	if !strings.Contains(bar, "=") {
		t.Errorf("tiny stream should still draw one cell, got %q", bar)
	}
}
