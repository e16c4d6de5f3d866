// Package render draws live progress and final reports for the uvlens
// CLI.
//
// Plain mode prints milestone lines as the session advances and, on a
// terminal, drives a progress bar from snapshot emissions. Quiet mode
// prints nothing. The analyze view formats a finished report with
// aligned columns.
package render

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/justapithecus/uvlens/types"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Plain prints milestone lines and an optional overall progress bar.
// Not safe for concurrent use; callbacks arrive on one goroutine.
type Plain struct {
	out     io.Writer
	bars    bool
	bar     *progressbar.ProgressBar
	lastMsg string
	lastOp  string
}

// NewPlain creates a plain renderer writing to out. When bars is false
// only milestone lines are printed, which keeps piped output clean.
func NewPlain(out io.Writer, bars bool) *Plain {
	return &Plain{out: out, bars: bars}
}

// OnSnapshot consumes one emitted snapshot.
func (p *Plain) OnSnapshot(snap types.Snapshot) {
	if snap.Message != "" && snap.Message != p.lastMsg {
		p.clearBar()
		fmt.Fprintln(p.out, snap.Message)
		p.lastMsg = snap.Message
	}

	downloading := snap.Phase == types.PhasePreparingDownload || snap.Phase == types.PhaseDownloading
	if p.bars && downloading {
		if p.bar == nil {
			p.bar = progressbar.NewOptions(100,
				progressbar.OptionSetWriter(p.out),
				progressbar.OptionSetDescription("downloading"),
				progressbar.OptionSetWidth(30),
				progressbar.OptionSetPredictTime(false),
			)
		}
		_ = p.bar.Set(int(snap.OverallProgress + 0.5))
		if snap.CurrentOperation != "" && snap.CurrentOperation != p.lastOp {
			p.bar.Describe(snap.CurrentOperation)
			p.lastOp = snap.CurrentOperation
		}
		return
	}
	p.clearBar()
}

// OnResult prints the terminal summary line.
func (p *Plain) OnResult(res types.InstallResult) {
	p.clearBar()
	elapsed := time.Duration(res.DurationMS) * time.Millisecond
	switch res.Outcome {
	case types.OutcomeSucceeded:
		fmt.Fprintf(p.out, "installed %d packages in %s\n", res.Packages.Installed, elapsed)
	case types.OutcomeFailed:
		fmt.Fprintf(p.out, "failed after %s: %s\n", elapsed, res.Error)
	default:
		fmt.Fprintf(p.out, "incomplete: ended in phase %s after %s\n", res.Phase, elapsed)
	}
	if res.Warnings > 0 {
		fmt.Fprintf(p.out, "%d warning(s)\n", res.Warnings)
	}
}

func (p *Plain) clearBar() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Clear()
	p.bar = nil
	p.lastOp = ""
}

// timelineWidth is the character width of the analyze stream timeline.
const timelineWidth = 24

// FormatReport writes the analyze view of a finished session: header
// fields, per-phase durations, download rows, and the stream timeline.
func FormatReport(w io.Writer, rep types.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "session:\t%s\n", rep.SessionID)
	fmt.Fprintf(tw, "outcome:\t%s\n", rep.Outcome)
	fmt.Fprintf(tw, "phase:\t%s\n", rep.Phase)
	if rep.UvVersion != "" {
		fmt.Fprintf(tw, "uv:\t%s\n", rep.UvVersion)
	}
	if rep.PythonVersion != "" {
		fmt.Fprintf(tw, "python:\t%s\n", rep.PythonVersion)
	}
	if rep.RequirementsPath != "" {
		fmt.Fprintf(tw, "requirements:\t%s\n", rep.RequirementsPath)
	}
	fmt.Fprintf(tw, "duration:\t%s\n", formatMillis(rep.DurationMS))
	fmt.Fprintf(tw, "lines:\t%d (%d events, %d unknown)\n", rep.Lines, rep.Events, rep.UnknownLines)
	fmt.Fprintf(tw, "packages:\ttotal %d, resolved %d, downloaded %d, installed %d\n",
		rep.Packages.Total, rep.Packages.Resolved, rep.Packages.Downloaded, rep.Packages.Installed)
	if rep.Error != "" {
		fmt.Fprintf(tw, "error:\t%s\n", rep.Error)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(rep.PhaseMS) > 0 {
		fmt.Fprintf(w, "\nphases:\n")
		if err := writePhases(w, rep.PhaseMS); err != nil {
			return err
		}
	}

	if len(rep.Downloads) > 0 {
		fmt.Fprintf(w, "\ndownloads:\n")
		if err := writeDownloads(w, rep.Downloads); err != nil {
			return err
		}
	}

	if len(rep.Streams) > 0 {
		fmt.Fprintf(w, "\nstreams:\n")
		if err := writeStreams(w, rep.Streams); err != nil {
			return err
		}
	}

	if len(rep.Warnings) > 0 {
		fmt.Fprintf(w, "\nwarnings:\n")
		for _, warning := range rep.Warnings {
			fmt.Fprintf(w, "  %s\n", warning)
		}
	}

	return nil
}

func writePhases(w io.Writer, phaseMS map[string]int64) error {
	names := make([]string, 0, len(phaseMS))
	for name := range phaseMS {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return types.InstallPhase(names[i]).Rank() < types.InstallPhase(names[j]).Rank()
	})

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(tw, "  %s\t%s\n", name, formatMillis(phaseMS[name]))
	}
	return tw.Flush()
}

func writeDownloads(w io.Writer, rows []types.DownloadReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  PACKAGE\tSIZE\tRECEIVED\tPCT\tTIME\tSTREAMS\tSTATUS")
	for _, d := range rows {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%.0f%%\t%s\t%d\t%s\n",
			d.Package,
			formatBytes(d.TotalBytes),
			formatBytes(d.BytesReceived),
			d.Percent,
			formatMillis(d.DurationMS),
			d.Streams,
			d.Status,
		)
	}
	return tw.Flush()
}

// writeStreams renders one row per transport stream with its span drawn
// on a shared time axis.
func writeStreams(w io.Writer, rows []types.StreamReport) error {
	var minStart, maxEnd int64
	for i, s := range rows {
		if i == 0 || s.StartMS < minStart {
			minStart = s.StartMS
		}
		if s.EndMS > maxEnd {
			maxEnd = s.EndMS
		}
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  ID\tPACKAGE\tCONF\tFRAMES\tSPAN\tTIMELINE")
	for _, s := range rows {
		pkg := s.Package
		if pkg == "" {
			pkg = "?"
		}
		if s.Suspect {
			pkg += " (suspect)"
		}
		fmt.Fprintf(tw, "  %d\t%s\t%.2f\t%d\t%s..%s\t%s\n",
			s.ID,
			pkg,
			s.Confidence,
			s.Frames,
			formatMillis(s.StartMS),
			formatMillis(s.EndMS),
			timelineBar(s.StartMS, s.EndMS, minStart, maxEnd),
		)
	}
	return tw.Flush()
}

// timelineBar draws a stream's lifetime within the shared axis, one
// cell per slice of the total span.
func timelineBar(start, end, axisStart, axisEnd int64) string {
	span := axisEnd - axisStart
	if span <= 0 {
		return strings.Repeat("=", timelineWidth)
	}
	from := int(float64(start-axisStart) / float64(span) * timelineWidth)
	to := int(float64(end-axisStart) / float64(span) * timelineWidth)
	if from >= timelineWidth {
		from = timelineWidth - 1
	}
	if to <= from {
		to = from + 1
	}
	if to > timelineWidth {
		to = timelineWidth
	}
	return strings.Repeat(".", from) + strings.Repeat("=", to-from) + strings.Repeat(".", timelineWidth-to)
}

func formatBytes(n int64) string {
	if n <= 0 {
		return "?"
	}
	return humanize.IBytes(uint64(n))
}

func formatMillis(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}
