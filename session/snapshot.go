package session

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/justapithecus/uvlens/track"
	"github.com/justapithecus/uvlens/types"
)

// phaseBaseline anchors overall progress per phase. The gap between
// preparing_download and prepared is filled by download byte progress.
var phaseBaseline = map[types.InstallPhase]float64{
	types.PhaseIdle:                0,
	types.PhaseStarted:             2,
	types.PhaseReadingRequirements: 5,
	types.PhaseResolving:           10,
	types.PhaseResolved:            20,
	types.PhasePreparingDownload:   22,
	types.PhaseDownloading:         22,
	types.PhasePrepared:            80,
	types.PhaseInstalling:          85,
	types.PhaseInstalled:           100,
}

// downloadSpan is the progress share covered by byte transfer.
const downloadSpan = 80 - 22

// Snapshot builds the current point-in-time view. The returned value
// shares no mutable state with the session.
func (s *Session) Snapshot() types.Snapshot {
	return s.buildSnapshot()
}

func (s *Session) buildSnapshot() types.Snapshot {
	now := s.now()
	return types.Snapshot{
		Version:          types.Version,
		SessionID:        s.id,
		Phase:            s.machine.Current(),
		Message:          s.message,
		Packages:         s.counts(),
		CurrentOperation: s.currentOperation(),
		OverallProgress:  s.computeProgress(),
		IsComplete:       s.isComplete,
		Error:            s.errMsg,
		Timing: types.Timing{
			StartedAt: s.startedAt,
			UpdatedAt: now,
			ElapsedMS: s.logClock.Milliseconds(),
			PhaseMS:   phaseMillis(s.machine.Durations(now)),
		},
	}
}

func (s *Session) counts() types.PackageCounts {
	counts := s.packages.Counts()
	if s.resolvedCount > counts.Total {
		counts.Total = s.resolvedCount
	}
	counts.Resolved = s.resolvedCount
	return counts
}

// computeProgress maps the phase to its baseline and fills the
// download band with byte progress. The displayed value never
// decreases; an error freezes it.
func (s *Session) computeProgress() float64 {
	cur := s.machine.Current()
	if cur == types.PhaseError {
		return s.maxProgress
	}

	progress := phaseBaseline[cur]
	if cur == types.PhaseDownloading {
		progress += downloadSpan * s.byteFraction()
	}
	if progress < s.maxProgress {
		return s.maxProgress
	}
	s.maxProgress = progress
	return progress
}

// byteFraction is aggregate received bytes over aggregate expected
// bytes, across downloads with a known total. When no download
// advertises a total it falls back to the completed-download ratio.
func (s *Session) byteFraction() float64 {
	var got, want int64
	var total, completed int
	for _, d := range s.tracker.All() {
		total++
		if d.Status == track.DownloadCompleted {
			completed++
		}
		if d.TotalBytes <= 0 {
			continue
		}
		want += d.TotalBytes
		if d.Status == track.DownloadCompleted {
			got += d.TotalBytes
		} else {
			got += track.EffectiveBytes(d)
		}
	}
	if want > 0 {
		f := float64(got) / float64(want)
		if f > 1 {
			f = 1
		}
		return f
	}
	if total > 0 {
		return float64(completed) / float64(total)
	}
	return 0
}

var phaseOperations = map[types.InstallPhase]string{
	types.PhaseIdle:                "",
	types.PhaseStarted:             "starting",
	types.PhaseReadingRequirements: "reading requirements",
	types.PhaseResolving:           "resolving dependencies",
	types.PhaseResolved:            "resolution complete",
	types.PhasePreparingDownload:   "preparing downloads",
	types.PhaseDownloading:         "downloading packages",
	types.PhasePrepared:            "downloads complete",
	types.PhaseInstalling:          "installing wheels",
	types.PhaseInstalled:           "install complete",
	types.PhaseError:               "failed",
}

func (s *Session) currentOperation() string {
	cur := s.machine.Current()
	if cur == types.PhaseDownloading || cur == types.PhasePreparingDownload {
		if d, ok := s.newestActiveDownload(); ok {
			est := s.estimator.Estimate(d, s.now())
			if d.TotalBytes > 0 {
				return fmt.Sprintf("downloading %s (%.0f%% of %s)",
					d.Package, est.Percent, humanize.IBytes(uint64(d.TotalBytes)))
			}
			return "downloading " + d.Package
		}
	}
	return phaseOperations[cur]
}

// newestActiveDownload picks the most recently touched in-flight
// download for the operation line.
func (s *Session) newestActiveDownload() (track.Download, bool) {
	var best track.Download
	var found bool
	for _, d := range s.tracker.ActiveDownloads() {
		if !found || d.LastUpdateAt.After(best.LastUpdateAt) {
			best = d
			found = true
		}
	}
	return best, found
}

// Downloads returns live per-package rows in start order, with rate and
// ETA from the estimator. Like Snapshot, the result shares no mutable
// state with the session.
func (s *Session) Downloads() []types.DownloadProgress {
	all := s.tracker.All()
	if len(all) == 0 {
		return nil
	}
	now := s.now()
	rows := make([]types.DownloadProgress, 0, len(all))
	for _, d := range all {
		est := s.estimator.Estimate(d, now)
		rows = append(rows, types.DownloadProgress{
			Package:       d.Package,
			TotalBytes:    d.TotalBytes,
			BytesReceived: est.Bytes,
			Percent:       est.Percent,
			Rate:          est.Rate,
			ETASeconds:    est.ETASeconds,
			HasETA:        est.HasETA,
			Status:        string(d.Status),
		})
	}
	return rows
}

func phaseMillis(durations map[types.InstallPhase]time.Duration) map[string]int64 {
	if len(durations) == 0 {
		return nil
	}
	out := make(map[string]int64, len(durations))
	for p, d := range durations {
		out[string(p)] = d.Milliseconds()
	}
	return out
}
