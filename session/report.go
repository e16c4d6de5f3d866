package session

import (
	"time"

	"github.com/justapithecus/uvlens/types"
)

// Report builds the full post-session summary. Valid at any point;
// Close calls it after flushing the trailing partial line.
func (s *Session) Report() types.Report {
	return s.buildReport()
}

// Result builds the compact terminal summary for completion adapters.
func (s *Session) Result() types.InstallResult {
	return types.InstallResult{
		Version:    types.Version,
		SessionID:  s.id,
		Outcome:    s.outcome(),
		Phase:      s.machine.Current(),
		UvVersion:  s.uvVersion,
		Packages:   s.counts(),
		DurationMS: s.logClock.Milliseconds(),
		Error:      s.errMsg,
		Warnings:   len(s.warnings),
	}
}

func (s *Session) outcome() types.Outcome {
	switch s.machine.Current() {
	case types.PhaseInstalled:
		return types.OutcomeSucceeded
	case types.PhaseError:
		return types.OutcomeFailed
	default:
		return types.OutcomeIncomplete
	}
}

func (s *Session) buildReport() types.Report {
	now := s.now()
	return types.Report{
		SessionID:        s.id,
		Outcome:          s.outcome(),
		Phase:            s.machine.Current(),
		UvVersion:        s.uvVersion,
		PythonVersion:    s.pythonVersion,
		RequirementsPath: s.requirementsPath,
		StartedAt:        s.startedAt,
		DurationMS:       s.logClock.Milliseconds(),
		PhaseMS:          phaseMillis(s.machine.Durations(now)),
		Packages:         s.counts(),
		Downloads:        s.downloadReports(now),
		Streams:          s.streamReports(),
		Warnings:         append([]string(nil), s.warnings...),
		Error:            s.errMsg,
		Lines:            s.lineCount,
		Events:           s.eventCount,
		UnknownLines:     s.unknownCount,
	}
}

func (s *Session) downloadReports(now time.Time) []types.DownloadReport {
	downloads := s.tracker.All()
	if len(downloads) == 0 {
		return nil
	}
	out := make([]types.DownloadReport, 0, len(downloads))
	for _, d := range downloads {
		est := s.estimator.Estimate(d, now)
		out = append(out, types.DownloadReport{
			Package:       d.Package,
			TotalBytes:    d.TotalBytes,
			BytesReceived: est.Bytes,
			Percent:       est.Percent,
			DurationMS:    d.LastUpdateAt.Sub(d.StartedAt).Milliseconds(),
			Streams:       d.StreamCount,
			Status:        string(d.Status),
		})
	}
	return out
}

func (s *Session) streamReports() []types.StreamReport {
	streams := s.engine.Streams()
	if len(streams) == 0 {
		return nil
	}
	out := make([]types.StreamReport, 0, len(streams))
	for _, st := range streams {
		out = append(out, types.StreamReport{
			ID:         st.ID,
			Package:    st.Package,
			Confidence: st.Confidence,
			Frames:     st.FrameCount,
			StartMS:    st.OpenedAt.Sub(s.startedAt).Milliseconds(),
			EndMS:      st.LastFrameAt.Sub(s.startedAt).Milliseconds(),
			Suspect:    st.Suspect,
		})
	}
	return out
}
