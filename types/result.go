package types

import "time"

// Outcome classifies how a session ended.
type Outcome string

// Outcome constants.
const (
	// OutcomeSucceeded means the installed milestone was reached.
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomeFailed means the session ended in the error phase.
	OutcomeFailed Outcome = "failed"
	// OutcomeIncomplete means the log ended before a terminal phase.
	OutcomeIncomplete Outcome = "incomplete"
)

// InstallResult is the compact terminal summary of a session, delivered
// to completion adapters and emitted as the final sidecar frame.
type InstallResult struct {
	Version    string        `json:"version" msgpack:"version"`
	SessionID  string        `json:"session_id" msgpack:"session_id"`
	Outcome    Outcome       `json:"outcome" msgpack:"outcome"`
	Phase      InstallPhase  `json:"phase" msgpack:"phase"`
	UvVersion  string        `json:"uv_version,omitempty" msgpack:"uv_version,omitempty"`
	Packages   PackageCounts `json:"packages" msgpack:"packages"`
	DurationMS int64         `json:"duration_ms" msgpack:"duration_ms"`
	Error      string        `json:"error,omitempty" msgpack:"error,omitempty"`
	Warnings   int           `json:"warnings" msgpack:"warnings"`
}

// DownloadReport is one per-package row of the final report.
type DownloadReport struct {
	Package       string  `json:"package"`
	TotalBytes    int64   `json:"total_bytes"`
	BytesReceived int64   `json:"bytes_received"`
	Percent       float64 `json:"percent"`
	DurationMS    int64   `json:"duration_ms"`
	Streams       int     `json:"streams"`
	Status        string  `json:"status"`
}

// StreamReport is one per-stream row of the final report. StartMS and
// EndMS are offsets from installer start taken from the log's own
// timestamps, so replayed logs keep their original timeline.
type StreamReport struct {
	ID         uint32  `json:"id"`
	Package    string  `json:"package,omitempty"`
	Confidence float64 `json:"confidence"`
	Frames     int64   `json:"frames"`
	StartMS    int64   `json:"start_ms"`
	EndMS      int64   `json:"end_ms"`
	Suspect    bool    `json:"suspect,omitempty"`
}

// Report is the full post-session summary produced on Close and by the
// offline analyzer.
type Report struct {
	SessionID        string           `json:"session_id"`
	Outcome          Outcome          `json:"outcome"`
	Phase            InstallPhase     `json:"phase"`
	UvVersion        string           `json:"uv_version,omitempty"`
	PythonVersion    string           `json:"python_version,omitempty"`
	RequirementsPath string           `json:"requirements_path,omitempty"`
	StartedAt        time.Time        `json:"started_at"`
	DurationMS       int64            `json:"duration_ms"`
	PhaseMS          map[string]int64 `json:"phase_ms,omitempty"`
	Packages         PackageCounts    `json:"packages"`
	Downloads        []DownloadReport `json:"downloads,omitempty"`
	Streams          []StreamReport   `json:"streams,omitempty"`
	Warnings         []string         `json:"warnings,omitempty"`
	Error            string           `json:"error,omitempty"`
	Lines            int64            `json:"lines"`
	Events           int64            `json:"events"`
	UnknownLines     int64            `json:"unknown_lines"`
}
