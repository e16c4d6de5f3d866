package types

import "time"

// PackageCounts summarizes registry state for UI consumption.
type PackageCounts struct {
	Total      int `json:"total" msgpack:"total"`
	Resolved   int `json:"resolved" msgpack:"resolved"`
	Downloaded int `json:"downloaded" msgpack:"downloaded"`
	Installed  int `json:"installed" msgpack:"installed"`
}

// Timing carries session timing for a snapshot.
// PhaseMS maps phase name to milliseconds spent in that phase.
type Timing struct {
	StartedAt time.Time        `json:"started_at" msgpack:"started_at"`
	UpdatedAt time.Time        `json:"updated_at" msgpack:"updated_at"`
	ElapsedMS int64            `json:"elapsed_ms" msgpack:"elapsed_ms"`
	PhaseMS   map[string]int64 `json:"phase_ms,omitempty" msgpack:"phase_ms,omitempty"`
}

// DownloadProgress is one live per-package row for interactive views,
// derived on demand alongside the snapshot.
type DownloadProgress struct {
	Package       string  `json:"package" msgpack:"package"`
	TotalBytes    int64   `json:"total_bytes" msgpack:"total_bytes"`
	BytesReceived int64   `json:"bytes_received" msgpack:"bytes_received"`
	Percent       float64 `json:"percent" msgpack:"percent"`
	Rate          float64 `json:"rate" msgpack:"rate"`
	ETASeconds    float64 `json:"eta_seconds,omitempty" msgpack:"eta_seconds,omitempty"`
	HasETA        bool    `json:"has_eta" msgpack:"has_eta"`
	Status        string  `json:"status" msgpack:"status"`
}

// Snapshot is the derived, plain-data view of an installation session.
// It is recomputed on demand and never independently mutated; consumers
// (renderers, the hub, frame encoders, adapters) treat it as immutable.
type Snapshot struct {
	Version          string        `json:"version" msgpack:"version"`
	SessionID        string        `json:"session_id" msgpack:"session_id"`
	Phase            InstallPhase  `json:"phase" msgpack:"phase"`
	Message          string        `json:"message" msgpack:"message"`
	Packages         PackageCounts `json:"packages" msgpack:"packages"`
	CurrentOperation string        `json:"current_operation,omitempty" msgpack:"current_operation,omitempty"`
	OverallProgress  float64       `json:"overall_progress" msgpack:"overall_progress"`
	IsComplete       bool          `json:"is_complete" msgpack:"is_complete"`
	Error            string        `json:"error,omitempty" msgpack:"error,omitempty"`
	Timing           Timing        `json:"timing" msgpack:"timing"`
}
