package types

import "time"

// EventKind discriminates classified log events.
type EventKind string

// Event kind constants, one per classifier output variant.
const (
	KindProcessStart     EventKind = "process_start"
	KindRequirementsFile EventKind = "requirements_file"
	KindPythonVersion    EventKind = "python_version"
	KindResolverDecision EventKind = "resolver_decision"
	KindDependencyAdded  EventKind = "dependency_added"
	KindResolutionDone   EventKind = "resolution_complete"
	KindPrepareBatch     EventKind = "prepare_batch"
	KindDownloadPrepare  EventKind = "download_prepare"
	KindTransferHeaders  EventKind = "transfer_headers"
	KindTransferData     EventKind = "transfer_data"
	KindTransferSettings EventKind = "transfer_settings"
	KindPackagesPrepared EventKind = "packages_prepared"
	KindPackagesAudited  EventKind = "packages_audited"
	KindInstallStart     EventKind = "installation_start"
	KindInstallComplete  EventKind = "installation_complete"
	KindPackageChanged   EventKind = "package_changed"
	KindError            EventKind = "error"
	KindWarning          EventKind = "warning"
	KindUnknown          EventKind = "unknown"
)

// Event is one classified log line. Implementations are immutable value
// types; the classifier produces at most one Event per line.
//
// Trace-level lines carry a relative timestamp prefix ("  12.755s ...").
// Variants that originate from such lines expose it as At, the offset
// from installer start; zero means the line carried no offset.
type Event interface {
	Kind() EventKind
}

// ProcessStart is the installer version banner.
type ProcessStart struct {
	At      time.Duration
	Version string
}

// RequirementsFile reports the requirements source being read.
type RequirementsFile struct {
	At   time.Duration
	Path string
}

// PythonVersion reports the interpreter version the resolver solves for.
type PythonVersion struct {
	At      time.Duration
	Version string
}

// ResolverDecision is one solver decision. PackageID is the solver's
// internal numeric id; 0 is the synthetic root.
type ResolverDecision struct {
	At        time.Duration
	PackageID int
}

// DependencyAdded reports a direct dependency entering resolution.
type DependencyAdded struct {
	At          time.Duration
	Name        string
	VersionSpec string
}

// ResolutionDone is the "Resolved N packages in D" milestone.
type ResolutionDone struct {
	Count    int
	Duration time.Duration
}

// PrepareBatch announces how many wheels are about to be fetched.
type PrepareBatch struct {
	At    time.Duration
	Total int
}

// DownloadPrepare carries the package/size/url triple for one wheel
// fetch. TotalBytes 0 means the size is unknown.
type DownloadPrepare struct {
	At         time.Duration
	Name       string
	Version    string
	TotalBytes int64
	URL        string
}

// TransferHeaders is an HTTP/2 headers frame observation.
type TransferHeaders struct {
	At       time.Duration
	StreamID uint32
}

// TransferData is an HTTP/2 data frame observation.
type TransferData struct {
	At        time.Duration
	StreamID  uint32
	EndStream bool
}

// TransferSettings is an HTTP/2 settings frame observation.
// MaxFrameSize 0 means the frame did not advertise one.
type TransferSettings struct {
	At           time.Duration
	MaxFrameSize int64
}

// PackagesPrepared is the "Prepared N packages in D" milestone.
type PackagesPrepared struct {
	Count    int
	Duration time.Duration
}

// PackagesAudited is the "Audited N packages in D" milestone.
type PackagesAudited struct {
	Count    int
	Duration time.Duration
}

// InstallStart reports the installer entering the blocking install step.
type InstallStart struct {
	At     time.Duration
	Wheels int
}

// InstallComplete is the "Installed N packages in D" milestone.
type InstallComplete struct {
	Count    int
	Duration time.Duration
}

// PackageChanged is one entry of the final changed-package list
// ("+ name==version" / "- name==version").
type PackageChanged struct {
	Name    string
	Version string
	Removed bool
}

// ErrorLine is an explicit error marker in the log.
type ErrorLine struct {
	Message string
}

// WarningLine is an explicit warning marker in the log.
type WarningLine struct {
	Message string
}

// Unknown is a structurally recognized trace line with no mapped
// semantics. It keeps the module path and message for diagnostics.
type Unknown struct {
	At      time.Duration
	Module  string
	Message string
}

func (ProcessStart) Kind() EventKind     { return KindProcessStart }
func (RequirementsFile) Kind() EventKind { return KindRequirementsFile }
func (PythonVersion) Kind() EventKind    { return KindPythonVersion }
func (ResolverDecision) Kind() EventKind { return KindResolverDecision }
func (DependencyAdded) Kind() EventKind  { return KindDependencyAdded }
func (ResolutionDone) Kind() EventKind   { return KindResolutionDone }
func (PrepareBatch) Kind() EventKind     { return KindPrepareBatch }
func (DownloadPrepare) Kind() EventKind  { return KindDownloadPrepare }
func (TransferHeaders) Kind() EventKind  { return KindTransferHeaders }
func (TransferData) Kind() EventKind     { return KindTransferData }
func (TransferSettings) Kind() EventKind { return KindTransferSettings }
func (PackagesPrepared) Kind() EventKind { return KindPackagesPrepared }
func (PackagesAudited) Kind() EventKind  { return KindPackagesAudited }
func (InstallStart) Kind() EventKind     { return KindInstallStart }
func (InstallComplete) Kind() EventKind  { return KindInstallComplete }
func (PackageChanged) Kind() EventKind   { return KindPackageChanged }
func (ErrorLine) Kind() EventKind        { return KindError }
func (WarningLine) Kind() EventKind      { return KindWarning }
func (Unknown) Kind() EventKind          { return KindUnknown }
