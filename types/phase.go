package types

// InstallPhase identifies a stage of the installation lifecycle.
// Phases are ordered; Rank reports the position. The only backward
// movement the pipeline allows is the preparing_download/downloading
// cycle, plus error which is reachable from anywhere.
type InstallPhase string

// Installation phases in lifecycle order.
const (
	PhaseIdle                InstallPhase = "idle"
	PhaseStarted             InstallPhase = "started"
	PhaseReadingRequirements InstallPhase = "reading_requirements"
	PhaseResolving           InstallPhase = "resolving"
	PhaseResolved            InstallPhase = "resolved"
	PhasePreparingDownload   InstallPhase = "preparing_download"
	PhaseDownloading         InstallPhase = "downloading"
	PhasePrepared            InstallPhase = "prepared"
	PhaseInstalling          InstallPhase = "installing"
	PhaseInstalled           InstallPhase = "installed"
	PhaseError               InstallPhase = "error"
)

// phaseRank maps each phase to its lifecycle position.
var phaseRank = map[InstallPhase]int{
	PhaseIdle:                0,
	PhaseStarted:             1,
	PhaseReadingRequirements: 2,
	PhaseResolving:           3,
	PhaseResolved:            4,
	PhasePreparingDownload:   5,
	PhaseDownloading:         6,
	PhasePrepared:            7,
	PhaseInstalling:          8,
	PhaseInstalled:           9,
	PhaseError:               10,
}

// Rank returns the phase's position in the lifecycle order.
// Unknown phases rank as -1.
func (p InstallPhase) Rank() int {
	r, ok := phaseRank[p]
	if !ok {
		return -1
	}
	return r
}

// Before reports whether p comes earlier in the lifecycle than other.
func (p InstallPhase) Before(other InstallPhase) bool {
	return p.Rank() < other.Rank()
}

// IsTerminal reports whether the phase ends forward progress.
func (p InstallPhase) IsTerminal() bool {
	return p == PhaseInstalled || p == PhaseError
}
