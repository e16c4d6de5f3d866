// Package classify turns raw installer log lines into typed events.
//
// Classification is pure: no state is kept between lines, and the same
// input always yields the same output. Checks run most specific first:
// explicit error/warning markers, then fixed-format milestone lines, the
// final changed-package list, structured internal trace lines, transport
// frame lines, and last a generic timestamped module-trace fallback.
// Lines that match nothing, and human-readable lines that duplicate
// already-structured information, produce no event.
package classify

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/justapithecus/uvlens/types"
)

var (
	errorLineRe = regexp.MustCompile(`^\s*(?:[0-9][0-9.]*s\s+)?(?:error:\s*|ERROR\s+|×\s+)(.+)$`)
	warnLineRe  = regexp.MustCompile(`^\s*(?:[0-9][0-9.]*s\s+)?(?:warning:\s*|WARN\s+)(.+)$`)

	milestoneRe = regexp.MustCompile(`^(Resolved|Prepared|Installed|Audited) (\d+) packages? in (\S+)$`)
	changedRe   = regexp.MustCompile(`^\s*([+-])\s+(\S+?)==(\S+)$`)

	versionBannerRe = regexp.MustCompile(`DEBUG uv uv (\S+)`)
	requirementsRe  = regexp.MustCompile(`Reading requirements from: (\S+)`)
	pythonRe        = regexp.MustCompile(`Solving with (?:installed|target) Python version:?\s*(\S+)`)
	decisionRe      = regexp.MustCompile(`add_decision:?\D*\((\d+)\)`)
	dependencyRe    = regexp.MustCompile(`Adding direct dependency: ([A-Za-z0-9_.\[\],-]+?)\s*([<>=!~@].*)?$`)

	getWheelRe        = regexp.MustCompile(`preparer::get_wheel name=([A-Za-z0-9_.\[\]-]+)==([^,]+), size=(?:Some\((\d+)\)|None), url="([^"]*)"`)
	prepareTotalRe    = regexp.MustCompile(`preparer::prepare\b.*\btotal=(\d+)`)
	installBlockingRe = regexp.MustCompile(`installer::install_blocking\b.*\bnum_wheels=(\d+)`)

	headersFrameRe = regexp.MustCompile(`frame=Headers \{ stream_id: StreamId\((\d+)\)`)
	dataFrameRe    = regexp.MustCompile(`frame=Data \{ stream_id: StreamId\((\d+)\)`)
	settingsRe     = regexp.MustCompile(`frame=Settings \{`)
	maxFrameSizeRe = regexp.MustCompile(`max_frame_size: (\d+)`)

	// The human "Downloading torch (63.4MiB)" line restates what the
	// get_wheel trace already carried with exact bytes; acting on both
	// would double-mutate state, so this one is dropped.
	humanDownloadRe = regexp.MustCompile(`^Downloading \S+ \([0-9.]+\s?[KMG]i?B\)$`)

	offsetRe = regexp.MustCompile(`^\s*([0-9][0-9.]*)s\s+`)
	traceRe  = regexp.MustCompile(`^\s*([0-9][0-9.]*)s\s+(?:DEBUG|INFO|TRACE)\s+(\S+)\s*(.*)$`)
)

// Classify maps one log line to at most one event. The second return is
// false when the line carries no classifiable information.
func Classify(line string) (types.Event, bool) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return nil, false
	}

	if m := errorLineRe.FindStringSubmatch(line); m != nil {
		return types.ErrorLine{Message: m[1]}, true
	}
	if m := warnLineRe.FindStringSubmatch(line); m != nil {
		return types.WarningLine{Message: m[1]}, true
	}

	if m := milestoneRe.FindStringSubmatch(line); m != nil {
		count := lenientInt(m[2])
		dur := lenientDuration(m[3])
		switch m[1] {
		case "Resolved":
			return types.ResolutionDone{Count: count, Duration: dur}, true
		case "Prepared":
			return types.PackagesPrepared{Count: count, Duration: dur}, true
		case "Installed":
			return types.InstallComplete{Count: count, Duration: dur}, true
		case "Audited":
			return types.PackagesAudited{Count: count, Duration: dur}, true
		}
	}

	if m := changedRe.FindStringSubmatch(line); m != nil {
		return types.PackageChanged{
			Name:    m[2],
			Version: m[3],
			Removed: m[1] == "-",
		}, true
	}

	at := parseOffset(line)

	if m := getWheelRe.FindStringSubmatch(line); m != nil {
		return types.DownloadPrepare{
			At:         at,
			Name:       m[1],
			Version:    strings.TrimSpace(m[2]),
			TotalBytes: lenientInt64(m[3]),
			URL:        m[4],
		}, true
	}
	if m := prepareTotalRe.FindStringSubmatch(line); m != nil {
		return types.PrepareBatch{At: at, Total: lenientInt(m[1])}, true
	}
	if m := installBlockingRe.FindStringSubmatch(line); m != nil {
		return types.InstallStart{At: at, Wheels: lenientInt(m[1])}, true
	}
	if m := requirementsRe.FindStringSubmatch(line); m != nil {
		return types.RequirementsFile{At: at, Path: m[1]}, true
	}
	if m := pythonRe.FindStringSubmatch(line); m != nil {
		return types.PythonVersion{At: at, Version: m[1]}, true
	}
	if m := dependencyRe.FindStringSubmatch(line); m != nil {
		return types.DependencyAdded{
			At:          at,
			Name:        m[1],
			VersionSpec: strings.TrimSpace(m[2]),
		}, true
	}
	if strings.Contains(line, "pubgrub") {
		if m := decisionRe.FindStringSubmatch(line); m != nil {
			return types.ResolverDecision{At: at, PackageID: lenientInt(m[1])}, true
		}
	}
	if m := versionBannerRe.FindStringSubmatch(line); m != nil {
		return types.ProcessStart{At: at, Version: m[1]}, true
	}

	if m := headersFrameRe.FindStringSubmatch(line); m != nil {
		return types.TransferHeaders{At: at, StreamID: lenientStreamID(m[1])}, true
	}
	if m := dataFrameRe.FindStringSubmatch(line); m != nil {
		return types.TransferData{
			At:        at,
			StreamID:  lenientStreamID(m[1]),
			EndStream: strings.Contains(line, "END_STREAM"),
		}, true
	}
	if settingsRe.MatchString(line) {
		var size int64
		if m := maxFrameSizeRe.FindStringSubmatch(line); m != nil {
			size = lenientInt64(m[1])
		}
		return types.TransferSettings{At: at, MaxFrameSize: size}, true
	}

	if humanDownloadRe.MatchString(line) {
		return nil, false
	}

	if m := traceRe.FindStringSubmatch(line); m != nil {
		return types.Unknown{
			At:      parseOffsetString(m[1]),
			Module:  m[2],
			Message: m[3],
		}, true
	}

	return nil, false
}

// parseOffset extracts the relative "  12.755s " timestamp prefix.
// Lines without one yield zero.
func parseOffset(line string) time.Duration {
	m := offsetRe.FindStringSubmatch(line)
	if m == nil {
		return 0
	}
	return parseOffsetString(m[1])
}

func parseOffsetString(s string) time.Duration {
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

// lenientInt parses a decimal, defaulting to 0 on malformed input.
// Classification never fails on a bad number.
func lenientInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func lenientInt64(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func lenientStreamID(s string) uint32 {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0
	}
	return uint32(n)
}

// lenientDuration parses installer duration strings like "379ms",
// "4.82s", or "1m 30s". Malformed input yields zero.
func lenientDuration(s string) time.Duration {
	d, err := time.ParseDuration(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		return 0
	}
	return d
}
