package track

import "time"

// Confidence scores recorded on a stream when it is bound to a
// package, by the rule that produced the binding.
const (
	ConfidenceFIFO       = 0.9
	ConfidenceSizeTie    = 0.8
	ConfidenceReopen     = 0.5
	ConfidenceLastActive = 0.3
)

// TierLabel names the heuristic tier behind a recorded confidence, for
// metrics and logs.
func TierLabel(confidence float64) string {
	switch confidence {
	case ConfidenceFIFO:
		return "fifo"
	case ConfidenceSizeTie:
		return "size-tie"
	case ConfidenceReopen:
		return "reopen"
	case ConfidenceLastActive:
		return "last-active"
	}
	return "unknown"
}

// Candidate is the slice of download state the association heuristic
// reads. Built from active downloads at selection time.
type Candidate struct {
	Package     string
	TotalBytes  int64
	StartedAt   time.Time
	StreamCount int
	OpenStreams int
}

// Pick chooses the package an unbound stream most likely carries.
// Pure: callers bind the winner in a separate step.
//
// Preference order: a download that has never owned a stream, by start
// time; when several such starts cluster inside the tolerance window,
// the largest expected transfer wins instead, since big wheels open
// their streams first. Failing a fresh candidate, an active download
// with no open stream; failing that, the lone remaining active
// download, if there is exactly one.
func Pick(cands []Candidate, tolerance time.Duration) (string, float64, bool) {
	if len(cands) == 0 {
		return "", 0, false
	}

	var fresh []Candidate
	for _, c := range cands {
		if c.StreamCount == 0 {
			fresh = append(fresh, c)
		}
	}
	if len(fresh) > 0 {
		return pickFresh(fresh, tolerance)
	}

	var reopen []Candidate
	for _, c := range cands {
		if c.OpenStreams == 0 {
			reopen = append(reopen, c)
		}
	}
	if len(reopen) > 0 {
		return earliest(reopen).Package, ConfidenceReopen, true
	}

	if len(cands) == 1 {
		return cands[0].Package, ConfidenceLastActive, true
	}
	return "", 0, false
}

func pickFresh(fresh []Candidate, tolerance time.Duration) (string, float64, bool) {
	first := earliest(fresh)

	var cluster []Candidate
	for _, c := range fresh {
		if c.StartedAt.Sub(first.StartedAt) <= tolerance {
			cluster = append(cluster, c)
		}
	}
	if len(cluster) < 2 {
		return first.Package, ConfidenceFIFO, true
	}

	best := cluster[0]
	for _, c := range cluster[1:] {
		if c.TotalBytes > best.TotalBytes {
			best = c
		}
	}
	return best.Package, ConfidenceSizeTie, true
}

func earliest(cands []Candidate) Candidate {
	best := cands[0]
	for _, c := range cands[1:] {
		if c.StartedAt.Before(best.StartedAt) {
			best = c
		}
	}
	return best
}
