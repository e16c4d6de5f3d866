package track

import "time"

// Default rate-window tuning.
const (
	DefaultRateWindow  = 5 * time.Second
	DefaultRateSamples = 20
)

// Estimate is a point-in-time progress reading for one download.
type Estimate struct {
	// Bytes is the effective byte count: exact when known, otherwise
	// the frame-derived estimate.
	Bytes int64
	// Percent is 0..100 completion against the known total, capped at
	// 99 for downloads whose end-of-stream arrived below threshold.
	Percent float64
	// Rate is the mean transfer rate over the sample window, in bytes
	// per second.
	Rate float64
	// ETASeconds is remaining bytes over rate. Meaningless unless
	// HasETA is set; 0 when nothing remains or the rate is unusable.
	ETASeconds float64
	HasETA     bool
}

type rateSample struct {
	at   time.Time
	rate float64
}

// Estimator derives percent, transfer rate, and ETA from download
// records. Rates are smoothed over a rolling window of instantaneous
// samples per package. Not safe for concurrent use.
type Estimator struct {
	window     time.Duration
	maxSamples int
	samples    map[string][]rateSample
}

// NewEstimator returns an estimator with the given window and sample
// cap. Non-positive arguments take defaults.
func NewEstimator(window time.Duration, maxSamples int) *Estimator {
	if window <= 0 {
		window = DefaultRateWindow
	}
	if maxSamples <= 0 {
		maxSamples = DefaultRateSamples
	}
	return &Estimator{
		window:     window,
		maxSamples: maxSamples,
		samples:    make(map[string][]rateSample),
	}
}

// EffectiveBytes returns the byte count to report for a download:
// exact received bytes when present, otherwise the frame estimate.
func EffectiveBytes(d Download) int64 {
	if d.BytesReceived > 0 {
		return d.BytesReceived
	}
	return d.EstimatedBytes
}

// Observe records an instantaneous rate sample for the download.
// Elapsed time is floored at one millisecond so a burst of updates in
// the same instant cannot divide by zero.
func (e *Estimator) Observe(d Download, now time.Time) {
	elapsed := now.Sub(d.StartedAt).Seconds()
	if elapsed < 0.001 {
		elapsed = 0.001
	}
	inst := float64(EffectiveBytes(d)) / elapsed

	window := append(e.samples[d.Package], rateSample{at: now, rate: inst})
	window = e.trim(window, now)
	e.samples[d.Package] = window
}

func (e *Estimator) trim(window []rateSample, now time.Time) []rateSample {
	cutoff := now.Add(-e.window)
	start := 0
	for start < len(window) && window[start].at.Before(cutoff) {
		start++
	}
	window = window[start:]
	if len(window) > e.maxSamples {
		window = window[len(window)-e.maxSamples:]
	}
	return window
}

// Rate returns the mean of in-window samples for the package, in
// bytes per second. Zero with no usable samples.
func (e *Estimator) Rate(pkg string, now time.Time) float64 {
	window := e.trim(e.samples[pkg], now)
	e.samples[pkg] = window
	if len(window) == 0 {
		return 0
	}
	var sum float64
	for _, s := range window {
		sum += s.rate
	}
	return sum / float64(len(window))
}

// Estimate computes the current progress reading for a download.
func (e *Estimator) Estimate(d Download, now time.Time) Estimate {
	est := Estimate{
		Bytes: EffectiveBytes(d),
		Rate:  e.Rate(d.Package, now),
	}

	if d.Status == DownloadCompleted {
		est.Percent = 100
		if d.TotalBytes > 0 {
			est.Bytes = d.TotalBytes
		}
		est.HasETA = true
		return est
	}

	if d.TotalBytes > 0 {
		est.Percent = float64(est.Bytes) / float64(d.TotalBytes) * 100
		if est.Percent > 100 {
			est.Percent = 100
		}
		if d.Capped && est.Percent > 99 {
			est.Percent = 99
		}

		est.HasETA = true
		remaining := d.TotalBytes - est.Bytes
		if remaining > 0 && est.Rate > 0 {
			est.ETASeconds = float64(remaining) / est.Rate
		}
	}
	return est
}

// Forget drops the sample window for a package. Called when its
// download record is evicted.
func (e *Estimator) Forget(pkg string) {
	delete(e.samples, pkg)
}
