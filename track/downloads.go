// Package track follows per-package downloads across the installer's
// transport layer: byte accounting, stream-to-package association,
// transfer-rate estimation, and bounded retention of finished entries.
package track

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrUnknownDownload is returned when an operation names a package no
// download has been started for.
var ErrUnknownDownload = errors.New("unknown download")

// DownloadStatus is the lifecycle status of one download.
type DownloadStatus string

// Download statuses.
const (
	DownloadPending   DownloadStatus = "pending"
	DownloadActive    DownloadStatus = "downloading"
	DownloadCompleted DownloadStatus = "completed"
	DownloadFailed    DownloadStatus = "failed"
)

// Download is the byte-accounting record for one package transfer.
type Download struct {
	Package        string
	TotalBytes     int64
	URL            string
	BytesReceived  int64
	EstimatedBytes int64
	Status         DownloadStatus
	Capped         bool
	FailReason     string
	StartedAt      time.Time
	LastUpdateAt   time.Time
	StreamIDs      []uint32
	StreamCount    int
}

// Terminal reports whether the download has finished, either way.
func (d Download) Terminal() bool {
	return d.Status == DownloadCompleted || d.Status == DownloadFailed
}

// Tracker holds download records keyed by package name. Not safe for
// concurrent use; a session drives it from a single goroutine.
type Tracker struct {
	downloads map[string]*Download
	order     []string
	completed int
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{downloads: make(map[string]*Download)}
}

// Start registers a download for the named package, resetting any
// prior record for it. The download begins pending; the first progress
// update flips it to downloading.
func (t *Tracker) Start(name string, totalBytes int64, url string, now time.Time) {
	if totalBytes < 0 {
		totalBytes = 0
	}
	d, ok := t.downloads[name]
	if !ok {
		d = &Download{Package: name}
		t.downloads[name] = d
		t.order = append(t.order, name)
	}
	d.TotalBytes = totalBytes
	d.URL = url
	d.BytesReceived = 0
	d.EstimatedBytes = 0
	d.Status = DownloadPending
	d.Capped = false
	d.FailReason = ""
	d.StartedAt = now
	d.LastUpdateAt = now
	d.StreamIDs = nil
	d.StreamCount = 0
}

// UpdateProgress records exact bytes received, clamped to the known
// total. A pending download becomes downloading.
func (t *Tracker) UpdateProgress(name string, bytesReceived int64, now time.Time) error {
	d, ok := t.downloads[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDownload, name)
	}
	d.BytesReceived = clampBytes(bytesReceived, d.TotalBytes)
	t.touch(d, now)
	return nil
}

// UpdateEstimated records an estimated byte count derived from frame
// observations, clamped to the known total.
func (t *Tracker) UpdateEstimated(name string, estimatedBytes int64, now time.Time) error {
	d, ok := t.downloads[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDownload, name)
	}
	d.EstimatedBytes = clampBytes(estimatedBytes, d.TotalBytes)
	t.touch(d, now)
	return nil
}

func (t *Tracker) touch(d *Download, now time.Time) {
	if d.Status == DownloadPending {
		d.Status = DownloadActive
	}
	d.LastUpdateAt = now
}

// Complete marks the download finished. Idempotent: the persistent
// completed counter increments exactly once per logical completion.
func (t *Tracker) Complete(name string, now time.Time) error {
	d, ok := t.downloads[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDownload, name)
	}
	if d.Status == DownloadCompleted {
		return nil
	}
	d.Status = DownloadCompleted
	d.Capped = false
	if d.TotalBytes > 0 {
		d.BytesReceived = d.TotalBytes
	}
	d.LastUpdateAt = now
	t.completed++
	return nil
}

// Fail marks the download failed. A no-op on already-terminal entries.
func (t *Tracker) Fail(name, reason string, now time.Time) error {
	d, ok := t.downloads[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDownload, name)
	}
	if d.Terminal() {
		return nil
	}
	d.Status = DownloadFailed
	d.FailReason = reason
	d.LastUpdateAt = now
	return nil
}

// MarkCapped flags a download whose end-of-stream arrived below the
// completion threshold; its displayed progress stays under 100.
func (t *Tracker) MarkCapped(name string) {
	if d, ok := t.downloads[name]; ok {
		d.Capped = true
	}
}

// AssociateStream binds a transport stream id to the download.
func (t *Tracker) AssociateStream(name string, streamID uint32) error {
	d, ok := t.downloads[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDownload, name)
	}
	for _, id := range d.StreamIDs {
		if id == streamID {
			return nil
		}
	}
	d.StreamIDs = append(d.StreamIDs, streamID)
	d.StreamCount++
	return nil
}

// ReleaseStream drops a stream id from the download's open set. The
// lifetime stream count is unaffected.
func (t *Tracker) ReleaseStream(name string, streamID uint32) {
	d, ok := t.downloads[name]
	if !ok {
		return
	}
	for i, id := range d.StreamIDs {
		if id == streamID {
			d.StreamIDs = append(d.StreamIDs[:i], d.StreamIDs[i+1:]...)
			return
		}
	}
}

// Get returns a copy of the named download.
func (t *Tracker) Get(name string) (Download, bool) {
	d, ok := t.downloads[name]
	if !ok {
		return Download{}, false
	}
	return copyDownload(d), true
}

// ActiveDownloads returns copies of pending and downloading entries in
// start order.
func (t *Tracker) ActiveDownloads() []Download {
	var out []Download
	for _, name := range t.order {
		d, ok := t.downloads[name]
		if !ok || d.Terminal() {
			continue
		}
		out = append(out, copyDownload(d))
	}
	return out
}

// All returns copies of every download in start order.
func (t *Tracker) All() []Download {
	out := make([]Download, 0, len(t.order))
	for _, name := range t.order {
		if d, ok := t.downloads[name]; ok {
			out = append(out, copyDownload(d))
		}
	}
	return out
}

// CompletedCount returns the number of completions observed over the
// tracker's lifetime. Eviction never decrements it.
func (t *Tracker) CompletedCount() int {
	return t.completed
}

// Len returns the number of currently tracked downloads.
func (t *Tracker) Len() int {
	return len(t.downloads)
}

// EvictOlderThan removes terminal downloads whose last update is older
// than maxAge, returning the evicted package names. Active downloads
// are never evicted.
func (t *Tracker) EvictOlderThan(maxAge time.Duration, now time.Time) []string {
	cutoff := now.Add(-maxAge)
	var removed []string
	for _, name := range t.order {
		d, ok := t.downloads[name]
		if !ok || !d.Terminal() {
			continue
		}
		if d.LastUpdateAt.Before(cutoff) {
			delete(t.downloads, name)
			removed = append(removed, name)
		}
	}
	if len(removed) > 0 {
		t.compactOrder()
	}
	return removed
}

// EvictOldestTerminal removes up to n terminal downloads, oldest last
// update first, returning the evicted package names.
func (t *Tracker) EvictOldestTerminal(n int) []string {
	if n <= 0 {
		return nil
	}
	victims := t.terminalOldestFirst()
	if len(victims) > n {
		victims = victims[:n]
	}
	for _, name := range victims {
		delete(t.downloads, name)
	}
	if len(victims) > 0 {
		t.compactOrder()
	}
	return victims
}

func (t *Tracker) terminalOldestFirst() []string {
	var names []string
	for _, name := range t.order {
		if d, ok := t.downloads[name]; ok && d.Terminal() {
			names = append(names, name)
		}
	}
	sort.SliceStable(names, func(i, j int) bool {
		return t.downloads[names[i]].LastUpdateAt.Before(t.downloads[names[j]].LastUpdateAt)
	})
	return names
}

func (t *Tracker) compactOrder() {
	kept := t.order[:0]
	for _, name := range t.order {
		if _, ok := t.downloads[name]; ok {
			kept = append(kept, name)
		}
	}
	t.order = kept
}

func copyDownload(d *Download) Download {
	out := *d
	out.StreamIDs = append([]uint32(nil), d.StreamIDs...)
	return out
}

func clampBytes(v, total int64) int64 {
	if v < 0 {
		return 0
	}
	if total > 0 && v > total {
		return total
	}
	return v
}
