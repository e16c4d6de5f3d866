// Package registry owns the set of packages discovered during an
// installation and their statuses.
package registry

import (
	"time"

	"github.com/justapithecus/uvlens/types"
)

// PackageStatus is the lifecycle status of one package.
type PackageStatus string

// Package statuses.
const (
	StatusPending     PackageStatus = "pending"
	StatusDownloading PackageStatus = "downloading"
	StatusDownloaded  PackageStatus = "downloaded"
	StatusInstalling  PackageStatus = "installing"
	StatusInstalled   PackageStatus = "installed"
	StatusFailed      PackageStatus = "failed"
)

// Package is one tracked package. DiscoveredAt is set on first mention
// and never changes afterwards.
type Package struct {
	Name            string
	Version         string
	VersionSpec     string
	URL             string
	SizeBytes       int64
	Status          PackageStatus
	DiscoveredAt    time.Time
	StatusChangedAt time.Time
}

// Patch carries fields to merge into a package record. Zero-valued
// fields are left untouched on an existing record.
type Patch struct {
	Name        string
	Version     string
	VersionSpec string
	URL         string
	SizeBytes   int64
}

// Registry holds package records keyed by name. Not safe for
// concurrent use; a session drives it from a single goroutine.
type Registry struct {
	packages map[string]*Package
	order    []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{packages: make(map[string]*Package)}
}

// Upsert merges the patch into an existing record or creates a new one
// with status pending. DiscoveredAt is preserved across merges.
func (r *Registry) Upsert(p Patch, now time.Time) {
	if p.Name == "" {
		return
	}

	existing, ok := r.packages[p.Name]
	if !ok {
		r.packages[p.Name] = &Package{
			Name:            p.Name,
			Version:         p.Version,
			VersionSpec:     p.VersionSpec,
			URL:             p.URL,
			SizeBytes:       p.SizeBytes,
			Status:          StatusPending,
			DiscoveredAt:    now,
			StatusChangedAt: now,
		}
		r.order = append(r.order, p.Name)
		return
	}

	if p.Version != "" {
		existing.Version = p.Version
	}
	if p.VersionSpec != "" {
		existing.VersionSpec = p.VersionSpec
	}
	if p.URL != "" {
		existing.URL = p.URL
	}
	if p.SizeBytes > 0 {
		existing.SizeBytes = p.SizeBytes
	}
}

// Get returns a copy of the named package.
func (r *Registry) Get(name string) (Package, bool) {
	p, ok := r.packages[name]
	if !ok {
		return Package{}, false
	}
	return *p, true
}

// SetStatus updates a package's status, recording the change time.
// Returns false for unknown packages.
func (r *Registry) SetStatus(name string, status PackageStatus, now time.Time) bool {
	p, ok := r.packages[name]
	if !ok {
		return false
	}
	if p.Status == status {
		return true
	}
	p.Status = status
	p.StatusChangedAt = now
	return true
}

// Stats returns the count of packages per status. O(n) over current
// records; package counts stay in the tens to low hundreds.
func (r *Registry) Stats() map[PackageStatus]int {
	out := make(map[PackageStatus]int)
	for _, p := range r.packages {
		out[p.Status]++
	}
	return out
}

// Counts folds registry state into the snapshot's package counters.
// Downloaded counts every package at or past the downloaded status.
func (r *Registry) Counts() types.PackageCounts {
	c := types.PackageCounts{Total: len(r.packages)}
	for _, p := range r.packages {
		switch p.Status {
		case StatusDownloaded, StatusInstalling:
			c.Downloaded++
		case StatusInstalled:
			c.Downloaded++
			c.Installed++
		}
	}
	return c
}

// All returns copies of every package in discovery order.
func (r *Registry) All() []Package {
	out := make([]Package, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, *r.packages[name])
	}
	return out
}

// Len returns the number of tracked packages.
func (r *Registry) Len() int {
	return len(r.packages)
}
