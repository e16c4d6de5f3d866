// Package adapter defines the completion-notification boundary.
//
// Adapters publish the final install result of a session to downstream
// systems (webhooks, message channels). The CLI owns adapter lifecycle;
// users provide configuration only.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/justapithecus/uvlens/log"
	"github.com/justapithecus/uvlens/types"
)

// Adapter publishes a completed install result to a downstream system.
// Implementations must be safe for single-use per session.
type Adapter interface {
	// Publish sends the install result to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, result *types.InstallResult) error

	// Close releases adapter resources.
	Close() error
}

// Fanout dispatches one result to every registered adapter in order.
// A failing adapter never prevents the others from receiving the
// result; failures are collected and returned joined.
type Fanout struct {
	logger  *log.Logger
	entries []fanoutEntry
}

type fanoutEntry struct {
	name    string
	adapter Adapter
}

// NewFanout creates an empty fan-out dispatcher.
func NewFanout(logger *log.Logger) *Fanout {
	if logger == nil {
		logger = log.Nop()
	}
	return &Fanout{logger: logger}
}

// Add registers an adapter under a name used in logs and errors.
func (f *Fanout) Add(name string, a Adapter) {
	f.entries = append(f.entries, fanoutEntry{name: name, adapter: a})
}

// Len reports the number of registered adapters.
func (f *Fanout) Len() int {
	return len(f.entries)
}

// Publish delivers the result to all registered adapters. Every adapter
// is attempted regardless of earlier failures.
func (f *Fanout) Publish(ctx context.Context, result *types.InstallResult) error {
	var errs []error
	for _, e := range f.entries {
		start := time.Now()
		err := e.adapter.Publish(ctx, result)
		elapsed := time.Since(start)

		if err != nil {
			f.logger.Warn("adapter publish failed", map[string]any{
				"adapter":  e.name,
				"duration": elapsed.String(),
				"error":    err.Error(),
			})
			errs = append(errs, fmt.Errorf("%s: %w", e.name, err))
			continue
		}

		f.logger.Info("adapter publish succeeded", map[string]any{
			"adapter":  e.name,
			"duration": elapsed.String(),
		})
	}
	return errors.Join(errs...)
}

// Close closes all registered adapters, collecting any errors.
func (f *Fanout) Close() error {
	var errs []error
	for _, e := range f.entries {
		if err := e.adapter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.name, err))
		}
	}
	return errors.Join(errs...)
}
