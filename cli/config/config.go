package config

import (
	"fmt"
	"time"

	"github.com/justapithecus/uvlens/session"
	"github.com/justapithecus/uvlens/track"
)

// Render mode names accepted by the render field and --render flag.
const (
	RenderAuto  = "auto"
	RenderPlain = "plain"
	RenderTUI   = "tui"
	RenderQuiet = "quiet"
)

// Config represents an uvlens.yaml configuration file.
// All values are optional and act as defaults for uvlens run flags.
// CLI flags always override config values.
type Config struct {
	UvPath   string        `yaml:"uv_path"`
	Render   string        `yaml:"render"`
	Listen   string        `yaml:"listen"`
	Frames   bool          `yaml:"frames"`
	LogLevel string        `yaml:"log_level"`
	Tuning   TuningConfig  `yaml:"tuning"`
	Reclaim  ReclaimConfig `yaml:"reclaim"`
	Notify   NotifyConfig  `yaml:"notify"`
}

// TuningConfig holds the pipeline knobs from the config file.
type TuningConfig struct {
	AssociationTolerance Duration `yaml:"association_tolerance"`
	OverrunMargin        float64  `yaml:"overrun_margin"`
	CompletionThreshold  float64  `yaml:"completion_threshold"`
	DefaultFrameSize     int64    `yaml:"default_frame_size"`
	RateWindow           Duration `yaml:"rate_window"`
	RateSamples          int      `yaml:"rate_samples"`
	EmitInterval         Duration `yaml:"emit_interval"`
	EmitProgressDelta    float64  `yaml:"emit_progress_delta"`
}

// ReclaimConfig holds state-reclamation defaults from the config file.
type ReclaimConfig struct {
	MaxAge        Duration `yaml:"max_age"`
	Capacity      int      `yaml:"capacity"`
	TargetRatio   float64  `yaml:"target_ratio"`
	SweepInterval Duration `yaml:"sweep_interval"`
}

// NotifyConfig holds completion adapter defaults from the config file.
// Empty webhook_url and redis_addr disable the respective adapter.
type NotifyConfig struct {
	WebhookURL     string            `yaml:"webhook_url"`
	WebhookTimeout Duration          `yaml:"webhook_timeout"`
	WebhookHeaders map[string]string `yaml:"webhook_headers,omitempty"`
	RedisAddr      string            `yaml:"redis_addr"`
	RedisChannel   string            `yaml:"redis_channel"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Default returns the configuration used when the file or a field is
// absent.
func Default() Config {
	return Config{
		UvPath:   "uv",
		Render:   RenderAuto,
		LogLevel: "info",
		Tuning: TuningConfig{
			AssociationTolerance: Duration{100 * time.Millisecond},
			OverrunMargin:        1.2,
			CompletionThreshold:  0.9,
			DefaultFrameSize:     16384,
			RateWindow:           Duration{5 * time.Second},
			RateSamples:          20,
			EmitInterval:         Duration{200 * time.Millisecond},
			EmitProgressDelta:    1.0,
		},
		Reclaim: ReclaimConfig{
			MaxAge:        Duration{5 * time.Minute},
			Capacity:      1000,
			TargetRatio:   0.8,
			SweepInterval: Duration{30 * time.Second},
		},
		Notify: NotifyConfig{
			WebhookTimeout: Duration{10 * time.Second},
			RedisChannel:   "uvlens.results",
		},
	}
}

// Validate checks value ranges after flags have been merged in.
func (c *Config) Validate() error {
	switch c.Render {
	case RenderAuto, RenderPlain, RenderTUI, RenderQuiet:
	default:
		return fmt.Errorf("render must be one of auto, plain, tui, quiet; got %q", c.Render)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}

	if c.Tuning.OverrunMargin < 1.0 {
		return fmt.Errorf("tuning.overrun_margin must be >= 1.0, got %g", c.Tuning.OverrunMargin)
	}
	if t := c.Tuning.CompletionThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("tuning.completion_threshold must be in (0, 1], got %g", t)
	}
	if c.Tuning.DefaultFrameSize <= 0 {
		return fmt.Errorf("tuning.default_frame_size must be positive, got %d", c.Tuning.DefaultFrameSize)
	}
	if c.Tuning.RateSamples <= 0 {
		return fmt.Errorf("tuning.rate_samples must be positive, got %d", c.Tuning.RateSamples)
	}
	if c.Tuning.RateWindow.Duration <= 0 {
		return fmt.Errorf("tuning.rate_window must be positive, got %v", c.Tuning.RateWindow.Duration)
	}

	if c.Reclaim.Capacity <= 0 {
		return fmt.Errorf("reclaim.capacity must be positive, got %d", c.Reclaim.Capacity)
	}
	if r := c.Reclaim.TargetRatio; r <= 0 || r > 1 {
		return fmt.Errorf("reclaim.target_ratio must be in (0, 1], got %g", r)
	}
	if c.Reclaim.MaxAge.Duration <= 0 {
		return fmt.Errorf("reclaim.max_age must be positive, got %v", c.Reclaim.MaxAge.Duration)
	}
	if c.Reclaim.SweepInterval.Duration <= 0 {
		return fmt.Errorf("reclaim.sweep_interval must be positive, got %v", c.Reclaim.SweepInterval.Duration)
	}

	return nil
}

// SessionTuning converts the tuning block into session knobs.
func (t TuningConfig) SessionTuning() session.Tuning {
	return session.Tuning{
		AssociationTolerance: t.AssociationTolerance.Duration,
		OverrunMargin:        t.OverrunMargin,
		CompletionThreshold:  t.CompletionThreshold,
		DefaultFrameSize:     t.DefaultFrameSize,
		RateWindow:           t.RateWindow.Duration,
		RateSamples:          t.RateSamples,
		EmitInterval:         t.EmitInterval.Duration,
		EmitProgressDelta:    t.EmitProgressDelta,
	}
}

// TrackReclaim converts the reclaim block into sweeper settings.
// SweepInterval is a runner concern and not part of the result.
func (r ReclaimConfig) TrackReclaim() track.ReclaimConfig {
	return track.ReclaimConfig{
		MaxAge:      r.MaxAge.Duration,
		Capacity:    r.Capacity,
		TargetRatio: r.TargetRatio,
	}
}
