package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_FullConfig(t *testing.T) {
	yaml := `uv_path: /opt/uv/bin/uv
render: plain
listen: 127.0.0.1:8391
frames: true
log_level: debug

tuning:
  association_tolerance: 250ms
  overrun_margin: 1.5
  completion_threshold: 0.95
  default_frame_size: 32768
  rate_window: 10s
  rate_samples: 40
  emit_interval: 100ms
  emit_progress_delta: 0.5

reclaim:
  max_age: 10m
  capacity: 500
  target_ratio: 0.5
  sweep_interval: 1m

notify:
  webhook_url: https://hooks.example.com/uv
  webhook_timeout: 30s
  webhook_headers:
    Authorization: Bearer token123
  redis_addr: localhost:6379
  redis_channel: ci.installs
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	assertEqual(t, "uv_path", cfg.UvPath, "/opt/uv/bin/uv")
	assertEqual(t, "render", cfg.Render, RenderPlain)
	assertEqual(t, "listen", cfg.Listen, "127.0.0.1:8391")
	if !cfg.Frames {
		t.Error("expected frames=true")
	}
	assertEqual(t, "log_level", cfg.LogLevel, "debug")

	if cfg.Tuning.AssociationTolerance.Duration != 250*time.Millisecond {
		t.Errorf("expected association_tolerance=250ms, got %v", cfg.Tuning.AssociationTolerance.Duration)
	}
	if cfg.Tuning.OverrunMargin != 1.5 {
		t.Errorf("expected overrun_margin=1.5, got %g", cfg.Tuning.OverrunMargin)
	}
	if cfg.Tuning.CompletionThreshold != 0.95 {
		t.Errorf("expected completion_threshold=0.95, got %g", cfg.Tuning.CompletionThreshold)
	}
	if cfg.Tuning.DefaultFrameSize != 32768 {
		t.Errorf("expected default_frame_size=32768, got %d", cfg.Tuning.DefaultFrameSize)
	}
	if cfg.Tuning.RateWindow.Duration != 10*time.Second {
		t.Errorf("expected rate_window=10s, got %v", cfg.Tuning.RateWindow.Duration)
	}
	if cfg.Tuning.RateSamples != 40 {
		t.Errorf("expected rate_samples=40, got %d", cfg.Tuning.RateSamples)
	}
	if cfg.Tuning.EmitInterval.Duration != 100*time.Millisecond {
		t.Errorf("expected emit_interval=100ms, got %v", cfg.Tuning.EmitInterval.Duration)
	}
	if cfg.Tuning.EmitProgressDelta != 0.5 {
		t.Errorf("expected emit_progress_delta=0.5, got %g", cfg.Tuning.EmitProgressDelta)
	}

	if cfg.Reclaim.MaxAge.Duration != 10*time.Minute {
		t.Errorf("expected max_age=10m, got %v", cfg.Reclaim.MaxAge.Duration)
	}
	if cfg.Reclaim.Capacity != 500 {
		t.Errorf("expected capacity=500, got %d", cfg.Reclaim.Capacity)
	}
	if cfg.Reclaim.TargetRatio != 0.5 {
		t.Errorf("expected target_ratio=0.5, got %g", cfg.Reclaim.TargetRatio)
	}
	if cfg.Reclaim.SweepInterval.Duration != time.Minute {
		t.Errorf("expected sweep_interval=1m, got %v", cfg.Reclaim.SweepInterval.Duration)
	}

	assertEqual(t, "notify.webhook_url", cfg.Notify.WebhookURL, "https://hooks.example.com/uv")
	if cfg.Notify.WebhookTimeout.Duration != 30*time.Second {
		t.Errorf("expected webhook_timeout=30s, got %v", cfg.Notify.WebhookTimeout.Duration)
	}
	if cfg.Notify.WebhookHeaders["Authorization"] != "Bearer token123" {
		t.Errorf("expected Authorization header")
	}
	assertEqual(t, "notify.redis_addr", cfg.Notify.RedisAddr, "localhost:6379")
	assertEqual(t, "notify.redis_channel", cfg.Notify.RedisChannel, "ci.installs")
}

func TestLoad_EmptyConfigKeepsDefaults(t *testing.T) {
	path := writeTemp(t, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := Default()
	if cfg.UvPath != want.UvPath {
		t.Errorf("expected uv_path %q, got %q", want.UvPath, cfg.UvPath)
	}
	if cfg.Render != RenderAuto {
		t.Errorf("expected render=auto, got %q", cfg.Render)
	}
	if cfg.Tuning != want.Tuning {
		t.Errorf("expected default tuning, got %+v", cfg.Tuning)
	}
	if cfg.Reclaim != want.Reclaim {
		t.Errorf("expected default reclaim, got %+v", cfg.Reclaim)
	}
	if cfg.Notify.RedisChannel != "uvlens.results" {
		t.Errorf("expected default redis channel, got %q", cfg.Notify.RedisChannel)
	}
}

func TestLoad_PartialTuningKeepsOtherDefaults(t *testing.T) {
	yaml := `tuning:
  overrun_margin: 2.0
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Tuning.OverrunMargin != 2.0 {
		t.Errorf("expected overrun_margin=2.0, got %g", cfg.Tuning.OverrunMargin)
	}
	if cfg.Tuning.CompletionThreshold != 0.9 {
		t.Errorf("expected default completion_threshold=0.9, got %g", cfg.Tuning.CompletionThreshold)
	}
	if cfg.Tuning.EmitInterval.Duration != 200*time.Millisecond {
		t.Errorf("expected default emit_interval=200ms, got %v", cfg.Tuning.EmitInterval.Duration)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/uvlens.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTemp(t, "{{invalid yaml")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_UV_PATH", "/custom/uv")

	yaml := `uv_path: ${TEST_UV_PATH}`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "uv_path", cfg.UvPath, "/custom/uv")
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	yaml := `uv_path: uv
bogus_key: should_fail
`
	path := writeTemp(t, yaml)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown key, got nil")
	}
	if !strings.Contains(err.Error(), "bogus_key") {
		t.Errorf("error should mention the unknown key, got: %v", err)
	}
}

func TestLoad_UnknownNestedKeyRejected(t *testing.T) {
	yaml := `tuning:
  overrun_margin: 1.5
  unknown_field: bad
`
	path := writeTemp(t, yaml)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown nested key, got nil")
	}
	if !strings.Contains(err.Error(), "unknown_field") {
		t.Errorf("error should mention the unknown key, got: %v", err)
	}
}

func TestLoad_CommentsOnlyConfig(t *testing.T) {
	path := writeTemp(t, "# This is a comment\n# Another comment\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed for comments-only config: %v", err)
	}
	if cfg.UvPath != "uv" {
		t.Errorf("expected default uv_path, got %q", cfg.UvPath)
	}
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault failed: %v", err)
	}
	if cfg.Render != RenderAuto {
		t.Errorf("expected default render, got %q", cfg.Render)
	}
}

func TestLoadOrDefault_ExistingFile(t *testing.T) {
	path := writeTemp(t, "render: quiet\n")
	cfg, err := LoadOrDefault(path)
	if err != nil {
		t.Fatalf("LoadOrDefault failed: %v", err)
	}
	assertEqual(t, "render", cfg.Render, RenderQuiet)
}

func TestDuration_InvalidFormat(t *testing.T) {
	yaml := `tuning:
  rate_window: not-a-duration
`
	path := writeTemp(t, yaml)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("error should mention invalid duration, got: %v", err)
	}
}

func TestDuration_EmptyKeepsDefault(t *testing.T) {
	yaml := `notify:
  webhook_timeout: ""
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Notify.WebhookTimeout.Duration != 10*time.Second {
		t.Errorf("expected default timeout, got %v", cfg.Notify.WebhookTimeout.Duration)
	}
}

func TestValidate_Defaults(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad render", func(c *Config) { c.Render = "fancy" }, "render"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"margin below one", func(c *Config) { c.Tuning.OverrunMargin = 0.9 }, "overrun_margin"},
		{"zero threshold", func(c *Config) { c.Tuning.CompletionThreshold = 0 }, "completion_threshold"},
		{"threshold above one", func(c *Config) { c.Tuning.CompletionThreshold = 1.1 }, "completion_threshold"},
		{"zero frame size", func(c *Config) { c.Tuning.DefaultFrameSize = 0 }, "default_frame_size"},
		{"negative samples", func(c *Config) { c.Tuning.RateSamples = -1 }, "rate_samples"},
		{"zero rate window", func(c *Config) { c.Tuning.RateWindow.Duration = 0 }, "rate_window"},
		{"zero capacity", func(c *Config) { c.Reclaim.Capacity = 0 }, "capacity"},
		{"negative capacity", func(c *Config) { c.Reclaim.Capacity = -5 }, "capacity"},
		{"zero ratio", func(c *Config) { c.Reclaim.TargetRatio = 0 }, "target_ratio"},
		{"ratio above one", func(c *Config) { c.Reclaim.TargetRatio = 1.5 }, "target_ratio"},
		{"zero max age", func(c *Config) { c.Reclaim.MaxAge.Duration = 0 }, "max_age"},
		{"zero sweep interval", func(c *Config) { c.Reclaim.SweepInterval.Duration = 0 }, "sweep_interval"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("expected error to mention %q, got: %v", tc.want, err)
			}
		})
	}
}

func TestValidate_MarginExactlyOneAccepted(t *testing.T) {
	cfg := Default()
	cfg.Tuning.OverrunMargin = 1.0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("margin 1.0 should validate: %v", err)
	}
}

func TestValidate_RatioExactlyOneAccepted(t *testing.T) {
	cfg := Default()
	cfg.Reclaim.TargetRatio = 1.0
	cfg.Tuning.CompletionThreshold = 1.0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("ratio 1.0 should validate: %v", err)
	}
}

func TestSessionTuning_Conversion(t *testing.T) {
	cfg := Default()
	tuning := cfg.Tuning.SessionTuning()

	if tuning.AssociationTolerance != 100*time.Millisecond {
		t.Errorf("expected tolerance 100ms, got %v", tuning.AssociationTolerance)
	}
	if tuning.OverrunMargin != 1.2 {
		t.Errorf("expected margin 1.2, got %g", tuning.OverrunMargin)
	}
	if tuning.DefaultFrameSize != 16384 {
		t.Errorf("expected frame size 16384, got %d", tuning.DefaultFrameSize)
	}
	if tuning.RateWindow != 5*time.Second {
		t.Errorf("expected rate window 5s, got %v", tuning.RateWindow)
	}
}

func TestTrackReclaim_Conversion(t *testing.T) {
	cfg := Default()
	rc := cfg.Reclaim.TrackReclaim()

	if rc.MaxAge != 5*time.Minute {
		t.Errorf("expected max age 5m, got %v", rc.MaxAge)
	}
	if rc.Capacity != 1000 {
		t.Errorf("expected capacity 1000, got %d", rc.Capacity)
	}
	if rc.TargetRatio != 0.8 {
		t.Errorf("expected target ratio 0.8, got %g", rc.TargetRatio)
	}
}

// writeTemp writes content to a temp file and returns the path.
func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "uvlens.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func assertEqual(t *testing.T, field, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %q, want %q", field, got, want)
	}
}
