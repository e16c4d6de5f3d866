package cmd

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/justapithecus/uvlens/adapter"
	"github.com/justapithecus/uvlens/adapter/redis"
	"github.com/justapithecus/uvlens/adapter/webhook"
	"github.com/justapithecus/uvlens/cli/config"
	"github.com/justapithecus/uvlens/cli/render"
	"github.com/justapithecus/uvlens/ipc"
	"github.com/justapithecus/uvlens/log"
	"github.com/justapithecus/uvlens/session"
	"github.com/justapithecus/uvlens/types"
	"github.com/justapithecus/uvlens/ws"
)

// sessionEnv bundles the observation surfaces wired around one
// session: plain renderer, snapshot hub, frame stream, and completion
// adapters. Surfaces the config leaves off stay nil.
type sessionEnv struct {
	cfg    *config.Config
	logger *log.Logger

	plain  *render.Plain
	hub    *ws.Hub
	hubLn  net.Listener
	frames *ipc.FrameWriter
	fanout *adapter.Fanout
}

// newSessionEnv builds the surfaces for the resolved render mode. The
// listen address is bound here so bind failures surface before any
// work starts. With frames on stdout, the plain renderer moves to
// stderr.
func newSessionEnv(cfg *config.Config, mode string, logger *log.Logger) (*sessionEnv, error) {
	env := &sessionEnv{cfg: cfg, logger: logger}

	if cfg.Frames {
		env.frames = ipc.NewFrameWriter(os.Stdout)
	}

	if mode == config.RenderPlain {
		out := io.Writer(os.Stdout)
		if cfg.Frames {
			out = os.Stderr
		}
		bars := !cfg.Frames && render.IsTerminal(os.Stdout)
		env.plain = render.NewPlain(out, bars)
	}

	if cfg.Listen != "" {
		ln, err := net.Listen("tcp", cfg.Listen)
		if err != nil {
			return nil, fmt.Errorf("listen on %s: %w", cfg.Listen, err)
		}
		env.hubLn = ln
		env.hub = ws.NewHub(logger)
	}

	env.fanout = buildFanout(cfg.Notify, logger)
	return env, nil
}

// callbacks fans every emitted snapshot to the active surfaces. Only
// OnStatusChange is wired: it already carries the error and completion
// snapshots, and the result summary is delivered separately.
func (e *sessionEnv) callbacks() session.Callbacks {
	return session.Callbacks{
		OnStatusChange: func(snap types.Snapshot) {
			if e.plain != nil {
				e.plain.OnSnapshot(snap)
			}
			if e.hub != nil {
				e.hub.Publish(snap)
			}
			if e.frames != nil {
				if err := e.frames.WriteSnapshot(snap); err != nil {
					e.logger.Warn("snapshot frame write failed", map[string]any{
						"error": err.Error(),
					})
				}
			}
		},
	}
}

// start launches the hub goroutines. A no-op without a listen address.
func (e *sessionEnv) start(ctx context.Context) {
	if e.hub == nil {
		return
	}
	go e.hub.Run(ctx)
	go func() {
		if err := e.hub.ServeListener(ctx, e.hubLn); err != nil {
			e.logger.Error("snapshot server failed", map[string]any{
				"error": err.Error(),
			})
		}
	}()
}

// finish streams the final result to frames and completion adapters,
// then closes the adapters. Delivery failures are logged, never fatal.
func (e *sessionEnv) finish(res types.InstallResult) {
	if e.frames != nil {
		if err := e.frames.WriteResult(res); err != nil {
			e.logger.Warn("result frame write failed", map[string]any{
				"error": err.Error(),
			})
		}
	}

	if e.fanout.Len() > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := e.fanout.Publish(ctx, &res); err != nil {
			e.logger.Warn("completion publish failed", map[string]any{
				"error": err.Error(),
			})
		}
	}

	if err := e.fanout.Close(); err != nil {
		e.logger.Warn("adapter close failed", map[string]any{
			"error": err.Error(),
		})
	}
}

// buildFanout assembles completion adapters from the notify config.
// A misconfigured adapter is skipped with a warning rather than
// failing the install.
func buildFanout(notify config.NotifyConfig, logger *log.Logger) *adapter.Fanout {
	fan := adapter.NewFanout(logger)

	if notify.WebhookURL != "" {
		hook, err := webhook.New(webhook.Config{
			URL:     notify.WebhookURL,
			Headers: notify.WebhookHeaders,
			Timeout: notify.WebhookTimeout.Duration,
		})
		if err != nil {
			logger.Warn("webhook adapter disabled", map[string]any{"error": err.Error()})
		} else {
			fan.Add("webhook", hook)
		}
	}

	if notify.RedisAddr != "" {
		pub, err := redis.New(redis.Config{
			Addr:    notify.RedisAddr,
			Channel: notify.RedisChannel,
		})
		if err != nil {
			logger.Warn("redis adapter disabled", map[string]any{"error": err.Error()})
		} else {
			fan.Add("redis", pub)
		}
	}

	return fan
}

// startSweeps runs periodic reclaim sweeps until ctx is done. The
// runner schedules its own during run; follow and serve use this.
func startSweeps(ctx context.Context, guard *session.Guard, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				guard.Sweep(time.Now())
			}
		}
	}()
}
