package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/uvlens/cli/config"
	"github.com/justapithecus/uvlens/log"
	"github.com/justapithecus/uvlens/metrics"
	"github.com/justapithecus/uvlens/session"
	"github.com/justapithecus/uvlens/tail"
)

// ServeCommand returns the serve command. It follows a uv log file
// and publishes snapshots over WebSocket with no local rendering.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:      "serve",
		Usage:     "Follow a uv log file and serve snapshots over WebSocket",
		ArgsUsage: "<logfile>",
		Flags: []cli.Flag{
			ConfigFlag,
			ListenFlag,
			FramesFlag,
			LogLevelFlag,
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: uvlens serve <logfile>", exitUsage)
	}
	path := c.Args().First()

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("config: %v", err), exitUsage)
	}
	if cfg.Listen == "" {
		return cli.Exit("serve requires --listen or a listen address in the config", exitUsage)
	}
	logger := log.NewLoggerLevel("uvlens", cfg.LogLevel)

	env, err := newSessionEnv(cfg, config.RenderQuiet, logger)
	if err != nil {
		return cli.Exit(fmt.Sprintf("setup: %v", err), exitInternal)
	}

	id := uuid.NewString()
	guard := session.NewGuard(session.New(session.Config{
		ID:        id,
		Tuning:    cfg.Tuning.SessionTuning(),
		Reclaim:   cfg.Reclaim.TrackReclaim(),
		Callbacks: env.callbacks(),
		Logger:    logger,
		Collector: metrics.NewCollector(id),
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.start(ctx)
	startSweeps(ctx, guard, cfg.Reclaim.SweepInterval.Duration)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.Info("serving snapshots", map[string]any{
		"addr": cfg.Listen,
		"path": path,
	})

	tailer := tail.New(tail.Config{Path: path, Logger: logger})
	if err := tailer.Run(ctx, guard.Feed); err != nil {
		return cli.Exit(fmt.Sprintf("follow %s: %v", path, err), exitInternal)
	}

	guard.Close()
	env.finish(guard.Result())
	return nil
}
