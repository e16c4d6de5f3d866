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
	"github.com/justapithecus/uvlens/cli/tui"
	"github.com/justapithecus/uvlens/log"
	"github.com/justapithecus/uvlens/metrics"
	"github.com/justapithecus/uvlens/session"
	"github.com/justapithecus/uvlens/tail"
)

// FollowCommand returns the follow command. It tails a uv log file
// written by another process and reconstructs the install live.
func FollowCommand() *cli.Command {
	return &cli.Command{
		Name:      "follow",
		Usage:     "Follow a uv log file and reconstruct the install state",
		ArgsUsage: "<logfile>",
		Flags:     SessionFlags(),
		Action:    followAction,
	}
}

func followAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: uvlens follow <logfile>", exitUsage)
	}
	path := c.Args().First()

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("config: %v", err), exitUsage)
	}
	logger := log.NewLoggerLevel("uvlens", cfg.LogLevel)

	mode := renderMode(cfg)
	env, err := newSessionEnv(cfg, mode, logger)
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

	// Interrupt stops following; the session is summarized as-is.
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

	var prog *tui.Program
	tuiDone := make(chan error, 1)
	if mode == config.RenderTUI {
		prog = tui.NewProgram(guard, nil)
		go func() {
			tuiDone <- prog.Run()
			// Quitting the view stops the follow too.
			cancel()
		}()
	}

	tailer := tail.New(tail.Config{Path: path, Logger: logger})
	if err := tailer.Run(ctx, guard.Feed); err != nil {
		if prog != nil {
			prog.Quit()
			<-tuiDone
		}
		return cli.Exit(fmt.Sprintf("follow %s: %v", path, err), exitInternal)
	}

	guard.Close()
	res := guard.Result()
	if prog != nil {
		prog.Finish(res)
		if err := <-tuiDone; err != nil {
			logger.Warn("tui failed", map[string]any{"error": err.Error()})
		}
	}

	env.finish(res)
	if env.plain != nil {
		env.plain.OnResult(res)
	}

	return cli.Exit("", outcomeExitCode(res.Outcome))
}
