package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/uvlens/cli/config"
	"github.com/justapithecus/uvlens/cli/render"
	"github.com/justapithecus/uvlens/cli/tui"
	"github.com/justapithecus/uvlens/log"
	"github.com/justapithecus/uvlens/metrics"
	"github.com/justapithecus/uvlens/runner"
	"github.com/justapithecus/uvlens/session"
	"github.com/justapithecus/uvlens/types"
)

// Exit codes shared by all session commands.
const (
	exitSuccess  = 0
	exitInstall  = 1
	exitUsage    = 2
	exitInternal = 3
)

// publishTimeout bounds completion notification delivery.
const publishTimeout = 10 * time.Second

// defaultInstallArgs is the uv argv when none follows --.
var defaultInstallArgs = []string{"pip", "install", "-r", "requirements.txt"}

// RunCommand returns the run command. It spawns uv, reconstructs the
// install from its trace logs, and reports the result.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run a uv install and observe it",
		ArgsUsage: "[-- uv-args...]",
		Flags: append(SessionFlags(),
			&cli.StringFlag{
				Name:  "uv",
				Usage: "Path to the uv binary",
			},
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Working directory for uv",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Kill the install after this duration",
			},
		),
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
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

	args := c.Args().Slice()
	if len(args) == 0 {
		args = defaultInstallArgs
	}
	uvPath := cfg.UvPath
	if c.IsSet("uv") {
		uvPath = c.String("uv")
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

	run := runner.New(runner.Config{
		UvPath:        uvPath,
		Args:          args,
		Dir:           c.String("dir"),
		Timeout:       c.Duration("timeout"),
		SweepInterval: cfg.Reclaim.SweepInterval.Duration,
		Logger:        logger,
	}, guard)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.start(ctx)

	// First interrupt stops uv and lets the session settle; a second
	// abandons the process entirely.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
			return
		}
		logger.Info("interrupt, stopping uv", nil)
		if err := run.Kill(); err != nil {
			logger.Warn("kill failed", map[string]any{"error": err.Error()})
		}
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "aborted")
			os.Exit(exitInstall)
		case <-ctx.Done():
		}
	}()

	var prog *tui.Program
	tuiDone := make(chan error, 1)
	if mode == config.RenderTUI {
		prog = tui.NewProgram(guard, func() {
			if err := run.Kill(); err != nil {
				logger.Warn("kill failed", map[string]any{"error": err.Error()})
			}
		})
		go func() { tuiDone <- prog.Run() }()
	}

	runRes, err := run.Run(ctx)
	if err != nil {
		if prog != nil {
			prog.Quit()
			<-tuiDone
		}
		return cli.Exit(fmt.Sprintf("run uv: %v", err), exitInternal)
	}

	res := guard.Result()
	if prog != nil {
		prog.Finish(res)
		if err := <-tuiDone; err != nil {
			logger.Warn("tui failed", map[string]any{"error": err.Error()})
		}
	}
	cancel()

	env.finish(res)
	switch {
	case env.plain != nil:
		env.plain.OnResult(res)
	case mode == config.RenderTUI:
		// The alt screen is gone; repeat the one-line summary.
		render.NewPlain(os.Stdout, false).OnResult(res)
	}

	logger.Info("install finished", runOutcomeFields(runRes, res))

	return cli.Exit("", outcomeExitCode(res.Outcome))
}

func runOutcomeFields(runRes runner.Result, res types.InstallResult) map[string]any {
	fields := map[string]any{
		"outcome":   string(res.Outcome),
		"exit_code": runRes.ExitCode,
		"duration":  (time.Duration(res.DurationMS) * time.Millisecond).String(),
	}
	if runRes.Signal != "" {
		fields["signal"] = runRes.Signal
	}
	if runRes.TimedOut {
		fields["timed_out"] = true
	}
	return fields
}

// outcomeExitCode maps a session outcome to the process exit code.
func outcomeExitCode(outcome types.Outcome) int {
	if outcome == types.OutcomeSucceeded {
		return exitSuccess
	}
	return exitInstall
}
