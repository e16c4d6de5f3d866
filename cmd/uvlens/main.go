// Package main provides the uvlens CLI entrypoint.
//
// uvlens wraps or follows a uv installation, reconstructing install
// state from uv's own trace logs without touching uv itself.
//
// Usage:
//
//	uvlens <command> [options] [args]
//
// Exit codes for session commands:
//   - 0: install succeeded
//   - 1: install failed or incomplete
//   - 2: usage or configuration error
//   - 3: internal error
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/uvlens/cli/cmd"
	"github.com/justapithecus/uvlens/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "uvlens",
		Usage:          "Observe uv installs from the inside",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.RunCommand(),
			cmd.FollowCommand(),
			cmd.AnalyzeCommand(),
			cmd.ServeCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled cli.ExitCoder errors. This
		// branch handles unexpected errors that weren't wrapped.
		os.Exit(1)
	}
}

// exitErrHandler preserves exit codes from cli.Exit() so session
// outcomes map onto the documented process exit codes.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() yields "exit status N"; skip those
		// placeholder messages.
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
