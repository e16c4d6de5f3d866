// Package cmd provides CLI commands for the uvlens binary.
package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/uvlens/cli/config"
	"github.com/justapithecus/uvlens/cli/render"
)

// Shared flags for session commands.
var (
	// ConfigFlag points at the YAML config file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to YAML config file",
	}

	// RenderFlag selects the live rendering mode.
	RenderFlag = &cli.StringFlag{
		Name:  "render",
		Usage: "Render mode: auto, plain, tui, quiet",
	}

	// TUIFlag is shorthand for --render tui.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Full-screen live view (same as --render tui)",
	}

	// ListenFlag serves live snapshots over WebSocket.
	ListenFlag = &cli.StringFlag{
		Name:  "listen",
		Usage: "Serve live snapshots over WebSocket on this address",
	}

	// FramesFlag streams machine-readable frames on stdout.
	FramesFlag = &cli.BoolFlag{
		Name:  "frames",
		Usage: "Write length-prefixed msgpack frames to stdout",
	}

	// LogLevelFlag sets diagnostic verbosity.
	LogLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "Diagnostic log level: debug, info, warn, error",
	}
)

// SessionFlags returns the flags shared by run and follow.
func SessionFlags() []cli.Flag {
	return []cli.Flag{
		ConfigFlag,
		RenderFlag,
		TUIFlag,
		ListenFlag,
		FramesFlag,
		LogLevelFlag,
	}
}

// loadConfig resolves the effective configuration: file, then flag
// overrides, then validation.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadOrDefault(config.DefaultPath)
	}
	if err != nil {
		return nil, err
	}

	applyFlags(c, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags overlays set command-line flags onto the loaded config.
// Flags a command does not define read as unset and change nothing.
func applyFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("render") {
		cfg.Render = c.String("render")
	}
	if c.Bool("tui") {
		cfg.Render = config.RenderTUI
	}
	if c.IsSet("listen") {
		cfg.Listen = c.String("listen")
	}
	if c.IsSet("frames") {
		cfg.Frames = c.Bool("frames")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
}

// renderMode resolves auto to a concrete mode, falling back to plain
// when the TUI has no terminal to draw on.
func renderMode(cfg *config.Config) string {
	mode := cfg.Render
	if mode == config.RenderAuto {
		mode = config.RenderPlain
	}
	if mode == config.RenderTUI && !render.IsTerminal(os.Stdout) {
		fmt.Fprintln(os.Stderr, "no terminal for the TUI, using plain rendering")
		mode = config.RenderPlain
	}
	return mode
}
