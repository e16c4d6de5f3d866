package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/uvlens/cli/reader"
	"github.com/justapithecus/uvlens/cli/render"
	"github.com/justapithecus/uvlens/log"
	"github.com/justapithecus/uvlens/metrics"
	"github.com/justapithecus/uvlens/session"
)

// AnalyzeCommand returns the analyze command. It replays a captured
// log through a fresh session and prints the forensic report.
func AnalyzeCommand() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Analyze a captured uv log file",
		ArgsUsage: "<logfile>",
		Flags: []cli.Flag{
			ConfigFlag,
			LogLevelFlag,
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Emit the report as JSON",
			},
		},
		Action: analyzeAction,
	}
}

func analyzeAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: uvlens analyze <logfile>", exitUsage)
	}
	path := c.Args().First()

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("config: %v", err), exitUsage)
	}
	logger := log.NewLoggerLevel("uvlens", cfg.LogLevel)

	id := uuid.NewString()
	guard := session.NewGuard(session.New(session.Config{
		ID:        id,
		Tuning:    cfg.Tuning.SessionTuning(),
		Reclaim:   cfg.Reclaim.TrackReclaim(),
		Logger:    logger,
		Collector: metrics.NewCollector(id),
	}))

	if err := reader.Replay(path, guard, 0); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cli.Exit(fmt.Sprintf("analyze: %v", err), exitUsage)
		}
		return cli.Exit(fmt.Sprintf("analyze: %v", err), exitInternal)
	}
	rep := guard.Close()

	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return cli.Exit(fmt.Sprintf("encode report: %v", err), exitInternal)
		}
		return nil
	}

	if err := render.FormatReport(os.Stdout, rep); err != nil {
		return cli.Exit(fmt.Sprintf("format report: %v", err), exitInternal)
	}
	return nil
}
