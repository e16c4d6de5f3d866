package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/uvlens/types"
)

// VersionCommand returns the version command. All components share a
// single version; commit is injected via ldflags.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			fmt.Fprintf(c.App.Writer, "uvlens %s (commit: %s)\n", types.Version, commit)
			return nil
		},
	}
}
