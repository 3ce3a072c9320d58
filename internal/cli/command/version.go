package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/pairmesh-go/internal/infra/buildinfo"
)

// VersionCommand returns the version command.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show build information",
		Action: func(c *cli.Context) error {
			if !isTable(c) {
				return render(c, buildinfo.Get())
			}
			info := buildinfo.Get()
			fmt.Fprintf(c.App.Writer, "pairmesh-cli %s\n", info.Version)
			fmt.Fprintf(c.App.Writer, "  commit:   %s\n", info.Commit)
			fmt.Fprintf(c.App.Writer, "  built:    %s\n", info.BuildTime)
			fmt.Fprintf(c.App.Writer, "  go:       %s\n", info.GoVersion)
			fmt.Fprintf(c.App.Writer, "  platform: %s\n", info.Platform)
			return nil
		},
	}
}
