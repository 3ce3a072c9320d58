package command

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/pairmesh-go/internal/cli/connection"
	"github.com/yndnr/pairmesh-go/internal/infra/tlsroots"
)

// SystemCommand returns the system subcommand group.
func SystemCommand() *cli.Command {
	return &cli.Command{
		Name:    "system",
		Aliases: []string{"sys"},
		Usage:   "Server management commands",
		Subcommands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show sessions, rooms, queue and connections",
				Action: systemStatus,
			},
			{
				Name:   "health",
				Usage:  "Check server health",
				Action: systemHealth,
			},
			{
				Name:   "gc",
				Usage:  "Sweep expired session tombstones",
				Action: systemGC,
			},
		},
	}
}

// adminClient picks the local socket when one is configured.
func adminClient(c *cli.Context) (connection.Admin, func(), error) {
	cfg := Config(c)
	if cfg.Socket != "" {
		sc := connection.NewSocketClient(cfg.Socket)
		return sc, func() { sc.Close() }, nil
	}

	tlsConfig, err := tlsroots.ClientConfigFor(cfg.CAFile)
	if err != nil {
		return nil, nil, err
	}
	hc := connection.NewHTTPClient(cfg.Server, cfg.AdminToken)
	hc.SetTLSConfig(tlsConfig)
	return hc, func() {}, nil
}

func systemStatus(c *cli.Context) error {
	client, done, err := adminClient(c)
	if err != nil {
		return err
	}
	defer done()

	ctx, cancel := context.WithTimeout(c.Context, 30*time.Second)
	defer cancel()

	result, err := client.Status(ctx)
	if err != nil {
		return err
	}
	return render(c, result)
}

func systemHealth(c *cli.Context) error {
	client, done, err := adminClient(c)
	if err != nil {
		return err
	}
	defer done()

	ctx, cancel := context.WithTimeout(c.Context, 10*time.Second)
	defer cancel()

	result, err := client.Health(ctx)
	if err != nil {
		PrintError("health check failed: %v", err)
		return fmt.Errorf("server unreachable")
	}

	if !isTable(c) {
		return render(c, result)
	}
	w := c.App.Writer
	if result.Status == "healthy" {
		fmt.Fprintf(w, "✓ Server is healthy\n")
	} else {
		fmt.Fprintf(w, "✗ Server is %s\n", result.Status)
	}
	fmt.Fprintf(w, "  Target:  %s\n", client.Target())
	fmt.Fprintf(w, "  Version: %s (%s)\n", result.Version, result.Commit)
	return nil
}

func systemGC(c *cli.Context) error {
	client, done, err := adminClient(c)
	if err != nil {
		return err
	}
	defer done()

	ctx, cancel := context.WithTimeout(c.Context, 60*time.Second)
	defer cancel()

	result, err := client.GC(ctx)
	if err != nil {
		return err
	}

	if !isTable(c) {
		return render(c, result)
	}
	fmt.Fprintf(c.App.Writer, "Garbage collection completed:\n")
	fmt.Fprintf(c.App.Writer, "  Tombstones removed: %d\n", result.CleanedCount)
	return nil
}
