package command

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/pairmesh-go/internal/cli/config"
	"github.com/yndnr/pairmesh-go/internal/cli/output"
	"github.com/yndnr/pairmesh-go/internal/infra/buildinfo"
)

const metaConfig = "config"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "pairmesh-cli",
		Usage:   "PairMesh chat client and management tool",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			ChatCommand(),
			SystemCommand(),
			ConfigCommand(),
			VersionCommand(),
		},
		Before: func(c *cli.Context) error {
			cfg, err := resolveConfig(c)
			if err != nil {
				return err
			}
			if c.App.Metadata == nil {
				c.App.Metadata = make(map[string]any)
			}
			c.App.Metadata[metaConfig] = cfg
			return nil
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "CLI config file",
			Value:   config.DefaultConfigPath(),
		},
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "PairMesh server URL (e.g. http://localhost:5080)",
		},
		&cli.StringFlag{
			Name:  "admin-token",
			Usage: "Admin bearer token",
		},
		&cli.StringFlag{
			Name:  "ca-file",
			Usage: "Extra CA bundle (PEM) for https and wss",
		},
		&cli.StringFlag{
			Name:  "socket",
			Usage: "Use the local management socket at this path",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Enable verbose output",
		},
	}
}

// resolveConfig layers flags over PAIRMESH_* variables over the file.
func resolveConfig(c *cli.Context) (*config.CLIConfig, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	cfg = config.Merge(cfg, config.Environ(), map[string]string{
		"server":      c.String("server"),
		"admin-token": c.String("admin-token"),
		"ca-file":     c.String("ca-file"),
		"socket":      c.String("socket"),
		"output":      c.String("output"),
	})
	if _, err := output.ParseFormat(cfg.Output); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Config returns the resolved configuration.
func Config(c *cli.Context) *config.CLIConfig {
	if cfg, ok := c.App.Metadata[metaConfig].(*config.CLIConfig); ok {
		return cfg
	}
	return config.Default()
}

// render writes data to the app's writer in the configured format.
func render(c *cli.Context, data any) error {
	format, err := output.ParseFormat(Config(c).Output)
	if err != nil {
		return err
	}
	return output.Write(c.App.Writer, format, data)
}

func isTable(c *cli.Context) bool {
	format, _ := output.ParseFormat(Config(c).Output)
	return format == output.FormatTable
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
