package command

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/pairmesh-go/internal/cli/config"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "CLI configuration",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the resolved configuration",
				Action: configShow,
			},
			{
				Name:  "init",
				Usage: "Write a default configuration file",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
				Action: configInit,
			},
		},
	}
}

// configView is the printable form of the configuration.
type configView struct {
	File        string `json:"file" yaml:"file"`
	Server      string `json:"server" yaml:"server"`
	Gateway     string `json:"gateway" yaml:"gateway"`
	AdminToken  string `json:"admin_token" yaml:"admin_token"`
	CAFile      string `json:"ca_file" yaml:"ca_file"`
	Socket      string `json:"socket" yaml:"socket"`
	Output      string `json:"output" yaml:"output"`
	Codec       string `json:"codec" yaml:"codec"`
	MaxAttempts int    `json:"max_attempts" yaml:"max_attempts"`
	MaxBackoff  string `json:"max_backoff" yaml:"max_backoff"`
}

func configShow(c *cli.Context) error {
	cfg := Config(c)
	gateway, err := cfg.GatewayURL()
	if err != nil {
		gateway = "invalid: " + err.Error()
	}

	token := ""
	if cfg.AdminToken != "" {
		token = "******"
	}
	return render(c, configView{
		File:        c.String("config"),
		Server:      cfg.Server,
		Gateway:     gateway,
		AdminToken:  token,
		CAFile:      cfg.CAFile,
		Socket:      cfg.Socket,
		Output:      cfg.Output,
		Codec:       cfg.Chat.Codec,
		MaxAttempts: cfg.Chat.MaxAttempts,
		MaxBackoff:  cfg.Chat.MaxBackoff.String(),
	})
}

func configInit(c *cli.Context) error {
	path := c.String("config")
	if _, err := os.Stat(path); err == nil && !c.Bool("force") {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := config.Save(config.Default(), path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(c.App.Writer, "Wrote %s\n", path)
	return nil
}
