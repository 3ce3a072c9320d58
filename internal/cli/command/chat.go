package command

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/pairmesh-go/internal/agent"
	"github.com/yndnr/pairmesh-go/internal/cli/config"
	"github.com/yndnr/pairmesh-go/internal/cli/repl"
	"github.com/yndnr/pairmesh-go/internal/infra/tlsroots"
	"github.com/yndnr/pairmesh-go/internal/protocol"
	"github.com/yndnr/pairmesh-go/internal/telemetry/logger"
)

// ChatCommand returns the chat command.
func ChatCommand() *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Pair with a random partner and chat",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "codec",
				Usage: "Wire encoding: json or msgpack",
			},
			&cli.DurationFlag{
				Name:  "connect-timeout",
				Usage: "Give up if the first connection takes longer",
				Value: 10 * time.Second,
			},
			&cli.BoolFlag{
				Name:  "resume",
				Usage: "Keep the session token next to the config file and resume it on the next run",
			},
		},
		Action: chatAction,
	}
}

func chatAction(c *cli.Context) error {
	cfg := Config(c)

	url, err := cfg.GatewayURL()
	if err != nil {
		return err
	}

	codecName := cfg.Chat.Codec
	if c.String("codec") != "" {
		codecName = c.String("codec")
	}
	codec, err := codecFor(codecName)
	if err != nil {
		return err
	}

	tlsConfig, err := tlsroots.ClientConfigFor(cfg.CAFile)
	if err != nil {
		return err
	}

	var store agent.TokenStore
	if c.Bool("resume") {
		fs, err := agent.NewFileStore(sessionDir(c))
		if err != nil {
			return err
		}
		store = fs
	}

	level := "warn"
	if c.Bool("verbose") {
		level = "debug"
	}
	errOut := c.App.ErrWriter
	if errOut == nil {
		errOut = os.Stderr
	}
	log, err := logger.New(logger.Config{Level: level, Format: "text", Output: errOut})
	if err != nil {
		return err
	}

	a := agent.New(agent.Config{
		URL:         url,
		Codec:       codec,
		MaxAttempts: cfg.Chat.MaxAttempts,
		MaxBackoff:  cfg.Chat.MaxBackoff,
		TLSConfig:   tlsConfig,
		Store:       store,
	}, log)

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("connect-timeout"))
	err = a.Connect(ctx)
	cancel()
	if err != nil {
		return fmt.Errorf("connect %s: %w", url, err)
	}

	in := c.App.Reader
	if in == nil {
		in = os.Stdin
	}
	return repl.New(a, in, c.App.Writer).Run(c.Context)
}

func codecFor(name string) (protocol.Codec, error) {
	switch name {
	case "", "json":
		return protocol.JSON, nil
	case "msgpack":
		return protocol.Msgpack, nil
	default:
		return nil, fmt.Errorf("unknown codec %q (want json or msgpack)", name)
	}
}

// sessionDir holds the resumable token, beside the CLI config file.
func sessionDir(c *cli.Context) string {
	path := c.String("config")
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return filepath.Dir(path)
}
