package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables read by Merge.
const (
	EnvServer     = "PAIRMESH_SERVER"
	EnvAdminToken = "PAIRMESH_ADMIN_TOKEN"
	EnvCAFile     = "PAIRMESH_CA_FILE"
	EnvSocket     = "PAIRMESH_SOCKET"
	EnvOutput     = "PAIRMESH_OUTPUT"
)

// DefaultConfigPath returns the default CLI config file path.
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".pairmesh", "cli.yaml")
}

// Load loads CLI configuration from path. A missing file yields the
// defaults; fields absent from the file keep their defaults.
func Load(path string) (*CLIConfig, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path with owner-only permissions.
func Save(cfg *CLIConfig, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Merge overlays environment variables, then non-empty flags, onto cfg.
// Flag keys are server, admin-token, ca-file, socket and output.
func Merge(cfg *CLIConfig, env map[string]string, flags map[string]string) *CLIConfig {
	out := *cfg
	apply := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}

	apply(&out.Server, env[EnvServer])
	apply(&out.AdminToken, env[EnvAdminToken])
	apply(&out.CAFile, env[EnvCAFile])
	apply(&out.Socket, env[EnvSocket])
	apply(&out.Output, env[EnvOutput])

	apply(&out.Server, flags["server"])
	apply(&out.AdminToken, flags["admin-token"])
	apply(&out.CAFile, flags["ca-file"])
	apply(&out.Socket, flags["socket"])
	apply(&out.Output, flags["output"])
	return &out
}

// Environ returns the PAIRMESH_* variables Merge reads.
func Environ() map[string]string {
	env := make(map[string]string)
	for _, k := range []string{EnvServer, EnvAdminToken, EnvCAFile, EnvSocket, EnvOutput} {
		if v, ok := os.LookupEnv(k); ok {
			env[k] = v
		}
	}
	return env
}

// GatewayURL derives the WebSocket URL from Server and GatewayPath.
func (c *CLIConfig) GatewayURL() (string, error) {
	server := c.Server
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("invalid server %q: %w", c.Server, err)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid server %q: unsupported scheme %q", c.Server, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid server %q: missing host", c.Server)
	}

	path := c.GatewayPath
	if path == "" {
		path = "/ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	return u.String(), nil
}
