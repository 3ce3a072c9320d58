package config

import "time"

// CLIConfig is the configuration for pairmesh-cli.
type CLIConfig struct {
	// Server is the HTTP base URL of pairmesh-server.
	Server string `yaml:"server"`

	// GatewayPath is the WebSocket path under Server.
	GatewayPath string `yaml:"gateway_path"`

	// AdminToken authenticates admin requests.
	AdminToken string `yaml:"admin_token"`

	// CAFile is a PEM bundle trusted in addition to the system roots
	// for https and wss.
	CAFile string `yaml:"ca_file"`

	// Socket, when set, routes system commands over the local socket.
	Socket string `yaml:"socket"`

	// Output is table, json or yaml.
	Output string `yaml:"output"`

	Chat ChatConfig `yaml:"chat"`
}

// ChatConfig tunes the chat agent.
type ChatConfig struct {
	// Codec is json or msgpack.
	Codec       string        `yaml:"codec"`
	MaxAttempts int           `yaml:"max_attempts"`
	MaxBackoff  time.Duration `yaml:"max_backoff"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Server:      "http://localhost:5080",
		GatewayPath: "/ws",
		Output:      "table",
		Chat: ChatConfig{
			Codec:       "json",
			MaxAttempts: 5,
			MaxBackoff:  5 * time.Second,
		},
	}
}
