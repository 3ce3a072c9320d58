package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server != "http://localhost:5080" {
		t.Errorf("Server = %q, want %q", cfg.Server, "http://localhost:5080")
	}
	if cfg.Output != "table" {
		t.Errorf("Output = %q, want table", cfg.Output)
	}
	if cfg.Chat.Codec != "json" || cfg.Chat.MaxAttempts != 5 {
		t.Errorf("Chat = %+v, want json codec and 5 attempts", cfg.Chat)
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()
	if !filepath.IsAbs(path) {
		t.Errorf("DefaultConfigPath() = %q, want an absolute path", path)
	}
	if want := filepath.Join(".pairmesh", "cli.yaml"); !strings.HasSuffix(path, want) {
		t.Errorf("DefaultConfigPath() = %q, want suffix %q", path, want)
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server != Default().Server {
		t.Errorf("Server = %q, want default", cfg.Server)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.yaml")
	content := `server: https://pair.example.com
admin_token: s3cret
chat:
  codec: msgpack
  max_backoff: 2s
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server != "https://pair.example.com" {
		t.Errorf("Server = %q", cfg.Server)
	}
	if cfg.AdminToken != "s3cret" {
		t.Errorf("AdminToken = %q", cfg.AdminToken)
	}
	if cfg.Chat.Codec != "msgpack" || cfg.Chat.MaxBackoff != 2*time.Second {
		t.Errorf("Chat = %+v", cfg.Chat)
	}
	// Absent keys keep defaults
	if cfg.Output != "table" || cfg.Chat.MaxAttempts != 5 {
		t.Errorf("defaults lost: Output = %q, MaxAttempts = %d", cfg.Output, cfg.Chat.MaxAttempts)
	}
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() error = nil, want parse error")
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cli.yaml")
	cfg := Default()
	cfg.Socket = "/run/pairmesh.sock"

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("perm = %o, want 600", perm)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Socket != cfg.Socket {
		t.Errorf("Socket = %q, want %q", got.Socket, cfg.Socket)
	}
}

func TestMerge(t *testing.T) {
	base := Default()
	env := map[string]string{
		EnvServer:     "http://env:5080",
		EnvAdminToken: "env-token",
		EnvCAFile:     "/env/ca.pem",
	}
	flags := map[string]string{
		"server":  "http://flag:5080",
		"ca-file": "/flag/ca.pem",
		"output":  "",
	}

	got := Merge(base, env, flags)
	if got.Server != "http://flag:5080" {
		t.Errorf("Server = %q, want flag value", got.Server)
	}
	if got.AdminToken != "env-token" {
		t.Errorf("AdminToken = %q, want env value", got.AdminToken)
	}
	if got.CAFile != "/flag/ca.pem" {
		t.Errorf("CAFile = %q, want flag value", got.CAFile)
	}
	if got.Output != "table" {
		t.Errorf("Output = %q, want default kept for empty flag", got.Output)
	}
	if base.Server != "http://localhost:5080" {
		t.Error("Merge() modified its input")
	}
}

func TestGatewayURL(t *testing.T) {
	tests := []struct {
		server  string
		path    string
		want    string
		wantErr bool
	}{
		{"http://localhost:5080", "/ws", "ws://localhost:5080/ws", false},
		{"https://pair.example.com", "/ws", "wss://pair.example.com/ws", false},
		{"localhost:5080", "ws", "ws://localhost:5080/ws", false},
		{"https://example.com/pair/", "/ws", "wss://example.com/pair/ws", false},
		{"ftp://example.com", "/ws", "", true},
		{"http://", "/ws", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.server, func(t *testing.T) {
			cfg := &CLIConfig{Server: tt.server, GatewayPath: tt.path}
			got, err := cfg.GatewayURL()
			if (err != nil) != tt.wantErr {
				t.Fatalf("GatewayURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("GatewayURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
