package localserver

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yndnr/pairmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/pairmesh-go/internal/server/httpserver/handler"
)

// Gateway is the connection-level control surface.
type Gateway interface {
	Connections() int
	Draining() bool
	SetDraining(on bool)
}

// Controls are the operations the local commands drive.
type Controls struct {
	Core    handler.Core
	Gateway Gateway

	// Reload re-reads the configuration file. Nil reports an error.
	Reload func() error

	// Shutdown starts graceful shutdown and must not block. Nil reports
	// an error.
	Shutdown func(reason string)
}

// Response is one reply line.
type Response struct {
	OK    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// DrainStatus is the data of the drain command.
type DrainStatus struct {
	Draining    bool `json:"draining"`
	Connections int  `json:"connections"`
}

type command struct {
	usage string
	help  string
	run   func(ctx context.Context, args []string) (any, error)
}

// Handler handles local management commands.
type Handler struct {
	controls Controls
	commands map[string]command
}

// NewHandler creates a new Handler.
func NewHandler(c Controls) *Handler {
	h := &Handler{controls: c}
	h.commands = map[string]command{
		"status":   {"status", "session, room and queue summary", h.handleStatus},
		"health":   {"health", "liveness and build info", h.handleHealth},
		"gc":       {"gc", "sweep expired session tombstones", h.handleGC},
		"reload":   {"reload", "re-read the configuration file", h.handleReload},
		"drain":    {"drain [on|off]", "refuse or accept new connections", h.handleDrain},
		"shutdown": {"shutdown", "stop the server gracefully", h.handleShutdown},
		"help":     {"help", "list commands", h.handleHelp},
	}
	return h
}

// Execute runs one command line.
func (h *Handler) Execute(ctx context.Context, line string) Response {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Response{Error: "empty command"}
	}
	cmd, ok := h.commands[strings.ToLower(fields[0])]
	if !ok {
		return Response{Error: "unknown command: " + fields[0] + " (try help)"}
	}

	data, err := cmd.run(ctx, fields[1:])
	if err != nil {
		return Response{Error: err.Error()}
	}
	return Response{OK: true, Data: data}
}

func (h *Handler) handleStatus(_ context.Context, _ []string) (any, error) {
	if h.controls.Core == nil {
		return nil, fmt.Errorf("status unavailable")
	}
	var (
		connections int
		draining    bool
	)
	if gw := h.controls.Gateway; gw != nil {
		connections = gw.Connections()
		draining = gw.Draining()
	}
	return handler.Summarize(h.controls.Core.Stats(), connections, draining), nil
}

func (h *Handler) handleHealth(_ context.Context, _ []string) (any, error) {
	info := buildinfo.Get()
	status := "healthy"
	if gw := h.controls.Gateway; gw != nil && gw.Draining() {
		status = "draining"
	}
	return handler.HealthResponse{
		Status:    status,
		Version:   info.Version,
		Commit:    info.Commit,
		GoVersion: info.GoVersion,
		Time:      time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (h *Handler) handleGC(ctx context.Context, _ []string) (any, error) {
	if h.controls.Core == nil {
		return nil, fmt.Errorf("gc unavailable")
	}
	return handler.GCResponse{
		CleanedCount: h.controls.Core.Sweep(ctx),
		TriggeredAt:  time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (h *Handler) handleReload(_ context.Context, _ []string) (any, error) {
	if h.controls.Reload == nil {
		return nil, fmt.Errorf("reload unavailable: no configuration file")
	}
	if err := h.controls.Reload(); err != nil {
		return nil, fmt.Errorf("reload failed: %w", err)
	}
	return map[string]bool{"reloaded": true}, nil
}

func (h *Handler) handleDrain(_ context.Context, args []string) (any, error) {
	gw := h.controls.Gateway
	if gw == nil {
		return nil, fmt.Errorf("drain unavailable")
	}
	if len(args) > 0 {
		switch strings.ToLower(args[0]) {
		case "on":
			gw.SetDraining(true)
		case "off":
			gw.SetDraining(false)
		default:
			return nil, fmt.Errorf("usage: drain [on|off]")
		}
	}
	return DrainStatus{Draining: gw.Draining(), Connections: gw.Connections()}, nil
}

func (h *Handler) handleShutdown(_ context.Context, _ []string) (any, error) {
	if h.controls.Shutdown == nil {
		return nil, fmt.Errorf("shutdown unavailable")
	}
	h.controls.Shutdown("local socket")
	return map[string]bool{"shutting_down": true}, nil
}

func (h *Handler) handleHelp(_ context.Context, _ []string) (any, error) {
	names := make([]string, 0, len(h.commands))
	for name := range h.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		c := h.commands[name]
		lines = append(lines, fmt.Sprintf("%-16s %s", c.usage, c.help))
	}
	return lines, nil
}
