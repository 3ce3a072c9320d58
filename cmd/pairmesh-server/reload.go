package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/yndnr/pairmesh-go/internal/server/config"
	"github.com/yndnr/pairmesh-go/internal/telemetry/logger"
)

// graceSetter is the part of the hub a reload touches.
type graceSetter interface {
	SetGraceWindow(d time.Duration)
}

// reloader re-reads the config file and applies the settings that can
// change at runtime. Everything else needs a restart.
type reloader struct {
	path string
	hub  graceSetter
	log  logger.Logger
	load func(path string) (*config.ServerConfig, error)

	mu      sync.Mutex
	current *config.ServerConfig
}

func newReloader(path string, current *config.ServerConfig, hub graceSetter, log logger.Logger) *reloader {
	return &reloader{
		path:    path,
		hub:     hub,
		log:     log,
		load:    loadConfig,
		current: current,
	}
}

// Reload applies log.level and session.grace_window from the file. A
// file that fails verification changes nothing.
func (r *reloader) Reload() error {
	if r.path == "" {
		return fmt.Errorf("no configuration file")
	}
	next, err := r.load(r.path)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.current

	if next.Log.Level != prev.Log.Level {
		logger.SetLevel(next.Log.Level)
		r.log.Info("log level changed", "from", prev.Log.Level, "to", next.Log.Level)
	}
	if next.Session.GraceWindow != prev.Session.GraceWindow {
		r.hub.SetGraceWindow(next.Session.GraceWindow)
		r.log.Info("grace window changed", "from", prev.Session.GraceWindow, "to", next.Session.GraceWindow)
	}

	for _, key := range restartOnly(prev, next) {
		r.log.Warn("configuration change needs a restart", "key", key)
	}

	// Only the applied settings move forward.
	applied := *prev
	applied.Log.Level = next.Log.Level
	applied.Session.GraceWindow = next.Session.GraceWindow
	r.current = &applied
	return nil
}

// restartOnly lists changed keys that a reload does not apply.
func restartOnly(prev, next *config.ServerConfig) []string {
	var keys []string
	check := func(key string, changed bool) {
		if changed {
			keys = append(keys, key)
		}
	}
	check("server.http.address", prev.Server.HTTP.Address != next.Server.HTTP.Address)
	check("server.admin_token", prev.Server.AdminToken != next.Server.AdminToken)
	check("server.local", prev.Server.Local != next.Server.Local)
	check("gateway.path", prev.Gateway.Path != next.Gateway.Path)
	check("session.tombstone_ttl", prev.Session.TombstoneTTL != next.Session.TombstoneTTL)
	check("matchmaking.requeue_position", prev.Matchmaking.RequeuePosition != next.Matchmaking.RequeuePosition)
	check("presence.endpoint", prev.Presence.Endpoint != next.Presence.Endpoint)
	check("log.format", prev.Log.Format != next.Log.Format)
	return keys
}
