package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/yndnr/pairmesh-go/internal/core/service"
	"github.com/yndnr/pairmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/pairmesh-go/internal/infra/confloader"
	"github.com/yndnr/pairmesh-go/internal/infra/presence"
	"github.com/yndnr/pairmesh-go/internal/infra/shutdown"
	"github.com/yndnr/pairmesh-go/internal/infra/tlsroots"
	"github.com/yndnr/pairmesh-go/internal/server/config"
	"github.com/yndnr/pairmesh-go/internal/server/gateway"
	"github.com/yndnr/pairmesh-go/internal/server/httpserver"
	"github.com/yndnr/pairmesh-go/internal/server/localserver"
	"github.com/yndnr/pairmesh-go/internal/telemetry/logger"
	"github.com/yndnr/pairmesh-go/internal/telemetry/metric"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("pairmesh-server %s\n", buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	info := buildinfo.Get()
	log.Info("starting pairmesh-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", *configFile)
	log.Debug("effective configuration", "config", fmt.Sprintf("%+v", *config.Sanitize(cfg)))

	metrics := metric.NewRegistry()

	hub, err := service.NewHub(hubConfig(cfg), log, metrics)
	if err != nil {
		return fmt.Errorf("init hub: %w", err)
	}
	metrics.MustRegister(metric.NewCollector(hub.MetricSnapshot))

	reporter, err := initPresence(cfg, log, metrics)
	if err != nil {
		return fmt.Errorf("init presence: %w", err)
	}

	gw := gateway.New(gatewayConfig(cfg), hub, reporter, log, metrics)

	rc := httpserver.DefaultRouterConfig()
	rc.Core = hub
	rc.Gateway = gw
	rc.GatewayPath = cfg.Gateway.Path
	rc.Metrics = metrics
	rc.MetricsPath = ""
	if cfg.Metrics.Enabled {
		rc.MetricsPath = cfg.Metrics.Path
	}
	rc.AdminToken = cfg.Server.AdminToken
	rc.RateLimitRPS = cfg.Server.RateLimit.PerIPRPS
	rc.RateLimitBurst = cfg.Server.RateLimit.Burst
	rc.Logger = log

	var (
		keyPair *tlsroots.KeyPair
		opts    []httpserver.Option
	)
	if cfg.Server.HTTP.TLSCertFile != "" {
		keyPair, err = tlsroots.LoadKeyPair(cfg.Server.HTTP.TLSCertFile, cfg.Server.HTTP.TLSKeyFile, log)
		if err != nil {
			return fmt.Errorf("load TLS key pair: %w", err)
		}
		opts = append(opts, httpserver.WithTLS(keyPair.ServerConfig()))
	}
	httpServer := httpserver.New(cfg.Server.HTTP.Address, httpserver.NewRouter(rc), opts...)
	if err := httpServer.Listen(); err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.HTTP.Address, err)
	}

	shutdownHandler := shutdown.NewHandler(shutdownTimeout, log)
	rl := newReloader(*configFile, cfg, hub, log)

	// Hooks run in reverse order of registration.
	if r, ok := reporter.(*presence.HTTPReporter); ok {
		r.Start()
		shutdownHandler.OnShutdown("presence", r.Stop)
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go hub.RunSweeper(sweepCtx, cfg.Session.SweepInterval)
	shutdownHandler.OnShutdown("sweeper", func(context.Context) error {
		stopSweep()
		return nil
	})

	shutdownHandler.OnShutdown("gateway", gw.Shutdown)
	shutdownHandler.OnShutdown("http", func(ctx context.Context) error {
		gw.SetDraining(true)
		return httpServer.Shutdown(ctx)
	})

	go func() {
		log.Info("HTTP server listening", "addr", httpServer.Addr().String(), "tls", httpServer.TLS())
		if err := httpServer.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
			shutdownHandler.Trigger("http server failed")
		}
	}()

	if cfg.Server.Local.Enabled {
		controls := localserver.Controls{
			Core:     hub,
			Gateway:  gw,
			Shutdown: shutdownHandler.Trigger,
		}
		if *configFile != "" {
			controls.Reload = rl.Reload
		}
		local := localserver.New(cfg.Server.Local.SocketPath, localserver.NewHandler(controls), log)
		if err := local.Listen(); err != nil {
			return fmt.Errorf("local socket: %w", err)
		}
		go func() {
			if err := local.Serve(); err != nil {
				log.Error("local socket error", "error", err)
			}
		}()
		shutdownHandler.OnShutdown("local socket", local.Shutdown)
	}

	// One watcher covers the config file and the certificate files.
	if *configFile != "" || keyPair != nil {
		watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
		if err != nil {
			return fmt.Errorf("file watcher: %w", err)
		}
		var paths []string
		if *configFile != "" {
			paths = append(paths, *configFile)
		}
		if keyPair != nil {
			paths = append(paths, keyPair.Files()...)
		}
		if err := watcher.Watch(paths...); err != nil {
			return fmt.Errorf("file watcher: %w", err)
		}
		watcher.OnChange(func(path string) {
			if keyPair != nil && keyPair.Owns(path) {
				keyPair.Reload()
				return
			}
			if err := rl.Reload(); err != nil {
				log.Warn("configuration reload rejected", "error", err)
			}
		})
		watchCtx, stopWatch := context.WithCancel(context.Background())
		go watcher.Run(watchCtx)
		shutdownHandler.OnShutdown("file watcher", func(context.Context) error {
			stopWatch()
			return watcher.Close()
		})
	}

	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads defaults, then the file, then PAIRMESH_* variables,
// and verifies the result.
func loadConfig(configFile string) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}

	loader := confloader.NewLoader(opts...)
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func initLogger(cfg *config.ServerConfig) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, err
	}
	logger.SetDefault(log)
	return log, nil
}

func hubConfig(cfg *config.ServerConfig) service.HubConfig {
	return service.HubConfig{
		Registry: service.RegistryConfig{
			GraceWindow:  cfg.Session.GraceWindow,
			TombstoneTTL: cfg.Session.TombstoneTTL,
			OutboxSize:   cfg.Session.OutboxSize,
		},
		RequeueFront: cfg.Matchmaking.RequeuePosition == config.RequeueFront,
	}
}

func gatewayConfig(cfg *config.ServerConfig) gateway.Config {
	g := cfg.Gateway
	return gateway.Config{
		AllowedOrigins:  g.AllowedOrigins,
		ReadLimit:       g.ReadLimit,
		WriteWait:       g.WriteWait,
		PongWait:        g.PongWait,
		SendBuffer:      g.SendBuffer,
		HandshakeWindow: g.HandshakeWindow,
		InboundRate:     g.InboundRate,
		InboundBurst:    g.InboundBurst,
	}
}

// initPresence returns Nop when no endpoint is configured.
func initPresence(cfg *config.ServerConfig, log logger.Logger, metrics *metric.Registry) (presence.Reporter, error) {
	if cfg.Presence.Endpoint == "" {
		return presence.Nop{}, nil
	}
	return presence.NewHTTPReporter(presence.Config{
		Endpoint:  cfg.Presence.Endpoint,
		Timeout:   cfg.Presence.Timeout,
		QueueSize: cfg.Presence.QueueSize,
		UserAgent: buildinfo.UserAgent("pairmesh-server"),
	}, log, metrics)
}
