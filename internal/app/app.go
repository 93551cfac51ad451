package app

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"toolsyncd/internal/infra/config"
	"toolsyncd/internal/infra/sink"
	"toolsyncd/internal/infra/snapshot"
	"toolsyncd/internal/infra/telemetry"
	"toolsyncd/internal/infra/watch"
)

// App loads configuration and runs the sync engine.
type App struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{logger: logger}
}

// ServeConfig carries serve-time settings.
type ServeConfig struct {
	ConfigPath string
	// ServeStdio exposes the sink's MCP server on stdio.
	ServeStdio bool
}

// Serve runs the engine until ctx is canceled.
func (a *App) Serve(ctx context.Context, serveCfg ServeConfig) error {
	cfg, err := config.NewLoader(a.logger).Load(ctx, serveCfg.ConfigPath)
	if err != nil {
		return err
	}
	a.logger.Info("configuration loaded",
		zap.String("config", serveCfg.ConfigPath),
		zap.String("source", cfg.Source),
		zap.String("group", cfg.Group),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics := telemetry.NewPrometheusMetrics(registry)

	backend, err := buildBackend(cfg, a.logger)
	if err != nil {
		return err
	}
	defer closeQuietly(a.logger, "backend", backend.closer)

	var snapshots watch.SnapshotStore
	if cfg.SnapshotPath != "" {
		store, err := snapshot.Open(cfg.SnapshotPath)
		if err != nil {
			return err
		}
		defer closeQuietly(a.logger, "snapshot store", store)
		snapshots = store
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Sink.Name,
		Version: cfg.Sink.Version,
	}, &mcp.ServerOptions{HasTools: true})

	toolSink, err := sink.NewServerSink(sink.ServerSinkOptions{
		Server:    server,
		Directory: backend.directory,
		Group:     cfg.Group,
		Logger:    a.logger,
	})
	if err != nil {
		return err
	}

	watcher, err := watch.New(watch.Options{
		Config:    cfg,
		Directory: backend.directory,
		Configs:   backend.configs,
		Versions:  backend.versions,
		Sink:      toolSink,
		Snapshots: snapshots,
		Metrics:   metrics,
		Logger:    a.logger,
	})
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	obsDone := make(chan error, 1)
	go func() {
		obsDone <- telemetry.StartHTTPServer(runCtx, telemetry.HTTPServerOptions{
			Addr:          cfg.Observability.ListenAddress,
			EnableMetrics: cfg.Observability.EnableMetrics,
			EnableHealthz: cfg.Observability.EnableHealthz,
			Registry:      registry,
			Health:        watcher.Health,
		}, a.logger)
	}()

	if err := watcher.Start(runCtx); err != nil {
		return err
	}

	if serveCfg.ServeStdio {
		go func() {
			if err := server.Run(runCtx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("mcp server stopped", zap.Error(err))
				cancel()
			}
		}()
	}

	<-runCtx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace+time.Second)
	defer stopCancel()
	if err := watcher.Stop(stopCtx); err != nil {
		a.logger.Error("watcher stop failed", zap.Error(err))
	}
	if err := <-obsDone; err != nil {
		a.logger.Error("observability server error", zap.Error(err))
	}
	return nil
}

// ValidateConfig loads and validates the configuration without
// starting anything.
func (a *App) ValidateConfig(ctx context.Context, configPath string) error {
	cfg, err := config.NewLoader(a.logger).Load(ctx, configPath)
	if err != nil {
		return err
	}
	a.logger.Info("configuration is valid",
		zap.String("config", configPath),
		zap.String("source", cfg.Source),
		zap.String("group", cfg.Group),
		zap.Duration("pollInterval", cfg.PollInterval),
	)
	return nil
}

func closeQuietly(logger *zap.Logger, name string, closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logger.Warn("close failed", zap.String("component", name), zap.Error(err))
	}
}
