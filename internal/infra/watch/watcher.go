package watch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"toolsyncd/internal/domain"
	"toolsyncd/internal/infra/telemetry"
)

// Watcher assembles the sync engine: version gate, cache, reconciler,
// poll loop and push bridge. Construction wires; Start probes the
// backend version, warm-starts the cache from the snapshot store and
// begins sweeping; Stop halts the timer and waits a bounded grace
// period for in-flight reconciliations.
type Watcher struct {
	config     domain.Config
	gate       *VersionGate
	cache      *Cache
	reconciler *Reconciler
	poller     *Poller
	bridge     *EventBridge
	snapshots  SnapshotStore
	logger     *zap.Logger
	inflight   sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// Options carries the watcher's collaborators. Directory, Configs,
// Versions and Sink are required; Snapshots and Metrics are optional.
type Options struct {
	Config    domain.Config
	Directory domain.ServiceDirectory
	Configs   domain.ConfigStore
	Versions  domain.VersionSource
	Sink      domain.ToolSink
	Snapshots SnapshotStore
	Metrics   domain.Metrics
	Logger    *zap.Logger
}

func New(opts Options) (*Watcher, error) {
	const op = "watch.New"
	if opts.Directory == nil {
		return nil, domain.E(domain.CodeInvalidArgument, op, "service directory is required", nil)
	}
	if opts.Configs == nil {
		return nil, domain.E(domain.CodeInvalidArgument, op, "config store is required", nil)
	}
	if opts.Versions == nil {
		return nil, domain.E(domain.CodeInvalidArgument, op, "version source is required", nil)
	}
	if opts.Sink == nil {
		return nil, domain.E(domain.CodeInvalidArgument, op, "tool sink is required", nil)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = domain.NopMetrics{}
	}

	w := &Watcher{
		config:    opts.Config,
		cache:     NewCache(),
		snapshots: opts.Snapshots,
		logger:    logger.Named("watch"),
	}
	w.gate = NewVersionGate(opts.Versions, logger)
	w.reconciler = NewReconciler(ReconcilerOptions{
		Directory:     opts.Directory,
		Configs:       opts.Configs,
		Sink:          opts.Sink,
		Cache:         w.cache,
		Snapshots:     opts.Snapshots,
		Group:         opts.Config.Group,
		ConfigTimeout: opts.Config.ConfigTimeout,
		Logger:        logger,
		Metrics:       metrics,
	})
	w.bridge = NewEventBridge(EventBridgeOptions{
		Reconciler: w.reconciler,
		Gate:       w.gate,
		Logger:     logger,
		Inflight:   &w.inflight,
	})
	w.poller = NewPoller(PollerOptions{
		Directory:  opts.Directory,
		Configs:    opts.Configs,
		Reconciler: w.reconciler,
		Cache:      w.cache,
		Gate:       w.gate,
		Bridge:     w.bridge,
		Group:      opts.Config.Group,
		Logger:     logger,
		Metrics:    metrics,
		Inflight:   &w.inflight,
	})
	return w, nil
}

// Start probes the backend version, restores the cache snapshot and
// begins the poll loop with one immediate sweep.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return domain.E(domain.CodeInternal, "watch.Start", "watcher already started", nil)
	}
	w.started = true
	w.mu.Unlock()

	version := w.gate.Current(ctx)
	w.logger.Info("backend version at startup",
		telemetry.EventField(telemetry.EventVersionProbe),
		telemetry.VersionField(version.String()),
	)

	w.restoreSnapshot()
	w.bridge.Bind(ctx)
	w.poller.Start(ctx, w.config.PollInterval)

	w.inflight.Add(1)
	go func() {
		defer w.inflight.Done()
		w.poller.Sweep(ctx)
	}()

	w.logger.Info("watch engine started",
		telemetry.GroupField(w.config.Group),
		zap.Duration("pollInterval", w.config.PollInterval),
	)
	return nil
}

// Stop halts the poll timer, then waits up to the shutdown grace for
// in-flight reconciliations before returning. In-flight work is
// neither guaranteed to complete nor rolled back.
func (w *Watcher) Stop(ctx context.Context) error {
	w.poller.Stop()

	grace := w.config.ShutdownGrace
	if grace <= 0 {
		grace = domain.DefaultShutdownGraceSeconds * time.Second
	}

	done := make(chan struct{})
	go func() {
		w.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("watch engine stopped")
	case <-time.After(grace):
		w.logger.Warn("shutdown grace elapsed with reconciliations in flight",
			zap.Duration("grace", grace),
		)
	case <-ctx.Done():
		w.logger.Warn("shutdown context canceled with reconciliations in flight")
	}
	return nil
}

// Health summarizes the gate state for the observability endpoint.
func (w *Watcher) Health() telemetry.HealthReport {
	version := w.gate.Current(context.Background())
	return telemetry.HealthReport{
		Status:  "ok",
		Version: version.String(),
		Gated:   version.AtLeast(domain.GateVersion),
	}
}

// restoreSnapshot pre-populates the cache with the previous process's
// applied sets. The first sweep then purges entries for services that
// vanished while this process was down.
func (w *Watcher) restoreSnapshot() {
	if w.snapshots == nil {
		return
	}
	entries, err := w.snapshots.Load()
	if err != nil {
		w.logger.Warn("snapshot restore failed",
			telemetry.EventField(telemetry.EventSnapshotFailure),
			zap.Error(err),
		)
		return
	}
	for service, tools := range entries {
		if len(tools) == 0 {
			continue
		}
		w.cache.Put(service, domain.NewToolSet(tools...))
	}
	if len(entries) > 0 {
		w.logger.Info("cache restored from snapshot", zap.Int("services", len(entries)))
	}
}
