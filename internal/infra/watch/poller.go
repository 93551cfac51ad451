package watch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"toolsyncd/internal/domain"
	"toolsyncd/internal/infra/telemetry"
)

// Poller drives the periodic full sweep: list every service in the
// group, reconcile each, keep push subscriptions registered, then purge
// cache entries for services that dropped out of the listing. The push
// bridge shortens latency; the poller guarantees convergence even when
// notifications are lost.
type Poller struct {
	directory  domain.ServiceDirectory
	configs    domain.ConfigStore
	reconciler *Reconciler
	cache      *Cache
	gate       *VersionGate
	bridge     *EventBridge
	group      string
	logger     *zap.Logger
	metrics    domain.Metrics
	inflight   *sync.WaitGroup

	mu     sync.Mutex
	ticker *time.Ticker
	stop   chan struct{}
}

// PollerOptions configures a Poller.
type PollerOptions struct {
	Directory  domain.ServiceDirectory
	Configs    domain.ConfigStore
	Reconciler *Reconciler
	Cache      *Cache
	Gate       *VersionGate
	Bridge     *EventBridge
	Group      string
	Logger     *zap.Logger
	Metrics    domain.Metrics
	Inflight   *sync.WaitGroup
}

func NewPoller(opts PollerOptions) *Poller {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = domain.NopMetrics{}
	}
	inflight := opts.Inflight
	if inflight == nil {
		inflight = &sync.WaitGroup{}
	}
	return &Poller{
		directory:  opts.Directory,
		configs:    opts.Configs,
		reconciler: opts.Reconciler,
		cache:      opts.Cache,
		gate:       opts.Gate,
		bridge:     opts.Bridge,
		group:      opts.Group,
		logger:     logger.Named("poller"),
		metrics:    metrics,
		inflight:   inflight,
	}
}

// Start begins periodic sweeps. Calling Start on a running poller is a
// no-op.
func (p *Poller) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = domain.DefaultPollIntervalSeconds * time.Second
	}
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		return
	}
	p.ticker = time.NewTicker(interval)
	p.stop = make(chan struct{})
	stop := p.stop
	ticker := p.ticker
	p.mu.Unlock()

	go func() {
		for {
			select {
			case <-ticker.C:
				p.Sweep(ctx)
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the periodic timer. In-flight sweeps finish on their own;
// the watcher drains them.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ticker == nil {
		return
	}
	p.ticker.Stop()
	p.ticker = nil
	close(p.stop)
}

// Sweep runs one full pass. A failure listing services aborts the
// sweep; a failure on one service is contained inside the reconciler
// and does not stop the others.
func (p *Poller) Sweep(ctx context.Context) {
	p.inflight.Add(1)
	defer p.inflight.Done()

	sweepID := uuid.NewString()
	logger := p.logger.With(telemetry.SweepIDField(sweepID))

	if p.gate.Gated(ctx) {
		p.metrics.ObserveSweep(domain.SweepOutcomeGated)
		return
	}

	services, err := p.directory.ListServices(ctx, p.group)
	if err != nil {
		logger.Error("service listing failed, sweep aborted",
			telemetry.EventField(telemetry.EventSweepFailure),
			telemetry.GroupField(p.group),
			zap.Error(err),
		)
		p.metrics.ObserveSweep(domain.SweepOutcomeError)
		return
	}

	listed := make(map[string]struct{}, len(services))
	for _, service := range services {
		listed[service] = struct{}{}
		p.reconciler.Reconcile(ctx, service)
		p.ensureSubscriptions(ctx, logger, service)
	}

	p.pruneStale(ctx, logger, listed)
	p.metrics.ObserveSweep(domain.SweepOutcomeCompleted)
}

// ensureSubscriptions (re)registers push subscriptions for a service.
// Both backends accept duplicate registration, so every sweep simply
// registers again.
func (p *Poller) ensureSubscriptions(ctx context.Context, logger *zap.Logger, service string) {
	if err := p.directory.Subscribe(ctx, service, p.group, p.bridge.OnInstanceChange); err != nil {
		logger.Warn("instance subscription failed",
			telemetry.EventField(telemetry.EventSubscribeFailure),
			telemetry.ServiceField(service),
			zap.Error(err),
		)
	}
	key := domain.ToolsConfigKey(service)
	if err := p.configs.AddListener(ctx, key, p.group, p.bridge.OnConfigChange); err != nil {
		logger.Warn("config listener registration failed",
			telemetry.EventField(telemetry.EventSubscribeFailure),
			telemetry.ServiceField(service),
			telemetry.KeyField(key),
			zap.Error(err),
		)
	}
}

// pruneStale purges every cached service missing from this sweep's
// listing.
func (p *Poller) pruneStale(ctx context.Context, logger *zap.Logger, listed map[string]struct{}) {
	for _, service := range p.cache.Keys() {
		if _, ok := listed[service]; ok {
			continue
		}
		logger.Info("purging stale service",
			telemetry.EventField(telemetry.EventStalePurge),
			telemetry.ServiceField(service),
		)
		p.reconciler.Purge(ctx, service)
	}
}
