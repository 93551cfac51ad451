package watch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"toolsyncd/internal/domain"
	"toolsyncd/internal/infra/telemetry"
)

// Reconciler applies one service's desired tool state to the sink. A
// service is eligible when its instance list is non-empty, at least one
// instance is healthy and enabled, and its tool document is present.
// Eligible services get every parsed tool upserted and tools missing
// from the document removed; ineligible services get fully purged.
//
// Errors never escape a reconciliation: the attempt is logged and
// abandoned, and the next poll tick or push event retries naturally.
type Reconciler struct {
	directory domain.ServiceDirectory
	configs   domain.ConfigStore
	sink      domain.ToolSink
	cache     *Cache
	snapshots SnapshotStore
	locks     *serviceLocks
	group     string
	timeout   time.Duration
	logger    *zap.Logger
	metrics   domain.Metrics
}

// ReconcilerOptions configures a Reconciler.
type ReconcilerOptions struct {
	Directory     domain.ServiceDirectory
	Configs       domain.ConfigStore
	Sink          domain.ToolSink
	Cache         *Cache
	Snapshots     SnapshotStore
	Group         string
	ConfigTimeout time.Duration
	Logger        *zap.Logger
	Metrics       domain.Metrics
}

func NewReconciler(opts ReconcilerOptions) *Reconciler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = domain.NopMetrics{}
	}
	timeout := opts.ConfigTimeout
	if timeout <= 0 {
		timeout = domain.DefaultConfigTimeoutSeconds * time.Second
	}
	return &Reconciler{
		directory: opts.Directory,
		configs:   opts.Configs,
		sink:      opts.Sink,
		cache:     opts.Cache,
		snapshots: opts.Snapshots,
		locks:     newServiceLocks(),
		group:     opts.Group,
		timeout:   timeout,
		logger:    logger.Named("reconciler"),
		metrics:   metrics,
	}
}

// Reconcile runs one full apply-diff pass for a service. Overlapping
// calls for the same service serialize on a per-service lock.
func (r *Reconciler) Reconcile(ctx context.Context, service string) {
	start := time.Now()
	unlock := r.locks.Lock(service)
	defer unlock()

	outcome := r.reconcile(ctx, service)
	r.metrics.ObserveReconcile(service, outcome, time.Since(start))
}

// Purge removes every cached tool of a service from the sink and
// deletes the cache entry, serialized against concurrent reconciles.
// Used by the poller for services that dropped out of the listing.
func (r *Reconciler) Purge(ctx context.Context, service string) {
	unlock := r.locks.Lock(service)
	defer unlock()
	r.purge(ctx, service)
}

func (r *Reconciler) reconcile(ctx context.Context, service string) domain.ReconcileOutcome {
	document, present := r.fetchDocument(ctx, service)

	instances, err := r.directory.ListInstances(ctx, service, r.group)
	if err != nil {
		r.logger.Warn("instance listing failed, reconciliation abandoned",
			telemetry.EventField(telemetry.EventReconcileFailure),
			telemetry.ServiceField(service),
			zap.Error(err),
		)
		return domain.ReconcileOutcomeError
	}

	if len(instances) == 0 || !domain.HasHealthyEnabledInstance(instances) || !present {
		if r.purge(ctx, service) {
			r.logger.Info("service ineligible, tools removed",
				telemetry.EventField(telemetry.EventReconcilePurged),
				telemetry.ServiceField(service),
			)
			return domain.ReconcileOutcomePurged
		}
		return domain.ReconcileOutcomeNoop
	}

	defs, err := domain.ParseToolDocument([]byte(document))
	if err != nil {
		// A document that stopped parsing is treated like a deleted
		// one: stale tools must not stay callable against a service
		// whose contract just changed. The next trigger restores them
		// once the document parses again.
		r.logger.Warn("tool document failed to parse, treating as absent",
			telemetry.EventField(telemetry.EventConfigParseFailure),
			telemetry.ServiceField(service),
			zap.Error(err),
		)
		if r.purge(ctx, service) {
			return domain.ReconcileOutcomePurged
		}
		return domain.ReconcileOutcomeNoop
	}
	if len(defs) == 0 {
		if r.purge(ctx, service) {
			return domain.ReconcileOutcomePurged
		}
		return domain.ReconcileOutcomeNoop
	}

	current := make(domain.ToolSet, len(defs))
	upserted := 0
	for i := range defs {
		defs[i].Service = service
		if err := r.sink.Upsert(ctx, defs[i]); err != nil {
			r.logger.Warn("tool upsert failed",
				telemetry.EventField(telemetry.EventToolUpsertFailure),
				telemetry.ServiceField(service),
				telemetry.ToolField(defs[i].Name),
				zap.Error(err),
			)
		} else {
			upserted++
		}
		current.Add(defs[i].Name)
	}
	r.metrics.AddToolsUpserted(upserted)

	previous, _ := r.cache.Get(service)
	r.removeTools(ctx, service, previous.Diff(current))

	r.cache.Put(service, current)
	r.metrics.SetCachedServices(r.cache.Len())
	r.saveSnapshot(service, current)

	r.logger.Info("service reconciled",
		telemetry.EventField(telemetry.EventReconcileApplied),
		telemetry.ServiceField(service),
		zap.Int("tools", len(current)),
	)
	return domain.ReconcileOutcomeApplied
}

// fetchDocument reads the service's tool document bounded by the
// configured timeout. Any failure counts as "document absent".
func (r *Reconciler) fetchDocument(ctx context.Context, service string) (string, bool) {
	key := domain.ToolsConfigKey(service)
	document, ok, err := r.configs.GetConfig(ctx, key, r.group, r.timeout)
	if err != nil {
		r.logger.Warn("tool document fetch failed, treating as absent",
			telemetry.EventField(telemetry.EventReconcileFailure),
			telemetry.ServiceField(service),
			telemetry.KeyField(key),
			zap.Error(err),
		)
		return "", false
	}
	return document, ok
}

// purge removes every cached tool from the sink and drops the cache
// entry. Reports whether there was anything to remove.
func (r *Reconciler) purge(ctx context.Context, service string) bool {
	previous, ok := r.cache.Get(service)
	if !ok {
		return false
	}
	r.removeTools(ctx, service, previous.Names())
	r.cache.Remove(service)
	r.metrics.SetCachedServices(r.cache.Len())
	r.deleteSnapshot(service)
	return true
}

func (r *Reconciler) removeTools(ctx context.Context, service string, names []string) {
	removed := 0
	for _, name := range names {
		if err := r.sink.Remove(ctx, name); err != nil {
			r.logger.Warn("tool removal failed",
				telemetry.EventField(telemetry.EventToolRemoveFailure),
				telemetry.ServiceField(service),
				telemetry.ToolField(name),
				zap.Error(err),
			)
			continue
		}
		removed++
	}
	r.metrics.AddToolsRemoved(removed)
}

func (r *Reconciler) saveSnapshot(service string, set domain.ToolSet) {
	if r.snapshots == nil {
		return
	}
	if err := r.snapshots.Save(service, set.Names()); err != nil {
		r.logger.Warn("snapshot save failed",
			telemetry.EventField(telemetry.EventSnapshotFailure),
			telemetry.ServiceField(service),
			zap.Error(err),
		)
	}
}

func (r *Reconciler) deleteSnapshot(service string) {
	if r.snapshots == nil {
		return
	}
	if err := r.snapshots.Delete(service); err != nil {
		r.logger.Warn("snapshot delete failed",
			telemetry.EventField(telemetry.EventSnapshotFailure),
			telemetry.ServiceField(service),
			zap.Error(err),
		)
	}
}
