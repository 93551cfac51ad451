package watch

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"toolsyncd/internal/domain"
	"toolsyncd/internal/infra/telemetry"
)

// EventBridge turns backend push notifications into immediate
// single-service reconciliations, independent of the poll cadence.
// Callbacks run on whatever goroutine the backend client delivers
// them; racing the poller on the same service is expected and handled
// by the reconciler's per-service lock.
type EventBridge struct {
	reconciler *Reconciler
	gate       *VersionGate
	logger     *zap.Logger
	inflight   *sync.WaitGroup

	mu  sync.RWMutex
	ctx context.Context
}

// EventBridgeOptions configures an EventBridge.
type EventBridgeOptions struct {
	Reconciler *Reconciler
	Gate       *VersionGate
	Logger     *zap.Logger
	Inflight   *sync.WaitGroup
}

func NewEventBridge(opts EventBridgeOptions) *EventBridge {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	inflight := opts.Inflight
	if inflight == nil {
		inflight = &sync.WaitGroup{}
	}
	return &EventBridge{
		reconciler: opts.Reconciler,
		gate:       opts.Gate,
		logger:     logger.Named("event_bridge"),
		inflight:   inflight,
		ctx:        context.Background(),
	}
}

// Bind sets the context push-triggered reconciliations run under.
func (b *EventBridge) Bind(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()
}

func (b *EventBridge) context() context.Context {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ctx
}

// OnInstanceChange handles a membership or health change notification
// for one service.
func (b *EventBridge) OnInstanceChange(service string) {
	b.inflight.Add(1)
	defer b.inflight.Done()

	ctx := b.context()
	if ctx.Err() != nil || b.gate.Gated(ctx) {
		return
	}
	b.logger.Info("instance change received",
		telemetry.EventField(telemetry.EventInstanceChange),
		telemetry.ServiceField(service),
	)
	b.reconciler.Reconcile(ctx, service)
}

// OnConfigChange handles a changed configuration key. Only keys with
// the tool-config suffix map back to a service; everything else is
// ignored.
func (b *EventBridge) OnConfigChange(key string) {
	service, ok := domain.ServiceFromConfigKey(key)
	if !ok {
		return
	}

	b.inflight.Add(1)
	defer b.inflight.Done()

	ctx := b.context()
	if ctx.Err() != nil || b.gate.Gated(ctx) {
		return
	}
	b.logger.Info("config change received",
		telemetry.EventField(telemetry.EventConfigChange),
		telemetry.ServiceField(service),
		telemetry.KeyField(key),
	)
	b.reconciler.Reconcile(ctx, service)
}
