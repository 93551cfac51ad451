package watch

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"toolsyncd/internal/domain"
	"toolsyncd/internal/infra/telemetry"
)

// VersionGate lazily probes the backend's protocol version and parks
// the engine once the version reaches domain.GateVersion. A successful
// probe is cached for the process lifetime; a failed probe leaves the
// version unknown and is retried on the next check.
type VersionGate struct {
	source domain.VersionSource
	logger *zap.Logger

	mu      sync.Mutex
	version domain.RegistryVersion
}

func NewVersionGate(source domain.VersionSource, logger *zap.Logger) *VersionGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VersionGate{
		source:  source,
		logger:  logger.Named("version_gate"),
		version: domain.UnknownVersion(),
	}
}

// Current returns the backend version, probing it on first use.
func (g *VersionGate) Current(ctx context.Context) domain.RegistryVersion {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.version.Known() {
		return g.version
	}

	raw, err := g.source.FetchVersion(ctx)
	if err != nil {
		g.logger.Warn("backend version probe failed",
			telemetry.EventField(telemetry.EventVersionProbeFailed),
			zap.Error(err),
		)
		return g.version
	}
	version, err := domain.KnownVersion(raw)
	if err != nil {
		g.logger.Warn("backend reported an unparseable version",
			telemetry.EventField(telemetry.EventVersionProbeFailed),
			telemetry.VersionField(raw),
			zap.Error(err),
		)
		return g.version
	}

	g.version = version
	g.logger.Info("backend version probed",
		telemetry.EventField(telemetry.EventVersionProbe),
		telemetry.VersionField(version.String()),
	)
	return g.version
}

// Gated reports whether the engine must skip all directory, config and
// cache work for this trigger. Backends at or past GateVersion speak a
// newer sync protocol this engine does not implement; the branch is a
// deliberate no-op, logged every time it is taken.
func (g *VersionGate) Gated(ctx context.Context) bool {
	version := g.Current(ctx)
	if !version.AtLeast(domain.GateVersion) {
		return false
	}
	g.logger.Info("backend version past gate, sync parked",
		telemetry.EventField(telemetry.EventGateParked),
		telemetry.VersionField(version.String()),
	)
	return true
}
