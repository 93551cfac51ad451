package domain

import "time"

// ReconcileOutcome labels how a single-service reconciliation ended.
type ReconcileOutcome string

const (
	// ReconcileOutcomeApplied indicates tools were upserted and the
	// cache entry replaced.
	ReconcileOutcomeApplied ReconcileOutcome = "applied"
	// ReconcileOutcomePurged indicates the service was ineligible and
	// its tools were removed.
	ReconcileOutcomePurged ReconcileOutcome = "purged"
	// ReconcileOutcomeNoop indicates an ineligible service with no
	// cached tools to remove.
	ReconcileOutcomeNoop ReconcileOutcome = "noop"
	// ReconcileOutcomeError indicates the reconciliation was abandoned.
	ReconcileOutcomeError ReconcileOutcome = "error"
)

// SweepOutcome labels how a full poll sweep ended.
type SweepOutcome string

const (
	// SweepOutcomeCompleted indicates the sweep processed the listing.
	SweepOutcomeCompleted SweepOutcome = "completed"
	// SweepOutcomeGated indicates the version gate parked the sweep.
	SweepOutcomeGated SweepOutcome = "gated"
	// SweepOutcomeError indicates the service listing failed.
	SweepOutcomeError SweepOutcome = "error"
)

// Metrics receives engine observations.
type Metrics interface {
	ObserveReconcile(service string, outcome ReconcileOutcome, duration time.Duration)
	ObserveSweep(outcome SweepOutcome)
	AddToolsUpserted(n int)
	AddToolsRemoved(n int)
	SetCachedServices(n int)
}

// NopMetrics discards all observations.
type NopMetrics struct{}

func (NopMetrics) ObserveReconcile(string, ReconcileOutcome, time.Duration) {}
func (NopMetrics) ObserveSweep(SweepOutcome)                                {}
func (NopMetrics) AddToolsUpserted(int)                                     {}
func (NopMetrics) AddToolsRemoved(int)                                      {}
func (NopMetrics) SetCachedServices(int)                                    {}
