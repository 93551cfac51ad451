package telemetry

import (
	"time"

	"go.uber.org/zap"
)

const (
	FieldEvent      = "event"
	FieldService    = "service"
	FieldTool       = "tool"
	FieldKey        = "key"
	FieldGroup      = "group"
	FieldVersion    = "version"
	FieldSweepID    = "sweep_id"
	FieldDurationMs = "duration_ms"
)

const (
	EventReconcileApplied   = "reconcile_applied"
	EventReconcilePurged    = "reconcile_purged"
	EventReconcileFailure   = "reconcile_failure"
	EventConfigParseFailure = "config_parse_failure"
	EventToolUpsertFailure  = "tool_upsert_failure"
	EventToolRemoveFailure  = "tool_remove_failure"
	EventStalePurge         = "stale_purge"
	EventSweepFailure       = "sweep_failure"
	EventSubscribeFailure   = "subscribe_failure"
	EventVersionProbe       = "version_probe"
	EventVersionProbeFailed = "version_probe_failure"
	EventGateParked         = "gate_parked"
	EventSnapshotFailure    = "snapshot_failure"
	EventInstanceChange     = "instance_change"
	EventConfigChange       = "config_change"
)

func EventField(event string) zap.Field {
	return zap.String(FieldEvent, event)
}

func ServiceField(service string) zap.Field {
	return zap.String(FieldService, service)
}

func ToolField(tool string) zap.Field {
	return zap.String(FieldTool, tool)
}

func KeyField(key string) zap.Field {
	return zap.String(FieldKey, key)
}

func GroupField(group string) zap.Field {
	return zap.String(FieldGroup, group)
}

func VersionField(version string) zap.Field {
	return zap.String(FieldVersion, version)
}

func SweepIDField(id string) zap.Field {
	return zap.String(FieldSweepID, id)
}

func DurationField(duration time.Duration) zap.Field {
	return zap.Int64(FieldDurationMs, duration.Milliseconds())
}
