package domain

import (
	"context"
	"time"
)

// ServiceDirectory is the remote registry of services and their
// instances. Subscribe must be idempotent: registering the same
// service twice is harmless.
type ServiceDirectory interface {
	ListServices(ctx context.Context, group string) ([]string, error)
	ListInstances(ctx context.Context, service, group string) ([]ServiceInstance, error)
	Subscribe(ctx context.Context, service, group string, onChange func(service string)) error
}

// ConfigStore is the remote document store holding tool configuration
// documents. GetConfig returns ok=false when the key does not exist;
// AddListener must be idempotent for the same key.
type ConfigStore interface {
	GetConfig(ctx context.Context, key, group string, timeout time.Duration) (string, bool, error)
	AddListener(ctx context.Context, key, group string, onChange func(key string)) error
}

// VersionSource probes the backend's protocol version.
type VersionSource interface {
	FetchVersion(ctx context.Context) (string, error)
}

// ToolSink is the registry that actually exposes tools. Both calls
// must be safe under redundant invocation: Upsert of a present tool is
// a refresh, Remove of an absent tool is a no-op.
type ToolSink interface {
	Upsert(ctx context.Context, def ToolDefinition) error
	Remove(ctx context.Context, name string) error
}
