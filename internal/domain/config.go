package domain

import "time"

// Source names a backend adapter implementation.
const (
	SourceNacos    = "nacos"
	SourceLocalDir = "localdir"
)

// Config is the resolved engine configuration.
type Config struct {
	ServerAddr    string
	Group         string
	Source        string
	PollInterval  time.Duration
	ConfigTimeout time.Duration
	ShutdownGrace time.Duration
	ListenPoll    time.Duration
	SnapshotPath  string
	LocalDir      LocalDirConfig
	Sink          SinkConfig
	Observability ObservabilityConfig
}

// LocalDirConfig configures the file-backed development backend.
type LocalDirConfig struct {
	Path    string
	Version string
}

// SinkConfig names the MCP implementation advertised by the sink.
type SinkConfig struct {
	Name    string
	Version string
}

// ObservabilityConfig configures the metrics/health listener.
type ObservabilityConfig struct {
	ListenAddress string
	EnableMetrics bool
	EnableHealthz bool
}

// Validate checks the configuration for the selected source.
func (c Config) Validate() error {
	const op = "domain.Config.Validate"
	if c.Group == "" {
		return E(CodeInvalidArgument, op, "group is required", nil)
	}
	if c.PollInterval <= 0 {
		return E(CodeInvalidArgument, op, "poll interval must be positive", nil)
	}
	if c.ConfigTimeout <= 0 {
		return E(CodeInvalidArgument, op, "config timeout must be positive", nil)
	}
	switch c.Source {
	case SourceNacos:
		if c.ServerAddr == "" {
			return E(CodeInvalidArgument, op, "serverAddr is required for the nacos source", nil)
		}
	case SourceLocalDir:
		if c.LocalDir.Path == "" {
			return E(CodeInvalidArgument, op, "localdir.path is required for the localdir source", nil)
		}
	default:
		return E(CodeInvalidArgument, op, "unknown source "+c.Source, nil)
	}
	return nil
}
