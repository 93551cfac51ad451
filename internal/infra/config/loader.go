package config

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"toolsyncd/internal/domain"
)

// Loader reads the engine configuration file.
type Loader struct {
	logger *zap.Logger
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger.Named("config")}
}

func newConfigViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("group", domain.DefaultGroup)
	v.SetDefault("source", domain.DefaultSource)
	v.SetDefault("pollIntervalSeconds", domain.DefaultPollIntervalSeconds)
	v.SetDefault("configTimeoutSeconds", domain.DefaultConfigTimeoutSeconds)
	v.SetDefault("shutdownGraceSeconds", domain.DefaultShutdownGraceSeconds)
	v.SetDefault("listenPollSeconds", domain.DefaultListenPollSeconds)
	v.SetDefault("localdir.version", "")
	v.SetDefault("sink.name", domain.DefaultSinkName)
	v.SetDefault("sink.version", domain.DefaultSinkVersion)
	v.SetDefault("observability.listenAddress", domain.DefaultObservabilityListenAddress)
	v.SetDefault("observability.enableMetrics", true)
	v.SetDefault("observability.enableHealthz", true)
}

type rawConfig struct {
	ServerAddr           string              `mapstructure:"serverAddr"`
	Group                string              `mapstructure:"group"`
	Source               string              `mapstructure:"source"`
	PollIntervalSeconds  int                 `mapstructure:"pollIntervalSeconds"`
	ConfigTimeoutSeconds int                 `mapstructure:"configTimeoutSeconds"`
	ShutdownGraceSeconds int                 `mapstructure:"shutdownGraceSeconds"`
	ListenPollSeconds    int                 `mapstructure:"listenPollSeconds"`
	SnapshotPath         string              `mapstructure:"snapshotPath"`
	LocalDir             rawLocalDirConfig   `mapstructure:"localdir"`
	Sink                 rawSinkConfig       `mapstructure:"sink"`
	Observability        rawObservability    `mapstructure:"observability"`
}

type rawLocalDirConfig struct {
	Path    string `mapstructure:"path"`
	Version string `mapstructure:"version"`
}

type rawSinkConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

type rawObservability struct {
	ListenAddress string `mapstructure:"listenAddress"`
	EnableMetrics bool   `mapstructure:"enableMetrics"`
	EnableHealthz bool   `mapstructure:"enableHealthz"`
}

// Load reads and validates the configuration at path.
func (l *Loader) Load(ctx context.Context, path string) (domain.Config, error) {
	if err := ctx.Err(); err != nil {
		return domain.Config{}, err
	}

	v := newConfigViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return domain.Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return domain.Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}

	cfg := domain.Config{
		ServerAddr:    raw.ServerAddr,
		Group:         raw.Group,
		Source:        raw.Source,
		PollInterval:  time.Duration(raw.PollIntervalSeconds) * time.Second,
		ConfigTimeout: time.Duration(raw.ConfigTimeoutSeconds) * time.Second,
		ShutdownGrace: time.Duration(raw.ShutdownGraceSeconds) * time.Second,
		ListenPoll:    time.Duration(raw.ListenPollSeconds) * time.Second,
		SnapshotPath:  raw.SnapshotPath,
		LocalDir: domain.LocalDirConfig{
			Path:    raw.LocalDir.Path,
			Version: raw.LocalDir.Version,
		},
		Sink: domain.SinkConfig{
			Name:    raw.Sink.Name,
			Version: raw.Sink.Version,
		},
		Observability: domain.ObservabilityConfig{
			ListenAddress: raw.Observability.ListenAddress,
			EnableMetrics: raw.Observability.EnableMetrics,
			EnableHealthz: raw.Observability.EnableHealthz,
		},
	}
	if err := cfg.Validate(); err != nil {
		return domain.Config{}, err
	}

	l.logger.Debug("configuration loaded",
		zap.String("path", path),
		zap.String("source", cfg.Source),
		zap.String("group", cfg.Group),
	)
	return cfg, nil
}
