package localdir

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"toolsyncd/internal/domain"
)

const (
	manifestName    = "services.yaml"
	watchDebounce   = 200 * time.Millisecond
	fallbackVersion = "2.0.0"
)

// Backend serves the whole engine from a local directory, for
// development and tests:
//
//	<path>/services.yaml  manifest of services, instances and version
//	<path>/<key>          one file per configuration key
//
// File writes surface as push events through fsnotify. The group
// parameter is accepted for interface compatibility and ignored; the
// directory is the group.
type Backend struct {
	path    string
	version string
	logger  *zap.Logger

	watchOnce sync.Once
	watchErr  error
	watcher   *fsnotify.Watcher
	done      chan struct{}

	mu              sync.Mutex
	closed          bool
	configListeners map[string]func(key string)
	subscriptions   map[string]func(service string)
	pending         map[string]*time.Timer
}

// Options configures a Backend.
type Options struct {
	// Path is the directory holding the manifest and config files.
	Path string
	// Version is reported when the manifest does not set one.
	Version string
	Logger  *zap.Logger
}

var (
	_ domain.ServiceDirectory = (*Backend)(nil)
	_ domain.ConfigStore      = (*Backend)(nil)
	_ domain.VersionSource    = (*Backend)(nil)
)

func New(opts Options) (*Backend, error) {
	const op = "localdir.New"
	if opts.Path == "" {
		return nil, domain.E(domain.CodeInvalidArgument, op, "path is required", nil)
	}
	info, err := os.Stat(opts.Path)
	if err != nil {
		return nil, domain.E(domain.CodeInvalidArgument, op, "", err)
	}
	if !info.IsDir() {
		return nil, domain.E(domain.CodeInvalidArgument, op, opts.Path+" is not a directory", nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	version := opts.Version
	if version == "" {
		version = fallbackVersion
	}
	return &Backend{
		path:            opts.Path,
		version:         version,
		logger:          logger.Named("localdir"),
		done:            make(chan struct{}),
		configListeners: make(map[string]func(key string)),
		subscriptions:   make(map[string]func(service string)),
		pending:         make(map[string]*time.Timer),
	}, nil
}

type manifest struct {
	Version  string            `yaml:"version"`
	Services []manifestService `yaml:"services"`
}

type manifestService struct {
	Name      string             `yaml:"name"`
	Instances []manifestInstance `yaml:"instances"`
}

type manifestInstance struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
	Healthy bool   `yaml:"healthy"`
	Enabled bool   `yaml:"enabled"`
}

func (b *Backend) loadManifest() (manifest, error) {
	data, err := os.ReadFile(filepath.Join(b.path, manifestName))
	if err != nil {
		return manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return manifest{}, fmt.Errorf("parse manifest: %w", err)
	}
	return m, nil
}

// ListServices returns the manifest's service names.
func (b *Backend) ListServices(ctx context.Context, group string) ([]string, error) {
	const op = "localdir.ListServices"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := b.loadManifest()
	if err != nil {
		return nil, domain.E(domain.CodeUnavailable, op, "", err)
	}
	names := make([]string, 0, len(m.Services))
	for _, svc := range m.Services {
		names = append(names, svc.Name)
	}
	return names, nil
}

// ListInstances returns the manifest's instances for a service. An
// unknown service has no instances, which is not an error.
func (b *Backend) ListInstances(ctx context.Context, service, group string) ([]domain.ServiceInstance, error) {
	const op = "localdir.ListInstances"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := b.loadManifest()
	if err != nil {
		return nil, domain.E(domain.CodeUnavailable, op, "", err)
	}
	for _, svc := range m.Services {
		if svc.Name != service {
			continue
		}
		instances := make([]domain.ServiceInstance, 0, len(svc.Instances))
		for _, inst := range svc.Instances {
			instances = append(instances, domain.ServiceInstance{
				Address: inst.Address,
				Port:    inst.Port,
				Healthy: inst.Healthy,
				Enabled: inst.Enabled,
			})
		}
		return instances, nil
	}
	return nil, nil
}

// GetConfig reads the file named after the key.
func (b *Backend) GetConfig(ctx context.Context, key, group string, timeout time.Duration) (string, bool, error) {
	const op = "localdir.GetConfig"
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(filepath.Join(b.path, filepath.Base(key)))
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, domain.E(domain.CodeUnavailable, op, "", err)
	}
	return string(data), true, nil
}

// FetchVersion reports the manifest's version, or the configured
// fallback when the manifest does not set one.
func (b *Backend) FetchVersion(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m, err := b.loadManifest()
	if err != nil || m.Version == "" {
		return b.version, nil
	}
	return m.Version, nil
}

// Close stops the directory watcher.
func (b *Backend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	watcher := b.watcher
	b.mu.Unlock()

	close(b.done)
	if watcher != nil {
		return watcher.Close()
	}
	return nil
}
