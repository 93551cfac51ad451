package app

import (
	"io"

	"go.uber.org/zap"

	"toolsyncd/internal/domain"
	"toolsyncd/internal/infra/localdir"
	"toolsyncd/internal/infra/nacos"
)

// backend bundles the three collaborator views of one adapter.
type backend struct {
	directory domain.ServiceDirectory
	configs   domain.ConfigStore
	versions  domain.VersionSource
	closer    io.Closer
}

func buildBackend(cfg domain.Config, logger *zap.Logger) (backend, error) {
	switch cfg.Source {
	case domain.SourceNacos:
		client, err := nacos.New(nacos.Options{
			ServerAddr: cfg.ServerAddr,
			Logger:     logger,
			ListenPoll: cfg.ListenPoll,
		})
		if err != nil {
			return backend{}, err
		}
		return backend{directory: client, configs: client, versions: client, closer: client}, nil
	case domain.SourceLocalDir:
		dir, err := localdir.New(localdir.Options{
			Path:    cfg.LocalDir.Path,
			Version: cfg.LocalDir.Version,
			Logger:  logger,
		})
		if err != nil {
			return backend{}, err
		}
		return backend{directory: dir, configs: dir, versions: dir, closer: dir}, nil
	default:
		return backend{}, domain.E(domain.CodeInvalidArgument, "app.buildBackend", "unknown source "+cfg.Source, nil)
	}
}
