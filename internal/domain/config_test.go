package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validNacosConfig() Config {
	return Config{
		ServerAddr:    "127.0.0.1:8848",
		Group:         DefaultGroup,
		Source:        SourceNacos,
		PollInterval:  30 * time.Second,
		ConfigTimeout: 5 * time.Second,
	}
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, validNacosConfig().Validate())

	cfg := validNacosConfig()
	cfg.Group = ""
	require.Error(t, cfg.Validate())

	cfg = validNacosConfig()
	cfg.PollInterval = 0
	require.Error(t, cfg.Validate())

	cfg = validNacosConfig()
	cfg.ConfigTimeout = -time.Second
	require.Error(t, cfg.Validate())

	cfg = validNacosConfig()
	cfg.ServerAddr = ""
	require.Error(t, cfg.Validate())

	cfg = validNacosConfig()
	cfg.Source = "consul"
	require.Error(t, cfg.Validate())
}

func TestConfigValidateLocalDir(t *testing.T) {
	cfg := validNacosConfig()
	cfg.Source = SourceLocalDir
	cfg.ServerAddr = ""
	require.Error(t, cfg.Validate())

	cfg.LocalDir.Path = "/var/lib/toolsync"
	require.NoError(t, cfg.Validate())
}
