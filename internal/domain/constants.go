package domain

import "strings"

const (
	// ToolsConfigSuffix terminates the config-store key holding a
	// service's tool document.
	ToolsConfigSuffix = "-mcp-tools.json"
	// GateVersion is the backend protocol generation at which the
	// engine parks itself; the replacement sync protocol for gated
	// backends is not implemented.
	GateVersion = "3.0.0"

	DefaultGroup                      = "DEFAULT_GROUP"
	DefaultSource                     = "nacos"
	DefaultPollIntervalSeconds        = 30
	DefaultConfigTimeoutSeconds       = 5
	DefaultShutdownGraceSeconds       = 10
	DefaultListenPollSeconds          = 5
	DefaultObservabilityListenAddress = "0.0.0.0:9090"
	DefaultSinkName                   = "toolsyncd"
	DefaultSinkVersion                = "0.1.0"
)

// ToolsConfigKey returns the config-store key for a service's tool
// document.
func ToolsConfigKey(service string) string {
	return service + ToolsConfigSuffix
}

// ServiceFromConfigKey recovers the owning service name from a config
// key. Keys without the tool-config suffix report ok=false.
func ServiceFromConfigKey(key string) (string, bool) {
	if !strings.HasSuffix(key, ToolsConfigSuffix) {
		return "", false
	}
	service := strings.TrimSuffix(key, ToolsConfigSuffix)
	if service == "" {
		return "", false
	}
	return service, true
}
