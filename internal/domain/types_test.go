package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHasHealthyEnabledInstance(t *testing.T) {
	require.False(t, HasHealthyEnabledInstance(nil))
	require.False(t, HasHealthyEnabledInstance([]ServiceInstance{
		{Healthy: true, Enabled: false},
		{Healthy: false, Enabled: true},
	}))
	require.True(t, HasHealthyEnabledInstance([]ServiceInstance{
		{Healthy: false, Enabled: false},
		{Healthy: true, Enabled: true},
	}))
}

func TestToolSetDiff(t *testing.T) {
	previous := NewToolSet("a", "b", "c")
	current := NewToolSet("b", "c", "d")
	require.Equal(t, []string{"a"}, previous.Diff(current))
	require.Equal(t, []string{"d"}, current.Diff(previous))
	require.Empty(t, previous.Diff(previous))
	require.Equal(t, []string{"a", "b", "c"}, previous.Diff(NewToolSet()))
}

func TestToolSetCloneIsIndependent(t *testing.T) {
	original := NewToolSet("a")
	clone := original.Clone()
	clone.Add("b")
	require.False(t, original.Has("b"))
	require.True(t, clone.Has("a"))
}

func TestToolsConfigKeyRoundTrip(t *testing.T) {
	key := ToolsConfigKey("orders")
	require.Equal(t, "orders-mcp-tools.json", key)

	service, ok := ServiceFromConfigKey(key)
	require.True(t, ok)
	require.Equal(t, "orders", service)
}

func TestServiceFromConfigKeyRejectsForeignKeys(t *testing.T) {
	for _, key := range []string{"orders-routing.json", "application.yaml", "-mcp-tools.json", ""} {
		_, ok := ServiceFromConfigKey(key)
		require.False(t, ok, "key %q", key)
	}
}
