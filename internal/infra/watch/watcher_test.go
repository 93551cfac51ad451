package watch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"toolsyncd/internal/domain"
)

func testConfig() domain.Config {
	return domain.Config{
		Group:         domain.DefaultGroup,
		PollInterval:  time.Hour, // sweeps driven manually or via the start-time sweep
		ConfigTimeout: time.Second,
		ShutdownGrace: time.Second,
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	dir := newFakeDirectory()
	cfg := newFakeConfigs()
	sink := newFakeSink()
	versions := &fakeVersions{version: "2.0.0"}

	_, err := New(Options{Configs: cfg, Versions: versions, Sink: sink})
	require.Error(t, err)
	_, err = New(Options{Directory: dir, Versions: versions, Sink: sink})
	require.Error(t, err)
	_, err = New(Options{Directory: dir, Configs: cfg, Sink: sink})
	require.Error(t, err)
	_, err = New(Options{Directory: dir, Configs: cfg, Versions: versions})
	require.Error(t, err)

	w, err := New(Options{Directory: dir, Configs: cfg, Versions: versions, Sink: sink, Config: testConfig()})
	require.NoError(t, err)
	require.NotNil(t, w)
}

func TestWatcherStartRunsImmediateSweep(t *testing.T) {
	dir := newFakeDirectory()
	cfg := newFakeConfigs()
	sink := newFakeSink()

	dir.mu.Lock()
	dir.services = []string{"orders"}
	dir.mu.Unlock()
	dir.setInstances("orders", healthyInstance())
	cfg.setDoc(domain.ToolsConfigKey("orders"), `{"tools":[{"name":"search"}]}`)

	w, err := New(Options{
		Directory: dir,
		Configs:   cfg,
		Versions:  &fakeVersions{version: "2.0.0"},
		Sink:      sink,
		Config:    testConfig(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	require.Eventually(t, func() bool {
		return len(sink.presentTools()) == 1
	}, time.Second, 5*time.Millisecond)

	require.Error(t, w.Start(ctx))
	require.NoError(t, w.Stop(context.Background()))
}

func TestWatcherWarmStartPurgesVanishedServices(t *testing.T) {
	dir := newFakeDirectory()
	cfg := newFakeConfigs()
	sink := newFakeSink()
	snaps := newFakeSnapshots()
	require.NoError(t, snaps.Save("ghost", []string{"stale-tool"}))

	w, err := New(Options{
		Directory: dir,
		Configs:   cfg,
		Versions:  &fakeVersions{version: "2.0.0"},
		Sink:      sink,
		Snapshots: snaps,
		Config:    testConfig(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	// The directory lists nothing, so the start-time sweep must purge
	// the restored entry and issue the removal.
	require.Eventually(t, func() bool {
		removed := sink.removals()
		return len(removed) == 1 && removed[0] == "stale-tool"
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, w.Stop(context.Background()))
	_, ok := snaps.get("ghost")
	require.False(t, ok)
}

func TestWatcherHealthReportsGateState(t *testing.T) {
	dir := newFakeDirectory()
	cfg := newFakeConfigs()
	sink := newFakeSink()

	w, err := New(Options{
		Directory: dir,
		Configs:   cfg,
		Versions:  &fakeVersions{version: "3.1.0"},
		Sink:      sink,
		Config:    testConfig(),
	})
	require.NoError(t, err)

	report := w.Health()
	require.Equal(t, "ok", report.Status)
	require.Equal(t, "3.1.0", report.Version)
	require.True(t, report.Gated)
}
