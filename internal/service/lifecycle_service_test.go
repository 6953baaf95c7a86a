package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockpanel/panel/internal/compose"
	"github.com/blockpanel/panel/internal/docker"
	"github.com/blockpanel/panel/internal/models"
	"github.com/blockpanel/panel/internal/store"
	"github.com/blockpanel/panel/pkg/config"
)

// fakeRuntime is an in-memory ContainerRuntime for lifecycle tests
type fakeRuntime struct {
	containers []docker.ContainerInfo
	stats      *docker.ResourceStats
	logs       string

	listErr    error
	composeErr error
	statsErr   error
	logsErr    error

	upCalls   int
	stopCalls int
	downCalls int

	lastLogsTail int
}

func (f *fakeRuntime) ListByLabel(ctx context.Context, label, value string, runningOnly bool) ([]docker.ContainerInfo, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []docker.ContainerInfo
	for _, c := range f.containers {
		if value != "" && c.Labels[label] != value {
			continue
		}
		if runningOnly && c.State != "running" {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeRuntime) ComposeUp(ctx context.Context, project, manifestPath string) error {
	f.upCalls++
	return f.composeErr
}

func (f *fakeRuntime) ComposeStop(ctx context.Context, project, manifestPath string) error {
	f.stopCalls++
	return f.composeErr
}

func (f *fakeRuntime) ComposeDown(ctx context.Context, project, manifestPath string) error {
	f.downCalls++
	return f.composeErr
}

func (f *fakeRuntime) Stats(ctx context.Context, containerID string) (*docker.ResourceStats, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	return f.stats, nil
}

func (f *fakeRuntime) Logs(ctx context.Context, containerID string, tail int, since time.Time) (string, error) {
	f.lastLogsTail = tail
	if f.logsErr != nil {
		return "", f.logsErr
	}
	return f.logs, nil
}

func newTestLifecycle(t *testing.T, rt *fakeRuntime) (*LifecycleService, *config.Config) {
	t.Helper()
	dir := t.TempDir()

	st, err := store.New(filepath.Join(dir, "config"), filepath.Join(dir, "docker-compose.yml"))
	require.NoError(t, err)

	cfg := &config.Config{
		ServersDataPath: filepath.Join(dir, "servers"),
		ComposeTimeout:  5,
	}
	return NewLifecycleService(st, rt, NewConsoleService(), cfg), cfg
}

func gameContainer(id, state, status string) docker.ContainerInfo {
	return docker.ContainerInfo{
		ID:     "ctr-" + id,
		Name:   "mc-" + id + "-mc-1",
		Labels: map[string]string{compose.ServerIDLabel: id},
		State:  state,
		Status: status,
	}
}

func TestStartServer(t *testing.T) {
	rt := &fakeRuntime{}
	svc, _ := newTestLifecycle(t, rt)

	assert.True(t, svc.StartServer("daily"))
	assert.Equal(t, 1, rt.upCalls)
}

func TestStartServerFailsWithoutManifest(t *testing.T) {
	rt := &fakeRuntime{}
	svc, _ := newTestLifecycle(t, rt)
	require.NoError(t, os.Remove(svc.store.ManifestPath()))

	assert.False(t, svc.StartServer("daily"))
	assert.Zero(t, rt.upCalls)
}

func TestStopServerFailsWithoutManifest(t *testing.T) {
	rt := &fakeRuntime{}
	svc, _ := newTestLifecycle(t, rt)
	require.NoError(t, os.Remove(svc.store.ManifestPath()))

	assert.False(t, svc.StopServer("daily"))
	assert.Zero(t, rt.stopCalls)
}

func TestStopServerReportsComposeFailure(t *testing.T) {
	rt := &fakeRuntime{composeErr: errors.New("daemon unreachable")}
	svc, _ := newTestLifecycle(t, rt)

	assert.False(t, svc.StopServer("daily"))
}

func TestRestartSurvivesStopFailure(t *testing.T) {
	// Restarting a server that is not running: stop fails, up still runs
	rt := &fakeRuntime{}
	svc, _ := newTestLifecycle(t, rt)

	assert.True(t, svc.RestartServer("daily"))
	assert.Equal(t, 1, rt.stopCalls)
	assert.Equal(t, 1, rt.upCalls)
}

func TestStatusNotFound(t *testing.T) {
	svc, _ := newTestLifecycle(t, &fakeRuntime{})
	assert.Equal(t, models.StatusNotFound, svc.Status("daily"))
}

func TestStatusStopped(t *testing.T) {
	rt := &fakeRuntime{containers: []docker.ContainerInfo{
		gameContainer("daily", "exited", "Exited (0) 2 hours ago"),
	}}
	svc, _ := newTestLifecycle(t, rt)

	assert.Equal(t, models.StatusStopped, svc.Status("daily"))
}

func TestStatusRunning(t *testing.T) {
	rt := &fakeRuntime{containers: []docker.ContainerInfo{
		gameContainer("daily", "running", "Up 5 minutes (healthy)"),
	}}
	svc, _ := newTestLifecycle(t, rt)

	assert.Equal(t, models.StatusRunning, svc.Status("daily"))
}

func TestStatusStartingIsMonotonic(t *testing.T) {
	rt := &fakeRuntime{containers: []docker.ContainerInfo{
		gameContainer("daily", "running", "Up 10 seconds (health: starting)"),
	}}
	svc, _ := newTestLifecycle(t, rt)

	assert.Equal(t, models.StatusStarting, svc.Status("daily"))

	// Once seen healthy, a flapping probe cannot demote back to starting
	rt.containers[0].Status = "Up 1 minute (healthy)"
	assert.Equal(t, models.StatusRunning, svc.Status("daily"))

	rt.containers[0].Status = "Up 2 minutes (health: starting)"
	assert.Equal(t, models.StatusRunning, svc.Status("daily"))
}

func TestStatusDegradesToNotFoundOnRuntimeError(t *testing.T) {
	rt := &fakeRuntime{listErr: errors.New("cannot connect to the Docker daemon")}
	svc, _ := newTestLifecycle(t, rt)

	assert.Equal(t, models.StatusNotFound, svc.Status("daily"))
}

func TestAllStatuses(t *testing.T) {
	rt := &fakeRuntime{containers: []docker.ContainerInfo{
		gameContainer("daily", "running", "Up 5 minutes (healthy)"),
		gameContainer("weekend", "exited", "Exited (0) 1 hour ago"),
		gameContainer("orphan", "running", "Up 1 minute"), // no config record
	}}
	svc, _ := newTestLifecycle(t, rt)

	statuses := svc.AllStatuses()
	assert.Equal(t, map[string]models.ServerStatus{
		"daily":   models.StatusRunning,
		"weekend": models.StatusStopped,
	}, statuses)
}

func TestAllStatusesDegradesToNotFound(t *testing.T) {
	rt := &fakeRuntime{listErr: errors.New("daemon down")}
	svc, _ := newTestLifecycle(t, rt)

	statuses := svc.AllStatuses()
	assert.Equal(t, map[string]models.ServerStatus{
		"daily":   models.StatusNotFound,
		"weekend": models.StatusNotFound,
	}, statuses)
}

func TestResourcesPlaceholdersWhenStopped(t *testing.T) {
	svc, _ := newTestLifecycle(t, &fakeRuntime{})

	usage := svc.Resources("daily")
	assert.Equal(t, ResourceUsage{CPUUsage: "N/A", MemoryUsage: "N/A", MemoryLimit: "N/A"}, usage)
}

func TestResourcesFormatsStats(t *testing.T) {
	rt := &fakeRuntime{
		containers: []docker.ContainerInfo{
			gameContainer("daily", "running", "Up 5 minutes (healthy)"),
		},
		stats: &docker.ResourceStats{
			CPUPercent:       42.5,
			MemoryUsageBytes: 3 * 1024 * 1024 * 1024,
			MemoryLimitBytes: 4 * 1024 * 1024 * 1024,
		},
	}
	svc, _ := newTestLifecycle(t, rt)

	usage := svc.Resources("daily")
	assert.Equal(t, "42.50%", usage.CPUUsage)
	assert.Equal(t, "3.00 GiB", usage.MemoryUsage)
	assert.Equal(t, "4.00 GiB", usage.MemoryLimit)
}

func TestLogsClampedToMaxLines(t *testing.T) {
	rt := &fakeRuntime{
		containers: []docker.ContainerInfo{
			gameContainer("daily", "running", "Up 5 minutes"),
		},
		logs: "line1\nline2\n",
	}
	svc, _ := newTestLifecycle(t, rt)

	assert.Equal(t, "line1\nline2\n", svc.Logs("daily", 999999))
	assert.Equal(t, MaxLogLines, rt.lastLogsTail)

	svc.Logs("daily", 0)
	assert.Equal(t, 100, rt.lastLogsTail)

	svc.Logs("daily", 250)
	assert.Equal(t, 250, rt.lastLogsTail)
}

func TestLogsDegradeToEmpty(t *testing.T) {
	svc, _ := newTestLifecycle(t, &fakeRuntime{})
	assert.Equal(t, "", svc.Logs("ghost", 100))

	rt := &fakeRuntime{
		containers: []docker.ContainerInfo{
			gameContainer("daily", "running", "Up 5 minutes"),
		},
		logsErr: errors.New("log driver failure"),
	}
	svc, _ = newTestLifecycle(t, rt)
	assert.Equal(t, "", svc.Logs("daily", 100))
}

func TestExecuteCommandRequiresRunningServer(t *testing.T) {
	svc, _ := newTestLifecycle(t, &fakeRuntime{})

	result := svc.ExecuteCommand("daily", "list", 25575, "secret")
	assert.False(t, result.Success)
	assert.Contains(t, result.Output, "not running")
}

func TestExecuteCommandRequiresPort(t *testing.T) {
	rt := &fakeRuntime{containers: []docker.ContainerInfo{
		gameContainer("daily", "running", "Up 5 minutes (healthy)"),
	}}
	svc, _ := newTestLifecycle(t, rt)

	result := svc.ExecuteCommand("daily", "list", 0, "secret")
	assert.False(t, result.Success)
	assert.Contains(t, result.Output, "port")
}

func TestClearData(t *testing.T) {
	rt := &fakeRuntime{}
	svc, cfg := newTestLifecycle(t, rt)

	dataDir := filepath.Join(cfg.ServersDataPath, "daily")
	require.NoError(t, os.MkdirAll(dataDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "level.dat"), []byte("world"), 0644))

	assert.True(t, svc.ClearData("daily"))
	assert.Equal(t, 1, rt.downCalls)

	entries, err := os.ReadDir(dataDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestClearDataFailsWhenTeardownFails(t *testing.T) {
	rt := &fakeRuntime{composeErr: errors.New("daemon down")}
	svc, _ := newTestLifecycle(t, rt)

	assert.False(t, svc.ClearData("daily"))
}

func TestDeleteServer(t *testing.T) {
	rt := &fakeRuntime{}
	svc, cfg := newTestLifecycle(t, rt)

	dataDir := filepath.Join(cfg.ServersDataPath, "weekend")
	require.NoError(t, os.MkdirAll(dataDir, 0755))

	deleted, err := svc.DeleteServer("weekend")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, 1, rt.downCalls)

	_, err = svc.store.Get("weekend")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, statErr := os.Stat(dataDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDeleteServerSucceedsWhileDockerIsDown(t *testing.T) {
	rt := &fakeRuntime{composeErr: errors.New("daemon down")}
	svc, _ := newTestLifecycle(t, rt)

	deleted, err := svc.DeleteServer("weekend")
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestDeleteServerUnknownID(t *testing.T) {
	svc, _ := newTestLifecycle(t, &fakeRuntime{})

	deleted, err := svc.DeleteServer("ghost")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.00 KiB", formatBytes(1024))
	assert.Equal(t, "2.50 MiB", formatBytes(2621440))
	assert.Equal(t, "4.00 GiB", formatBytes(4*1024*1024*1024))
}
