package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/blockpanel/panel/internal/compose"
	"github.com/blockpanel/panel/internal/docker"
	"github.com/blockpanel/panel/internal/models"
	"github.com/blockpanel/panel/internal/store"
	"github.com/blockpanel/panel/pkg/config"
	"github.com/blockpanel/panel/pkg/logger"
)

const (
	// MaxLogLines is the hard ceiling on log tail requests, applied
	// server-side regardless of what the caller asks for
	MaxLogLines = 10000

	statusTimeout = 5 * time.Second
	statsTimeout  = 10 * time.Second
	logsTimeout   = 30 * time.Second
)

// ResourceUsage is a live resource snapshot. Fields hold "N/A" when the
// server is not running.
type ResourceUsage struct {
	CPUUsage    string `json:"cpuUsage"`
	MemoryUsage string `json:"memoryUsage"`
	MemoryLimit string `json:"memoryLimit"`
}

// CommandResult is the outcome of an RCON command execution
type CommandResult struct {
	Success bool   `json:"success"`
	Output  string `json:"output"`
}

// LifecycleService translates domain intents (start/stop/status/logs/...)
// into container runtime calls scoped to one server id. Every operation
// converts runtime failures into boolean or enum results: the panel must stay
// usable while Docker is unavailable, so nothing here panics or propagates
// raw errors to the transport.
type LifecycleService struct {
	store   *store.Store
	runtime docker.ContainerRuntime
	console *ConsoleService
	cfg     *config.Config

	// ready records container IDs that have been observed healthy, so a
	// flapping health probe cannot demote a server from running back to
	// starting without an intervening stop (new containers get new IDs).
	mu    sync.Mutex
	ready map[string]bool
}

func NewLifecycleService(st *store.Store, runtime docker.ContainerRuntime, console *ConsoleService, cfg *config.Config) *LifecycleService {
	return &LifecycleService{
		store:   st,
		runtime: runtime,
		console: console,
		cfg:     cfg,
		ready:   make(map[string]bool),
	}
}

// projectName scopes compose invocations to one server id
func projectName(id string) string {
	return "mc-" + id
}

func (s *LifecycleService) composeTimeout() time.Duration {
	return time.Duration(s.cfg.ComposeTimeout) * time.Second
}

func (s *LifecycleService) manifestExists() bool {
	_, err := os.Stat(s.store.ManifestPath())
	return err == nil
}

// StartServer brings the compose project up. Returns false when the manifest
// does not exist yet or the runtime call fails.
func (s *LifecycleService) StartServer(id string) bool {
	if !s.manifestExists() {
		logger.Warn("Cannot start server, manifest does not exist", map[string]interface{}{"id": id})
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.composeTimeout())
	defer cancel()

	if err := s.runtime.ComposeUp(ctx, projectName(id), s.store.ManifestPath()); err != nil {
		logger.Error("Failed to start server", err, map[string]interface{}{"id": id})
		return false
	}
	logger.Info("Started server", map[string]interface{}{"id": id})
	return true
}

// StopServer stops the compose project. Returns false when the manifest or
// project does not exist.
func (s *LifecycleService) StopServer(id string) bool {
	if !s.manifestExists() {
		logger.Warn("Cannot stop server, manifest does not exist", map[string]interface{}{"id": id})
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.composeTimeout())
	defer cancel()

	if err := s.runtime.ComposeStop(ctx, projectName(id), s.store.ManifestPath()); err != nil {
		logger.Error("Failed to stop server", err, map[string]interface{}{"id": id})
		return false
	}
	logger.Info("Stopped server", map[string]interface{}{"id": id})
	return true
}

// RestartServer stops and then recreates the full compose project, so a
// freshly regenerated manifest is picked up.
func (s *LifecycleService) RestartServer(id string) bool {
	if !s.manifestExists() {
		logger.Warn("Cannot restart server, manifest does not exist", map[string]interface{}{"id": id})
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*s.composeTimeout())
	defer cancel()

	// A stop failure is not fatal: the project may simply not be running
	if err := s.runtime.ComposeStop(ctx, projectName(id), s.store.ManifestPath()); err != nil {
		logger.Warn("Stop before restart failed", map[string]interface{}{
			"id":    id,
			"error": err.Error(),
		})
	}
	if err := s.runtime.ComposeUp(ctx, projectName(id), s.store.ManifestPath()); err != nil {
		logger.Error("Failed to restart server", err, map[string]interface{}{"id": id})
		return false
	}
	logger.Info("Restarted server", map[string]interface{}{"id": id})
	return true
}

// Status re-derives the observable state of one server from the runtime.
// Runtime failures degrade to not_found instead of raising.
func (s *LifecycleService) Status(id string) models.ServerStatus {
	ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
	defer cancel()

	all, err := s.runtime.ListByLabel(ctx, compose.ServerIDLabel, id, false)
	if err != nil || len(all) == 0 {
		return models.StatusNotFound
	}

	running, err := s.runtime.ListByLabel(ctx, compose.ServerIDLabel, id, true)
	if err != nil {
		return models.StatusNotFound
	}
	if len(running) == 0 {
		return models.StatusStopped
	}
	return s.runningStatus(running[0])
}

// AllStatuses answers the dashboard query with two batched list calls
// instead of one pair per server.
func (s *LifecycleService) AllStatuses() map[string]models.ServerStatus {
	statuses := make(map[string]models.ServerStatus)
	for _, cfg := range s.store.List() {
		statuses[cfg.ID] = models.StatusNotFound
	}

	ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
	defer cancel()

	all, err := s.runtime.ListByLabel(ctx, compose.ServerIDLabel, "", false)
	if err != nil {
		return statuses
	}
	running, err := s.runtime.ListByLabel(ctx, compose.ServerIDLabel, "", true)
	if err != nil {
		return statuses
	}

	runningByID := make(map[string]docker.ContainerInfo)
	for _, info := range running {
		runningByID[info.Labels[compose.ServerIDLabel]] = info
	}

	for _, info := range all {
		id := info.Labels[compose.ServerIDLabel]
		if _, tracked := statuses[id]; !tracked {
			continue // container of a config deleted elsewhere
		}
		if runner, ok := runningByID[id]; ok {
			statuses[id] = s.runningStatus(runner)
		} else {
			statuses[id] = models.StatusStopped
		}
	}
	return statuses
}

// runningStatus distinguishes running from starting for a container Docker
// reports as up. The game image ships a healthcheck, so the listing status
// carries the readiness signal; once a container has been seen healthy it
// stays running until it stops.
func (s *LifecycleService) runningStatus(info docker.ContainerInfo) models.ServerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready[info.ID] {
		return models.StatusRunning
	}
	if strings.Contains(info.Status, "health: starting") {
		return models.StatusStarting
	}
	// Healthy, or no healthcheck at all
	s.ready[info.ID] = true
	return models.StatusRunning
}

// Resources samples live cpu/memory usage. A stopped or unreachable server
// yields "N/A" placeholders, never an error.
func (s *LifecycleService) Resources(id string) ResourceUsage {
	usage := ResourceUsage{CPUUsage: "N/A", MemoryUsage: "N/A", MemoryLimit: "N/A"}

	ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
	defer cancel()

	running, err := s.runtime.ListByLabel(ctx, compose.ServerIDLabel, id, true)
	if err != nil || len(running) == 0 {
		return usage
	}

	stats, err := s.runtime.Stats(ctx, running[0].ID)
	if err != nil {
		logger.Warn("Failed to sample container stats", map[string]interface{}{
			"id":    id,
			"error": err.Error(),
		})
		return usage
	}

	usage.CPUUsage = fmt.Sprintf("%.2f%%", stats.CPUPercent)
	usage.MemoryUsage = formatBytes(stats.MemoryUsageBytes)
	usage.MemoryLimit = formatBytes(stats.MemoryLimitBytes)
	return usage
}

// Logs fetches the container log tail, clamped to MaxLogLines
func (s *LifecycleService) Logs(id string, tail int) string {
	return s.LogsSince(id, time.Time{}, tail)
}

// LogsSince fetches log entries after the given timestamp for incremental
// polling. Failures degrade to an empty string.
func (s *LifecycleService) LogsSince(id string, since time.Time, tail int) string {
	tail = clampTail(tail)

	ctx, cancel := context.WithTimeout(context.Background(), logsTimeout)
	defer cancel()

	all, err := s.runtime.ListByLabel(ctx, compose.ServerIDLabel, id, false)
	if err != nil || len(all) == 0 {
		return ""
	}

	content, err := s.runtime.Logs(ctx, all[0].ID, tail, since)
	if err != nil {
		logger.Warn("Failed to fetch container logs", map[string]interface{}{
			"id":    id,
			"error": err.Error(),
		})
		return ""
	}
	return content
}

// formatBytes renders a byte count in human readable IEC units
func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}

func clampTail(tail int) int {
	if tail <= 0 {
		return 100
	}
	if tail > MaxLogLines {
		return MaxLogLines
	}
	return tail
}

// ExecuteCommand sends a console command to the running server over RCON
// using the port and password from the server's persisted config. All
// failure modes produce a clean {success:false, output} result.
func (s *LifecycleService) ExecuteCommand(id, command string, rconPort int, rconPassword string) CommandResult {
	if s.Status(id) != models.StatusRunning {
		return CommandResult{Success: false, Output: "server is not running"}
	}
	if rconPort <= 0 {
		return CommandResult{Success: false, Output: "RCON port is not configured"}
	}

	output, err := s.console.Execute(rconPort, rconPassword, command)
	if err != nil {
		return CommandResult{Success: false, Output: err.Error()}
	}
	return CommandResult{Success: true, Output: output}
}

// ClearData stops the container group and wipes the server's data directory,
// recreating it empty. Destructive and unconditional; confirmation is the
// caller's responsibility.
func (s *LifecycleService) ClearData(id string) bool {
	if s.manifestExists() {
		ctx, cancel := context.WithTimeout(context.Background(), s.composeTimeout())
		defer cancel()

		if err := s.runtime.ComposeDown(ctx, projectName(id), s.store.ManifestPath()); err != nil {
			logger.Error("Failed to tear down server before clearing data", err, map[string]interface{}{"id": id})
			return false
		}
	}

	dataDir := filepath.Join(s.cfg.ServersDataPath, id)
	if err := os.RemoveAll(dataDir); err != nil {
		logger.Error("Failed to remove server data directory", err, map[string]interface{}{"id": id})
		return false
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		logger.Error("Failed to recreate server data directory", err, map[string]interface{}{"id": id})
		return false
	}

	logger.Info("Cleared server data", map[string]interface{}{"id": id})
	return true
}

// DeleteServer tears down the container group and removes both the persisted
// config and the data directory.
func (s *LifecycleService) DeleteServer(id string) (bool, error) {
	if s.manifestExists() {
		ctx, cancel := context.WithTimeout(context.Background(), s.composeTimeout())
		defer cancel()

		if err := s.runtime.ComposeDown(ctx, projectName(id), s.store.ManifestPath()); err != nil {
			// The config must still be removable while Docker is down
			logger.Warn("Failed to tear down server during delete", map[string]interface{}{
				"id":    id,
				"error": err.Error(),
			})
		}
	}

	deleted, err := s.store.Delete(id)
	if err != nil {
		return false, err
	}
	if !deleted {
		return false, nil
	}

	dataDir := filepath.Join(s.cfg.ServersDataPath, id)
	if err := os.RemoveAll(dataDir); err != nil {
		logger.Warn("Failed to remove server data directory", map[string]interface{}{
			"id":    id,
			"error": err.Error(),
		})
	}

	logger.Info("Deleted server", map[string]interface{}{"id": id})
	return true, nil
}
