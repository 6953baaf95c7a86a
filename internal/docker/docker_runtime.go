package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"

	"github.com/blockpanel/panel/pkg/config"
	"github.com/blockpanel/panel/pkg/logger"
)

// Runtime talks to the local Docker daemon. Container queries go through the
// SDK; compose project lifecycle shells out to the docker CLI, which is the
// only interface compose exposes.
type Runtime struct {
	cli    *client.Client
	binary string
}

func NewRuntime(cfg *config.Config) (*Runtime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Runtime{
		cli:    cli,
		binary: cfg.DockerBinary,
	}, nil
}

// ListByLabel lists containers matching the label filter
func (r *Runtime) ListByLabel(ctx context.Context, label, value string, runningOnly bool) ([]ContainerInfo, error) {
	filter := label
	if value != "" {
		filter = label + "=" + value
	}

	summaries, err := r.cli.ContainerList(ctx, container.ListOptions{
		All:     !runningOnly,
		Filters: filters.NewArgs(filters.Arg("label", filter)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	infos := make([]ContainerInfo, 0, len(summaries))
	for _, sum := range summaries {
		name := ""
		if len(sum.Names) > 0 {
			name = strings.TrimPrefix(sum.Names[0], "/")
		}
		infos = append(infos, ContainerInfo{
			ID:     sum.ID,
			Name:   name,
			Labels: sum.Labels,
			State:  sum.State,
			Status: sum.Status,
		})
	}
	return infos, nil
}

// ComposeUp recreates and starts the compose project
func (r *Runtime) ComposeUp(ctx context.Context, project, manifestPath string) error {
	return r.compose(ctx, project, manifestPath, "up", "-d")
}

// ComposeStop stops the compose project without removing containers
func (r *Runtime) ComposeStop(ctx context.Context, project, manifestPath string) error {
	return r.compose(ctx, project, manifestPath, "stop")
}

// ComposeDown stops and removes the compose project
func (r *Runtime) ComposeDown(ctx context.Context, project, manifestPath string) error {
	return r.compose(ctx, project, manifestPath, "down")
}

func (r *Runtime) compose(ctx context.Context, project, manifestPath string, args ...string) error {
	cmdArgs := append([]string{"compose", "-p", project, "-f", manifestPath}, args...)
	cmd := exec.CommandContext(ctx, r.binary, cmdArgs...)

	started := time.Now()
	output, err := cmd.CombinedOutput()
	logger.Debug("Compose command finished", map[string]interface{}{
		"project":     project,
		"args":        strings.Join(args, " "),
		"duration_ms": time.Since(started).Milliseconds(),
	})
	if err != nil {
		return fmt.Errorf("docker compose %s failed: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Stats samples live cpu/memory usage for one container
func (r *Runtime) Stats(ctx context.Context, containerID string) (*ResourceStats, error) {
	resp, err := r.cli.ContainerStats(ctx, containerID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get container stats: %w", err)
	}
	defer resp.Body.Close()

	var raw map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode container stats: %w", err)
	}

	stats := &ResourceStats{CPUPercent: cpuPercent(raw)}
	if memStats, ok := raw["memory_stats"].(map[string]interface{}); ok {
		if usage, ok := memStats["usage"].(float64); ok {
			stats.MemoryUsageBytes = uint64(usage)
		}
		if limit, ok := memStats["limit"].(float64); ok {
			stats.MemoryLimitBytes = uint64(limit)
		}
	}
	return stats, nil
}

// cpuPercent computes usage from the cpu/precpu sample deltas
func cpuPercent(raw map[string]interface{}) float64 {
	cpuStats, ok := raw["cpu_stats"].(map[string]interface{})
	if !ok {
		return 0
	}
	preCPUStats, ok := raw["precpu_stats"].(map[string]interface{})
	if !ok {
		return 0
	}
	cpuUsage, ok := cpuStats["cpu_usage"].(map[string]interface{})
	if !ok {
		return 0
	}
	preCPUUsage, ok := preCPUStats["cpu_usage"].(map[string]interface{})
	if !ok {
		return 0
	}

	totalUsage, _ := cpuUsage["total_usage"].(float64)
	preTotalUsage, _ := preCPUUsage["total_usage"].(float64)
	systemUsage, _ := cpuStats["system_cpu_usage"].(float64)
	preSystemUsage, _ := preCPUStats["system_cpu_usage"].(float64)

	cpuDelta := totalUsage - preTotalUsage
	systemDelta := systemUsage - preSystemUsage
	if cpuDelta <= 0 || systemDelta <= 0 {
		return 0
	}

	cpus := 0.0
	if online, ok := cpuStats["online_cpus"].(float64); ok && online > 0 {
		cpus = online
	} else if percpu, ok := cpuUsage["percpu_usage"].([]interface{}); ok {
		cpus = float64(len(percpu))
	}
	if cpus == 0 {
		return 0
	}
	return (cpuDelta / systemDelta) * cpus * 100.0
}

// Logs fetches the container log tail. The game service runs with a TTY so
// the stream arrives unmultiplexed.
func (r *Runtime) Logs(ctx context.Context, containerID string, tail int, since time.Time) (string, error) {
	options := container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       strconv.Itoa(tail),
	}
	if !since.IsZero() {
		options.Since = since.UTC().Format(time.RFC3339)
	}

	reader, err := r.cli.ContainerLogs(ctx, containerID, options)
	if err != nil {
		return "", fmt.Errorf("failed to get container logs: %w", err)
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// Close closes the Docker client
func (r *Runtime) Close() error {
	return r.cli.Close()
}
