package docker

import (
	"context"
	"time"
)

// ContainerInfo is the subset of a container listing the panel cares about
type ContainerInfo struct {
	ID     string
	Name   string
	Labels map[string]string
	State  string // docker state, e.g. "running"
	Status string // human status, e.g. "Up 2 minutes (healthy)"
}

// ResourceStats is a single live resource sample for one container
type ResourceStats struct {
	CPUPercent       float64
	MemoryUsageBytes uint64
	MemoryLimitBytes uint64
}

// ContainerRuntime abstracts the container engine so the lifecycle service
// can be tested against an in-memory fake instead of a real daemon.
type ContainerRuntime interface {
	// ListByLabel lists containers carrying the label. An empty value
	// matches any container that has the label at all.
	ListByLabel(ctx context.Context, label, value string, runningOnly bool) ([]ContainerInfo, error)

	// ComposeUp / ComposeStop / ComposeDown drive the compose project
	// described by the manifest file.
	ComposeUp(ctx context.Context, project, manifestPath string) error
	ComposeStop(ctx context.Context, project, manifestPath string) error
	ComposeDown(ctx context.Context, project, manifestPath string) error

	// Stats returns one live resource sample for a running container
	Stats(ctx context.Context, containerID string) (*ResourceStats, error)

	// Logs returns the log tail, optionally restricted to entries after
	// since (zero time means no restriction).
	Logs(ctx context.Context, containerID string, tail int, since time.Time) (string, error)
}
