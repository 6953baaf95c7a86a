// Package compose renders a ServerConfig into the docker-compose manifest
// consumed by the container runtime, and re-imports a config from a
// pre-existing manifest at first bootstrap.
package compose

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/blockpanel/panel/internal/models"
)

const (
	// ImageVendor is the fixed vendor prefix of the game server image
	ImageVendor = "itzg/minecraft-server"

	// GameServiceName is the compose service running the game server
	GameServiceName = "mc"

	// ServerIDLabel is stamped on the game container so that lifecycle
	// queries can match containers without parsing names
	ServerIDLabel = "blockpanel.server-id"
)

// Manifest is the generated compose document
type Manifest struct {
	Services map[string]Service           `yaml:"services"`
	Volumes  map[string]map[string]string `yaml:"volumes"`
}

// Service is one compose service entry
type Service struct {
	Image       string                      `yaml:"image"`
	TTY         bool                        `yaml:"tty,omitempty"`
	StdinOpen   bool                        `yaml:"stdin_open,omitempty"`
	Entrypoint  string                      `yaml:"entrypoint,omitempty"`
	Command     []string                    `yaml:"command,omitempty"`
	User        string                      `yaml:"user,omitempty"`
	DependsOn   map[string]DependsCondition `yaml:"depends_on,omitempty"`
	Ports       []string                    `yaml:"ports,omitempty"`
	Environment map[string]string           `yaml:"environment,omitempty"`
	Labels      map[string]string           `yaml:"labels,omitempty"`
	Volumes     []string                    `yaml:"volumes,omitempty"`
	Restart     string                      `yaml:"restart,omitempty"`
	Deploy      *Deploy                     `yaml:"deploy,omitempty"`
}

type DependsCondition struct {
	Condition string `yaml:"condition"`
}

type Deploy struct {
	Resources Resources `yaml:"resources"`
}

type Resources struct {
	Limits       ResourceSpec `yaml:"limits"`
	Reservations ResourceSpec `yaml:"reservations"`
}

type ResourceSpec struct {
	CPUs   string `yaml:"cpus,omitempty"`
	Memory string `yaml:"memory,omitempty"`
}

// Render serializes the manifest for cfg. It is a pure function: the same
// config always produces byte-identical output (yaml map keys are sorted).
func Render(cfg *models.ServerConfig) ([]byte, error) {
	doc := buildManifest(cfg)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func buildManifest(cfg *models.ServerConfig) *Manifest {
	mc := Service{
		Image:       fmt.Sprintf("%s:%s", ImageVendor, cfg.DockerImage),
		TTY:         true,
		StdinOpen:   true,
		Ports:       []string{fmt.Sprintf("%d:25565", cfg.Port)},
		Environment: BuildEnvironment(cfg),
		Labels:      map[string]string{ServerIDLabel: cfg.ID},
		Volumes:     ParseVolumes(cfg.DockerVolumes),
		Restart:     string(cfg.RestartPolicy),
		Deploy: &Deploy{
			Resources: Resources{
				Limits: ResourceSpec{
					CPUs:   cfg.CPULimit,
					Memory: cfg.MaxMemory,
				},
				Reservations: ResourceSpec{
					CPUs:   cfg.CPUReservation,
					Memory: cfg.MemoryReservation,
				},
			},
		},
	}

	// Auxiliary services are emitted identically for every config: a one-shot
	// permission fix for the file browser database, then the browser itself.
	initFB := Service{
		Image:      "filebrowser/filebrowser",
		Entrypoint: "sh -c",
		Command:    []string{"chown -R 1000: /database"},
		Restart:    string(models.RestartNo),
		Volumes:    []string{"./filebrowser-db:/database"},
	}
	fb := Service{
		Image: "filebrowser/filebrowser",
		DependsOn: map[string]DependsCondition{
			"init-filebrowser": {Condition: "service_completed_successfully"},
		},
		User:        "1000:1000",
		Environment: map[string]string{"FB_DATABASE": "/database/filebrowser.db"},
		Volumes: []string{
			"./filebrowser-db:/database",
			"./mc-data:/srv",
		},
		Ports:   []string{"25580:80"},
		Restart: string(models.RestartUnlessStopped),
	}

	return &Manifest{
		Services: map[string]Service{
			GameServiceName:    mc,
			"init-filebrowser": initFB,
			"filebrowser":      fb,
		},
		Volumes: map[string]map[string]string{
			"mc-data":        {},
			"filebrowser-db": {},
		},
	}
}

// BuildEnvironment computes the environment block of the game service.
// Custom env lines are applied last and override any fixed key.
func BuildEnvironment(cfg *models.ServerConfig) map[string]string {
	env := map[string]string{
		"EULA":                 "TRUE",
		"SERVER_NAME":          cfg.ServerName,
		"MOTD":                 cfg.MOTD,
		"DIFFICULTY":           cfg.Difficulty,
		"MAX_PLAYERS":          strconv.Itoa(cfg.MaxPlayers),
		"OPS":                  cfg.Ops,
		"TZ":                   cfg.Timezone,
		"PLAYER_IDLE_TIMEOUT":  strconv.Itoa(cfg.IdleTimeout),
		"INIT_MEMORY":          cfg.InitMemory,
		"MAX_MEMORY":           cfg.MaxMemory,
		"TYPE":                 strings.ToUpper(string(cfg.ServerType)),
		"VERSION":              cfg.Version,
		"ONLINE_MODE":          boolString(cfg.OnlineMode),
		"PVP":                  boolString(cfg.PVP),
		"ENABLE_COMMAND_BLOCK": boolString(cfg.EnableCommandBlock),
		"ALLOW_FLIGHT":         boolString(cfg.AllowFlight),
		"VIEW_DISTANCE":        strconv.Itoa(cfg.ViewDistance),
		"SIMULATION_DISTANCE":  strconv.Itoa(cfg.SimulationDistance),
		"ENABLE_ROLLING_LOGS":  boolString(cfg.EnableRollingLogs),
		"EXEC_DIRECTLY":        boolString(cfg.ExecDirectly),
		"STOP_DURATION":        strconv.Itoa(cfg.StopDelay),
	}

	if cfg.ServerType == models.ServerTypeForge && cfg.ForgeBuild != "" {
		env["FORGE_VERSION"] = cfg.ForgeBuild
	}

	if cfg.ServerType == models.ServerTypeCurseForge {
		// Exactly one install method's variable is emitted
		switch cfg.CFMethod {
		case models.CFMethodURL:
			env["CF_PAGE_URL"] = cfg.CFURL
		case models.CFMethodSlug:
			env["CF_SLUG"] = cfg.CFSlug
		case models.CFMethodFile:
			env["CF_FILE_ID"] = cfg.CFFile
		}
		if cfg.CFAPIKey != "" {
			env["CF_API_KEY"] = cfg.CFAPIKey
		}
		if cfg.CFForceSync {
			env["CF_FORCE_SYNCHRONIZE"] = "true"
		}
		if cfg.CFForceInclude != "" {
			env["CF_FORCE_INCLUDE_MODS"] = cfg.CFForceInclude
		}
		if cfg.CFExclude != "" {
			env["CF_EXCLUDE_MODS"] = cfg.CFExclude
		}
		if cfg.CFFilenameMatcher != "" {
			env["CF_FILENAME_MATCHER"] = cfg.CFFilenameMatcher
		}
	}

	for key, value := range ParseExtraEnv(cfg.ExtraEnvVars) {
		env[key] = value
	}

	return env
}

// ParseExtraEnv parses newline-delimited KEY=VALUE pairs. Blank lines and
// pairs with an empty key or value are discarded.
func ParseExtraEnv(raw string) map[string]string {
	pairs := make(map[string]string)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		pairs[key] = value
	}
	return pairs
}

// ParseVolumes parses the newline-delimited mount spec field
func ParseVolumes(raw string) []string {
	var mounts []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		mounts = append(mounts, line)
	}
	return mounts
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
