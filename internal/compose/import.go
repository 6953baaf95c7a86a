package compose

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/blockpanel/panel/internal/models"
)

// ImportedConfigID is the record id assigned to a config recovered from a
// pre-existing manifest at first bootstrap.
const ImportedConfigID = "imported"

// knownEnvKeys are the environment variables the generator owns. Anything
// else found in an imported manifest is preserved as a custom env line.
var knownEnvKeys = map[string]bool{
	"EULA": true, "SERVER_NAME": true, "MOTD": true, "DIFFICULTY": true,
	"MAX_PLAYERS": true, "OPS": true, "TZ": true, "PLAYER_IDLE_TIMEOUT": true,
	"INIT_MEMORY": true, "MAX_MEMORY": true, "TYPE": true, "VERSION": true,
	"ONLINE_MODE": true, "PVP": true, "ENABLE_COMMAND_BLOCK": true,
	"ALLOW_FLIGHT": true, "VIEW_DISTANCE": true, "SIMULATION_DISTANCE": true,
	"ENABLE_ROLLING_LOGS": true, "EXEC_DIRECTLY": true, "STOP_DURATION": true,
	"FORGE_VERSION": true, "CF_PAGE_URL": true, "CF_SLUG": true,
	"CF_FILE_ID": true, "CF_API_KEY": true, "CF_FORCE_SYNCHRONIZE": true,
	"CF_FORCE_INCLUDE_MODS": true, "CF_EXCLUDE_MODS": true,
	"CF_FILENAME_MATCHER": true,
}

// Import reverse-engineers a ServerConfig from a previously generated
// manifest. It is best-effort: every field falls back to its default when the
// manifest does not carry it. The returned record is marked active.
func Import(data []byte) (*models.ServerConfig, error) {
	var doc Manifest
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	mc, ok := doc.Services[GameServiceName]
	if !ok {
		return nil, fmt.Errorf("manifest has no %q service", GameServiceName)
	}

	cfg := models.DefaultServerConfig(ImportedConfigID)
	cfg.Active = true

	// Image tag after the vendor prefix
	if idx := strings.LastIndex(mc.Image, ":"); idx >= 0 && idx < len(mc.Image)-1 {
		cfg.DockerImage = mc.Image[idx+1:]
	}

	// Published game port
	if len(mc.Ports) > 0 {
		if host, _, found := strings.Cut(mc.Ports[0], ":"); found {
			if port, err := strconv.Atoi(host); err == nil {
				cfg.Port = port
			}
		}
	}

	if len(mc.Volumes) > 0 {
		cfg.DockerVolumes = strings.Join(mc.Volumes, "\n")
	}
	if policy := models.RestartPolicy(mc.Restart); policy.Valid() {
		cfg.RestartPolicy = policy
	}
	if mc.Deploy != nil {
		res := mc.Deploy.Resources
		envStr(&cfg.CPULimit, res.Limits.CPUs)
		envStr(&cfg.MaxMemory, res.Limits.Memory)
		envStr(&cfg.CPUReservation, res.Reservations.CPUs)
		envStr(&cfg.MemoryReservation, res.Reservations.Memory)
	}

	importEnvironment(&cfg, mc.Environment)
	return &cfg, nil
}

func importEnvironment(cfg *models.ServerConfig, env map[string]string) {
	envStr(&cfg.ServerName, env["SERVER_NAME"])
	envStr(&cfg.MOTD, env["MOTD"])
	envStr(&cfg.Difficulty, env["DIFFICULTY"])
	envStr(&cfg.Ops, env["OPS"])
	envStr(&cfg.Timezone, env["TZ"])
	envStr(&cfg.InitMemory, env["INIT_MEMORY"])
	envStr(&cfg.MaxMemory, env["MAX_MEMORY"])
	envStr(&cfg.Version, env["VERSION"])
	envInt(&cfg.MaxPlayers, env["MAX_PLAYERS"])
	envInt(&cfg.IdleTimeout, env["PLAYER_IDLE_TIMEOUT"])
	envInt(&cfg.ViewDistance, env["VIEW_DISTANCE"])
	envInt(&cfg.SimulationDistance, env["SIMULATION_DISTANCE"])
	envInt(&cfg.StopDelay, env["STOP_DURATION"])
	envBool(&cfg.OnlineMode, env["ONLINE_MODE"])
	envBool(&cfg.PVP, env["PVP"])
	envBool(&cfg.EnableCommandBlock, env["ENABLE_COMMAND_BLOCK"])
	envBool(&cfg.AllowFlight, env["ALLOW_FLIGHT"])
	envBool(&cfg.EnableRollingLogs, env["ENABLE_ROLLING_LOGS"])
	envBool(&cfg.ExecDirectly, env["EXEC_DIRECTLY"])

	if raw, ok := env["TYPE"]; ok {
		if t := models.ServerType(strings.ToLower(raw)); t.Valid() {
			cfg.ServerType = t
		}
	}

	envStr(&cfg.ForgeBuild, env["FORGE_VERSION"])

	// The install method is recovered from whichever CF variable is present
	if url, ok := env["CF_PAGE_URL"]; ok {
		cfg.CFMethod = models.CFMethodURL
		cfg.CFURL = url
	} else if slug, ok := env["CF_SLUG"]; ok {
		cfg.CFMethod = models.CFMethodSlug
		cfg.CFSlug = slug
	} else if file, ok := env["CF_FILE_ID"]; ok {
		cfg.CFMethod = models.CFMethodFile
		cfg.CFFile = file
	}
	envStr(&cfg.CFAPIKey, env["CF_API_KEY"])
	envBool(&cfg.CFForceSync, env["CF_FORCE_SYNCHRONIZE"])
	envStr(&cfg.CFForceInclude, env["CF_FORCE_INCLUDE_MODS"])
	envStr(&cfg.CFExclude, env["CF_EXCLUDE_MODS"])
	envStr(&cfg.CFFilenameMatcher, env["CF_FILENAME_MATCHER"])

	// Keep unrecognized keys as custom lines so they survive regeneration
	var extra []string
	for key, value := range env {
		if !knownEnvKeys[key] {
			extra = append(extra, key+"="+value)
		}
	}
	sort.Strings(extra)
	cfg.ExtraEnvVars = strings.Join(extra, "\n")
}

func envStr(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func envInt(dst *int, value string) {
	if value == "" {
		return
	}
	if n, err := strconv.Atoi(value); err == nil {
		*dst = n
	}
}

func envBool(dst *bool, value string) {
	if value == "" {
		return
	}
	if b, err := strconv.ParseBool(value); err == nil {
		*dst = b
	}
}
