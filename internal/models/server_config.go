package models

import "regexp"

// ServerType represents the type of Minecraft server
type ServerType string

const (
	ServerTypeVanilla    ServerType = "vanilla"
	ServerTypePaper      ServerType = "paper"
	ServerTypeSpigot     ServerType = "spigot"
	ServerTypeForge      ServerType = "forge"
	ServerTypeFabric     ServerType = "fabric"
	ServerTypePurpur     ServerType = "purpur"
	ServerTypeCurseForge ServerType = "auto_curseforge"
)

// ValidServerTypes lists every accepted server type
var ValidServerTypes = []ServerType{
	ServerTypeVanilla,
	ServerTypePaper,
	ServerTypeSpigot,
	ServerTypeForge,
	ServerTypeFabric,
	ServerTypePurpur,
	ServerTypeCurseForge,
}

func (t ServerType) Valid() bool {
	for _, v := range ValidServerTypes {
		if t == v {
			return true
		}
	}
	return false
}

// RestartPolicy represents the container restart policy
type RestartPolicy string

const (
	RestartNo            RestartPolicy = "no"
	RestartAlways        RestartPolicy = "always"
	RestartOnFailure     RestartPolicy = "on-failure"
	RestartUnlessStopped RestartPolicy = "unless-stopped"
)

func (p RestartPolicy) Valid() bool {
	switch p {
	case RestartNo, RestartAlways, RestartOnFailure, RestartUnlessStopped:
		return true
	}
	return false
}

// CurseForge install methods
const (
	CFMethodURL  = "url"
	CFMethodSlug = "slug"
	CFMethodFile = "file"
)

// ServerStatus represents the observable lifecycle state of a server
type ServerStatus string

const (
	StatusRunning  ServerStatus = "running"
	StatusStopped  ServerStatus = "stopped"
	StatusStarting ServerStatus = "starting"
	StatusNotFound ServerStatus = "not_found"
)

// idPattern restricts ids to filesystem- and container-name-safe characters
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidID reports whether id is non-empty and matches the allowed charset
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// ServerConfig is one persisted server configuration record
type ServerConfig struct {
	ID     string `json:"id"`
	Active bool   `json:"active"`

	// Server identity
	ServerName  string `json:"serverName"`
	MOTD        string `json:"motd"`
	Port        int    `json:"port"`
	Difficulty  string `json:"difficulty"`
	MaxPlayers  int    `json:"maxPlayers"`
	Ops         string `json:"ops"`
	Timezone    string `json:"timezone"`
	IdleTimeout int    `json:"idleTimeout"` // minutes, 0 disables

	// Feature toggles
	OnlineMode         bool `json:"onlineMode"`
	PVP                bool `json:"pvp"`
	EnableCommandBlock bool `json:"enableCommandBlock"`
	AllowFlight        bool `json:"allowFlight"`

	// Resources
	InitMemory         string `json:"initMemory"`
	MaxMemory          string `json:"maxMemory"`
	CPULimit           string `json:"cpuLimit"`
	CPUReservation     string `json:"cpuReservation"`
	MemoryReservation  string `json:"memoryReservation"`
	ViewDistance       int    `json:"viewDistance"`
	SimulationDistance int    `json:"simulationDistance"`

	// Runtime / image
	ServerType        ServerType    `json:"serverType"`
	Version           string        `json:"version"`
	DockerImage       string        `json:"dockerImage"` // image tag of itzg/minecraft-server
	DockerVolumes     string        `json:"dockerVolumes"` // newline-delimited host:container[:mode]
	RestartPolicy     RestartPolicy `json:"restartPolicy"`
	StopDelay         int           `json:"stopDelay"` // seconds the server gets to shut down
	EnableRollingLogs bool          `json:"enableRollingLogs"`
	ExecDirectly      bool          `json:"execDirectly"`
	ExtraEnvVars      string        `json:"extraEnvVars"` // newline-delimited KEY=VALUE

	// Forge
	ForgeBuild string `json:"forgeBuild,omitempty"`

	// CurseForge
	CFMethod          string `json:"cfMethod,omitempty"` // url, slug or file
	CFURL             string `json:"cfUrl,omitempty"`
	CFSlug            string `json:"cfSlug,omitempty"`
	CFFile            string `json:"cfFile,omitempty"`
	CFAPIKey          string `json:"cfApiKey,omitempty"`
	CFForceSync       bool   `json:"cfForceSync,omitempty"`
	CFForceInclude    string `json:"cfForceInclude,omitempty"` // comma-delimited mod ids
	CFExclude         string `json:"cfExclude,omitempty"`
	CFFilenameMatcher string `json:"cfFilenameMatcher,omitempty"`
}

// DefaultServerConfig returns a record with variant-appropriate defaults for id
func DefaultServerConfig(id string) ServerConfig {
	return ServerConfig{
		ID:                 id,
		Active:             false,
		ServerName:         id,
		MOTD:               "A Minecraft Server",
		Port:               25565,
		Difficulty:         "normal",
		MaxPlayers:         20,
		Ops:                "",
		Timezone:           "UTC",
		IdleTimeout:        0,
		OnlineMode:         true,
		PVP:                true,
		EnableCommandBlock: false,
		AllowFlight:        false,
		InitMemory:         "2G",
		MaxMemory:          "4G",
		CPULimit:           "2",
		CPUReservation:     "0.5",
		MemoryReservation:  "2G",
		ViewDistance:       10,
		SimulationDistance: 10,
		ServerType:         ServerTypeVanilla,
		Version:            "LATEST",
		DockerImage:        "latest",
		DockerVolumes:      "./mc-data:/data",
		RestartPolicy:      RestartUnlessStopped,
		StopDelay:          60,
		EnableRollingLogs:  false,
		ExecDirectly:       true,
		ExtraEnvVars:       "",
	}
}

// ServerConfigUpdate carries a partial update: nil fields are left untouched.
// The id of a record is immutable and therefore has no counterpart here.
type ServerConfigUpdate struct {
	Active *bool `json:"active,omitempty"`

	ServerName  *string `json:"serverName,omitempty"`
	MOTD        *string `json:"motd,omitempty"`
	Port        *int    `json:"port,omitempty"`
	Difficulty  *string `json:"difficulty,omitempty"`
	MaxPlayers  *int    `json:"maxPlayers,omitempty"`
	Ops         *string `json:"ops,omitempty"`
	Timezone    *string `json:"timezone,omitempty"`
	IdleTimeout *int    `json:"idleTimeout,omitempty"`

	OnlineMode         *bool `json:"onlineMode,omitempty"`
	PVP                *bool `json:"pvp,omitempty"`
	EnableCommandBlock *bool `json:"enableCommandBlock,omitempty"`
	AllowFlight        *bool `json:"allowFlight,omitempty"`

	InitMemory         *string `json:"initMemory,omitempty"`
	MaxMemory          *string `json:"maxMemory,omitempty"`
	CPULimit           *string `json:"cpuLimit,omitempty"`
	CPUReservation     *string `json:"cpuReservation,omitempty"`
	MemoryReservation  *string `json:"memoryReservation,omitempty"`
	ViewDistance       *int    `json:"viewDistance,omitempty"`
	SimulationDistance *int    `json:"simulationDistance,omitempty"`

	ServerType        *ServerType    `json:"serverType,omitempty"`
	Version           *string        `json:"version,omitempty"`
	DockerImage       *string        `json:"dockerImage,omitempty"`
	DockerVolumes     *string        `json:"dockerVolumes,omitempty"`
	RestartPolicy     *RestartPolicy `json:"restartPolicy,omitempty"`
	StopDelay         *int           `json:"stopDelay,omitempty"`
	EnableRollingLogs *bool          `json:"enableRollingLogs,omitempty"`
	ExecDirectly      *bool          `json:"execDirectly,omitempty"`
	ExtraEnvVars      *string        `json:"extraEnvVars,omitempty"`

	ForgeBuild *string `json:"forgeBuild,omitempty"`

	CFMethod          *string `json:"cfMethod,omitempty"`
	CFURL             *string `json:"cfUrl,omitempty"`
	CFSlug            *string `json:"cfSlug,omitempty"`
	CFFile            *string `json:"cfFile,omitempty"`
	CFAPIKey          *string `json:"cfApiKey,omitempty"`
	CFForceSync       *bool   `json:"cfForceSync,omitempty"`
	CFForceInclude    *string `json:"cfForceInclude,omitempty"`
	CFExclude         *string `json:"cfExclude,omitempty"`
	CFFilenameMatcher *string `json:"cfFilenameMatcher,omitempty"`
}

// ApplyTo shallow-merges the update onto cfg: provided fields overwrite,
// absent fields keep their current value.
func (u *ServerConfigUpdate) ApplyTo(cfg *ServerConfig) {
	if u.Active != nil {
		cfg.Active = *u.Active
	}
	if u.ServerName != nil {
		cfg.ServerName = *u.ServerName
	}
	if u.MOTD != nil {
		cfg.MOTD = *u.MOTD
	}
	if u.Port != nil {
		cfg.Port = *u.Port
	}
	if u.Difficulty != nil {
		cfg.Difficulty = *u.Difficulty
	}
	if u.MaxPlayers != nil {
		cfg.MaxPlayers = *u.MaxPlayers
	}
	if u.Ops != nil {
		cfg.Ops = *u.Ops
	}
	if u.Timezone != nil {
		cfg.Timezone = *u.Timezone
	}
	if u.IdleTimeout != nil {
		cfg.IdleTimeout = *u.IdleTimeout
	}
	if u.OnlineMode != nil {
		cfg.OnlineMode = *u.OnlineMode
	}
	if u.PVP != nil {
		cfg.PVP = *u.PVP
	}
	if u.EnableCommandBlock != nil {
		cfg.EnableCommandBlock = *u.EnableCommandBlock
	}
	if u.AllowFlight != nil {
		cfg.AllowFlight = *u.AllowFlight
	}
	if u.InitMemory != nil {
		cfg.InitMemory = *u.InitMemory
	}
	if u.MaxMemory != nil {
		cfg.MaxMemory = *u.MaxMemory
	}
	if u.CPULimit != nil {
		cfg.CPULimit = *u.CPULimit
	}
	if u.CPUReservation != nil {
		cfg.CPUReservation = *u.CPUReservation
	}
	if u.MemoryReservation != nil {
		cfg.MemoryReservation = *u.MemoryReservation
	}
	if u.ViewDistance != nil {
		cfg.ViewDistance = *u.ViewDistance
	}
	if u.SimulationDistance != nil {
		cfg.SimulationDistance = *u.SimulationDistance
	}
	if u.ServerType != nil {
		cfg.ServerType = *u.ServerType
	}
	if u.Version != nil {
		cfg.Version = *u.Version
	}
	if u.DockerImage != nil {
		cfg.DockerImage = *u.DockerImage
	}
	if u.DockerVolumes != nil {
		cfg.DockerVolumes = *u.DockerVolumes
	}
	if u.RestartPolicy != nil {
		cfg.RestartPolicy = *u.RestartPolicy
	}
	if u.StopDelay != nil {
		cfg.StopDelay = *u.StopDelay
	}
	if u.EnableRollingLogs != nil {
		cfg.EnableRollingLogs = *u.EnableRollingLogs
	}
	if u.ExecDirectly != nil {
		cfg.ExecDirectly = *u.ExecDirectly
	}
	if u.ExtraEnvVars != nil {
		cfg.ExtraEnvVars = *u.ExtraEnvVars
	}
	if u.ForgeBuild != nil {
		cfg.ForgeBuild = *u.ForgeBuild
	}
	if u.CFMethod != nil {
		cfg.CFMethod = *u.CFMethod
	}
	if u.CFURL != nil {
		cfg.CFURL = *u.CFURL
	}
	if u.CFSlug != nil {
		cfg.CFSlug = *u.CFSlug
	}
	if u.CFFile != nil {
		cfg.CFFile = *u.CFFile
	}
	if u.CFAPIKey != nil {
		cfg.CFAPIKey = *u.CFAPIKey
	}
	if u.CFForceSync != nil {
		cfg.CFForceSync = *u.CFForceSync
	}
	if u.CFForceInclude != nil {
		cfg.CFForceInclude = *u.CFForceInclude
	}
	if u.CFExclude != nil {
		cfg.CFExclude = *u.CFExclude
	}
	if u.CFFilenameMatcher != nil {
		cfg.CFFilenameMatcher = *u.CFFilenameMatcher
	}
}

// Validate checks enum fields after a merge
func (c *ServerConfig) Validate() error {
	if !ValidID(c.ID) {
		return ErrInvalidID
	}
	if !c.ServerType.Valid() {
		return ErrInvalidServerType
	}
	if !c.RestartPolicy.Valid() {
		return ErrInvalidRestartPolicy
	}
	if c.Port <= 0 || c.Port > 65535 {
		return ErrInvalidPort
	}
	return nil
}
