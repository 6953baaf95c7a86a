package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppName string
	Debug   bool
	Port    string

	// Logging
	LogLevel string
	LogJSON  bool

	// Frontend origin allowed for cross-origin requests
	FrontendOrigin string

	// Persistence
	ConfigDir       string // directory holding servers.json
	ComposeFilePath string // generated docker-compose manifest
	ServersDataPath string // per-server world/data directories

	// Docker
	DockerBinary   string // binary used for compose invocations
	ComposeTimeout int    // seconds allowed for compose up/stop/down

	// Authentication (single admin user)
	AdminUsername string
	AdminPassword string
	JWTSecret     string
}

var AppConfig *Config

// Load loads configuration from environment
func Load() *Config {
	// Load .env file if exists
	_ = godotenv.Load()

	config := &Config{
		AppName:         getEnv("APP_NAME", "BlockPanel"),
		Debug:           getEnvBool("DEBUG", true),
		Port:            getEnv("PORT", "8000"),
		LogLevel:        getEnv("LOG_LEVEL", "INFO"),
		LogJSON:         getEnvBool("LOG_JSON", false),
		FrontendOrigin:  getEnv("FRONTEND_ORIGIN", "http://localhost:5173"),
		ConfigDir:       getEnv("CONFIG_DIR", "./config"),
		ComposeFilePath: getEnv("COMPOSE_FILE_PATH", "../docker-compose.yml"),
		ServersDataPath: getEnv("SERVERS_DATA_PATH", "./minecraft/servers"),
		DockerBinary:    getEnv("DOCKER_BINARY", "docker"),
		ComposeTimeout:  getEnvInt("COMPOSE_TIMEOUT", 120),
		AdminUsername:   getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:   getEnv("ADMIN_PASSWORD", "admin"),
		JWTSecret:       getEnv("JWT_SECRET", "change-me-in-production-please-use-a-random-string"),
	}

	AppConfig = config
	return config
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			log.Printf("Invalid boolean for %s, using default: %v", key, defaultValue)
			return defaultValue
		}
		return boolVal
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		intVal, err := strconv.Atoi(value)
		if err != nil {
			log.Printf("Invalid integer for %s, using default: %d", key, defaultValue)
			return defaultValue
		}
		return intVal
	}
	return defaultValue
}
