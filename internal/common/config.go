package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string        `toml:"environment"` // "development" or "production"
	Server      ServerConfig  `toml:"server"`
	Storage     StorageConfig `toml:"storage"`
	Logging     LoggingConfig `toml:"logging"`
	Jobs        JobsConfig    `toml:"jobs"`
	Catalog     CatalogConfig `toml:"catalog"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
	// Hostname identifies this node; stamped onto every job record's
	// execution host. Defaults to os.Hostname().
	Hostname string `toml:"hostname"`
	// Submission rate limit applied by the HTTP layer (requests/second)
	RateLimit      float64 `toml:"rate_limit"`
	RateLimitBurst int     `toml:"rate_limit_burst"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05")
}

// JobsConfig contains the coordination limits and locations
type JobsConfig struct {
	// ArchiveRoot is the root path or URI prefix for per-job archive
	// locations. Normalized to end with the path separator.
	ArchiveRoot string            `toml:"archive_root"`
	Memory      MemoryConfig      `toml:"memory"`
	ActiveLimit ActiveLimitConfig `toml:"active_limit"`
	Sweeper     SweeperConfig     `toml:"sweeper"`
}

// MemoryConfig holds the per-job and per-node memory limits in MB
type MemoryConfig struct {
	DefaultJobMemory int `toml:"default_job_memory"` // Fallback when neither request nor command specifies memory
	MaxJobMemory     int `toml:"max_job_memory"`     // Hard upper bound per job; exceeding yields INVALID
	MaxSystemMemory  int `toml:"max_system_memory"`  // Node ledger cap
}

// ActiveLimitConfig caps the number of active jobs a single user may have
type ActiveLimitConfig struct {
	Enabled          bool           `toml:"enabled"`
	DefaultUserLimit int            `toml:"default_user_limit"`
	UserOverrides    map[string]int `toml:"user_overrides"`
}

// UserLimit returns the active-job limit for a user
func (c *ActiveLimitConfig) UserLimit(user string) int {
	if limit, ok := c.UserOverrides[user]; ok {
		return limit
	}
	return c.DefaultUserLimit
}

// SweeperConfig controls the orphaned-job sweeper
type SweeperConfig struct {
	Enabled bool `toml:"enabled"`
	// Schedule is a cron expression with seconds (e.g. "0 */5 * * * *")
	Schedule string `toml:"schedule"`
	// MaxInitAge is how long a job may sit in INIT unknown to node state
	// before it is considered orphaned (duration string, e.g. "10m")
	MaxInitAge string `toml:"max_init_age"`
}

// CatalogConfig contains configuration for catalog seed files
type CatalogConfig struct {
	Dir string `toml:"dir"` // Directory containing catalog definition files (TOML)
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port:           8080,
			Host:           "localhost",
			Hostname:       hostname,
			RateLimit:      50, // submissions/second before the HTTP layer sheds load
			RateLimitBurst: 100,
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
		},
		Jobs: JobsConfig{
			ArchiveRoot: "./archives",
			Memory: MemoryConfig{
				DefaultJobMemory: 1024,
				MaxJobMemory:     10240,
				MaxSystemMemory:  30720,
			},
			ActiveLimit: ActiveLimitConfig{
				Enabled:          false,
				DefaultUserLimit: 100,
			},
			Sweeper: SweeperConfig{
				Enabled:    true,
				Schedule:   "0 */5 * * * *", // every 5 minutes
				MaxInitAge: "10m",
			},
		},
		Catalog: CatalogConfig{
			Dir: "./catalog",
		},
	}
}

// LoadFromFile loads configuration from a single file
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("CONDUCTOR_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("CONDUCTOR_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("CONDUCTOR_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if hostname := os.Getenv("CONDUCTOR_HOSTNAME"); hostname != "" {
		config.Server.Hostname = hostname
	}

	// Storage configuration
	if badgerPath := os.Getenv("CONDUCTOR_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("CONDUCTOR_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("CONDUCTOR_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Jobs configuration
	if root := os.Getenv("CONDUCTOR_ARCHIVE_ROOT"); root != "" {
		config.Jobs.ArchiveRoot = root
	}
	if mem := os.Getenv("CONDUCTOR_DEFAULT_JOB_MEMORY"); mem != "" {
		if m, err := strconv.Atoi(mem); err == nil {
			config.Jobs.Memory.DefaultJobMemory = m
		}
	}
	if mem := os.Getenv("CONDUCTOR_MAX_JOB_MEMORY"); mem != "" {
		if m, err := strconv.Atoi(mem); err == nil {
			config.Jobs.Memory.MaxJobMemory = m
		}
	}
	if mem := os.Getenv("CONDUCTOR_MAX_SYSTEM_MEMORY"); mem != "" {
		if m, err := strconv.Atoi(mem); err == nil {
			config.Jobs.Memory.MaxSystemMemory = m
		}
	}

	// Catalog configuration
	if dir := os.Getenv("CONDUCTOR_CATALOG_DIR"); dir != "" {
		config.Catalog.Dir = dir
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
