package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/palletplan/internal/storage"
	"github.com/eugenenazirov/palletplan/internal/units"
)

const (
	defaultPort           = "8080"
	defaultRateLimitRPS   = 25.0
	defaultRateLimitBurst = 50
	defaultLogLevel       = "info"

	// BackendMemory keeps pallet profiles in process memory.
	BackendMemory = "memory"
	// BackendRedis keeps pallet profiles in a Redis hash.
	BackendRedis = "redis"
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	Port                 string
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	EnableMetrics        bool
	CORSOrigins          []string
	RateLimitRPS         float64
	RateLimitBurst       int
	LogLevel             string
	Units                units.System
	StorageBackend       string
	RedisAddr            string
	RedisKey             string
	// Pallets are extra or overriding profiles in base units, applied on
	// top of the storage defaults at startup.
	Pallets []storage.Profile
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	Port                 string            `yaml:"port"`
	ShutdownGracePeriod  string            `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string            `yaml:"read_header_timeout"`
	WriteTimeout         string            `yaml:"write_timeout"`
	IdleTimeout          string            `yaml:"idle_timeout"`
	EnableRequestLogging *bool             `yaml:"enable_request_logging"`
	CORSOrigins          []string          `yaml:"cors_origins"`
	RateLimit            *yamlRateLimit    `yaml:"rate_limit"`
	LogLevel             string            `yaml:"log_level"`
	Units                string            `yaml:"units"`
	Metrics              yamlMetrics       `yaml:"metrics"`
	Storage              yamlStorage       `yaml:"storage"`
	Pallets              []storage.Profile `yaml:"pallets"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type yamlMetrics struct {
	Enabled *bool `yaml:"enabled"`
}

type yamlStorage struct {
	Backend   string `yaml:"backend"`
	RedisAddr string `yaml:"redis_addr"`
	RedisKey  string `yaml:"redis_key"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile     string
	Port           *string
	RateLimitRPS   *float64
	RateLimitBurst *int
	LogLevel       *string
	Units          *string
	RedisAddr      *string
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	// Environment variables sit just above the defaults.
	if err := applyEnvConfig(&cfg); err != nil {
		return Config{}, err
	}

	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		if err := applyYAMLConfig(&cfg, yamlCfg); err != nil {
			return Config{}, fmt.Errorf("apply YAML config: %w", err)
		}
	}

	// Apply CLI overrides (highest precedence)
	if overrides != nil {
		if err := applyCLIOverrides(&cfg, overrides); err != nil {
			return Config{}, err
		}
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		Port:                 defaultPort,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         15 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		EnableMetrics:        true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
		LogLevel:             defaultLogLevel,
		Units:                units.Imperial,
		StorageBackend:       BackendMemory,
		RedisKey:             storage.DefaultRedisKey,
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) error {
	if yamlCfg.Port != "" {
		cfg.Port = yamlCfg.Port
	}

	durations := []struct {
		raw    string
		target *time.Duration
		name   string
	}{
		{yamlCfg.ShutdownGracePeriod, &cfg.ShutdownGracePeriod, "shutdown_grace_period"},
		{yamlCfg.ReadHeaderTimeout, &cfg.ReadHeaderTimeout, "read_header_timeout"},
		{yamlCfg.WriteTimeout, &cfg.WriteTimeout, "write_timeout"},
		{yamlCfg.IdleTimeout, &cfg.IdleTimeout, "idle_timeout"},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.target = parsed
	}

	if yamlCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *yamlCfg.EnableRequestLogging
	}

	if len(yamlCfg.CORSOrigins) > 0 {
		cfg.CORSOrigins = yamlCfg.CORSOrigins
	}

	if yamlCfg.RateLimit != nil {
		cfg.RateLimitRPS = yamlCfg.RateLimit.RPS
		cfg.RateLimitBurst = yamlCfg.RateLimit.Burst
	}

	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}

	if yamlCfg.Units != "" {
		system, err := units.ParseSystem(yamlCfg.Units, cfg.Units)
		if err != nil {
			return err
		}
		cfg.Units = system
	}

	if yamlCfg.Metrics.Enabled != nil {
		cfg.EnableMetrics = *yamlCfg.Metrics.Enabled
	}

	if yamlCfg.Storage.Backend != "" {
		cfg.StorageBackend = strings.ToLower(yamlCfg.Storage.Backend)
	}
	if yamlCfg.Storage.RedisAddr != "" {
		cfg.RedisAddr = yamlCfg.Storage.RedisAddr
	}
	if yamlCfg.Storage.RedisKey != "" {
		cfg.RedisKey = yamlCfg.Storage.RedisKey
	}

	if len(yamlCfg.Pallets) > 0 {
		cfg.Pallets = yamlCfg.Pallets
	}

	return nil
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) error {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.Port = port
	}

	if origins := strings.TrimSpace(os.Getenv("CORS_ORIGINS")); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}

	if rps := strings.TrimSpace(os.Getenv("RATE_LIMIT_RPS")); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.RateLimitRPS = value
		}
	}

	if burst := strings.TrimSpace(os.Getenv("RATE_LIMIT_BURST")); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.RateLimitBurst = value
		}
	}

	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}

	if raw := strings.TrimSpace(os.Getenv("UNITS")); raw != "" {
		system, err := units.ParseSystem(raw, cfg.Units)
		if err != nil {
			return fmt.Errorf("UNITS: %w", err)
		}
		cfg.Units = system
	}

	if backend := strings.TrimSpace(os.Getenv("STORAGE_BACKEND")); backend != "" {
		cfg.StorageBackend = strings.ToLower(backend)
	}

	if addr := strings.TrimSpace(os.Getenv("REDIS_ADDR")); addr != "" {
		cfg.RedisAddr = addr
	}

	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) error {
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
	}

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}

	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = *overrides.LogLevel
	}

	if overrides.Units != nil && *overrides.Units != "" {
		system, err := units.ParseSystem(*overrides.Units, cfg.Units)
		if err != nil {
			return fmt.Errorf("parse units: %w", err)
		}
		cfg.Units = system
	}

	if overrides.RedisAddr != nil && *overrides.RedisAddr != "" {
		cfg.RedisAddr = *overrides.RedisAddr
		cfg.StorageBackend = BackendRedis
	}

	return nil
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	switch cfg.StorageBackend {
	case BackendMemory:
	case BackendRedis:
		if cfg.RedisAddr == "" {
			return fmt.Errorf("redis storage requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
	for i, p := range cfg.Pallets {
		if strings.TrimSpace(p.Name) == "" || p.Length <= 0 || p.Width <= 0 || p.MaxHeight <= 0 || p.MaxWeight <= 0 {
			return fmt.Errorf("pallets[%d]: %w", i, storage.ErrInvalidProfile)
		}
	}
	return nil
}
