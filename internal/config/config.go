// Package config loads service configuration from a YAML file with .env and
// environment-variable overrides.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the insights service.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Insights InsightsConfig `yaml:"insights"`
	LogLevel string         `yaml:"log_level"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host. Containers listen on all interfaces.
func (c ServerConfig) GetHost() string {
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds the read-only send-record store connection.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig holds the result-cache connection. Caching is optional: with
// Addr empty every card is computed fresh.
type RedisConfig struct {
	Addr            string `yaml:"addr"`
	Password        string `yaml:"password"`
	DB              int    `yaml:"db"`
	CacheTTLMinutes int    `yaml:"cache_ttl_minutes"`
}

// CacheTTL returns the card cache lifetime.
func (c RedisConfig) CacheTTL() time.Duration {
	if c.CacheTTLMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

// InsightsConfig exposes the engine's calibration constants. These are tuned
// operating points; override only deliberately.
type InsightsConfig struct {
	ReliabilityMinPeriods int     `yaml:"reliability_min_periods"`
	ReliabilityWindow     int     `yaml:"reliability_window"`
	ReliabilityDecayK     float64 `yaml:"reliability_decay_k"`
	AnomalyThreshold      float64 `yaml:"anomaly_threshold"`
	BootstrapIterations   int     `yaml:"bootstrap_iterations"`
	TraceEnabled          bool    `yaml:"trace_enabled"`
}

// Load reads the YAML config at path and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides. A
// .env file (if present) is read first so secrets can live there locally and
// in real env vars in deployment.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Insights.ReliabilityMinPeriods == 0 {
		cfg.Insights.ReliabilityMinPeriods = 4
	}
	if cfg.Insights.ReliabilityWindow == 0 {
		cfg.Insights.ReliabilityWindow = 12
	}
	if cfg.Insights.ReliabilityDecayK == 0 {
		cfg.Insights.ReliabilityDecayK = 1.15
	}
	if cfg.Insights.AnomalyThreshold == 0 {
		cfg.Insights.AnomalyThreshold = 2.5
	}
	if cfg.Insights.BootstrapIterations == 0 {
		cfg.Insights.BootstrapIterations = 1000
	}
}
