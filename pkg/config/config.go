// Package config loads the service configuration from a YAML file,
// with environment variables filling in secrets and a .env file loaded
// first when present.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// maxConfigSize bounds config files so a mistaken path cannot pull
// gigabytes into memory.
const maxConfigSize = 1 << 20

// Config represents the application configuration
type Config struct {
	// Server Configuration
	Server ServerConfig `yaml:"server"`

	// Security Configuration
	Security SecurityConfig `yaml:"security"`

	// Session Configuration
	Session SessionConfig `yaml:"session"`

	// Predictor Configuration
	Predictor PredictorConfig `yaml:"predictor"`

	// Logging level: debug, info, warn, error
	LogLevel string `yaml:"log_level"`

	// Metrics exposure on /metrics. Defaults to true.
	EnableMetrics *bool `yaml:"enable_metrics"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`

	// Global request budget across all clients, requests per second
	// with a burst allowance. Zero disables the global limiter.
	GlobalRate  float64 `yaml:"global_rate"`
	GlobalBurst int     `yaml:"global_burst"`
}

// SecurityConfig holds the security gate settings
type SecurityConfig struct {
	ViolationThreshold int      `yaml:"violation_threshold"`
	BanDuration        Duration `yaml:"ban_duration"` // 0 means permanent
}

// SessionConfig holds session store settings
type SessionConfig struct {
	IdleTimeout   Duration `yaml:"idle_timeout"`
	SweepInterval Duration `yaml:"sweep_interval"`
}

// PredictorConfig holds dataset and model fallback settings
type PredictorConfig struct {
	DatasetPath string `yaml:"dataset_path"`
	OpenAIKey   string `yaml:"openai_key"`
	Model       string `yaml:"model"`
	TopN        int    `yaml:"top_n"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes", info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

// LoadDotenv loads a .env file into the process environment. A missing
// file is not an error.
func LoadDotenv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(15 * time.Second)
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = Duration(30 * time.Second)
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if c.Security.ViolationThreshold == 0 {
		c.Security.ViolationThreshold = 10
	}
	if c.Session.IdleTimeout == 0 {
		c.Session.IdleTimeout = Duration(30 * time.Minute)
	}
	if c.Session.SweepInterval == 0 {
		c.Session.SweepInterval = Duration(5 * time.Minute)
	}
	if c.Predictor.TopN == 0 {
		c.Predictor.TopN = 3
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.EnableMetrics == nil {
		enabled := true
		c.EnableMetrics = &enabled
	}
}

// MetricsEnabled reports whether /metrics should be served.
func (c *Config) MetricsEnabled() bool {
	return c.EnableMetrics == nil || *c.EnableMetrics
}

// Load API keys from environment if not in config
func (c *Config) applyEnv() {
	if c.Predictor.OpenAIKey == "" {
		c.Predictor.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Predictor.DatasetPath == "" {
		c.Predictor.DatasetPath = os.Getenv("SYMPTOM_DATASET_PATH")
	}
	if addr := os.Getenv("SYMPTOMD_ADDR"); addr != "" && c.Server.Addr == ":8080" {
		c.Server.Addr = addr
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Session.IdleTimeout <= 0 {
		return fmt.Errorf("session idle_timeout must be positive")
	}
	if c.Session.SweepInterval <= 0 {
		return fmt.Errorf("session sweep_interval must be positive")
	}
	if c.Security.ViolationThreshold < 0 {
		return fmt.Errorf("security violation_threshold must not be negative")
	}
	if c.Security.BanDuration < 0 {
		return fmt.Errorf("security ban_duration must not be negative")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}
