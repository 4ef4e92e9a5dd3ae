package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	MinInterval     = 100 * time.Millisecond
	MaxInterval     = 10 * time.Second
	DefaultInterval = time.Second

	MinHistory     = 10
	MaxHistory     = 300
	DefaultHistory = 60
)

// Config carries runtime options for sysmoni.
type Config struct {
	Interval      time.Duration `yaml:"interval"`
	HistoryLength int           `yaml:"history"`
	EnableDocker  bool          `yaml:"docker"`
	EnableGPU     bool          `yaml:"gpu"`
	EnableNetwork bool          `yaml:"network"`
	SafeMode      bool          `yaml:"safe"`
	ShowSystem    bool          `yaml:"show_system"`
	Sort          string        `yaml:"sort"`
	Ascending     bool          `yaml:"ascending"`
	Filter        string        `yaml:"filter"`
	JSON          bool          `yaml:"-"`
	JSONStream    bool          `yaml:"-"`
	Listen        string        `yaml:"listen"`
	LogLevel      string        `yaml:"log_level"`
	LogFormat     string        `yaml:"log_format"`
}

func Default() Config {
	return Config{
		Interval:      DefaultInterval,
		HistoryLength: DefaultHistory,
		EnableDocker:  true,
		EnableGPU:     true,
		EnableNetwork: true,
		Sort:          "cpu",
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

// Load reads a YAML file over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv loads .env (if present) and applies SYSMONI_* overrides.
func (c *Config) ApplyEnv() {
	_ = godotenv.Load()

	if v := os.Getenv("SYSMONI_INTERVAL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			c.Interval = parsed
		} else if ms, err2 := strconv.Atoi(v); err2 == nil {
			c.Interval = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("SYSMONI_HISTORY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.HistoryLength = n
		}
	}
	envBool("SYSMONI_DOCKER", &c.EnableDocker)
	envBool("SYSMONI_GPU", &c.EnableGPU)
	envBool("SYSMONI_NETWORK", &c.EnableNetwork)
	envBool("SYSMONI_SAFE", &c.SafeMode)
	if v := os.Getenv("SYSMONI_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("SYSMONI_LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("SYSMONI_LISTEN"); v != "" {
		c.Listen = v
	}
}

func envBool(key string, dst *bool) {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "0", "false", "no", "off":
		*dst = false
	case "1", "true", "yes", "on":
		*dst = true
	}
}

// Normalize clamps the interval and history into their supported ranges and
// applies safe mode.
func (c *Config) Normalize() {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Interval < MinInterval {
		c.Interval = MinInterval
	}
	if c.Interval > MaxInterval {
		c.Interval = MaxInterval
	}
	if c.HistoryLength <= 0 {
		c.HistoryLength = DefaultHistory
	}
	if c.HistoryLength < MinHistory {
		c.HistoryLength = MinHistory
	}
	if c.HistoryLength > MaxHistory {
		c.HistoryLength = MaxHistory
	}
	if c.SafeMode {
		c.EnableDocker = false
		c.EnableGPU = false
		c.EnableNetwork = false
	}
	if c.Sort == "" {
		c.Sort = "cpu"
	}
}

// OperationTimeout bounds slow subsystems (the container runtime) within one cycle.
func (c Config) OperationTimeout() time.Duration {
	return c.Interval / 2
}
