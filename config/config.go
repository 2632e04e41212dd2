package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/archelon/pricesim/market"
	"github.com/archelon/pricesim/sim"
)

// Config represents the complete service configuration.
type Config struct {
	Server     ServerConfig     `json:"server" yaml:"server"`
	Data       DataConfig       `json:"data" yaml:"data"`
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`
	Recorder   RecorderConfig   `json:"recorder" yaml:"recorder"`
	Log        LogConfig        `json:"log" yaml:"log"`
}

// ServerConfig contains HTTP listener parameters.
type ServerConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// Addr renders the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DataConfig selects and configures the candle store.
type DataConfig struct {
	Backend string `json:"backend" yaml:"backend"` // "csv" or "sqlite"
	Dir     string `json:"dir,omitempty" yaml:"dir,omitempty"`
	DBPath  string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// SimulationConfig contains path generation parameters.
type SimulationConfig struct {
	Density       int    `json:"density" yaml:"density"`
	ExhaustPolicy string `json:"exhaust_policy" yaml:"exhaust_policy"` // "wrap" or "strict"
}

// RecorderConfig controls scheduled candle capture from the exchange.
type RecorderConfig struct {
	Enabled    bool     `json:"enabled" yaml:"enabled"`
	Schedule   string   `json:"schedule,omitempty" yaml:"schedule,omitempty"` // cron spec
	Symbols    []string `json:"symbols,omitempty" yaml:"symbols,omitempty"`
	Intervals  []string `json:"intervals,omitempty" yaml:"intervals,omitempty"`
	Limit      int      `json:"limit,omitempty" yaml:"limit,omitempty"`
	BinanceURL string   `json:"binance_url,omitempty" yaml:"binance_url,omitempty"`
}

// LogConfig contains logging parameters.
type LogConfig struct {
	Level string `json:"level" yaml:"level"` // debug|info|warn|error
}

// LoadFromFile loads configuration from a file (YAML or JSON).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in (0, 65535], got %d", c.Server.Port)
	}
	switch c.Data.Backend {
	case "csv":
		if c.Data.Dir == "" {
			return fmt.Errorf("data.dir required for csv backend")
		}
	case "sqlite":
		if c.Data.DBPath == "" {
			return fmt.Errorf("data.db_path required for sqlite backend")
		}
	default:
		return fmt.Errorf("data.backend must be 'csv' or 'sqlite'")
	}
	if c.Simulation.Density < 2 {
		return fmt.Errorf("simulation.density must be at least 2")
	}
	if _, err := sim.ParseExhaustPolicy(c.Simulation.ExhaustPolicy); err != nil {
		return fmt.Errorf("simulation.exhaust_policy: %w", err)
	}
	if c.Recorder.Enabled {
		if c.Recorder.Schedule == "" {
			return fmt.Errorf("recorder.schedule required when recorder is enabled")
		}
		if len(c.Recorder.Symbols) == 0 {
			return fmt.Errorf("recorder.symbols required when recorder is enabled")
		}
		for _, iv := range c.Recorder.Intervals {
			if !market.Interval(iv).Valid() {
				return fmt.Errorf("recorder.intervals: unknown interval %q", iv)
			}
		}
	}
	return nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Data: DataConfig{
			Backend: "csv",
			Dir:     "./data",
		},
		Simulation: SimulationConfig{
			Density:       sim.DefaultDensity,
			ExhaustPolicy: string(sim.ExhaustWrap),
		},
		Recorder: RecorderConfig{
			Enabled:   false,
			Schedule:  "0 */15 * * * *",
			Intervals: []string{string(market.H1)},
			Limit:     500,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
