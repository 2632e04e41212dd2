package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Default().Validate())
}

func TestLoadFromYAML(t *testing.T) {
	t.Parallel()

	yaml := `
server:
  host: 127.0.0.1
  port: 9000
data:
  backend: sqlite
  db_path: ./candles.sqlite
simulation:
  density: 90
  exhaust_policy: strict
recorder:
  enabled: true
  schedule: "0 */5 * * * *"
  symbols: [AVAXUSDT, BTCUSDT]
  intervals: [1h]
log:
  level: debug
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr())
	assert.Equal(t, "sqlite", cfg.Data.Backend)
	assert.Equal(t, 90, cfg.Simulation.Density)
	assert.Equal(t, "strict", cfg.Simulation.ExhaustPolicy)
	assert.Equal(t, []string{"AVAXUSDT", "BTCUSDT"}, cfg.Recorder.Symbols)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadFromJSON(t *testing.T) {
	t.Parallel()

	js := `{
	  "server": {"host": "0.0.0.0", "port": 8081},
	  "data": {"backend": "csv", "dir": "./data"},
	  "simulation": {"density": 60, "exhaust_policy": "wrap"},
	  "log": {"level": "info"}
	}`
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(js), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "csv", cfg.Data.Backend)
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"unknown backend", func(c *Config) { c.Data.Backend = "redis" }},
		{"csv without dir", func(c *Config) { c.Data.Backend = "csv"; c.Data.Dir = "" }},
		{"sqlite without path", func(c *Config) { c.Data.Backend = "sqlite"; c.Data.DBPath = "" }},
		{"density too small", func(c *Config) { c.Simulation.Density = 1 }},
		{"bad policy", func(c *Config) { c.Simulation.ExhaustPolicy = "loop" }},
		{"recorder without symbols", func(c *Config) { c.Recorder.Enabled = true; c.Recorder.Symbols = nil }},
		{"recorder bad interval", func(c *Config) {
			c.Recorder.Enabled = true
			c.Recorder.Symbols = []string{"AVAXUSDT"}
			c.Recorder.Intervals = []string{"2q"}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml: [nor json"), 0o644))

	_, err := LoadFromFile(path)
	assert.Error(t, err)
}
