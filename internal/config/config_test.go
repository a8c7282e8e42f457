package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	timeout, err := cfg.CodecTimeout()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, timeout)

	ttl, err := cfg.CodecCacheTTL()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, ttl)

	assert.Equal(t, "127.0.0.1:8765", cfg.Addr())
}

func TestLoadJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"port": 9100,
		"target_total_cases": 10,
		"shares": {"primary_topic": {"assurance_vie": 1.0}},
		"codec": {"command": ["toon-cli"], "timeout": "2s"}
	}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, 10, cfg.TargetTotalCases)
	assert.Equal(t, []string{"toon-cli"}, cfg.Codec.Command)
	assert.Equal(t, 1.0, cfg.Shares["primary_topic"]["assurance_vie"])
	// Untouched fields keep their defaults.
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 50, cfg.MaxAttempts)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"host: 0.0.0.0\nport: 8080\nwatch_schema: true\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.True(t, cfg.WatchSchema)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CASEFORGE_HOST", "10.0.0.5")
	t.Setenv("CASEFORGE_PORT", "9999")
	t.Setenv("CASEFORGE_SEED", "7")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", cfg.Host)
	assert.Equal(t, 9999, cfg.Port)
	assert.Equal(t, int64(7), cfg.Seed)
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Port = 0 }},
		{"empty state dir", func(c *Config) { c.StateDir = "" }},
		{"zero target", func(c *Config) { c.TargetTotalCases = 0 }},
		{"zero attempts", func(c *Config) { c.MaxAttempts = 0 }},
		{"threshold above one", func(c *Config) { c.SimilarityThreshold = 1.5 }},
		{"empty codec command", func(c *Config) { c.Codec.Command = nil }},
		{"bad codec timeout", func(c *Config) { c.Codec.Timeout = "bientôt" }},
		{"shares not summing", func(c *Config) {
			c.Shares = map[string]map[string]float64{"noise": {"propre": 0.5}}
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

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := Default()
	cfg.Port = 8123
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8123, loaded.Port)
}
