// Package config holds the coordinator configuration. Values merge in
// the order defaults → config file → environment; CLI flags are applied
// on top by the cmd layer.
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full coordinator configuration.
type Config struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	StateDir string `json:"state_dir" yaml:"state_dir"`

	SchemaFile string `json:"schema_file" yaml:"schema_file"`
	CorpusFile string `json:"corpus_file" yaml:"corpus_file"`

	TargetTotalCases int   `json:"target_total_cases" yaml:"target_total_cases"`
	// GenerationTarget 0 means "derive target_total_cases − seed count"
	// once the seed corpus has been loaded.
	GenerationTarget int   `json:"generation_target" yaml:"generation_target"`
	Seed             int64 `json:"seed" yaml:"seed"`

	MaxAttempts   int `json:"max_attempts" yaml:"max_attempts"`
	SignatureFIFO int `json:"signature_fifo" yaml:"signature_fifo"`

	SimilarityThreshold float64 `json:"similarity_threshold" yaml:"similarity_threshold"`
	SimilarityWindow    int     `json:"similarity_window" yaml:"similarity_window"`

	Codec CodecConfig `json:"codec" yaml:"codec"`

	// Shares overrides replace the whole share table of an axis; omitted
	// buckets become unreachable. Tests force topics this way.
	Shares map[string]map[string]float64 `json:"shares,omitempty" yaml:"shares,omitempty"`

	WatchSchema    bool `json:"watch_schema" yaml:"watch_schema"`
	ArchiveEnabled bool `json:"archive_enabled" yaml:"archive_enabled"`
	MaxConns       int  `json:"max_conns" yaml:"max_conns"`

	Log LogConfig `json:"log" yaml:"log"`
}

// CodecConfig configures the external TOON encoder/decoder.
type CodecConfig struct {
	Command  []string `json:"command" yaml:"command"`
	Timeout  string   `json:"timeout" yaml:"timeout"`
	CacheTTL string   `json:"cache_ttl" yaml:"cache_ttl"`
	Retries  int      `json:"retries" yaml:"retries"`
}

// LogConfig configures the category file logger.
type LogConfig struct {
	// Dir defaults to the state directory when empty.
	Dir   string `json:"dir,omitempty" yaml:"dir,omitempty"`
	Level string `json:"level,omitempty" yaml:"level,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Host:                "127.0.0.1",
		Port:                8765,
		StateDir:            filepath.Join("data", "caseforge"),
		SchemaFile:          "schema_cible.json",
		TargetTotalCases:    5000,
		GenerationTarget:    0,
		Seed:                42,
		MaxAttempts:         50,
		SignatureFIFO:       32,
		SimilarityThreshold: 0.9,
		SimilarityWindow:    50,
		Codec: CodecConfig{
			Command:  []string{"npx", "-y", "@toon-format/cli"},
			Timeout:  "5s",
			CacheTTL: "10m",
			Retries:  2,
		},
		WatchSchema:    false,
		ArchiveEnabled: true,
		MaxConns:       64,
		Log:            LogConfig{Level: "info"},
	}
}

// Load builds the configuration from defaults, the optional file, and the
// environment. An empty path skips the file step; a named file that does
// not exist is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("lecture de la configuration: %w", err)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("configuration YAML invalide (%s): %w", path, err)
			}
		default:
			if err := json.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("configuration JSON invalide (%s): %w", path, err)
			}
		}
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides applies CASEFORGE_* environment variables.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CASEFORGE_HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("CASEFORGE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v := os.Getenv("CASEFORGE_STATE_DIR"); v != "" {
		c.StateDir = v
	}
	if v := os.Getenv("CASEFORGE_SCHEMA_FILE"); v != "" {
		c.SchemaFile = v
	}
	if v := os.Getenv("CASEFORGE_CORPUS_FILE"); v != "" {
		c.CorpusFile = v
	}
	if v := os.Getenv("CASEFORGE_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Seed = seed
		}
	}
	if v := os.Getenv("CASEFORGE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate checks the configuration for startup-fatal mistakes.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port hors plage: %d", c.Port)
	}
	if c.StateDir == "" {
		return fmt.Errorf("state_dir requis")
	}
	if c.SchemaFile == "" {
		return fmt.Errorf("schema_file requis")
	}
	if c.TargetTotalCases <= 0 {
		return fmt.Errorf("target_total_cases doit être positif: %d", c.TargetTotalCases)
	}
	if c.GenerationTarget < 0 {
		return fmt.Errorf("generation_target négatif: %d", c.GenerationTarget)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts doit être positif: %d", c.MaxAttempts)
	}
	if c.SignatureFIFO < 0 {
		return fmt.Errorf("signature_fifo négatif: %d", c.SignatureFIFO)
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold hors (0,1]: %v", c.SimilarityThreshold)
	}
	if c.SimilarityWindow < 0 {
		return fmt.Errorf("similarity_window négatif: %d", c.SimilarityWindow)
	}
	if len(c.Codec.Command) == 0 || strings.TrimSpace(c.Codec.Command[0]) == "" {
		return fmt.Errorf("codec.command requis")
	}
	if _, err := c.CodecTimeout(); err != nil {
		return fmt.Errorf("codec.timeout invalide: %w", err)
	}
	if _, err := c.CodecCacheTTL(); err != nil {
		return fmt.Errorf("codec.cache_ttl invalide: %w", err)
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("max_conns doit être positif: %d", c.MaxConns)
	}
	for axis, shares := range c.Shares {
		sum := 0.0
		for bucket, share := range shares {
			if share < 0 {
				return fmt.Errorf("shares.%s.%s négatif: %v", axis, bucket, share)
			}
			sum += share
		}
		if math.Abs(sum-1.0) > 0.001 {
			return fmt.Errorf("shares.%s: la somme vaut %v, attendu 1.0", axis, sum)
		}
	}
	return nil
}

// CodecTimeout parses the codec timeout, defaulting to 5s when empty.
func (c *Config) CodecTimeout() (time.Duration, error) {
	if strings.TrimSpace(c.Codec.Timeout) == "" {
		return 5 * time.Second, nil
	}
	return time.ParseDuration(c.Codec.Timeout)
}

// CodecCacheTTL parses the encode cache TTL, defaulting to 10m when empty.
func (c *Config) CodecCacheTTL() (time.Duration, error) {
	if strings.TrimSpace(c.Codec.CacheTTL) == "" {
		return 10 * time.Minute, nil
	}
	return time.ParseDuration(c.Codec.CacheTTL)
}

// LogDir resolves the logging directory, falling back to the state dir.
func (c *Config) LogDir() string {
	if c.Log.Dir != "" {
		return c.Log.Dir
	}
	return c.StateDir
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Save writes the configuration as indented JSON.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("création du répertoire de configuration: %w", err)
	}
	raw, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("sérialisation de la configuration: %w", err)
	}
	if err := os.WriteFile(path, append(raw, '\n'), 0o644); err != nil {
		return fmt.Errorf("écriture de la configuration: %w", err)
	}
	return nil
}
