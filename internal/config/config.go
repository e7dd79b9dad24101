// Package config holds campaign configuration loaded from an optional
// yaml file, overlaid with FUZZMON_* environment variables and CLI
// flags (flags win).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// OutputFormat selects what the headless reporter emits on completion.
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatNone OutputFormat = "none"
)

// ParseOutputFormat validates a format string.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case FormatText, FormatJSON, FormatNone:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or none)", s)
	}
}

// Config is the campaign configuration.
type Config struct {
	// Workers is the total worker count, including the symbolic worker
	// when it exceeds FuzzWorkers.
	Workers int `yaml:"workers"`
	// FuzzWorkers is the number of ordinary fuzzing workers the corpus
	// is partitioned across.
	FuzzWorkers int `yaml:"fuzz_workers"`
	// TestLimit is the global test budget, divided evenly (ceiling)
	// across fuzz workers.
	TestLimit int `yaml:"test_limit"`
	// TimeoutSeconds is the per-worker wall-clock limit; 0 disables it.
	TimeoutSeconds int `yaml:"timeout_seconds"`
	// CorpusDir holds the initial corpus entries.
	CorpusDir string `yaml:"corpus_dir"`
	// Contract optionally narrows the campaign to one target contract.
	Contract string `yaml:"contract"`
	// Format is the headless completion report format.
	Format OutputFormat `yaml:"format"`
	// Port enables the live event stream server when non-zero.
	Port int `yaml:"port"`
	// Seed makes campaigns reproducible; 0 means derive from the clock.
	Seed int64 `yaml:"seed"`

	// StatusIntervalSeconds is the headless status-line tick.
	StatusIntervalSeconds int `yaml:"status_interval_seconds"`
	// SampleIntervalMillis is the UI snapshot sampling tick.
	SampleIntervalMillis int `yaml:"sample_interval_millis"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Workers:               2,
		FuzzWorkers:           2,
		TestLimit:             50000,
		Format:                FormatText,
		StatusIntervalSeconds: 3,
		SampleIntervalMillis:  200,
	}
}

// Load reads the config file at path (if it exists), applies it over
// the defaults, then applies environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(content, &fileCfg); err != nil {
				return nil, fmt.Errorf("invalid config %s: %w", path, err)
			}
			applyFile(cfg, &fileCfg)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config as yaml, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	content, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, content, 0644)
}

// Validate rejects incoherent settings.
func (c *Config) Validate() error {
	if c.FuzzWorkers < 1 {
		return fmt.Errorf("fuzz_workers must be at least 1, got %d", c.FuzzWorkers)
	}
	if c.Workers < c.FuzzWorkers {
		return fmt.Errorf("workers (%d) must be at least fuzz_workers (%d)", c.Workers, c.FuzzWorkers)
	}
	if c.TestLimit < 0 {
		return fmt.Errorf("test_limit must not be negative, got %d", c.TestLimit)
	}
	if _, err := ParseOutputFormat(string(c.Format)); err != nil {
		return err
	}
	return nil
}

// Timeout returns the per-worker deadline duration, 0 when disabled.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// StatusInterval returns the headless status-line tick.
func (c *Config) StatusInterval() time.Duration {
	if c.StatusIntervalSeconds <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.StatusIntervalSeconds) * time.Second
}

// SampleInterval returns the UI snapshot sampling tick.
func (c *Config) SampleInterval() time.Duration {
	if c.SampleIntervalMillis <= 0 {
		return 200 * time.Millisecond
	}
	return time.Duration(c.SampleIntervalMillis) * time.Millisecond
}

func applyFile(cfg, fileCfg *Config) {
	if fileCfg.Workers != 0 {
		cfg.Workers = fileCfg.Workers
	}
	if fileCfg.FuzzWorkers != 0 {
		cfg.FuzzWorkers = fileCfg.FuzzWorkers
	}
	if fileCfg.TestLimit != 0 {
		cfg.TestLimit = fileCfg.TestLimit
	}
	if fileCfg.TimeoutSeconds != 0 {
		cfg.TimeoutSeconds = fileCfg.TimeoutSeconds
	}
	if fileCfg.CorpusDir != "" {
		cfg.CorpusDir = fileCfg.CorpusDir
	}
	if fileCfg.Contract != "" {
		cfg.Contract = fileCfg.Contract
	}
	if fileCfg.Format != "" {
		cfg.Format = fileCfg.Format
	}
	if fileCfg.Port != 0 {
		cfg.Port = fileCfg.Port
	}
	if fileCfg.Seed != 0 {
		cfg.Seed = fileCfg.Seed
	}
	if fileCfg.StatusIntervalSeconds != 0 {
		cfg.StatusIntervalSeconds = fileCfg.StatusIntervalSeconds
	}
	if fileCfg.SampleIntervalMillis != 0 {
		cfg.SampleIntervalMillis = fileCfg.SampleIntervalMillis
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("FUZZMON_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("FUZZMON_FUZZ_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FuzzWorkers = n
		}
	}
	if v := os.Getenv("FUZZMON_TEST_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TestLimit = n
		}
	}
	if v := os.Getenv("FUZZMON_CORPUS_DIR"); v != "" {
		cfg.CorpusDir = v
	}
	if v := os.Getenv("FUZZMON_FORMAT"); v != "" {
		cfg.Format = OutputFormat(v)
	}
	if v := os.Getenv("FUZZMON_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}
	if v := os.Getenv("FUZZMON_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Seed = n
		}
	}
}
