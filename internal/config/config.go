// Package config loads project settings from .quarry.yml at the scan root.
// A missing file yields defaults; a malformed file is an error.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the per-project configuration file, looked up at the scan root.
const FileName = ".quarry.yml"

// Defaults.
const (
	DefaultOutputDir   = ".quarry"
	DefaultMaxFileSize = 1 << 20 // 1 MiB
	DefaultDebounceMS  = 400
	DefaultLogLevel    = "info"
)

// Config is the full project configuration.
type Config struct {
	// OutputDir is where artifacts are written, relative to the scan root
	// unless absolute.
	OutputDir string `yaml:"output_dir"`

	// Workers caps extraction concurrency. Zero means one per CPU.
	Workers int `yaml:"workers"`

	// MaxFileSize skips source files larger than this many bytes.
	MaxFileSize int64 `yaml:"max_file_size"`

	// IgnoreDirs and IgnoreFiles extend the built-in ignore sets.
	IgnoreDirs  []string `yaml:"ignore_dirs"`
	IgnoreFiles []string `yaml:"ignore_files"`

	// DebounceMS is the watch-mode quiet period before a rescan.
	DebounceMS int `yaml:"debounce_ms"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		OutputDir:   DefaultOutputDir,
		MaxFileSize: DefaultMaxFileSize,
		DebounceMS:  DefaultDebounceMS,
		LogLevel:    DefaultLogLevel,
	}
}

// Load reads .quarry.yml from root, layering it over defaults. A missing
// file is not an error.
func Load(root string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filepath.Join(root, FileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read %s: %w", FileName, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", FileName, err)
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if c.MaxFileSize < 0 {
		return fmt.Errorf("max_file_size must be >= 0, got %d", c.MaxFileSize)
	}
	if c.DebounceMS <= 0 {
		c.DebounceMS = DefaultDebounceMS
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
		if c.LogLevel == "" {
			c.LogLevel = DefaultLogLevel
		}
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

// ArtifactDir resolves the output directory against the scan root.
func (c *Config) ArtifactDir(root string) string {
	if filepath.IsAbs(c.OutputDir) {
		return c.OutputDir
	}
	return filepath.Join(root, c.OutputDir)
}
