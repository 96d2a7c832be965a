// Package config holds YAML-backed configuration for tools and embedders of
// the log.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/INLOpen/synclog/core"
	"gopkg.in/yaml.v3"
)

// StoreConfig holds per-log-file configurations.
type StoreConfig struct {
	Path            string `yaml:"path"`
	ReadOnly        bool   `yaml:"read_only"`
	DisableFileLock bool   `yaml:"disable_file_lock"`
	// Compression applies to the document store layer, not the log itself:
	// "none", "snappy", "lz4" or "zstd".
	Compression string `yaml:"compression"`
}

// LoggingConfig holds logging-specific configurations.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // e.g., "debug", "info", "warn", "error"
	Output string `yaml:"output"` // e.g., "stdout", "file", "none"
	File   string `yaml:"file"`   // Path to the log file, used if output is "file"
}

// DumpConfig holds defaults for the synclog-dump tool.
type DumpConfig struct {
	Verify      bool `yaml:"verify"`
	ShowRecords int  `yaml:"show_records"`
}

// Config is the top-level configuration struct.
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
	Dump    DumpConfig    `yaml:"dump"`
}

// Load reads configuration from an io.Reader. A nil reader or empty input
// yields the defaults.
func Load(r io.Reader) (*Config, error) {
	cfg := &Config{
		Store: StoreConfig{
			Compression: "none",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stdout",
			File:   "synclog.log",
		},
		Dump: DumpConfig{
			Verify:      true,
			ShowRecords: 10,
		},
	}

	if r == nil {
		return cfg, nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config data: %w", err)
	}
	if len(data) == 0 {
		return cfg, nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig reads configuration from a YAML file by path. A missing file
// yields the defaults.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Load(nil)
		}
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	return Load(file)
}

// Validate checks enum-like fields for values the code can act on.
func (c *Config) Validate() error {
	if _, err := core.ParseCompressionType(c.Store.Compression); err != nil {
		return fmt.Errorf("invalid store.compression: %w", err)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Output) {
	case "stdout", "stderr", "file", "none":
	default:
		return fmt.Errorf("invalid logging.output: %s", c.Logging.Output)
	}
	if c.Dump.ShowRecords < 0 {
		return fmt.Errorf("dump.show_records must not be negative")
	}
	return nil
}

// CreateLogger creates a slog.Logger based on the provided configuration.
// The returned closer is non-nil when the logger writes to a file.
func CreateLogger(cfg LoggingConfig) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, nil, fmt.Errorf("invalid log level: %s", cfg.Level)
	}

	var output io.Writer
	var closer io.Closer
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	case "file":
		if cfg.File == "" {
			return nil, nil, fmt.Errorf("log output is 'file' but no file path is specified")
		}
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", cfg.File, err)
		}
		output = file
		closer = file
	case "none":
		output = io.Discard
	default:
		return nil, nil, fmt.Errorf("invalid log output: %s", cfg.Output)
	}

	logger := slog.New(slog.NewJSONHandler(output, &slog.HandlerOptions{Level: level}))
	return logger, closer, nil
}
