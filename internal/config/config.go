// Package config resolves scan settings from built-in defaults, an ini file
// and DUPDUP_* environment variables, in that order of precedence. Command
// line flags are applied on top by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-ini/ini"
	"github.com/kelseyhightower/envconfig"

	"dupdup/internal/scanerr"
)

// EnvPrefix is the prefix of environment overrides, e.g. DUPDUP_SCAN_WORKERS.
const EnvPrefix = "dupdup"

// ScanConfig holds hashing and progress settings.
type ScanConfig struct {
	PartialSize   string  `ini:"partial_size" split_words:"true"`   // prefilter window
	PartialBuffer string  `ini:"partial_buffer" split_words:"true"` // scratch buffer for the prefilter pass
	FullBuffer    string  `ini:"full_buffer" split_words:"true"`    // scratch buffer for the confirmation pass
	Workers       int     `ini:"workers"`
	Interval      float64 `ini:"interval"` // seconds between progress lines
}

// ReportConfig holds report output settings.
type ReportConfig struct {
	Output string `ini:"output"`
	Format string `ini:"format"`
}

// LogConfig holds diagnostic logging settings.
type LogConfig struct {
	Level string `ini:"level"`
}

type Config struct {
	Scan   ScanConfig   `ini:"scan"`
	Report ReportConfig `ini:"report"`
	Log    LogConfig    `ini:"log"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			PartialSize:   "4KiB",
			PartialBuffer: "4KiB",
			FullBuffer:    "16KiB",
			Workers:       1,
			Interval:      1.0,
		},
		Report: ReportConfig{
			Output: "results.json",
			Format: "json",
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/dupdup/config.ini or its platform
// equivalent, or "" when no config directory is known.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "dupdup", "config.ini")
}

// Load resolves the configuration. A missing file at path is only an error
// when required is set (the user named the file explicitly).
func Load(path string, required bool) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			if !errors.Is(err, fs.ErrNotExist) || required {
				return nil, scanerr.New(scanerr.CodeConfigInvalid, path, err)
			}
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, scanerr.New(scanerr.CodeConfigInvalid, "", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, scanerr.New(scanerr.CodeConfigInvalid, path, err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	file, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config file: %w", err)
	}
	if err := file.MapTo(c); err != nil {
		return fmt.Errorf("failed to map config file: %w", err)
	}
	return nil
}

// Validate checks every setting.
func (c *Config) Validate() error {
	for name, value := range map[string]string{
		"scan.partial_size":   c.Scan.PartialSize,
		"scan.partial_buffer": c.Scan.PartialBuffer,
		"scan.full_buffer":    c.Scan.FullBuffer,
	} {
		n, err := humanize.ParseBytes(value)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if n == 0 && name != "scan.partial_size" {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if err := ValidateWorkers(c.Scan.Workers); err != nil {
		return err
	}
	if c.Scan.Interval < 0 {
		return fmt.Errorf("scan.interval must not be negative, got: %v", c.Scan.Interval)
	}
	if err := ValidateFormat(c.Report.Format); err != nil {
		return err
	}
	if strings.TrimSpace(c.Report.Output) == "" {
		return fmt.Errorf("report.output must not be empty")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// PartialSizeBytes returns the prefilter window in bytes.
func (c *Config) PartialSizeBytes() int64 {
	return mustBytes(c.Scan.PartialSize)
}

func (c *Config) PartialBufferBytes() int {
	return int(mustBytes(c.Scan.PartialBuffer))
}

func (c *Config) FullBufferBytes() int {
	return int(mustBytes(c.Scan.FullBuffer))
}

// IntervalDuration converts the interval in seconds.
func (c *Config) IntervalDuration() time.Duration {
	return time.Duration(c.Scan.Interval * float64(time.Second))
}

func (c *Config) LogLevel() slog.Level {
	level, _ := ParseLevel(c.Log.Level)
	return level
}

// Encode renders the effective configuration as an ini file.
func (c *Config) Encode() ([]byte, error) {
	file := ini.Empty()
	if err := ini.ReflectFrom(file, c); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := file.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the configuration to path, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := c.Encode()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ValidateWorkers checks that the hash worker count is reasonable.
func ValidateWorkers(workers int) error {
	if workers < 1 {
		return fmt.Errorf("scan.workers must be at least 1, got: %d", workers)
	}
	if workers > 64 {
		return fmt.Errorf("scan.workers should not exceed 64, got: %d", workers)
	}
	return nil
}

// ValidateFormat checks that the report format is supported.
func ValidateFormat(format string) error {
	switch strings.ToLower(format) {
	case "json", "yaml", "yml":
		return nil
	default:
		return fmt.Errorf("unsupported report format: %s (supported: json, yaml)", format)
	}
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "", "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelWarn, fmt.Errorf("unsupported log level: %s (supported: debug, info, warn, error)", name)
	}
}

func mustBytes(s string) int64 {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0
	}
	return int64(n)
}
