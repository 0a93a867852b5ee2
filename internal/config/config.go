package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds all configuration for the mediafetch application
type Config struct {
	// Server configuration
	Host string
	Port int
	Addr string // computed from Host:Port

	// File system
	OutputDir    string // user-provided
	AbsOutputDir string // resolved/absolute path

	// Streaming behavior
	PollInterval time.Duration // delay between progress stream polls

	// Rate limiting
	RequestsPerMinute int // per-IP API request budget

	// Logging
	LogLevel string // debug|info|warn|error

	// Validation & computed
	Version   string    // app version
	StartTime time.Time // when the app started
}

// New creates a Config with default values
func New() *Config {
	return &Config{
		Host:              "0.0.0.0",
		Port:              8080,
		PollInterval:      500 * time.Millisecond,
		RequestsPerMinute: 60,
		LogLevel:          "info",
		StartTime:         time.Now(),
		Version:           "1.0.0",
	}
}

// Validate checks that all required configuration is present and valid
func (c *Config) Validate() error {
	// Validate port range
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Port)
	}

	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}

	if c.RequestsPerMinute < 1 {
		c.RequestsPerMinute = 60
	}

	// Validate log level
	validLevels := []string{"debug", "info", "warn", "error"}
	c.LogLevel = strings.ToLower(c.LogLevel)
	valid := false
	for _, level := range validLevels {
		if c.LogLevel == level {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid log level: %s (must be debug|info|warn|error)", c.LogLevel)
	}

	// Compute address
	c.Addr = c.ComputeAddr()

	return nil
}

// ResolveOutputDir expands the output directory path and resolves it to an
// absolute path. If empty, defaults to ./downloads next to the working dir.
func (c *Config) ResolveOutputDir() error {
	if c.OutputDir == "" {
		c.OutputDir = "downloads"
	}

	// Expand ~ if present
	if strings.HasPrefix(c.OutputDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("expand home directory: %w", err)
		}
		c.OutputDir = filepath.Join(home, c.OutputDir[2:])
	} else if c.OutputDir == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("expand home directory: %w", err)
		}
		c.OutputDir = home
	}

	abs, err := filepath.Abs(c.OutputDir)
	if err != nil {
		return fmt.Errorf("resolve absolute path for %s: %w", c.OutputDir, err)
	}
	c.AbsOutputDir = abs

	return nil
}

// ComputeAddr returns the full server address as host:port
func (c *Config) ComputeAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// String returns a pretty-printed representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf(`Config{
  Server:
    Host: %s
    Port: %d
    Addr: %s
  Files:
    OutputDir: %s (resolved: %s)
  Streaming:
    PollInterval: %s
  RateLimit:
    RequestsPerMinute: %d
  Logging:
    LogLevel: %s
  Meta:
    Version: %s
    StartTime: %s
}`, c.Host, c.Port, c.Addr,
		c.OutputDir, c.AbsOutputDir,
		c.PollInterval,
		c.RequestsPerMinute,
		c.LogLevel,
		c.Version, c.StartTime.Format(time.RFC3339))
}

// Summary returns a one-line summary of key configuration
func (c *Config) Summary() map[string]any {
	return map[string]any{
		"addr":          c.Addr,
		"output_dir":    c.AbsOutputDir,
		"poll_interval": c.PollInterval.String(),
		"rate_per_min":  c.RequestsPerMinute,
		"log_level":     c.LogLevel,
		"version":       c.Version,
	}
}
