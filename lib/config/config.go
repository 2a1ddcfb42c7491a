// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// DatabaseFile is the store file name inside Paths.State.
const DatabaseFile = "logs.sqlite"

// Config is the logship configuration.
type Config struct {
	Environment Environment `yaml:"environment"`

	Paths  PathsConfig  `yaml:"paths"`
	Loggly LogglyConfig `yaml:"loggly"`
	Queue  QueueConfig  `yaml:"queue"`
	Log    LogConfig    `yaml:"log"`

	// Per-environment overrides, applied after the base values.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per
// environment. Zero values leave the base value in place.
type ConfigOverrides struct {
	Paths  *PathsConfig  `yaml:"paths,omitempty"`
	Loggly *LogglyConfig `yaml:"loggly,omitempty"`
	Queue  *QueueConfig  `yaml:"queue,omitempty"`
	Log    *LogConfig    `yaml:"log,omitempty"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// State holds the record store. Created with mode 0700 on first
	// flush.
	State string `yaml:"state"`
}

// LogglyConfig configures the bulk endpoint.
type LogglyConfig struct {
	// APIKey is the customer token. Required.
	APIKey string `yaml:"api_key"`

	// Tags are attached to every event.
	Tags []string `yaml:"tags"`

	// Endpoint is the intake base URL.
	// Default: https://logs-01.loggly.com
	Endpoint string `yaml:"endpoint"`

	// Compression is none, gzip, or zstd.
	Compression string `yaml:"compression"`

	// UploadTimeout bounds one upload request. Default: 30s
	UploadTimeout time.Duration `yaml:"upload_timeout"`
}

// QueueConfig configures buffering and flushing.
type QueueConfig struct {
	// BatchLimitBytes caps one upload payload. Default: 5000000
	BatchLimitBytes int `yaml:"batch_limit_bytes"`

	// PageSize is the number of records read per store query.
	// Default: 1000
	PageSize int `yaml:"page_size"`

	// SaveThreshold is the buffer length that triggers a flush. Zero
	// flushes on the interval only. Default: 500
	SaveThreshold int `yaml:"save_threshold"`

	// FlushInterval is the period of background flushes. Default: 10s
	FlushInterval time.Duration `yaml:"flush_interval"`

	// ShutdownTimeout bounds the final flush. Default: 5s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Synchronous is the SQLite durability level: OFF, NORMAL, FULL,
	// or EXTRA. Default: NORMAL (development), FULL (production)
	Synchronous string `yaml:"synchronous"`
}

// LogConfig configures logship's own diagnostics on stderr.
type LogConfig struct {
	// Level is debug, info, warn, or error. Default: info
	Level string `yaml:"level"`
}

// Default returns the base configuration that the file is merged
// into. It is not a usable configuration on its own: the API key has
// no default. Compression and Synchronous hold the development values;
// LoadFile picks them per environment when the file leaves them unset.
func Default() *Config {
	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			State: defaultStateDirectory(),
		},
		Loggly: LogglyConfig{
			Tags:          []string{"logship"},
			Endpoint:      "https://logs-01.loggly.com",
			Compression:   "none",
			UploadTimeout: 30 * time.Second,
		},
		Queue: QueueConfig{
			BatchLimitBytes: 5_000_000,
			PageSize:        1000,
			SaveThreshold:   500,
			FlushInterval:   10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			Synchronous:     "NORMAL",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultStateDirectory() string {
	if cacheDir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(cacheDir, "logship")
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".cache", "logship")
}

// Load loads configuration from the file named by LOGSHIP_CONFIG.
func Load() (*Config, error) {
	configPath := os.Getenv("LOGSHIP_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("LOGSHIP_CONFIG environment variable not set; " +
			"set it to the path of your logship.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path, applies the environment
// section, and expands variables. It does not validate.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	// Left empty so an explicit value in the file can be told apart
	// from the environment default.
	cfg.Loggly.Compression = ""
	cfg.Queue.Synchronous = ""
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.applyEnvironmentDefaults()
	cfg.expandVariables()
	return cfg, nil
}

// DatabasePath returns the record store file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.State, DatabaseFile)
}

// applyEnvironmentDefaults fills the settings whose default depends on
// the environment and that neither the file nor its environment section
// set. Production gets no lost records on power loss and smaller
// uploads.
func (c *Config) applyEnvironmentDefaults() {
	compression, synchronous := "none", "NORMAL"
	if c.Environment == Production {
		compression, synchronous = "gzip", "FULL"
	}
	if c.Loggly.Compression == "" {
		c.Loggly.Compression = compression
	}
	if c.Queue.Synchronous == "" {
		c.Queue.Synchronous = synchronous
	}
}

// applyEnvironmentOverrides applies the section matching Environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil && overrides.Paths.State != "" {
		c.Paths.State = overrides.Paths.State
	}

	if o := overrides.Loggly; o != nil {
		if o.APIKey != "" {
			c.Loggly.APIKey = o.APIKey
		}
		if len(o.Tags) > 0 {
			c.Loggly.Tags = o.Tags
		}
		if o.Endpoint != "" {
			c.Loggly.Endpoint = o.Endpoint
		}
		if o.Compression != "" {
			c.Loggly.Compression = o.Compression
		}
		if o.UploadTimeout != 0 {
			c.Loggly.UploadTimeout = o.UploadTimeout
		}
	}

	if o := overrides.Queue; o != nil {
		if o.BatchLimitBytes != 0 {
			c.Queue.BatchLimitBytes = o.BatchLimitBytes
		}
		if o.PageSize != 0 {
			c.Queue.PageSize = o.PageSize
		}
		if o.SaveThreshold != 0 {
			c.Queue.SaveThreshold = o.SaveThreshold
		}
		if o.FlushInterval != 0 {
			c.Queue.FlushInterval = o.FlushInterval
		}
		if o.ShutdownTimeout != 0 {
			c.Queue.ShutdownTimeout = o.ShutdownTimeout
		}
		if o.Synchronous != "" {
			c.Queue.Synchronous = o.Synchronous
		}
	}

	if overrides.Log != nil && overrides.Log.Level != "" {
		c.Log.Level = overrides.Log.Level
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Paths.State = expandVars(c.Paths.State, vars)
	c.Loggly.APIKey = expandVars(c.Loggly.APIKey, vars)
	c.Loggly.Endpoint = expandVars(c.Loggly.Endpoint, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains([]Environment{Development, Staging, Production}, c.Environment) {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Paths.State == "" {
		errs = append(errs, errors.New("paths.state is required"))
	}

	if c.Loggly.APIKey == "" {
		errs = append(errs, errors.New("loggly.api_key is required"))
	}
	compressions := []string{"none", "gzip", "zstd"}
	if !slices.Contains(compressions, c.Loggly.Compression) {
		errs = append(errs, fmt.Errorf("loggly.compression must be one of: %v", compressions))
	}
	if c.Loggly.UploadTimeout <= 0 {
		errs = append(errs, errors.New("loggly.upload_timeout must be positive"))
	}

	if c.Queue.BatchLimitBytes <= 0 {
		errs = append(errs, errors.New("queue.batch_limit_bytes must be positive"))
	}
	if c.Queue.PageSize <= 0 {
		errs = append(errs, errors.New("queue.page_size must be positive"))
	}
	if c.Queue.SaveThreshold < 0 {
		errs = append(errs, errors.New("queue.save_threshold must not be negative"))
	}
	if c.Queue.FlushInterval <= 0 {
		errs = append(errs, errors.New("queue.flush_interval must be positive"))
	}
	if c.Queue.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("queue.shutdown_timeout must be positive"))
	}
	levels := []string{"OFF", "NORMAL", "FULL", "EXTRA"}
	if !slices.Contains(levels, strings.ToUpper(c.Queue.Synchronous)) {
		errs = append(errs, fmt.Errorf("queue.synchronous must be one of: %v", levels))
	}

	logLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(logLevels, strings.ToLower(c.Log.Level)) {
		errs = append(errs, fmt.Errorf("log.level must be one of: %v", logLevels))
	}

	return errors.Join(errs...)
}
