package app

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"go978/internal/aircraft"
)

// Default configuration constants
const (
	DefaultPublishInterval   = time.Second
	DefaultExpireAfter       = aircraft.DefaultExpiry
	DefaultRefreshMillis     = 1000
	DefaultHistory           = 0
	DefaultArchiveMaxAgeDays = 30
	DefaultLogMaxSizeMB      = 10
	DefaultLogMaxBackups     = 5
	DefaultLogMaxAgeDays     = 14
)

// ReceiverConfig is the metadata published in receiver.json
type ReceiverConfig struct {
	Version string `yaml:"version"`
	Refresh int    `yaml:"refresh"`
	History int    `yaml:"history"`
}

// LogConfig controls the process log
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
	Verbose    bool   `yaml:"verbose"`
}

// Config holds application configuration
type Config struct {
	OutputDir         string         `yaml:"output_dir"`
	Input             string         `yaml:"input"` // "" or "-" reads stdin
	PublishInterval   time.Duration  `yaml:"publish_interval"`
	ExpireAfter       time.Duration  `yaml:"expire_after"`
	Receiver          ReceiverConfig `yaml:"receiver"`
	ArchiveDir        string         `yaml:"archive_dir"`
	ArchiveUTC        bool           `yaml:"archive_utc"`
	ArchiveMaxAgeDays int            `yaml:"archive_max_age_days"`
	MetricsAddr       string         `yaml:"metrics_addr"`
	Log               LogConfig      `yaml:"log"`

	ConfigFile  string `yaml:"-"`
	ShowVersion bool   `yaml:"-"`
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() Config {
	return Config{
		PublishInterval:   DefaultPublishInterval,
		ExpireAfter:       DefaultExpireAfter,
		ArchiveUTC:        true,
		ArchiveMaxAgeDays: DefaultArchiveMaxAgeDays,
		Receiver: ReceiverConfig{
			Refresh: DefaultRefreshMillis,
			History: DefaultHistory,
		},
		Log: LogConfig{
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
			Compress:   true,
		},
	}
}

// LoadConfigFile decodes a YAML file on top of cfg. Keys missing from the
// file keep their current values; unknown keys are an error.
func LoadConfigFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg.Validate()
}

// Validate checks the values the control loop depends on.
func (c Config) Validate() error {
	if c.PublishInterval <= 0 {
		return fmt.Errorf("publish interval must be positive, got %s", c.PublishInterval)
	}
	if c.ExpireAfter <= 0 {
		return fmt.Errorf("expiry must be positive, got %s", c.ExpireAfter)
	}
	if c.Receiver.Refresh < 0 || c.Receiver.History < 0 {
		return fmt.Errorf("receiver refresh and history must not be negative")
	}
	return nil
}
