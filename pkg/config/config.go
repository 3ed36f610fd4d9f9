package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/mbitmore/internal/characteristic"
	"github.com/srg/mbitmore/internal/service"
	"gopkg.in/yaml.v3"
)

// MaxDeviceNameLength keeps the name inside a legacy advertising packet
// together with the 128-bit service UUID.
const MaxDeviceNameLength = 8

// Config holds application configuration
type Config struct {
	LogLevel     string        `yaml:"log_level" default:"info"`
	DeviceName   string        `yaml:"device_name" default:"mbitmore"`
	HCIDevice    int           `yaml:"hci_device" default:"0"`
	BaseUUID     string        `yaml:"base_uuid" default:"0b500000-607f-4151-9091-7d008d6ffc5c"`
	TickInterval time.Duration `yaml:"tick_interval" default:"50ms"`
	NotifyPolicy string        `yaml:"notify_policy" default:"changed"`
	JournalSize  uint32        `yaml:"journal_size" default:"64"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML file over the defaults and validates the result.
// Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field and reports the first problem.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.DeviceName == "" {
		return fmt.Errorf("device_name must not be empty")
	}
	if len(c.DeviceName) > MaxDeviceNameLength {
		return fmt.Errorf("device_name %q exceeds %d bytes", c.DeviceName, MaxDeviceNameLength)
	}
	if c.HCIDevice < 0 {
		return fmt.Errorf("hci_device must be >= 0, got %d", c.HCIDevice)
	}
	if _, err := uuid.Parse(c.BaseUUID); err != nil {
		return fmt.Errorf("base_uuid: %w", err)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %s", c.TickInterval)
	}
	if _, err := service.ParseNotifyPolicy(c.NotifyPolicy); err != nil {
		return fmt.Errorf("notify_policy: %w", err)
	}
	if c.JournalSize == 0 {
		return fmt.Errorf("journal_size must be > 0")
	}
	return nil
}

// Level returns the parsed log level, InfoLevel when unparsable.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// Policy returns the parsed notify policy.
func (c *Config) Policy() service.NotifyPolicy {
	p, err := service.ParseNotifyPolicy(c.NotifyPolicy)
	if err != nil {
		return service.PolicyChanged
	}
	return p
}

// Table builds the characteristic table for BaseUUID.
func (c *Config) Table() (*characteristic.Table, error) {
	return characteristic.NewTable(c.BaseUUID)
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.Level())

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
