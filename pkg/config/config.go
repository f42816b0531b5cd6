package config

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/srg/blip/internal/peripheral"
	"github.com/srg/blip/internal/radio/goble"
)

// Read modes
const (
	ReadSynthetic = "synthetic"
	ReadStored    = "stored"
)

// Config holds application configuration
type Config struct {
	LogLevel           string          `yaml:"log_level" default:"info"`
	DeviceName         string          `yaml:"device_name" default:"blip"`
	ServiceUUID        string          `yaml:"service_uuid" default:"6e0f0001-8d3a-4b7c-9a51-2f6c0e1d7a00"`
	CharacteristicUUID string          `yaml:"characteristic_uuid" default:"6e0f0002-8d3a-4b7c-9a51-2f6c0e1d7a00"`
	Read               ReadConfig      `yaml:"read"`
	Notify             NotifyConfig    `yaml:"notify"`
	Advertise          AdvertiseConfig `yaml:"advertise"`
	EventBuffer        int             `yaml:"event_buffer" default:"64"`
}

// ReadConfig selects how read requests are answered.
type ReadConfig struct {
	// Mode is "synthetic" (always answer Value) or "stored".
	Mode  string `yaml:"mode" default:"synthetic"`
	Value string `yaml:"value" default:"test"`
}

type NotifyConfig struct {
	Confirm bool `yaml:"confirm" default:"true"`
}

type AdvertiseConfig struct {
	Mode    string `yaml:"mode" default:"balanced"`
	TxPower string `yaml:"tx_power" default:"high"`
	// ConfirmDelay is how long an advertisement must run before it counts as started.
	ConfirmDelay time.Duration `yaml:"confirm_delay" default:"250ms"`
}

var advertiseModes = map[string]peripheral.AdvertiseMode{
	"low_power":   peripheral.AdvertiseModeLowPower,
	"balanced":    peripheral.AdvertiseModeBalanced,
	"low_latency": peripheral.AdvertiseModeLowLatency,
}

var txPowers = map[string]peripheral.TxPower{
	"ultra_low": peripheral.TxPowerUltraLow,
	"low":       peripheral.TxPowerLow,
	"medium":    peripheral.TxPowerMedium,
	"high":      peripheral.TxPowerHigh,
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML file over the defaults. Keys missing from the file keep
// their default value. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every enumerated and UUID field.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.DeviceName == "" {
		return fmt.Errorf("device_name must not be empty")
	}
	if _, err := uuid.Parse(c.ServiceUUID); err != nil {
		return fmt.Errorf("service_uuid %q: %w", c.ServiceUUID, err)
	}
	if _, err := uuid.Parse(c.CharacteristicUUID); err != nil {
		return fmt.Errorf("characteristic_uuid %q: %w", c.CharacteristicUUID, err)
	}
	switch c.Read.Mode {
	case ReadSynthetic, ReadStored:
	default:
		return fmt.Errorf("read.mode %q: must be %s or %s", c.Read.Mode, ReadSynthetic, ReadStored)
	}
	if _, ok := advertiseModes[c.Advertise.Mode]; !ok {
		return fmt.Errorf("advertise.mode %q: must be low_power, balanced or low_latency", c.Advertise.Mode)
	}
	if _, ok := txPowers[c.Advertise.TxPower]; !ok {
		return fmt.Errorf("advertise.tx_power %q: must be ultra_low, low, medium or high", c.Advertise.TxPower)
	}
	if c.Advertise.ConfirmDelay < 0 {
		return fmt.Errorf("advertise.confirm_delay must not be negative")
	}
	if c.EventBuffer <= 0 {
		return fmt.Errorf("event_buffer must be positive, got %d", c.EventBuffer)
	}
	return nil
}

// Level returns the parsed log level, falling back to info.
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
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

// PeripheralOptions converts a validated config to peripheral options.
func (c *Config) PeripheralOptions() (peripheral.Options, error) {
	if err := c.Validate(); err != nil {
		return peripheral.Options{}, err
	}

	opts := peripheral.DefaultOptions()
	opts.DeviceName = c.DeviceName
	opts.ServiceID = uuid.MustParse(c.ServiceUUID)
	opts.CharacteristicID = uuid.MustParse(c.CharacteristicUUID)
	opts.Settings.Mode = advertiseModes[c.Advertise.Mode]
	opts.Settings.TxPower = txPowers[c.Advertise.TxPower]
	opts.SyntheticRead = c.Read.Mode == ReadSynthetic
	opts.ReadValue = c.Read.Value
	opts.ConfirmNotifications = c.Notify.Confirm
	opts.EventBuffer = c.EventBuffer
	return opts, nil
}

// RadioConfig returns the go-ble adapter settings.
func (c *Config) RadioConfig() goble.Config {
	return goble.Config{
		DeviceName:   c.DeviceName,
		ConfirmDelay: c.Advertise.ConfirmDelay,
	}
}
