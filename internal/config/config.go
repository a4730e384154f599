// Package config manages the mowerd daemon configuration using koanf/v2.
//
// Supports YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete mowerd configuration.
type Config struct {
	Metrics MetricsConfig  `koanf:"metrics"`
	Log     LogConfig      `koanf:"log"`
	Session SessionConfig  `koanf:"session"`
	Devices []DeviceConfig `koanf:"devices"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// SessionConfig holds the default parameters applied to every device
// session.
type SessionConfig struct {
	// InactivityTimeout closes a session that sends no bytes for this
	// long.
	InactivityTimeout time.Duration `koanf:"inactivity_timeout"`

	// BypassHMAC accepts wire.BypassHMAC in place of a correctly
	// computed HMAC on REGULAR messages. Defaults to true, matching
	// the device firmware's test backdoor.
	BypassHMAC bool `koanf:"bypass_hmac"`
}

// DeviceConfig describes one mower the daemon listens for. Each entry
// opens a TCP listener on startup.
type DeviceConfig struct {
	// ID uniquely identifies the device across the fleet.
	ID string `koanf:"id"`

	// Port is the TCP port the daemon listens on for this device.
	Port int `koanf:"port"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Session: SessionConfig{
			InactivityTimeout: 2000 * time.Millisecond,
			BypassHMAC:        true,
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for mowerd configuration.
// Variables are named MOWERD_<section>_<key>, e.g., MOWERD_METRICS_ADDR.
const envPrefix = "MOWERD_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (MOWERD_ prefix), and merges on top of DefaultConfig().
// Missing fields inherit defaults.
//
// Environment variable mapping:
//
//	MOWERD_METRICS_ADDR  -> metrics.addr
//	MOWERD_METRICS_PATH  -> metrics.path
//	MOWERD_LOG_LEVEL     -> log.level
//	MOWERD_LOG_FORMAT    -> log.format
//
// Uses koanf/v2 with file + env providers and YAML parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Load defaults first.
	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	// Load YAML file on top of defaults.
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	// Load environment variable overrides on top of YAML.
	// MOWERD_METRICS_ADDR -> metrics.addr (strip prefix, lowercase, _ -> .).
	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms MOWERD_METRICS_ADDR -> metrics.addr.
// Strips the MOWERD_ prefix, lowercases, and replaces _ with .
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "_", ".")
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"metrics.addr":               defaults.Metrics.Addr,
		"metrics.path":               defaults.Metrics.Path,
		"log.level":                  defaults.Log.Level,
		"log.format":                 defaults.Log.Format,
		"session.inactivity_timeout": defaults.Session.InactivityTimeout.String(),
		"session.bypass_hmac":        defaults.Session.BypassHMAC,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrInvalidInactivityTimeout indicates the inactivity timeout is not positive.
	ErrInvalidInactivityTimeout = errors.New("session.inactivity_timeout must be > 0")

	// ErrEmptyDeviceID indicates a device entry has no ID.
	ErrEmptyDeviceID = errors.New("device id must not be empty")

	// ErrInvalidDevicePort indicates a device entry has an out-of-range port.
	ErrInvalidDevicePort = errors.New("device port must be between 1 and 65535")

	// ErrDuplicateDeviceID indicates two device entries share the same ID.
	ErrDuplicateDeviceID = errors.New("duplicate device id")

	// ErrDuplicateDevicePort indicates two device entries share the same port.
	ErrDuplicateDevicePort = errors.New("duplicate device port")
)

// Validate checks the configuration for logical errors.
// Returns the first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.Session.InactivityTimeout <= 0 {
		return ErrInvalidInactivityTimeout
	}

	if err := validateDevices(cfg.Devices); err != nil {
		return err
	}

	return nil
}

// validateDevices checks each declarative device entry for correctness.
func validateDevices(devices []DeviceConfig) error {
	seenIDs := make(map[string]struct{}, len(devices))
	seenPorts := make(map[int]struct{}, len(devices))

	for i, dc := range devices {
		if dc.ID == "" {
			return fmt.Errorf("devices[%d]: %w", i, ErrEmptyDeviceID)
		}

		if dc.Port < 1 || dc.Port > 65535 {
			return fmt.Errorf("devices[%d] %q: %w", i, dc.ID, ErrInvalidDevicePort)
		}

		if _, dup := seenIDs[dc.ID]; dup {
			return fmt.Errorf("devices[%d]: %w: %q", i, ErrDuplicateDeviceID, dc.ID)
		}
		seenIDs[dc.ID] = struct{}{}

		if _, dup := seenPorts[dc.Port]; dup {
			return fmt.Errorf("devices[%d] %q: %w: %d", i, dc.ID, ErrDuplicateDevicePort, dc.Port)
		}
		seenPorts[dc.Port] = struct{}{}
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
