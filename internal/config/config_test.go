package config_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fieldforge/mowerlink/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()

	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9100")
	}

	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/metrics")
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "json")
	}

	if cfg.Session.InactivityTimeout != 2000*time.Millisecond {
		t.Errorf("Session.InactivityTimeout = %v, want %v", cfg.Session.InactivityTimeout, 2000*time.Millisecond)
	}

	if !cfg.Session.BypassHMAC {
		t.Error("Session.BypassHMAC = false, want true")
	}

	// Defaults must pass validation.
	if err := config.Validate(cfg); err != nil {
		t.Errorf("DefaultConfig() failed validation: %v", err)
	}
}

func TestLoadFromYAML(t *testing.T) {
	t.Parallel()

	yamlContent := `
metrics:
  addr: ":9200"
  path: "/custom-metrics"
log:
  level: "debug"
  format: "text"
session:
  inactivity_timeout: "5s"
  bypass_hmac: false
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Metrics.Addr != ":9200" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9200")
	}

	if cfg.Metrics.Path != "/custom-metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/custom-metrics")
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}

	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "text")
	}

	if cfg.Session.InactivityTimeout != 5*time.Second {
		t.Errorf("Session.InactivityTimeout = %v, want %v", cfg.Session.InactivityTimeout, 5*time.Second)
	}

	if cfg.Session.BypassHMAC {
		t.Error("Session.BypassHMAC = true, want false")
	}
}

func TestLoadMergesDefaults(t *testing.T) {
	t.Parallel()

	// Partial YAML: only override log.level.
	// Everything else should inherit from defaults.
	yamlContent := `
log:
  level: "warn"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "warn")
	}

	// Default values should be preserved.
	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want default %q", cfg.Metrics.Addr, ":9100")
	}

	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want default %q", cfg.Metrics.Path, "/metrics")
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want default %q", cfg.Log.Format, "json")
	}

	if cfg.Session.InactivityTimeout != 2000*time.Millisecond {
		t.Errorf("Session.InactivityTimeout = %v, want default %v", cfg.Session.InactivityTimeout, 2000*time.Millisecond)
	}

	if !cfg.Session.BypassHMAC {
		t.Error("Session.BypassHMAC = false, want default true")
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr error
	}{
		{
			name: "zero inactivity timeout",
			modify: func(cfg *config.Config) {
				cfg.Session.InactivityTimeout = 0
			},
			wantErr: config.ErrInvalidInactivityTimeout,
		},
		{
			name: "negative inactivity timeout",
			modify: func(cfg *config.Config) {
				cfg.Session.InactivityTimeout = -1 * time.Second
			},
			wantErr: config.ErrInvalidInactivityTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			tt.modify(cfg)

			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("Validate() returned nil, want error")
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  slog.Level
	}{
		{input: "debug", want: slog.LevelDebug},
		{input: "DEBUG", want: slog.LevelDebug},
		{input: "info", want: slog.LevelInfo},
		{input: "INFO", want: slog.LevelInfo},
		{input: "warn", want: slog.LevelWarn},
		{input: "WARN", want: slog.LevelWarn},
		{input: "error", want: slog.LevelError},
		{input: "Error", want: slog.LevelError},
		{input: "unknown", want: slog.LevelInfo},
		{input: "", want: slog.LevelInfo},
		{input: "trace", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got := config.ParseLogLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoadNonexistentFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load("/nonexistent/path/config.yml")
	if err == nil {
		t.Fatal("Load() returned nil error for nonexistent file")
	}
}

// -------------------------------------------------------------------------
// Device Config Tests
// -------------------------------------------------------------------------

func TestLoadWithDevices(t *testing.T) {
	t.Parallel()

	yamlContent := `
devices:
  - id: "mower-1"
    port: 9001
  - id: "mower-2"
    port: 9002
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if len(cfg.Devices) != 2 {
		t.Fatalf("Devices count = %d, want 2", len(cfg.Devices))
	}

	if cfg.Devices[0].ID != "mower-1" || cfg.Devices[0].Port != 9001 {
		t.Errorf("Devices[0] = %+v, want {mower-1 9001}", cfg.Devices[0])
	}
	if cfg.Devices[1].ID != "mower-2" || cfg.Devices[1].Port != 9002 {
		t.Errorf("Devices[1] = %+v, want {mower-2 9002}", cfg.Devices[1])
	}
}

func TestValidateDeviceErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr error
	}{
		{
			name: "empty device id",
			modify: func(cfg *config.Config) {
				cfg.Devices = []config.DeviceConfig{{ID: "", Port: 9001}}
			},
			wantErr: config.ErrEmptyDeviceID,
		},
		{
			name: "zero port",
			modify: func(cfg *config.Config) {
				cfg.Devices = []config.DeviceConfig{{ID: "mower-1", Port: 0}}
			},
			wantErr: config.ErrInvalidDevicePort,
		},
		{
			name: "port out of range",
			modify: func(cfg *config.Config) {
				cfg.Devices = []config.DeviceConfig{{ID: "mower-1", Port: 70000}}
			},
			wantErr: config.ErrInvalidDevicePort,
		},
		{
			name: "duplicate device id",
			modify: func(cfg *config.Config) {
				cfg.Devices = []config.DeviceConfig{
					{ID: "mower-1", Port: 9001},
					{ID: "mower-1", Port: 9002},
				}
			},
			wantErr: config.ErrDuplicateDeviceID,
		},
		{
			name: "duplicate device port",
			modify: func(cfg *config.Config) {
				cfg.Devices = []config.DeviceConfig{
					{ID: "mower-1", Port: 9001},
					{ID: "mower-2", Port: 9001},
				}
			},
			wantErr: config.ErrDuplicateDevicePort,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			tt.modify(cfg)

			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("Validate() returned nil, want error")
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// -------------------------------------------------------------------------
// Environment Variable Override Tests
// -------------------------------------------------------------------------

func TestLoadEnvOverrides(t *testing.T) {
	// Environment variable tests cannot be parallel because they modify
	// process-wide state (os.Setenv).

	yamlContent := `
log:
  level: "info"
`
	path := writeTemp(t, yamlContent)

	t.Setenv("MOWERD_LOG_LEVEL", "debug")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q (from env)", cfg.Log.Level, "debug")
	}
}

func TestLoadEnvOverridesMetrics(t *testing.T) {
	yamlContent := `
metrics:
  addr: ":9100"
  path: "/metrics"
`
	path := writeTemp(t, yamlContent)

	t.Setenv("MOWERD_METRICS_ADDR", ":9200")
	t.Setenv("MOWERD_METRICS_PATH", "/custom")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Metrics.Addr != ":9200" {
		t.Errorf("Metrics.Addr = %q, want %q (from env)", cfg.Metrics.Addr, ":9200")
	}

	if cfg.Metrics.Path != "/custom" {
		t.Errorf("Metrics.Path = %q, want %q (from env)", cfg.Metrics.Path, "/custom")
	}
}

// writeTemp creates a temporary YAML file and returns its path.
// The file is automatically cleaned up when the test finishes.
func writeTemp(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "mowerd.yml")

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	return path
}
