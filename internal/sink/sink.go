// Package sink defines the telemetry sink boundary: where decoded device
// notifications and maintenance events go once the protocol layer has
// parsed them. The reference adapter here logs through slog; a
// deployment that ships telemetry to a time-series database or message
// bus implements the same TelemetrySink interface.
package sink

import (
	"context"
	"log/slog"
	"time"

	"github.com/fieldforge/mowerlink/internal/registry"
)

// TelemetrySink receives decoded device telemetry and maintenance
// events. Implementations must not block the device session goroutine
// for long; slow sinks should buffer or hand off internally.
type TelemetrySink interface {
	// RecordDeviceStatus records a DeviceStatus notification (ntype 0x00):
	// battery level as a percentage in [0,100], cumulative blade-on
	// seconds, and the device-reported operating state.
	RecordDeviceStatus(ctx context.Context, deviceID string, batteryPercent float64, bladeSeconds uint32, state registry.State) error

	// RecordPositionUpdate records a PositionUpdate notification (ntype 0x01).
	RecordPositionUpdate(ctx context.Context, deviceID string, observedAt time.Time, lat, lon float32) error

	// RecordBladeReset records a ResetBladeTime command (0x03) having
	// been accepted for a device.
	RecordBladeReset(ctx context.Context, deviceID string) error

	// RecordState persists the operating state a dispatched operator
	// action is expected to have put a device into (spec.md §6 step 5).
	RecordState(ctx context.Context, deviceID string, state registry.State, at time.Time) error
}

// LoggingSink is a TelemetrySink that writes every event through slog.
// It is the reference adapter for small deployments and tests.
type LoggingSink struct {
	logger *slog.Logger
}

// NewLoggingSink builds a LoggingSink.
func NewLoggingSink(logger *slog.Logger) *LoggingSink {
	return &LoggingSink{logger: logger}
}

func (s *LoggingSink) RecordDeviceStatus(_ context.Context, deviceID string, batteryPercent float64, bladeSeconds uint32, state registry.State) error {
	s.logger.Info("device status",
		slog.String("device_id", deviceID),
		slog.Float64("battery_percent", batteryPercent),
		slog.Uint64("blade_seconds", uint64(bladeSeconds)),
		slog.String("state", state.String()),
	)
	return nil
}

func (s *LoggingSink) RecordPositionUpdate(_ context.Context, deviceID string, observedAt time.Time, lat, lon float32) error {
	s.logger.Info("position update",
		slog.String("device_id", deviceID),
		slog.Time("observed_at", observedAt),
		slog.Float64("lat", float64(lat)),
		slog.Float64("lon", float64(lon)),
	)
	return nil
}

func (s *LoggingSink) RecordBladeReset(_ context.Context, deviceID string) error {
	s.logger.Info("blade time reset", slog.String("device_id", deviceID))
	return nil
}

func (s *LoggingSink) RecordState(_ context.Context, deviceID string, state registry.State, at time.Time) error {
	s.logger.Info("state recorded",
		slog.String("device_id", deviceID),
		slog.String("state", state.String()),
		slog.Time("at", at),
	)
	return nil
}
