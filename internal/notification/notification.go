// Package notification decodes NOTIFICATION session messages (spec.md
// §4.7) and forwards them to a telemetry sink. A Handler implements
// device.Handler's HandleNotification method.
package notification

import (
	"context"
	"encoding/binary"
	"log/slog"
	"math"
	"time"

	"github.com/fieldforge/mowerlink/internal/registry"
	"github.com/fieldforge/mowerlink/internal/sink"
)

// Notification type codes (spec.md §4.7).
const (
	TypeDeviceStatus   byte = 0x00
	TypePositionUpdate byte = 0x01
)

const (
	deviceStatusBodyLen   = 1 + 4 + 1 // battery_half_percent[1], blade_seconds[4 BE], state[1]
	positionUpdateBodyLen = 4 + 4 + 4 // unix seconds[4 BE], lat[4 BE float32], lon[4 BE float32]
)

// deviceReportedState maps the wire state byte in a DeviceStatus
// notification to a registry.State (spec.md §3's canonical device-state
// wire-code map, not the §4.6.1 control-action table).
var deviceReportedState = map[byte]registry.State{
	0x00: registry.StateStationCharging,
	0x01: registry.StateStationChargingCompleted,
	0x02: registry.StateMowing,
	0x03: registry.StateReturningToStation,
	0x04: registry.StatePaused,
	0x80: registry.StateError,
}

// Handler decodes notification bodies for one device connection and
// forwards them to a sink.TelemetrySink.
type Handler struct {
	deviceID string
	sink     sink.TelemetrySink
	logger   *slog.Logger
}

// NewHandler constructs a notification Handler for a single device
// connection.
func NewHandler(deviceID string, telemetry sink.TelemetrySink, logger *slog.Logger) *Handler {
	return &Handler{
		deviceID: deviceID,
		sink:     telemetry,
		logger:   logger.With(slog.String("device_id", deviceID)),
	}
}

// HandleNotification implements device.Handler. Short or malformed
// bodies are logged and dropped, never surfaced as an error: a
// malformed notification must not interrupt the connection (spec.md §4.7).
func (h *Handler) HandleNotification(ctx context.Context, body []byte) {
	if len(body) < 1 {
		h.logger.Warn("empty notification body, dropping")
		return
	}

	ntype := body[0]
	payload := body[1:]

	switch ntype {
	case TypeDeviceStatus:
		h.handleDeviceStatus(ctx, payload)
	case TypePositionUpdate:
		h.handlePositionUpdate(ctx, payload)
	default:
		h.logger.Warn("unknown notification type, dropping", slog.Int("ntype", int(ntype)))
	}
}

func (h *Handler) handleDeviceStatus(ctx context.Context, body []byte) {
	if len(body) < deviceStatusBodyLen {
		h.logger.Warn("short DeviceStatus body, dropping", slog.Int("len", len(body)))
		return
	}

	batteryPercent := float64(body[0]) / 2.0
	bladeSeconds := binary.BigEndian.Uint32(body[1:5])
	state, ok := deviceReportedState[body[5]]
	if !ok {
		state = registry.StateUnknown
	}

	if h.sink == nil {
		return
	}
	if err := h.sink.RecordDeviceStatus(ctx, h.deviceID, batteryPercent, bladeSeconds, state); err != nil {
		h.logger.Warn("record device status failed", slog.Any("error", err))
	}
}

func (h *Handler) handlePositionUpdate(ctx context.Context, body []byte) {
	if len(body) < positionUpdateBodyLen {
		h.logger.Warn("short PositionUpdate body, dropping", slog.Int("len", len(body)))
		return
	}

	unixSeconds := binary.BigEndian.Uint32(body[0:4])
	lat := math.Float32frombits(binary.BigEndian.Uint32(body[4:8]))
	lon := math.Float32frombits(binary.BigEndian.Uint32(body[8:12]))
	observedAt := time.Unix(int64(unixSeconds), 0).UTC()

	if h.sink == nil {
		return
	}
	if err := h.sink.RecordPositionUpdate(ctx, h.deviceID, observedAt, lat, lon); err != nil {
		h.logger.Warn("record position update failed", slog.Any("error", err))
	}
}
