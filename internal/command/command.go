// Package command implements the application-layer command set (spec.md
// §4.6): heartbeat, control, error acknowledgement, and blade-time reset.
// A Dispatcher implements device.Handler's HandleCommand method.
package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fieldforge/mowerlink/internal/registry"
	"github.com/fieldforge/mowerlink/internal/sink"
	"github.com/fieldforge/mowerlink/internal/wire"
)

// Application-layer command codes.
const (
	Heartbeat      byte = 0x00
	ControlDevice  byte = 0x01
	AckError       byte = 0x02
	ResetBladeTime byte = 0x03
)

// Application-layer reply codes.
const (
	ReplyHeartbeat      byte = 0x80
	ReplyControlDevice  byte = 0x81
	ReplyAckError       byte = 0x82
	ReplyResetBladeTime byte = 0x83
	ReplyError          byte = 0xFF
)

// Control action codes carried in a ControlDevice command body.
const (
	ActionStop  byte = 0x00
	ActionStart byte = 0x01
	ActionHome  byte = 0x02
)

// invalidControlCommandMsg is the error reply body for a malformed
// ControlDevice command (spec.md §4.6).
const invalidControlCommandMsg = "Invalid control command"

// Dispatcher routes application-layer commands for one device connection
// to their handlers, recording state changes in registry and forwarding
// maintenance events to sink.
type Dispatcher struct {
	deviceID string
	registry registry.DeviceRegistry
	sink     sink.TelemetrySink
	logger   *slog.Logger
}

// NewDispatcher constructs a command Dispatcher for a single device
// connection. sink may be nil; ResetBladeTime then simply skips the
// telemetry call.
func NewDispatcher(deviceID string, reg registry.DeviceRegistry, telemetry sink.TelemetrySink, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		deviceID: deviceID,
		registry: reg,
		sink:     telemetry,
		logger:   logger.With(slog.String("device_id", deviceID)),
	}
}

// HandleCommand implements device.Handler.
func (d *Dispatcher) HandleCommand(ctx context.Context, _ uint16, app wire.Application) (wire.Application, bool, error) {
	switch app.Command {
	case Heartbeat:
		return d.heartbeat(app), true, nil
	case ControlDevice:
		return d.controlDevice(ctx, app)
	case AckError:
		return d.ackError(ctx, app)
	case ResetBladeTime:
		return d.resetBladeTime(ctx, app)
	default:
		d.logger.Warn("unknown command, no reply sent", slog.Int("command", int(app.Command)))
		return wire.Application{}, false, nil
	}
}

func (d *Dispatcher) heartbeat(app wire.Application) wire.Application {
	return wire.Application{Command: ReplyHeartbeat, Body: app.Body}
}

func (d *Dispatcher) controlDevice(ctx context.Context, app wire.Application) (wire.Application, bool, error) {
	if len(app.Body) < 1 {
		return errorReply(invalidControlCommandMsg), true, nil
	}

	var state registry.State
	switch app.Body[0] {
	case ActionStop:
		state = registry.StatePaused
	case ActionStart:
		state = registry.StateMowing
	case ActionHome:
		state = registry.StateReturningToStation
	default:
		return errorReply(invalidControlCommandMsg), true, nil
	}

	if d.registry != nil {
		if err := d.registry.SetState(ctx, d.deviceID, state); err != nil {
			return wire.Application{}, false, fmt.Errorf("control device: set state: %w", err)
		}
	}

	return wire.Application{Command: ReplyControlDevice, Body: nil}, true, nil
}

func (d *Dispatcher) ackError(ctx context.Context, app wire.Application) (wire.Application, bool, error) {
	if d.registry != nil {
		if err := d.registry.SetState(ctx, d.deviceID, registry.StatePaused); err != nil {
			return wire.Application{}, false, fmt.Errorf("ack error: set state: %w", err)
		}
	}
	return wire.Application{Command: ReplyAckError, Body: nil}, true, nil
}

func (d *Dispatcher) resetBladeTime(ctx context.Context, app wire.Application) (wire.Application, bool, error) {
	if d.sink != nil {
		if err := d.sink.RecordBladeReset(ctx, d.deviceID); err != nil {
			d.logger.Warn("record blade reset failed", slog.Any("error", err))
		}
	}
	return wire.Application{Command: ReplyResetBladeTime, Body: nil}, true, nil
}

// errorReply builds the fixed 0xFF error application message.
func errorReply(msg string) wire.Application {
	return wire.Application{Command: ReplyError, Body: []byte(msg)}
}
