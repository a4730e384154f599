// Package action implements the operator-facing action façade: named
// actions ("start", "stop", "home", "ackerror"), a pre-condition table
// checked against the device's last-known state, and translation to the
// wire command each action dispatches via internal/dispatch.
package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fieldforge/mowerlink/internal/command"
	"github.com/fieldforge/mowerlink/internal/dispatch"
	"github.com/fieldforge/mowerlink/internal/registry"
	"github.com/fieldforge/mowerlink/internal/sink"
	"github.com/fieldforge/mowerlink/internal/wire"
)

// Name identifies an operator-facing action.
type Name string

const (
	Start          Name = "start"
	Stop           Name = "stop"
	Home           Name = "home"
	AckError       Name = "ackerror"
	ResetBladeTime Name = "reset-blade-time"
)

// Errors returned by Dispatcher.DispatchAction.
var (
	ErrUnknownAction      = errors.New("action: unknown action name")
	ErrPreconditionFailed = errors.New("action: device state does not permit this action")
)

// preconditions lists the device states each action may be issued from
// (spec.md §6's pre-condition table). registry.StateUnknown always
// permits dispatch: a device that has never reported in has no recorded
// state to check against. ResetBladeTime has no listed precondition in
// §6 (it is a §4.6 wire command, not one of the four façade actions), so
// it is left permitted from any state.
var preconditions = map[Name][]registry.State{
	Start:    {registry.StateUnknown, registry.StateStationCharging, registry.StateStationChargingCompleted, registry.StatePaused},
	Stop:     {registry.StateUnknown, registry.StateMowing, registry.StateReturningToStation},
	Home:     {registry.StateUnknown, registry.StateMowing, registry.StatePaused},
	AckError: {registry.StateUnknown, registry.StateError},
	ResetBladeTime: {
		registry.StateUnknown,
		registry.StateStationCharging,
		registry.StateStationChargingCompleted,
		registry.StateMowing,
		registry.StateReturningToStation,
		registry.StatePaused,
		registry.StateError,
	},
}

// expectedState maps a successfully dispatched action to the state the
// device is expected to transition into (spec.md §6 step 3/5).
var expectedState = map[Name]registry.State{
	Start:    registry.StateMowing,
	Stop:     registry.StatePaused,
	Home:     registry.StateReturningToStation,
	AckError: registry.StatePaused,
}

func checkPrecondition(name Name, current registry.State) error {
	allowed, ok := preconditions[name]
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrUnknownAction)
	}
	for _, s := range allowed {
		if s == current {
			return nil
		}
	}
	return fmt.Errorf("%s from state %s: %w", name, current, ErrPreconditionFailed)
}

// commandFor translates an action name into the application command and
// body the device expects.
func commandFor(name Name) (cmd byte, body []byte, err error) {
	switch name {
	case Start:
		return command.ControlDevice, []byte{command.ActionStart}, nil
	case Stop:
		return command.ControlDevice, []byte{command.ActionStop}, nil
	case Home:
		return command.ControlDevice, []byte{command.ActionHome}, nil
	case AckError:
		return command.AckError, nil, nil
	case ResetBladeTime:
		return command.ResetBladeTime, nil, nil
	default:
		return 0, nil, fmt.Errorf("%s: %w", name, ErrUnknownAction)
	}
}

// Transport sends a single command to a device and waits for its reply.
// internal/dispatch.Dispatcher implements this.
type Transport interface {
	Dispatch(ctx context.Context, addr string, cmd byte, body []byte) (wire.Application, error)
}

// AddressResolver maps a registry.Device to the dialable TCP address for
// its listener.
type AddressResolver func(dev registry.Device) string

// Dispatcher is the action façade: it resolves a device, checks the
// action's pre-condition, and sends the translated command over Transport.
type Dispatcher struct {
	registry  registry.DeviceRegistry
	transport Transport
	resolve   AddressResolver
	sink      sink.TelemetrySink
	logger    *slog.Logger
}

var _ Transport = (*dispatch.Dispatcher)(nil)

// NewDispatcher constructs an action Dispatcher. telemetry may be nil;
// DispatchAction then skips persisting the post-action state.
func NewDispatcher(reg registry.DeviceRegistry, transport Transport, resolve AddressResolver, telemetry sink.TelemetrySink, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{registry: reg, transport: transport, resolve: resolve, sink: telemetry, logger: logger}
}

// DispatchAction resolves deviceID, checks name's pre-condition against
// its last-known state, and sends the translated command.
func (d *Dispatcher) DispatchAction(ctx context.Context, deviceID string, name Name) (wire.Application, error) {
	dev, err := d.registry.Get(ctx, deviceID)
	if err != nil {
		return wire.Application{}, fmt.Errorf("action: resolve device %q: %w", deviceID, err)
	}

	if err := checkPrecondition(name, dev.State); err != nil {
		return wire.Application{}, err
	}

	cmd, body, err := commandFor(name)
	if err != nil {
		return wire.Application{}, err
	}

	addr := d.resolve(dev)
	reply, err := d.transport.Dispatch(ctx, addr, cmd, body)
	if err != nil {
		return wire.Application{}, fmt.Errorf("action: dispatch %s to %q: %w", name, deviceID, err)
	}

	if next, ok := expectedState[name]; ok {
		if err := d.registry.SetState(ctx, deviceID, next); err != nil {
			d.logger.Warn("record post-action state failed", slog.String("device_id", deviceID), slog.Any("error", err))
		}
		if d.sink != nil {
			if err := d.sink.RecordState(ctx, deviceID, next, time.Now()); err != nil {
				d.logger.Warn("sink record state failed", slog.String("device_id", deviceID), slog.Any("error", err))
			}
		}
	}

	d.logger.Info("action dispatched", slog.String("device_id", deviceID), slog.String("action", string(name)))
	return reply, nil
}
