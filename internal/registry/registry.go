// Package registry defines the device registry boundary: the set of
// devices this fleet manages, the TCP port each listens on, and the last
// commanded operating state for each. The reference implementation here
// is an in-memory adapter; a deployment backed by a real datastore
// implements the same DeviceRegistry interface.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrDeviceNotFound is returned when an operation references an unknown
// device ID.
var ErrDeviceNotFound = errors.New("registry: device not found")

// State is a device's reported or commanded operating state. The six
// named states below and their wire codes (0x00..0x04, 0x80) are the
// canonical enum from spec.md §3; StateUnknown is a registry-only
// sentinel for a device that has never reported in.
type State int

const (
	StateUnknown State = iota
	StateStationCharging
	StateStationChargingCompleted
	StateMowing
	StateReturningToStation
	StatePaused
	StateError
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateStationCharging:
		return "StationCharging"
	case StateStationChargingCompleted:
		return "StationChargingCompleted"
	case StateMowing:
		return "Mowing"
	case StateReturningToStation:
		return "ReturningToStation"
	case StatePaused:
		return "Paused"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Device describes one managed mower: its identity, the TCP port its
// listener accepts connections on, and its last known commanded state.
type Device struct {
	ID    string
	Port  int
	State State
}

// DeviceRegistry is the fleet's view of which devices exist and their
// last-known commanded state. internal/fleet uses it to decide which
// ports to listen on; internal/command uses it to record state changes
// driven by ControlDevice commands.
type DeviceRegistry interface {
	// Devices lists every managed device.
	Devices(ctx context.Context) ([]Device, error)

	// Get looks up a single device by ID.
	Get(ctx context.Context, id string) (Device, error)

	// SetState records a device's newly commanded state.
	SetState(ctx context.Context, id string, state State) error
}

// StaticRegistry is an in-memory DeviceRegistry seeded at construction
// time. It is the reference adapter for small or test deployments; a
// production deployment backed by a database implements DeviceRegistry
// directly instead.
type StaticRegistry struct {
	mu      sync.RWMutex
	devices map[string]Device
}

// NewStaticRegistry builds a StaticRegistry from a fixed device list.
func NewStaticRegistry(devices []Device) *StaticRegistry {
	m := make(map[string]Device, len(devices))
	for _, d := range devices {
		m[d.ID] = d
	}
	return &StaticRegistry{devices: m}
}

func (r *StaticRegistry) Devices(_ context.Context) ([]Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	return out, nil
}

func (r *StaticRegistry) Get(_ context.Context, id string) (Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[id]
	if !ok {
		return Device{}, fmt.Errorf("get %q: %w", id, ErrDeviceNotFound)
	}
	return d, nil
}

func (r *StaticRegistry) SetState(_ context.Context, id string, state State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return fmt.Errorf("set state %q: %w", id, ErrDeviceNotFound)
	}
	d.State = state
	r.devices[id] = d
	return nil
}
