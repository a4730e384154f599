// Package fleet supervises one TCP listener per managed device, spawning
// a device.Session for each accepted connection (spec.md §4.8).
package fleet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"golang.org/x/sync/errgroup"

	"github.com/fieldforge/mowerlink/internal/command"
	"github.com/fieldforge/mowerlink/internal/device"
	"github.com/fieldforge/mowerlink/internal/notification"
	"github.com/fieldforge/mowerlink/internal/registry"
	"github.com/fieldforge/mowerlink/internal/sink"
)

// ErrNoDevices is returned when the registry has nothing to listen for.
var ErrNoDevices = errors.New("fleet: device registry is empty")

// Metrics receives fleet-level session lifecycle events. A *mowermetrics.Collector
// satisfies this; tests may supply a no-op or recording fake.
type Metrics interface {
	RegisterSession(deviceID string)
	UnregisterSession(deviceID string)
	IncHandshakeFailures(deviceID string)
}

// noopMetrics discards every event. Used when Supervisor is constructed
// without a Metrics implementation.
type noopMetrics struct{}

func (noopMetrics) RegisterSession(string)      {}
func (noopMetrics) UnregisterSession(string)    {}
func (noopMetrics) IncHandshakeFailures(string) {}

// compositeHandler combines the command dispatcher and notification
// handler for one connection into the single device.Handler the session
// layer expects.
type compositeHandler struct {
	*command.Dispatcher
	*notification.Handler
}

func newCompositeHandler(deviceID string, reg registry.DeviceRegistry, telemetry sink.TelemetrySink, logger *slog.Logger) *compositeHandler {
	return &compositeHandler{
		Dispatcher: command.NewDispatcher(deviceID, reg, telemetry, logger),
		Handler:    notification.NewHandler(deviceID, telemetry, logger),
	}
}

// Supervisor owns one listener per device port and spawns sessions for
// accepted connections.
type Supervisor struct {
	registry      registry.DeviceRegistry
	sink          sink.TelemetrySink
	sessionConfig device.SessionConfig
	logger        *slog.Logger
	metrics       Metrics
}

// NewSupervisor constructs a Supervisor. sessionConfig.DeviceID is
// overwritten per accepted connection; the caller only needs to set the
// shared fields (timeouts, bypass policy).
func NewSupervisor(reg registry.DeviceRegistry, telemetry sink.TelemetrySink, sessionConfig device.SessionConfig, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		registry:      reg,
		sink:          telemetry,
		sessionConfig: sessionConfig,
		logger:        logger,
		metrics:       noopMetrics{},
	}
}

// WithMetrics attaches a Metrics sink, replacing the default no-op.
func (s *Supervisor) WithMetrics(m Metrics) *Supervisor {
	s.metrics = m
	return s
}

// Start opens one listener per device in the registry and runs accept
// loops until ctx is canceled or a listener fails irrecoverably. It
// returns once every accept loop has exited.
func (s *Supervisor) Start(ctx context.Context) error {
	devices, err := s.registry.Devices(ctx)
	if err != nil {
		return fmt.Errorf("fleet: list devices: %w", err)
	}
	if len(devices) == 0 {
		return ErrNoDevices
	}

	lc := net.ListenConfig{Control: reuseAddrControl}
	listeners := make([]net.Listener, 0, len(devices))
	bound := make([]registry.Device, 0, len(devices))
	for _, d := range devices {
		ln, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", d.Port))
		if err != nil {
			// Failure on any one port is fatal to that listener only
			// (spec.md §4.8); the rest of the fleet must keep starting.
			s.logger.Error("listen failed, device unreachable", slog.String("device_id", d.ID), slog.Int("port", d.Port), slog.Any("error", err))
			continue
		}
		listeners = append(listeners, ln)
		bound = append(bound, d)
	}
	defer closeAll(listeners)

	if len(listeners) == 0 {
		return fmt.Errorf("fleet: no listener could be bound for any of %d devices", len(devices))
	}

	g, gCtx := errgroup.WithContext(ctx)
	for i, d := range bound {
		dev := d
		ln := listeners[i]
		g.Go(func() error {
			return s.ServeListener(gCtx, dev, ln)
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		closeAll(listeners)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// ServeListener accepts connections for one device's listener and spawns
// a session goroutine for each, until ctx is canceled or the listener is
// closed.
func (s *Supervisor) ServeListener(ctx context.Context, dev registry.Device, ln net.Listener) error {
	s.logger.Info("device listener started", slog.String("device_id", dev.ID), slog.Int("port", dev.Port))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fleet: accept on device %s: %w", dev.ID, err)
		}
		go s.serveConn(ctx, dev, conn)
	}
}

// serveConn runs a single accepted connection's device session to completion.
func (s *Supervisor) serveConn(ctx context.Context, dev registry.Device, conn net.Conn) {
	cfg := s.sessionConfig
	cfg.DeviceID = dev.ID

	handler := newCompositeHandler(dev.ID, s.registry, s.sink, s.logger)
	sess := device.NewSession(conn, cfg, handler, s.logger)

	s.metrics.RegisterSession(dev.ID)
	defer s.metrics.UnregisterSession(dev.ID)

	if err := sess.Serve(ctx); err != nil {
		if errors.Is(err, device.ErrHandshakeRejected) {
			s.metrics.IncHandshakeFailures(dev.ID)
		}
		s.logger.Debug("device session ended", slog.String("device_id", dev.ID), slog.Any("error", err))
	}
}

func closeAll(listeners []net.Listener) {
	for _, ln := range listeners {
		_ = ln.Close()
	}
}
