// Package mowermetrics provides the Prometheus metrics exposed by mowerd.
package mowermetrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const (
	namespace = "mowerlink"
	subsystem = "fleet"
)

// Label names for fleet metrics.
const (
	labelDeviceID  = "device_id"
	labelCommand   = "command"
	labelFromState = "from_state"
	labelToState   = "to_state"
)

// -------------------------------------------------------------------------
// Collector — Prometheus Fleet Metrics
// -------------------------------------------------------------------------

// Collector holds all mowerd Prometheus metrics.
//
//   - Sessions tracks currently connected device sessions.
//   - Command counters track received commands and notifications per device.
//   - State transition counters record registry state changes for alerting.
//   - Handshake failure counters flag rejected devices.
type Collector struct {
	// Sessions tracks the number of currently connected device sessions.
	Sessions *prometheus.GaugeVec

	// CommandsReceived counts application commands received per device.
	CommandsReceived *prometheus.CounterVec

	// NotificationsReceived counts session NOTIFICATION messages received per device.
	NotificationsReceived *prometheus.CounterVec

	// StateTransitions counts registry state transitions, labeled by the old
	// and new state for precise alerting (e.g., Mowing->ReturningToStation).
	StateTransitions *prometheus.CounterVec

	// HandshakeFailures counts rejected or abandoned handshakes per device.
	HandshakeFailures *prometheus.CounterVec

	// ActionsDispatched counts operator-initiated actions sent through
	// internal/action, labeled by device and action name.
	ActionsDispatched *prometheus.CounterVec
}

// NewCollector creates a Collector with all fleet metrics registered against
// the provided prometheus.Registerer. If reg is nil, prometheus.DefaultRegisterer
// is used.
//
// All metrics are created with the "mowerlink_fleet_" prefix (namespace_subsystem)
// to avoid collisions with other exporters.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.Sessions,
		c.CommandsReceived,
		c.NotificationsReceived,
		c.StateTransitions,
		c.HandshakeFailures,
		c.ActionsDispatched,
	)

	return c
}

// newMetrics creates all Prometheus metric vectors without registering them.
func newMetrics() *Collector {
	deviceLabels := []string{labelDeviceID}
	commandLabels := []string{labelDeviceID, labelCommand}
	transitionLabels := []string{labelDeviceID, labelFromState, labelToState}

	return &Collector{
		Sessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions",
			Help:      "Number of currently connected device sessions.",
		}, deviceLabels),

		CommandsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "commands_received_total",
			Help:      "Total application commands received per device.",
		}, commandLabels),

		NotificationsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "notifications_received_total",
			Help:      "Total session NOTIFICATION messages received per device.",
		}, deviceLabels),

		StateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "state_transitions_total",
			Help:      "Total device registry state transitions.",
		}, transitionLabels),

		HandshakeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "handshake_failures_total",
			Help:      "Total rejected or abandoned device handshakes.",
		}, deviceLabels),

		ActionsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "actions_dispatched_total",
			Help:      "Total operator actions dispatched, labeled by device and action.",
		}, commandLabels),
	}
}

// -------------------------------------------------------------------------
// Session Lifecycle
// -------------------------------------------------------------------------

// RegisterSession increments the active sessions gauge for deviceID.
// Called when a device connection is accepted, before its handshake.
func (c *Collector) RegisterSession(deviceID string) {
	c.Sessions.WithLabelValues(deviceID).Inc()
}

// UnregisterSession decrements the active sessions gauge for deviceID.
// Called when a device session ends.
func (c *Collector) UnregisterSession(deviceID string) {
	c.Sessions.WithLabelValues(deviceID).Dec()
}

// -------------------------------------------------------------------------
// Command and Notification Counters
// -------------------------------------------------------------------------

// IncCommandsReceived increments the received-commands counter for deviceID
// and the application command rendered as a label (e.g. "0x01").
func (c *Collector) IncCommandsReceived(deviceID, command string) {
	c.CommandsReceived.WithLabelValues(deviceID, command).Inc()
}

// IncNotificationsReceived increments the received-notifications counter
// for deviceID.
func (c *Collector) IncNotificationsReceived(deviceID string) {
	c.NotificationsReceived.WithLabelValues(deviceID).Inc()
}

// -------------------------------------------------------------------------
// State Transitions
// -------------------------------------------------------------------------

// RecordStateTransition increments the state transition counter with the
// old and new registry state labels.
func (c *Collector) RecordStateTransition(deviceID, from, to string) {
	c.StateTransitions.WithLabelValues(deviceID, from, to).Inc()
}

// -------------------------------------------------------------------------
// Handshake and Actions
// -------------------------------------------------------------------------

// IncHandshakeFailures increments the handshake failure counter for deviceID.
func (c *Collector) IncHandshakeFailures(deviceID string) {
	c.HandshakeFailures.WithLabelValues(deviceID).Inc()
}

// IncActionsDispatched increments the actions-dispatched counter for
// deviceID and the action name.
func (c *Collector) IncActionsDispatched(deviceID, action string) {
	c.ActionsDispatched.WithLabelValues(deviceID, action).Inc()
}
