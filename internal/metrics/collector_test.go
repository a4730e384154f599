package mowermetrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	mowermetrics "github.com/fieldforge/mowerlink/internal/metrics"
)

func TestNewCollector(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := mowermetrics.NewCollector(reg)

	if c.Sessions == nil {
		t.Error("Sessions is nil")
	}
	if c.CommandsReceived == nil {
		t.Error("CommandsReceived is nil")
	}
	if c.NotificationsReceived == nil {
		t.Error("NotificationsReceived is nil")
	}
	if c.StateTransitions == nil {
		t.Error("StateTransitions is nil")
	}
	if c.HandshakeFailures == nil {
		t.Error("HandshakeFailures is nil")
	}
	if c.ActionsDispatched == nil {
		t.Error("ActionsDispatched is nil")
	}

	// Verify all metrics are registered by gathering them.
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}

	// No data yet, so families may be empty -- but registration must not panic.
	_ = families
}

func TestRegisterUnregisterSession(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := mowermetrics.NewCollector(reg)

	c.RegisterSession("mower-1")

	val := gaugeValue(t, c.Sessions, "mower-1")
	if val != 1 {
		t.Errorf("after RegisterSession: sessions gauge = %v, want 1", val)
	}

	c.RegisterSession("mower-2")

	val = gaugeValue(t, c.Sessions, "mower-2")
	if val != 1 {
		t.Errorf("mower-2 gauge = %v, want 1", val)
	}

	c.UnregisterSession("mower-1")

	val = gaugeValue(t, c.Sessions, "mower-1")
	if val != 0 {
		t.Errorf("after UnregisterSession: mower-1 gauge = %v, want 0", val)
	}

	val = gaugeValue(t, c.Sessions, "mower-2")
	if val != 1 {
		t.Errorf("mower-2 gauge = %v, want 1 (should be unaffected)", val)
	}
}

func TestCommandAndNotificationCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := mowermetrics.NewCollector(reg)

	c.IncCommandsReceived("mower-1", "0x01")
	c.IncCommandsReceived("mower-1", "0x01")
	c.IncCommandsReceived("mower-1", "0x01")

	val := counterValue(t, c.CommandsReceived, "mower-1", "0x01")
	if val != 3 {
		t.Errorf("CommandsReceived = %v, want 3", val)
	}

	c.IncNotificationsReceived("mower-1")
	c.IncNotificationsReceived("mower-1")

	val = counterValue(t, c.NotificationsReceived, "mower-1")
	if val != 2 {
		t.Errorf("NotificationsReceived = %v, want 2", val)
	}
}

func TestStateTransition(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := mowermetrics.NewCollector(reg)

	c.RecordStateTransition("mower-1", "Paused", "Mowing")

	val := counterValue(t, c.StateTransitions, "mower-1", "Paused", "Mowing")
	if val != 1 {
		t.Errorf("StateTransitions(Paused->Mowing) = %v, want 1", val)
	}

	c.RecordStateTransition("mower-1", "Mowing", "ReturningToStation")

	val = counterValue(t, c.StateTransitions, "mower-1", "Mowing", "ReturningToStation")
	if val != 1 {
		t.Errorf("StateTransitions(Mowing->ReturningToStation) = %v, want 1", val)
	}

	c.RecordStateTransition("mower-1", "Paused", "Mowing")

	val = counterValue(t, c.StateTransitions, "mower-1", "Paused", "Mowing")
	if val != 2 {
		t.Errorf("StateTransitions(Paused->Mowing) = %v, want 2", val)
	}
}

func TestHandshakeFailuresAndActionsDispatched(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := mowermetrics.NewCollector(reg)

	c.IncHandshakeFailures("mower-1")
	c.IncHandshakeFailures("mower-1")

	val := counterValue(t, c.HandshakeFailures, "mower-1")
	if val != 2 {
		t.Errorf("HandshakeFailures = %v, want 2", val)
	}

	c.IncActionsDispatched("mower-1", "start")

	val = counterValue(t, c.ActionsDispatched, "mower-1", "start")
	if val != 1 {
		t.Errorf("ActionsDispatched = %v, want 1", val)
	}
}

// -------------------------------------------------------------------------
// Helpers
// -------------------------------------------------------------------------

// gaugeValue reads the current value of a GaugeVec with the given labels.
func gaugeValue(t *testing.T, vec *prometheus.GaugeVec, labels ...string) float64 {
	t.Helper()

	gauge, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}

	m := &dto.Metric{}
	if err := gauge.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}

	return m.GetGauge().GetValue()
}

// counterValue reads the current value of a CounterVec with the given labels.
func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()

	counter, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}

	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}

	return m.GetCounter().GetValue()
}
