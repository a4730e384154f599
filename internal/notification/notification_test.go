package notification_test

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/fieldforge/mowerlink/internal/notification"
	"github.com/fieldforge/mowerlink/internal/registry"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingSink struct {
	statusCalls   int
	lastPercent   float64
	lastBlade     uint32
	lastState     registry.State
	positionCalls int
	lastLat       float32
	lastLon       float32
	lastObserved  time.Time
}

func (r *recordingSink) RecordDeviceStatus(_ context.Context, _ string, batteryPercent float64, bladeSeconds uint32, state registry.State) error {
	r.statusCalls++
	r.lastPercent = batteryPercent
	r.lastBlade = bladeSeconds
	r.lastState = state
	return nil
}

func (r *recordingSink) RecordPositionUpdate(_ context.Context, _ string, observedAt time.Time, lat, lon float32) error {
	r.positionCalls++
	r.lastObserved = observedAt
	r.lastLat = lat
	r.lastLon = lon
	return nil
}

func (r *recordingSink) RecordBladeReset(context.Context, string) error { return nil }

func (r *recordingSink) RecordState(context.Context, string, registry.State, time.Time) error {
	return nil
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func TestDeviceStatusNotificationRecorded(t *testing.T) {
	t.Parallel()

	rs := &recordingSink{}
	h := notification.NewHandler("mower-1", rs, discardLogger())

	// spec.md §8 worked vector: C8 00 00 04 B0 02 -> 100.0%, 1200s, Mowing.
	body := []byte{notification.TypeDeviceStatus, 0xC8, 0x00, 0x00, 0x04, 0xB0, 0x02}

	h.HandleNotification(context.Background(), body)

	if rs.statusCalls != 1 {
		t.Fatalf("statusCalls = %d, want 1", rs.statusCalls)
	}
	if rs.lastPercent != 100.0 {
		t.Fatalf("lastPercent = %v, want 100.0", rs.lastPercent)
	}
	if rs.lastBlade != 1200 {
		t.Fatalf("lastBlade = %d, want 1200", rs.lastBlade)
	}
	if rs.lastState != registry.StateMowing {
		t.Fatalf("lastState = %v, want Mowing", rs.lastState)
	}
}

func TestDeviceStatusNotificationAllStates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code byte
		want registry.State
	}{
		{0x00, registry.StateStationCharging},
		{0x01, registry.StateStationChargingCompleted},
		{0x02, registry.StateMowing},
		{0x03, registry.StateReturningToStation},
		{0x04, registry.StatePaused},
		{0x80, registry.StateError},
	}

	for _, tc := range tests {
		rs := &recordingSink{}
		h := notification.NewHandler("mower-1", rs, discardLogger())

		body := make([]byte, 1+1+4+1)
		body[0] = notification.TypeDeviceStatus
		body[6] = tc.code

		h.HandleNotification(context.Background(), body)

		if rs.lastState != tc.want {
			t.Fatalf("code %#02x: state = %v, want %v", tc.code, rs.lastState, tc.want)
		}
	}
}

func TestPositionUpdateNotificationRecorded(t *testing.T) {
	t.Parallel()

	rs := &recordingSink{}
	h := notification.NewHandler("mower-1", rs, discardLogger())

	body := make([]byte, 1+4+4+4)
	body[0] = notification.TypePositionUpdate
	putU32(body[1:5], 1_700_000_000)
	putU32(body[5:9], math.Float32bits(51.5074))
	putU32(body[9:13], math.Float32bits(-0.1278))

	h.HandleNotification(context.Background(), body)

	if rs.positionCalls != 1 {
		t.Fatalf("positionCalls = %d, want 1", rs.positionCalls)
	}
	if rs.lastLat != 51.5074 {
		t.Fatalf("lastLat = %v, want 51.5074", rs.lastLat)
	}
	if rs.lastObserved.Unix() != 1_700_000_000 {
		t.Fatalf("lastObserved.Unix() = %d, want 1700000000", rs.lastObserved.Unix())
	}
}

func TestShortDeviceStatusBodyDropped(t *testing.T) {
	t.Parallel()

	rs := &recordingSink{}
	h := notification.NewHandler("mower-1", rs, discardLogger())

	h.HandleNotification(context.Background(), []byte{notification.TypeDeviceStatus, 0x01})

	if rs.statusCalls != 0 {
		t.Fatalf("statusCalls = %d, want 0 for short body", rs.statusCalls)
	}
}

func TestUnknownNotificationTypeDropped(t *testing.T) {
	t.Parallel()

	rs := &recordingSink{}
	h := notification.NewHandler("mower-1", rs, discardLogger())

	h.HandleNotification(context.Background(), []byte{0x55, 0x01, 0x02, 0x03})

	if rs.statusCalls != 0 || rs.positionCalls != 0 {
		t.Fatal("unknown notification type should not call sink")
	}
}

func TestEmptyNotificationBodyDropped(t *testing.T) {
	t.Parallel()

	rs := &recordingSink{}
	h := notification.NewHandler("mower-1", rs, discardLogger())

	h.HandleNotification(context.Background(), nil)

	if rs.statusCalls != 0 || rs.positionCalls != 0 {
		t.Fatal("empty notification body should not call sink")
	}
}
