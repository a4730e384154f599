// Package dispatch implements the action dispatcher (spec.md §4.9): the
// client-role counterpart to internal/device that connects out to a
// device, performs the client handshake, sends a single command, and
// correlates the device's first REGULAR reply back to the caller.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"time"

	"github.com/fieldforge/mowerlink/internal/cryptoprim"
	"github.com/fieldforge/mowerlink/internal/frame"
	"github.com/fieldforge/mowerlink/internal/handshake"
	"github.com/fieldforge/mowerlink/internal/wire"
)

// Timeouts governing one dispatched action (spec.md §4.9).
const (
	ConnectTimeout       = 10 * time.Second
	HandshakeTimeout     = 5 * time.Second
	HandshakeStepTimeout = 500 * time.Millisecond
	ReplyTimeout         = 500 * time.Millisecond
	TotalTimeout         = 5000 * time.Millisecond
)

// ErrNoReply is returned when the device's connection ends before a
// REGULAR reply arrives.
var ErrNoReply = errors.New("dispatch: connection ended before a reply arrived")

// Dialer abstracts outbound connection establishment so tests can supply
// an in-memory transport.
type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// netDialer is the default Dialer, backed by net.Dialer.
type netDialer struct{ d net.Dialer }

func (n netDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	return n.d.DialContext(ctx, network, addr)
}

// Dispatcher sends one-shot commands to devices, each on its own
// short-lived connection.
type Dispatcher struct {
	dialer Dialer
	logger *slog.Logger
}

// NewDispatcher constructs a Dispatcher using the standard net.Dialer.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{dialer: netDialer{}, logger: logger}
}

// NewDispatcherWithDialer constructs a Dispatcher over a custom Dialer,
// for tests.
func NewDispatcherWithDialer(dialer Dialer, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{dialer: dialer, logger: logger}
}

// Dispatch connects to addr, completes the client handshake, sends one
// application command, and returns the device's first REGULAR reply.
// The whole call is bounded by TotalTimeout regardless of ctx's own deadline.
func (d *Dispatcher) Dispatch(ctx context.Context, addr string, cmd byte, body []byte) (wire.Application, error) {
	ctx, cancel := context.WithTimeout(ctx, TotalTimeout)
	defer cancel()

	type result struct {
		reply wire.Application
		err   error
	}
	resCh := make(chan result, 1)

	go func() {
		reply, err := d.dispatchOnce(ctx, addr, cmd, body)
		resCh <- result{reply: reply, err: err}
	}()

	select {
	case r := <-resCh:
		return r.reply, r.err
	case <-ctx.Done():
		return wire.Application{}, fmt.Errorf("dispatch %s: %w", addr, ctx.Err())
	}
}

func (d *Dispatcher) dispatchOnce(ctx context.Context, addr string, cmd byte, body []byte) (wire.Application, error) {
	connectCtx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()

	conn, err := d.dialer.DialContext(connectCtx, "tcp", addr)
	if err != nil {
		return wire.Application{}, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	sharedSecret, iin, err := d.clientHandshake(conn)
	if err != nil {
		return wire.Application{}, fmt.Errorf("handshake with %s: %w", addr, err)
	}

	app := wire.PackApplication(cmd, body)
	pres := wire.PackPresentation(iin, app)
	hmacVal := cryptoprim.AuthenticatedHMAC(sharedSecret, pres)
	sessMsg := wire.PackSession(hmacVal, wire.TypeRegular, pres)

	if err := writeFrame(conn, sessMsg); err != nil {
		return wire.Application{}, fmt.Errorf("send command to %s: %w", addr, err)
	}

	reply, err := d.awaitReply(conn)
	if err != nil {
		return wire.Application{}, fmt.Errorf("await reply from %s: %w", addr, err)
	}
	return reply, nil
}

// clientHandshake drives a ClientHandshake over conn and returns the
// shared secret and the IIN the device should see on the first command.
func (d *Dispatcher) clientHandshake(conn net.Conn) (sharedSecret uint32, iin uint16, err error) {
	hs := handshake.NewClientHandshake(rand.Uint32())

	if err := conn.SetWriteDeadline(time.Now().Add(HandshakeStepTimeout)); err != nil {
		return 0, 0, err
	}
	if err := writeFrame(conn, hs.Hello()); err != nil {
		return 0, 0, err
	}

	payload, err := readFrame(conn, HandshakeStepTimeout)
	if err != nil {
		return 0, 0, fmt.Errorf("read challenge: %w", err)
	}
	sess, err := wire.UnpackSession(payload)
	if err != nil {
		return 0, 0, fmt.Errorf("unpack challenge: %w", err)
	}

	clientAuth, done, err := hs.Drive(sess)
	if err != nil {
		return 0, 0, err
	}
	if !done {
		return 0, 0, handshake.ErrUnexpectedMessage
	}
	if err := writeFrame(conn, clientAuth); err != nil {
		return 0, 0, err
	}

	secret, ok := hs.SharedSecret()
	if !ok {
		return 0, 0, handshake.ErrAuthFailed
	}
	return secret, 1, nil
}

// awaitReply reads frames until the first REGULAR session message
// arrives, treating anything else (stray NOTIFICATIONs) as ignorable.
func (d *Dispatcher) awaitReply(conn net.Conn) (wire.Application, error) {
	deadline := ReplyTimeout
	for {
		payload, err := readFrame(conn, deadline)
		if err != nil {
			if errors.Is(err, errIncompleteAtEOF) || errors.Is(err, io.EOF) {
				return wire.Application{}, ErrNoReply
			}
			return wire.Application{}, err
		}

		sess, err := wire.UnpackSession(payload)
		if err != nil {
			continue
		}
		if sess.Type != wire.TypeRegular {
			continue
		}

		pres, err := wire.UnpackPresentation(sess.Body)
		if err != nil {
			continue
		}
		app, err := wire.UnpackApplication(pres.Body)
		if err != nil {
			continue
		}
		return app, nil
	}
}

// errIncompleteAtEOF marks a connection closed while a partial frame
// remained in readFrame's internal buffer.
var errIncompleteAtEOF = errors.New("dispatch: connection closed with a partial frame buffered")

func writeFrame(conn net.Conn, payload []byte) error {
	encoded, err := frame.Encode(payload)
	if err != nil {
		return err
	}
	_, err = conn.Write(encoded)
	return err
}

// readFrame reads a single frame from conn, applying deadline to each
// underlying Read call.
func readFrame(conn net.Conn, deadline time.Duration) ([]byte, error) {
	buf := make([]byte, 0, 256)
	scratch := make([]byte, 256)
	for {
		payload, consumed, err := frame.Decode(buf)
		if err == nil {
			_ = consumed
			return payload, nil
		}
		if !errors.Is(err, frame.ErrIncomplete) {
			return nil, err
		}

		if err := conn.SetReadDeadline(time.Now().Add(deadline)); err != nil {
			return nil, err
		}
		n, rerr := conn.Read(scratch)
		if n > 0 {
			buf = append(buf, scratch[:n]...)
		}
		if rerr != nil {
			if len(buf) > 0 {
				return nil, errIncompleteAtEOF
			}
			return nil, rerr
		}
	}
}
