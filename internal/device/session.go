// Package device implements the per-connection state machine for a
// device's TCP session: frame buffering, the handshake exchange, and the
// authenticated command/notification loop that follows it.
package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"time"

	"github.com/fieldforge/mowerlink/internal/cryptoprim"
	"github.com/fieldforge/mowerlink/internal/frame"
	"github.com/fieldforge/mowerlink/internal/handshake"
	"github.com/fieldforge/mowerlink/internal/wire"
)

const (
	// handshakeStepTimeout bounds how long a single handshake step may
	// wait for the peer's next message.
	handshakeStepTimeout = 500 * time.Millisecond

	// defaultInactivityTimeout bounds how long the authenticated loop may
	// wait for the next frame before the connection is considered dead.
	defaultInactivityTimeout = 2000 * time.Millisecond

	// writeTimeout bounds a single frame write.
	writeTimeout = 2000 * time.Millisecond

	readScratchSize = 4096
)

// Handler dispatches authenticated application traffic. Implementations
// live in internal/command and internal/notification.
type Handler interface {
	// HandleCommand processes a REGULAR application message and reports
	// whether a reply should be sent. Unknown commands return
	// respond=false; malformed command bodies still return respond=true
	// with an error-indicating reply (see internal/command).
	HandleCommand(ctx context.Context, iin uint16, app wire.Application) (reply wire.Application, respond bool, err error)

	// HandleNotification processes a NOTIFICATION session body. Short or
	// malformed bodies are logged and dropped by the implementation, not
	// surfaced as an error.
	HandleNotification(ctx context.Context, body []byte)
}

// SessionConfig controls per-connection behavior.
type SessionConfig struct {
	// DeviceID labels this connection in logs.
	DeviceID string

	// InactivityTimeout bounds how long the authenticated loop waits for
	// the next frame. Zero uses defaultInactivityTimeout.
	InactivityTimeout time.Duration

	// BypassHMAC accepts wire.BypassHMAC as a valid session HMAC on any
	// authenticated message, skipping the keyed-MAC check. Default-on to
	// match the reference device firmware's test mode.
	BypassHMAC bool
}

// DefaultSessionConfig returns the conventional per-connection settings.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		InactivityTimeout: defaultInactivityTimeout,
		BypassHMAC:        true,
	}
}

// Session drives a single device TCP connection: handshake, then the
// authenticated command/notification loop, until the peer disconnects,
// goes idle past InactivityTimeout, or ctx is canceled.
type Session struct {
	conn    net.Conn
	cfg     SessionConfig
	handler Handler
	logger  *slog.Logger

	recvBuf      []byte
	readScratch  []byte
	sharedSecret uint32
	authed       bool
}

// NewSession constructs a session over an already-accepted connection.
// Serve must be called to run it.
func NewSession(conn net.Conn, cfg SessionConfig, handler Handler, logger *slog.Logger) *Session {
	if cfg.InactivityTimeout <= 0 {
		cfg.InactivityTimeout = defaultInactivityTimeout
	}
	return &Session{
		conn:        conn,
		cfg:         cfg,
		handler:     handler,
		logger:      logger.With(slog.String("device_id", cfg.DeviceID), slog.String("remote", conn.RemoteAddr().String())),
		readScratch: make([]byte, readScratchSize),
	}
}

// Serve runs the handshake and then the authenticated loop. It returns
// when the connection ends, for any reason; the error, if any, describes
// why. Serve always closes conn before returning.
func (s *Session) Serve(ctx context.Context) error {
	defer s.conn.Close()

	s.logger.Info("session accepted")

	if err := s.doHandshake(ctx); err != nil {
		s.logger.Warn("handshake failed", slog.Any("error", err))
		return fmt.Errorf("device: handshake: %w", err)
	}
	s.logger.Info("session authenticated")

	err := s.serveLoop(ctx)
	if err != nil {
		s.logger.Info("session closed", slog.Any("error", err))
	} else {
		s.logger.Info("session closed")
	}
	return err
}

// doHandshake drives a ServerHandshake to completion against the peer.
func (s *Session) doHandshake(ctx context.Context) error {
	secret := rand.Uint32()
	nonce := rand.Uint64()
	hs := handshake.NewServerHandshake(secret, nonce)

	for {
		payload, err := s.nextFrame(ctx, handshakeStepTimeout)
		if err != nil {
			return err
		}

		sess, err := wire.UnpackSession(payload)
		if err != nil {
			return fmt.Errorf("decode session message: %w", err)
		}

		if sess.Type == wire.TypeNotification {
			// Notification-only connections are never authenticated
			// (spec.md §9): a device that only ever reports status must not
			// have its connection killed for never completing a handshake.
			s.handler.HandleNotification(ctx, sess.Body)
			continue
		}

		out, done, err := hs.Drive(sess)
		if err != nil {
			if done {
				return fmt.Errorf("%w: %w", ErrHandshakeRejected, err)
			}
			return err
		}
		if out != nil {
			if werr := s.writeFrame(out); werr != nil {
				return fmt.Errorf("write: %w", werr)
			}
		}
		if done {
			shared, ok := hs.SharedSecret()
			if !ok {
				return ErrHandshakeRejected
			}
			s.sharedSecret = shared
			s.authed = true
			return nil
		}
	}
}

// serveLoop processes authenticated REGULAR and NOTIFICATION traffic
// until the connection ends.
func (s *Session) serveLoop(ctx context.Context) error {
	for {
		payload, err := s.nextFrame(ctx, s.cfg.InactivityTimeout)
		if err != nil {
			return err
		}

		sess, err := wire.UnpackSession(payload)
		if err != nil {
			s.logger.Warn("malformed session message, dropping", slog.Any("error", err))
			continue
		}

		if sess.Type == wire.TypeNotification {
			// Notifications are processed independent of authentication
			// phase (spec.md §9): no HMAC check applies to them.
			s.handler.HandleNotification(ctx, sess.Body)
			continue
		}

		if !s.verifyHMAC(sess) {
			s.logger.Warn("hmac verification failed, dropping message", slog.String("type", sess.Type.String()))
			continue
		}

		switch sess.Type {
		case wire.TypeRegular:
			s.handleRegular(ctx, sess)
		default:
			s.logger.Warn("unexpected message type after handshake", slog.String("type", sess.Type.String()))
		}
	}
}

// verifyHMAC checks a post-handshake message's session HMAC, honoring the
// bypass sentinel when enabled.
func (s *Session) verifyHMAC(sess wire.Session) bool {
	if s.cfg.BypassHMAC && sess.HMAC == wire.BypassHMAC {
		return true
	}
	want := cryptoprim.AuthenticatedHMAC(s.sharedSecret, sess.Body)
	return sess.HMAC == want
}

// handleRegular unpacks a REGULAR message down to the application layer,
// dispatches it, and writes back a reply if the handler produces one.
func (s *Session) handleRegular(ctx context.Context, sess wire.Session) {
	pres, err := wire.UnpackPresentation(sess.Body)
	if err != nil {
		s.logger.Warn("malformed presentation message, dropping", slog.Any("error", err))
		return
	}

	app, err := wire.UnpackApplication(pres.Body)
	if err != nil {
		s.logger.Warn("malformed application message, dropping", slog.Any("error", err))
		return
	}

	reply, respond, err := s.handler.HandleCommand(ctx, pres.IIN, app)
	if err != nil {
		s.logger.Error("command handler error", slog.Any("error", err), slog.Int("command", int(app.Command)))
		return
	}
	if !respond {
		return
	}

	replyPresentation := wire.PackPresentation(pres.IIN, wire.PackApplication(reply.Command, reply.Body))

	hmacVal := cryptoprim.AuthenticatedHMAC(s.sharedSecret, replyPresentation)
	if s.cfg.BypassHMAC {
		hmacVal = wire.BypassHMAC
	}

	out := wire.PackSession(hmacVal, wire.TypeRegular, replyPresentation)
	if err := s.writeFrame(out); err != nil {
		s.logger.Warn("failed to write reply", slog.Any("error", err))
	}
}

// nextFrame returns the next decoded frame payload, reading and
// resynchronizing as needed. timeout bounds the wait for new bytes once
// the buffer is exhausted; it does not bound the whole call if data keeps
// arriving within each step.
func (s *Session) nextFrame(ctx context.Context, timeout time.Duration) ([]byte, error) {
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		payload, consumed, err := frame.Decode(s.recvBuf)
		if err == nil {
			s.recvBuf = s.recvBuf[consumed:]
			return payload, nil
		}
		if !errors.Is(err, frame.ErrIncomplete) {
			s.logger.Warn("frame decode error, resynchronizing", slog.Any("error", err))
			s.recvBuf = s.recvBuf[:0]
			continue
		}

		if err := s.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return nil, fmt.Errorf("set read deadline: %w", err)
		}

		n, rerr := s.conn.Read(s.readScratch)
		if n > 0 {
			s.recvBuf = append(s.recvBuf, s.readScratch[:n]...)
		}
		if rerr != nil {
			if len(s.recvBuf) > 0 {
				return nil, fmt.Errorf("connection ended with %d buffered bytes: %w", len(s.recvBuf), frame.ErrTruncatedFrame)
			}
			return nil, rerr
		}
	}
}

// writeFrame encodes payload as a frame and writes it to the connection.
func (s *Session) writeFrame(payload []byte) error {
	encoded, err := frame.Encode(payload)
	if err != nil {
		return err
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	_, err = s.conn.Write(encoded)
	return err
}
