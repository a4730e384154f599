package handshake

import (
	"encoding/binary"
	"fmt"

	"github.com/fieldforge/mowerlink/internal/cryptoprim"
	"github.com/fieldforge/mowerlink/internal/wire"
)

const (
	helloBodyLen      = 4        // client public key
	challengeBodyLen  = 4 + 8 + 4 // server public key, nonce, auth tag
	clientAuthBodyLen = 4        // auth tag
)

// ServerHandshake drives the server side of the mutual-auth exchange:
// receive HELLO, send CHALLENGE, receive and verify CLIENT_AUTH.
//
// A ServerHandshake is single-use: construct one per incoming connection
// with a fresh secret and nonce, drive it to completion or failure, then
// discard it.
type ServerHandshake struct {
	secret       uint32
	serverPub    uint32
	clientPub    uint32
	nonce        uint64
	sharedSecret uint32
	phase        Phase
}

// NewServerHandshake constructs a server-side handshake driver. secret is
// this connection's ephemeral DH private value and nonce is the
// server-generated challenge nonce; callers draw both fresh per
// connection. Neither the primitives nor the values are cryptographically
// strong.
func NewServerHandshake(secret uint32, nonce uint64) *ServerHandshake {
	return &ServerHandshake{
		secret:    secret,
		serverPub: cryptoprim.DHPublic(secret),
		nonce:     nonce,
		phase:     PhaseAwaitingHello,
	}
}

// Phase reports the current handshake phase.
func (s *ServerHandshake) Phase() Phase {
	return s.phase
}

// SharedSecret returns the derived shared secret and whether the
// handshake reached Authenticated.
func (s *ServerHandshake) SharedSecret() (uint32, bool) {
	return s.sharedSecret, s.phase == PhaseAuthenticated
}

// Drive feeds one received session-layer message into the handshake and
// returns the session-layer message to send in response (nil if none),
// whether the handshake has concluded (success or failure), and any error.
func (s *ServerHandshake) Drive(sess wire.Session) (out []byte, done bool, err error) {
	switch s.phase {
	case PhaseAwaitingHello:
		return s.driveHello(sess)
	case PhaseAwaitingClientAuth:
		return s.driveClientAuth(sess)
	default:
		return nil, true, fmt.Errorf("drive in phase %s: %w", s.phase, ErrHandshakeClosed)
	}
}

func (s *ServerHandshake) driveHello(sess wire.Session) ([]byte, bool, error) {
	if sess.Type != wire.TypeHello {
		return nil, false, fmt.Errorf("drive: got %s: %w", sess.Type, ErrUnexpectedMessage)
	}
	if len(sess.Body) < helloBodyLen {
		return nil, false, ErrMalformedHello
	}
	s.clientPub = binary.BigEndian.Uint32(sess.Body[0:4])

	res := Apply(s.phase, EventRecvHello)
	s.phase = res.NewPhase

	for _, action := range res.Actions {
		if action == ActionDeriveSharedSecret {
			s.sharedSecret = cryptoprim.DHShared(s.clientPub, s.secret)
		}
	}

	authTag := cryptoprim.AuthTag(s.serverPub, s.clientPub, s.nonce)

	body := make([]byte, challengeBodyLen)
	binary.BigEndian.PutUint32(body[0:4], s.serverPub)
	binary.BigEndian.PutUint64(body[4:12], s.nonce)
	binary.BigEndian.PutUint32(body[12:16], authTag)

	return wire.PackSession(wire.HandshakeHMACPlaceholder, wire.TypeChallenge, body), false, nil
}

func (s *ServerHandshake) driveClientAuth(sess wire.Session) ([]byte, bool, error) {
	if sess.Type != wire.TypeClientAuth {
		return nil, false, fmt.Errorf("drive: got %s: %w", sess.Type, ErrUnexpectedMessage)
	}
	if len(sess.Body) < clientAuthBodyLen {
		res := Apply(s.phase, EventAuthFailed)
		s.phase = res.NewPhase
		return nil, true, ErrMalformedClientAuth
	}

	got := binary.BigEndian.Uint32(sess.Body[0:4])
	want := cryptoprim.AuthTag(s.clientPub, s.serverPub, s.nonce)

	event := EventAuthOK
	if got != want {
		event = EventAuthFailed
	}

	res := Apply(s.phase, event)
	s.phase = res.NewPhase

	if event == EventAuthFailed {
		return nil, true, ErrAuthFailed
	}
	return nil, true, nil
}

// Timeout marks the handshake as failed due to a per-phase deadline
// elapsing and returns the resulting error.
func (s *ServerHandshake) Timeout() error {
	res := Apply(s.phase, EventTimeout)
	s.phase = res.NewPhase
	return ErrHandshakeTimeout
}
