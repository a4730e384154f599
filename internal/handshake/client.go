package handshake

import (
	"encoding/binary"
	"fmt"

	"github.com/fieldforge/mowerlink/internal/cryptoprim"
	"github.com/fieldforge/mowerlink/internal/wire"
)

// ClientHandshake drives the client side of the mutual-auth exchange:
// send HELLO, receive and verify CHALLENGE, send CLIENT_AUTH.
//
// A ClientHandshake is single-use: construct one per outgoing connection
// with a fresh secret, call Hello to obtain the first message to send,
// drive it with the server's CHALLENGE, then discard it.
type ClientHandshake struct {
	secret       uint32
	clientPub    uint32
	serverPub    uint32
	nonce        uint64
	sharedSecret uint32
	phase        Phase
}

// NewClientHandshake constructs a client-side handshake driver from an
// ephemeral DH private value.
func NewClientHandshake(secret uint32) *ClientHandshake {
	return &ClientHandshake{
		secret:    secret,
		clientPub: cryptoprim.DHPublic(secret),
		phase:     PhaseAwaitingChallenge,
	}
}

// Phase reports the current handshake phase.
func (c *ClientHandshake) Phase() Phase {
	return c.phase
}

// SharedSecret returns the derived shared secret and whether the
// handshake reached Authenticated.
func (c *ClientHandshake) SharedSecret() (uint32, bool) {
	return c.sharedSecret, c.phase == PhaseAuthenticated
}

// Hello returns the session-layer HELLO message to send first.
func (c *ClientHandshake) Hello() []byte {
	body := make([]byte, helloBodyLen)
	binary.BigEndian.PutUint32(body, c.clientPub)
	return wire.PackSession(wire.HandshakeHMACPlaceholder, wire.TypeHello, body)
}

// Drive feeds the server's CHALLENGE message into the handshake and
// returns the CLIENT_AUTH message to send in response, whether the
// handshake has concluded, and any error.
func (c *ClientHandshake) Drive(sess wire.Session) (out []byte, done bool, err error) {
	if c.phase != PhaseAwaitingChallenge {
		return nil, true, fmt.Errorf("drive in phase %s: %w", c.phase, ErrHandshakeClosed)
	}
	if sess.Type != wire.TypeChallenge {
		return nil, false, fmt.Errorf("drive: got %s: %w", sess.Type, ErrUnexpectedMessage)
	}
	if len(sess.Body) < challengeBodyLen {
		return nil, false, ErrMalformedChallenge
	}

	serverPub := binary.BigEndian.Uint32(sess.Body[0:4])
	nonce := binary.BigEndian.Uint64(sess.Body[4:12])
	tag := binary.BigEndian.Uint32(sess.Body[12:16])

	c.serverPub = serverPub
	c.nonce = nonce

	want := cryptoprim.AuthTag(serverPub, c.clientPub, nonce)
	event := EventAuthOK
	if tag != want {
		event = EventAuthFailed
	}

	res := Apply(c.phase, event)
	c.phase = res.NewPhase

	if event == EventAuthFailed {
		return nil, true, ErrAuthFailed
	}

	for _, action := range res.Actions {
		if action == ActionDeriveSharedSecret {
			c.sharedSecret = cryptoprim.DHShared(c.serverPub, c.secret)
		}
	}

	clientTag := cryptoprim.AuthTag(c.clientPub, c.serverPub, c.nonce)
	body := make([]byte, clientAuthBodyLen)
	binary.BigEndian.PutUint32(body, clientTag)

	return wire.PackSession(wire.HandshakeHMACPlaceholder, wire.TypeClientAuth, body), true, nil
}

// Timeout marks the handshake as failed due to a per-phase deadline
// elapsing and returns the resulting error.
func (c *ClientHandshake) Timeout() error {
	res := Apply(c.phase, EventTimeout)
	c.phase = res.NewPhase
	return ErrHandshakeTimeout
}
