// Package wire implements the three nested message layers carried inside
// a frame payload: session (HMAC + type), presentation (IIN echo), and
// application (command + body). Every function here is a pure byte
// transform -- no I/O, no state (spec.md §4.2).
package wire

import (
	"encoding/binary"
	"errors"
)

// MessageType identifies the session-layer message kind.
type MessageType byte

// Session message types (spec.md §3).
const (
	TypeRegular      MessageType = 0x00
	TypeHello        MessageType = 0x01
	TypeChallenge    MessageType = 0x02
	TypeClientAuth   MessageType = 0x03
	TypeNotification MessageType = 0x80
)

// String returns a human-readable name for the message type.
func (t MessageType) String() string {
	switch t {
	case TypeRegular:
		return "REGULAR"
	case TypeHello:
		return "HELLO"
	case TypeChallenge:
		return "CHALLENGE"
	case TypeClientAuth:
		return "CLIENT_AUTH"
	case TypeNotification:
		return "NOTIFICATION"
	default:
		return "UNKNOWN"
	}
}

// BypassHMAC is the sentinel HMAC that disables authentication checks
// for testing (spec.md §9). Preserved bit-for-bit; default-on to match
// source behavior.
const BypassHMAC uint32 = 0xFADEDBED

// HandshakeHMACPlaceholder is the fixed zero HMAC carried by every
// handshake frame this code builds (HELLO, CHALLENGE and CLIENT_AUTH).
const HandshakeHMACPlaceholder uint32 = 0x00000000

const (
	sessionHeaderLen = 5 // hmac[4] + type[1]
	presentationLen  = 2 // iin[2]
	applicationLen   = 1 // command[1]
)

// Sentinel errors for undersized layer bodies (spec.md §4.2).
var (
	ErrSessionTooShort      = errors.New("wire: session message shorter than 5 bytes")
	ErrPresentationTooShort = errors.New("wire: presentation message shorter than 2 bytes")
	ErrApplicationTooShort  = errors.New("wire: application message shorter than 1 byte")
)

// Session is the frame-payload-level message: a keyed MAC, a type tag,
// and an opaque body.
type Session struct {
	HMAC uint32
	Type MessageType
	Body []byte
}

// PackSession concatenates hmac[4] | type[1] | body into a frame payload.
func PackSession(hmac uint32, typ MessageType, body []byte) []byte {
	out := make([]byte, sessionHeaderLen+len(body))
	binary.BigEndian.PutUint32(out[0:4], hmac)
	out[4] = byte(typ)
	copy(out[5:], body)
	return out
}

// UnpackSession splits a frame payload into its session-layer fields.
func UnpackSession(b []byte) (Session, error) {
	if len(b) < sessionHeaderLen {
		return Session{}, ErrSessionTooShort
	}
	return Session{
		HMAC: binary.BigEndian.Uint32(b[0:4]),
		Type: MessageType(b[4]),
		Body: b[5:],
	}, nil
}

// Presentation is the REGULAR-body-level message: an IIN echo counter
// wrapping an application message.
type Presentation struct {
	IIN  uint16
	Body []byte
}

// PackPresentation concatenates iin[2 BE] | body.
func PackPresentation(iin uint16, body []byte) []byte {
	out := make([]byte, presentationLen+len(body))
	binary.BigEndian.PutUint16(out[0:2], iin)
	copy(out[2:], body)
	return out
}

// UnpackPresentation splits a REGULAR session body into IIN and the
// nested application bytes.
func UnpackPresentation(b []byte) (Presentation, error) {
	if len(b) < presentationLen {
		return Presentation{}, ErrPresentationTooShort
	}
	return Presentation{
		IIN:  binary.BigEndian.Uint16(b[0:2]),
		Body: b[2:],
	}, nil
}

// Application is the innermost message: a command byte and its body.
type Application struct {
	Command byte
	Body    []byte
}

// PackApplication concatenates cmd[1] | body.
func PackApplication(cmd byte, body []byte) []byte {
	out := make([]byte, applicationLen+len(body))
	out[0] = cmd
	copy(out[1:], body)
	return out
}

// UnpackApplication splits presentation body into command and body.
func UnpackApplication(b []byte) (Application, error) {
	if len(b) < applicationLen {
		return Application{}, ErrApplicationTooShort
	}
	return Application{
		Command: b[0],
		Body:    b[1:],
	}, nil
}
