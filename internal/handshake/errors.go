package handshake

import "errors"

// Sentinel errors returned by the driver types in server.go and client.go.
var (
	ErrUnexpectedMessage   = errors.New("handshake: unexpected message type for current phase")
	ErrMalformedHello      = errors.New("handshake: HELLO body too short")
	ErrMalformedChallenge  = errors.New("handshake: CHALLENGE body too short")
	ErrMalformedClientAuth = errors.New("handshake: CLIENT_AUTH body too short")
	ErrAuthFailed          = errors.New("handshake: authenticator verification failed")
	ErrHandshakeClosed     = errors.New("handshake: driven after the handshake already concluded")
	ErrHandshakeTimeout    = errors.New("handshake: deadline elapsed before the peer responded")
)
