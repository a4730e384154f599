package device

import "errors"

// Sentinel errors returned by Session.Serve and its helpers.
var (
	ErrHandshakeRejected = errors.New("device: handshake concluded without a shared secret")
)
