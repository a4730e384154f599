package handshake

// This file implements the handshake finite state machine as a pure
// function over a transition table, in the same style as the BFD
// session FSM it is grounded on: no I/O, no crypto, just phase bookkeeping.
// The driver (server.go, client.go) performs the actual cryptographic
// verification and decides which Event to feed in.

// Phase is a handshake progress marker. Server and client share the
// same enumeration; each role only ever occupies a subset of phases.
type Phase uint8

const (
	// PhaseAwaitingHello is the server's initial phase: waiting for the
	// client's HELLO.
	PhaseAwaitingHello Phase = iota

	// PhaseAwaitingChallenge is the client's initial phase after sending
	// HELLO: waiting for the server's CHALLENGE.
	PhaseAwaitingChallenge

	// PhaseAwaitingClientAuth is the server's phase after sending
	// CHALLENGE: waiting for CLIENT_AUTH.
	PhaseAwaitingClientAuth

	// PhaseAuthenticated is the terminal success phase for both roles.
	PhaseAuthenticated

	// PhaseClosed is the terminal failure phase: the handshake has been
	// abandoned (bad auth tag, malformed message, or timeout).
	PhaseClosed
)

// String returns a human-readable phase name.
func (p Phase) String() string {
	switch p {
	case PhaseAwaitingHello:
		return "AwaitingHello"
	case PhaseAwaitingChallenge:
		return "AwaitingChallenge"
	case PhaseAwaitingClientAuth:
		return "AwaitingClientAuth"
	case PhaseAuthenticated:
		return "Authenticated"
	case PhaseClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Event represents a handshake FSM event.
type Event uint8

const (
	// EventRecvHello fires when the server receives a HELLO message.
	EventRecvHello Event = iota

	// EventRecvChallenge fires when the client receives a CHALLENGE message.
	EventRecvChallenge

	// EventAuthOK fires when the peer's authenticator verifies.
	EventAuthOK

	// EventAuthFailed fires when the peer's authenticator does not verify,
	// or the message is malformed.
	EventAuthFailed

	// EventTimeout fires when the per-phase deadline elapses.
	EventTimeout
)

// String returns a human-readable event name.
func (e Event) String() string {
	switch e {
	case EventRecvHello:
		return "RecvHello"
	case EventRecvChallenge:
		return "RecvChallenge"
	case EventAuthOK:
		return "AuthOK"
	case EventAuthFailed:
		return "AuthFailed"
	case EventTimeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// Action represents a side effect the driver must perform after a
// transition. The FSM itself never performs I/O or crypto.
type Action uint8

const (
	// ActionSendChallenge tells the server driver to emit a CHALLENGE message.
	ActionSendChallenge Action = iota + 1

	// ActionSendClientAuth tells the client driver to emit a CLIENT_AUTH message.
	ActionSendClientAuth

	// ActionDeriveSharedSecret tells the driver to compute the DH shared secret.
	ActionDeriveSharedSecret

	// ActionClose tells the driver to tear down the connection.
	ActionClose
)

// String returns a human-readable action name.
func (a Action) String() string {
	switch a {
	case ActionSendChallenge:
		return "SendChallenge"
	case ActionSendClientAuth:
		return "SendClientAuth"
	case ActionDeriveSharedSecret:
		return "DeriveSharedSecret"
	case ActionClose:
		return "Close"
	default:
		return "Unknown"
	}
}

// phaseEvent is the FSM transition table key.
type phaseEvent struct {
	phase Phase
	event Event
}

// transition describes the target phase and side effects of a single
// FSM step.
type transition struct {
	newPhase Phase
	actions  []Action
}

// Result holds the outcome of applying an event to the FSM.
type Result struct {
	OldPhase Phase
	NewPhase Phase
	Actions  []Action
	Changed  bool
}

// table is the complete handshake transition table for both roles.
// Unlisted (phase, event) pairs are ignored: the phase does not change
// and no actions are produced.
var table = map[phaseEvent]transition{
	// Server: HELLO received -> send CHALLENGE, derive the shared secret,
	// move on to awaiting the client's authenticator.
	{PhaseAwaitingHello, EventRecvHello}: {
		newPhase: PhaseAwaitingClientAuth,
		actions:  []Action{ActionDeriveSharedSecret, ActionSendChallenge},
	},

	// Server: CLIENT_AUTH verified -> authenticated.
	{PhaseAwaitingClientAuth, EventAuthOK}: {
		newPhase: PhaseAuthenticated,
		actions:  nil,
	},

	// Server: CLIENT_AUTH failed to verify, or malformed -> closed.
	{PhaseAwaitingClientAuth, EventAuthFailed}: {
		newPhase: PhaseClosed,
		actions:  []Action{ActionClose},
	},

	// Server: no CLIENT_AUTH before the deadline -> closed.
	{PhaseAwaitingClientAuth, EventTimeout}: {
		newPhase: PhaseClosed,
		actions:  []Action{ActionClose},
	},

	// Server: no HELLO before the deadline -> closed.
	{PhaseAwaitingHello, EventTimeout}: {
		newPhase: PhaseClosed,
		actions:  []Action{ActionClose},
	},

	// Client: CHALLENGE's authenticator verified -> derive the shared
	// secret and send CLIENT_AUTH.
	{PhaseAwaitingChallenge, EventAuthOK}: {
		newPhase: PhaseAuthenticated,
		actions:  []Action{ActionDeriveSharedSecret, ActionSendClientAuth},
	},

	// Client: CHALLENGE's authenticator failed to verify -> closed.
	{PhaseAwaitingChallenge, EventAuthFailed}: {
		newPhase: PhaseClosed,
		actions:  []Action{ActionClose},
	},

	// Client: no CHALLENGE before the deadline -> closed.
	{PhaseAwaitingChallenge, EventTimeout}: {
		newPhase: PhaseClosed,
		actions:  []Action{ActionClose},
	},
}

// Apply looks up the transition for (phase, event) and returns the result.
// An unlisted pair leaves the phase unchanged with no actions.
func Apply(phase Phase, event Event) Result {
	tr, ok := table[phaseEvent{phase: phase, event: event}]
	if !ok {
		return Result{
			OldPhase: phase,
			NewPhase: phase,
			Actions:  nil,
			Changed:  false,
		}
	}

	return Result{
		OldPhase: phase,
		NewPhase: tr.newPhase,
		Actions:  tr.actions,
		Changed:  phase != tr.newPhase,
	}
}
