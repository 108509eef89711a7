package voicecore

import "errors"

// Error taxonomy, grounded on the teacher's pkg/orchestrator/errors.go
// idiom: sentinel errors composed with fmt.Errorf("%w: ...") wrapping at
// the call site rather than bespoke error types.
var (
	// Configuration errors — raised synchronously at construction/Connect.
	ErrInvalidConfig     = errors.New("voicecore: invalid configuration")
	ErrMissingCredential = errors.New("voicecore: missing credential")

	// Connection errors — returned from Connect, or (for a failed Receive)
	// carried as the payload of a connection_error event, which terminates
	// the session.
	ErrAlreadyConnected = errors.New("voicecore: session already connected")
	ErrHandshakeTimeout = errors.New("voicecore: recognition handshake timed out")
	ErrTransportClosed  = errors.New("voicecore: transport closed unexpectedly")

	// Protocol errors — logged as warnings, offending message discarded,
	// session continues.
	ErrUnknownMessage   = errors.New("voicecore: unknown message type")
	ErrMalformedPayload = errors.New("voicecore: malformed message payload")

	// Session errors — surfaced via the error event and terminate the
	// session.
	ErrSessionTerminated = errors.New("voicecore: session terminated by server")

	// Resource errors — raised synchronously on the offending call.
	ErrUnsupportedSampleWidth = errors.New("voicecore: unsupported sample width")

	ErrNotConnected = errors.New("voicecore: session not connected")
)
