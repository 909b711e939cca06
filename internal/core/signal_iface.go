package core

// Frame is a raw encoded message.
type Frame []byte

// CloseReason tells the transport which close code to put on the wire.
type CloseReason int

const (
	CloseNormal CloseReason = iota
	// CloseGoingAway is used for heartbeat and handshake timeouts.
	CloseGoingAway
	ClosePolicyViolation
	CloseInternalError
)

// Transport abstracts a persistent message channel to one client.
// Owned by the adapter; TrySend never blocks.
type Transport interface {
	TrySend(Frame) error
	// Ping sends a transport-level ping control frame. It may block for
	// up to the transport's write timeout.
	Ping() error
	// Close sends a close frame with the given reason and releases the
	// underlying connection. Safe to call more than once.
	Close(reason CloseReason, text string)
	RemoteAddr() string
}
