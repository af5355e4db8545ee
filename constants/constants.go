package constants

const (
	// ProtocolVersion is bumped whenever the wire format changes
	// incompatibly. Clients carrying a different version are refused
	// at join time.
	ProtocolVersion = 1

	// MaxNameLen bounds the requested name in a Join message.
	MaxNameLen = 32
)

// Client session states.
const (
	SessionConnecting = iota
	SessionJoined
	SessionActive
	SessionDisconnected
)
