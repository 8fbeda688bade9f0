package client

// ConnectionState represents the current state of the client's connection.
type ConnectionState int

const (
	// StateDisconnected means the client is not connected. A reconnect may
	// already be scheduled.
	StateDisconnected ConnectionState = iota

	// StateConnecting means the client is establishing a connection.
	StateConnecting

	// StateConnected means the client is connected and ready.
	StateConnected

	// StateReconnectFailed means automatic reconnection gave up after the
	// configured number of attempts. Only ManualReconnect leaves this state.
	StateReconnectFailed

	// StateClosed means the client was explicitly closed by the caller.
	StateClosed
)

// String returns the string representation of a ConnectionState.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnectFailed:
		return "reconnect_failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// StateChange is emitted on the States channel whenever the connection
// moves between states.
type StateChange struct {
	Old ConnectionState
	New ConnectionState

	// Err is the error that caused the transition, if any.
	Err error
}
