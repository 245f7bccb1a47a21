package global

// State is where the client is in its connection lifecycle
type State int32

const (
	StateUninitialized State = iota
	StateInitialized
	StateConnected
	StateHandshakeInitiated
	StateHandshakeCompleted
	StateDisconnected
	StateDisconnectedButWorthRetrying
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateInitialized:
		return "Initialized"
	case StateConnected:
		return "Connected"
	case StateHandshakeInitiated:
		return "HandshakeInitiated"
	case StateHandshakeCompleted:
		return "HandshakeCompleted"
	case StateDisconnected:
		return "Disconnected"
	case StateDisconnectedButWorthRetrying:
		return "DisconnectedButWorthRetrying"
	default:
		return "Unknown"
	}
}

// SubmitRecordResult is what happened to a submitted record
type SubmitRecordResult int

const (
	// SubmitNotConnected means the API is unreachable for good
	SubmitNotConnected SubmitRecordResult = iota
	SubmitPlayerNotAuthenticated
	SubmitMapNotGlobal
	// SubmitQueued means the record goes out once the handshake completes
	SubmitQueued
	SubmitSubmitted
)

// String returns the string representation of the result
func (r SubmitRecordResult) String() string {
	switch r {
	case SubmitNotConnected:
		return "NotConnected"
	case SubmitPlayerNotAuthenticated:
		return "PlayerNotAuthenticated"
	case SubmitMapNotGlobal:
		return "MapNotGlobal"
	case SubmitQueued:
		return "Queued"
	case SubmitSubmitted:
		return "Submitted"
	default:
		return "Unknown"
	}
}
