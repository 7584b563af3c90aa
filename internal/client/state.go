package client

// State is a client session's lifecycle position.
type State int32

// Dial returns sessions already in StateHandshaking. StateConnecting is the
// zero value and only describes the TCP connect inside Dial, which no caller
// holds a Session for.
const (
	StateConnecting State = iota
	StateHandshaking
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
