package session

// State is the lifecycle state of a Session.
type State int

// Session states.
const (
	StateDisconnected State = iota
	StateAwaitingBirth
	StateLive
	StateDead
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateAwaitingBirth:
		return "awaiting_birth"
	case StateLive:
		return "live"
	case StateDead:
		return "dead"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further operation is possible in s.
func (s State) Terminal() bool {
	return s == StateDead || s == StateFailed
}
