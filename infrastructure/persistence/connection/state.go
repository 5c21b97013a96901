package connection

// State is the health of the database connection. The numbering is the one
// reported to clients as readyState.
type State int

const (
	Disconnected  State = 0
	Connected     State = 1
	Connecting    State = 2
	Disconnecting State = 3
)

// String returns the lower-case name of the state.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Connecting:
		return "connecting"
	case Disconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// Usable reports whether requests may run against a connection in this state.
func (s State) Usable() bool {
	return s == Connected
}
