package session

// State is a session's position in its lifecycle.
//
//	         create()
//	(none) ───────────► Active
//	Active ──close(keepAlive)──► Detached
//	Active|Detached ──close(kill) or exit──► Terminated
//	Detached ──reattach──► Active
//
// Terminated has no transitions out; terminated sessions leave the registry.
type State int

const (
	StateActive State = iota
	StateDetached
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateDetached:
		return "detached"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
