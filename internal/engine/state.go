package engine

// State is the actor's lifecycle state.
type State int32

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateProcessing
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateProcessing:
		return "processing"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Serving reports whether the actor can accept word submissions.
func (s State) Serving() bool {
	return s == StateReady || s == StateProcessing
}
