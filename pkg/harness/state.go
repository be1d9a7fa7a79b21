package harness

// State is a point in a session's lifecycle:
// Idle → SessionOpen → Navigated → (Interacted → Asserted)* → Captured → SessionClosed.
// A failing step jumps straight to SessionClosed through teardown.
type State int

const (
	StateIdle State = iota
	StateSessionOpen
	StateNavigated
	StateInteracted
	StateAsserted
	StateCaptured
	StateSessionClosed
)

var stateNames = map[State]string{
	StateIdle:          "Idle",
	StateSessionOpen:   "SessionOpen",
	StateNavigated:     "Navigated",
	StateInteracted:    "Interacted",
	StateAsserted:      "Asserted",
	StateCaptured:      "Captured",
	StateSessionClosed: "SessionClosed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "Unknown"
}

func (s *Session) transition(to State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.history); n > 0 && s.history[n-1] == to {
		return
	}
	s.history = append(s.history, to)
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history[len(s.history)-1]
}

// History returns every state the session went through, without repeats of
// consecutive states.
func (s *Session) History() []State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]State(nil), s.history...)
}
