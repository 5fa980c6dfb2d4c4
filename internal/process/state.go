package process

// State is the lifecycle state of a launched process record.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StatePaused   State = "paused"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
	StateError    State = "error"
	StateKilled   State = "killed"
)

// Terminal reports whether no further transition may leave s.
func (s State) Terminal() bool {
	switch s {
	case StateStopped, StateError, StateKilled:
		return true
	}
	return false
}

func (s State) String() string { return string(s) }

// legal enumerates the allowed non-self transitions. Transition legality
// is enforced here centrally rather than by field checks at call sites.
var legal = map[State][]State{
	StateIdle:     {StateStarting},
	StateStarting: {StateRunning, StateStopping, StateStopped, StateError, StateKilled},
	StateRunning:  {StatePaused, StateStopping, StateStopped, StateError, StateKilled},
	StatePaused:   {StateRunning, StateStopping, StateStopped, StateError, StateKilled},
	StateStopping: {StateStopped, StateError, StateKilled},
}

// CanTransition reports whether from → to is a legal state change.
// Self transitions are allowed for non-terminal states so that repeated
// probe observations are not errors.
func CanTransition(from, to State) bool {
	if from == to {
		return !from.Terminal()
	}
	for _, t := range legal[from] {
		if t == to {
			return true
		}
	}
	return false
}
