package agent

// State is the agent's connection state.
type State string

const (
	StateConnecting   State = "connecting"
	StateOpen         State = "open"
	StateReconnecting State = "reconnecting"
	StateClosed       State = "closed"
)

// Event drives the state machine.
type Event string

const (
	// EventDialed means a connection was established.
	EventDialed Event = "dialed"
	// EventDialFailed means a connection attempt failed.
	EventDialFailed Event = "dial_failed"
	// EventLost means an open connection dropped.
	EventLost Event = "lost"
	// EventResumed means the server answered reconnect_ok.
	EventResumed Event = "resumed"
	// EventReset means the server answered reconnect_failed.
	EventReset Event = "reset"
	// EventLeft means the user ended the session.
	EventLeft Event = "left"
	// EventExhausted means reconnect attempts ran out.
	EventExhausted Event = "exhausted"
)

// AllStates returns every state.
func AllStates() []State {
	return []State{StateConnecting, StateOpen, StateReconnecting, StateClosed}
}

// AllEvents returns every event.
func AllEvents() []Event {
	return []Event{EventDialed, EventDialFailed, EventLost, EventResumed, EventReset, EventLeft, EventExhausted}
}

var transitions = map[State]map[Event]State{
	StateConnecting: {
		EventDialed:     StateOpen,
		EventDialFailed: StateClosed,
		EventLeft:       StateClosed,
	},
	StateOpen: {
		EventLost:    StateReconnecting,
		EventResumed: StateOpen,
		EventReset:   StateOpen,
		EventLeft:    StateClosed,
	},
	StateReconnecting: {
		EventDialed:     StateOpen,
		EventDialFailed: StateReconnecting,
		EventLeft:       StateClosed,
		EventExhausted:  StateClosed,
	},
	StateClosed: {},
}

// Transition returns the state after e. ok is false when the pair has no
// entry, in which case next is s.
func Transition(s State, e Event) (next State, ok bool) {
	next, ok = transitions[s][e]
	if !ok {
		return s, false
	}
	return next, true
}
