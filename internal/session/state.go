package session

import (
	"fmt"

	"github.com/andlab/doctas/internal/gateway"
)

// State is the observable projection of the session for presentation.
// It is not the same as the desired flag: the engine can be between
// utterances while the state still reads Listening.
type State int

const (
	Idle State = iota
	Listening
	Processing
	Success
	Error
)

var stateNames = []string{"idle", "listening", "processing", "success", "error"}

// States lists every state in declaration order.
func States() []State {
	return []State{Idle, Listening, Processing, Success, Error}
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", string(b))
}

// Reason explains why the session is in the Error state.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonConnectivity Reason = "connectivity"
	ReasonExhausted    Reason = "exhausted"
	ReasonSubmission   Reason = "submission"
)

// Snapshot is a consistent read of everything presentation needs.
type Snapshot struct {
	State       State           `json:"state"`
	Desired     bool            `json:"desired"`
	Transcript  string          `json:"transcript"`
	Partial     string          `json:"partial,omitempty"`
	Display     string          `json:"display"`
	Amplitude   float32         `json:"amplitude"`
	Record      *gateway.Record `json:"record,omitempty"`
	ErrorStreak int             `json:"error_streak"`
	LastError   string          `json:"last_error,omitempty"`
	Reason      Reason          `json:"reason,omitempty"`
	Failure     string          `json:"failure,omitempty"`
}

// Observer is told about every state transition. It runs on the
// controller's goroutine and must not block or call back into the controller
// synchronously.
type Observer interface {
	StateChanged(from, to State, snap Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(from, to State, snap Snapshot)

func (f ObserverFunc) StateChanged(from, to State, snap Snapshot) {
	f(from, to, snap)
}
