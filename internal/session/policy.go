package session

import (
	"time"

	"github.com/andlab/doctas/internal/recognizer"
	"github.com/andlab/doctas/internal/transcript"
)

// Class groups recognizer error codes by how the session recovers from them.
type Class int

const (
	// Transient errors mean nothing was heard. They are retried quietly.
	Transient Class = iota
	// Connectivity errors are surfaced immediately.
	Connectivity
	// Other errors are retried optimistically.
	Other
)

func (c Class) String() string {
	switch c {
	case Transient:
		return "transient"
	case Connectivity:
		return "connectivity"
	default:
		return "other"
	}
}

// Classify maps a recognizer error code to its recovery class.
func Classify(code recognizer.ErrorCode) Class {
	switch code {
	case recognizer.ErrNoMatch, recognizer.ErrSpeechTimeout:
		return Transient
	case recognizer.ErrNetwork, recognizer.ErrNetworkTimeout, recognizer.ErrServer:
		return Connectivity
	default:
		return Other
	}
}

// Action is what the controller does after a session ends.
type Action int

const (
	RetryImmediately Action = iota
	RetryAfterDelay
	StopAndSurface
	StopHard
)

func (a Action) String() string {
	switch a {
	case RetryImmediately:
		return "retry-immediately"
	case RetryAfterDelay:
		return "retry-after-delay"
	case StopAndSurface:
		return "stop-and-surface"
	case StopHard:
		return "stop-hard"
	default:
		return "unknown"
	}
}

// Decision is one row of the restart policy table.
type Decision struct {
	Action Action
	Delay  time.Duration
}

// Policy holds the tunables of the continuous listening loop.
type Policy struct {
	// ErrorThreshold consecutive errors force a hard stop.
	ErrorThreshold int
	// AfterResult is the pause between a final result and the next session.
	AfterResult    time.Duration
	TransientDelay time.Duration
	OtherDelay     time.Duration
	// Partials no longer than MinPartialLength characters are treated as noise.
	MinPartialLength int
	// Amplitude readings at or below AmplitudeFloor are reported as silence.
	AmplitudeFloor float32
	Transcript     transcript.Policy
}

func DefaultPolicy() Policy {
	return Policy{
		ErrorThreshold:   3,
		AfterResult:      400 * time.Millisecond,
		TransientDelay:   800 * time.Millisecond,
		OtherDelay:       500 * time.Millisecond,
		MinPartialLength: 2,
		AmplitudeFloor:   -2.0,
		Transcript:       transcript.DefaultPolicy,
	}
}

// OnResult decides what follows a final result while listening is desired.
func (p Policy) OnResult() Decision {
	return retryAfter(p.AfterResult)
}

// OnError decides what follows error code given streak, the number of
// consecutive errors including this one.
func (p Policy) OnError(code recognizer.ErrorCode, streak int) Decision {
	if p.ErrorThreshold > 0 && streak >= p.ErrorThreshold {
		return Decision{Action: StopHard}
	}
	switch Classify(code) {
	case Connectivity:
		return Decision{Action: StopAndSurface}
	case Transient:
		return retryAfter(p.TransientDelay)
	default:
		return retryAfter(p.OtherDelay)
	}
}

func retryAfter(d time.Duration) Decision {
	if d <= 0 {
		return Decision{Action: RetryImmediately}
	}
	return Decision{Action: RetryAfterDelay, Delay: d}
}

// Scheduler runs f once after d without blocking the caller.
type Scheduler func(d time.Duration, f func())

// AfterFunc is the production Scheduler.
func AfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, f)
}
