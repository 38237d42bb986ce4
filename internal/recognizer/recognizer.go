// Package recognizer defines the single-shot speech recognition boundary the
// session controller drives, plus the concrete backends that implement it.
//
// An Engine listens for exactly one utterance per Start. It reports progress
// through the Listener and then goes quiet until Start is called again.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Engine is a single-shot recognition backend.
type Engine interface {
	// Start begins one listening session. It must not block for the length of
	// the utterance; results are delivered to the Listener asynchronously.
	Start(ctx context.Context, cfg Config) error
	// Stop ends the current session early. Stopping an idle engine is a no-op.
	Stop() error
	// SetListener binds the callback surface. A nil listener detaches.
	SetListener(l Listener)
	// Close releases the engine. It cannot be restarted afterwards.
	Close() error
}

// Listener receives engine callbacks. Callbacks may arrive on any goroutine.
type Listener interface {
	OnReadyForSpeech()
	OnBeginningOfSpeech()
	OnAmplitude(db float32)
	OnEndOfSpeech()
	OnError(code ErrorCode)
	OnResults(candidates []string)
	OnPartialResults(candidates []string)
}

// LanguageModel selects the recognizer's language model.
type LanguageModel string

const (
	FreeForm  LanguageModel = "free_form"
	WebSearch LanguageModel = "web_search"
)

// Config is passed to every Start call.
type Config struct {
	LanguageModel   LanguageModel
	Language        string // BCP-47 tag, e.g. "en-US"
	PartialResults  bool
	MaxAlternatives int

	// CompleteSilence is the silence after which an utterance is considered
	// finished; PossiblyCompleteSilence the silence after which it may be.
	CompleteSilence         time.Duration
	PossiblyCompleteSilence time.Duration
	MinimumLength           time.Duration

	Formatting    bool // ask the backend for punctuation and capitalization
	DictationMode bool
}

func DefaultConfig() Config {
	return Config{
		LanguageModel:           FreeForm,
		Language:                "en-US",
		PartialResults:          true,
		MaxAlternatives:         1,
		CompleteSilence:         100 * time.Second,
		PossiblyCompleteSilence: 100 * time.Second,
		Formatting:              true,
		DictationMode:           true,
	}
}

// ErrorCode is a recognizer failure reported through Listener.OnError.
type ErrorCode int

const (
	ErrNetworkTimeout ErrorCode = iota + 1
	ErrNetwork
	ErrAudio
	ErrServer
	ErrClient
	ErrSpeechTimeout
	ErrNoMatch
	ErrBusy
	ErrInsufficientPermissions
	ErrTooManyRequests
	ErrServerDisconnected
	ErrLanguageNotSupported
	ErrLanguageUnavailable
)

var errorCodeNames = map[ErrorCode]string{
	ErrNetworkTimeout:          "network_timeout",
	ErrNetwork:                 "network",
	ErrAudio:                   "audio",
	ErrServer:                  "server",
	ErrClient:                  "client",
	ErrSpeechTimeout:           "speech_timeout",
	ErrNoMatch:                 "no_match",
	ErrBusy:                    "busy",
	ErrInsufficientPermissions: "insufficient_permissions",
	ErrTooManyRequests:         "too_many_requests",
	ErrServerDisconnected:      "server_disconnected",
	ErrLanguageNotSupported:    "language_not_supported",
	ErrLanguageUnavailable:     "language_unavailable",
}

func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(c))
}

// ParseErrorCode maps a wire name back to an ErrorCode. Unknown names yield
// ErrClient so the caller still gets a code to classify.
func ParseErrorCode(name string) ErrorCode {
	for code, n := range errorCodeNames {
		if n == name {
			return code
		}
	}
	return ErrClient
}

// First returns the top candidate or "".
func First(candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	return candidates[0]
}

// ErrEngineClosed is returned by Start after Close.
var ErrEngineClosed = errors.New("recognition engine closed")
