package session

import (
	"testing"
	"time"

	"github.com/andlab/doctas/internal/recognizer"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		code recognizer.ErrorCode
		want Class
	}{
		{recognizer.ErrNoMatch, Transient},
		{recognizer.ErrSpeechTimeout, Transient},
		{recognizer.ErrNetwork, Connectivity},
		{recognizer.ErrNetworkTimeout, Connectivity},
		{recognizer.ErrServer, Connectivity},
		{recognizer.ErrAudio, Other},
		{recognizer.ErrClient, Other},
		{recognizer.ErrBusy, Other},
		{recognizer.ErrInsufficientPermissions, Other},
		{recognizer.ErrorCode(99), Other},
	}

	for _, tc := range tests {
		t.Run(tc.code.String(), func(t *testing.T) {
			if got := Classify(tc.code); got != tc.want {
				t.Errorf("Classify(%s) = %s, want %s", tc.code, got, tc.want)
			}
		})
	}
}

func TestPolicyOnError(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name   string
		code   recognizer.ErrorCode
		streak int
		want   Decision
	}{
		{"no match retries late", recognizer.ErrNoMatch, 1, Decision{RetryAfterDelay, 800 * time.Millisecond}},
		{"speech timeout retries late", recognizer.ErrSpeechTimeout, 2, Decision{RetryAfterDelay, 800 * time.Millisecond}},
		{"unknown retries sooner", recognizer.ErrAudio, 1, Decision{RetryAfterDelay, 500 * time.Millisecond}},
		{"network surfaces", recognizer.ErrNetwork, 1, Decision{Action: StopAndSurface}},
		{"server surfaces", recognizer.ErrServer, 2, Decision{Action: StopAndSurface}},
		{"threshold stops hard", recognizer.ErrNoMatch, 3, Decision{Action: StopHard}},
		{"threshold wins over connectivity", recognizer.ErrNetwork, 3, Decision{Action: StopHard}},
		{"beyond threshold", recognizer.ErrAudio, 7, Decision{Action: StopHard}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := p.OnError(tc.code, tc.streak); got != tc.want {
				t.Errorf("OnError(%s, %d) = %+v, want %+v", tc.code, tc.streak, got, tc.want)
			}
		})
	}
}

func TestPolicyZeroDelays(t *testing.T) {
	p := Policy{ErrorThreshold: 3}

	if got := p.OnResult(); got.Action != RetryImmediately {
		t.Errorf("OnResult() = %s, want retry-immediately", got.Action)
	}
	if got := p.OnError(recognizer.ErrNoMatch, 1); got.Action != RetryImmediately {
		t.Errorf("OnError() = %s, want retry-immediately", got.Action)
	}
}

func TestPolicyWithoutThreshold(t *testing.T) {
	p := DefaultPolicy()
	p.ErrorThreshold = 0

	if got := p.OnError(recognizer.ErrNoMatch, 100); got.Action != RetryAfterDelay {
		t.Errorf("OnError() = %s, want retry-after-delay", got.Action)
	}
}

func TestStateText(t *testing.T) {
	for _, s := range States() {
		b, err := s.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%s): %v", s, err)
		}
		var back State
		if err := back.UnmarshalText(b); err != nil {
			t.Fatalf("UnmarshalText(%s): %v", b, err)
		}
		if back != s {
			t.Errorf("round trip %s -> %s", s, back)
		}
	}

	var s State
	if err := s.UnmarshalText([]byte("dancing")); err == nil {
		t.Error("expected error for unknown state")
	}
}
