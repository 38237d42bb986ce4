package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/andlab/doctas/internal/gateway"
	"github.com/andlab/doctas/internal/recognizer"
	"github.com/andlab/doctas/internal/testutil"
)

type harness struct {
	c     *Controller
	eng   *testutil.MockEngine
	gw    *testutil.MockGateway
	sched *testutil.ManualScheduler
}

func newHarness(t *testing.T, configure ...func(*Config)) *harness {
	t.Helper()

	h := &harness{
		eng:   testutil.NewMockEngine(),
		gw:    testutil.NewMockGateway(gateway.Record{}),
		sched: testutil.NewManualScheduler(),
	}
	cfg := Config{Scheduler: h.sched.Schedule}
	for _, fn := range configure {
		fn(&cfg)
	}
	h.c = New(h.eng, h.gw, cfg)
	t.Cleanup(func() { h.c.Close() })
	return h
}

func (h *harness) snap(t *testing.T) Snapshot {
	t.Helper()
	s, err := h.c.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}
	return s
}

// fire drains the mailbox, runs every pending restart and waits for them.
func (h *harness) fire(t *testing.T) {
	t.Helper()
	h.snap(t)
	h.sched.FireAll()
	h.snap(t)
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.c.RequestStart(); err != nil {
		t.Fatalf("RequestStart() error: %v", err)
	}
}

func (h *harness) waitState(t *testing.T, want State) Snapshot {
	t.Helper()
	var last Snapshot
	testutil.WaitForCondition(t, func() bool {
		last = h.snap(t)
		return last.State == want
	}, 2*time.Second)
	return last
}

func TestDictationScenario(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	s := h.snap(t)
	if s.State != Listening || !s.Desired {
		t.Fatalf("after start: state=%s desired=%v", s.State, s.Desired)
	}
	if h.eng.Starts() != 1 {
		t.Fatalf("engine starts = %d, want 1", h.eng.Starts())
	}

	h.eng.Ready()
	h.eng.Partial("patient")
	if s := h.snap(t); s.Partial != "patient" || s.Display != "patient" || s.Transcript != "" {
		t.Fatalf("after partial: %+v", s)
	}

	h.eng.Results("Patient presents with fever.")
	s = h.snap(t)
	if s.Transcript != "Patient presents with fever." || s.Partial != "" {
		t.Fatalf("after first result: %+v", s)
	}
	if got := h.sched.Pending(); len(got) != 1 || got[0] != 400*time.Millisecond {
		t.Fatalf("pending restarts = %v, want [400ms]", got)
	}

	h.fire(t)
	if h.eng.Starts() != 2 {
		t.Fatalf("engine starts after restart = %d, want 2", h.eng.Starts())
	}

	h.eng.Results("BP is stable")
	s = h.snap(t)
	if want := "Patient presents with fever. BP is stable"; s.Transcript != want {
		t.Errorf("transcript = %q, want %q", s.Transcript, want)
	}
	if s.State != Listening || !s.Desired {
		t.Errorf("session should keep listening: %+v", s)
	}
}

func TestErrorStreakStopsHard(t *testing.T) {
	sequences := [][]recognizer.ErrorCode{
		{recognizer.ErrNoMatch, recognizer.ErrNoMatch, recognizer.ErrNoMatch},
		{recognizer.ErrAudio, recognizer.ErrNoMatch, recognizer.ErrClient},
		{recognizer.ErrSpeechTimeout, recognizer.ErrBusy, recognizer.ErrNoMatch},
		{recognizer.ErrBusy, recognizer.ErrBusy, recognizer.ErrNetwork},
	}

	for _, seq := range sequences {
		t.Run(seq[0].String()+"_"+seq[1].String()+"_"+seq[2].String(), func(t *testing.T) {
			h := newHarness(t)
			h.start(t)

			for i, code := range seq {
				h.eng.Error(code)
				s := h.snap(t)
				if i < len(seq)-1 {
					if s.State != Listening || !s.Desired || s.ErrorStreak != i+1 {
						t.Fatalf("after error %d: %+v", i+1, s)
					}
					h.fire(t)
					if h.eng.Starts() != i+2 {
						t.Fatalf("engine starts = %d, want %d", h.eng.Starts(), i+2)
					}
				}
			}

			s := h.snap(t)
			if s.State != Error || s.Desired {
				t.Fatalf("after streak: state=%s desired=%v", s.State, s.Desired)
			}
			if s.Reason != ReasonExhausted || s.ErrorStreak != 0 {
				t.Errorf("reason=%q streak=%d", s.Reason, s.ErrorStreak)
			}
			if h.sched.FireAll() != 0 {
				t.Error("no restart should be pending after a hard stop")
			}
		})
	}
}

func TestResultResetsErrorStreak(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	h.eng.Error(recognizer.ErrNoMatch)
	h.fire(t)
	h.eng.Error(recognizer.ErrNoMatch)
	h.fire(t)
	h.eng.Results("heart rate seventy two")
	if s := h.snap(t); s.ErrorStreak != 0 {
		t.Fatalf("streak after result = %d", s.ErrorStreak)
	}
	h.fire(t)
	h.eng.Error(recognizer.ErrNoMatch)

	s := h.snap(t)
	if s.State != Listening || s.ErrorStreak != 1 {
		t.Errorf("a result should break the streak: %+v", s)
	}
}

func TestConnectivityErrorSurfaces(t *testing.T) {
	for _, code := range []recognizer.ErrorCode{recognizer.ErrNetwork, recognizer.ErrNetworkTimeout, recognizer.ErrServer} {
		t.Run(code.String(), func(t *testing.T) {
			h := newHarness(t)
			h.start(t)
			h.eng.Results("patient is stable")
			h.fire(t)

			h.eng.Error(code)
			s := h.snap(t)
			if s.State != Error || s.Desired || s.Reason != ReasonConnectivity {
				t.Fatalf("after %s: %+v", code, s)
			}
			if s.LastError != code.String() {
				t.Errorf("last error = %q", s.LastError)
			}
			if s.Transcript != "Patient is stable" {
				t.Errorf("transcript must survive errors, got %q", s.Transcript)
			}
			if len(h.sched.Pending()) != 0 {
				t.Error("connectivity errors must not schedule a restart")
			}
		})
	}
}

func TestLateCallbacksAfterStop(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	h.eng.Results("first note")
	h.fire(t)

	if err := h.c.RequestStop(); err != nil {
		t.Fatalf("RequestStop() error: %v", err)
	}
	before := h.snap(t)
	if before.State != Idle || before.Desired {
		t.Fatalf("after stop: %+v", before)
	}

	h.eng.Partial("late partial")
	h.eng.Amplitude(8)
	h.eng.Results("late result")
	h.eng.Error(recognizer.ErrNetwork)
	h.eng.Error(recognizer.ErrNoMatch)
	h.eng.Ready()

	after := h.snap(t)
	if after.State != before.State || after.Transcript != before.Transcript || after.Partial != "" || after.Amplitude != 0 {
		t.Errorf("late callbacks changed the session: before=%+v after=%+v", before, after)
	}
	if h.sched.FireAll() != 0 {
		t.Error("late callbacks must not schedule restarts")
	}
	if h.eng.Starts() != 2 {
		t.Errorf("engine starts = %d, want 2", h.eng.Starts())
	}
}

func TestStopDropsPendingRestart(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	h.eng.Error(recognizer.ErrNoMatch)
	h.snap(t)

	h.c.RequestStop()
	h.fire(t)
	s := h.snap(t)

	if h.eng.Starts() != 1 {
		t.Errorf("stale restart resurrected the session: starts=%d", h.eng.Starts())
	}
	if s.State != Idle || s.Desired {
		t.Errorf("state=%s desired=%v", s.State, s.Desired)
	}
}

func TestDuplicateResultsAreDebounced(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	h.eng.Results("pulse ox ninety eight")
	h.fire(t)
	h.eng.Results("pulse ox ninety eight")
	h.fire(t)
	h.eng.Results("  ")
	h.fire(t)
	h.eng.Results("no distress")

	s := h.snap(t)
	if want := "Pulse ox ninety eight no distress"; s.Transcript != want {
		t.Errorf("transcript = %q, want %q", s.Transcript, want)
	}
	if h.eng.Starts() != 4 {
		t.Errorf("every result should restart the engine: starts=%d", h.eng.Starts())
	}
}

func TestPartialFiltering(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	h.eng.Results("Temperature normal.")
	h.fire(t)

	h.eng.Partial("ok")
	if s := h.snap(t); s.Partial != "" {
		t.Fatalf("short partial accepted: %q", s.Partial)
	}

	h.eng.Partial("and then")
	s := h.snap(t)
	if s.Partial != "and then" || s.Display != "Temperature normal. and then" {
		t.Fatalf("partial not shown: %+v", s)
	}
	if s.Transcript != "Temperature normal." {
		t.Fatalf("partials must not touch the transcript: %q", s.Transcript)
	}

	h.eng.Partial()
	if s := h.snap(t); s.Partial != "and then" {
		t.Errorf("empty partial replaced the fragment: %q", s.Partial)
	}

	h.eng.Error(recognizer.ErrNoMatch)
	if s := h.snap(t); s.Partial != "" {
		t.Errorf("partial should clear when the session ends: %q", s.Partial)
	}
}

func TestAmplitudeFloor(t *testing.T) {
	h := newHarness(t)

	h.eng.Amplitude(6)
	if s := h.snap(t); s.Amplitude != 0 {
		t.Fatalf("amplitude recorded while idle: %v", s.Amplitude)
	}

	h.start(t)
	tests := []struct {
		in, want float32
	}{
		{6.5, 6.5},
		{-1.5, -1.5},
		{-2, 0},
		{-8, 0},
	}
	for _, tc := range tests {
		h.eng.Amplitude(tc.in)
		if s := h.snap(t); s.Amplitude != tc.want {
			t.Errorf("amplitude(%v) = %v, want %v", tc.in, s.Amplitude, tc.want)
		}
	}
}

func TestSubmitSuccess(t *testing.T) {
	name, hr := "A", "72"
	h := newHarness(t)
	h.gw.Record = gateway.Record{Name: &name, HeartRate: &hr}
	h.gw.Release = make(chan struct{})

	h.start(t)
	h.eng.Results("patient A heart rate 72")

	if err := h.c.Submit(); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	s := h.snap(t)
	if s.State != Processing || s.Desired {
		t.Fatalf("after submit: %+v", s)
	}
	if h.eng.Stops() == 0 {
		t.Error("submit should stop the engine")
	}
	h.fire(t)
	if h.eng.Starts() != 1 {
		t.Error("no restart may follow a submit")
	}

	if err := h.c.Submit(); !errors.Is(err, ErrSubmissionInFlight) {
		t.Errorf("second Submit() = %v, want ErrSubmissionInFlight", err)
	}
	if err := h.c.RequestStart(); !errors.Is(err, ErrSubmissionInFlight) {
		t.Errorf("RequestStart() while processing = %v, want ErrSubmissionInFlight", err)
	}

	close(h.gw.Release)
	s = h.waitState(t, Success)
	if s.Record == nil || *s.Record.Name != "A" || *s.Record.HeartRate != "72" || s.Record.Age != nil {
		t.Fatalf("record = %+v", s.Record)
	}
	if got := h.gw.Submitted(); len(got) != 1 || got[0] != "Patient A heart rate 72" {
		t.Errorf("submitted = %q", got)
	}

	if err := h.c.Dismiss(); err != nil {
		t.Fatalf("Dismiss() error: %v", err)
	}
	s = h.snap(t)
	if s.State != Idle || s.Record != nil {
		t.Errorf("after dismiss: %+v", s)
	}
	if s.Transcript == "" {
		t.Error("dismiss must not clear the transcript")
	}
}

func TestSubmitFailureKeepsTranscript(t *testing.T) {
	h := newHarness(t)
	h.gw.Err = errors.New("submission failed: unexpected status 502")

	h.start(t)
	h.eng.Results("spo2 ninety one")
	h.c.Submit()

	s := h.waitState(t, Error)
	if s.Reason != ReasonSubmission || s.Failure == "" {
		t.Errorf("reason=%q failure=%q", s.Reason, s.Failure)
	}
	if s.Transcript != "Spo2 ninety one" {
		t.Errorf("transcript lost on failed send: %q", s.Transcript)
	}

	h.gw.Err = nil
	if err := h.c.Submit(); err != nil {
		t.Fatalf("resubmit error: %v", err)
	}
	h.waitState(t, Success)
}

func TestSubmitEmptyTranscript(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	h.eng.Results("   ")

	if err := h.c.Submit(); !errors.Is(err, ErrEmptyTranscript) {
		t.Errorf("Submit() = %v, want ErrEmptyTranscript", err)
	}
	if s := h.snap(t); s.State != Listening {
		t.Errorf("rejected submit changed state to %s", s.State)
	}
}

func TestClearDuringProcessing(t *testing.T) {
	h := newHarness(t)
	h.gw.Release = make(chan struct{})

	h.start(t)
	h.eng.Results("age forty")
	h.c.Submit()

	if err := h.c.Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	close(h.gw.Release)
	time.Sleep(20 * time.Millisecond)

	s := h.snap(t)
	if s.State != Idle || s.Transcript != "" || s.Record != nil {
		t.Errorf("abandoned submission leaked into the session: %+v", s)
	}
	if err := h.c.RequestStart(); err != nil {
		t.Errorf("RequestStart() after clear: %v", err)
	}
}

func TestClearWhileListening(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	h.eng.Results("male")
	h.eng.Partial("fifty two")
	h.c.Clear()

	s := h.snap(t)
	if s.State != Idle || s.Desired || s.Transcript != "" || s.Partial != "" {
		t.Fatalf("after clear: %+v", s)
	}
	h.fire(t)
	if h.eng.Starts() != 1 {
		t.Error("pending restart survived clear")
	}
	h.eng.Results("late")
	if s := h.snap(t); s.Transcript != "" {
		t.Errorf("late result overwrote a cleared transcript: %q", s.Transcript)
	}
}

func TestEditTranscript(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	h.eng.Results("patient jon")
	h.c.EditTranscript("Patient John.")
	h.fire(t)
	h.eng.Results("patient jon")

	s := h.snap(t)
	if want := "Patient John. Patient jon"; s.Transcript != want {
		t.Errorf("transcript = %q, want %q", s.Transcript, want)
	}

	h.c.Submit()
	h.waitState(t, Success)
	if got := h.gw.Submitted(); got[0] != "Patient John. Patient jon" {
		t.Errorf("submitted = %q", got[0])
	}
}

func TestEditTranscriptKeepsTrailingWhitespace(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	h.c.EditTranscript("Patient John.\n")
	h.eng.Results("bp is stable")

	s := h.snap(t)
	if want := "Patient John.\nBp is stable"; s.Transcript != want {
		t.Errorf("transcript = %q, want %q", s.Transcript, want)
	}
}

func TestToggle(t *testing.T) {
	h := newHarness(t)

	on, err := h.c.Toggle()
	if err != nil || !on {
		t.Fatalf("Toggle() = %v, %v", on, err)
	}
	on, err = h.c.Toggle()
	if err != nil || on {
		t.Fatalf("second Toggle() = %v, %v", on, err)
	}
	if s := h.snap(t); s.State != Idle {
		t.Errorf("state = %s", s.State)
	}
}

func TestEngineStartFailureIsRetried(t *testing.T) {
	h := newHarness(t)
	h.eng.StartError = errors.New("microphone busy")

	h.start(t)
	s := h.snap(t)
	if s.State != Listening || s.ErrorStreak != 1 || s.LastError != recognizer.ErrClient.String() {
		t.Fatalf("after failed start: %+v", s)
	}
	if got := h.sched.Pending(); len(got) != 1 || got[0] != 500*time.Millisecond {
		t.Fatalf("pending = %v", got)
	}

	h.fire(t)
	h.fire(t)
	s = h.snap(t)
	if s.State != Error || s.Reason != ReasonExhausted {
		t.Errorf("persistent start failures should exhaust: %+v", s)
	}
}

func TestImmediateRestartPolicy(t *testing.T) {
	h := newHarness(t, func(cfg *Config) {
		cfg.Policy = DefaultPolicy()
		cfg.Policy.AfterResult = 0
	})
	h.start(t)
	h.eng.Results("stable")
	h.snap(t)

	if h.eng.Starts() != 2 {
		t.Errorf("starts = %d, want immediate restart", h.eng.Starts())
	}
	if len(h.sched.Pending()) != 0 {
		t.Error("immediate restart should not use the scheduler")
	}
}

func TestSetPolicyAndRecognizerConfig(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	p := DefaultPolicy()
	p.TransientDelay = 2 * time.Second
	h.c.SetPolicy(p)
	rc := recognizer.DefaultConfig()
	rc.Language = "de-DE"
	h.c.SetRecognizerConfig(rc)

	h.eng.Error(recognizer.ErrNoMatch)
	if got := h.sched.Pending(); len(got) != 1 || got[0] != 2*time.Second {
		t.Fatalf("pending = %v", got)
	}
	h.fire(t)
	if got := h.eng.LastConfig().Language; got != "de-DE" {
		t.Errorf("restart used language %q", got)
	}
}

func TestObserverSeesTransitions(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	h := newHarness(t, func(cfg *Config) {
		cfg.Observer = ObserverFunc(func(from, to State, snap Snapshot) {
			mu.Lock()
			defer mu.Unlock()
			if snap.State != to {
				t.Errorf("snapshot state %s does not match transition to %s", snap.State, to)
			}
			seen = append(seen, from.String()+">"+to.String())
		})
	})

	h.start(t)
	h.eng.Results("hello")
	h.c.Submit()
	h.waitState(t, Success)
	h.c.Dismiss()
	h.snap(t)

	mu.Lock()
	defer mu.Unlock()
	want := []string{"idle>listening", "listening>processing", "processing>success", "success>idle"}
	if len(seen) != len(want) {
		t.Fatalf("transitions = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, seen[i], want[i])
		}
	}
}

func TestClose(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	if err := h.c.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if !h.eng.Closed() || h.eng.HasListener() {
		t.Error("engine should be released and listener detached")
	}
	if h.eng.Stops() == 0 {
		t.Error("active session should be stopped on close")
	}
	if err := h.c.RequestStart(); !errors.Is(err, ErrClosed) {
		t.Errorf("RequestStart() after close = %v", err)
	}
	if _, err := h.c.Snapshot(); !errors.Is(err, ErrClosed) {
		t.Errorf("Snapshot() after close = %v", err)
	}
	if err := h.c.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

func TestCloseReportsEngineError(t *testing.T) {
	h := newHarness(t)
	h.eng.CloseError = errors.New("device busy")

	if err := h.c.Close(); err == nil {
		t.Error("expected engine close error")
	}
}
