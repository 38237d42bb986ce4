package testutil

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/andlab/doctas/internal/gateway"
	"github.com/andlab/doctas/internal/recognizer"
)

// CreateTempConfigFile creates a temporary config file for testing
func CreateTempConfigFile(t *testing.T, configContent string) string {
	t.Helper()

	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.toml")

	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("Failed to create temp config file: %v", err)
	}

	return configPath
}

// TestContext returns a context with timeout for testing
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// WaitForCondition waits for a condition to be true or times out
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			t.Fatalf("Condition not met within %v", timeout)
		default:
			if condition() {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}
}

// CaptureOutput captures stdout for testing
func CaptureOutput(t *testing.T, fn func()) string {
	t.Helper()

	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	out, _ := io.ReadAll(r)
	return string(out)
}

// MockEngine implements recognizer.Engine. Tests drive the bound listener
// with scripted callbacks; the mock itself never emits anything.
type MockEngine struct {
	StartError error
	StopError  error
	CloseError error

	mu       sync.Mutex
	listener recognizer.Listener
	configs  []recognizer.Config
	stops    int
	closed   bool
	active   bool
}

func NewMockEngine() *MockEngine {
	return &MockEngine{}
}

func (m *MockEngine) Start(ctx context.Context, cfg recognizer.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return recognizer.ErrEngineClosed
	}
	if m.StartError != nil {
		return m.StartError
	}
	m.configs = append(m.configs, cfg)
	m.active = true
	return nil
}

func (m *MockEngine) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	m.active = false
	return m.StopError
}

func (m *MockEngine) SetListener(l recognizer.Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listener = l
}

func (m *MockEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.active = false
	return m.CloseError
}

func (m *MockEngine) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.configs)
}

func (m *MockEngine) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

func (m *MockEngine) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Active reports whether a session was started and not yet stopped or ended
// by a terminal callback.
func (m *MockEngine) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// LastConfig returns the config of the most recent Start.
func (m *MockEngine) LastConfig() recognizer.Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.configs) == 0 {
		return recognizer.Config{}
	}
	return m.configs[len(m.configs)-1]
}

func (m *MockEngine) HasListener() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listener != nil
}

// with runs fn against the bound listener outside the lock.
func (m *MockEngine) with(terminal bool, fn func(recognizer.Listener)) {
	m.mu.Lock()
	l := m.listener
	if terminal {
		m.active = false
	}
	m.mu.Unlock()
	if l != nil {
		fn(l)
	}
}

func (m *MockEngine) Ready() {
	m.with(false, func(l recognizer.Listener) { l.OnReadyForSpeech() })
}

func (m *MockEngine) BeginSpeech() {
	m.with(false, func(l recognizer.Listener) { l.OnBeginningOfSpeech() })
}

func (m *MockEngine) Amplitude(db float32) {
	m.with(false, func(l recognizer.Listener) { l.OnAmplitude(db) })
}

func (m *MockEngine) EndSpeech() {
	m.with(false, func(l recognizer.Listener) { l.OnEndOfSpeech() })
}

func (m *MockEngine) Partial(candidates ...string) {
	m.with(false, func(l recognizer.Listener) { l.OnPartialResults(candidates) })
}

func (m *MockEngine) Results(candidates ...string) {
	m.with(true, func(l recognizer.Listener) { l.OnResults(candidates) })
}

func (m *MockEngine) Error(code recognizer.ErrorCode) {
	m.with(true, func(l recognizer.Listener) { l.OnError(code) })
}

// MockGateway implements gateway.Gateway. When Release is non-nil, Submit
// blocks until it is closed or the context ends.
type MockGateway struct {
	Record  gateway.Record
	Err     error
	Release chan struct{}

	mu    sync.Mutex
	texts []string
}

func NewMockGateway(rec gateway.Record) *MockGateway {
	return &MockGateway{Record: rec}
}

func (m *MockGateway) Submit(ctx context.Context, text string) (gateway.Record, error) {
	m.mu.Lock()
	m.texts = append(m.texts, text)
	release := m.Release
	m.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return gateway.Record{}, ctx.Err()
		}
	}
	if m.Err != nil {
		return gateway.Record{}, m.Err
	}
	return m.Record, nil
}

func (m *MockGateway) Submitted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]string, len(m.texts))
	copy(result, m.texts)
	return result
}

// ManualScheduler collects delayed callbacks until the test fires them.
type ManualScheduler struct {
	mu      sync.Mutex
	pending []scheduled
}

type scheduled struct {
	delay time.Duration
	fn    func()
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// Schedule matches the func(time.Duration, func()) scheduler shape.
func (s *ManualScheduler) Schedule(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, scheduled{delay: d, fn: fn})
}

// Pending returns the delays waiting to fire, shortest first.
func (s *ManualScheduler) Pending() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	delays := make([]time.Duration, len(s.pending))
	for i, p := range s.pending {
		delays[i] = p.delay
	}
	sort.Slice(delays, func(i, j int) bool { return delays[i] < delays[j] })
	return delays
}

// FireAll runs every pending callback in scheduling order and reports how
// many ran.
func (s *ManualScheduler) FireAll() int {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, p := range pending {
		p.fn()
	}
	return len(pending)
}
