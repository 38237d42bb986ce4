package recognizer

import (
	"context"
	"sync"
	"time"

	"github.com/andlab/doctas/internal/recording"
)

// fakeSource emits the configured frames and then idles until stopped.
type fakeSource struct {
	mu       sync.Mutex
	frames   [][]byte
	startErr error
	stopCh   chan struct{}
	starts   int
}

func (f *fakeSource) Start(ctx context.Context) (<-chan recording.Frame, <-chan error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, nil, f.startErr
	}
	f.starts++
	stop := make(chan struct{})
	f.stopCh = stop

	frameCh := make(chan recording.Frame, len(f.frames))
	errCh := make(chan error)
	for _, data := range f.frames {
		frameCh <- recording.Frame{Data: data, Timestamp: time.Now()}
	}
	go func() {
		defer close(frameCh)
		defer close(errCh)
		select {
		case <-ctx.Done():
		case <-stop:
		}
	}()
	return frameCh, errCh, nil
}

func (f *fakeSource) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopCh != nil {
		close(f.stopCh)
		f.stopCh = nil
	}
	return nil
}

func (f *fakeSource) Starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

// event is one recorded listener callback.
type event struct {
	kind       string
	code       ErrorCode
	candidates []string
	db         float32
}

type recordingListener struct {
	ch chan event
}

func newRecordingListener() *recordingListener {
	return &recordingListener{ch: make(chan event, 64)}
}

func (l *recordingListener) OnReadyForSpeech()    { l.ch <- event{kind: "ready"} }
func (l *recordingListener) OnBeginningOfSpeech() { l.ch <- event{kind: "begin"} }
func (l *recordingListener) OnAmplitude(db float32) {
	l.ch <- event{kind: "rms", db: db}
}
func (l *recordingListener) OnEndOfSpeech()         { l.ch <- event{kind: "end"} }
func (l *recordingListener) OnError(code ErrorCode) { l.ch <- event{kind: "error", code: code} }
func (l *recordingListener) OnResults(c []string) {
	l.ch <- event{kind: "results", candidates: c}
}
func (l *recordingListener) OnPartialResults(c []string) {
	l.ch <- event{kind: "partial", candidates: c}
}

func (l *recordingListener) next(timeout time.Duration) (event, bool) {
	select {
	case ev := <-l.ch:
		return ev, true
	case <-time.After(timeout):
		return event{}, false
	}
}

// until collects events up to and including the first of the given kind.
func (l *recordingListener) until(kind string, timeout time.Duration) ([]event, bool) {
	var got []event
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-l.ch:
			got = append(got, ev)
			if ev.kind == kind {
				return got, true
			}
		case <-deadline:
			return got, false
		}
	}
}
