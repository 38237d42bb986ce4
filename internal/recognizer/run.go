package recognizer

import (
	"context"
	"sync"

	"github.com/andlab/doctas/internal/recording"
)

// dispatcher holds the bound listener.
type dispatcher struct {
	mu sync.RWMutex
	l  Listener
}

func (d *dispatcher) set(l Listener) {
	d.mu.Lock()
	d.l = l
	d.mu.Unlock()
}

func (d *dispatcher) get() Listener {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.l
}

// run is one listening session. Callbacks from a cancelled run are dropped,
// so a stopped session never reaches the listener again.
type run struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	d      *dispatcher
}

func newRun(parent context.Context, d *dispatcher) *run {
	ctx, cancel := context.WithCancel(parent)
	return &run{ctx: ctx, cancel: cancel, done: make(chan struct{}), d: d}
}

func (r *run) emit(f func(Listener)) {
	if r.ctx.Err() != nil {
		return
	}
	if l := r.d.get(); l != nil {
		f(l)
	}
}

func (r *run) fail(code ErrorCode) {
	r.emit(func(l Listener) { l.OnError(code) })
}

// runs tracks the current run of an engine and serializes capture: a new run
// waits for the previous one to release the audio source.
type runs struct {
	mu      sync.Mutex
	current *run
	closed  bool
}

func (rs *runs) begin(ctx context.Context, d *dispatcher) (cur, prev *run, err error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.closed {
		return nil, nil, ErrEngineClosed
	}
	prev = rs.current
	if prev != nil {
		prev.cancel()
	}
	cur = newRun(ctx, d)
	rs.current = cur
	return cur, prev, nil
}

func (rs *runs) stop() *run {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	cur := rs.current
	if cur != nil {
		cur.cancel()
	}
	return cur
}

func (rs *runs) close() *run {
	rs.mu.Lock()
	rs.closed = true
	rs.mu.Unlock()
	return rs.stop()
}

// pumpAudio forwards captured frames to send until the run ends or the
// source closes. The source is stopped and drained before returning.
func pumpAudio(ctx context.Context, src recording.Source, send func([]byte) error) error {
	frames, errs, err := src.Start(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = src.Stop()
		for range frames {
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errs:
			if ok && err != nil {
				return err
			}
			errs = nil
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			if err := send(frame.Data); err != nil {
				return err
			}
		}
	}
}
