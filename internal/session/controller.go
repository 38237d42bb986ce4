// Package session keeps a single-shot recognition engine listening for as
// long as the user wants, folds its results into a transcript, and hands the
// transcript to a submission gateway.
//
// All mutable state is owned by one goroutine. Public methods and engine
// callbacks are turned into messages for that goroutine, so callers may use a
// Controller from any goroutine.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/andlab/doctas/internal/gateway"
	"github.com/andlab/doctas/internal/logging"
	"github.com/andlab/doctas/internal/metrics"
	"github.com/andlab/doctas/internal/recognizer"
	"github.com/andlab/doctas/internal/transcript"
)

var (
	ErrClosed             = errors.New("session closed")
	ErrSubmissionInFlight = errors.New("submission already in flight")
	ErrEmptyTranscript    = errors.New("transcript is empty")
)

const mailboxSize = 64

// Config wires a Controller. Zero values select production defaults.
type Config struct {
	Recognizer recognizer.Config
	Policy     Policy
	Scheduler  Scheduler
	Observer   Observer
	Metrics    *metrics.Metrics
}

// Controller converges a single-shot engine onto the user's desire to keep
// listening.
type Controller struct {
	engine    recognizer.Engine
	gateway   gateway.Gateway
	scheduler Scheduler
	observer  Observer
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	mailbox   chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error

	ctx    context.Context
	cancel context.CancelFunc

	// owned by the loop goroutine
	policy       Policy
	recCfg       recognizer.Config
	state        State
	desired      bool
	text         string
	partial      string
	lastFinal    string
	amplitude    float32
	record       *gateway.Record
	streak       int
	lastError    recognizer.ErrorCode
	reason       Reason
	failure      string
	epoch        uint64
	submitID     uint64
	submitCancel context.CancelFunc
	closed       bool
}

// New binds the controller as the engine's listener and starts its loop.
// Close must be called to release the engine.
func New(engine recognizer.Engine, gw gateway.Gateway, cfg Config) *Controller {
	if cfg.Scheduler == nil {
		cfg.Scheduler = AfterFunc
	}
	if cfg.Policy == (Policy{}) {
		cfg.Policy = DefaultPolicy()
	}
	if cfg.Recognizer == (recognizer.Config{}) {
		cfg.Recognizer = recognizer.DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		engine:    engine,
		gateway:   gw,
		scheduler: cfg.Scheduler,
		observer:  cfg.Observer,
		metrics:   cfg.Metrics,
		logger:    logging.WithComponent("session"),
		mailbox:   make(chan func(), mailboxSize),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		policy:    cfg.Policy,
		recCfg:    cfg.Recognizer,
		state:     Idle,
	}
	c.metrics.SetState(Idle.String(), stateNames)
	engine.SetListener(listener{c})
	go c.loop()
	return c
}

func (c *Controller) loop() {
	defer close(c.done)
	for {
		select {
		case f := <-c.mailbox:
			f()
		case <-c.quit:
			return
		}
	}
}

// post queues f for the loop. It reports false once the loop has exited.
func (c *Controller) post(f func()) bool {
	select {
	case c.mailbox <- f:
		return true
	case <-c.done:
		return false
	}
}

// call runs f on the loop and waits for it.
func (c *Controller) call(f func() error) error {
	reply := make(chan error, 1)
	if !c.post(func() { reply <- f() }) {
		return ErrClosed
	}
	select {
	case err := <-reply:
		return err
	case <-c.done:
		return ErrClosed
	}
}

func (c *Controller) RequestStart() error {
	return c.call(c.requestStart)
}

func (c *Controller) RequestStop() error {
	return c.call(func() error {
		c.requestStop()
		return nil
	})
}

// Toggle starts listening when it is not desired and stops it otherwise.
// It reports whether listening is desired afterwards.
func (c *Controller) Toggle() (bool, error) {
	var listening bool
	err := c.call(func() error {
		if c.desired {
			c.requestStop()
			listening = false
			return nil
		}
		if err := c.requestStart(); err != nil {
			return err
		}
		listening = c.desired
		return nil
	})
	return listening, err
}

// Submit stops listening and sends the transcript to the gateway. The result
// arrives asynchronously as a transition to Success or Error.
func (c *Controller) Submit() error {
	return c.call(c.submit)
}

// Clear stops any session and forgets the transcript and record. A submission
// in flight is abandoned.
func (c *Controller) Clear() error {
	return c.call(func() error {
		c.clear()
		return nil
	})
}

// Dismiss drops the success or error result and returns to Idle.
func (c *Controller) Dismiss() error {
	return c.call(func() error {
		if c.state != Success && c.state != Error {
			return nil
		}
		c.record = nil
		c.reason = ReasonNone
		c.failure = ""
		c.setState(Idle)
		return nil
	})
}

// EditTranscript replaces the finalized transcript with text verbatim.
func (c *Controller) EditTranscript(text string) error {
	return c.call(func() error {
		c.text = text
		c.lastFinal = ""
		c.logger.Debug().Int("length", len(text)).Msg("transcript edited")
		return nil
	})
}

// SetPolicy replaces the restart policy. It applies to the next decision.
func (c *Controller) SetPolicy(p Policy) error {
	return c.call(func() error {
		c.policy = p
		return nil
	})
}

// SetRecognizerConfig replaces the config passed to the next engine Start.
func (c *Controller) SetRecognizerConfig(cfg recognizer.Config) error {
	return c.call(func() error {
		c.recCfg = cfg
		return nil
	})
}

func (c *Controller) Snapshot() (Snapshot, error) {
	var snap Snapshot
	err := c.call(func() error {
		snap = c.snapshot()
		return nil
	})
	return snap, err
}

// Close stops listening, abandons any submission, detaches from the engine
// and releases it. The controller is unusable afterwards.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		err := c.call(func() error {
			c.stopListening()
			c.cancelSubmission()
			c.closed = true
			c.engine.SetListener(nil)
			return c.engine.Close()
		})
		c.cancel()
		close(c.quit)
		<-c.done
		if err != nil && !errors.Is(err, ErrClosed) {
			c.closeErr = err
		}
		c.logger.Info().Msg("session closed")
	})
	return c.closeErr
}

func (c *Controller) requestStart() error {
	if c.closed {
		return ErrClosed
	}
	if c.state == Processing {
		return ErrSubmissionInFlight
	}
	c.epoch++
	c.desired = true
	c.streak = 0
	c.lastFinal = ""
	c.lastError = 0
	c.record = nil
	c.reason = ReasonNone
	c.failure = ""
	c.logger.Info().Msg("listening requested")
	c.setState(Listening)
	c.listen()
	return nil
}

func (c *Controller) requestStop() {
	wasDesired := c.desired
	c.stopListening()
	if wasDesired {
		c.logger.Info().Msg("listening stopped")
	}
	if c.state != Processing {
		c.setState(Idle)
	}
}

// stopListening drops the desire to listen and invalidates pending restarts.
func (c *Controller) stopListening() {
	c.epoch++
	c.partial = ""
	c.amplitude = 0
	if !c.desired {
		return
	}
	c.desired = false
	if err := c.engine.Stop(); err != nil {
		c.logger.Warn().Err(err).Msg("engine stop failed")
	}
}

func (c *Controller) listen() {
	if err := c.engine.Start(c.ctx, c.recCfg); err != nil {
		c.logger.Warn().Err(err).Msg("engine start failed")
		c.onError(recognizer.ErrClient)
		return
	}
	c.metrics.ListenSession()
}

// restart applies a retry decision. Restarts scheduled for later are dropped
// if anything else touched the session in between.
func (c *Controller) restart(d Decision, cause string) {
	c.epoch++
	epoch := c.epoch
	run := func() {
		if c.closed || !c.desired || c.epoch != epoch {
			c.logger.Debug().Str("cause", cause).Msg("stale restart dropped")
			return
		}
		c.metrics.Restart(cause)
		c.logger.Debug().Str("cause", cause).Msg("restarting recognition")
		c.setState(Listening)
		c.listen()
	}
	if d.Action == RetryImmediately {
		run()
		return
	}
	c.scheduler(d.Delay, func() { c.post(run) })
}

func (c *Controller) submit() error {
	if c.closed {
		return ErrClosed
	}
	if c.state == Processing {
		return ErrSubmissionInFlight
	}
	text := strings.TrimSpace(c.text)
	if text == "" {
		return ErrEmptyTranscript
	}

	c.stopListening()
	c.record = nil
	c.reason = ReasonNone
	c.failure = ""
	c.setState(Processing)

	c.submitID++
	id := c.submitID
	ctx, cancel := context.WithCancel(c.ctx)
	c.submitCancel = cancel
	gw := c.gateway

	c.logger.Info().Int("length", len(text)).Msg("submitting transcript")
	start := time.Now()
	go func() {
		rec, err := gw.Submit(ctx, text)
		took := time.Since(start)
		c.post(func() { c.settle(id, rec, err, took) })
	}()
	return nil
}

func (c *Controller) settle(id uint64, rec gateway.Record, err error, took time.Duration) {
	if id != c.submitID || c.state != Processing {
		c.logger.Debug().Uint64("submission", id).Msg("stale submission result dropped")
		return
	}
	c.cancelSubmission()
	c.metrics.Submission(err, took)

	if err != nil {
		c.logger.Warn().Err(err).Dur("took", took).Msg("submission failed")
		c.reason = ReasonSubmission
		c.failure = err.Error()
		c.setState(Error)
		return
	}
	c.logger.Info().Dur("took", took).Msg("submission succeeded")
	c.record = &rec
	c.setState(Success)
}

func (c *Controller) cancelSubmission() {
	c.submitID++
	if c.submitCancel != nil {
		c.submitCancel()
		c.submitCancel = nil
	}
}

func (c *Controller) clear() {
	c.stopListening()
	c.cancelSubmission()
	c.text = ""
	c.lastFinal = ""
	c.record = nil
	c.streak = 0
	c.lastError = 0
	c.reason = ReasonNone
	c.failure = ""
	c.logger.Info().Msg("session cleared")
	c.setState(Idle)
}

// fail gives up on listening and surfaces reason to the user.
func (c *Controller) fail(reason Reason) {
	c.stopListening()
	c.streak = 0
	c.reason = reason
	c.metrics.HardStop(string(reason))
	c.logger.Warn().Str("reason", string(reason)).Str("code", c.lastError.String()).Msg("recognition stopped")
	c.setState(Error)
}

func (c *Controller) setState(to State) {
	from := c.state
	if from == to {
		return
	}
	c.state = to
	c.metrics.SetState(to.String(), stateNames)
	c.logger.Debug().Stringer("from", from).Stringer("to", to).Msg("state changed")
	if c.observer != nil {
		c.observer.StateChanged(from, to, c.snapshot())
	}
}

func (c *Controller) snapshot() Snapshot {
	snap := Snapshot{
		State:       c.state,
		Desired:     c.desired,
		Transcript:  c.text,
		Partial:     c.partial,
		Display:     transcript.Display(c.text, c.partial),
		Amplitude:   c.amplitude,
		ErrorStreak: c.streak,
		Reason:      c.reason,
		Failure:     c.failure,
	}
	if c.lastError != 0 {
		snap.LastError = c.lastError.String()
	}
	if c.record != nil {
		rec := *c.record
		snap.Record = &rec
	}
	return snap
}

func (c *Controller) onReady() {
	if c.desired && c.state != Listening {
		c.setState(Listening)
	}
}

func (c *Controller) onAmplitude(db float32) {
	if !c.desired {
		return
	}
	if db <= c.policy.AmplitudeFloor {
		db = 0
	}
	c.amplitude = db
}

func (c *Controller) onPartial(candidates []string) {
	if !c.desired {
		return
	}
	text := strings.TrimSpace(recognizer.First(candidates))
	if text == "" || utf8.RuneCountInString(text) <= c.policy.MinPartialLength || text == c.partial {
		return
	}
	c.partial = text
}

func (c *Controller) onResults(candidates []string) {
	if !c.desired {
		c.logger.Debug().Msg("late result ignored")
		return
	}
	c.partial = ""
	text := strings.TrimSpace(recognizer.First(candidates))
	if text != "" {
		c.streak = 0
		if text == c.lastFinal {
			c.metrics.DuplicateResult()
			c.logger.Debug().Msg("duplicate result ignored")
		} else {
			c.text = c.policy.Transcript.Append(text, c.text)
			c.lastFinal = text
			c.metrics.Utterance()
			c.logger.Debug().Str("fragment", text).Msg("utterance finalized")
		}
	}
	c.restart(c.policy.OnResult(), "result")
}

func (c *Controller) onError(code recognizer.ErrorCode) {
	if !c.desired {
		c.logger.Debug().Stringer("code", code).Msg("late error ignored")
		return
	}
	c.streak++
	c.lastError = code
	class := Classify(code)
	c.metrics.RecognitionError(code.String(), class.String())

	d := c.policy.OnError(code, c.streak)
	c.logger.Debug().
		Stringer("code", code).
		Stringer("class", class).
		Int("streak", c.streak).
		Stringer("action", d.Action).
		Msg("recognition error")

	switch d.Action {
	case StopHard:
		c.fail(ReasonExhausted)
	case StopAndSurface:
		c.fail(ReasonConnectivity)
	default:
		c.partial = ""
		c.restart(d, code.String())
	}
}

// listener forwards engine callbacks onto the controller's loop.
type listener struct {
	c *Controller
}

func (l listener) OnReadyForSpeech() { l.c.post(l.c.onReady) }

func (l listener) OnBeginningOfSpeech() {
	l.c.post(func() { l.c.logger.Debug().Msg("speech began") })
}

func (l listener) OnAmplitude(db float32) { l.c.post(func() { l.c.onAmplitude(db) }) }

func (l listener) OnEndOfSpeech() {
	l.c.post(func() { l.c.logger.Debug().Msg("speech ended") })
}

func (l listener) OnError(code recognizer.ErrorCode) { l.c.post(func() { l.c.onError(code) }) }

func (l listener) OnResults(candidates []string) {
	l.c.post(func() { l.c.onResults(candidates) })
}

func (l listener) OnPartialResults(candidates []string) {
	l.c.post(func() { l.c.onPartial(candidates) })
}
