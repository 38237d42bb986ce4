package recognizer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/andlab/doctas/internal/logging"
	"github.com/andlab/doctas/internal/recording"
)

// WebSocketConfig configures the websocket recognition backend.
type WebSocketConfig struct {
	URL         string // ws:// or wss:// endpoint
	APIKey      string // sent as a bearer token when set
	DialTimeout time.Duration
	SampleRate  int
}

// Events sent by the recognition server. One JSON object per text frame.
type wsEvent struct {
	Type       string   `json:"type"` // ready, speech_begin, rms, speech_end, partial, final, error
	Candidates []string `json:"candidates,omitempty"`
	RMS        float32  `json:"rms,omitempty"`
	Code       string   `json:"code,omitempty"`
	Message    string   `json:"message,omitempty"`
}

// wsSessionConfig is the first message of every session.
type wsSessionConfig struct {
	Type                      string `json:"type"`
	LanguageModel             string `json:"language_model"`
	Language                  string `json:"language"`
	PartialResults            bool   `json:"partial_results"`
	MaxAlternatives           int    `json:"max_alternatives"`
	CompleteSilenceMS         int64  `json:"complete_silence_ms"`
	PossiblyCompleteSilenceMS int64  `json:"possibly_complete_silence_ms"`
	MinimumLengthMS           int64  `json:"minimum_length_ms"`
	Formatting                bool   `json:"formatting"`
	DictationMode             bool   `json:"dictation_mode"`
	SampleRate                int    `json:"sample_rate"`
}

// WebSocket streams microphone PCM to a recognition server and maps its
// events onto the Listener. The server ends a session after one final result.
type WebSocket struct {
	cfg    WebSocketConfig
	source recording.Source
	dialer *websocket.Dialer
	logger zerolog.Logger

	d    dispatcher
	runs runs
}

func NewWebSocket(cfg WebSocketConfig, source recording.Source) *WebSocket {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	return &WebSocket{
		cfg:    cfg,
		source: source,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.DialTimeout,
		},
		logger: logging.WithComponent("recognizer.websocket"),
	}
}

func (w *WebSocket) SetListener(l Listener) { w.d.set(l) }

func (w *WebSocket) Start(ctx context.Context, cfg Config) error {
	cur, prev, err := w.runs.begin(ctx, &w.d)
	if err != nil {
		return err
	}
	go w.session(cur, prev, cfg)
	return nil
}

func (w *WebSocket) Stop() error {
	w.runs.stop()
	return nil
}

func (w *WebSocket) Close() error {
	if r := w.runs.close(); r != nil {
		<-r.done
	}
	w.d.set(nil)
	return nil
}

func (w *WebSocket) session(r *run, prev *run, cfg Config) {
	defer close(r.done)
	defer r.cancel()
	if prev != nil {
		<-prev.done
	}
	if r.ctx.Err() != nil {
		return
	}

	u, err := w.buildURL(cfg)
	if err != nil {
		w.logger.Error().Err(err).Msg("invalid endpoint")
		r.fail(ErrClient)
		return
	}

	header := http.Header{}
	if w.cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+w.cfg.APIKey)
	}

	conn, resp, err := w.dialer.DialContext(r.ctx, u, header)
	if err != nil {
		if r.ctx.Err() != nil {
			return
		}
		code := dialErrorCode(err, resp)
		w.logger.Warn().Err(err).Stringer("code", code).Msg("dial failed")
		r.fail(code)
		return
	}
	defer conn.Close()

	// unblock reads when the run is stopped
	go func() {
		<-r.ctx.Done()
		_ = conn.SetReadDeadline(time.Now())
	}()

	var writeMu sync.Mutex
	write := func(messageType int, data []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteMessage(messageType, data)
	}

	writeMu.Lock()
	err = conn.WriteJSON(w.sessionConfig(cfg))
	writeMu.Unlock()
	if err != nil {
		r.fail(ErrNetwork)
		return
	}

	audioDone := make(chan struct{})
	audioCtx, stopAudio := context.WithCancel(r.ctx)
	defer func() {
		stopAudio()
		<-audioDone
	}()
	go func() {
		defer close(audioDone)
		err := pumpAudio(audioCtx, w.source, func(b []byte) error {
			return write(websocket.BinaryMessage, b)
		})
		if err != nil && audioCtx.Err() == nil {
			w.logger.Warn().Err(err).Msg("audio capture failed")
			r.fail(ErrAudio)
			r.cancel()
		}
	}()

	for {
		var ev wsEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if r.ctx.Err() != nil {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				// server hung up without committing anything
				r.fail(ErrNoMatch)
				return
			}
			w.logger.Warn().Err(err).Msg("read failed")
			r.fail(ErrServerDisconnected)
			return
		}

		switch ev.Type {
		case "ready":
			r.emit(func(l Listener) { l.OnReadyForSpeech() })
		case "speech_begin":
			r.emit(func(l Listener) { l.OnBeginningOfSpeech() })
		case "rms":
			r.emit(func(l Listener) { l.OnAmplitude(ev.RMS) })
		case "speech_end":
			stopAudio()
			_ = write(websocket.TextMessage, []byte(`{"type":"end_of_audio"}`))
			r.emit(func(l Listener) { l.OnEndOfSpeech() })
		case "partial":
			r.emit(func(l Listener) { l.OnPartialResults(ev.Candidates) })
		case "final":
			r.emit(func(l Listener) { l.OnResults(ev.Candidates) })
			w.closeNormally(write)
			return
		case "error":
			w.logger.Debug().Str("code", ev.Code).Str("message", ev.Message).Msg("server error")
			r.fail(ParseErrorCode(ev.Code))
			w.closeNormally(write)
			return
		default:
			w.logger.Debug().Str("type", ev.Type).Msg("ignoring unknown event")
		}
	}
}

func (w *WebSocket) closeNormally(write func(int, []byte) error) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = write(websocket.CloseMessage, msg)
}

func (w *WebSocket) buildURL(cfg Config) (string, error) {
	u, err := url.Parse(w.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse recognizer url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("recognizer url must be ws:// or wss://, got %q", w.cfg.URL)
	}
	q := u.Query()
	if cfg.Language != "" {
		q.Set("language", cfg.Language)
	}
	q.Set("sample_rate", strconv.Itoa(w.cfg.SampleRate))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (w *WebSocket) sessionConfig(cfg Config) wsSessionConfig {
	return wsSessionConfig{
		Type:                      "config",
		LanguageModel:             string(cfg.LanguageModel),
		Language:                  cfg.Language,
		PartialResults:            cfg.PartialResults,
		MaxAlternatives:           cfg.MaxAlternatives,
		CompleteSilenceMS:         cfg.CompleteSilence.Milliseconds(),
		PossiblyCompleteSilenceMS: cfg.PossiblyCompleteSilence.Milliseconds(),
		MinimumLengthMS:           cfg.MinimumLength.Milliseconds(),
		Formatting:                cfg.Formatting,
		DictationMode:             cfg.DictationMode,
		SampleRate:                w.cfg.SampleRate,
	}
}

func dialErrorCode(err error, resp *http.Response) ErrorCode {
	if resp != nil {
		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return ErrInsufficientPermissions
		case resp.StatusCode == http.StatusTooManyRequests:
			return ErrTooManyRequests
		case resp.StatusCode >= 500:
			return ErrServer
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrNetworkTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrNetworkTimeout
	}
	return ErrNetwork
}
