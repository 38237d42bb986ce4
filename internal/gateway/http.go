package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/andlab/doctas/internal/logging"
)

const defaultTimeout = 30 * time.Second

// HTTPConfig configures the JSON extraction endpoint.
type HTTPConfig struct {
	Endpoint string
	// Each timeout is enforced independently: connect covers dial and TLS,
	// request covers the whole exchange, socket is the longest allowed gap
	// between bytes from the server.
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	SocketTimeout  time.Duration
	Headers        map[string]string
}

// HTTP posts {"text": ...} and decodes the vitals from the response body.
type HTTP struct {
	cfg    HTTPConfig
	client *http.Client
	logger zerolog.Logger
}

type submitRequest struct {
	Text string `json:"text"`
}

func NewHTTP(cfg HTTPConfig) *HTTP {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultTimeout
	}
	if cfg.SocketTimeout <= 0 {
		cfg.SocketTimeout = defaultTimeout
	}

	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.SocketTimeout,
	}

	return &HTTP{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		},
		logger: logging.WithComponent("gateway.http"),
	}
}

func (h *HTTP) Submit(ctx context.Context, text string) (Record, error) {
	body, err := json.Marshal(submitRequest{Text: text})
	if err != nil {
		return Record{}, failure("encode request: %v", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Record{}, failure("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range h.cfg.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Warn().Err(err).Dur("after", since(start)).Msg("request failed")
		return Record{}, failure("post %s: %v", h.cfg.Endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		h.logger.Warn().Int("status", resp.StatusCode).Str("body", string(snippet)).Msg("unexpected status")
		return Record{}, failure("unexpected status %d", resp.StatusCode)
	}

	idle := newIdleReader(resp.Body, h.cfg.SocketTimeout, cancel)
	defer idle.stop()

	rec, err := decodeRecord(idle)
	if err != nil {
		h.logger.Warn().Err(err).Msg("undecodable response")
		return Record{}, failure("%v", err)
	}

	h.logger.Info().Dur("took", since(start)).Bool("empty", rec.Empty()).Msg("extraction complete")
	return rec, nil
}

// idleReader cancels the request when no bytes arrive for timeout.
type idleReader struct {
	r       io.Reader
	timeout time.Duration
	timer   *time.Timer
}

func newIdleReader(r io.Reader, timeout time.Duration, cancel context.CancelFunc) *idleReader {
	return &idleReader{r: r, timeout: timeout, timer: time.AfterFunc(timeout, cancel)}
}

func (ir *idleReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if n > 0 {
		ir.timer.Reset(ir.timeout)
	}
	return n, err
}

func (ir *idleReader) stop() {
	ir.timer.Stop()
}
