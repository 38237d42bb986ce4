package config

import (
	"fmt"
	"net/url"

	"github.com/andlab/doctas/internal/language"
)

func (c *Config) Validate() error {
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("invalid logging.format: %s (must be console or json)", c.Logging.Format)
	}

	if err := c.validateRecognizer(); err != nil {
		return err
	}

	if c.Recording.SampleRate <= 0 {
		return fmt.Errorf("invalid recording.sample_rate: %d", c.Recording.SampleRate)
	}
	if c.Recording.Channels <= 0 {
		return fmt.Errorf("invalid recording.channels: %d", c.Recording.Channels)
	}
	if c.Recording.BufferSize <= 0 {
		return fmt.Errorf("invalid recording.buffer_size: %d", c.Recording.BufferSize)
	}
	if c.Recording.ChannelBufferSize <= 0 {
		return fmt.Errorf("invalid recording.channel_buffer_size: %d", c.Recording.ChannelBufferSize)
	}
	if c.Recording.Format == "" {
		return fmt.Errorf("invalid recording.format: empty")
	}

	if c.Session.ErrorThreshold < 1 {
		return fmt.Errorf("invalid session.error_threshold: %d (must be at least 1)", c.Session.ErrorThreshold)
	}
	if c.Session.AfterResultDelay < 0 || c.Session.TransientDelay < 0 || c.Session.OtherDelay < 0 {
		return fmt.Errorf("invalid session delays: must not be negative")
	}
	if c.Session.MinPartialLength < 0 {
		return fmt.Errorf("invalid session.min_partial_length: %d", c.Session.MinPartialLength)
	}

	if err := c.validateGateway(); err != nil {
		return err
	}

	validTypes := map[string]bool{"desktop": true, "log": true, "none": true}
	if !validTypes[c.Notifications.Type] {
		return fmt.Errorf("invalid notifications.type: %s (must be desktop, log, or none)", c.Notifications.Type)
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr required when metrics.enabled = true")
	}

	if c.Records.Enabled {
		if len(c.Records.Brokers) == 0 {
			return fmt.Errorf("records.brokers required when records.enabled = true")
		}
		if c.Records.Topic == "" {
			return fmt.Errorf("records.topic required when records.enabled = true")
		}
	}
	if c.Records.SheetURL != "" {
		u, err := url.Parse(c.Records.SheetURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid records.sheet_url: %q (must be an http or https url)", c.Records.SheetURL)
		}
	}

	return nil
}

func (c *Config) validateRecognizer() error {
	r := c.Recognizer
	switch r.Backend {
	case "websocket":
		u, err := url.Parse(r.WebSocket.URL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
			return fmt.Errorf("invalid recognizer.websocket.url: %q (must be ws:// or wss://)", r.WebSocket.URL)
		}
	case "google":
	default:
		return fmt.Errorf("unsupported recognizer.backend: %s (must be websocket or google)", r.Backend)
	}

	switch r.LanguageModel {
	case "free_form", "web_search":
	default:
		return fmt.Errorf("invalid recognizer.language_model: %s (must be free_form or web_search)", r.LanguageModel)
	}
	if r.Language != "" && !language.IsWellFormed(r.Language) {
		return fmt.Errorf("invalid recognizer.language: %q (must be a locale like en-US, or empty for the system locale)", r.Language)
	}
	if r.MaxAlternatives < 1 {
		return fmt.Errorf("invalid recognizer.max_alternatives: %d", r.MaxAlternatives)
	}
	if r.CompleteSilence < 0 || r.PossiblyCompleteSilence < 0 || r.MinimumLength < 0 {
		return fmt.Errorf("invalid recognizer silence thresholds: must not be negative")
	}
	return nil
}

func (c *Config) validateGateway() error {
	g := c.Gateway
	switch g.Provider {
	case "http":
		u, err := url.Parse(g.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid gateway.endpoint: %q (must be an http or https url)", g.Endpoint)
		}
	case "openai", "groq":
		if c.resolveAPIKeyForProvider(g.Provider) == "" {
			return fmt.Errorf("%s API key required: not found in config (providers.%s.api_key) or environment variable (%s)",
				g.Provider, g.Provider, EnvVarForProvider(g.Provider))
		}
	default:
		return fmt.Errorf("unsupported gateway.provider: %s (must be http, openai, or groq)", g.Provider)
	}

	if g.ConnectTimeout <= 0 || g.RequestTimeout <= 0 || g.SocketTimeout <= 0 {
		return fmt.Errorf("invalid gateway timeouts: connect, request and socket must be positive")
	}
	return nil
}
