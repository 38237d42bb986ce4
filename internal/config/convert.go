package config

import (
	"os"

	"github.com/andlab/doctas/internal/gateway"
	"github.com/andlab/doctas/internal/language"
	"github.com/andlab/doctas/internal/logging"
	"github.com/andlab/doctas/internal/recognizer"
	"github.com/andlab/doctas/internal/recording"
	"github.com/andlab/doctas/internal/records"
	"github.com/andlab/doctas/internal/session"
	"github.com/andlab/doctas/internal/transcript"
)

var providerEnvVars = map[string]string{
	"openai": "OPENAI_API_KEY",
	"groq":   "GROQ_API_KEY",
}

// EnvVarForProvider returns the environment variable holding a provider's
// API key, or "" if there is none.
func EnvVarForProvider(name string) string {
	return providerEnvVars[name]
}

// resolveAPIKeyForProvider returns the API key for a provider from multiple sources
func (c *Config) resolveAPIKeyForProvider(name string) string {
	if c.Providers != nil {
		if pc, ok := c.Providers[name]; ok && pc.APIKey != "" {
			return pc.APIKey
		}
	}
	if envVar := EnvVarForProvider(name); envVar != "" {
		return os.Getenv(envVar)
	}
	return ""
}

func (c *Config) ToLoggingConfig() logging.Config {
	return logging.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
	}
}

func (c *Config) ToRecordingConfig() recording.Config {
	return recording.Config{
		SampleRate:        c.Recording.SampleRate,
		Channels:          c.Recording.Channels,
		Format:            c.Recording.Format,
		BufferSize:        c.Recording.BufferSize,
		Device:            c.Recording.Device,
		ChannelBufferSize: c.Recording.ChannelBufferSize,
	}
}

// ToRecognizerConfig is the per-session config passed to Engine.Start.
func (c *Config) ToRecognizerConfig() recognizer.Config {
	r := c.Recognizer
	locale := r.Language
	if locale == "" {
		locale = language.FromEnvironment().Code
	}
	return recognizer.Config{
		LanguageModel:           recognizer.LanguageModel(r.LanguageModel),
		Language:                locale,
		PartialResults:          r.PartialResults,
		MaxAlternatives:         r.MaxAlternatives,
		CompleteSilence:         r.CompleteSilence,
		PossiblyCompleteSilence: r.PossiblyCompleteSilence,
		MinimumLength:           r.MinimumLength,
		Formatting:              r.Formatting,
		DictationMode:           r.DictationMode,
	}
}

// ToBackendConfig selects and configures the engine backend.
func (c *Config) ToBackendConfig() recognizer.BackendConfig {
	r := c.Recognizer
	return recognizer.BackendConfig{
		Backend: r.Backend,
		WebSocket: recognizer.WebSocketConfig{
			URL:         r.WebSocket.URL,
			APIKey:      r.WebSocket.APIKey,
			DialTimeout: r.WebSocket.DialTimeout,
		},
		Google: recognizer.GoogleConfig{
			CredentialsFile: r.Google.CredentialsFile,
			Model:           r.Google.Model,
		},
		Recording: c.ToRecordingConfig(),
	}
}

func (c *Config) ToSessionPolicy() session.Policy {
	s := c.Session
	return session.Policy{
		ErrorThreshold:   s.ErrorThreshold,
		AfterResult:      s.AfterResultDelay,
		TransientDelay:   s.TransientDelay,
		OtherDelay:       s.OtherDelay,
		MinPartialLength: s.MinPartialLength,
		AmplitudeFloor:   float32(s.AmplitudeFloor),
		Transcript:       transcript.Policy{InsertPeriods: c.Transcript.InsertPeriods},
	}
}

func (c *Config) ToGatewayConfig() gateway.Config {
	g := c.Gateway
	cfg := gateway.Config{
		Provider: g.Provider,
		HTTP: gateway.HTTPConfig{
			Endpoint:       g.Endpoint,
			ConnectTimeout: g.ConnectTimeout,
			RequestTimeout: g.RequestTimeout,
			SocketTimeout:  g.SocketTimeout,
			Headers:        g.Headers,
		},
	}
	if g.Provider == "openai" || g.Provider == "groq" {
		cfg.LLM = gateway.LLMConfig{
			Provider: g.Provider,
			APIKey:   c.resolveAPIKeyForProvider(g.Provider),
			Model:    g.Model,
			Timeout:  g.RequestTimeout,
			Keywords: g.Keywords,
		}
	}
	return cfg
}

func (c *Config) ToRecordsConfig() records.Config {
	return records.Config{
		Enabled:      c.Records.Enabled,
		Brokers:      c.Records.Brokers,
		Topic:        c.Records.Topic,
		Source:       c.Records.Source,
		WriteTimeout: c.Records.WriteTimeout,
	}
}

// NotificationType is the effective notifier type: "none" when disabled.
func (c *Config) NotificationType() string {
	if !c.Notifications.Enabled {
		return "none"
	}
	return c.Notifications.Type
}
