package config

import (
	"reflect"
	"time"

	"github.com/andlab/doctas/internal/notify"
)

type Config struct {
	Logging       LoggingConfig             `toml:"logging"`
	Recognizer    RecognizerConfig          `toml:"recognizer"`
	Recording     RecordingConfig           `toml:"recording"`
	Session       SessionConfig             `toml:"session"`
	Transcript    TranscriptConfig          `toml:"transcript"`
	Gateway       GatewayConfig             `toml:"gateway"`
	Providers     map[string]ProviderConfig `toml:"providers"`
	Notifications NotificationsConfig       `toml:"notifications"`
	Metrics       MetricsConfig             `toml:"metrics"`
	Records       RecordsConfig             `toml:"records"`
}

// ProviderConfig holds API key for a provider
type ProviderConfig struct {
	APIKey string `toml:"api_key"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`  // trace, debug, info, warn, error
	Format string `toml:"format"` // "console" or "json"
}

type RecognizerConfig struct {
	Backend                 string          `toml:"backend"` // "websocket" or "google"
	Language                string          `toml:"language"`
	LanguageModel           string          `toml:"language_model"` // "free_form" or "web_search"
	PartialResults          bool            `toml:"partial_results"`
	MaxAlternatives         int             `toml:"max_alternatives"`
	CompleteSilence         time.Duration   `toml:"complete_silence"`
	PossiblyCompleteSilence time.Duration   `toml:"possibly_complete_silence"`
	MinimumLength           time.Duration   `toml:"minimum_length"`
	Formatting              bool            `toml:"formatting"`
	DictationMode           bool            `toml:"dictation_mode"`
	WebSocket               WebSocketConfig `toml:"websocket"`
	Google                  GoogleConfig    `toml:"google"`
}

type WebSocketConfig struct {
	URL         string        `toml:"url"`
	APIKey      string        `toml:"api_key"`
	DialTimeout time.Duration `toml:"dial_timeout"`
}

type GoogleConfig struct {
	CredentialsFile string `toml:"credentials_file"`
	Model           string `toml:"model"`
}

type RecordingConfig struct {
	SampleRate        int    `toml:"sample_rate"`
	Channels          int    `toml:"channels"`
	Format            string `toml:"format"`
	BufferSize        int    `toml:"buffer_size"`
	Device            string `toml:"device"`
	ChannelBufferSize int    `toml:"channel_buffer_size"`
}

type SessionConfig struct {
	ErrorThreshold   int           `toml:"error_threshold"`
	AfterResultDelay time.Duration `toml:"after_result_delay"`
	TransientDelay   time.Duration `toml:"transient_delay"`
	OtherDelay       time.Duration `toml:"other_delay"`
	MinPartialLength int           `toml:"min_partial_length"`
	AmplitudeFloor   float64       `toml:"amplitude_floor"`
}

type TranscriptConfig struct {
	InsertPeriods bool `toml:"insert_periods"`
}

type GatewayConfig struct {
	Provider       string            `toml:"provider"` // "http", "openai" or "groq"
	Endpoint       string            `toml:"endpoint"`
	ConnectTimeout time.Duration     `toml:"connect_timeout"`
	RequestTimeout time.Duration     `toml:"request_timeout"`
	SocketTimeout  time.Duration     `toml:"socket_timeout"`
	Headers        map[string]string `toml:"headers"`
	Model          string            `toml:"model"`
	Keywords       []string          `toml:"keywords"`
}

type NotificationsConfig struct {
	Enabled  bool           `toml:"enabled"`
	Type     string         `toml:"type"` // "desktop", "log", "none"
	Messages MessagesConfig `toml:"messages"`
}

type MessageConfig struct {
	Title string `toml:"title"`
	Body  string `toml:"body"`
}

type MessagesConfig struct {
	ListeningStarted    MessageConfig `toml:"listening_started"`
	ListeningStopped    MessageConfig `toml:"listening_stopped"`
	Processing          MessageConfig `toml:"processing"`
	SubmissionSucceeded MessageConfig `toml:"submission_succeeded"`
	SubmissionFailed    MessageConfig `toml:"submission_failed"`
	RecognitionFailed   MessageConfig `toml:"recognition_failed"`
	ConfigReloaded      MessageConfig `toml:"config_reloaded"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

type RecordsConfig struct {
	Enabled      bool          `toml:"enabled"`
	Brokers      []string      `toml:"brokers"`
	Topic        string        `toml:"topic"`
	Source       string        `toml:"source"`
	WriteTimeout time.Duration `toml:"write_timeout"`
	SheetURL     string        `toml:"sheet_url"` // where staff review the collected records
}

// Lookup returns the message configured under a MessageDef config key, or
// nil for an unknown key.
func (m *MessagesConfig) Lookup(key string) *MessageConfig {
	v := reflect.ValueOf(m).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("toml") == key {
			return v.Field(i).Addr().Interface().(*MessageConfig)
		}
	}
	return nil
}

// Resolve merges user config with defaults from MessageDefs
func (m *MessagesConfig) Resolve() map[notify.MessageType]notify.Message {
	result := make(map[notify.MessageType]notify.Message)
	for _, def := range notify.MessageDefs {
		msg := notify.Message{
			Title:   def.DefaultTitle,
			Body:    def.DefaultBody,
			IsError: def.IsError,
		}
		if userMsg := m.Lookup(def.ConfigKey); userMsg != nil {
			if userMsg.Title != "" {
				msg.Title = userMsg.Title
			}
			if userMsg.Body != "" {
				msg.Body = userMsg.Body
			}
		}
		result[def.Type] = msg
	}
	return result
}
