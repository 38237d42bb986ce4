package config

import "time"

// DefaultConfig returns the initial configuration used by configure and for
// keys missing from the file.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Recognizer: RecognizerConfig{
			Backend:                 "websocket",
			Language:                "",
			LanguageModel:           "free_form",
			PartialResults:          true,
			MaxAlternatives:         1,
			CompleteSilence:         100 * time.Second,
			PossiblyCompleteSilence: 100 * time.Second,
			Formatting:              true,
			DictationMode:           true,
			WebSocket: WebSocketConfig{
				URL:         "ws://127.0.0.1:2700/v1/recognize",
				DialTimeout: 10 * time.Second,
			},
			Google: GoogleConfig{
				Model: "latest_long",
			},
		},
		Recording: RecordingConfig{
			SampleRate:        16000,
			Channels:          1,
			Format:            "s16",
			BufferSize:        3200,
			Device:            "",
			ChannelBufferSize: 50,
		},
		Session: SessionConfig{
			ErrorThreshold:   3,
			AfterResultDelay: 400 * time.Millisecond,
			TransientDelay:   800 * time.Millisecond,
			OtherDelay:       500 * time.Millisecond,
			MinPartialLength: 2,
			AmplitudeFloor:   -2.0,
		},
		Gateway: GatewayConfig{
			Provider:       "http",
			Endpoint:       "http://127.0.0.1:8000/api/health-data",
			ConnectTimeout: 30 * time.Second,
			RequestTimeout: 30 * time.Second,
			SocketTimeout:  30 * time.Second,
		},
		Providers: make(map[string]ProviderConfig),
		Notifications: NotificationsConfig{
			Enabled: false,
			Type:    "log",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
		},
		Records: RecordsConfig{
			Enabled:      false,
			Topic:        "doctas.records",
			WriteTimeout: 10 * time.Second,
		},
	}
}
