package recognizer

import (
	"context"
	"fmt"

	"github.com/andlab/doctas/internal/recording"
)

// BackendConfig selects and configures an Engine implementation.
type BackendConfig struct {
	Backend   string // "websocket" or "google"
	WebSocket WebSocketConfig
	Google    GoogleConfig
	Recording recording.Config
}

// New creates the configured backend with a pw-record microphone source.
func New(ctx context.Context, cfg BackendConfig) (Engine, error) {
	return NewWithSource(ctx, cfg, recording.NewRecorder(cfg.Recording))
}

func NewWithSource(ctx context.Context, cfg BackendConfig, source recording.Source) (Engine, error) {
	switch cfg.Backend {
	case "websocket":
		if cfg.WebSocket.URL == "" {
			return nil, fmt.Errorf("websocket recognizer requires a url")
		}
		ws := cfg.WebSocket
		if ws.SampleRate == 0 {
			ws.SampleRate = cfg.Recording.SampleRate
		}
		return NewWebSocket(ws, source), nil
	case "google":
		g := cfg.Google
		if g.SampleRate == 0 {
			g.SampleRate = cfg.Recording.SampleRate
		}
		return NewGoogle(ctx, g, source)
	default:
		return nil, fmt.Errorf("unsupported recognizer backend: %s", cfg.Backend)
	}
}
