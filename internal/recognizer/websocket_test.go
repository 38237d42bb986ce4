package recognizer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// mockRecognitionServer reads the session config and hands the connection to handler.
func mockRecognitionServer(t *testing.T, handler func(conn *websocket.Conn, cfg wsSessionConfig)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()

		var cfg wsSessionConfig
		if err := conn.ReadJSON(&cfg); err != nil {
			t.Logf("read config: %v", err)
			return
		}
		handler(conn, cfg)
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWebSocket_ImplementsEngine(t *testing.T) {
	var _ Engine = (*WebSocket)(nil)
}

func TestWebSocket_Utterance(t *testing.T) {
	gotConfig := make(chan wsSessionConfig, 1)
	gotAudio := make(chan []byte, 4)

	server := mockRecognitionServer(t, func(conn *websocket.Conn, cfg wsSessionConfig) {
		gotConfig <- cfg
		conn.WriteJSON(wsEvent{Type: "ready"})

		mt, data, err := conn.ReadMessage()
		if err == nil && mt == websocket.BinaryMessage {
			gotAudio <- data
		}

		conn.WriteJSON(wsEvent{Type: "speech_begin"})
		conn.WriteJSON(wsEvent{Type: "rms", RMS: 4.5})
		conn.WriteJSON(wsEvent{Type: "partial", Candidates: []string{"patient"}})
		conn.WriteJSON(wsEvent{Type: "final", Candidates: []string{"Patient presents with fever.", "patient presents with fever"}})

		// wait for the client to hang up
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	src := &fakeSource{frames: [][]byte{{1, 2, 3, 4}}}
	engine := NewWebSocket(WebSocketConfig{URL: wsURL(server)}, src)
	l := newRecordingListener()
	engine.SetListener(l)
	defer engine.Close()

	cfg := DefaultConfig()
	cfg.Language = "en-GB"
	if err := engine.Start(context.Background(), cfg); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	events, ok := l.until("results", 2*time.Second)
	if !ok {
		t.Fatalf("no final result, got %+v", events)
	}

	kinds := make([]string, 0, len(events))
	for _, ev := range events {
		kinds = append(kinds, ev.kind)
	}
	want := []string{"ready", "begin", "rms", "partial", "results"}
	if strings.Join(kinds, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v, want %v", kinds, want)
	}

	last := events[len(events)-1]
	if len(last.candidates) != 2 || last.candidates[0] != "Patient presents with fever." {
		t.Errorf("unexpected candidates: %v", last.candidates)
	}
	if events[2].db != 4.5 {
		t.Errorf("amplitude = %v, want 4.5", events[2].db)
	}

	select {
	case cfg := <-gotConfig:
		if cfg.Language != "en-GB" || !cfg.PartialResults || cfg.LanguageModel != "free_form" {
			t.Errorf("unexpected session config: %+v", cfg)
		}
		if cfg.CompleteSilenceMS != 100000 {
			t.Errorf("complete silence = %d, want 100000", cfg.CompleteSilenceMS)
		}
	default:
		t.Error("server never received the session config")
	}

	select {
	case data := <-gotAudio:
		if len(data) != 4 {
			t.Errorf("audio frame = %v", data)
		}
	case <-time.After(time.Second):
		t.Error("server never received audio")
	}
}

func TestWebSocket_ServerError(t *testing.T) {
	server := mockRecognitionServer(t, func(conn *websocket.Conn, cfg wsSessionConfig) {
		conn.WriteJSON(wsEvent{Type: "ready"})
		conn.WriteJSON(wsEvent{Type: "error", Code: "no_match", Message: "nothing heard"})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	engine := NewWebSocket(WebSocketConfig{URL: wsURL(server)}, &fakeSource{})
	l := newRecordingListener()
	engine.SetListener(l)
	defer engine.Close()

	if err := engine.Start(context.Background(), DefaultConfig()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	events, ok := l.until("error", 2*time.Second)
	if !ok {
		t.Fatalf("no error event, got %+v", events)
	}
	if code := events[len(events)-1].code; code != ErrNoMatch {
		t.Errorf("code = %v, want %v", code, ErrNoMatch)
	}
}

func TestWebSocket_DialFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   ErrorCode
	}{
		{"server failure", http.StatusServiceUnavailable, ErrServer},
		{"unauthorized", http.StatusUnauthorized, ErrInsufficientPermissions},
		{"rate limited", http.StatusTooManyRequests, ErrTooManyRequests},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tc.status)
			}))
			defer server.Close()

			engine := NewWebSocket(WebSocketConfig{URL: wsURL(server)}, &fakeSource{})
			l := newRecordingListener()
			engine.SetListener(l)
			defer engine.Close()

			if err := engine.Start(context.Background(), DefaultConfig()); err != nil {
				t.Fatalf("Start() error: %v", err)
			}
			ev, ok := l.next(2 * time.Second)
			if !ok {
				t.Fatal("no callback after failed dial")
			}
			if ev.kind != "error" || ev.code != tc.want {
				t.Errorf("got %+v, want error %v", ev, tc.want)
			}
		})
	}
}

func TestWebSocket_InvalidURL(t *testing.T) {
	engine := NewWebSocket(WebSocketConfig{URL: "http://example.com"}, &fakeSource{})
	l := newRecordingListener()
	engine.SetListener(l)
	defer engine.Close()

	if err := engine.Start(context.Background(), DefaultConfig()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	ev, ok := l.next(time.Second)
	if !ok || ev.kind != "error" || ev.code != ErrClient {
		t.Errorf("got %+v, want client error", ev)
	}
}

func TestWebSocket_StopSilencesSession(t *testing.T) {
	release := make(chan struct{})
	server := mockRecognitionServer(t, func(conn *websocket.Conn, cfg wsSessionConfig) {
		conn.WriteJSON(wsEvent{Type: "ready"})
		<-release
		conn.WriteJSON(wsEvent{Type: "final", Candidates: []string{"too late"}})
	})
	defer server.Close()

	engine := NewWebSocket(WebSocketConfig{URL: wsURL(server)}, &fakeSource{})
	l := newRecordingListener()
	engine.SetListener(l)
	defer engine.Close()

	if err := engine.Start(context.Background(), DefaultConfig()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if ev, ok := l.next(2 * time.Second); !ok || ev.kind != "ready" {
		t.Fatalf("expected ready, got %+v", ev)
	}

	if err := engine.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	close(release)

	if ev, ok := l.next(200 * time.Millisecond); ok {
		t.Errorf("expected no callbacks after Stop, got %+v", ev)
	}
}

func TestWebSocket_StartAfterClose(t *testing.T) {
	engine := NewWebSocket(WebSocketConfig{URL: "ws://127.0.0.1:1"}, &fakeSource{})
	if err := engine.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := engine.Start(context.Background(), DefaultConfig()); err != ErrEngineClosed {
		t.Errorf("Start after Close = %v, want ErrEngineClosed", err)
	}
}
