package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/andlab/doctas/internal/config"
	"github.com/andlab/doctas/internal/language"
)

// languageName labels a configured locale; empty follows the environment.
func languageName(code string) string {
	if code == "" {
		return fmt.Sprintf("System locale (%s)", language.FromEnvironment().Code)
	}
	return language.FromCode(code).Name
}

func formatRecognizerLabel(cfg *config.Config) string {
	r := cfg.Recognizer
	lang := languageName(r.Language)
	switch r.Backend {
	case "google":
		return fmt.Sprintf("Speech Recognition (Google, %s)", lang)
	default:
		return fmt.Sprintf("Speech Recognition (%s, %s)", r.WebSocket.URL, lang)
	}
}

func formatGatewayLabel(cfg *config.Config) string {
	g := cfg.Gateway
	if g.Provider == "http" {
		return fmt.Sprintf("Extraction Service (%s)", g.Endpoint)
	}
	return fmt.Sprintf("Extraction Service (%s)", g.Provider)
}

func formatSessionLabel(cfg *config.Config) string {
	return fmt.Sprintf("Session (stop after %d errors)", cfg.Session.ErrorThreshold)
}

func formatNotificationsLabel(cfg *config.Config) string {
	if !cfg.Notifications.Enabled {
		return "Notifications (off)"
	}
	return fmt.Sprintf("Notifications (%s)", cfg.Notifications.Type)
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

// summaryLines is the label/value table shown before saving.
func summaryLines(cfg *config.Config) [][2]string {
	lines := [][2]string{
		{"Recognizer", cfg.Recognizer.Backend},
		{"Language", languageName(cfg.Recognizer.Language)},
	}
	if cfg.Recognizer.Backend == "websocket" {
		lines = append(lines, [2]string{"Server", cfg.Recognizer.WebSocket.URL})
	}

	g := cfg.Gateway
	if g.Provider == "http" {
		lines = append(lines, [2]string{"Gateway", g.Endpoint})
	} else {
		model := g.Model
		if model == "" {
			model = "default model"
		}
		lines = append(lines, [2]string{"Gateway", fmt.Sprintf("%s (%s)", g.Provider, model)})
	}
	lines = append(lines,
		[2]string{"Timeouts", fmt.Sprintf("connect %s, request %s", g.ConnectTimeout, g.RequestTimeout)},
		[2]string{"Error threshold", strconv.Itoa(cfg.Session.ErrorThreshold)},
		[2]string{"Insert periods", onOff(cfg.Transcript.InsertPeriods)},
		[2]string{"Notifications", onOff(cfg.Notifications.Enabled)},
		[2]string{"Metrics", onOff(cfg.Metrics.Enabled)},
	)
	if cfg.Records.Enabled {
		lines = append(lines, [2]string{"Records", fmt.Sprintf("%s on %s", cfg.Records.Topic, strings.Join(cfg.Records.Brokers, ","))})
	} else {
		lines = append(lines, [2]string{"Records", onOff(false)})
	}
	if cfg.Records.SheetURL != "" {
		lines = append(lines, [2]string{"Records sheet", cfg.Records.SheetURL})
	}
	return lines
}

func validateInt(minimum int) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("must be a number")
		}
		if n < minimum {
			return fmt.Errorf("must be at least %d", minimum)
		}
		return nil
	}
}

func validateDuration(s string) error {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a duration like 500ms or 30s")
	}
	if d < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func validateFloat(s string) error {
	if _, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
		return fmt.Errorf("must be a number")
	}
	return nil
}

// The parse helpers run after validation and keep the old value on error.
func parseInt(s string, old int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return n
	}
	return old
}

func parseDuration(s string, old time.Duration) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
		return d
	}
	return old
}

func parseFloat(s string, old float64) float64 {
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return f
	}
	return old
}

// splitList turns "a, b,,c" into [a b c].
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
