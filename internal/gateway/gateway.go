// Package gateway submits a finished transcript to an extraction service and
// returns the structured vitals it found.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"
)

// ErrSubmissionFailed is the single failure outcome of Submit. Transport,
// timeout, status and decoding failures all wrap it.
var ErrSubmissionFailed = errors.New("submission failed")

// Gateway sends transcript text for extraction. Implementations do not retry.
type Gateway interface {
	Submit(ctx context.Context, text string) (Record, error)
}

// Record is the extraction result. Every field may be absent.
type Record struct {
	Name      *string `json:"name,omitempty"`
	Age       *string `json:"age,omitempty"`
	Gender    *string `json:"gender,omitempty"`
	HeartRate *string `json:"heart_rate,omitempty"`
	SpO2      *string `json:"SpO2,omitempty"`
}

// Empty reports whether no field was extracted.
func (r Record) Empty() bool {
	return r.Name == nil && r.Age == nil && r.Gender == nil && r.HeartRate == nil && r.SpO2 == nil
}

// Summary is the one-line card shown after a successful submission.
func (r Record) Summary() string {
	return fmt.Sprintf("Patient: %s, HR: %s bpm, SpO2: %s%%",
		valueOr(r.Name, "Unknown"), valueOr(r.HeartRate, "--"), valueOr(r.SpO2, "--"))
}

func valueOr(p *string, fallback string) string {
	if p == nil || *p == "" {
		return fallback
	}
	return *p
}

// Config selects and configures a Gateway implementation.
type Config struct {
	Provider string // "http", "openai" or "groq"
	HTTP     HTTPConfig
	LLM      LLMConfig
}

// New creates the configured gateway.
func New(cfg Config) (Gateway, error) {
	switch cfg.Provider {
	case "http", "":
		if cfg.HTTP.Endpoint == "" {
			return nil, fmt.Errorf("http gateway requires an endpoint")
		}
		return NewHTTP(cfg.HTTP), nil
	case "openai", "groq":
		llm := cfg.LLM
		llm.Provider = cfg.Provider
		if llm.APIKey == "" {
			return nil, fmt.Errorf("%s gateway requires an API key", cfg.Provider)
		}
		return NewLLM(llm), nil
	default:
		return nil, fmt.Errorf("unsupported gateway provider: %s", cfg.Provider)
	}
}

func failure(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSubmissionFailed, fmt.Sprintf(format, args...))
}

// decodeRecord reads one JSON object permissively: unknown keys are ignored,
// null and missing fields stay nil, and numbers or booleans are kept as
// their literal text.
func decodeRecord(r io.Reader) (Record, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return Record{}, fmt.Errorf("decode response: %w", err)
	}
	if raw == nil {
		return Record{}, fmt.Errorf("decode response: not an object")
	}

	var rec Record
	fields := []struct {
		key string
		dst **string
	}{
		{"name", &rec.Name},
		{"age", &rec.Age},
		{"gender", &rec.Gender},
		{"heart_rate", &rec.HeartRate},
		{"SpO2", &rec.SpO2},
	}
	for _, f := range fields {
		msg, ok := raw[f.key]
		if !ok {
			continue
		}
		v, err := looseString(msg)
		if err != nil {
			return Record{}, fmt.Errorf("decode field %s: %w", f.key, err)
		}
		*f.dst = v
	}
	return rec, nil
}

func looseString(msg json.RawMessage) (*string, error) {
	var v any
	if err := json.Unmarshal(msg, &v); err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return &t, nil
	case float64:
		s := strconv.FormatFloat(t, 'f', -1, 64)
		return &s, nil
	case bool:
		s := strconv.FormatBool(t)
		return &s, nil
	default:
		return nil, fmt.Errorf("unexpected %T", v)
	}
}

func since(start time.Time) time.Duration {
	return time.Since(start).Round(time.Millisecond)
}
