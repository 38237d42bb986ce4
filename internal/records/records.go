// Package records publishes every successfully extracted record to Kafka so
// downstream systems can pick it up.
package records

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/andlab/doctas/internal/gateway"
	"github.com/andlab/doctas/internal/logging"
	"github.com/andlab/doctas/internal/metrics"
)

// Config holds Kafka publisher configuration.
type Config struct {
	Enabled      bool
	Brokers      []string
	Topic        string
	Source       string // identifies this workstation in message headers
	WriteTimeout time.Duration
}

// Event is the message value written for one extracted record.
type Event struct {
	CapturedAt time.Time      `json:"captured_at"`
	Source     string         `json:"source,omitempty"`
	Transcript string         `json:"transcript"`
	Record     gateway.Record `json:"record"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes Events to one topic. A disabled Publisher only logs.
type Publisher struct {
	writer  messageWriter
	topic   string
	source  string
	enabled bool
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

func New(cfg Config, m *metrics.Metrics) *Publisher {
	logger := logging.WithComponent("records")
	p := &Publisher{
		topic:   cfg.Topic,
		source:  cfg.Source,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		logger.Info().Msg("record publishing disabled, using log-only mode")
		return p
	}

	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{Dial: dialer.DialFunc},
	}
	p.enabled = true

	logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Str("source", cfg.Source).
		Msg("record publisher initialized")
	return p
}

// Enabled reports whether records leave the process.
func (p *Publisher) Enabled() bool {
	return p.enabled
}

// Publish writes one record and the transcript it came from.
func (p *Publisher) Publish(ctx context.Context, transcript string, rec gateway.Record) error {
	event := Event{
		CapturedAt: p.now().UTC(),
		Source:     p.source,
		Transcript: transcript,
		Record:     rec,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal record event: %w", err)
	}

	key := event.CapturedAt.Format(time.RFC3339Nano)
	p.logger.Debug().Str("topic", p.topic).Str("key", key).RawJSON("payload", payload).Msg("publishing record")

	if !p.enabled || p.writer == nil {
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte("extracted_record")},
			{Key: "source", Value: []byte(p.source)},
		},
	}
	err = p.writer.WriteMessages(ctx, msg)
	p.metrics.RecordPublished(err)
	if err != nil {
		p.logger.Error().Err(err).Str("topic", p.topic).Msg("failed to write record")
		return fmt.Errorf("write record to %s: %w", p.topic, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
