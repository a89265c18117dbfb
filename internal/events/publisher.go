// Package events publishes transcript and analysis events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"speech-to-data/internal/models"
	"speech-to-data/internal/observability/metrics"
	"speech-to-data/internal/schema"
)

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher publishes events to one topic per event kind.
type Publisher struct {
	writerTranscript messageWriter
	writerAnalysis   messageWriter
	principal        string
	topicTranscript  string
	topicAnalysis    string
	enabled          bool
	maxRetries       uint64
	initialBackoff   time.Duration
	validator        *schema.Validator
	metrics          *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers         []string
	TopicTranscript string
	TopicAnalysis   string
	Principal       string
	Enabled         bool
	// MaxRetries bounds retries of a failed write. Zero writes once.
	MaxRetries     uint64
	InitialBackoff time.Duration
}

// New creates a publisher. With a nil config, Enabled unset or no brokers,
// events are only validated and logged.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics
	v := schema.New()

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{validator: v, metrics: m}
	}

	p := &Publisher{
		principal:       cfg.Principal,
		topicTranscript: cfg.TopicTranscript,
		topicAnalysis:   cfg.TopicAnalysis,
		maxRetries:      cfg.MaxRetries,
		initialBackoff:  cfg.InitialBackoff,
		validator:       v,
		metrics:         m,
	}
	if p.initialBackoff <= 0 {
		p.initialBackoff = 200 * time.Millisecond
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return p
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}
	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Transport:    transport,
		}
	}

	p.writerTranscript = newWriter(cfg.TopicTranscript)
	p.writerAnalysis = newWriter(cfg.TopicAnalysis)
	p.enabled = true

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicTranscript", cfg.TopicTranscript).
		Str("topicAnalysis", cfg.TopicAnalysis).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")
	return p
}

// PublishTranscript publishes a transcript update keyed by session.
func (p *Publisher) PublishTranscript(ctx context.Context, ev models.TranscriptUpdate) error {
	return p.publish(ctx, p.writerTranscript, p.topicTranscript, ev.EventType, ev.SessionID, ev)
}

// PublishAnalysis publishes an analysis result keyed by run.
func (p *Publisher) PublishAnalysis(ctx context.Context, ev models.AnalysisResult) error {
	return p.publish(ctx, p.writerAnalysis, p.topicAnalysis, ev.EventType, ev.RunID, ev)
}

func (p *Publisher) publish(ctx context.Context, writer messageWriter, topic, eventType, key string, event any) error {
	start := time.Now()

	if err := p.validator.Validate(event); err != nil {
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.initialBackoff
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, p.maxRetries), ctx)

	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		werr := writer.WriteMessages(ctx, msg)
		if werr != nil {
			log.Warn().
				Err(werr).
				Str("topic", topic).
				Str("key", key).
				Int("attempt", attempt).
				Msg("Kafka write failed")
		}
		return werr
	}, policy)
	if err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerTranscript != nil {
		if e := p.writerTranscript.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing transcript writer")
			err = e
		}
	}
	if p.writerAnalysis != nil {
		if e := p.writerAnalysis.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing analysis writer")
			err = e
		}
	}
	return err
}
