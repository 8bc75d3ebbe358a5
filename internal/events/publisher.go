// Package events publishes transcript and translation events to Kafka, with
// a log-only mode when no brokers are configured.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"voice-translation-bridge/internal/observability/metrics"
	"voice-translation-bridge/internal/schema"
)

// Publisher writes pipeline events to separate Kafka topics: partial
// transcripts, final transcripts and translation results.
type Publisher struct {
	writerPartial     *kafka.Writer
	writerFinal       *kafka.Writer
	writerTranslation *kafka.Writer
	principal         string
	topicPartial      string
	topicFinal        string
	topicTranslation  string
	enabled           bool
	metrics           *metrics.Metrics
	validator         *schema.Validator
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers          []string
	TopicPartial     string
	TopicFinal       string
	TopicTranslation string
	Principal        string
	Enabled          bool
}

// New creates a Kafka event publisher. A nil config, disabled flag or empty
// broker list produces a log-only publisher.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled:   false,
			metrics:   m,
			validator: schema.New(),
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:        cfg.Principal,
			topicPartial:     cfg.TopicPartial,
			topicFinal:       cfg.TopicFinal,
			topicTranslation: cfg.TopicTranslation,
			enabled:          false,
			metrics:          m,
			validator:        schema.New(),
		}
	}

	// Longer dial timeouts for DNS resolution in Kubernetes.
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

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicPartial", cfg.TopicPartial).
		Str("topicFinal", cfg.TopicFinal).
		Str("topicTranslation", cfg.TopicTranslation).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerPartial:     newWriter(cfg.TopicPartial),
		writerFinal:       newWriter(cfg.TopicFinal),
		writerTranslation: newWriter(cfg.TopicTranslation),
		principal:         cfg.Principal,
		topicPartial:      cfg.TopicPartial,
		topicFinal:        cfg.TopicFinal,
		topicTranslation:  cfg.TopicTranslation,
		enabled:           true,
		metrics:           m,
		validator:         schema.New(),
	}
}

// PublishPartial publishes a partial transcript event.
func (p *Publisher) PublishPartial(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerPartial, p.topicPartial, "partial", key, event)
}

// PublishFinal publishes a final transcript event.
func (p *Publisher) PublishFinal(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerFinal, p.topicFinal, "final", key, event)
}

// PublishTranslation publishes a translation result event.
func (p *Publisher) PublishTranslation(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerTranslation, p.topicTranslation, "translation", key, event)
}

// publish is the internal method that writes to a specific Kafka writer.
func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	if err := p.validator.Validate(event); err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Event failed validation")
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	p.metrics.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()

	// If Kafka is disabled, just log
	if !p.enabled || writer == nil {
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

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
		return err
	}

	return nil
}

// Close closes all Kafka writers.
func (p *Publisher) Close() error {
	var err error
	for _, w := range []*kafka.Writer{p.writerPartial, p.writerFinal, p.writerTranslation} {
		if w == nil {
			continue
		}
		if e := w.Close(); e != nil {
			log.Error().Err(e).Str("topic", w.Topic).Msg("Error closing writer")
			err = e
		}
	}
	return err
}
