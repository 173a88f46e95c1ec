// Package events publishes pipeline output to Kafka: locked transcript
// spans, safety alerts, and quality snapshots on separate topics. With
// Kafka disabled the publisher degrades to log-only mode so the
// pipeline behaves identically in local development.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"clinical-scribe-service/internal/models"
	"clinical-scribe-service/internal/observability/metrics"
)

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers      []string
	TopicSpans   string
	TopicAlerts  string
	TopicQuality string
	Principal    string
	Enabled      bool
}

// SpanEvent is the wire form of a locked transcript span.
type SpanEvent struct {
	EventType string    `json:"eventType"`
	SessionID string    `json:"sessionId"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Text      string    `json:"text"`
	Tag       string    `json:"tag"`
	Tier      string    `json:"tier"`
}

// AlertEvent carries the full ranked alert list for a session; the list
// is recomputed per entity-set change, so consumers replace rather than
// merge.
type AlertEvent struct {
	EventType string               `json:"eventType"`
	SessionID string               `json:"sessionId"`
	Version   int                  `json:"version"`
	Alerts    []models.SafetyAlert `json:"alerts"`
}

// QualityEvent carries the latest quality snapshot.
type QualityEvent struct {
	EventType string                 `json:"eventType"`
	SessionID string                 `json:"sessionId"`
	Version   int                    `json:"version"`
	Quality   models.QualitySnapshot `json:"quality"`
}

// Publisher writes pipeline events to three Kafka topics.
type Publisher struct {
	writerSpans   *kafka.Writer
	writerAlerts  *kafka.Writer
	writerQuality *kafka.Writer
	principal     string
	topicSpans    string
	topicAlerts   string
	topicQuality  string
	enabled       bool
	metrics       *metrics.Metrics
}

// New creates a Publisher. A nil or disabled config yields a log-only
// publisher, never nil.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{enabled: false, metrics: m}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:    cfg.Principal,
			topicSpans:   cfg.TopicSpans,
			topicAlerts:  cfg.TopicAlerts,
			topicQuality: cfg.TopicQuality,
			enabled:      false,
			metrics:      m,
		}
	}

	// Longer dial timeout for DNS resolution inside Kubernetes.
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	writer := func(topic string) *kafka.Writer {
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
		Str("topicSpans", cfg.TopicSpans).
		Str("topicAlerts", cfg.TopicAlerts).
		Str("topicQuality", cfg.TopicQuality).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerSpans:   writer(cfg.TopicSpans),
		writerAlerts:  writer(cfg.TopicAlerts),
		writerQuality: writer(cfg.TopicQuality),
		principal:     cfg.Principal,
		topicSpans:    cfg.TopicSpans,
		topicAlerts:   cfg.TopicAlerts,
		topicQuality:  cfg.TopicQuality,
		enabled:       true,
		metrics:       m,
	}
}

// PublishSpan publishes one locked span, keyed by session id so a
// session's spans stay ordered within a partition.
func (p *Publisher) PublishSpan(ctx context.Context, sessionID string, sp models.ReconciledSpan) error {
	event := SpanEvent{
		EventType: "scribe.transcript.span",
		SessionID: sessionID,
		Start:     sp.Start,
		End:       sp.End,
		Text:      sp.Text,
		Tag:       string(sp.Tag),
		Tier:      string(sp.SourceTier),
	}
	return p.publish(ctx, p.writerSpans, p.topicSpans, "span", sessionID, event)
}

// PublishAlerts publishes the current ranked alert list.
func (p *Publisher) PublishAlerts(ctx context.Context, sessionID string, version int, alerts []models.SafetyAlert) error {
	event := AlertEvent{
		EventType: "scribe.safety.alerts",
		SessionID: sessionID,
		Version:   version,
		Alerts:    alerts,
	}
	return p.publish(ctx, p.writerAlerts, p.topicAlerts, "alerts", sessionID, event)
}

// PublishQuality publishes the latest quality snapshot.
func (p *Publisher) PublishQuality(ctx context.Context, sessionID string, version int, q models.QualitySnapshot) error {
	event := QualityEvent{
		EventType: "scribe.quality.snapshot",
		SessionID: sessionID,
		Version:   version,
		Quality:   q,
	}
	return p.publish(ctx, p.writerQuality, p.topicQuality, "quality", sessionID, event)
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

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

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes all Kafka writers.
func (p *Publisher) Close() error {
	var err error
	for _, w := range []*kafka.Writer{p.writerSpans, p.writerAlerts, p.writerQuality} {
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
