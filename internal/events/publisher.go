// Package events delivers monitor events to in-process subscribers, Kafka and
// WebSocket clients.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/erikprat61/supreme-memory/internal/models"
	"github.com/erikprat61/supreme-memory/internal/observability/metrics"
	"github.com/erikprat61/supreme-memory/internal/schema"
)

// Publisher publishes monitor events to Kafka: transcripts, finalized sessions
// and voice activity each go to their own topic.
type Publisher struct {
	writerTranscripts *kafka.Writer
	writerSessions    *kafka.Writer
	writerActivity    *kafka.Writer
	principal         string
	topicTranscripts  string
	topicSessions     string
	topicActivity     string
	enabled           bool
	publishTimeout    time.Duration
	validator         *schema.Validator
	metrics           *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers          []string
	TopicTranscripts string
	TopicSessions    string
	TopicActivity    string // empty disables activity events
	Principal        string
	Enabled          bool
	PublishTimeout   time.Duration
}

// New creates a Kafka event publisher. With Kafka disabled or no brokers the
// publisher validates and logs events only.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled:        false,
			publishTimeout: 5 * time.Second,
			validator:      schema.New(),
			metrics:        m,
		}
	}

	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	p := &Publisher{
		principal:        cfg.Principal,
		topicTranscripts: cfg.TopicTranscripts,
		topicSessions:    cfg.TopicSessions,
		topicActivity:    cfg.TopicActivity,
		publishTimeout:   timeout,
		validator:        schema.New(),
		metrics:          m,
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return p
	}

	// Longer dial timeout for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}
	newWriter := func(topic string) *kafka.Writer {
		if topic == "" {
			return nil
		}
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

	p.writerTranscripts = newWriter(cfg.TopicTranscripts)
	p.writerSessions = newWriter(cfg.TopicSessions)
	p.writerActivity = newWriter(cfg.TopicActivity)
	p.enabled = true

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicTranscripts", cfg.TopicTranscripts).
		Str("topicSessions", cfg.TopicSessions).
		Str("topicActivity", cfg.TopicActivity).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return p
}

// OnEvent implements Listener. Publish failures are logged and counted.
func (p *Publisher) OnEvent(event models.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), p.publishTimeout)
	defer cancel()
	_ = p.Publish(ctx, event)
}

// Publish routes event to its topic.
func (p *Publisher) Publish(ctx context.Context, event models.Event) error {
	if err := p.validator.Validate(event); err != nil {
		log.Warn().Err(err).Str("eventType", string(event.Type)).Msg("Dropping invalid event")
		return err
	}

	writer, topic := p.route(event.Type)
	if topic == "" {
		return nil
	}
	key := event.SessionID
	if key == "" {
		key = event.Source
	}
	return p.publish(ctx, writer, topic, string(event.Type), key, event)
}

func (p *Publisher) route(t models.EventType) (*kafka.Writer, string) {
	switch t {
	case models.EventTranscriptionReceived:
		return p.writerTranscripts, p.topicTranscripts
	case models.EventSessionFinalized:
		return p.writerSessions, p.topicSessions
	case models.EventSoundStart, models.EventSoundEnd:
		return p.writerActivity, p.topicActivity
	default:
		return nil, ""
	}
}

// publish is the internal method that writes to a specific Kafka writer.
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

	// If Kafka is disabled, just log
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
	for name, w := range map[string]*kafka.Writer{
		"transcripts": p.writerTranscripts,
		"sessions":    p.writerSessions,
		"activity":    p.writerActivity,
	} {
		if w == nil {
			continue
		}
		if e := w.Close(); e != nil {
			log.Error().Err(e).Str("writer", name).Msg("Error closing Kafka writer")
			err = e
		}
	}
	return err
}
