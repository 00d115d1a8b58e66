package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	segmentiokafka "github.com/segmentio/kafka-go"

	"manifold/internal/config"
	kafkatool "manifold/internal/tools/kafka"
)

// KafkaSink publishes ingestion events to a Kafka topic for downstream
// consumers (dashboards, alerting), reusing the same Writer abstraction
// internal/tools/kafka's agent tool sends through.
type KafkaSink struct {
	producer kafkatool.Writer
	topic    string
}

// NewKafkaSink builds a KafkaSink from cfg. Returns (nil, nil) when event
// publication isn't enabled, so callers can treat it as optional exactly
// like NewClickHouseSink.
func NewKafkaSink(cfg config.EventsConfig) (*KafkaSink, error) {
	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		return nil, nil
	}
	producer, err := kafkatool.NewProducerFromBrokers(strings.Join(cfg.Brokers, ","))
	if err != nil {
		return nil, fmt.Errorf("build kafka producer: %w", err)
	}
	topic := cfg.Topic
	if topic == "" {
		topic = "manifold.ingest.events"
	}
	return &KafkaSink{producer: producer, topic: topic}, nil
}

func (s *KafkaSink) Record(ctx context.Context, ev Event) error {
	if s == nil || s.producer == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.producer.WriteMessages(ctx, segmentiokafka.Message{
		Topic: s.topic,
		Key:   []byte(ev.UploadID),
		Value: payload,
	})
}

var _ EventSink = (*KafkaSink)(nil)

// MultiSink fans one event out to every configured sink, continuing past
// individual sink errors so one backend's outage doesn't block the others.
type MultiSink struct {
	Sinks []EventSink
}

func (m MultiSink) Record(ctx context.Context, ev Event) error {
	var firstErr error
	for _, sink := range m.Sinks {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ EventSink = MultiSink{}
