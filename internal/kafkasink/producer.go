// Package kafkasink implements the optional Kafka export EventSink
// (SPEC_FULL.md §4 "Messaging"), mirroring the teacher's outbox→Kafka
// pattern (pkg/platform/audit/store/postgres writes an outbox row per
// event; here the collector produces directly to the topic instead of
// going through an outbox table, since this module has no separate
// outbox-draining worker to pair it with).
package kafkasink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/abramin/eventpipe/internal/events"
	"github.com/abramin/eventpipe/internal/platform/config"
)

// Sink is a collector.EventSink that publishes every event in a flushed
// batch to a Kafka topic, one record per event, keyed by session id when
// present so a consumer group preserves per-session ordering.
type Sink struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// New constructs a Sink connected to cfg.Brokers. The caller must call
// Close to release the underlying client; Flush does not close it.
func New(cfg config.KafkaConfig, logger *slog.Logger) (*Sink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka: new client: %w", err)
	}

	return &Sink{client: client, topic: cfg.Topic, logger: logger}, nil
}

func (s *Sink) Name() string { return "kafka" }

// Process publishes every event in batch as its own record. Records are
// produced asynchronously and their results collected at the end so one
// slow partition doesn't serialize the whole batch; any single failure
// fails the whole Process call (spec.md's at-most-once-per-sink contract:
// the collector does not re-enqueue on sink failure).
func (s *Sink) Process(ctx context.Context, batch events.Batch) error {
	evts := batch.Events()
	if len(evts) == 0 {
		return nil
	}

	results := make(chan error, len(evts))
	for _, e := range evts {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", e.ID().String(), err)
		}

		record := &kgo.Record{Topic: s.topic, Value: payload}
		if session, ok := e.SessionID(); ok {
			record.Key = []byte(session.String())
		}

		s.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
			results <- err
		})
	}

	var firstErr error
	for range evts {
		if err := <-results; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return fmt.Errorf("kafka: produce batch %d: %w", batch.Sequence(), firstErr)
	}
	return nil
}

// Flush blocks until every in-flight produce for this client completes.
func (s *Sink) Flush(ctx context.Context) error {
	return s.client.Flush(ctx)
}

// Close releases the underlying Kafka client's connections.
func (s *Sink) Close() {
	s.client.Close()
}
