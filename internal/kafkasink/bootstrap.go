package kafkasink

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/abramin/eventpipe/internal/platform/config"
)

// EnsureTopic creates cfg.Topic with the configured partition count and
// replication factor if it does not already exist. Kafka topic creation is
// idempotent at the broker level only when auto.create is disabled and the
// topic is genuinely missing; an "already exists" response is treated as
// success.
func EnsureTopic(ctx context.Context, cfg config.KafkaConfig) error {
	client, err := kgo.NewClient(kgo.SeedBrokers(cfg.Brokers...), kgo.ClientID(cfg.ClientID))
	if err != nil {
		return fmt.Errorf("kafka: new admin client: %w", err)
	}
	defer client.Close()

	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopics(ctx, cfg.NumPartitions, cfg.ReplicationFactor, nil, cfg.Topic)
	if err != nil {
		return fmt.Errorf("kafka: create topic %q: %w", cfg.Topic, err)
	}

	for _, t := range resp {
		if t.Err != nil && !errors.Is(t.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("kafka: create topic %q: %w", t.Topic, t.Err)
		}
	}
	return nil
}
