//go:build integration

package kafkasink

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/abramin/eventpipe/internal/events"
	"github.com/abramin/eventpipe/internal/platform/config"
	"github.com/abramin/eventpipe/pkg/testutil/containers"
)

func TestSink_Process_PublishesOneRecordPerEvent(t *testing.T) {
	rc := containers.NewRedpandaContainer(t)
	ctx := context.Background()

	cfg := config.KafkaConfig{
		Brokers:           rc.Brokers,
		Topic:             "eventpipe-test-events",
		NumPartitions:     1,
		ReplicationFactor: 1,
		ClientID:          "eventpipe-test",
	}
	require.NoError(t, EnsureTopic(ctx, cfg))

	sink, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(sink.Close)

	session := events.NewBuilder(events.TypeFeatureUsed).WithTimestamp(time.Now()).Build()
	batch := events.NewBatch(1, []events.Event{session})

	require.NoError(t, sink.Process(ctx, batch))
	require.NoError(t, sink.Flush(ctx))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rc.Brokers...),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	t.Cleanup(consumer.Close)

	pollCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	fetches := consumer.PollFetches(pollCtx)
	fetches.EachError(func(topic string, partition int32, err error) {
		t.Fatalf("fetch error on %s/%d: %v", topic, partition, err)
	})
	assert.Equal(t, 1, fetches.NumRecords())
}
