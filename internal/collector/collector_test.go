package collector

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abramin/eventpipe/internal/events"
	"github.com/abramin/eventpipe/internal/platform/config"
	"github.com/abramin/eventpipe/internal/policy"
)

// recordingSink collects every batch it's handed; safe for concurrent use.
type recordingSink struct {
	name string

	mu      sync.Mutex
	batches []events.Batch
	failN   int // Process fails this many times before succeeding
	flushed bool
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Process(_ context.Context, b events.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failN > 0 {
		s.failN--
		return assert.AnError
	}
	s.batches = append(s.batches, b)
	return nil
}

func (s *recordingSink) Flush(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushed = true
	return nil
}

func (s *recordingSink) snapshot() []events.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]events.Batch, len(s.batches))
	copy(out, s.batches)
	return out
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Collection.BufferSize = 3
	cfg.Collection.FlushInterval = config.Duration{Duration: time.Hour}
	cfg.Collection.QueueDepth = 10
	cfg.Collection.DefaultSamplingRate = 1.0
	return cfg
}

func newTestCollector(t *testing.T, cfg *config.Config) *Collector {
	t.Helper()
	p := policy.New(cfg)
	c := New(p, cfg, WithMetrics(NewMetrics(prometheus.NewRegistry())))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = c.Shutdown(ctx)
	})
	return c
}

func TestCollect_FlushesOnBufferSize(t *testing.T) {
	cfg := testConfig()
	c := newTestCollector(t, cfg)
	sink := &recordingSink{name: "rec"}
	c.RegisterSink(sink)

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Collect(events.NewBuilder(events.TypeFeatureUsed).Build()))
	}

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 3, sink.snapshot()[0].Len())
}

func TestCollect_ManualFlush(t *testing.T) {
	cfg := testConfig()
	c := newTestCollector(t, cfg)
	sink := &recordingSink{name: "rec"}
	c.RegisterSink(sink)

	require.NoError(t, c.Collect(events.NewBuilder(events.TypeFeatureUsed).Build()))
	c.Flush()

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestCollect_EnrichesSessionID(t *testing.T) {
	cfg := testConfig()
	c := newTestCollector(t, cfg)
	sink := &recordingSink{name: "rec"}
	c.RegisterSink(sink)

	require.NoError(t, c.Collect(events.NewBuilder(events.TypeFeatureUsed).Build()))
	c.Flush()

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	sid, has := sink.snapshot()[0].Events()[0].SessionID()
	require.True(t, has)
	assert.Equal(t, c.SessionID(), sid)
}

func TestCollect_PolicyDenyDropsSilently(t *testing.T) {
	cfg := testConfig()
	cfg.PrivacyLevel = config.PrivacyOff
	c := newTestCollector(t, cfg)

	err := c.Collect(events.NewBuilder(events.TypeFeatureUsed).Build())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), c.Stats().Received)
	assert.Equal(t, uint64(0), c.Stats().Processed)
}

func TestCollect_QueueFullReturnsError(t *testing.T) {
	cfg := testConfig()
	cfg.Collection.QueueDepth = 1
	cfg.Collection.BufferSize = 1_000_000
	cfg.Collection.FlushInterval = config.Duration{Duration: time.Hour}
	c := newTestCollector(t, cfg)

	require.NoError(t, c.Collect(events.NewBuilder(events.TypeFeatureUsed).Build()))

	var lastErr error
	for i := 0; i < 20; i++ {
		lastErr = c.Collect(events.NewBuilder(events.TypeFeatureUsed).Build())
		if lastErr != nil {
			break
		}
	}
	assert.Error(t, lastErr)
}

func TestShutdown_RejectsFurtherCollect(t *testing.T) {
	cfg := testConfig()
	p := policy.New(cfg)
	c := New(p, cfg, WithMetrics(NewMetrics(prometheus.NewRegistry())))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Shutdown(ctx))

	err := c.Collect(events.NewBuilder(events.TypeFeatureUsed).Build())
	assert.Error(t, err)
}

func TestShutdown_FlushesSinksAndRemainingEvents(t *testing.T) {
	cfg := testConfig()
	cfg.Collection.BufferSize = 1_000_000
	cfg.Collection.FlushInterval = config.Duration{Duration: time.Hour}
	p := policy.New(cfg)
	c := New(p, cfg, WithMetrics(NewMetrics(prometheus.NewRegistry())))
	sink := &recordingSink{name: "rec"}
	c.RegisterSink(sink)

	require.NoError(t, c.Collect(events.NewBuilder(events.TypeFeatureUsed).Build()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Shutdown(ctx))

	assert.Len(t, sink.snapshot(), 1)
	assert.True(t, sink.flushed)
}

func TestSubscribe_DeliversAcceptedEvents(t *testing.T) {
	cfg := testConfig()
	cfg.Collection.BufferSize = 1_000_000
	cfg.Collection.FlushInterval = config.Duration{Duration: time.Hour}
	c := newTestCollector(t, cfg)

	ch, cancel := c.Subscribe()
	defer cancel()

	require.NoError(t, c.Collect(events.NewBuilder(events.TypeFeatureUsed).Build()))

	select {
	case e := <-ch:
		assert.Equal(t, events.TypeFeatureUsed, e.Type())
	case <-time.After(time.Second):
		t.Fatal("did not receive broadcast event")
	}
}

func TestSinkFailure_IsolatedAndOpensCircuitBreaker(t *testing.T) {
	cfg := testConfig()
	cfg.Collection.BufferSize = 1
	c := New(policy.New(cfg), cfg,
		WithMetrics(NewMetrics(prometheus.NewRegistry())),
		WithSinkCircuitBreaker(2, time.Hour))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = c.Shutdown(ctx)
	})

	failing := &recordingSink{name: "failing", failN: 100}
	healthy := &recordingSink{name: "healthy"}
	c.RegisterSink(failing)
	c.RegisterSink(healthy)

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Collect(events.NewBuilder(events.TypeFeatureUsed).Build()))
	}

	require.Eventually(t, func() bool {
		return len(healthy.snapshot()) == 3
	}, time.Second, 5*time.Millisecond, "healthy sink must keep receiving batches despite failing sink")

	assert.GreaterOrEqual(t, c.Stats().FlushErrors, uint64(2))
}
