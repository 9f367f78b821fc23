// Package collector implements the event-intake component: it accepts
// events from many concurrent producers, applies policy and sampling,
// enriches with a session id, and fans out flushed batches to registered
// sinks (spec.md §4.3).
package collector

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abramin/eventpipe/internal/events"
	"github.com/abramin/eventpipe/internal/platform/config"
	"github.com/abramin/eventpipe/internal/policy"
	"github.com/abramin/eventpipe/pkg/ids"
	"github.com/abramin/eventpipe/pkg/perrors"
	"github.com/abramin/eventpipe/pkg/platform/sentinel"
)

// state is the collector's lifecycle state machine (spec.md §4.3):
// Running → Shutting-Down → Stopped. Only Running accepts Collect.
type state int32

const (
	stateRunning state = iota
	stateShuttingDown
	stateStopped
)

// Stats is a point-in-time snapshot of the collector's counters
// (spec.md §4.3 stats()).
type Stats struct {
	Received       uint64
	SampledOut     uint64
	Processed      uint64
	Dropped        uint64
	BatchesFlushed uint64
	FlushErrors    uint64
}

// Option configures a Collector at construction time.
type Option func(*Collector)

// WithLogger overrides the default discard logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collector) { c.logger = logger }
}

// WithMetrics overrides the default Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Collector) { c.metrics = m }
}

// WithBroadcastBuffer sets the best-effort real-time broadcast channel's
// per-subscriber buffer size (default 64).
func WithBroadcastBuffer(n int) Option {
	return func(c *Collector) { c.broadcastBuffer = n }
}

// WithClock overrides time.Now, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// WithSinkCircuitBreaker overrides the per-sink circuit breaker's failure
// threshold and cooldown (defaults: 5 failures, 1 minute).
func WithSinkCircuitBreaker(threshold int, cooldown time.Duration) Option {
	return func(c *Collector) {
		c.cbThreshold = threshold
		c.cbCooldown = cooldown
	}
}

// Collector is the process-wide event intake point. Host code constructs it
// once at startup (spec.md §9: "process-wide value with explicit init and
// teardown" in place of the source's lazy-singleton pattern) and passes the
// handle into producer code.
type Collector struct {
	sessionID ids.SessionID
	policy    *policy.Policy
	sampler   *sampler
	logger    *slog.Logger
	metrics   *Metrics
	now       func() time.Time

	broadcastBuffer int
	cbThreshold     int
	cbCooldown      time.Duration

	state atomic.Int32

	queue chan events.Event

	mu         sync.Mutex // guards buffer, sinks, subscribers, sequence
	buffer     []events.Event
	sinks      map[string]EventSink
	breakers   map[string]*circuitBreaker
	subs       map[int]chan events.Event
	nextSubID  int
	sequence   uint64
	lastFlush  time.Time

	stats struct {
		received, sampledOut, processed, dropped, batchesFlushed, flushErrors atomic.Uint64
	}

	flushSignal chan struct{}
	stopWorker  chan struct{}
	workerDone  chan struct{}
}

// New constructs a Collector bound to the given policy and config. The
// background flush worker is started immediately; call Shutdown to stop it.
func New(p *policy.Policy, cfg *config.Config, opts ...Option) *Collector {
	c := &Collector{
		sessionID:       ids.NewSessionID(),
		policy:          p,
		sampler:         newSampler(),
		logger:          slog.New(slog.DiscardHandler),
		now:             time.Now,
		broadcastBuffer: 64,
		cbThreshold:     5,
		cbCooldown:      time.Minute,
		sinks:           make(map[string]EventSink),
		breakers:        make(map[string]*circuitBreaker),
		subs:            make(map[int]chan events.Event),
		flushSignal:     make(chan struct{}, 1),
		stopWorker:      make(chan struct{}),
		workerDone:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}
	c.queue = make(chan events.Event, cfg.Collection.QueueDepth)
	c.lastFlush = c.now()

	go c.runWorker(cfg.Collection.BufferSize, cfg.Collection.FlushInterval.Duration)

	return c
}

// SessionID returns the collector's stable session id.
func (c *Collector) SessionID() ids.SessionID { return c.sessionID }

// Stats returns a snapshot of the collector's counters.
func (c *Collector) Stats() Stats {
	return Stats{
		Received:       c.stats.received.Load(),
		SampledOut:     c.stats.sampledOut.Load(),
		Processed:      c.stats.processed.Load(),
		Dropped:        c.stats.dropped.Load(),
		BatchesFlushed: c.stats.batchesFlushed.Load(),
		FlushErrors:    c.stats.flushErrors.Load(),
	}
}

// Collect accepts one event from a producer (spec.md §4.3 algorithm).
// It returns immediately: events are dropped silently when policy denies or
// sampling excludes them; an error is returned only when the collector is
// shut down or the ingest queue is full (the caller's back-pressure
// signal).
func (c *Collector) Collect(e events.Event) error {
	if state(c.state.Load()) != stateRunning {
		return sentinel.ErrShutdown
	}

	c.stats.received.Add(1)
	c.metrics.Received.Inc()

	if !c.policy.ShouldCollect(e.Type(), e.Priority()) {
		return nil
	}

	samplingCfg := c.policy.SamplingFor(e.Type())
	if !c.sampler.allow(e.Type(), samplingCfg, c.now()) {
		c.stats.sampledOut.Add(1)
		c.metrics.SampledOut.Inc()
		return nil
	}

	if _, has := e.SessionID(); !has {
		e = e.EnrichSessionID(c.sessionID)
	}

	c.broadcast(e)

	select {
	case c.queue <- e:
		c.stats.processed.Add(1)
		c.metrics.Processed.Inc()
		c.metrics.QueueDepth.Set(float64(len(c.queue)))
		return nil
	default:
		c.stats.dropped.Add(1)
		c.metrics.Dropped.Inc()
		return perrors.Wrap(sentinel.ErrQueueFull, perrors.CodeUnavailable, "ingest queue full")
	}
}

// broadcast publishes e to every subscriber, non-blocking: a full
// subscriber channel drops only that subscriber's copy, never the event
// itself (spec.md §4.3 step 4).
func (c *Collector) broadcast(e events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe returns a real-time receiver of accepted events. Delivery is
// best-effort: a slow subscriber may miss events once its buffer fills.
// The returned cancel function unregisters the subscription.
func (c *Collector) Subscribe() (<-chan events.Event, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSubID
	c.nextSubID++
	ch := make(chan events.Event, c.broadcastBuffer)
	c.subs[id] = ch
	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if existing, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(existing)
		}
	}
	return ch, cancel
}

// RegisterSink adds a sink to the fan-out set. Registration is observable
// by the next flush (spec.md §4.3).
func (c *Collector) RegisterSink(sink EventSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinks[sink.Name()] = sink
	c.breakers[sink.Name()] = newCircuitBreaker(c.cbThreshold, c.cbCooldown)
}

// UnregisterSink removes a sink by name.
func (c *Collector) UnregisterSink(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sinks, name)
	delete(c.breakers, name)
}

// Flush signals the background worker to flush the current buffer early,
// without waiting for the next tick. It does not block: the signal is
// dropped if one is already pending, and the caller returns before the
// worker has actually processed it.
func (c *Collector) Flush() {
	select {
	case c.flushSignal <- struct{}{}:
	default:
	}
}

// runWorker owns the in-memory buffer (spec.md §4.3 "Background worker").
// It drains the ingest queue, appending to the buffer, and flushes when the
// buffer reaches bufferSize, flushInterval elapses, or Flush() is called.
func (c *Collector) runWorker(bufferSize int, flushInterval time.Duration) {
	defer close(c.workerDone)

	if flushInterval <= 0 {
		flushInterval = 30 * time.Second
	}
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case e := <-c.queue:
			c.mu.Lock()
			c.buffer = append(c.buffer, e)
			shouldFlush := len(c.buffer) >= bufferSize
			c.mu.Unlock()
			if shouldFlush {
				c.doFlush()
			}
		case <-ticker.C:
			c.doFlush()
		case <-c.flushSignal:
			c.doFlush()
		case <-c.stopWorker:
			c.drainQueue()
			c.doFlush()
			return
		}
	}
}

// drainQueue empties any events still sitting in the ingest queue into the
// buffer before the final shutdown flush.
func (c *Collector) drainQueue() {
	for {
		select {
		case e := <-c.queue:
			c.mu.Lock()
			c.buffer = append(c.buffer, e)
			c.mu.Unlock()
		default:
			return
		}
	}
}

// doFlush atomically swaps the buffer for an empty one, wraps the drained
// events in a Batch with the next sequence number, and invokes Process on
// every registered sink sequentially (spec.md §4.3).
func (c *Collector) doFlush() {
	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return
	}
	drained := c.buffer
	c.buffer = nil
	c.sequence++
	seq := c.sequence
	c.lastFlush = c.now()

	sinks := make([]EventSink, 0, len(c.sinks))
	breakers := make([]*circuitBreaker, 0, len(c.sinks))
	for name, sink := range c.sinks {
		sinks = append(sinks, sink)
		breakers = append(breakers, c.breakers[name])
	}
	c.mu.Unlock()

	batch := events.NewBatch(seq, drained)
	c.stats.batchesFlushed.Add(1)
	c.metrics.BatchesFlushed.Inc()

	ctx := context.Background()
	now := c.now()
	for i, sink := range sinks {
		cb := breakers[i]
		if cb != nil && !cb.allow(now) {
			continue
		}
		if err := sink.Process(ctx, batch); err != nil {
			c.stats.flushErrors.Add(1)
			c.metrics.FlushErrors.Inc()
			c.logger.Error("sink process failed", "sink", sink.Name(), "error", err)
			if cb != nil {
				cb.recordFailure(now)
			}
			continue
		}
		if cb != nil {
			cb.recordSuccess()
		}
	}
}

// Shutdown transitions Running → Shutting-Down → Stopped: it stops
// accepting new Collect calls, flushes remaining events, flushes all
// sinks, and joins the background worker.
func (c *Collector) Shutdown(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(stateRunning), int32(stateShuttingDown)) {
		return nil
	}

	close(c.stopWorker)
	select {
	case <-c.workerDone:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.Lock()
	sinks := make([]EventSink, 0, len(c.sinks))
	for _, sink := range c.sinks {
		sinks = append(sinks, sink)
	}
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, ch := range subs {
		close(ch)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, sink := range sinks {
		sink := sink
		g.Go(func() error {
			if err := sink.Flush(gctx); err != nil {
				c.logger.Error("sink flush failed", "sink", sink.Name(), "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	c.state.Store(int32(stateStopped))
	return nil
}
