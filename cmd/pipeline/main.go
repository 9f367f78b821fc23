// Command pipeline wires the event collector, durable storage, aggregator,
// and retention engine into a single running process (SPEC_FULL.md §11).
// It exposes no HTTP or CLI surface of its own; configuration is read from
// a YAML file and the process runs until SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abramin/eventpipe/internal/aggregator"
	"github.com/abramin/eventpipe/internal/aggregator/cache"
	"github.com/abramin/eventpipe/internal/collector"
	"github.com/abramin/eventpipe/internal/events"
	"github.com/abramin/eventpipe/internal/kafkasink"
	"github.com/abramin/eventpipe/internal/platform/config"
	"github.com/abramin/eventpipe/internal/platform/logger"
	"github.com/abramin/eventpipe/internal/platform/metrics"
	platredis "github.com/abramin/eventpipe/internal/platform/redis"
	"github.com/abramin/eventpipe/internal/policy"
	"github.com/abramin/eventpipe/internal/retention"
	"github.com/abramin/eventpipe/internal/storage"
	"github.com/abramin/eventpipe/internal/storage/memory"
	"github.com/abramin/eventpipe/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "eventpipe.yaml", "path to the pipeline's YAML config file")
	logFormat := flag.String("log-format", "json", "log format: json or text")
	flag.Parse()

	log := logger.New(logger.Format(*logFormat), slog.LevelInfo)

	if err := run(*configPath, log); err != nil {
		log.Error("pipeline exited with error", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	procMetrics := metrics.New()
	procMetrics.MarkUp()
	defer procMetrics.MarkDown()

	store, closeStore, err := buildStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build storage: %w", err)
	}
	defer closeStore()

	pol := policy.New(cfg)

	coll := collector.New(pol, cfg, collector.WithLogger(log))
	coll.RegisterSink(collector.NewStorageSink(store))

	if len(cfg.Kafka.Brokers) > 0 {
		if err := kafkasink.EnsureTopic(ctx, cfg.Kafka); err != nil {
			return fmt.Errorf("ensure kafka topic: %w", err)
		}
		sink, err := kafkasink.New(cfg.Kafka, log)
		if err != nil {
			return fmt.Errorf("build kafka sink: %w", err)
		}
		defer sink.Close()
		coll.RegisterSink(sink)
	}

	aggCache, closeCache, err := buildCache(cfg, log)
	if err != nil {
		return fmt.Errorf("build aggregator cache: %w", err)
	}
	defer closeCache()
	agg := aggregator.New(store, aggCache)
	runAggregateRefresh(ctx, agg, log)

	retentionEngine := retention.NewEngine(store, cfg.Retention.ArchiveDir, cfg.Retention.HistoryCapacity,
		retention.WithLogger(log),
		retention.WithMetrics(retention.NewMetrics(nil)),
	)
	registerDefaultPolicies(retentionEngine, cfg.Retention)

	scheduler := retention.NewScheduler(retentionEngine, cfg.Retention.EnforceInterval.Duration, log)
	scheduler.Start(ctx)

	log.Info("eventpipe started",
		"storage_backend", cfg.Storage.Backend,
		"kafka_enabled", len(cfg.Kafka.Brokers) > 0,
	)

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := scheduler.Stop(shutdownCtx); err != nil {
		log.Error("retention scheduler stop failed", "error", err)
	}
	if err := coll.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("collector shutdown: %w", err)
	}
	return nil
}

// buildStorage selects the storage backend named by cfg.Storage.Backend.
func buildStorage(ctx context.Context, cfg *config.Config) (storage.AnalyticsStorage, func(), error) {
	switch cfg.Storage.Backend {
	case "postgres":
		store, err := postgres.New(ctx, cfg.Storage.PostgresDSN, cfg.Storage.MaxSizeMB)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres storage: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	default:
		store := memory.New()
		return store, func() {}, nil
	}
}

// buildCache selects the aggregator's cache backend: Redis when a URL is
// configured, the in-process map otherwise (spec.md §9 construction-time
// choice).
func buildCache(cfg *config.Config, log *slog.Logger) (cache.Cache, func(), error) {
	if cfg.Cache.RedisURL == "" {
		return cache.NewInProcess(), func() {}, nil
	}

	client, err := platredis.New(cfg.Cache)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	log.Info("aggregator cache backed by redis", "url", cfg.Cache.RedisURL)
	return cache.NewRedis(client, cfg.Cache.TTL.Duration), func() { _ = client.Close() }, nil
}

// registerDefaultPolicies installs one retention policy per known category
// using the process-wide defaults; operators needing per-category overrides
// construct retention.Policy values directly against the Engine.
func registerDefaultPolicies(e *retention.Engine, cfg config.RetentionConfig) {
	for _, category := range events.AllCategories() {
		p := retention.NewPolicy(string(category)+"-default", []events.Category{category}, cfg.DefaultDays, cfg.GraceDays)
		if _, err := e.RegisterPolicy(p); err != nil {
			panic(fmt.Sprintf("invalid default retention policy for %s: %v", category, err))
		}
	}
}

// defaultAggregationSpecs builds one hourly count-by-category spec per
// known category, the minimal useful window every deployment wants
// pre-populated in cache without an operator configuring anything.
func defaultAggregationSpecs() []aggregator.AggregationSpec {
	specs := make([]aggregator.AggregationSpec, 0, len(events.AllCategories()))
	for _, category := range events.AllCategories() {
		specs = append(specs, aggregator.AggregationSpec{
			Name:        string(category) + "-hourly-count",
			Granularity: aggregator.GranularityHour,
			Categories:  []events.Category{category},
			Functions:   []aggregator.Function{aggregator.FunctionCount},
		})
	}
	return specs
}

// runAggregateRefresh periodically recomputes the default aggregation
// specs over the trailing day and populates the aggregator's cache, so an
// operator calling Cached() gets a warm result without having to trigger
// aggregate_all themselves first.
func runAggregateRefresh(ctx context.Context, agg *aggregator.Aggregator, log *slog.Logger) {
	specs := defaultAggregationSpecs()
	refresh := func() {
		end := time.Now().UTC()
		start := end.Add(-24 * time.Hour)
		if _, err := agg.AggregateAll(ctx, specs, start, end); err != nil {
			log.Error("aggregate refresh failed", "error", err)
		}
	}

	go func() {
		refresh()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				refresh()
			case <-ctx.Done():
				return
			}
		}
	}()
}
