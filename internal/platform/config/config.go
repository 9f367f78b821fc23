// Package config loads and validates the pipeline's structured configuration
// tree (spec.md §6): a YAML file with environment-variable expansion,
// followed by environment-variable overrides that never fail startup.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abramin/eventpipe/internal/events"
)

// PrivacyLevel is the coarse allow-list controlling which event categories
// may enter the pipeline (spec.md §4.2).
type PrivacyLevel string

const (
	PrivacyOff      PrivacyLevel = "off"
	PrivacyMinimal  PrivacyLevel = "minimal"
	PrivacyBalanced PrivacyLevel = "balanced"
	PrivacyFull     PrivacyLevel = "full"
)

func (p PrivacyLevel) valid() bool {
	switch p {
	case PrivacyOff, PrivacyMinimal, PrivacyBalanced, PrivacyFull:
		return true
	default:
		return false
	}
}

// SyncMode mirrors the storage engine's durability/performance tradeoff.
type SyncMode string

const (
	SyncFull   SyncMode = "full"
	SyncNormal SyncMode = "normal"
	SyncOff    SyncMode = "off"
)

// Duration wraps time.Duration for YAML string parsing ("30s", "5m").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

// CollectionConfig controls the collector's buffering and sampling.
type CollectionConfig struct {
	BufferSize          int      `yaml:"buffer_size"`
	FlushInterval       Duration `yaml:"flush_interval"`
	DefaultSamplingRate float64  `yaml:"default_sampling_rate"`
	BatchSize           int      `yaml:"batch_size"`
	QueueDepth          int      `yaml:"queue_depth"`
}

// StorageConfig controls the storage engine's backend and on-disk
// behavior. Backend selects which internal/storage implementation
// cmd/pipeline constructs: "memory" (default; test/dev, process-lifetime
// only) or "postgres" (durable).
type StorageConfig struct {
	Path        string   `yaml:"path"`
	MaxSizeMB   int      `yaml:"max_size_mb"`
	Compression bool     `yaml:"compression"`
	WALMode     bool     `yaml:"wal_mode"`
	SyncMode    SyncMode `yaml:"sync_mode"`
	Backend     string   `yaml:"backend"`
	PostgresDSN string   `yaml:"postgres_dsn"`
}

// ExportConfig is a placeholder for the (out-of-scope) export surface; kept
// so the config file's top-level shape matches spec.md §6 even though
// eventpipe's core does not implement report rendering or webhook delivery.
type ExportConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Destination string `yaml:"destination"`
}

// CacheConfig controls the aggregator's second-tier cache. An empty URL
// means no Redis is configured and the aggregator falls back to its
// in-process cache.
type CacheConfig struct {
	RedisURL     string   `yaml:"redis_url"`
	PoolSize     int      `yaml:"pool_size"`
	MinIdleConns int      `yaml:"min_idle_conns"`
	DialTimeout  Duration `yaml:"dial_timeout"`
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
	TTL          Duration `yaml:"ttl"`
}

// RetentionConfig carries the process-wide defaults; named per-category
// retention policies are constructed programmatically via internal/retention.
type RetentionConfig struct {
	DefaultDays     int      `yaml:"default_days"`
	GraceDays       int      `yaml:"grace_days"`
	ArchiveDir      string   `yaml:"archive_dir"`
	HistoryCapacity int      `yaml:"history_capacity"`
	EnforceInterval Duration `yaml:"enforce_interval"`
}

// KafkaConfig controls the optional Kafka export sink (SPEC_FULL.md §4). An
// empty Brokers list means the sink is not constructed and the collector
// runs with storage as its only sink.
type KafkaConfig struct {
	Brokers           []string `yaml:"brokers"`
	Topic             string   `yaml:"topic"`
	NumPartitions     int32    `yaml:"num_partitions"`
	ReplicationFactor int16    `yaml:"replication_factor"`
	ClientID          string   `yaml:"client_id"`
	ProduceTimeout    Duration `yaml:"produce_timeout"`
}

// EventOverride tunes policy for one specific event type.
type EventOverride struct {
	Enabled       bool            `yaml:"enabled"`
	MinPriority   events.Priority `yaml:"min_priority"`
	SamplingRate  *float64        `yaml:"sampling_rate,omitempty"`
	MinPerWindow  *int            `yaml:"min_per_window,omitempty"`
	WindowSeconds *int            `yaml:"window_seconds,omitempty"`
}

// CategorySetting tunes policy for an entire event category.
type CategorySetting struct {
	Enabled       bool            `yaml:"enabled"`
	MinPriority   events.Priority `yaml:"min_priority"`
	SamplingRate  *float64        `yaml:"sampling_rate,omitempty"`
	MinPerWindow  *int            `yaml:"min_per_window,omitempty"`
	WindowSeconds *int            `yaml:"window_seconds,omitempty"`
}

// Config is the full structured configuration tree from spec.md §6.
type Config struct {
	Enabled          bool                       `yaml:"enabled"`
	PrivacyLevel     PrivacyLevel               `yaml:"privacy_level"`
	Collection       CollectionConfig           `yaml:"collection"`
	Storage          StorageConfig              `yaml:"storage"`
	Export           ExportConfig               `yaml:"export"`
	Cache            CacheConfig                `yaml:"cache"`
	Retention        RetentionConfig            `yaml:"retention"`
	Kafka            KafkaConfig                `yaml:"kafka"`
	EventOverrides   map[string]EventOverride   `yaml:"event_overrides"`
	CategorySettings map[string]CategorySetting `yaml:"category_settings"`
}

// Default returns the configuration filled with spec.md §6's documented
// defaults: enabled=true, privacy=balanced, buffer=1000, flush=30s,
// retention=30d, max-size=100MB, sync=normal.
func Default() *Config {
	return &Config{
		Enabled:      true,
		PrivacyLevel: PrivacyBalanced,
		Collection: CollectionConfig{
			BufferSize:          1000,
			FlushInterval:       Duration{30 * time.Second},
			DefaultSamplingRate: 1.0,
			BatchSize:           1000,
			QueueDepth:          10000,
		},
		Storage: StorageConfig{
			Path:      "eventpipe.db",
			MaxSizeMB: 100,
			SyncMode:  SyncNormal,
			Backend:   "memory",
		},
		Cache: CacheConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  Duration{5 * time.Second},
			ReadTimeout:  Duration{3 * time.Second},
			WriteTimeout: Duration{3 * time.Second},
			TTL:          Duration{5 * time.Minute},
		},
		Retention: RetentionConfig{
			DefaultDays:     30,
			ArchiveDir:      "eventpipe-archive",
			HistoryCapacity: 500,
			EnforceInterval: Duration{time.Hour},
		},
		Kafka: KafkaConfig{
			Topic:             "eventpipe.events",
			NumPartitions:     6,
			ReplicationFactor: 1,
			ClientID:          "eventpipe",
			ProduceTimeout:    Duration{5 * time.Second},
		},
		EventOverrides:   map[string]EventOverride{},
		CategorySettings: map[string]CategorySetting{},
	}
}

// Load reads a YAML config file, expands ${VAR} environment references,
// unmarshals into a Config, and fills in any zero-valued defaults. Unknown
// keys are rejected to catch typos early, matching the pack's YAML-config
// idiom.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("cannot read config file %q: %w", path, err)
	}

	expanded := ExpandEnv(string(data))

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

// applyDefaults fills any zero-valued fields left after decoding a partial
// file, matching spec.md §6's documented default table.
func applyDefaults(cfg *Config) {
	d := Default()
	if cfg.PrivacyLevel == "" {
		cfg.PrivacyLevel = d.PrivacyLevel
	}
	if cfg.Collection.BufferSize == 0 {
		cfg.Collection.BufferSize = d.Collection.BufferSize
	}
	if cfg.Collection.FlushInterval.Duration == 0 {
		cfg.Collection.FlushInterval = d.Collection.FlushInterval
	}
	if cfg.Collection.DefaultSamplingRate == 0 {
		cfg.Collection.DefaultSamplingRate = d.Collection.DefaultSamplingRate
	}
	if cfg.Collection.BatchSize == 0 {
		cfg.Collection.BatchSize = d.Collection.BatchSize
	}
	if cfg.Collection.QueueDepth == 0 {
		cfg.Collection.QueueDepth = d.Collection.QueueDepth
	}
	if cfg.Storage.MaxSizeMB == 0 {
		cfg.Storage.MaxSizeMB = d.Storage.MaxSizeMB
	}
	if cfg.Storage.SyncMode == "" {
		cfg.Storage.SyncMode = d.Storage.SyncMode
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = d.Storage.Backend
	}
	if cfg.Retention.DefaultDays == 0 {
		cfg.Retention.DefaultDays = d.Retention.DefaultDays
	}
	if cfg.Retention.ArchiveDir == "" {
		cfg.Retention.ArchiveDir = d.Retention.ArchiveDir
	}
	if cfg.Retention.HistoryCapacity == 0 {
		cfg.Retention.HistoryCapacity = d.Retention.HistoryCapacity
	}
	if cfg.Retention.EnforceInterval.Duration == 0 {
		cfg.Retention.EnforceInterval = d.Retention.EnforceInterval
	}
	if cfg.Cache.PoolSize == 0 {
		cfg.Cache.PoolSize = d.Cache.PoolSize
	}
	if cfg.Cache.DialTimeout.Duration == 0 {
		cfg.Cache.DialTimeout = d.Cache.DialTimeout
	}
	if cfg.Cache.ReadTimeout.Duration == 0 {
		cfg.Cache.ReadTimeout = d.Cache.ReadTimeout
	}
	if cfg.Cache.WriteTimeout.Duration == 0 {
		cfg.Cache.WriteTimeout = d.Cache.WriteTimeout
	}
	if cfg.Cache.TTL.Duration == 0 {
		cfg.Cache.TTL = d.Cache.TTL
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = d.Kafka.Topic
	}
	if cfg.Kafka.NumPartitions == 0 {
		cfg.Kafka.NumPartitions = d.Kafka.NumPartitions
	}
	if cfg.Kafka.ReplicationFactor == 0 {
		cfg.Kafka.ReplicationFactor = d.Kafka.ReplicationFactor
	}
	if cfg.Kafka.ClientID == "" {
		cfg.Kafka.ClientID = d.Kafka.ClientID
	}
	if cfg.Kafka.ProduceTimeout.Duration == 0 {
		cfg.Kafka.ProduceTimeout = d.Kafka.ProduceTimeout
	}
	if cfg.EventOverrides == nil {
		cfg.EventOverrides = map[string]EventOverride{}
	}
	if cfg.CategorySettings == nil {
		cfg.CategorySettings = map[string]CategorySetting{}
	}
}

// FromEnv applies spec.md §6's environment-variable overrides on top of an
// existing Config. Invalid values are ignored rather than failing startup.
func FromEnv(cfg *Config) *Config {
	out := *cfg

	if v, ok := os.LookupEnv("ANALYTICS_ENABLED"); ok {
		out.Enabled = isTruthy(v)
	}

	if v, ok := os.LookupEnv("ANALYTICS_PRIVACY"); ok {
		lvl := PrivacyLevel(strings.ToLower(strings.TrimSpace(v)))
		if lvl.valid() {
			out.PrivacyLevel = lvl
		}
	}

	if v, ok := os.LookupEnv("ANALYTICS_DB_PATH"); ok && v != "" {
		out.Storage.Path = v
	}

	if v, ok := os.LookupEnv("ANALYTICS_RETENTION_DAYS"); ok {
		if days, err := strconv.Atoi(v); err == nil && days > 0 {
			out.Retention.DefaultDays = days
		}
	}

	return &out
}

func isTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Validate enforces spec.md §4.2's validation rules: sampling rates in
// [0,1], buffer sizes > 0, retention days > 0. It is run on every config
// update so an invalid replacement is rejected atomically.
func (c *Config) Validate() error {
	if !c.PrivacyLevel.valid() {
		return fmt.Errorf("invalid privacy_level %q", c.PrivacyLevel)
	}
	if c.Collection.BufferSize <= 0 {
		return fmt.Errorf("collection.buffer_size must be > 0")
	}
	if c.Collection.BatchSize <= 0 {
		return fmt.Errorf("collection.batch_size must be > 0")
	}
	if c.Collection.QueueDepth <= 0 {
		return fmt.Errorf("collection.queue_depth must be > 0")
	}
	if c.Collection.DefaultSamplingRate < 0 || c.Collection.DefaultSamplingRate > 1 {
		return fmt.Errorf("collection.default_sampling_rate must be in [0,1]")
	}
	if c.Retention.DefaultDays <= 0 {
		return fmt.Errorf("retention.default_days must be > 0")
	}
	switch c.Storage.SyncMode {
	case SyncFull, SyncNormal, SyncOff:
	default:
		return fmt.Errorf("invalid storage.sync_mode %q", c.Storage.SyncMode)
	}
	for name, ov := range c.EventOverrides {
		if ov.SamplingRate != nil && (*ov.SamplingRate < 0 || *ov.SamplingRate > 1) {
			return fmt.Errorf("event_overrides[%s].sampling_rate must be in [0,1]", name)
		}
		if ov.MinPerWindow != nil && *ov.MinPerWindow < 0 {
			return fmt.Errorf("event_overrides[%s].min_per_window must be >= 0", name)
		}
	}
	for name, cs := range c.CategorySettings {
		if cs.SamplingRate != nil && (*cs.SamplingRate < 0 || *cs.SamplingRate > 1) {
			return fmt.Errorf("category_settings[%s].sampling_rate must be in [0,1]", name)
		}
		if cs.MinPerWindow != nil && *cs.MinPerWindow < 0 {
			return fmt.Errorf("category_settings[%s].min_per_window must be >= 0", name)
		}
	}
	return nil
}
