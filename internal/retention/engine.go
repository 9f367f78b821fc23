package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/abramin/eventpipe/internal/events"
	"github.com/abramin/eventpipe/internal/retention/archive"
	"github.com/abramin/eventpipe/internal/storage"
	"github.com/abramin/eventpipe/pkg/ids"
)

// Engine owns the set of registered retention policies and the storage
// backend they act on; Enforce runs spec.md §4.6's enforcement algorithm
// across every policy.
type Engine struct {
	mu         sync.RWMutex
	policies   map[ids.PolicyID]Policy
	storage    storage.AnalyticsStorage
	history    *ActionHistory
	archiveDir string
	logger     *slog.Logger
	clock      func() time.Time
	metrics    *Metrics
}

// EngineOption configures an Engine at construction.
type EngineOption func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithClock overrides the engine's time source, for deterministic tests.
func WithClock(clock func() time.Time) EngineOption {
	return func(e *Engine) { e.clock = clock }
}

// WithMetrics wires the engine's Prometheus counters.
func WithMetrics(m *Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine constructs an Engine backed by s, archiving to archiveDir, with
// a bounded action history of historyCapacity entries (0 uses the default).
// Metrics default to a disconnected registry so callers that don't need
// Prometheus export don't have to construct one.
func NewEngine(s storage.AnalyticsStorage, archiveDir string, historyCapacity int, opts ...EngineOption) *Engine {
	e := &Engine{
		policies:   make(map[ids.PolicyID]Policy),
		storage:    s,
		history:    NewActionHistory(historyCapacity),
		archiveDir: archiveDir,
		logger:     slog.Default(),
		clock:      func() time.Time { return time.Now().UTC() },
		metrics:    NewMetrics(prometheus.NewRegistry()),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RegisterPolicy validates and adds a policy, returning its id.
func (e *Engine) RegisterPolicy(p Policy) (ids.PolicyID, error) {
	if err := p.Validate(); err != nil {
		return ids.PolicyID{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policies[p.ID] = p
	return p.ID, nil
}

// SetLegalHold toggles a policy's legal_hold flag (spec.md §4.6).
func (e *Engine) SetLegalHold(id ids.PolicyID, hold bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.policies[id]
	if !ok {
		return fmt.Errorf("unknown policy %s", id.String())
	}
	p.LegalHold = hold
	e.policies[id] = p
	return nil
}

// Policies returns a snapshot of every registered policy.
func (e *Engine) Policies() []Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Policy, 0, len(e.policies))
	for _, p := range e.policies {
		out = append(out, p)
	}
	return out
}

// History returns the engine's action-history ring buffer.
func (e *Engine) History() *ActionHistory {
	return e.history
}

// Enforce runs spec.md §4.6's enforcement algorithm across every registered
// policy. A failure enforcing one policy is recorded and does not stop the
// others (spec.md §7: "Serialization-failure during archive/export: aborts
// that operation ... other policies continue").
func (e *Engine) Enforce(ctx context.Context) error {
	for _, p := range e.Policies() {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.enforceOne(ctx, p)
	}
	return nil
}

func (e *Engine) enforceOne(ctx context.Context, p Policy) {
	if !p.Enforceable() {
		e.history.Record(ActionRecord{
			PolicyID: p.ID, PolicyName: p.Name,
			Action: ActionLegalHeld, Success: true, Timestamp: e.clock(),
		})
		return
	}

	cutoff := p.Cutoff(e.clock())

	var archivePath string
	if p.ArchiveBeforeDelete {
		path, err := e.archivePolicy(ctx, p, cutoff)
		if err != nil {
			e.history.Record(ActionRecord{
				PolicyID: p.ID, PolicyName: p.Name,
				Action: ActionArchiveErr, Success: false, Error: err.Error(),
				Timestamp: e.clock(),
			})
			e.logger.ErrorContext(ctx, "retention archive failed",
				"policy", p.Name, "error", err)
			e.metrics.EnforceErrors.Inc()
			return
		}
		archivePath = path
	}

	removed, err := e.deleteForPolicy(ctx, p, cutoff)
	if err != nil {
		e.history.Record(ActionRecord{
			PolicyID: p.ID, PolicyName: p.Name,
			Action: ActionDeleted, Success: false, Error: err.Error(),
			ArchivePath: archivePath, Timestamp: e.clock(),
		})
		e.logger.ErrorContext(ctx, "retention delete failed",
			"policy", p.Name, "error", err)
		e.metrics.EnforceErrors.Inc()
		return
	}

	e.metrics.EventsDeleted.Add(float64(removed))
	e.history.Record(ActionRecord{
		PolicyID: p.ID, PolicyName: p.Name,
		Action: ActionDeleted, RecordCount: removed, Success: true,
		ArchivePath: archivePath, Timestamp: e.clock(),
	})
}

// archivePolicy serializes every event the policy covers that's older than
// cutoff, across all its categories combined into one archive file (spec.md
// §4.6 step 4).
func (e *Engine) archivePolicy(ctx context.Context, p Policy, cutoff time.Time) (string, error) {
	writer, err := archive.WriterFor(string(p.ArchiveFormat))
	if err != nil {
		return "", err
	}

	// QueryByCategory's end bound is inclusive; step back one nanosecond so
	// the archived set matches exactly what deleteForPolicy's exclusive
	// "timestamp < cutoff" removes, with no event archived-but-not-deleted
	// (or vice versa) at the cutoff instant itself.
	archiveEnd := cutoff.Add(-time.Nanosecond)

	var toArchive []events.Event
	for _, category := range p.Categories {
		evts, err := e.storage.QueryByCategory(ctx, category, time.Time{}, archiveEnd)
		if err != nil {
			return "", fmt.Errorf("query category %s for archive: %w", category, err)
		}
		toArchive = append(toArchive, evts...)
	}
	if len(toArchive) == 0 {
		return "", nil
	}

	path, err := writer.Write(ctx, e.archiveDir, p.ID.String(), archive.Timestamp(e.clock()), toArchive)
	if err != nil {
		return "", err
	}
	e.metrics.EventsArchived.Add(float64(len(toArchive)))
	return path, nil
}

// deleteForPolicy issues one DeleteBeforeCategory call per category the
// policy covers and sums the removed counts.
func (e *Engine) deleteForPolicy(ctx context.Context, p Policy, cutoff time.Time) (int64, error) {
	var total int64
	for _, category := range p.Categories {
		removed, err := e.storage.DeleteBeforeCategory(ctx, category, cutoff)
		if err != nil {
			return total, fmt.Errorf("delete category %s: %w", category, err)
		}
		total += removed
	}
	return total, nil
}
