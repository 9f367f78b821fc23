package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/abramin/eventpipe/internal/storage"
	"github.com/abramin/eventpipe/pkg/ids"
)

// ComplianceStatus is the lifecycle a ComplianceRequest moves through
// (spec.md §4.6): Pending -> InProgress -> {Completed, Failed, Cancelled}.
type ComplianceStatus string

const (
	ComplianceStatusPending    ComplianceStatus = "pending"
	ComplianceStatusInProgress ComplianceStatus = "in_progress"
	ComplianceStatusCompleted  ComplianceStatus = "completed"
	ComplianceStatusFailed     ComplianceStatus = "failed"
	ComplianceStatusCancelled  ComplianceStatus = "cancelled"
)

// ComplianceScopeKind selects how a ComplianceRequest identifies the events
// it covers.
type ComplianceScopeKind string

const (
	ComplianceScopeSession    ComplianceScopeKind = "session_id"
	ComplianceScopeBeforeDate ComplianceScopeKind = "before_date"
	ComplianceScopeFilter     ComplianceScopeKind = "filter"
)

// ComplianceScope narrows a ComplianceRequest to the events it applies to.
// Exactly one of SessionID / BeforeDate / Filter is meaningful, selected by
// Kind.
type ComplianceScope struct {
	Kind       ComplianceScopeKind
	SessionID  ids.SessionID
	BeforeDate time.Time
	Filter     storage.DeleteFilter
}

// ComplianceRequest is a single compliance deletion request (spec.md §4.6).
type ComplianceRequest struct {
	ID        ids.RequestID
	Requester string
	Reason    string
	Scope     ComplianceScope
	Status    ComplianceStatus
	Removed   int64
	Error     string
	CreatedAt time.Time
}

// NewComplianceRequest constructs a pending request with a fresh id.
func NewComplianceRequest(requester, reason string, scope ComplianceScope) ComplianceRequest {
	return ComplianceRequest{
		ID:        ids.NewRequestID(),
		Requester: requester,
		Reason:    reason,
		Scope:     scope,
		Status:    ComplianceStatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// ComplianceProcessor drains pending ComplianceRequests one at a time,
// fail-closed: a request that fails leaves the underlying data untouched
// and reports Failed rather than a partial deletion, grounded on the
// teacher's publishers/compliance.Publisher synchronous-emit contract.
type ComplianceProcessor struct {
	mu      sync.Mutex
	storage storage.AnalyticsStorage
	logger  *slog.Logger
	pending []ComplianceRequest
}

// NewComplianceProcessor constructs a processor backed by s.
func NewComplianceProcessor(s storage.AnalyticsStorage, logger *slog.Logger) *ComplianceProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ComplianceProcessor{storage: s, logger: logger}
}

// Submit enqueues a request for later processing and returns its id.
func (p *ComplianceProcessor) Submit(req ComplianceRequest) ids.RequestID {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, req)
	return req.ID
}

// Cancel marks a still-pending request Cancelled; it is a no-op if the
// request is already InProgress or terminal.
func (p *ComplianceProcessor) Cancel(id ids.RequestID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.pending {
		if p.pending[i].ID == id && p.pending[i].Status == ComplianceStatusPending {
			p.pending[i].Status = ComplianceStatusCancelled
			return true
		}
	}
	return false
}

// ProcessPending drains every still-pending (non-cancelled) request in
// submission order, one at a time, and returns the final state of each
// request processed this call.
func (p *ComplianceProcessor) ProcessPending(ctx context.Context) ([]ComplianceRequest, error) {
	p.mu.Lock()
	queue := make([]int, 0, len(p.pending))
	for i := range p.pending {
		if p.pending[i].Status == ComplianceStatusPending {
			queue = append(queue, i)
		}
	}
	p.mu.Unlock()

	processed := make([]ComplianceRequest, 0, len(queue))
	for _, i := range queue {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		result := p.processOne(ctx, i)
		processed = append(processed, result)
	}
	return processed, nil
}

func (p *ComplianceProcessor) processOne(ctx context.Context, idx int) ComplianceRequest {
	p.mu.Lock()
	p.pending[idx].Status = ComplianceStatusInProgress
	req := p.pending[idx]
	p.mu.Unlock()

	removed, err := p.execute(ctx, req)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.pending[idx].Status = ComplianceStatusFailed
		p.pending[idx].Error = err.Error()
		p.logger.ErrorContext(ctx, "compliance request failed",
			"request_id", req.ID.String(), "error", err)
	} else {
		p.pending[idx].Status = ComplianceStatusCompleted
		p.pending[idx].Removed = removed
	}
	return p.pending[idx]
}

// execute performs the actual deletion for one request's scope (spec.md
// §4.6: "a session-id scope requires a session-id-indexed delete in
// storage; a before-date scope reuses delete_before"; the filter scope
// drives storage's criteria delete for requests scoped by category/type
// rather than by identity or time).
func (p *ComplianceProcessor) execute(ctx context.Context, req ComplianceRequest) (int64, error) {
	switch req.Scope.Kind {
	case ComplianceScopeBeforeDate:
		return p.storage.DeleteBefore(ctx, req.Scope.BeforeDate)
	case ComplianceScopeSession:
		return p.storage.DeleteBySession(ctx, req.Scope.SessionID)
	case ComplianceScopeFilter:
		if req.Scope.Filter.Category == "" && req.Scope.Filter.Type == "" {
			return 0, fmt.Errorf("compliance request %s: filter scope requires a category or type", req.ID)
		}
		return p.storage.DeleteByFilter(ctx, req.Scope.Filter)
	default:
		return 0, fmt.Errorf("unknown compliance scope kind %q", req.Scope.Kind)
	}
}
