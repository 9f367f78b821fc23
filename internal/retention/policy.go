// Package retention enforces per-policy deletion cutoffs, optional
// archival, compliance deletion requests, and legal holds (spec.md §4.6).
package retention

import (
	"fmt"
	"time"

	"github.com/abramin/eventpipe/internal/events"
	"github.com/abramin/eventpipe/pkg/ids"
)

// ArchiveFormat names the serialization a policy archives events in before
// deletion. Parquet is a recognized name that is not implemented (see
// internal/retention/archive).
type ArchiveFormat string

const (
	ArchiveNone    ArchiveFormat = ""
	ArchiveJSON    ArchiveFormat = "json"
	ArchiveNDJSON  ArchiveFormat = "ndjson"
	ArchiveGzip    ArchiveFormat = "json.gz"
	ArchiveParquet ArchiveFormat = "parquet"
)

// Policy is a named retention rule (spec.md §3 "Retention Policy").
// Deletion cutoff is now - (RetentionDays + GraceDays). LegalHold and
// !Active both suppress deletion and archival.
type Policy struct {
	ID                  ids.PolicyID
	Name                string
	Categories          []events.Category
	RetentionDays       int
	GraceDays           int
	ArchiveBeforeDelete bool
	ArchiveFormat       ArchiveFormat
	Active              bool
	LegalHold           bool
}

// NewPolicy constructs an active, non-held policy with a fresh id.
func NewPolicy(name string, categories []events.Category, retentionDays, graceDays int) Policy {
	return Policy{
		ID:            ids.NewPolicyID(),
		Name:          name,
		Categories:    categories,
		RetentionDays: retentionDays,
		GraceDays:     graceDays,
		Active:        true,
	}
}

// Cutoff returns the deletion cutoff timestamp for this policy at instant
// now: events strictly older than this are eligible for deletion.
func (p Policy) Cutoff(now time.Time) time.Time {
	return now.AddDate(0, 0, -(p.RetentionDays + p.GraceDays))
}

// Enforceable reports whether enforce() should process this policy at all
// (spec.md §4.6 step 1: "skip if legal_hold"; an inactive policy is also
// skipped since it has no effect by definition).
func (p Policy) Enforceable() bool {
	return p.Active && !p.LegalHold
}

// Validate enforces the field-level invariants a policy must satisfy before
// it can be registered with an Engine.
func (p Policy) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("policy name is required")
	}
	if len(p.Categories) == 0 {
		return fmt.Errorf("policy %q must cover at least one category", p.Name)
	}
	if p.RetentionDays <= 0 {
		return fmt.Errorf("policy %q retention_days must be > 0", p.Name)
	}
	if p.GraceDays < 0 {
		return fmt.Errorf("policy %q grace_days must be >= 0", p.Name)
	}
	if p.ArchiveBeforeDelete {
		switch p.ArchiveFormat {
		case ArchiveJSON, ArchiveNDJSON, ArchiveGzip, ArchiveParquet:
		default:
			return fmt.Errorf("policy %q archive_before_delete requires a valid archive_format", p.Name)
		}
	}
	return nil
}
