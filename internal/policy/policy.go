// Package policy implements the pure, side-effect-free gating and sampling
// rules the collector consults on every event (spec.md §4.2). A Policy wraps
// a structured configuration tree and can be replaced at runtime; every
// replacement is validated and rejected atomically on failure.
package policy

import (
	"sync/atomic"

	"github.com/abramin/eventpipe/internal/events"
	"github.com/abramin/eventpipe/internal/platform/config"
)

// SamplingConfig is the resolved sampling behavior for one event type:
// event-type override, then category setting, then global default.
type SamplingConfig struct {
	Rate          float64
	MinPerWindow  int
	WindowSeconds int
}

// privacyAllowList is the fixed category allow-list per privacy level
// (spec.md §4.2 table).
var privacyAllowList = map[config.PrivacyLevel]map[events.Category]bool{
	config.PrivacyOff: {},
	config.PrivacyMinimal: {
		events.CategoryError: true,
	},
	config.PrivacyBalanced: {
		events.CategoryUsage:       true,
		events.CategoryPerformance: true,
		events.CategoryError:       true,
		events.CategoryBusiness:    true,
		events.CategorySystem:      true,
	},
	config.PrivacyFull: {
		events.CategoryUsage:       true,
		events.CategoryPerformance: true,
		events.CategoryError:       true,
		events.CategoryBusiness:    true,
		events.CategorySystem:      true,
		events.CategorySecurity:    true,
		events.CategoryCustom:      true,
	},
}

// ConsentPredicate is an external collaborator this module never implements
// (spec.md §1): host code may wire one in to further gate collection beyond
// privacy level and config, e.g. a per-user consent decision. A nil
// predicate means "no additional constraint".
type ConsentPredicate func(t events.Type) bool

// Policy holds the current config behind an atomic pointer so ShouldCollect
// and SamplingFor never block on a concurrent Replace.
type Policy struct {
	current atomic.Pointer[config.Config]
	consent atomic.Pointer[ConsentPredicate]
}

// New constructs a Policy from an already-validated config.
func New(cfg *config.Config) *Policy {
	p := &Policy{}
	p.current.Store(cfg)
	return p
}

// Current returns the config snapshot currently in effect.
func (p *Policy) Current() *config.Config {
	return p.current.Load()
}

// Replace validates cfg and, only if valid, atomically swaps it in. An
// invalid replacement is rejected and the previous config remains in
// effect (spec.md §4.2: "rejects invalid states atomically").
func (p *Policy) Replace(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	p.current.Store(cfg)
	return nil
}

// SetConsentPredicate wires in an external consent decision. Passing nil
// clears it.
func (p *Policy) SetConsentPredicate(pred ConsentPredicate) {
	if pred == nil {
		p.consent.Store(nil)
		return
	}
	p.consent.Store(&pred)
}

// ShouldCollect reports whether an event of the given type and priority
// should be accepted, per spec.md §4.2's algorithm: globally disabled,
// category not in the privacy level's allow-list, per-event-type override,
// then per-category setting, then the wired consent predicate (if any).
func (p *Policy) ShouldCollect(t events.Type, priority events.Priority) bool {
	cfg := p.current.Load()
	if cfg == nil || !cfg.Enabled {
		return false
	}

	category := t.Category()
	allowed := privacyAllowList[cfg.PrivacyLevel]
	if !allowed[category] {
		return false
	}

	if ov, ok := cfg.EventOverrides[string(t)]; ok {
		if !ov.Enabled {
			return false
		}
		if priority < ov.MinPriority {
			return false
		}
	} else if cs, ok := cfg.CategorySettings[string(category)]; ok {
		if !cs.Enabled {
			return false
		}
		if priority < cs.MinPriority {
			return false
		}
	}

	if predPtr := p.consent.Load(); predPtr != nil {
		if pred := *predPtr; pred != nil && !pred(t) {
			return false
		}
	}

	return true
}

// SamplingFor resolves the sampling configuration for an event type:
// event-type override takes precedence over category setting, which takes
// precedence over the global default (spec.md §4.2).
func (p *Policy) SamplingFor(t events.Type) SamplingConfig {
	cfg := p.current.Load()
	out := SamplingConfig{
		Rate:          cfg.Collection.DefaultSamplingRate,
		MinPerWindow:  0,
		WindowSeconds: 60,
	}

	if cs, ok := cfg.CategorySettings[string(t.Category())]; ok {
		applySamplingOverride(&out, cs.SamplingRate, cs.MinPerWindow, cs.WindowSeconds)
	}
	if ov, ok := cfg.EventOverrides[string(t)]; ok {
		applySamplingOverride(&out, ov.SamplingRate, ov.MinPerWindow, ov.WindowSeconds)
	}

	return out
}

func applySamplingOverride(out *SamplingConfig, rate *float64, minPerWindow, windowSeconds *int) {
	if rate != nil {
		out.Rate = *rate
	}
	if minPerWindow != nil {
		out.MinPerWindow = *minPerWindow
	}
	if windowSeconds != nil {
		out.WindowSeconds = *windowSeconds
	}
}
