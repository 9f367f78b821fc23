package collector

import (
	"sync"
	"time"
)

// circuitBreaker isolates a misbehaving sink: after threshold consecutive
// Process failures it opens and Process is skipped (treated as isolated
// failure, spec.md §4.3 failure model) until cooldown elapses, at which
// point the breaker closes again with its failure count reset. Grounded on the
// teacher's publishers/ops.CircuitBreaker.
type circuitBreaker struct {
	mu sync.Mutex

	threshold int
	cooldown  time.Duration

	failures  int
	isOpen    bool
	openUntil time.Time
}

func newCircuitBreaker(threshold int, cooldown time.Duration) *circuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &circuitBreaker{threshold: threshold, cooldown: cooldown}
}

func (cb *circuitBreaker) allow(now time.Time) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.isOpen {
		return true
	}
	if now.After(cb.openUntil) {
		cb.isOpen = false
		cb.failures = 0
		return true
	}
	return false
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.isOpen = false
}

func (cb *circuitBreaker) recordFailure(now time.Time) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures++
	if cb.failures >= cb.threshold {
		cb.isOpen = true
		cb.openUntil = now.Add(cb.cooldown)
	}
}
