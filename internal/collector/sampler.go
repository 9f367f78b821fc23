package collector

import (
	"math/rand"
	"sync"
	"time"

	"github.com/abramin/eventpipe/internal/events"
	"github.com/abramin/eventpipe/internal/policy"
)

// windowState tracks one event type's sampling window: a count of accepted
// events since windowStart, reset once the configured window has elapsed.
type windowState struct {
	windowStart time.Time
	count       int
}

// sampler holds per-event-type sampling windows guarded by a single mutex;
// contention is acceptable because evaluating one type's window is cheap
// (spec.md §4.3 concurrency note), grounded on the teacher's
// publishers/ops.Sampler rate table shape, extended with the windowed
// min-per-window floor spec.md §4.3 step 2 requires.
type sampler struct {
	mu      sync.Mutex
	windows map[events.Type]*windowState
}

func newSampler() *sampler {
	return &sampler{windows: make(map[events.Type]*windowState)}
}

// allow applies spec.md §4.3 step 2: if the window elapsed, reset counter
// and window-start to now; if window count < min-per-window, accept and
// increment count; otherwise accept with probability rate and increment
// count iff accepted.
func (s *sampler) allow(t events.Type, cfg policy.SamplingConfig, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.windows[t]
	if !ok {
		st = &windowState{windowStart: now}
		s.windows[t] = st
	}

	window := time.Duration(cfg.WindowSeconds) * time.Second
	if window <= 0 {
		window = time.Minute
	}
	if now.Sub(st.windowStart) >= window {
		st.windowStart = now
		st.count = 0
	}

	if st.count < cfg.MinPerWindow {
		st.count++
		return true
	}

	if rand.Float64() < cfg.Rate { //nolint:gosec // sampling, not security-sensitive
		st.count++
		return true
	}
	return false
}
