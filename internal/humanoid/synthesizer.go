// internal/humanoid/synthesizer.go
package humanoid

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Synthesizer produces timed pointer plans. It keeps no state between plans other than
// its random source, so the same seed always yields the same sequence of plans.
type Synthesizer struct {
	mu     sync.Mutex
	cfg    Config
	rng    Random
	logger *zap.Logger
}

// New creates a Synthesizer. rng is required.
func New(cfg Config, rng Random, logger *zap.Logger) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{
		cfg:    cfg,
		rng:    rng,
		logger: logger.Named("humanoid"),
	}
}

// ThinkingPause decides whether to hesitate before an action, and for how long.
func (s *Synthesizer) ThinkingPause() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rng.Float64() >= s.cfg.ThinkChance {
		return 0, false
	}
	return s.uniformDuration(s.cfg.ThinkMin, s.cfg.ThinkMax), true
}

// uniform draws from [lo, hi]. The caller must hold mu.
func (s *Synthesizer) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

// uniformDuration draws from [lo, hi]. The caller must hold mu.
func (s *Synthesizer) uniformDuration(lo, hi time.Duration) time.Duration {
	return lo + time.Duration(s.rng.Float64()*float64(hi-lo))
}

// uniformInt draws an integer from [lo, hi]. The caller must hold mu.
func (s *Synthesizer) uniformInt(lo, hi int) int {
	n := lo + int(s.rng.Float64()*float64(hi-lo+1))
	if n > hi {
		n = hi
	}
	return n
}

// symmetric draws from [-r, r]. The caller must hold mu.
func (s *Synthesizer) symmetric(r float64) float64 {
	return (s.rng.Float64()*2 - 1) * r
}
