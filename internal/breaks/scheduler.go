// internal/breaks/scheduler.go
package breaks

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/raidpilot/internal/clock"
)

// Random is the subset of *rand.Rand the scheduler draws from.
type Random interface {
	Float64() float64
}

// Class names the duration bucket a break was drawn from.
type Class string

const (
	ClassNone   Class = ""
	ClassShort  Class = "short"
	ClassMedium Class = "medium"
	ClassLong   Class = "long"
)

// Decision is the outcome of OnActivityCompleted. The zero value means "keep going".
type Decision struct {
	Start    bool          `json:"start"`
	Class    Class         `json:"class,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// State is the durable part of the scheduler.
type State struct {
	OnBreak             bool      `json:"onBreak"`
	BreakStartedAt      time.Time `json:"breakStartedAt"`
	BreakEndsAt         time.Time `json:"breakEndsAt"`
	RaidsSinceLastBreak uint32    `json:"raidsSinceLastBreak"`
	LastBreakEndedAt    time.Time `json:"lastBreakEndedAt"`
	TotalBreaksTaken    uint32    `json:"totalBreaksTaken"`
}

// Status is a point-in-time view of the schedule for observers.
type Status struct {
	OnBreak             bool          `json:"isOnBreak"`
	TimeLeft            time.Duration `json:"timeLeft"`
	MinutesLeft         int           `json:"minutesLeft"`
	SecondsLeft         int           `json:"secondsLeft"`
	BreakStartedAt      time.Time     `json:"breakStartedAt,omitempty"`
	BreakEndsAt         time.Time     `json:"breakEndsAt,omitempty"`
	RaidsSinceLastBreak uint32        `json:"raidsSinceLastBreak"`
	TotalBreaksTaken    uint32        `json:"totalBreaks"`
}

// Scheduler decides when the operator "rests" and for how long. It knows nothing about
// what the caller does while active; it only counts completed activities.
type Scheduler struct {
	mu     sync.Mutex
	cfg    Config
	state  State
	rng    Random
	clock  clock.Clock
	logger *zap.Logger

	onEnded func(State)
}

// New creates a Scheduler. rng and clk must not be nil.
func New(cfg Config, rng Random, clk clock.Clock, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cfg:    cfg,
		rng:    rng,
		clock:  clk,
		logger: logger.Named("breaks"),
	}
}

// OnBreakEnded registers fn to be called, outside the scheduler lock, whenever a break ends.
// Only one callback is kept.
func (s *Scheduler) OnBreakEnded(fn func(State)) {
	s.mu.Lock()
	s.onEnded = fn
	s.mu.Unlock()
}

// Enabled reports whether breaks are currently enabled.
func (s *Scheduler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// SetEnabled toggles the schedule. Disabling it while a break is running ends that break.
// It reports whether a break was ended.
func (s *Scheduler) SetEnabled(enabled bool) bool {
	s.mu.Lock()
	s.cfg.Enabled = enabled
	if enabled || !s.state.OnBreak {
		s.mu.Unlock()
		return false
	}
	snap, cb := s.endLocked(s.clock.Now())
	s.mu.Unlock()

	s.logger.Info("Breaks disabled during an active break; ending it now")
	if cb != nil {
		cb(snap)
	}
	return true
}

// SetRandomize toggles the ±jitter applied to sampled durations.
func (s *Scheduler) SetRandomize(randomize bool) {
	s.mu.Lock()
	s.cfg.Randomize = randomize
	s.mu.Unlock()
}

// OnActivityCompleted counts one finished activity and decides whether to rest. A positive
// decision has already been applied (the break is running) when this returns.
func (s *Scheduler) OnActivityCompleted() Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.Enabled || s.state.OnBreak {
		return Decision{}
	}

	s.state.RaidsSinceLastBreak++
	now := s.clock.Now()
	if !s.shouldBreakLocked(now) {
		return Decision{}
	}

	d := s.sampleLocked()
	s.startLocked(now, d)
	return d
}

// shouldBreakLocked applies the floor, the min/max raid bounds and the ramped probability.
func (s *Scheduler) shouldBreakLocked(now time.Time) bool {
	if !s.state.LastBreakEndedAt.IsZero() && now.Sub(s.state.LastBreakEndedAt) < s.cfg.CooldownFloor {
		return false
	}
	raids := s.state.RaidsSinceLastBreak
	if raids < s.cfg.MinBetween {
		return false
	}
	if raids >= s.cfg.MaxBetween {
		return true
	}
	p := s.cfg.BaseChance * (float64(raids) / float64(s.cfg.MinBetween))
	return s.rng.Float64() < p
}

// sampleLocked draws the duration class and a duration inside its range.
func (s *Scheduler) sampleLocked() Decision {
	class := ClassLong
	r := s.rng.Float64()
	switch {
	case r < s.cfg.ShortChance:
		class = ClassShort
	case r < s.cfg.ShortChance+s.cfg.MediumChance:
		class = ClassMedium
	}

	lo, hi := s.rangeFor(class)
	d := lo + time.Duration(s.rng.Float64()*float64(hi-lo))

	if s.cfg.Randomize && s.cfg.JitterFraction > 0 {
		factor := 1 - s.cfg.JitterFraction + s.rng.Float64()*2*s.cfg.JitterFraction
		d = time.Duration(float64(d) * factor)
	}
	return Decision{Start: true, Class: class, Duration: d}
}

func (s *Scheduler) rangeFor(class Class) (time.Duration, time.Duration) {
	switch class {
	case ClassMedium:
		return s.cfg.MediumMin, s.cfg.MediumMax
	case ClassLong:
		return s.cfg.LongMin, s.cfg.LongMax
	default:
		return s.cfg.ShortMin, s.cfg.ShortMax
	}
}

// Start begins a break described by d. It is a no-op, returning false, if a break is already
// running or d does not ask for one.
func (s *Scheduler) Start(d Decision) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !d.Start || s.state.OnBreak {
		return false
	}
	s.startLocked(s.clock.Now(), d)
	return true
}

func (s *Scheduler) startLocked(now time.Time, d Decision) {
	s.logger.Info("Taking a break",
		zap.String("class", string(d.Class)),
		zap.Duration("duration", d.Duration),
		zap.Uint32("raids_since_last_break", s.state.RaidsSinceLastBreak),
	)
	s.state.OnBreak = true
	s.state.BreakStartedAt = now
	s.state.BreakEndsAt = now.Add(d.Duration)
	s.state.TotalBreaksTaken++
	s.state.RaidsSinceLastBreak = 0
}

// endLocked performs the end-of-break transition and returns the callback to run once
// the lock is released.
func (s *Scheduler) endLocked(now time.Time) (State, func(State)) {
	s.state.OnBreak = false
	s.state.LastBreakEndedAt = now
	s.state.RaidsSinceLastBreak = 0
	return s.state, s.onEnded
}

// Tick ends the current break if now has reached its end. It reports whether a break ended.
func (s *Scheduler) Tick(now time.Time) bool {
	s.mu.Lock()
	if !s.state.OnBreak || now.Before(s.state.BreakEndsAt) {
		s.mu.Unlock()
		return false
	}
	snap, cb := s.endLocked(now)
	s.mu.Unlock()

	s.logger.Info("Break over", zap.Uint32("total_breaks", snap.TotalBreaksTaken))
	if cb != nil {
		cb(snap)
	}
	return true
}

// ForceEnd ends an active break immediately. It reports whether one was running.
func (s *Scheduler) ForceEnd() bool {
	s.mu.Lock()
	if !s.state.OnBreak {
		s.mu.Unlock()
		return false
	}
	snap, cb := s.endLocked(s.clock.Now())
	s.mu.Unlock()

	s.logger.Info("Break ended manually")
	if cb != nil {
		cb(snap)
	}
	return true
}

// Reset clears the counters and ends any running break.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	s.state.RaidsSinceLastBreak = 0
	s.state.LastBreakEndedAt = time.Time{}
	s.mu.Unlock()
	s.ForceEnd()
}

// OnBreak reports whether a break is running.
func (s *Scheduler) OnBreak() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.OnBreak
}

// Snapshot returns a copy of the durable state.
func (s *Scheduler) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Restore loads a persisted snapshot. When the in-memory counter is already ahead of the
// saved one (a reload raced with a completion) the larger value wins. A restored break whose
// end is already in the past goes through the normal end transition. Restore reports
// whether it ended such a break.
func (s *Scheduler) Restore(saved State) bool {
	s.mu.Lock()
	current := s.state.RaidsSinceLastBreak
	s.state = saved
	if current > saved.RaidsSinceLastBreak {
		s.state.RaidsSinceLastBreak = current
	}

	now := s.clock.Now()
	if !s.state.OnBreak || now.Before(s.state.BreakEndsAt) {
		s.mu.Unlock()
		return false
	}
	snap, cb := s.endLocked(now)
	s.mu.Unlock()

	s.logger.Info("Restored break had already expired; ending it",
		zap.Time("break_ends_at", saved.BreakEndsAt))
	if cb != nil {
		cb(snap)
	}
	return true
}

// Status reports the schedule as of now.
func (s *Scheduler) Status(now time.Time) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		OnBreak:             s.state.OnBreak,
		RaidsSinceLastBreak: s.state.RaidsSinceLastBreak,
		TotalBreaksTaken:    s.state.TotalBreaksTaken,
	}
	if !s.state.OnBreak {
		return st
	}
	left := s.state.BreakEndsAt.Sub(now)
	if left < 0 {
		left = 0
	}
	st.TimeLeft = left
	st.MinutesLeft = int(left / time.Minute)
	st.SecondsLeft = int((left % time.Minute) / time.Second)
	st.BreakStartedAt = s.state.BreakStartedAt
	st.BreakEndsAt = s.state.BreakEndsAt
	return st
}
