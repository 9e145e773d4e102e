// internal/automation/controller.go
package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/raidpilot/api/schemas"
	"github.com/xkilldash9x/raidpilot/internal/breaks"
	"github.com/xkilldash9x/raidpilot/internal/clock"
	"github.com/xkilldash9x/raidpilot/internal/humanoid"
	"github.com/xkilldash9x/raidpilot/internal/screen"
	"github.com/xkilldash9x/raidpilot/internal/settings"
	"github.com/xkilldash9x/raidpilot/internal/status"
	"github.com/xkilldash9x/raidpilot/internal/store"
)

// Observer reports what is on the page.
type Observer interface {
	Observe(ctx context.Context) screen.Observation
}

// DialogDetector reports blocking dialogs.
type DialogDetector interface {
	Detect(ctx context.Context) (screen.Dialog, bool)
}

// Synthesizer turns a target rectangle into humanized input.
type Synthesizer interface {
	ThinkingPause() (time.Duration, bool)
	Perform(ctx context.Context, exec humanoid.Executor, from humanoid.Vector2D, rect schemas.Rect) (humanoid.Vector2D, error)
}

// Dependencies are the collaborators the controller is built from.
type Dependencies struct {
	Observer DialogObserver
	Breaks   *breaks.Scheduler
	Synth    Synthesizer
	Executor humanoid.Executor
	KV       store.KV
	Settings *settings.Store
	Bus      *status.Bus
	Clock    clock.Clock
	Rand     breaks.Random
	Logger   *zap.Logger
}

// DialogObserver is the page-facing half of the dependencies: a classifier and a dialog
// detector, usually backed by the same page.
type DialogObserver interface {
	Observer
	DialogDetector
}

// PageWatch combines an Observer and a DialogDetector into a DialogObserver.
type PageWatch struct {
	*screen.Classifier
	*screen.DialogDetector
}

// Controller runs the raid loop. All page work happens inside Tick, which is serialized;
// settings changes, status reads and break notifications may arrive from other goroutines.
type Controller struct {
	cfg  Config
	deps Dependencies
	log  *zap.Logger

	// tickMu serializes passes over the page.
	tickMu sync.Mutex
	gate   *rate.Limiter

	// settingsMu pairs each settings write with the controller's reaction to it, so a
	// stale snapshot can never be applied over a newer one. Acquire it before mu.
	settingsMu sync.Mutex

	mu          sync.Mutex
	state       RunState
	settings    settings.Settings
	nextStartAt time.Time
	nextAutoAt  time.Time

	breakEnded atomic.Bool
	recheck    chan struct{}
	wake       chan struct{}
}

// New wires a Controller. It does not touch the page or the store; call Restore for that.
func New(cfg Config, deps Dependencies) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid automation config: %w", err)
	}
	switch {
	case deps.Observer == nil:
		return nil, errors.New("automation: Observer is required")
	case deps.Breaks == nil:
		return nil, errors.New("automation: Breaks is required")
	case deps.Synth == nil || deps.Executor == nil:
		return nil, errors.New("automation: Synth and Executor are required")
	case deps.KV == nil || deps.Settings == nil || deps.Bus == nil:
		return nil, errors.New("automation: KV, Settings and Bus are required")
	case deps.Rand == nil:
		return nil, errors.New("automation: Rand is required")
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	c := &Controller{
		cfg:     cfg,
		deps:    deps,
		log:     deps.Logger.Named("controller"),
		gate:    rate.NewLimiter(rate.Every(cfg.MinSpacing), 1),
		recheck: make(chan struct{}, 1),
		wake:    make(chan struct{}, 1),
	}
	c.state.LastActionDescription = "Waiting to start"
	deps.Breaks.OnBreakEnded(func(breaks.State) {
		// Runs inside scheduler calls, possibly while mu is held; only flag and signal.
		c.breakEnded.Store(true)
		c.signal(c.wake)
	})
	return c, nil
}

func (c *Controller) signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// RequestCheck asks for an extra pass as soon as the spacing gate allows. Page mutation
// notifications come through here; bursts collapse into a single pending request.
func (c *Controller) RequestCheck() {
	c.signal(c.recheck)
}

// Restore loads settings, run state and break state, then applies the settings. Missing
// documents are not an error.
func (c *Controller) Restore(ctx context.Context) error {
	s, err := c.deps.Settings.Load(ctx)
	if err != nil {
		c.log.Warn("Using current settings; load failed", zap.Error(err))
	}

	var rs RunState
	switch err := store.GetJSON(ctx, c.deps.KV, store.KeyRunState, &rs); {
	case err == nil:
		c.mu.Lock()
		c.state.TotalRaidsCompleted = rs.TotalRaidsCompleted
		c.state.TotalClicks = rs.TotalClicks
		c.state.LastPointerPosition = rs.LastPointerPosition
		c.state.LastRaidDuration = rs.LastRaidDuration
		c.state.PausedReason = rs.PausedReason
		if rs.Mode == ModeRunning {
			// Picks up a raid that was underway when the last run ended.
			c.state.RaidInProgress = rs.RaidInProgress
			c.state.RaidStartedAt = rs.RaidStartedAt
			c.state.AutoCombatAppliedThisRaid = rs.AutoCombatAppliedThisRaid
			c.state.AutoCombatSeenThisRaid = rs.AutoCombatSeenThisRaid
			c.state.BattleURLSeen = rs.BattleURLSeen
		}
		if rs.Mode == ModePausedPopup && !s.AnyAutomation() {
			c.state.Mode = ModePausedPopup
			c.state.LastActionDescription = rs.LastActionDescription
		}
		c.mu.Unlock()
	case !errors.Is(err, store.ErrNotFound):
		c.log.Warn("Failed to load run state; starting fresh", zap.Error(err))
	}

	var bs breaks.State
	switch err := store.GetJSON(ctx, c.deps.KV, store.KeyBreakState, &bs); {
	case err == nil:
		c.deps.Breaks.Restore(bs)
	case !errors.Is(err, store.ErrNotFound):
		c.log.Warn("Failed to load break state; starting fresh", zap.Error(err))
	}

	c.settingsMu.Lock()
	c.ApplySettings(ctx, s)
	c.settingsMu.Unlock()
	c.mu.Lock()
	c.persistBreaksLocked(ctx)
	c.mu.Unlock()
	return nil
}

// Mode returns the current lifecycle state.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Mode
}

// State returns a copy of the run state.
func (c *Controller) State() RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) running() bool {
	return c.Mode() == ModeRunning
}

// setModeLocked records a mode change. The caller must hold mu.
func (c *Controller) setModeLocked(m Mode) {
	if c.state.Mode == m {
		return
	}
	c.log.Info("Mode changed", zap.Stringer("from", c.state.Mode), zap.Stringer("to", m))
	c.state.Mode = m
	c.state.Active = m == ModeRunning
	if m != ModePausedPopup {
		c.state.PausedReason = ""
	}
	c.signal(c.wake)
}

// ApplySettings reacts to a settings snapshot: enabling an automated action while idle and
// off break starts the loop, disabling both stops it. It is safe to call repeatedly with
// the same snapshot.
func (c *Controller) ApplySettings(ctx context.Context, s settings.Settings) {
	c.deps.Breaks.SetRandomize(s.RandomizeBreaks)
	c.deps.Breaks.SetEnabled(s.Breaks)

	c.mu.Lock()
	c.settings = s
	before := c.state.Mode
	switch {
	case !s.AnyAutomation():
		if before == ModeRunning || before == ModePausedBreak {
			c.setModeLocked(ModeIdle)
			c.state.LastActionDescription = "Automation stopped"
		}
	case before == ModeIdle || before == ModePausedPopup:
		if c.deps.Breaks.OnBreak() {
			c.setModeLocked(ModePausedBreak)
			c.state.CurrentScreen = screen.Break
			c.state.LastActionDescription = "On break"
		} else {
			c.setModeLocked(ModeRunning)
			c.state.LastActionDescription = "Automation started"
		}
	}
	if before != c.state.Mode {
		c.persistRunLocked(ctx)
		c.emitStatusLocked(ctx)
	}
	c.mu.Unlock()

	c.handleBreakEnded(ctx)
}

// UpdateSettings applies a partial settings change, persists it and reacts to it.
func (c *Controller) UpdateSettings(ctx context.Context, patch settings.Patch) (settings.Settings, error) {
	c.settingsMu.Lock()
	defer c.settingsMu.Unlock()
	next, err := c.deps.Settings.Update(ctx, patch)
	c.ApplySettings(ctx, next)
	return next, err
}

// applyLatest reacts to the store's current settings, not to a notification payload that
// a newer write may already have replaced.
func (c *Controller) applyLatest(ctx context.Context) {
	c.settingsMu.Lock()
	defer c.settingsMu.Unlock()
	c.ApplySettings(ctx, c.deps.Settings.Current())
}

// Stop returns the controller to Idle without touching settings.
func (c *Controller) Stop(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Mode == ModeIdle {
		return
	}
	c.setModeLocked(ModeIdle)
	c.state.LastActionDescription = "Stopped"
	c.persistRunLocked(ctx)
	c.emitStatusLocked(ctx)
}

// ForceEndBreak ends an active break now. It reports whether one was active.
func (c *Controller) ForceEndBreak(ctx context.Context) bool {
	ended := c.deps.Breaks.ForceEnd()
	c.handleBreakEnded(ctx)
	return ended
}

// PollBreak ends the current break if it is due.
func (c *Controller) PollBreak(ctx context.Context) {
	c.deps.Breaks.Tick(c.deps.Clock.Now())
	c.handleBreakEnded(ctx)
}

// handleBreakEnded resumes after a break ended, if one did since the last call.
func (c *Controller) handleBreakEnded(ctx context.Context) {
	if !c.breakEnded.Swap(false) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.persistBreaksLocked(ctx)
	if c.state.Mode == ModePausedBreak {
		if c.settings.AnyAutomation() {
			c.setModeLocked(ModeRunning)
			c.state.LastActionDescription = "Break over, resuming"
		} else {
			c.setModeLocked(ModeIdle)
			c.state.LastActionDescription = "Break over"
		}
		c.state.CurrentScreen = screen.Unknown
	}
	c.persistRunLocked(ctx)
	c.emitStatusLocked(ctx)
}

// Tick is one pass over the page. It never panics and never returns an error: problems
// become log lines and status text.
func (c *Controller) Tick(ctx context.Context) {
	c.tickMu.Lock()
	defer c.tickMu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Recovered from panic in tick", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	if !c.running() {
		return
	}
	if !c.gate.AllowN(c.deps.Clock.Now(), 1) {
		return
	}

	if d, ok := c.deps.Observer.Detect(ctx); ok {
		c.pauseForDialog(ctx, d)
		return
	}

	obs := c.deps.Observer.Observe(ctx)
	if !c.applyObservation(ctx, obs) {
		return
	}

	switch obs.Screen {
	case screen.RaidStart:
		c.tryStartRaid(ctx)
	case screen.Battle:
		c.tryEngageAutoCombat(ctx, obs)
	}
}

// applyObservation runs the raid transitions for obs. It returns false when the loop
// should not act on this pass.
func (c *Controller) applyObservation(ctx context.Context, obs screen.Observation) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Mode != ModeRunning {
		return false
	}
	if obs.Incomplete {
		c.log.Debug("Skipping pass; page state could not be read")
		return false
	}

	now := c.deps.Clock.Now()
	prev := c.state.CurrentScreen
	c.state.CurrentScreen = obs.Screen
	if prev != obs.Screen {
		c.log.Debug("Screen changed", zap.Stringer("from", prev), zap.Stringer("to", obs.Screen))
	}

	if obs.Screen == screen.Battle && !c.state.RaidInProgress {
		c.state.RaidInProgress = true
		c.state.RaidStartedAt = now
		c.state.AutoCombatAppliedThisRaid = false
		c.state.AutoCombatSeenThisRaid = false
		c.state.BattleURLSeen = false
		c.state.LastActionDescription = "Raid in progress"
		c.persistRunLocked(ctx)
		c.emitStatusLocked(ctx)
	}

	if obs.Screen == screen.Battle {
		if obs.BattleURL {
			c.state.BattleURLSeen = true
		}
		if obs.Toggle != nil {
			c.state.AutoCombatSeenThisRaid = true
		}
	}

	leftBattleURL := c.state.BattleURLSeen && !obs.BattleURL && obs.Screen != screen.Battle
	if c.state.RaidInProgress && (obs.Screen == screen.RaidStart || leftBattleURL) {
		return c.completeRaidLocked(ctx, now)
	}
	return true
}

// completeRaidLocked records a finished raid and asks the scheduler whether to rest.
func (c *Controller) completeRaidLocked(ctx context.Context, now time.Time) bool {
	c.state.RaidInProgress = false
	c.state.AutoCombatAppliedThisRaid = false
	c.state.AutoCombatSeenThisRaid = false
	c.state.BattleURLSeen = false
	c.state.TotalRaidsCompleted++
	c.state.LastRaidDuration = now.Sub(c.state.RaidStartedAt)
	c.state.LastActionDescription = fmt.Sprintf("Raid #%d completed in %s",
		c.state.TotalRaidsCompleted, c.state.LastRaidDuration.Round(time.Second))
	c.log.Info("Raid completed",
		zap.Uint64("total", c.state.TotalRaidsCompleted),
		zap.Duration("duration", c.state.LastRaidDuration))
	c.persistRunLocked(ctx)

	d := c.deps.Breaks.OnActivityCompleted()
	c.persistBreaksLocked(ctx)
	if !d.Start {
		c.emitStatusLocked(ctx)
		return true
	}

	c.setModeLocked(ModePausedBreak)
	c.state.CurrentScreen = screen.Break
	c.state.LastActionDescription = fmt.Sprintf("Taking a %s break for %s", d.Class, d.Duration.Round(time.Second))
	c.persistRunLocked(ctx)
	c.emitStatusLocked(ctx)
	return false
}

func (c *Controller) cooldownLocked() time.Duration {
	lo, hi := c.cfg.CooldownMin, c.cfg.CooldownMax
	return lo + time.Duration(c.deps.Rand.Float64()*float64(hi-lo))
}

// Click targets, as they appear in status text and logs.
const (
	labelStart      = "start"
	labelAutoCombat = "auto-combat"
)

func (c *Controller) tryStartRaid(ctx context.Context) {
	c.mu.Lock()
	now := c.deps.Clock.Now()
	if !c.settings.AutoRaid || now.Before(c.nextStartAt) {
		c.mu.Unlock()
		return
	}
	// The cooldown is the guard against a second click while this one is in flight.
	c.nextStartAt = now.Add(c.cooldownLocked())
	c.mu.Unlock()

	if !c.think(ctx) {
		return
	}
	if d, ok := c.deps.Observer.Detect(ctx); ok {
		c.pauseForDialog(ctx, d)
		return
	}
	// The page may have moved on during the pause; click where the control is now.
	obs := c.deps.Observer.Observe(ctx)
	if obs.Start == nil {
		return
	}
	c.click(ctx, labelStart, obs.Start.Rect)
}

func (c *Controller) tryEngageAutoCombat(ctx context.Context, obs screen.Observation) {
	c.mu.Lock()
	now := c.deps.Clock.Now()
	if !c.settings.AutoCombat || !c.state.RaidInProgress || c.state.AutoCombatAppliedThisRaid ||
		!c.state.AutoCombatSeenThisRaid || obs.Toggle == nil || now.Before(c.nextAutoAt) {
		c.mu.Unlock()
		return
	}
	// Latch before clicking so a failed or slow click is never retried within the raid.
	c.state.AutoCombatAppliedThisRaid = true
	c.nextAutoAt = now.Add(c.cooldownLocked())
	if screen.ToggleEngaged(obs.Toggle) {
		c.state.LastActionDescription = "Auto-combat already engaged"
		c.persistRunLocked(ctx)
		c.emitStatusLocked(ctx)
		c.mu.Unlock()
		return
	}
	c.persistRunLocked(ctx)
	c.mu.Unlock()

	if !c.think(ctx) {
		return
	}
	if d, ok := c.deps.Observer.Detect(ctx); ok {
		c.pauseForDialog(ctx, d)
		return
	}
	fresh := c.deps.Observer.Observe(ctx)
	if fresh.Toggle == nil {
		return
	}
	c.click(ctx, labelAutoCombat, fresh.Toggle.Rect)
}

// think applies the optional hesitation and reports whether the loop is still running
// afterwards.
func (c *Controller) think(ctx context.Context) bool {
	if c.cfg.ThinkingPauses {
		if d, ok := c.deps.Synth.ThinkingPause(); ok {
			if err := c.deps.Executor.Sleep(ctx, d); err != nil {
				return false
			}
		}
	}
	return c.running()
}

func (c *Controller) click(ctx context.Context, label string, rect schemas.Rect) {
	c.mu.Lock()
	from := c.state.LastPointerPosition
	c.mu.Unlock()

	pos, err := c.deps.Synth.Perform(ctx, c.deps.Executor, from, rect)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.LastPointerPosition = pos
	if err != nil {
		c.log.Warn("Click failed", zap.String("target", label), zap.Error(err))
		retry := "will retry after cooldown"
		if label == labelAutoCombat {
			retry = "not retried until the next raid"
		}
		c.state.LastActionDescription = fmt.Sprintf("Could not click %s; %s", label, retry)
	} else {
		c.state.TotalClicks++
		c.state.LastActionDescription = "Clicked " + label
	}
	c.persistRunLocked(ctx)
	c.emitStatusLocked(ctx)
}

// pauseForDialog is the safety stop: automation is switched off in the persisted settings
// and stays off until someone turns it back on.
func (c *Controller) pauseForDialog(ctx context.Context, d screen.Dialog) {
	c.settingsMu.Lock()
	defer c.settingsMu.Unlock()

	c.log.Warn("Blocking dialog detected; disabling automation",
		zap.String("category", string(d.Category)), zap.String("marker", d.Marker))
	next, err := c.deps.Settings.Update(ctx, settings.DisableAutomation())
	if err != nil {
		c.log.Error("Failed to persist disabled settings", zap.Error(err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.setModeLocked(ModePausedPopup)
	c.settings = next
	c.state.PausedReason = fmt.Sprintf("Blocking dialog (%s). Automation was disabled; re-enable it to continue.", d.Category)
	c.state.LastActionDescription = c.state.PausedReason
	c.persistRunLocked(ctx)
	c.emitStatusLocked(ctx)
}

func (c *Controller) persistRunLocked(ctx context.Context) {
	if err := store.PutJSON(ctx, c.deps.KV, store.KeyRunState, c.state); err != nil {
		c.log.Warn("Failed to persist run state", zap.Error(err))
	}
}

func (c *Controller) persistBreaksLocked(ctx context.Context) {
	if err := store.PutJSON(ctx, c.deps.KV, store.KeyBreakState, c.deps.Breaks.Snapshot()); err != nil {
		c.log.Warn("Failed to persist break state", zap.Error(err))
	}
}
