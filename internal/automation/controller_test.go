// internal/automation/controller_test.go
package automation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/raidpilot/api/schemas"
	"github.com/xkilldash9x/raidpilot/internal/breaks"
	"github.com/xkilldash9x/raidpilot/internal/clock"
	"github.com/xkilldash9x/raidpilot/internal/humanoid"
	"github.com/xkilldash9x/raidpilot/internal/screen"
	"github.com/xkilldash9x/raidpilot/internal/settings"
	"github.com/xkilldash9x/raidpilot/internal/status"
	"github.com/xkilldash9x/raidpilot/internal/store"
)

type fixedRand float64

func (f fixedRand) Float64() float64 { return float64(f) }

// fakePage serves whatever observation the test last set.
type fakePage struct {
	mu       sync.Mutex
	obs      screen.Observation
	dialog   *screen.Dialog
	observed int
	panicOn  bool
}

func (p *fakePage) set(obs screen.Observation) {
	p.mu.Lock()
	p.obs = obs
	p.mu.Unlock()
}

func (p *fakePage) showDialog(d screen.Dialog) {
	p.mu.Lock()
	p.dialog = &d
	p.mu.Unlock()
}

func (p *fakePage) Observe(context.Context) screen.Observation {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.panicOn {
		panic("page went away")
	}
	p.observed++
	return p.obs
}

func (p *fakePage) Detect(context.Context) (screen.Dialog, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dialog == nil {
		return screen.Dialog{}, false
	}
	return *p.dialog, true
}

func (p *fakePage) observations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.observed
}

// fakeSynth records the rectangles it was asked to click.
type fakeSynth struct {
	mu       sync.Mutex
	pause    time.Duration
	clicks   []schemas.Rect
	attempts int
	failErr  error
}

func (s *fakeSynth) ThinkingPause() (time.Duration, bool) {
	return s.pause, s.pause > 0
}

func (s *fakeSynth) Perform(_ context.Context, _ humanoid.Executor, _ humanoid.Vector2D, rect schemas.Rect) (humanoid.Vector2D, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	x, y := rect.Center()
	if s.failErr != nil {
		return humanoid.Vector2D{X: x, Y: y}, s.failErr
	}
	s.clicks = append(s.clicks, rect)
	return humanoid.Vector2D{X: x, Y: y}, nil
}

func (s *fakeSynth) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clicks)
}

// fakeExecutor runs onSleep in place of sleeping.
type fakeExecutor struct {
	onSleep func()
}

func (e *fakeExecutor) Sleep(ctx context.Context, _ time.Duration) error {
	if e.onSleep != nil {
		e.onSleep()
	}
	return ctx.Err()
}

func (e *fakeExecutor) DispatchMouseEvent(context.Context, schemas.MouseEventData) error { return nil }

var (
	epoch     = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	startRect = schemas.Rect{X: 100, Y: 400, Width: 120, Height: 40}
	autoRect  = schemas.Rect{X: 500, Y: 300, Width: 60, Height: 30}
)

func raidStart() screen.Observation {
	return screen.Observation{
		Screen: screen.RaidStart,
		Start:  &schemas.Element{Selector: ".start", Rect: startRect},
	}
}

func battle(engaged bool) screen.Observation {
	toggle := &schemas.Element{Selector: ".btn-auto", Rect: autoRect}
	if engaged {
		toggle.Classes = []string{"active"}
	}
	return screen.Observation{Screen: screen.Battle, Toggle: toggle, BattleURL: true}
}

func other() screen.Observation {
	return screen.Observation{Screen: screen.Other}
}

type harness struct {
	ctrl     *Controller
	page     *fakePage
	synth    *fakeSynth
	exec     *fakeExecutor
	clock    *clock.Fake
	kv       *store.Memory
	breaks   *breaks.Scheduler
	settings *settings.Store
	bus      *status.Bus
}

func newHarness(t *testing.T, s settings.Settings) *harness {
	t.Helper()
	return newHarnessObserving(t, s, nil)
}

// newHarnessObserving builds a harness whose controller watches observer instead of the
// canned fakePage.
func newHarnessObserving(t *testing.T, s settings.Settings, observer DialogObserver) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	h := &harness{
		page:  &fakePage{obs: other()},
		synth: &fakeSynth{},
		exec:  &fakeExecutor{},
		clock: clock.NewFake(epoch),
		kv:    store.NewMemory(),
		bus:   status.New(logger, 16),
	}
	t.Cleanup(h.bus.Shutdown)

	bcfg := breaks.DefaultConfig()
	h.breaks = breaks.New(bcfg, fixedRand(0.5), h.clock, logger)
	h.settings = settings.NewStore(h.kv, h.bus, settings.Settings{}, logger)

	if observer == nil {
		observer = h.page
	}
	cfg := DefaultConfig()
	cfg.ThinkingPauses = false
	ctrl, err := New(cfg, Dependencies{
		Observer: observer,
		Breaks:   h.breaks,
		Synth:    h.synth,
		Executor: h.exec,
		KV:       h.kv,
		Settings: h.settings,
		Bus:      h.bus,
		Clock:    h.clock,
		Rand:     fixedRand(0.5),
		Logger:   logger,
	})
	require.NoError(t, err)
	h.ctrl = ctrl

	_, err = ctrl.UpdateSettings(context.Background(), settings.Patch{
		AutoRaid:        &s.AutoRaid,
		AutoCombat:      &s.AutoCombat,
		Breaks:          &s.Breaks,
		RandomizeBreaks: &s.RandomizeBreaks,
	})
	require.NoError(t, err)
	return h
}

// step shows obs, advances past the spacing gate and runs one pass.
func (h *harness) step(obs screen.Observation) {
	h.page.set(obs)
	h.pass()
}

// pass advances past the spacing gate and runs one pass over whatever is showing.
func (h *harness) pass() {
	h.clock.Advance(600 * time.Millisecond)
	h.ctrl.Tick(context.Background())
}

// flakyPage is a screen.Page showing a battle whose viewport and URL reads can be made to
// fail.
type flakyPage struct {
	mu     sync.Mutex
	url    string
	toggle *schemas.Element
	fail   bool
}

func (p *flakyPage) setFailing(fail bool) {
	p.mu.Lock()
	p.fail = fail
	p.mu.Unlock()
}

func (p *flakyPage) Query(_ context.Context, selector string) (*schemas.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.toggle != nil && selector == p.toggle.Selector {
		el := *p.toggle
		return &el, nil
	}
	return nil, nil
}

func (p *flakyPage) Viewport(context.Context) (schemas.Viewport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return schemas.Viewport{}, errors.New("execution context was destroyed")
	}
	return schemas.Viewport{Width: 1280, Height: 720}, nil
}

func (p *flakyPage) URL(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return "", errors.New("execution context was destroyed")
	}
	return p.url, nil
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(DefaultConfig(), Dependencies{})
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.CooldownMax = time.Second
	_, err = New(cfg, Dependencies{})
	assert.ErrorContains(t, err, "cooldown")
}

func TestTick_RaidLifecycle(t *testing.T) {
	h := newHarness(t, settings.Settings{AutoRaid: true})
	require.Equal(t, ModeRunning, h.ctrl.Mode())

	h.step(raidStart())
	h.step(raidStart())
	h.step(battle(false))
	h.step(raidStart())

	assert.Equal(t, 1, h.synth.count(), "the repeated start screen must not be clicked twice within the cooldown")
	st := h.ctrl.State()
	assert.EqualValues(t, 1, st.TotalRaidsCompleted)
	assert.EqualValues(t, 1, st.TotalClicks)
	assert.False(t, st.RaidInProgress)
	assert.Equal(t, 600*time.Millisecond, st.LastRaidDuration)

	var persisted RunState
	require.NoError(t, store.GetJSON(context.Background(), h.kv, store.KeyRunState, &persisted))
	assert.EqualValues(t, 1, persisted.TotalRaidsCompleted)

	// Once the cooldown has passed the next raid is started.
	h.clock.Advance(5 * time.Second)
	h.step(raidStart())
	assert.Equal(t, 2, h.synth.count())
	assert.Equal(t, startRect, h.synth.clicks[1])
}

func TestTick_CompletesWhenLeavingBattleURL(t *testing.T) {
	h := newHarness(t, settings.Settings{AutoRaid: true})

	h.step(battle(true))
	h.step(other())
	assert.EqualValues(t, 1, h.ctrl.State().TotalRaidsCompleted)

	// Other screens without a raid in progress complete nothing.
	h.step(other())
	assert.EqualValues(t, 1, h.ctrl.State().TotalRaidsCompleted)
}

func TestTick_SpacingGate(t *testing.T) {
	h := newHarness(t, settings.Settings{AutoRaid: true})

	h.ctrl.Tick(context.Background())
	h.ctrl.Tick(context.Background())
	first := h.page.observations()
	require.NotZero(t, first)

	h.clock.Advance(100 * time.Millisecond)
	h.ctrl.Tick(context.Background())
	assert.Equal(t, first, h.page.observations(), "passes closer than the minimum spacing are skipped")

	h.clock.Advance(500 * time.Millisecond)
	h.ctrl.Tick(context.Background())
	assert.Greater(t, h.page.observations(), first)
}

func TestTick_AutoCombatAtMostOncePerRaid(t *testing.T) {
	h := newHarness(t, settings.Settings{AutoCombat: true})

	for i := 0; i < 100; i++ {
		h.step(battle(false))
	}
	assert.Equal(t, 1, h.synth.count())
	assert.Equal(t, autoRect, h.synth.clicks[0])
	assert.True(t, h.ctrl.State().AutoCombatAppliedThisRaid)

	// A new raid re-arms the latch.
	h.step(raidStart())
	h.step(battle(false))
	h.clock.Advance(5 * time.Second)
	h.step(battle(false))
	assert.Equal(t, 2, h.synth.count())
}

func TestTick_AutoCombatAlreadyEngaged(t *testing.T) {
	h := newHarness(t, settings.Settings{AutoCombat: true})

	for i := 0; i < 10; i++ {
		h.step(battle(true))
	}
	assert.Zero(t, h.synth.count())
	st := h.ctrl.State()
	assert.True(t, st.AutoCombatAppliedThisRaid)
	assert.Equal(t, "Auto-combat already engaged", st.LastActionDescription)
}

func TestTick_FailedClickIsSoft(t *testing.T) {
	h := newHarness(t, settings.Settings{AutoRaid: true})
	h.synth.failErr = errors.New("target detached")

	h.step(raidStart())

	st := h.ctrl.State()
	assert.Equal(t, ModeRunning, st.Mode)
	assert.Zero(t, st.TotalClicks)
	assert.Contains(t, st.LastActionDescription, "Could not click start")
	assert.Equal(t, humanoid.Vector2D{X: 160, Y: 420}, st.LastPointerPosition)
}

func TestTick_BlockingDialogDisablesAutomation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, settings.Settings{AutoRaid: true, AutoCombat: true, Breaks: true})

	h.page.showDialog(screen.Dialog{Category: screen.CapacityFull, Marker: "quest is full"})
	h.step(raidStart())

	assert.Equal(t, ModePausedPopup, h.ctrl.Mode())
	assert.Zero(t, h.synth.count())
	assert.False(t, h.settings.Current().AnyAutomation())
	assert.True(t, h.settings.Current().Breaks)

	var persisted settings.Settings
	require.NoError(t, store.GetJSON(ctx, h.kv, store.KeySettings, &persisted))
	assert.False(t, persisted.AnyAutomation(), "the safety stop must survive a restart")

	report := h.ctrl.Status()
	assert.Equal(t, "paused_popup", report.Mode)
	assert.Contains(t, report.PausedReason, string(screen.CapacityFull))

	for i := 0; i < 5; i++ {
		h.step(raidStart())
	}
	assert.Zero(t, h.synth.count())

	// The dialog going away is not enough; automation stays off until re-enabled.
	h.page.mu.Lock()
	h.page.dialog = nil
	h.page.mu.Unlock()
	for i := 0; i < 5; i++ {
		h.clock.Advance(5 * time.Second)
		h.step(raidStart())
	}
	assert.Zero(t, h.synth.count())
	assert.Equal(t, ModePausedPopup, h.ctrl.Mode())
	assert.False(t, h.settings.Current().AnyAutomation())

	// Turning automation back on resumes.
	on := true
	_, err := h.ctrl.UpdateSettings(ctx, settings.Patch{AutoRaid: &on})
	require.NoError(t, err)
	assert.Equal(t, ModeRunning, h.ctrl.Mode())
	assert.Empty(t, h.ctrl.Status().PausedReason)
}

func TestTick_DialogDuringThinkingPause(t *testing.T) {
	h := newHarness(t, settings.Settings{AutoRaid: true})
	h.ctrl.cfg.ThinkingPauses = true
	h.synth.pause = time.Second
	h.exec.onSleep = func() {
		h.page.showDialog(screen.Dialog{Category: screen.VerificationRequired, Marker: "captcha"})
	}

	h.step(raidStart())

	assert.Zero(t, h.synth.count())
	assert.Equal(t, ModePausedPopup, h.ctrl.Mode())
}

func TestTick_DialogDuringAutoCombatPause(t *testing.T) {
	h := newHarness(t, settings.Settings{AutoCombat: true})
	h.ctrl.cfg.ThinkingPauses = true
	h.synth.pause = time.Second
	h.exec.onSleep = func() {
		h.page.showDialog(screen.Dialog{Category: screen.VerificationRequired, Marker: "captcha"})
	}

	h.step(battle(false))

	assert.Zero(t, h.synth.count(), "a dialog that appears during the pause is not clicked past")
	assert.Equal(t, ModePausedPopup, h.ctrl.Mode())
	assert.False(t, h.settings.Current().AutoCombat)
}

func TestTick_FailedAutoCombatClickIsNotRetried(t *testing.T) {
	h := newHarness(t, settings.Settings{AutoCombat: true})
	h.synth.failErr = errors.New("target detached")

	h.step(battle(false))
	assert.Contains(t, h.ctrl.State().LastActionDescription, "Could not click auto-combat; not retried until the next raid")

	for i := 0; i < 5; i++ {
		h.clock.Advance(5 * time.Second)
		h.step(battle(false))
	}
	h.synth.mu.Lock()
	defer h.synth.mu.Unlock()
	assert.Equal(t, 1, h.synth.attempts)
}

func TestTick_UnreadablePageIsNoOp(t *testing.T) {
	page := &flakyPage{url: "https://game.example/#raid_multi/1234567"}
	scfg := screen.DefaultConfig()
	page.toggle = &schemas.Element{
		Selector: scfg.ToggleSelector,
		Rect:     autoRect,
		Style:    schemas.ElementStyle{Display: "block", Visibility: "visible"},
	}
	classifier, err := screen.NewClassifier(scfg, page, zaptest.NewLogger(t))
	require.NoError(t, err)
	watch := PageWatch{Classifier: classifier, DialogDetector: screen.NewDialogDetector(scfg, page, zaptest.NewLogger(t))}

	h := newHarnessObserving(t, settings.Settings{AutoCombat: true, Breaks: true}, watch)

	h.pass()
	require.Equal(t, 1, h.synth.count())
	require.True(t, h.ctrl.State().RaidInProgress)

	page.setFailing(true)
	h.pass()
	st := h.ctrl.State()
	assert.True(t, st.RaidInProgress, "a failed read is not navigation away from the battle")
	assert.Zero(t, st.TotalRaidsCompleted)
	assert.Equal(t, screen.Battle, st.CurrentScreen)

	page.setFailing(false)
	h.clock.Advance(5 * time.Second)
	h.pass()
	st = h.ctrl.State()
	assert.Equal(t, 1, h.synth.count(), "auto-combat is engaged at most once per raid")
	assert.True(t, st.AutoCombatAppliedThisRaid)
	assert.Zero(t, st.TotalRaidsCompleted)
	assert.Zero(t, h.breaks.Snapshot().RaidsSinceLastBreak)
}

func TestDialogStopSurvivesConcurrentSettingsUpdate(t *testing.T) {
	ctx := context.Background()
	for round := 0; round < 50; round++ {
		h := newHarness(t, settings.Settings{AutoRaid: true, AutoCombat: true, Breaks: true})
		h.page.showDialog(screen.Dialog{Category: screen.CapacityFull, Marker: "battle is full"})
		h.page.set(raidStart())
		h.clock.Advance(600 * time.Millisecond)

		off := false
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := h.ctrl.UpdateSettings(ctx, settings.Patch{Breaks: &off})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			h.ctrl.Tick(ctx)
		}()
		wg.Wait()

		require.Equal(t, ModePausedPopup, h.ctrl.Mode(), "round %d", round)
		require.False(t, h.settings.Current().AnyAutomation(), "round %d", round)
		var persisted settings.Settings
		require.NoError(t, store.GetJSON(ctx, h.kv, store.KeySettings, &persisted))
		require.False(t, persisted.AnyAutomation(), "round %d", round)
		require.False(t, persisted.Breaks, "round %d", round)
		require.Zero(t, h.synth.count())
	}
}

func TestTick_StoppedDuringThinkingPause(t *testing.T) {
	h := newHarness(t, settings.Settings{AutoRaid: true})
	h.ctrl.cfg.ThinkingPauses = true
	h.synth.pause = time.Second
	h.exec.onSleep = func() { h.ctrl.Stop(context.Background()) }

	h.step(raidStart())

	assert.Zero(t, h.synth.count())
	assert.Equal(t, ModeIdle, h.ctrl.Mode())
}

func TestTick_RecoversFromPanic(t *testing.T) {
	h := newHarness(t, settings.Settings{AutoRaid: true})
	h.page.panicOn = true

	assert.NotPanics(t, func() { h.step(raidStart()) })
	assert.Equal(t, ModeRunning, h.ctrl.Mode())
}

func TestBreakPausesAndResumes(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, settings.Settings{AutoRaid: true, Breaks: true})
	h.breaks.Restore(breaks.State{RaidsSinceLastBreak: 11})

	h.step(battle(false))
	h.step(raidStart())

	require.Equal(t, ModePausedBreak, h.ctrl.Mode())
	assert.Zero(t, h.synth.count(), "no start click once the break has begun")
	report := h.ctrl.Status()
	assert.True(t, report.IsOnBreak)
	assert.Equal(t, "break", report.CurrentScreen)
	assert.Positive(t, report.TimeLeftMs)
	assert.EqualValues(t, 1, report.TotalBreaks)

	var bs breaks.State
	require.NoError(t, store.GetJSON(ctx, h.kv, store.KeyBreakState, &bs))
	assert.True(t, bs.OnBreak)

	seen := h.page.observations()
	for i := 0; i < 10; i++ {
		h.step(raidStart())
	}
	assert.Equal(t, seen, h.page.observations(), "the page is left alone during a break")
	assert.Zero(t, h.synth.count())

	// Nothing happens until the break is due.
	h.ctrl.PollBreak(ctx)
	require.Equal(t, ModePausedBreak, h.ctrl.Mode())

	h.clock.Advance(30 * time.Minute)
	h.ctrl.PollBreak(ctx)
	assert.Equal(t, ModeRunning, h.ctrl.Mode())
	assert.Equal(t, screen.Unknown, h.ctrl.State().CurrentScreen)
	require.NoError(t, store.GetJSON(ctx, h.kv, store.KeyBreakState, &bs))
	assert.False(t, bs.OnBreak)

	h.step(raidStart())
	assert.Equal(t, 1, h.synth.count())
}

func TestForceEndBreak(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, settings.Settings{AutoCombat: true, Breaks: true})
	assert.False(t, h.ctrl.ForceEndBreak(ctx))

	h.breaks.Restore(breaks.State{RaidsSinceLastBreak: 11})
	h.step(battle(true))
	h.step(raidStart())
	require.Equal(t, ModePausedBreak, h.ctrl.Mode())

	assert.True(t, h.ctrl.ForceEndBreak(ctx))
	assert.Equal(t, ModeRunning, h.ctrl.Mode())
	assert.False(t, h.ctrl.Status().IsOnBreak)
}

func TestDisablingBreaksEndsActiveBreak(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, settings.Settings{AutoRaid: true, Breaks: true})
	h.breaks.Restore(breaks.State{RaidsSinceLastBreak: 11})
	h.step(battle(false))
	h.step(raidStart())
	require.Equal(t, ModePausedBreak, h.ctrl.Mode())

	off := false
	_, err := h.ctrl.UpdateSettings(ctx, settings.Patch{Breaks: &off})
	require.NoError(t, err)
	assert.Equal(t, ModeRunning, h.ctrl.Mode())
	assert.False(t, h.breaks.OnBreak())
}

func TestApplySettings(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, settings.Settings{})
	assert.Equal(t, ModeIdle, h.ctrl.Mode())

	on := settings.Settings{AutoRaid: true, RandomizeBreaks: true}
	h.ctrl.ApplySettings(ctx, on)
	assert.Equal(t, ModeRunning, h.ctrl.Mode())
	assert.True(t, h.ctrl.Status().Active)

	h.ctrl.ApplySettings(ctx, on)
	assert.Equal(t, ModeRunning, h.ctrl.Mode(), "re-applying the same settings is harmless")

	h.ctrl.ApplySettings(ctx, settings.Settings{})
	assert.Equal(t, ModeIdle, h.ctrl.Mode())
	assert.False(t, h.ctrl.Status().Active)

	// Breaks alone do not start anything.
	h.ctrl.ApplySettings(ctx, settings.Settings{Breaks: true})
	assert.Equal(t, ModeIdle, h.ctrl.Mode())
	assert.True(t, h.breaks.Enabled())
}

func TestStatusPublished(t *testing.T) {
	h := newHarness(t, settings.Settings{})
	ch, unsub := h.bus.Subscribe(status.TopicStatus)
	defer unsub()

	h.ctrl.ApplySettings(context.Background(), settings.Settings{AutoRaid: true})

	select {
	case msg := <-ch:
		report, ok := msg.Payload.(schemas.StatusReport)
		require.True(t, ok)
		assert.Equal(t, "running", report.Mode)
		assert.Equal(t, epoch, report.UpdatedAt)
	case <-time.After(time.Second):
		t.Fatal("no status report published")
	}

	var persisted schemas.StatusReport
	require.NoError(t, store.GetJSON(context.Background(), h.kv, store.KeyStatus, &persisted))
	assert.Equal(t, "running", persisted.Mode)
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	clk := clock.NewFake(epoch)
	logger := zaptest.NewLogger(t)
	bus := status.New(logger, 4)
	defer bus.Shutdown()

	require.NoError(t, store.PutJSON(ctx, kv, store.KeySettings, settings.Settings{AutoRaid: true, Breaks: true}))
	require.NoError(t, store.PutJSON(ctx, kv, store.KeyRunState, RunState{
		Mode:                ModeRunning,
		TotalRaidsCompleted: 42,
		TotalClicks:         99,
	}))
	require.NoError(t, store.PutJSON(ctx, kv, store.KeyBreakState, breaks.State{
		OnBreak:             true,
		BreakStartedAt:      epoch.Add(-time.Minute),
		BreakEndsAt:         epoch.Add(time.Minute),
		RaidsSinceLastBreak: 0,
		TotalBreaksTaken:    3,
	}))

	sched := breaks.New(breaks.DefaultConfig(), fixedRand(0.5), clk, logger)
	ctrl, err := New(DefaultConfig(), Dependencies{
		Observer: &fakePage{},
		Breaks:   sched,
		Synth:    &fakeSynth{},
		Executor: &fakeExecutor{},
		KV:       kv,
		Settings: settings.NewStore(kv, bus, settings.Settings{}, logger),
		Bus:      bus,
		Clock:    clk,
		Rand:     fixedRand(0.5),
		Logger:   logger,
	})
	require.NoError(t, err)
	require.NoError(t, ctrl.Restore(ctx))

	st := ctrl.State()
	assert.EqualValues(t, 42, st.TotalRaidsCompleted)
	assert.EqualValues(t, 99, st.TotalClicks)
	assert.Equal(t, ModePausedBreak, st.Mode, "a persisted break is still honoured after a restart")
	assert.EqualValues(t, 3, ctrl.Status().TotalBreaks)

	clk.Advance(2 * time.Minute)
	ctrl.PollBreak(ctx)
	assert.Equal(t, ModeRunning, ctrl.Mode())
}

func TestRestore_RaidInProgress(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, settings.Settings{AutoCombat: true, Breaks: true})
	require.NoError(t, store.PutJSON(ctx, h.kv, store.KeyRunState, RunState{
		Mode:                      ModeRunning,
		TotalRaidsCompleted:       7,
		RaidInProgress:            true,
		RaidStartedAt:             epoch.Add(-time.Minute),
		AutoCombatAppliedThisRaid: true,
		AutoCombatSeenThisRaid:    true,
		BattleURLSeen:             true,
	}))
	require.NoError(t, h.ctrl.Restore(ctx))

	st := h.ctrl.State()
	require.True(t, st.RaidInProgress)
	assert.True(t, st.AutoCombatAppliedThisRaid)

	h.step(battle(false))
	assert.Zero(t, h.synth.count(), "the toggle was already handled before the restart")

	h.step(raidStart())
	st = h.ctrl.State()
	assert.EqualValues(t, 8, st.TotalRaidsCompleted, "the raid underway at restart is counted")
	assert.Equal(t, time.Minute+1200*time.Millisecond, st.LastRaidDuration)
}

func TestRestore_EmptyStore(t *testing.T) {
	h := newHarness(t, settings.Settings{})
	require.NoError(t, h.ctrl.Restore(context.Background()))
	assert.Equal(t, ModeIdle, h.ctrl.Mode())
}

func TestRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(t, settings.Settings{})
	h.ctrl.cfg.TickInterval = 5 * time.Millisecond
	h.page.set(raidStart())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.ctrl.Run(ctx) }()

	// Settings changes made elsewhere reach the loop through the store. Saving again until
	// the loop reacts covers the window before it has subscribed.
	require.Eventually(t, func() bool {
		_ = h.settings.Save(ctx, settings.Settings{AutoRaid: true})
		return h.ctrl.Mode() == ModeRunning
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool { return h.synth.count() == 1 }, 2*time.Second, 5*time.Millisecond)

	h.ctrl.RequestCheck()
	h.ctrl.RequestCheck()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	assert.Equal(t, 1, h.synth.count(), "the cooldown holds on the fake clock")
}
