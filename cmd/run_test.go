// File: cmd/run_test.go
package cmd

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/raidpilot/api/schemas"
	"github.com/xkilldash9x/raidpilot/internal/automation"
	"github.com/xkilldash9x/raidpilot/internal/clock"
	"github.com/xkilldash9x/raidpilot/internal/config"
	"github.com/xkilldash9x/raidpilot/internal/messaging"
	"github.com/xkilldash9x/raidpilot/internal/status"
	"github.com/xkilldash9x/raidpilot/internal/store"
)

// stubPage is a page with a visible start button and no dialogs.
type stubPage struct {
	mu     sync.Mutex
	events []schemas.MouseEventData
}

func (p *stubPage) Query(_ context.Context, selector string) (*schemas.Element, error) {
	if selector != config.NewDefaultConfig().Screen().StartSelector {
		return nil, nil
	}
	return &schemas.Element{
		Selector: selector,
		Rect:     schemas.Rect{X: 100, Y: 100, Width: 120, Height: 40},
		Style:    schemas.ElementStyle{Display: "block", Visibility: "visible"},
	}, nil
}

func (p *stubPage) Viewport(context.Context) (schemas.Viewport, error) {
	return schemas.Viewport{Width: 1280, Height: 900}, nil
}

func (p *stubPage) URL(context.Context) (string, error) {
	return "https://game.example/#quest/supporter", nil
}

func (p *stubPage) Sleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func (p *stubPage) DispatchMouseEvent(_ context.Context, data schemas.MouseEventData) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, data)
	return nil
}

func (p *stubPage) presses() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == schemas.MousePress {
			n++
		}
	}
	return n
}

func TestWireController(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cfg := config.NewDefaultConfig()
	cfg.AutomationCfg.ThinkingPauses = false

	kv := store.NewMemory()
	bus := status.New(logger, 8)
	defer bus.Shutdown()
	page := &stubPage{}
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	ctrl, settingsStore, err := wireController(cfg, page, kv, bus, clk, logger)
	require.NoError(t, err)
	require.NotNil(t, settingsStore)

	ctx := context.Background()
	require.NoError(t, ctrl.Restore(ctx))
	assert.Equal(t, automation.ModeIdle, ctrl.Mode(), "first run starts with automation off")

	router := messaging.NewRouter(ctrl, logger)
	resp := router.Handle(ctx, messaging.Request{Type: messaging.KindUpdateSettings, AutoRaid: boolp(true)})
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, automation.ModeRunning, ctrl.Mode())

	ctrl.Tick(ctx)
	assert.Equal(t, 1, page.presses(), "the visible start button should be clicked once")

	// The settings change was persisted for the next run.
	saved := settingsStore.Current()
	assert.True(t, saved.AutoRaid)

	resp = router.Handle(ctx, messaging.Request{Type: messaging.KindDeactivateAll})
	require.True(t, resp.Success)
	assert.Equal(t, automation.ModeIdle, ctrl.Mode())
}

func TestWireController_InvalidScreenPattern(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.ScreenCfg.BattleURLPattern = "(["

	_, _, err := wireController(cfg, &stubPage{}, store.NewMemory(), status.New(nil, 1), clock.Real{}, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "screen classifier")
}

func TestPilotComponentsShutdown_Partial(t *testing.T) {
	closed := false
	pc := &pilotComponents{
		KV:         store.NewMemory(),
		Bus:        status.New(nil, 1),
		closeStore: func() { closed = true },
	}
	assert.NotPanics(t, func() { pc.Shutdown(zaptest.NewLogger(t)) })
	assert.True(t, closed)
}
