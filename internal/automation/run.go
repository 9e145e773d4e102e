// internal/automation/run.go
package automation

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Run drives the controller until ctx is done: periodic ticks while running, extra
// passes on RequestCheck, break expiry and settings changes published by the store.
func (c *Controller) Run(ctx context.Context) error {
	settingsCh, unsubscribe := c.deps.Settings.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()
	ticker.Stop()
	ticking := false

	breakTimer := time.NewTimer(time.Hour)
	defer breakTimer.Stop()
	breakTimer.Stop()

	rearm := func() {
		switch running := c.running(); {
		case running && !ticking:
			ticker.Reset(c.cfg.TickInterval)
			ticking = true
		case !running && ticking:
			ticker.Stop()
			ticking = false
		}

		if bs := c.deps.Breaks.Snapshot(); bs.OnBreak {
			wait := bs.BreakEndsAt.Sub(c.deps.Clock.Now())
			if wait < 0 {
				wait = 0
			}
			breakTimer.Reset(wait)
		} else {
			breakTimer.Stop()
		}
	}

	c.log.Info("Automation loop started", zap.Stringer("mode", c.Mode()))
	rearm()
	c.RequestCheck()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("Automation loop stopped")
			return nil
		case <-ticker.C:
			c.Tick(ctx)
		case <-c.recheck:
			c.Tick(ctx)
		case <-breakTimer.C:
			c.PollBreak(ctx)
		case _, ok := <-settingsCh:
			if !ok {
				settingsCh = nil
				continue
			}
			c.applyLatest(ctx)
		case <-c.wake:
			c.handleBreakEnded(ctx)
		}
		rearm()
	}
}
