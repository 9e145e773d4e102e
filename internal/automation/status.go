// internal/automation/status.go
package automation

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/raidpilot/api/schemas"
	"github.com/xkilldash9x/raidpilot/internal/status"
	"github.com/xkilldash9x/raidpilot/internal/store"
)

// Status returns the report observers see.
func (c *Controller) Status() schemas.StatusReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reportLocked()
}

func (c *Controller) reportLocked() schemas.StatusReport {
	now := c.deps.Clock.Now()
	bs := c.deps.Breaks.Status(now)
	return schemas.StatusReport{
		Active:              c.state.Mode == ModeRunning,
		Mode:                c.state.Mode.String(),
		CurrentScreen:       c.state.CurrentScreen.String(),
		LastAction:          c.state.LastActionDescription,
		TotalClicks:         c.state.TotalClicks,
		TotalRaids:          c.state.TotalRaidsCompleted,
		IsOnBreak:           bs.OnBreak,
		TimeLeftMs:          bs.TimeLeft.Milliseconds(),
		RaidsSinceLastBreak: bs.RaidsSinceLastBreak,
		TotalBreaks:         bs.TotalBreaksTaken,
		PausedReason:        c.state.PausedReason,
		UpdatedAt:           now,
	}
}

// emitStatusLocked publishes the current report and keeps the last one on disk for the
// status command. The caller must hold mu.
func (c *Controller) emitStatusLocked(ctx context.Context) {
	report := c.reportLocked()
	c.deps.Bus.Publish(status.TopicStatus, report)
	if err := store.PutJSON(ctx, c.deps.KV, store.KeyStatus, report); err != nil {
		c.log.Debug("Failed to persist status report", zap.Error(err))
	}
}
