// internal/browser/input.go
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/raidpilot/api/schemas"
	"github.com/xkilldash9x/raidpilot/internal/humanoid"
)

var _ humanoid.Executor = (*Session)(nil)

// Sleep pauses for d, returning early if ctx is cancelled or the browser goes away.
func (s *Session) Sleep(ctx context.Context, d time.Duration) error {
	return s.run(ctx, 0, chromedp.Sleep(d))
}

// DispatchMouseEvent sends one pointer event to the page. The logical click that follows a
// press/release pair is produced by the browser itself, so it is not sent.
func (s *Session) DispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error {
	p, ok := mouseParams(data)
	if !ok {
		return nil
	}
	if err := s.run(ctx, s.cfg.QueryTimeout, p); err != nil {
		return fmt.Errorf("failed to dispatch %s at (%.1f, %.1f): %w", data.Type, data.X, data.Y, err)
	}
	return nil
}

func mouseParams(data schemas.MouseEventData) (*input.DispatchMouseEventParams, bool) {
	if data.Type == schemas.MouseClick {
		return nil, false
	}
	p := input.DispatchMouseEvent(input.MouseType(data.Type), data.X, data.Y)
	if data.Button != "" {
		p = p.WithButton(input.MouseButton(data.Button))
	}
	if data.Buttons != 0 {
		p = p.WithButtons(data.Buttons)
	}
	if data.ClickCount != 0 {
		p = p.WithClickCount(int64(data.ClickCount))
	}
	return p, true
}
