// internal/humanoid/clickmodel.go
package humanoid

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/raidpilot/api/schemas"
)

// ClickStep is a single event of a click plan followed by a pause.
type ClickStep struct {
	Type  schemas.MouseEventType
	Point Vector2D
	Pause time.Duration
}

// ClickPlan is the event sequence that commits a click at Point.
type ClickPlan struct {
	Point    Vector2D
	Adjusted bool
	Steps    []ClickStep
}

// PlanClick plans press, hold, release and click at point, sometimes preceded by a small
// settling move. The final point never leaves safe.
func (s *Synthesizer) PlanClick(point Vector2D, safe schemas.Rect) ClickPlan {
	s.mu.Lock()
	defer s.mu.Unlock()

	plan := ClickPlan{Point: point}
	if s.rng.Float64() < s.cfg.MicroAdjustChance {
		plan.Adjusted = true
		r := s.cfg.MicroAdjustRadius
		plan.Point = clampTo(point.Add(Vector2D{X: s.symmetric(r), Y: s.symmetric(r)}), safe)
		plan.Steps = append(plan.Steps, ClickStep{
			Type:  schemas.MouseMove,
			Point: plan.Point,
			Pause: s.uniformDuration(s.cfg.MicroPauseMin, s.cfg.MicroPauseMax),
		})
	}

	plan.Steps = append(plan.Steps,
		ClickStep{Type: schemas.MousePress, Point: plan.Point, Pause: s.uniformDuration(s.cfg.HoldMin, s.cfg.HoldMax)},
		ClickStep{Type: schemas.MouseRelease, Point: plan.Point, Pause: s.uniformDuration(s.cfg.ClickGapMin, s.cfg.ClickGapMax)},
		ClickStep{Type: schemas.MouseClick, Point: plan.Point},
	)
	return plan
}

// Perform moves from the current position onto rect and clicks it. It returns the pointer's
// final position; on error the returned position is the last one successfully dispatched.
func (s *Synthesizer) Perform(ctx context.Context, exec Executor, from Vector2D, rect schemas.Rect) (Vector2D, error) {
	target := s.PlanTarget(rect)
	path := s.PlanPath(from, target)
	click := s.PlanClick(target, SafeArea(rect, s.cfg.SafeAreaFraction))

	pos := from
	for _, st := range path.Steps {
		if err := exec.DispatchMouseEvent(ctx, moveEvent(st.Point)); err != nil {
			return pos, fmt.Errorf("pointer move failed: %w", err)
		}
		pos = st.Point
		if err := exec.Sleep(ctx, st.Delay); err != nil {
			return pos, err
		}
	}

	for _, st := range click.Steps {
		if err := exec.DispatchMouseEvent(ctx, clickEvent(st)); err != nil {
			return pos, fmt.Errorf("%s dispatch failed: %w", st.Type, err)
		}
		pos = st.Point
		if st.Pause > 0 {
			if err := exec.Sleep(ctx, st.Pause); err != nil {
				return pos, err
			}
		}
	}

	s.logger.Debug("Click performed",
		zap.Float64("x", click.Point.X),
		zap.Float64("y", click.Point.Y),
		zap.Int("path_steps", len(path.Steps)),
		zap.Bool("adjusted", click.Adjusted),
	)
	return pos, nil
}

func moveEvent(p Vector2D) schemas.MouseEventData {
	return schemas.MouseEventData{Type: schemas.MouseMove, X: p.X, Y: p.Y, Button: schemas.ButtonNone}
}

func clickEvent(st ClickStep) schemas.MouseEventData {
	data := schemas.MouseEventData{Type: st.Type, X: st.Point.X, Y: st.Point.Y, Button: schemas.ButtonNone}
	switch st.Type {
	case schemas.MousePress:
		data.Button = schemas.ButtonLeft
		data.Buttons = 1 // left button now held
		data.ClickCount = 1
	case schemas.MouseRelease, schemas.MouseClick:
		data.Button = schemas.ButtonLeft
		data.ClickCount = 1
	}
	return data
}
