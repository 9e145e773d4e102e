// internal/humanoid/target.go
package humanoid

import (
	"math"

	"github.com/xkilldash9x/raidpilot/api/schemas"
)

// TargetStrategy records how a click point was chosen.
type TargetStrategy int

const (
	TargetNearCenter TargetStrategy = iota
	TargetUpperLeft
	TargetUniform
)

// SafeArea returns the centred sub-rectangle of r that covers fraction of each dimension.
func SafeArea(r schemas.Rect, fraction float64) schemas.Rect {
	w, h := r.Width*fraction, r.Height*fraction
	return schemas.Rect{
		X:      r.X + (r.Width-w)/2,
		Y:      r.Y + (r.Height-h)/2,
		Width:  w,
		Height: h,
	}
}

// clampTo pins p inside r.
func clampTo(p Vector2D, r schemas.Rect) Vector2D {
	return Vector2D{
		X: math.Min(math.Max(p.X, r.X), r.X+r.Width),
		Y: math.Min(math.Max(p.Y, r.Y), r.Y+r.Height),
	}
}

// PlanTarget picks a click point inside rect's safe area.
func (s *Synthesizer) PlanTarget(rect schemas.Rect) Vector2D {
	p, _ := s.planTarget(rect)
	return p
}

func (s *Synthesizer) planTarget(rect schemas.Rect) (Vector2D, TargetStrategy) {
	safe := SafeArea(rect, s.cfg.SafeAreaFraction)
	if rect.Area() <= 0 {
		cx, cy := rect.Center()
		return Vector2D{X: cx, Y: cy}, TargetNearCenter
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var p Vector2D
	strategy := TargetUniform
	switch r := s.rng.Float64(); {
	case r < 0.3:
		strategy = TargetNearCenter
		cx, cy := safe.Center()
		// Most draws land within the middle third of the safe area.
		p = Vector2D{
			X: cx + s.rng.NormFloat64()*safe.Width/6,
			Y: cy + s.rng.NormFloat64()*safe.Height/6,
		}
	case r < 0.6:
		strategy = TargetUpperLeft
		p = Vector2D{
			X: safe.X + s.rng.Float64()*safe.Width/2,
			Y: safe.Y + s.rng.Float64()*safe.Height/2,
		}
	default:
		p = Vector2D{
			X: safe.X + s.rng.Float64()*safe.Width,
			Y: safe.Y + s.rng.Float64()*safe.Height,
		}
	}

	p.X += s.symmetric(s.cfg.TargetJitter)
	p.Y += s.symmetric(s.cfg.TargetJitter)
	return clampTo(p, safe), strategy
}
