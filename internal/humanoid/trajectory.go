// internal/humanoid/trajectory.go
package humanoid

import (
	"math"
	"time"
)

// Easing identifies the velocity profile of a path.
type Easing int

const (
	EaseQuadInOut Easing = iota
	EaseCubicInOut
	EaseLinear
	// EaseOvershoot runs slightly past the target and settles back onto it.
	EaseOvershoot
)

func (e Easing) apply(t float64) float64 {
	switch e {
	case EaseQuadInOut:
		if t < 0.5 {
			return 2 * t * t
		}
		return 1 - math.Pow(-2*t+2, 2)/2
	case EaseCubicInOut:
		if t < 0.5 {
			return 4 * t * t * t
		}
		return 1 - math.Pow(-2*t+2, 3)/2
	case EaseOvershoot:
		const c1 = 1.70158
		const c3 = c1 + 1
		return 1 + c3*math.Pow(t-1, 3) + c1*math.Pow(t-1, 2)
	default:
		return t
	}
}

// Step is one pointer position and the pause that follows it.
type Step struct {
	Point Vector2D
	Delay time.Duration
}

// Path is a planned pointer movement. Steps up to and including index Arrive end exactly
// on the target; a corrected path has one extra small step after that.
type Path struct {
	Steps     []Step
	Easing    Easing
	Arrive    int
	Corrected bool
}

// End returns where the pointer rests after the path is replayed.
func (p Path) End() Vector2D {
	if len(p.Steps) == 0 {
		return Vector2D{}
	}
	return p.Steps[len(p.Steps)-1].Point
}

// PlanPath plans a movement from one point to another along a gently bowed curve.
func (s *Synthesizer) PlanPath(from, to Vector2D) Path {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.uniformInt(s.cfg.MinSteps, s.cfg.MaxSteps)

	var easing Easing
	switch r := s.rng.Float64(); {
	case r < 0.4:
		easing = EaseQuadInOut
	case r < 0.7:
		easing = EaseCubicInOut
	case r < 0.9:
		easing = EaseLinear
	default:
		easing = EaseOvershoot
	}

	// Quadratic Bezier with the control point pushed off the straight line.
	main := to.Sub(from)
	mid := from.Add(main.Mul(0.5))
	ctrl := mid.Add(main.Perp().Normalize().Mul(s.rng.NormFloat64() * main.Mag() * s.cfg.PathBow))

	path := Path{Easing: easing, Steps: make([]Step, 0, n+1)}
	for i := 1; i <= n; i++ {
		e := easing.apply(float64(i) / float64(n))
		omt := 1 - e
		pt := from.Mul(omt * omt).Add(ctrl.Mul(2 * omt * e)).Add(to.Mul(e * e))
		if i == n {
			pt = to
		}
		path.Steps = append(path.Steps, Step{
			Point: pt,
			Delay: s.uniformDuration(s.cfg.StepDelayMin, s.cfg.StepDelayMax),
		})
	}
	path.Arrive = len(path.Steps) - 1

	if s.rng.Float64() < s.cfg.CorrectionChance {
		path.Corrected = true
		path.Steps = append(path.Steps, Step{
			Point: to.Add(Vector2D{X: s.symmetric(1.5), Y: s.symmetric(1.5)}),
			Delay: s.uniformDuration(s.cfg.StepDelayMin, s.cfg.StepDelayMax),
		})
	}
	return path
}
