// internal/humanoid/interface.go
package humanoid

import (
	"context"
	"time"

	"github.com/xkilldash9x/raidpilot/api/schemas"
)

// Random is the randomness the synthesizer draws from. *rand.Rand satisfies it; tests
// inject a seeded one so plans are replayable.
type Random interface {
	Float64() float64
	NormFloat64() float64
}

// Executor is the low-level surface a plan is replayed against.
type Executor interface {
	Sleep(ctx context.Context, d time.Duration) error
	DispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error
}
