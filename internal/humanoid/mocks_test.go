// internal/humanoid/mocks_test.go
package humanoid

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/xkilldash9x/raidpilot/api/schemas"
)

// mockExecutor records everything dispatched through the Executor interface.
type mockExecutor struct {
	t                *testing.T
	dispatchedEvents []schemas.MouseEventData
	sleepDurations   []time.Duration
	returnErr        error
	mu               sync.Mutex

	// failOnCall makes the Nth dispatch (1-based) return returnErr. Zero fails every call.
	failOnCall int
	callCount  int

	// If set, these replace the default behavior.
	MockSleep              func(ctx context.Context, d time.Duration) error
	MockDispatchMouseEvent func(ctx context.Context, data schemas.MouseEventData) error
}

func newMockExecutor(t *testing.T) *mockExecutor {
	return &mockExecutor{t: t}
}

func (m *mockExecutor) DispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error {
	if m.MockDispatchMouseEvent != nil {
		return m.MockDispatchMouseEvent(ctx, data)
	}
	return m.DefaultDispatchMouseEvent(ctx, data)
}

// DefaultDispatchMouseEvent records data and applies the configured failure.
func (m *mockExecutor) DefaultDispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCount++
	if m.returnErr != nil && (m.failOnCall == 0 || m.callCount == m.failOnCall) {
		return m.returnErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.dispatchedEvents = append(m.dispatchedEvents, data)
	return nil
}

func (m *mockExecutor) Sleep(ctx context.Context, d time.Duration) error {
	if m.MockSleep != nil {
		return m.MockSleep(ctx, d)
	}
	return m.DefaultSleep(ctx, d)
}

// DefaultSleep records the duration without sleeping.
func (m *mockExecutor) DefaultSleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sleepDurations = append(m.sleepDurations, d)
	return nil
}

func (m *mockExecutor) events() []schemas.MouseEventData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]schemas.MouseEventData(nil), m.dispatchedEvents...)
}
