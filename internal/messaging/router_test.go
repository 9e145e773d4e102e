// internal/messaging/router_test.go
package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/raidpilot/api/schemas"
	"github.com/xkilldash9x/raidpilot/internal/settings"
)

type mockController struct {
	mock.Mock
}

func (m *mockController) UpdateSettings(ctx context.Context, patch settings.Patch) (settings.Settings, error) {
	args := m.Called(ctx, patch)
	return args.Get(0).(settings.Settings), args.Error(1)
}

func (m *mockController) ForceEndBreak(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func (m *mockController) Status() schemas.StatusReport {
	return m.Called().Get(0).(schemas.StatusReport)
}

func boolPtr(b bool) *bool { return &b }

func TestRouter_UpdateSettings(t *testing.T) {
	ctx := context.Background()
	ctrl := new(mockController)
	ctrl.On("UpdateSettings", ctx, settings.Patch{AutoRaid: boolPtr(true)}).
		Return(settings.Settings{AutoRaid: true}, nil).Once()
	ctrl.On("Status").Return(schemas.StatusReport{Active: true, Mode: "running"})

	resp := NewRouter(ctrl, nil).Handle(ctx, Request{Type: KindUpdateSettings, AutoRaid: boolPtr(true)})

	assert.True(t, resp.Success)
	require.NotNil(t, resp.Settings)
	assert.True(t, resp.Settings.AutoRaid)
	require.NotNil(t, resp.Status)
	assert.True(t, resp.Status.Active)
	ctrl.AssertExpectations(t)
}

func TestRouter_UpdateSettingsSaveFailure(t *testing.T) {
	ctx := context.Background()
	ctrl := new(mockController)
	ctrl.On("UpdateSettings", ctx, mock.Anything).Return(settings.Settings{AutoCombat: true}, errors.New("disk full"))
	ctrl.On("Status").Return(schemas.StatusReport{})

	resp := NewRouter(ctrl, zap.NewNop()).Handle(ctx, Request{Type: KindUpdateSettings, AutoCombat: boolPtr(true)})

	assert.False(t, resp.Success)
	assert.Equal(t, "disk full", resp.Error)
	assert.True(t, resp.Settings.AutoCombat, "the applied settings are still reported")
}

func TestRouter_DeactivateAll(t *testing.T) {
	ctx := context.Background()
	ctrl := new(mockController)
	ctrl.On("UpdateSettings", ctx, settings.DisableAutomation()).Return(settings.Settings{}, nil).Once()
	ctrl.On("Status").Return(schemas.StatusReport{Mode: "idle"})

	resp := NewRouter(ctrl, nil).Handle(ctx, Request{Type: KindDeactivateAll})

	assert.True(t, resp.Success)
	assert.Equal(t, "idle", resp.Status.Mode)
	ctrl.AssertExpectations(t)
}

func TestRouter_ForceEndBreakAndStatus(t *testing.T) {
	ctx := context.Background()
	ctrl := new(mockController)
	ctrl.On("ForceEndBreak", ctx).Return(true).Once()
	ctrl.On("Status").Return(schemas.StatusReport{TotalRaids: 7})
	r := NewRouter(ctrl, nil)

	resp := r.Handle(ctx, Request{Type: KindForceEndBreak})
	assert.True(t, resp.Success)
	require.NotNil(t, resp.BreakEnded)
	assert.True(t, *resp.BreakEnded)

	resp = r.Handle(ctx, Request{Type: KindGetStatus})
	assert.Equal(t, StatusUpdateType, resp.Type)
	assert.EqualValues(t, 7, resp.Status.TotalRaids)
	ctrl.AssertExpectations(t)
}

func TestRouter_UnknownType(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	ctrl := new(mockController)

	resp := NewRouter(ctrl, zap.New(core)).Handle(context.Background(), Request{Type: "reboot"})

	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "reboot")
	assert.Equal(t, 1, logs.FilterMessage("Unknown request type").Len())
	ctrl.AssertNotCalled(t, "Status")
}

func TestRouter_HandleJSON(t *testing.T) {
	ctx := context.Background()
	ctrl := new(mockController)
	ctrl.On("UpdateSettings", ctx, settings.Patch{AutoRaid: boolPtr(false), Breaks: boolPtr(true)}).
		Return(settings.Settings{Breaks: true}, nil).Once()
	ctrl.On("Status").Return(schemas.StatusReport{Mode: "idle"})
	r := NewRouter(ctrl, nil)

	out := r.HandleJSON(ctx, []byte(`{"type":"updateSettings","autoRaid":false,"breaksEnabled":true}`))
	var resp Response
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.True(t, resp.Success)
	assert.True(t, resp.Settings.Breaks)

	out = r.HandleJSON(ctx, []byte(`{not json`))
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "invalid request")
	ctrl.AssertExpectations(t)
}
