// internal/messaging/router.go
package messaging

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/raidpilot/api/schemas"
	"github.com/xkilldash9x/raidpilot/internal/settings"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Kind names an inbound request.
type Kind string

const (
	KindUpdateSettings Kind = "updateSettings"
	KindForceEndBreak  Kind = "forceEndBreak"
	KindGetStatus      Kind = "getStatus"
	// KindDeactivateAll switches every automated action off in one step.
	KindDeactivateAll Kind = "deactivateAll"
)

// StatusUpdateType tags responses and pushes that carry a status report.
const StatusUpdateType = "raidStatusUpdate"

// Request is an inbound message. The settings fields only matter for updateSettings;
// absent fields are left unchanged.
type Request struct {
	Type            Kind  `json:"type"`
	AutoRaid        *bool `json:"autoRaid,omitempty"`
	AutoCombat      *bool `json:"autoCombat,omitempty"`
	BreaksEnabled   *bool `json:"breaksEnabled,omitempty"`
	RandomizeBreaks *bool `json:"randomizeBreaks,omitempty"`
}

func (r Request) patch() settings.Patch {
	return settings.Patch{
		AutoRaid:        r.AutoRaid,
		AutoCombat:      r.AutoCombat,
		Breaks:          r.BreaksEnabled,
		RandomizeBreaks: r.RandomizeBreaks,
	}
}

// Response answers a Request. Success is false only when the request itself was bad or
// the change could not be saved.
type Response struct {
	Success    bool                  `json:"success"`
	Type       string                `json:"type,omitempty"`
	Status     *schemas.StatusReport `json:"status,omitempty"`
	Settings   *settings.Settings    `json:"settings,omitempty"`
	BreakEnded *bool                 `json:"breakEnded,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// Controller is the part of the automation controller the router drives.
type Controller interface {
	UpdateSettings(ctx context.Context, patch settings.Patch) (settings.Settings, error)
	ForceEndBreak(ctx context.Context) bool
	Status() schemas.StatusReport
}

// Router dispatches inbound requests to the controller.
type Router struct {
	ctrl   Controller
	logger *zap.Logger
}

// NewRouter creates a Router.
func NewRouter(ctrl Controller, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{ctrl: ctrl, logger: logger.Named("messaging")}
}

// Handle processes one request.
func (r *Router) Handle(ctx context.Context, req Request) Response {
	r.logger.Debug("Handling request", zap.String("type", string(req.Type)))

	switch req.Type {
	case KindUpdateSettings:
		return r.update(ctx, req.patch())
	case KindDeactivateAll:
		return r.update(ctx, settings.DisableAutomation())
	case KindForceEndBreak:
		ended := r.ctrl.ForceEndBreak(ctx)
		st := r.ctrl.Status()
		return Response{Success: true, Type: StatusUpdateType, Status: &st, BreakEnded: &ended}
	case KindGetStatus:
		st := r.ctrl.Status()
		return Response{Success: true, Type: StatusUpdateType, Status: &st}
	default:
		r.logger.Warn("Unknown request type", zap.String("type", string(req.Type)))
		return Response{Error: fmt.Sprintf("unknown request type: %q", req.Type)}
	}
}

func (r *Router) update(ctx context.Context, patch settings.Patch) Response {
	next, err := r.ctrl.UpdateSettings(ctx, patch)
	st := r.ctrl.Status()
	resp := Response{Success: err == nil, Type: StatusUpdateType, Status: &st, Settings: &next}
	if err != nil {
		// The change is live in memory even when saving failed.
		r.logger.Warn("Settings applied but not saved", zap.Error(err))
		resp.Error = err.Error()
	}
	return resp
}

// HandleJSON decodes a request, handles it and encodes the response. Malformed input is
// answered, never returned as an error.
func (r *Router) HandleJSON(ctx context.Context, raw []byte) []byte {
	var req Request
	var resp Response
	if err := json.Unmarshal(raw, &req); err != nil {
		resp = Response{Error: fmt.Sprintf("invalid request: %v", err)}
	} else {
		resp = r.Handle(ctx, req)
	}
	out, err := json.Marshal(resp)
	if err != nil {
		r.logger.Error("Failed to encode response", zap.Error(err))
		return []byte(`{"success":false,"error":"internal error"}`)
	}
	return out
}
