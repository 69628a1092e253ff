package handlers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/fasthttp/router"
	"github.com/nimasrn/sms-verify/internal/auth"
	"github.com/nimasrn/sms-verify/internal/model"
	"github.com/nimasrn/sms-verify/internal/services"
	xhttp "github.com/nimasrn/sms-verify/pkg/http"
)

type AdminOperations interface {
	AddCredits(ctx context.Context, a model.AuthContext, req services.AddCreditsRequest) (*services.AddCreditsResult, error)
	SetUserStatus(ctx context.Context, a model.AuthContext, req services.SetUserStatusRequest) (*model.User, error)
	CreateService(ctx context.Context, a model.AuthContext, req services.CreateServiceRequest) (*model.Service, error)
	UpdateService(ctx context.Context, a model.AuthContext, serviceID string, upd model.ServiceUpdate) (*model.Service, error)
	GetSettings(ctx context.Context, a model.AuthContext) ([]*model.Setting, error)
	UpdateSettings(ctx context.Context, a model.AuthContext, settings []model.Setting) error
}

type AdminHandler struct {
	admin   AdminOperations
	actions map[string]adminAction
}

// adminAction decodes its own payload and returns the response data.
type adminAction func(ctx *xhttp.RequestCtx, a model.AuthContext, data json.RawMessage) (any, error)

func NewAdminHandler(admin AdminOperations) *AdminHandler {
	h := &AdminHandler{admin: admin}
	h.actions = map[string]adminAction{
		"add_credits":     h.addCredits,
		"suspend_user":    h.setUserStatus,
		"set_user_status": h.setUserStatus,
		"create_service":  h.createService,
		"update_service":  h.updateService,
		"get_settings":    h.getSettings,
		"update_settings": h.updateSettings,
	}
	return h
}

func RegisterAdminRoutes(g *router.Group, h *AdminHandler, requireAuth xhttp.MiddlewareFunc) {
	g.POST("/admin/actions", requireAuth(h.Dispatch))
}

type adminRequest struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

type adminResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

func (h *AdminHandler) Dispatch(ctx *xhttp.RequestCtx) {
	a, ok := auth.FromRequest(ctx)
	if !ok {
		writeError(ctx, xhttp.StatusUnauthorized, services.ErrUnauthenticated.Error())
		return
	}

	var req adminRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	action, ok := h.actions[req.Action]
	if !ok {
		writeError(ctx, xhttp.StatusBadRequest, "Invalid action")
		return
	}

	data, err := action(ctx, a, req.Data)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, adminResponse{Success: true, Data: data})
}

func decodeData(data json.RawMessage, dst any) error {
	if len(data) == 0 {
		return services.ErrInvalidInput
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return errors.Join(services.ErrInvalidInput, err)
	}
	return nil
}

func (h *AdminHandler) addCredits(ctx *xhttp.RequestCtx, a model.AuthContext, data json.RawMessage) (any, error) {
	var req services.AddCreditsRequest
	if err := decodeData(data, &req); err != nil {
		return nil, err
	}
	return h.admin.AddCredits(ctx, a, req)
}

// suspendUserData accepts either an explicit status or the older suspend flag.
type suspendUserData struct {
	UserID  string           `json:"user_id"`
	Status  model.UserStatus `json:"status"`
	Suspend *bool            `json:"suspend"`
}

func (h *AdminHandler) setUserStatus(ctx *xhttp.RequestCtx, a model.AuthContext, data json.RawMessage) (any, error) {
	var d suspendUserData
	if err := decodeData(data, &d); err != nil {
		return nil, err
	}
	status := d.Status
	if status == "" {
		status = model.UserStatusSuspended
		if d.Suspend != nil && !*d.Suspend {
			status = model.UserStatusActive
		}
	}
	return h.admin.SetUserStatus(ctx, a, services.SetUserStatusRequest{UserID: d.UserID, Status: status})
}

func (h *AdminHandler) createService(ctx *xhttp.RequestCtx, a model.AuthContext, data json.RawMessage) (any, error) {
	var req services.CreateServiceRequest
	if err := decodeData(data, &req); err != nil {
		return nil, err
	}
	return h.admin.CreateService(ctx, a, req)
}

type updateServiceData struct {
	ServiceID string              `json:"service_id"`
	Updates   model.ServiceUpdate `json:"updates"`
}

func (h *AdminHandler) updateService(ctx *xhttp.RequestCtx, a model.AuthContext, data json.RawMessage) (any, error) {
	var d updateServiceData
	if err := decodeData(data, &d); err != nil {
		return nil, err
	}
	if d.ServiceID == "" {
		return nil, services.ErrInvalidInput
	}
	return h.admin.UpdateService(ctx, a, d.ServiceID, d.Updates)
}

func (h *AdminHandler) getSettings(ctx *xhttp.RequestCtx, a model.AuthContext, _ json.RawMessage) (any, error) {
	return h.admin.GetSettings(ctx, a)
}

type updateSettingsData struct {
	Settings []model.Setting `json:"settings"`
}

func (h *AdminHandler) updateSettings(ctx *xhttp.RequestCtx, a model.AuthContext, data json.RawMessage) (any, error) {
	var d updateSettingsData
	if err := decodeData(data, &d); err != nil {
		return nil, err
	}
	if err := h.admin.UpdateSettings(ctx, a, d.Settings); err != nil {
		return nil, err
	}
	return map[string]int{"updated": len(d.Settings)}, nil
}
