package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/sms-verify/internal/auth"
	"github.com/nimasrn/sms-verify/internal/model"
	"github.com/nimasrn/sms-verify/internal/services"
	xhttp "github.com/nimasrn/sms-verify/pkg/http"
	"github.com/nimasrn/sms-verify/pkg/validate"
)

type NumberRequester interface {
	RequestNumber(ctx context.Context, a model.AuthContext, serviceID string, server model.Server) (*services.NumberResult, error)
}

type DeliveryChecker interface {
	CheckDelivery(ctx context.Context, a model.AuthContext, sessionID string) (*services.DeliveryResult, error)
}

type SessionHandler struct {
	numbers  NumberRequester
	delivery DeliveryChecker
}

func NewSessionHandler(numbers NumberRequester, delivery DeliveryChecker) *SessionHandler {
	return &SessionHandler{
		numbers:  numbers,
		delivery: delivery,
	}
}

func RegisterSessionRoutes(g *router.Group, h *SessionHandler, requireAuth xhttp.MiddlewareFunc) {
	g.POST("/sessions", requireAuth(h.RequestNumber))
	g.POST("/sessions/{id}/check", requireAuth(h.CheckDelivery))
}

type requestNumberRequest struct {
	ServiceID string       `json:"service_id" validate:"required"`
	Server    model.Server `json:"server"     validate:"omitempty,oneof=server_1 server_2"`
}

type requestNumberResponse struct {
	Success bool `json:"success"`
	*services.NumberResult
}

type checkDeliveryResponse struct {
	Success bool `json:"success"`
	*services.DeliveryResult
}

func (h *SessionHandler) RequestNumber(ctx *xhttp.RequestCtx) {
	a, ok := auth.FromRequest(ctx)
	if !ok {
		writeError(ctx, xhttp.StatusUnauthorized, services.ErrUnauthenticated.Error())
		return
	}

	var req requestNumberRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		writeServiceError(ctx, err)
		return
	}

	res, err := h.numbers.RequestNumber(ctx, a, req.ServiceID, req.Server)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, requestNumberResponse{Success: true, NumberResult: res})
}

func (h *SessionHandler) CheckDelivery(ctx *xhttp.RequestCtx) {
	a, ok := auth.FromRequest(ctx)
	if !ok {
		writeError(ctx, xhttp.StatusUnauthorized, services.ErrUnauthenticated.Error())
		return
	}

	sessionID, _ := ctx.UserValue("id").(string)
	if sessionID == "" {
		writeError(ctx, xhttp.StatusBadRequest, "session id is required")
		return
	}

	res, err := h.delivery.CheckDelivery(ctx, a, sessionID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, checkDeliveryResponse{Success: true, DeliveryResult: res})
}
