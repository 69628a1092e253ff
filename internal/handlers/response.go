package handlers

import (
	"encoding/json"
	"errors"

	gateway "github.com/nimasrn/sms-verify/internal/gateways"
	"github.com/nimasrn/sms-verify/internal/payment"
	"github.com/nimasrn/sms-verify/internal/repository"
	"github.com/nimasrn/sms-verify/internal/services"
	xhttp "github.com/nimasrn/sms-verify/pkg/http"
	"github.com/nimasrn/sms-verify/pkg/logger"
	"github.com/nimasrn/sms-verify/pkg/validate"
)

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	if len(body) == 0 {
		return errors.New("empty body")
	}
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logger.Error("failed to encode response", "error", err)
		status = xhttp.StatusInternalServerError
		b = []byte(`{"error":"internal server error"}`)
	}
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, errorResponse{Error: msg})
}

// writeServiceError maps a service error to its status code in one place.
func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	if fields := validate.ProcessValidationErrors(err); fields != nil {
		writeJSON(ctx, xhttp.StatusBadRequest, errorResponse{Error: "validation failed", Fields: fields})
		return
	}

	var provErr *gateway.ProviderError
	switch {
	case errors.Is(err, services.ErrBalanceUpdateFailed):
		logger.Error("balance update failed", "path", string(ctx.Path()), "error", err)
		writeError(ctx, xhttp.StatusInternalServerError, services.ErrBalanceUpdateFailed.Error())
	case errors.Is(err, services.ErrInsufficientBalance),
		errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrInvalidServer),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, payment.ErrInvalidPayload):
		writeError(ctx, xhttp.StatusBadRequest, rootMessage(err))
	case errors.Is(err, payment.ErrUnverifiedWebhook):
		writeError(ctx, xhttp.StatusBadRequest, "Missing signature")
	case errors.Is(err, services.ErrUnauthenticated):
		writeError(ctx, xhttp.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrForbidden), errors.Is(err, services.ErrUserSuspended):
		writeError(ctx, xhttp.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrServiceUnavailable),
		errors.Is(err, services.ErrSessionNotFound),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, repository.ErrServiceNotFound):
		writeError(ctx, xhttp.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrLockBusy), errors.Is(err, repository.ErrDuplicateService):
		writeError(ctx, xhttp.StatusConflict, err.Error())
	case errors.As(err, &provErr):
		writeError(ctx, xhttp.StatusInternalServerError, "Failed to get number: "+provErr.Message)
	case errors.Is(err, gateway.ErrUpstreamTimeout),
		errors.Is(err, gateway.ErrUpstreamTransport),
		errors.Is(err, gateway.ErrProviderUnavailable):
		logger.Error("upstream failure", "path", string(ctx.Path()), "error", err)
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
	default:
		logger.Error("request failed", "path", string(ctx.Path()), "error", err)
		writeError(ctx, xhttp.StatusInternalServerError, "internal server error")
	}
}

// rootMessage drops the sentinel prefix errors.Join adds.
func rootMessage(err error) string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		if errs := joined.Unwrap(); len(errs) > 0 {
			return errs[len(errs)-1].Error()
		}
	}
	return err.Error()
}
