package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/sms-verify/internal/payment"
	"github.com/nimasrn/sms-verify/internal/services"
	xhttp "github.com/nimasrn/sms-verify/pkg/http"
)

type PaymentProcessor interface {
	ProcessPayment(ctx context.Context, w payment.Webhook) (*services.PaymentResult, error)
}

// WebhookHandler receives payment notifications. It carries no user auth, the
// provider signature is the credential.
type WebhookHandler struct {
	payments PaymentProcessor
}

func NewWebhookHandler(payments PaymentProcessor) *WebhookHandler {
	return &WebhookHandler{payments: payments}
}

func RegisterWebhookRoutes(g *router.Group, h *WebhookHandler) {
	g.POST("/webhooks/payment", h.ProcessPayment)
}

func (h *WebhookHandler) ProcessPayment(ctx *xhttp.RequestCtx) {
	headers := make(map[string]string)
	ctx.Request.Header.VisitAll(func(key, value []byte) {
		headers[string(key)] = string(value)
	})
	body := append([]byte(nil), ctx.PostBody()...)

	res, err := h.payments.ProcessPayment(ctx, payment.Webhook{Headers: headers, Body: body})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	if res.Ignored || res.AlreadyProcessed {
		writeJSON(ctx, xhttp.StatusOK, map[string]string{"message": res.Message})
		return
	}
	writeJSON(ctx, xhttp.StatusOK, res)
}
