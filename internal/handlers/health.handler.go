package handlers

import (
	"context"
	"time"

	"github.com/fasthttp/router"
	gateway "github.com/nimasrn/sms-verify/internal/gateways"
	xhttp "github.com/nimasrn/sms-verify/pkg/http"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type ProviderStatsSource interface {
	GetProviderStats() []gateway.ProviderStats
}

type HealthHandler struct {
	checks    map[string]HealthCheck
	providers ProviderStatsSource
}

func RegisterHealthRoutes(e *router.Group, h *HealthHandler) {
	e.GET("/health", h.GetHealth)
}

func NewHealthHandler(checks map[string]HealthCheck, providers ProviderStatsSource) *HealthHandler {
	return &HealthHandler{
		checks:    checks,
		providers: providers,
	}
}

type healthResponse struct {
	Status    string                  `json:"status"`
	Checks    map[string]string       `json:"checks,omitempty"`
	Providers []gateway.ProviderStats `json:"providers,omitempty"`
}

func (h *HealthHandler) GetHealth(ctx *xhttp.RequestCtx) {
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res := healthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	status := xhttp.StatusOK
	for name, check := range h.checks {
		if err := check(c); err != nil {
			res.Checks[name] = err.Error()
			res.Status = "degraded"
			status = xhttp.StatusServiceUnavailable
			continue
		}
		res.Checks[name] = "ok"
	}
	if h.providers != nil {
		res.Providers = h.providers.GetProviderStats()
	}
	writeJSON(ctx, status, res)
}
