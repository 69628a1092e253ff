package handlers

import (
	"context"
	"errors"
	"testing"

	gateway "github.com/nimasrn/sms-verify/internal/gateways"
	xhttp "github.com/nimasrn/sms-verify/pkg/http"
	"github.com/stretchr/testify/assert"
)

type staticStats []gateway.ProviderStats

func (s staticStats) GetProviderStats() []gateway.ProviderStats { return s }

func TestHealthHandler_GetHealth(t *testing.T) {
	ok := func(context.Context) error { return nil }

	t.Run("all checks pass", func(t *testing.T) {
		h := NewHealthHandler(map[string]HealthCheck{"database": ok, "redis": ok},
			staticStats{{Server: "server_1", State: "healthy"}})
		ctx := setupTestContext("GET", "/health", nil)
		h.GetHealth(ctx)

		assert.Equal(t, xhttp.StatusOK, ctx.Response.StatusCode())
		body := decodeBody(t, ctx)
		assert.Equal(t, "ok", body["status"])
		assert.Len(t, body["providers"], 1)
	})

	t.Run("failing check degrades", func(t *testing.T) {
		h := NewHealthHandler(map[string]HealthCheck{
			"database": ok,
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		}, nil)
		ctx := setupTestContext("GET", "/health", nil)
		h.GetHealth(ctx)

		assert.Equal(t, xhttp.StatusServiceUnavailable, ctx.Response.StatusCode())
		body := decodeBody(t, ctx)
		assert.Equal(t, "degraded", body["status"])
		assert.Equal(t, "connection refused", body["checks"].(map[string]any)["redis"])
	})
}
