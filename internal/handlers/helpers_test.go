package handlers

import (
	"encoding/json"
	"testing"

	"github.com/nimasrn/sms-verify/internal/auth"
	"github.com/nimasrn/sms-verify/internal/model"
	xhttp "github.com/nimasrn/sms-verify/pkg/http"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

func withUser(ctx *xhttp.RequestCtx, userID string, admin bool) *xhttp.RequestCtx {
	auth.WithAuth(ctx, model.AuthContext{UserID: userID, IsAdmin: admin})
	return ctx
}

func decodeBody(t *testing.T, ctx *xhttp.RequestCtx) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &out))
	return out
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
