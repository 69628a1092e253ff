package auth

import (
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/nimasrn/sms-verify/internal/model"
	xhttp "github.com/nimasrn/sms-verify/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func TestIssuer_RoundTrip(t *testing.T) {
	i := NewIssuer("s3cret", time.Hour)

	token, err := i.Issue("user-1", true)
	require.NoError(t, err)

	a, err := i.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, model.AuthContext{UserID: "user-1", IsAdmin: true}, a)
}

func TestIssuer_Rejects(t *testing.T) {
	i := NewIssuer("s3cret", time.Hour)

	t.Run("other secret", func(t *testing.T) {
		token, err := NewIssuer("other", time.Hour).Issue("user-1", false)
		require.NoError(t, err)
		_, err = i.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		old := NewIssuer("s3cret", time.Minute)
		old.now = func() time.Time { return time.Now().Add(-time.Hour) }
		token, err := old.Issue("user-1", false)
		require.NoError(t, err)
		_, err = i.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("none algorithm", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "user-1"}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = i.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := i.Parse("abc.def")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestRequire(t *testing.T) {
	i := NewIssuer("s3cret", time.Hour)
	var seen model.AuthContext
	h := Require(i)(func(ctx *xhttp.RequestCtx) {
		seen, _ = FromRequest(ctx)
		ctx.SetStatusCode(fasthttp.StatusOK)
	})

	t.Run("missing header", func(t *testing.T) {
		ctx := &fasthttp.RequestCtx{}
		h(ctx)
		assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
		assert.JSONEq(t, `{"error":"missing authorization header"}`, string(ctx.Response.Body()))
	})

	t.Run("bad token", func(t *testing.T) {
		ctx := &fasthttp.RequestCtx{}
		ctx.Request.Header.Set("Authorization", "Bearer nope")
		h(ctx)
		assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
	})

	t.Run("valid token", func(t *testing.T) {
		token, err := i.Issue("user-7", false)
		require.NoError(t, err)

		ctx := &fasthttp.RequestCtx{}
		ctx.Request.Header.Set("Authorization", "Bearer "+token)
		h(ctx)
		assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
		assert.Equal(t, "user-7", seen.UserID)
		assert.False(t, seen.IsAdmin)
	})
}
