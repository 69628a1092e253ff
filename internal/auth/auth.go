package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/nimasrn/sms-verify/internal/model"
	xhttp "github.com/nimasrn/sms-verify/pkg/http"
	"github.com/nimasrn/sms-verify/pkg/logger"
)

const userValueKey = "auth"

var (
	ErrMissingToken = errors.New("missing authorization header")
	ErrInvalidToken = errors.New("invalid token")
)

type Claims struct {
	UserID  string `json:"uid"`
	IsAdmin bool   `json:"adm,omitempty"`
	jwt.StandardClaims
}

// Issuer signs and verifies HS256 bearer tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (i *Issuer) Issue(userID string, isAdmin bool) (string, error) {
	if userID == "" {
		return "", errors.New("user id is required")
	}
	now := i.now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID:  userID,
		IsAdmin: isAdmin,
		StandardClaims: jwt.StandardClaims{
			Subject:   userID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(i.ttl).Unix(),
		},
	})
	return t.SignedString(i.secret)
}

// Parse validates token and returns the caller it identifies.
func (i *Issuer) Parse(token string) (model.AuthContext, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !parsed.Valid || claims.UserID == "" {
		return model.AuthContext{}, ErrInvalidToken
	}
	return model.AuthContext{UserID: claims.UserID, IsAdmin: claims.IsAdmin}, nil
}

// FromRequest reads the AuthContext stored by Require.
func FromRequest(ctx *xhttp.RequestCtx) (model.AuthContext, bool) {
	a, ok := ctx.UserValue(userValueKey).(model.AuthContext)
	return a, ok && a.Authenticated()
}

// WithAuth stores a on ctx, handler tests use it to skip token issuing.
func WithAuth(ctx *xhttp.RequestCtx, a model.AuthContext) {
	ctx.SetUserValue(userValueKey, a)
}

// Require rejects requests without a valid bearer token.
func Require(i *Issuer) xhttp.MiddlewareFunc {
	return func(next xhttp.RequestHandler) xhttp.RequestHandler {
		return func(ctx *xhttp.RequestCtx) {
			header := string(ctx.Request.Header.Peek("Authorization"))
			if header == "" {
				unauthorized(ctx, ErrMissingToken)
				return
			}
			token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			a, err := i.Parse(token)
			if err != nil {
				logger.Debug("rejected bearer token", "path", string(ctx.Path()), "error", err)
				unauthorized(ctx, err)
				return
			}
			WithAuth(ctx, a)
			next(ctx)
		}
	}
}

func unauthorized(ctx *xhttp.RequestCtx, err error) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(xhttp.StatusUnauthorized)
	ctx.SetBodyString(fmt.Sprintf(`{"error":%q}`, err.Error()))
}
