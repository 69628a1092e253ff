package handlers

import (
	"context"
	"testing"

	"github.com/nimasrn/sms-verify/internal/model"
	"github.com/nimasrn/sms-verify/internal/services"
	xhttp "github.com/nimasrn/sms-verify/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockAdminOperations struct {
	mock.Mock
}

func (m *MockAdminOperations) AddCredits(ctx context.Context, a model.AuthContext, req services.AddCreditsRequest) (*services.AddCreditsResult, error) {
	args := m.Called(ctx, a, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AddCreditsResult), args.Error(1)
}

func (m *MockAdminOperations) SetUserStatus(ctx context.Context, a model.AuthContext, req services.SetUserStatusRequest) (*model.User, error) {
	args := m.Called(ctx, a, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockAdminOperations) CreateService(ctx context.Context, a model.AuthContext, req services.CreateServiceRequest) (*model.Service, error) {
	args := m.Called(ctx, a, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Service), args.Error(1)
}

func (m *MockAdminOperations) UpdateService(ctx context.Context, a model.AuthContext, serviceID string, upd model.ServiceUpdate) (*model.Service, error) {
	args := m.Called(ctx, a, serviceID, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Service), args.Error(1)
}

func (m *MockAdminOperations) GetSettings(ctx context.Context, a model.AuthContext) ([]*model.Setting, error) {
	args := m.Called(ctx, a)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Setting), args.Error(1)
}

func (m *MockAdminOperations) UpdateSettings(ctx context.Context, a model.AuthContext, settings []model.Setting) error {
	return m.Called(ctx, a, settings).Error(0)
}

var adminAuth = model.AuthContext{UserID: "admin", IsAdmin: true}

func dispatch(h *AdminHandler, body []byte, admin bool) *xhttp.RequestCtx {
	ctx := withUser(setupTestContext("POST", "/api/v1/admin/actions", body), "admin", admin)
	h.Dispatch(ctx)
	return ctx
}

func TestAdminHandler_Dispatch(t *testing.T) {
	t.Run("add credits", func(t *testing.T) {
		admin := new(MockAdminOperations)
		h := NewAdminHandler(admin)
		admin.On("AddCredits", mock.Anything, adminAuth, services.AddCreditsRequest{UserID: "u1", Amount: 50}).
			Return(&services.AddCreditsResult{TransactionID: "tx-1", NewBalance: 150}, nil)

		ctx := dispatch(h, []byte(`{"action":"add_credits","data":{"user_id":"u1","amount":50}}`), true)

		assert.Equal(t, xhttp.StatusOK, ctx.Response.StatusCode())
		body := decodeBody(t, ctx)
		assert.Equal(t, true, body["success"])
		assert.EqualValues(t, 150, body["data"].(map[string]any)["new_balance"])
		admin.AssertExpectations(t)
	})

	t.Run("suspend user with flag", func(t *testing.T) {
		admin := new(MockAdminOperations)
		h := NewAdminHandler(admin)
		admin.On("SetUserStatus", mock.Anything, adminAuth, services.SetUserStatusRequest{UserID: "u1", Status: model.UserStatusSuspended}).
			Return(&model.User{ID: "u1", Status: model.UserStatusSuspended}, nil)

		ctx := dispatch(h, []byte(`{"action":"suspend_user","data":{"user_id":"u1","suspend":true}}`), true)
		assert.Equal(t, xhttp.StatusOK, ctx.Response.StatusCode())

		admin.On("SetUserStatus", mock.Anything, adminAuth, services.SetUserStatusRequest{UserID: "u1", Status: model.UserStatusActive}).
			Return(&model.User{ID: "u1", Status: model.UserStatusActive}, nil)
		ctx = dispatch(h, []byte(`{"action":"suspend_user","data":{"user_id":"u1","suspend":false}}`), true)
		assert.Equal(t, xhttp.StatusOK, ctx.Response.StatusCode())
		admin.AssertExpectations(t)
	})

	t.Run("update service", func(t *testing.T) {
		admin := new(MockAdminOperations)
		h := NewAdminHandler(admin)
		admin.On("UpdateService", mock.Anything, adminAuth, "svc-1", mock.MatchedBy(func(u model.ServiceUpdate) bool {
			return u.PricePerUse != nil && *u.PricePerUse == 25
		})).Return(&model.Service{ID: "svc-1", PricePerUse: 25}, nil)

		ctx := dispatch(h, []byte(`{"action":"update_service","data":{"service_id":"svc-1","updates":{"price_per_use":25}}}`), true)
		assert.Equal(t, xhttp.StatusOK, ctx.Response.StatusCode())
		admin.AssertExpectations(t)
	})

	t.Run("update settings", func(t *testing.T) {
		admin := new(MockAdminOperations)
		h := NewAdminHandler(admin)
		admin.On("UpdateSettings", mock.Anything, adminAuth, mock.MatchedBy(func(s []model.Setting) bool {
			return len(s) == 1 && s[0].Key == model.SettingEnableRefunds
		})).Return(nil)

		ctx := dispatch(h, []byte(`{"action":"update_settings","data":{"settings":[{"key":"enable_refunds","value":"true","type":"boolean"}]}}`), true)
		assert.Equal(t, xhttp.StatusOK, ctx.Response.StatusCode())
		assert.EqualValues(t, 1, decodeBody(t, ctx)["data"].(map[string]any)["updated"])
	})

	t.Run("unknown action", func(t *testing.T) {
		h := NewAdminHandler(new(MockAdminOperations))
		ctx := dispatch(h, []byte(`{"action":"drop_tables"}`), true)
		assert.Equal(t, xhttp.StatusBadRequest, ctx.Response.StatusCode())
		assert.Equal(t, "Invalid action", decodeBody(t, ctx)["error"])
	})

	t.Run("missing data", func(t *testing.T) {
		admin := new(MockAdminOperations)
		h := NewAdminHandler(admin)
		ctx := dispatch(h, []byte(`{"action":"add_credits"}`), true)
		assert.Equal(t, xhttp.StatusBadRequest, ctx.Response.StatusCode())
		admin.AssertNotCalled(t, "AddCredits", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("non admin is forbidden", func(t *testing.T) {
		admin := new(MockAdminOperations)
		h := NewAdminHandler(admin)
		admin.On("GetSettings", mock.Anything, model.AuthContext{UserID: "admin"}).Return(nil, services.ErrForbidden)

		ctx := dispatch(h, []byte(`{"action":"get_settings"}`), false)
		assert.Equal(t, xhttp.StatusForbidden, ctx.Response.StatusCode())
	})
}
