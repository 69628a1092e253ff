package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nimasrn/sms-verify/internal/model"
	"github.com/nimasrn/sms-verify/pkg/logger"
	"github.com/nimasrn/sms-verify/pkg/validate"
)

type AddCreditsRequest struct {
	UserID      string `json:"user_id"     validate:"required"`
	Amount      int64  `json:"amount"      validate:"gt=0"`
	Description string `json:"description" validate:"max=255"`
}

type SetUserStatusRequest struct {
	UserID string           `json:"user_id" validate:"required"`
	Status model.UserStatus `json:"status"  validate:"required,oneof=active suspended"`
}

type CreateServiceRequest struct {
	Code           string       `json:"code"            validate:"required,max=64"`
	Name           string       `json:"name"            validate:"required,max=120"`
	PricePerUse    int64        `json:"price_per_use"   validate:"gt=0"`
	AssignedServer model.Server `json:"assigned_server" validate:"omitempty,oneof=server_1 server_2"`
	Available      *bool        `json:"available"`
	IsGlobal       bool         `json:"is_global"`
}

type AddCreditsResult struct {
	TransactionID string `json:"transaction_id"`
	NewBalance    int64  `json:"new_balance"`
}

// AdminService holds the operations only admins may run. Each successful one is audited.
type AdminService struct {
	users    UserStore
	ledger   *LedgerService
	catalog  *CatalogService
	settings *SettingsService
	audit    Auditor
}

func NewAdminService(users UserStore, ledger *LedgerService, catalog *CatalogService, settings *SettingsService, audit Auditor) *AdminService {
	return &AdminService{
		users:    users,
		ledger:   ledger,
		catalog:  catalog,
		settings: settings,
		audit:    audit,
	}
}

func requireAdmin(auth model.AuthContext) error {
	if !auth.Authenticated() {
		return ErrUnauthenticated
	}
	if !auth.IsAdmin {
		return ErrForbidden
	}
	return nil
}

func (s *AdminService) AddCredits(ctx context.Context, auth model.AuthContext, req AddCreditsRequest) (*AddCreditsResult, error) {
	if err := requireAdmin(auth); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	desc := req.Description
	if desc == "" {
		desc = "Admin credit"
	}
	method := model.PaymentMethodAdminCredit
	ref := "admin:" + uuid.NewString()
	balance, txn, err := s.ledger.Apply(ctx, model.LedgerEntry{
		UserID:        req.UserID,
		Delta:         req.Amount,
		Type:          model.TransactionTypeCredit,
		PaymentMethod: &method,
		Reference:     &ref,
		Description:   desc,
	})
	if err != nil {
		return nil, err
	}

	s.audit.Emit(ctx, newEvent(model.EventAdminAction, auth.UserID, fmt.Sprintf("Added %d credits to user", req.Amount), map[string]any{
		"action":         "add_credits",
		"target_user_id": req.UserID,
		"amount":         req.Amount,
		"new_balance":    balance,
	}))
	s.audit.Emit(ctx, newEvent(model.EventCreditAddition, req.UserID, fmt.Sprintf("Added %d credits", req.Amount), map[string]any{
		"amount":      req.Amount,
		"new_balance": balance,
		"admin_id":    auth.UserID,
	}))
	logger.Info("admin credit applied", "admin_id", auth.UserID, "user_id", req.UserID, "amount", req.Amount)

	return &AddCreditsResult{TransactionID: txn.ID, NewBalance: balance}, nil
}

func (s *AdminService) SetUserStatus(ctx context.Context, auth model.AuthContext, req SetUserStatusRequest) (*model.User, error) {
	if err := requireAdmin(auth); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	user, err := s.users.SetStatus(ctx, req.UserID, req.Status)
	if err != nil {
		return nil, err
	}

	s.audit.Emit(ctx, newEvent(model.EventAdminAction, auth.UserID, "User status changed to "+string(req.Status), map[string]any{
		"action":         "suspend_user",
		"target_user_id": req.UserID,
		"status":         string(req.Status),
	}))
	if req.Status == model.UserStatusSuspended {
		s.audit.Emit(ctx, newEvent(model.EventUserSuspended, req.UserID, "User suspended", map[string]any{
			"admin_id": auth.UserID,
		}))
	}
	return user, nil
}

func (s *AdminService) CreateService(ctx context.Context, auth model.AuthContext, req CreateServiceRequest) (*model.Service, error) {
	if err := requireAdmin(auth); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	available := true
	if req.Available != nil {
		available = *req.Available
	}
	svc, err := s.catalog.CreateService(ctx, &model.Service{
		Code:           req.Code,
		Name:           req.Name,
		PricePerUse:    req.PricePerUse,
		AssignedServer: req.AssignedServer,
		Available:      available,
		IsGlobal:       req.IsGlobal,
	})
	if err != nil {
		return nil, err
	}

	s.audit.Emit(ctx, newEvent(model.EventAdminAction, auth.UserID, "Service created: "+svc.Name, map[string]any{
		"action":     "create_service",
		"service_id": svc.ID,
		"code":       svc.Code,
	}))
	return svc, nil
}

func (s *AdminService) UpdateService(ctx context.Context, auth model.AuthContext, serviceID string, upd model.ServiceUpdate) (*model.Service, error) {
	if err := requireAdmin(auth); err != nil {
		return nil, err
	}
	if serviceID == "" {
		return nil, ErrInvalidInput
	}

	svc, err := s.catalog.UpdateService(ctx, serviceID, upd)
	if err != nil {
		return nil, err
	}

	s.audit.Emit(ctx, newEvent(model.EventAdminAction, auth.UserID, "Service updated: "+svc.Name, map[string]any{
		"action":     "update_service",
		"service_id": svc.ID,
	}))
	return svc, nil
}

func (s *AdminService) GetSettings(ctx context.Context, auth model.AuthContext) ([]*model.Setting, error) {
	if err := requireAdmin(auth); err != nil {
		return nil, err
	}
	return s.settings.List(ctx)
}

func (s *AdminService) UpdateSettings(ctx context.Context, auth model.AuthContext, settings []model.Setting) error {
	if err := requireAdmin(auth); err != nil {
		return err
	}
	if err := s.settings.Update(ctx, settings); err != nil {
		return err
	}

	keys := make([]string, len(settings))
	for i, st := range settings {
		keys[i] = st.Key
	}
	s.audit.Emit(ctx, newEvent(model.EventAdminAction, auth.UserID, "Settings updated", map[string]any{
		"action": "update_settings",
		"keys":   keys,
	}))
	return nil
}
