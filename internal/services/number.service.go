package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	gateway "github.com/nimasrn/sms-verify/internal/gateways"
	"github.com/nimasrn/sms-verify/internal/model"
	"github.com/nimasrn/sms-verify/pkg/logger"
	"github.com/nimasrn/sms-verify/pkg/prom"
)

const DefaultSessionTTL = 30 * time.Minute

type NumberConfig struct {
	SessionTTL time.Duration
	Country    string
}

// NumberResult is what a caller gets back for a rented number.
type NumberResult struct {
	SessionID        string    `json:"session_id"`
	PhoneNumber      string    `json:"phone_number"`
	ExpiresAt        time.Time `json:"expires_at"`
	CreditsDeducted  int64     `json:"credits_deducted"`
	RemainingBalance int64     `json:"remaining_balance"`
}

type NumberService struct {
	tx       Transactor
	users    UserStore
	sessions SessionStore
	catalog  *CatalogService
	ledger   *LedgerService
	upstream UpstreamClient
	audit    Auditor
	config   NumberConfig
	now      func() time.Time
}

func NewNumberService(tx Transactor, users UserStore, sessions SessionStore, catalog *CatalogService, ledger *LedgerService, upstream UpstreamClient, audit Auditor, config NumberConfig) *NumberService {
	if config.SessionTTL <= 0 {
		config.SessionTTL = DefaultSessionTTL
	}
	return &NumberService{
		tx:       tx,
		users:    users,
		sessions: sessions,
		catalog:  catalog,
		ledger:   ledger,
		upstream: upstream,
		audit:    audit,
		config:   config,
		now:      time.Now,
	}
}

// RequestNumber rents a number for the caller. The number is acquired before
// any credit moves, and the session row and its debit commit together.
func (s *NumberService) RequestNumber(ctx context.Context, auth model.AuthContext, serviceID string, server model.Server) (*NumberResult, error) {
	if !auth.Authenticated() {
		return nil, ErrUnauthenticated
	}

	result, err := s.requestNumber(ctx, auth, serviceID, server)
	prom.IncNumberRequest(numberOutcome(err))
	return result, err
}

func (s *NumberService) requestNumber(ctx context.Context, auth model.AuthContext, serviceID string, server model.Server) (*NumberResult, error) {
	svc, err := s.catalog.GetAvailableService(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, auth.UserID)
	if err != nil {
		return nil, err
	}
	if user.Suspended() {
		return nil, ErrUserSuspended
	}
	if user.Balance < svc.PricePerUse {
		return nil, ErrInsufficientBalance
	}

	if server == "" {
		server = svc.AssignedServer
	}
	if !server.Valid() || !s.upstream.HasServer(server) {
		return nil, ErrInvalidServer
	}

	acquired, err := s.upstream.AcquireNumber(ctx, server, gateway.AcquireRequest{
		ServiceCode: svc.Code,
		Country:     s.config.Country,
		MaxPrice:    svc.PricePerUse,
	})
	if err != nil {
		logger.Warn("number acquisition failed", "user_id", auth.UserID, "service", svc.Code, "server", server, "error", err)
		return nil, err
	}

	now := s.now().UTC()
	phone := acquired.PhoneNumber
	var (
		session *model.Session
		balance int64
	)
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		session, err = s.sessions.Create(ctx, &model.Session{
			UserID:         auth.UserID,
			ServiceID:      svc.ID,
			Server:         server,
			PhoneNumber:    &phone,
			Status:         model.SessionStatusActive,
			DeliveryStatus: model.DeliveryStatusPending,
			RequestID:      acquired.RequestID,
			Messages:       []model.SessionMessage{},
			ChargedCredits: svc.PricePerUse,
			ExpiresAt:      now.Add(s.config.SessionTTL),
		})
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}

		ref := model.SessionDebitReference(session.ID)
		balance, _, err = s.ledger.Apply(ctx, model.LedgerEntry{
			UserID:      auth.UserID,
			Delta:       -svc.PricePerUse,
			Type:        model.TransactionTypeDebit,
			Reference:   &ref,
			SessionID:   &session.ID,
			Description: "SMS verification for " + svc.Name,
		})
		if err != nil {
			return errors.Join(ErrBalanceUpdateFailed, err)
		}
		return nil
	})
	if err != nil {
		logger.Error("session creation rolled back, releasing number", "user_id", auth.UserID, "request_id", acquired.RequestID, "error", err)
		s.release(ctx, server, acquired.RequestID)
		if !errors.Is(err, ErrBalanceUpdateFailed) {
			return nil, errors.Join(ErrBalanceUpdateFailed, err)
		}
		return nil, err
	}

	s.audit.Emit(ctx, newEvent(model.EventSmsRequest, auth.UserID, "SMS number requested for "+svc.Name, map[string]any{
		"session_id":   session.ID,
		"service_id":   svc.ID,
		"service_code": svc.Code,
		"server":       string(server),
		"phone_number": phone,
	}))
	s.audit.Emit(ctx, newEvent(model.EventCreditDeduction, auth.UserID, fmt.Sprintf("Deducted %d credits", svc.PricePerUse), map[string]any{
		"session_id":  session.ID,
		"amount":      svc.PricePerUse,
		"new_balance": balance,
	}))

	logger.Info("number rented", "user_id", auth.UserID, "session_id", session.ID, "server", server, "price", svc.PricePerUse)

	return &NumberResult{
		SessionID:        session.ID,
		PhoneNumber:      phone,
		ExpiresAt:        session.ExpiresAt,
		CreditsDeducted:  svc.PricePerUse,
		RemainingBalance: balance,
	}, nil
}

func (s *NumberService) release(ctx context.Context, server model.Server, requestID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.upstream.ReleaseNumber(ctx, server, requestID); err != nil {
		logger.Warn("failed to release upstream number", "server", server, "request_id", requestID, "error", err)
	}
}

func numberOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrServiceUnavailable):
		return "service_unavailable"
	case errors.Is(err, gateway.ErrProvider), errors.Is(err, gateway.ErrProviderUnavailable):
		return "provider_error"
	case errors.Is(err, gateway.ErrUpstreamTimeout), errors.Is(err, gateway.ErrUpstreamTransport):
		return "upstream_failure"
	case errors.Is(err, ErrBalanceUpdateFailed):
		return "balance_update_failed"
	default:
		return "error"
	}
}
