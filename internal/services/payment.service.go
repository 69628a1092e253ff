package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/nimasrn/sms-verify/internal/model"
	"github.com/nimasrn/sms-verify/internal/payment"
	"github.com/nimasrn/sms-verify/internal/processor"
	"github.com/nimasrn/sms-verify/internal/repository"
	"github.com/nimasrn/sms-verify/pkg/logger"
	"github.com/nimasrn/sms-verify/pkg/prom"
	"github.com/shopspring/decimal"
)

const (
	msgPaymentProcessed = "Payment processed successfully"
	msgAlreadyProcessed = "Transaction already processed"
	msgEventIgnored     = "Event not processed"
)

type PaymentConfig struct {
	MinorPerUnit   int64
	CreditsPerUnit int64
}

type PaymentResult struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	CreditsAdded     int64  `json:"credits_added,omitempty"`
	NewBalance       int64  `json:"new_balance,omitempty"`
	AlreadyProcessed bool   `json:"-"`
	Ignored          bool   `json:"-"`
}

type PaymentService struct {
	registry     *payment.Registry
	users        UserStore
	transactions TransactionStore
	ledger       *LedgerService
	idempotency  *processor.IdempotencyService
	audit        Auditor
	config       PaymentConfig
}

func NewPaymentService(registry *payment.Registry, users UserStore, transactions TransactionStore, ledger *LedgerService, idempotency *processor.IdempotencyService, audit Auditor, config PaymentConfig) *PaymentService {
	if config.MinorPerUnit <= 0 {
		config.MinorPerUnit = 100
	}
	if config.CreditsPerUnit <= 0 {
		config.CreditsPerUnit = 2
	}
	return &PaymentService{
		registry:     registry,
		users:        users,
		transactions: transactions,
		ledger:       ledger,
		idempotency:  idempotency,
		audit:        audit,
		config:       config,
	}
}

// Credits converts minor currency units to whole credits, dropping any partial unit.
func (s *PaymentService) Credits(amountMinor int64) int64 {
	units := decimal.NewFromInt(amountMinor).Div(decimal.NewFromInt(s.config.MinorPerUnit)).Floor()
	return units.Mul(decimal.NewFromInt(s.config.CreditsPerUnit)).IntPart()
}

// ProcessPayment credits a verified successful charge at most once per provider reference.
func (s *PaymentService) ProcessPayment(ctx context.Context, w payment.Webhook) (*PaymentResult, error) {
	ev, err := s.registry.Parse(w)
	if err != nil {
		prom.IncPayment("unknown", "rejected")
		return nil, err
	}
	provider := string(ev.Provider)

	if !ev.Successful() {
		prom.IncPayment(provider, "ignored")
		return &PaymentResult{Success: true, Message: msgEventIgnored, Ignored: true}, nil
	}
	if err := ev.Validate(); err != nil {
		prom.IncPayment(provider, "invalid")
		return nil, errors.Join(payment.ErrInvalidPayload, err)
	}

	credits := s.Credits(ev.AmountMinor)
	if credits <= 0 {
		prom.IncPayment(provider, "invalid")
		return nil, ErrInvalidAmount
	}

	user, err := s.users.GetByEmail(ctx, ev.CustomerEmail)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			prom.IncPayment(provider, "user_not_found")
		}
		return nil, err
	}

	res, err := s.credit(ctx, ev, user, credits)
	switch {
	case err != nil:
		prom.IncPayment(provider, "failed")
	case res.AlreadyProcessed:
		prom.IncPayment(provider, "duplicate")
	default:
		prom.IncPayment(provider, "success")
		prom.AddCreditsPurchased(provider, credits)
	}
	return res, err
}

func (s *PaymentService) credit(ctx context.Context, ev *payment.Event, user *model.User, credits int64) (*PaymentResult, error) {
	var pc *processor.ProcessingContext
	if s.idempotency != nil {
		var err error
		pc, err = s.idempotency.AcquireProcessingLock(ctx, ev.IdempotencyKey())
		switch {
		case errors.Is(err, processor.ErrAlreadyProcessed):
			return alreadyProcessed(), nil
		case errors.Is(err, processor.ErrLockAcquireFailed):
			return nil, ErrLockBusy
		case errors.Is(err, processor.ErrLockStoreDown):
			// the unique reference still guards the credit
			logger.Warn("payment lock unavailable, continuing without it", "key", ev.IdempotencyKey(), "error", err)
			pc = nil
		case err != nil:
			return nil, err
		}
		if pc != nil {
			defer s.idempotency.ReleaseLock(context.WithoutCancel(ctx), pc)
		}
	}

	reference := ev.LedgerReference()
	existing, err := s.transactions.GetByReference(ctx, reference)
	if err != nil {
		s.markFailure(ctx, pc, err)
		return nil, err
	}
	if existing != nil {
		s.markSuccess(ctx, pc)
		logger.Info("payment already processed", "provider", ev.Provider, "reference", ev.Reference)
		return alreadyProcessed(), nil
	}

	method := ev.Provider
	ref := reference
	entry := model.LedgerEntry{
		UserID:        user.ID,
		Delta:         credits,
		Type:          model.TransactionTypeCredit,
		PaymentMethod: &method,
		Reference:     &ref,
		Description:   fmt.Sprintf("Credit purchase via %s", ev.Provider),
	}

	balance, txn, err := s.ledger.Apply(ctx, entry)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateReference) {
			s.markSuccess(ctx, pc)
			return alreadyProcessed(), nil
		}
		logger.Error("payment credit failed", "provider", ev.Provider, "reference", ev.Reference, "user_id", user.ID, "error", err)
		if _, ferr := s.ledger.RecordFailed(context.WithoutCancel(ctx), entry, err.Error()); ferr != nil {
			logger.Error("failed to record failed payment", "reference", ev.Reference, "error", ferr)
		}
		s.markFailure(ctx, pc, err)
		return nil, errors.Join(ErrBalanceUpdateFailed, err)
	}
	s.markSuccess(ctx, pc)

	s.audit.Emit(ctx, newEvent(model.EventPaymentProcessed, user.ID, fmt.Sprintf("Payment processed via %s", ev.Provider), map[string]any{
		"provider":       string(ev.Provider),
		"reference":      ev.Reference,
		"amount":         ev.AmountMinor,
		"credits":        credits,
		"transaction_id": txn.ID,
	}))
	s.audit.Emit(ctx, newEvent(model.EventCreditAddition, user.ID, fmt.Sprintf("Added %d credits", credits), map[string]any{
		"amount":      credits,
		"new_balance": balance,
		"reference":   ev.Reference,
	}))

	logger.Info("payment credited", "provider", ev.Provider, "reference", ev.Reference, "user_id", user.ID, "credits", credits)

	return &PaymentResult{
		Success:      true,
		Message:      msgPaymentProcessed,
		CreditsAdded: credits,
		NewBalance:   balance,
	}, nil
}

func (s *PaymentService) markSuccess(ctx context.Context, pc *processor.ProcessingContext) {
	if s.idempotency == nil || pc == nil {
		return
	}
	if err := s.idempotency.MarkSuccess(ctx, pc); err != nil {
		logger.Warn("failed to mark payment processed", "key", pc.Key, "error", err)
	}
}

// markFailure frees the lock for the provider's retry. Payments keep no
// retry budget, a paid charge must stay creditable after any outage.
func (s *PaymentService) markFailure(ctx context.Context, pc *processor.ProcessingContext, reason error) {
	if s.idempotency == nil || pc == nil {
		return
	}
	logger.Warn("payment attempt failed", "key", pc.Key, "reason", reason)
	_ = s.idempotency.ReleaseLock(context.WithoutCancel(ctx), pc)
}

func alreadyProcessed() *PaymentResult {
	return &PaymentResult{Success: true, Message: msgAlreadyProcessed, AlreadyProcessed: true}
}
