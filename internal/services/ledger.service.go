package services

import (
	"context"

	"github.com/nimasrn/sms-verify/internal/model"
	"github.com/pkg/errors"
)

// LedgerService is the only way balances change: every delta is written
// together with the transaction row that explains it.
type LedgerService struct {
	tx           Transactor
	users        UserStore
	transactions TransactionStore
}

func NewLedgerService(tx Transactor, users UserStore, transactions TransactionStore) *LedgerService {
	return &LedgerService{
		tx:           tx,
		users:        users,
		transactions: transactions,
	}
}

func (s *LedgerService) GetBalance(ctx context.Context, userID string) (int64, error) {
	return s.users.GetBalance(ctx, userID)
}

// Apply adjusts the balance and records a completed transaction in one unit.
// It joins the caller's transaction when ctx already carries one.
func (s *LedgerService) Apply(ctx context.Context, entry model.LedgerEntry) (int64, *model.Transaction, error) {
	if entry.UserID == "" {
		return 0, nil, ErrInvalidInput
	}
	if entry.Delta == 0 {
		return 0, nil, ErrInvalidAmount
	}

	var (
		balance int64
		created *model.Transaction
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		balance, err = s.users.AdjustBalance(ctx, entry.UserID, entry.Delta, nil)
		if err != nil {
			return err
		}

		created, err = s.transactions.Create(ctx, &model.Transaction{
			UserID:        entry.UserID,
			Amount:        entry.Delta,
			Type:          entry.Type,
			PaymentMethod: entry.PaymentMethod,
			Reference:     entry.Reference,
			SessionID:     entry.SessionID,
			Status:        model.TransactionStatusCompleted,
			Description:   entry.Description,
		})
		if err != nil {
			return errors.Wrap(err, "record transaction")
		}
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return balance, created, nil
}

// RecordFailed stores a failed transaction row without touching the balance.
func (s *LedgerService) RecordFailed(ctx context.Context, entry model.LedgerEntry, reason string) (*model.Transaction, error) {
	desc := entry.Description
	if reason != "" {
		desc = desc + ": " + reason
	}
	return s.transactions.Create(ctx, &model.Transaction{
		UserID:        entry.UserID,
		Amount:        entry.Delta,
		Type:          entry.Type,
		PaymentMethod: entry.PaymentMethod,
		SessionID:     entry.SessionID,
		Status:        model.TransactionStatusFailed,
		Description:   desc,
	})
}
