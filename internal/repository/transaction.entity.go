package repository

import (
	"github.com/nimasrn/sms-verify/internal/model"
	"github.com/nimasrn/sms-verify/pkg/pg"
)

type TransactionEntity struct {
	pg.Model
	UserID        string  `gorm:"column:user_id;type:uuid;not null;index"`
	Amount        int64   `gorm:"column:amount;not null"`
	Type          string  `gorm:"column:type;not null"`
	PaymentMethod *string `gorm:"column:payment_method"`
	Reference     *string `gorm:"column:reference;uniqueIndex"`
	SessionID     *string `gorm:"column:session_id;type:uuid;index"`
	Status        string  `gorm:"column:status;not null;default:pending"`
	Description   string  `gorm:"column:description"`
}

func (TransactionEntity) TableName() string {
	return "transactions"
}

func toTransactionEntity(m *model.Transaction) *TransactionEntity {
	if m == nil {
		return nil
	}
	var method *string
	if m.PaymentMethod != nil {
		v := string(*m.PaymentMethod)
		method = &v
	}
	status := m.Status
	if status == "" {
		status = model.TransactionStatusPending
	}
	return &TransactionEntity{
		Model:         pg.Model{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		UserID:        m.UserID,
		Amount:        m.Amount,
		Type:          string(m.Type),
		PaymentMethod: method,
		Reference:     m.Reference,
		SessionID:     m.SessionID,
		Status:        string(status),
		Description:   m.Description,
	}
}

func toTransactionModel(e *TransactionEntity) *model.Transaction {
	if e == nil {
		return nil
	}
	var method *model.PaymentMethod
	if e.PaymentMethod != nil {
		v := model.PaymentMethod(*e.PaymentMethod)
		method = &v
	}
	return &model.Transaction{
		ID:            e.ID,
		UserID:        e.UserID,
		Amount:        e.Amount,
		Type:          model.TransactionType(e.Type),
		PaymentMethod: method,
		Reference:     e.Reference,
		SessionID:     e.SessionID,
		Status:        model.TransactionStatus(e.Status),
		Description:   e.Description,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

func toTransactionModels(entities []*TransactionEntity) []*model.Transaction {
	if entities == nil {
		return nil
	}
	models := make([]*model.Transaction, len(entities))
	for i, e := range entities {
		models[i] = toTransactionModel(e)
	}
	return models
}
