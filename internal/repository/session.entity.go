package repository

import (
	"time"

	"github.com/nimasrn/sms-verify/internal/model"
	"github.com/nimasrn/sms-verify/pkg/pg"
)

type SessionEntity struct {
	pg.Model
	UserID         string          `gorm:"column:user_id;type:uuid;not null;index"`
	ServiceID      string          `gorm:"column:service_id;type:uuid;not null;index"`
	Server         string          `gorm:"column:server;not null"`
	PhoneNumber    *string         `gorm:"column:phone_number"`
	Status         string          `gorm:"column:status;not null;default:pending;index"`
	DeliveryStatus string          `gorm:"column:delivery_status;not null;default:pending"`
	RequestID      string          `gorm:"column:request_id;not null"`
	Messages       sessionMessages `gorm:"column:messages;type:jsonb;not null"`
	SmsCount       int             `gorm:"column:sms_count;not null;default:0"`
	RetryCount     int             `gorm:"column:retry_count;not null;default:0"`
	ChargedCredits int64           `gorm:"column:charged_credits;not null;default:0"`
	RefundAmount   int64           `gorm:"column:refund_amount;not null;default:0"`
	ReceivedAt     *time.Time      `gorm:"column:received_at"`
	ExpiresAt      time.Time       `gorm:"column:expires_at;not null;index"`
}

func (SessionEntity) TableName() string {
	return "sms_sessions"
}

func toSessionEntity(m *model.Session) *SessionEntity {
	if m == nil {
		return nil
	}
	status := m.Status
	if status == "" {
		status = model.SessionStatusPending
	}
	delivery := m.DeliveryStatus
	if delivery == "" {
		delivery = model.DeliveryStatusPending
	}
	return &SessionEntity{
		Model:          pg.Model{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		UserID:         m.UserID,
		ServiceID:      m.ServiceID,
		Server:         string(m.Server),
		PhoneNumber:    m.PhoneNumber,
		Status:         string(status),
		DeliveryStatus: string(delivery),
		RequestID:      m.RequestID,
		Messages:       sessionMessages(m.Messages),
		SmsCount:       m.SmsCount,
		RetryCount:     m.RetryCount,
		ChargedCredits: m.ChargedCredits,
		RefundAmount:   m.RefundAmount,
		ReceivedAt:     m.ReceivedAt,
		ExpiresAt:      m.ExpiresAt,
	}
}

func toSessionModel(e *SessionEntity) *model.Session {
	if e == nil {
		return nil
	}
	messages := []model.SessionMessage(e.Messages)
	if messages == nil {
		messages = []model.SessionMessage{}
	}
	return &model.Session{
		ID:             e.ID,
		UserID:         e.UserID,
		ServiceID:      e.ServiceID,
		Server:         model.Server(e.Server),
		PhoneNumber:    e.PhoneNumber,
		Status:         model.SessionStatus(e.Status),
		DeliveryStatus: model.DeliveryStatus(e.DeliveryStatus),
		RequestID:      e.RequestID,
		Messages:       messages,
		SmsCount:       e.SmsCount,
		RetryCount:     e.RetryCount,
		ChargedCredits: e.ChargedCredits,
		RefundAmount:   e.RefundAmount,
		ReceivedAt:     e.ReceivedAt,
		ExpiresAt:      e.ExpiresAt,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func toSessionModels(entities []*SessionEntity) []*model.Session {
	if entities == nil {
		return nil
	}
	models := make([]*model.Session, len(entities))
	for i, e := range entities {
		models[i] = toSessionModel(e)
	}
	return models
}
