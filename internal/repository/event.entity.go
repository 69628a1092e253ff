package repository

import (
	"github.com/nimasrn/sms-verify/internal/model"
	"github.com/nimasrn/sms-verify/pkg/pg"
)

type EventEntity struct {
	pg.Model
	EventType   string  `gorm:"column:event_type;not null;index"`
	UserID      *string `gorm:"column:user_id;type:uuid;index"`
	Description string  `gorm:"column:description"`
	Metadata    jsonMap `gorm:"column:metadata;type:jsonb"`
	IPAddress   *string `gorm:"column:ip_address"`
}

func (EventEntity) TableName() string {
	return "logs"
}

func toEventEntity(m *model.Event) *EventEntity {
	if m == nil {
		return nil
	}
	return &EventEntity{
		Model:       pg.Model{ID: m.ID, CreatedAt: m.CreatedAt},
		EventType:   string(m.EventType),
		UserID:      m.UserID,
		Description: m.Description,
		Metadata:    jsonMap(m.Metadata),
		IPAddress:   m.IPAddress,
	}
}

func toEventModel(e *EventEntity) *model.Event {
	if e == nil {
		return nil
	}
	return &model.Event{
		ID:          e.ID,
		EventType:   model.EventType(e.EventType),
		UserID:      e.UserID,
		Description: e.Description,
		Metadata:    map[string]any(e.Metadata),
		IPAddress:   e.IPAddress,
		CreatedAt:   e.CreatedAt,
	}
}
