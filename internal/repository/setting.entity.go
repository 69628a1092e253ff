package repository

import (
	"time"

	"github.com/nimasrn/sms-verify/internal/model"
)

type SettingEntity struct {
	Key         string    `gorm:"column:key;primaryKey"`
	Value       string    `gorm:"column:value;not null"`
	Type        string    `gorm:"column:type;not null;default:string"`
	Description string    `gorm:"column:description"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (SettingEntity) TableName() string {
	return "settings"
}

func toSettingModel(e *SettingEntity) *model.Setting {
	if e == nil {
		return nil
	}
	return &model.Setting{
		Key:         e.Key,
		Value:       e.Value,
		Type:        model.SettingType(e.Type),
		Description: e.Description,
		UpdatedAt:   e.UpdatedAt,
	}
}
