package model

import "time"

type SettingType string

const (
	SettingTypeString  SettingType = "string"
	SettingTypeBoolean SettingType = "boolean"
	SettingTypeInteger SettingType = "integer"
	SettingTypeJSON    SettingType = "json"
)

const SettingEnableRefunds = "enable_refunds"

type Setting struct {
	Key         string      `json:"key"         validate:"required,max=100"`
	Value       string      `json:"value"`
	Type        SettingType `json:"type"        validate:"required,oneof=string boolean integer json"`
	Description string      `json:"description"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
