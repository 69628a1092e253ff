package repository

import (
	"github.com/nimasrn/sms-verify/internal/model"
	"github.com/nimasrn/sms-verify/pkg/pg"
)

type ServiceEntity struct {
	pg.Model
	Code           string `gorm:"column:code;not null;uniqueIndex"`
	Name           string `gorm:"column:name;not null"`
	PricePerUse    int64  `gorm:"column:price_per_use;not null;check:chk_services_price,price_per_use > 0"`
	AssignedServer string `gorm:"column:assigned_server;not null;default:server_1"`
	Available      bool   `gorm:"column:available;not null"`
	IsGlobal       bool   `gorm:"column:is_global;not null;default:false"`
}

func (ServiceEntity) TableName() string {
	return "services"
}

func toServiceEntity(m *model.Service) *ServiceEntity {
	if m == nil {
		return nil
	}
	server := m.AssignedServer
	if server == "" {
		server = model.ServerOne
	}
	return &ServiceEntity{
		Model:          pg.Model{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		Code:           m.Code,
		Name:           m.Name,
		PricePerUse:    m.PricePerUse,
		AssignedServer: string(server),
		Available:      m.Available,
		IsGlobal:       m.IsGlobal,
	}
}

func toServiceModel(e *ServiceEntity) *model.Service {
	if e == nil {
		return nil
	}
	return &model.Service{
		ID:             e.ID,
		Code:           e.Code,
		Name:           e.Name,
		PricePerUse:    e.PricePerUse,
		AssignedServer: model.Server(e.AssignedServer),
		Available:      e.Available,
		IsGlobal:       e.IsGlobal,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func toServiceModels(entities []*ServiceEntity) []*model.Service {
	if entities == nil {
		return nil
	}
	models := make([]*model.Service, len(entities))
	for i, e := range entities {
		models[i] = toServiceModel(e)
	}
	return models
}
