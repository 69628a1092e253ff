package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nimasrn/sms-verify/internal/model"
	"github.com/nimasrn/sms-verify/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ServiceRepository struct {
	*pg.DB
}

func NewServiceRepository(db *pg.DB) *ServiceRepository {
	return &ServiceRepository{
		db,
	}
}

func (r *ServiceRepository) GetByID(ctx context.Context, serviceID string) (*model.Service, error) {
	var entity ServiceEntity
	err := r.Read(ctx).Where("id = ?", serviceID).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	return toServiceModel(&entity), nil
}

func (r *ServiceRepository) GetByCode(ctx context.Context, code string) (*model.Service, error) {
	var entity ServiceEntity
	err := r.Read(ctx).Where("code = ?", code).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	return toServiceModel(&entity), nil
}

func (r *ServiceRepository) Create(ctx context.Context, service *model.Service) (*model.Service, error) {
	entity := toServiceEntity(service)
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		if pg.IsUniqueViolation(err) {
			return nil, ErrDuplicateService
		}
		return nil, err
	}
	return toServiceModel(entity), nil
}

func (r *ServiceRepository) Update(ctx context.Context, serviceID string, upd model.ServiceUpdate) (*model.Service, error) {
	changes := map[string]any{}
	if upd.Name != nil {
		changes["name"] = *upd.Name
	}
	if upd.PricePerUse != nil {
		changes["price_per_use"] = *upd.PricePerUse
	}
	if upd.AssignedServer != nil {
		changes["assigned_server"] = string(*upd.AssignedServer)
	}
	if upd.Available != nil {
		changes["available"] = *upd.Available
	}
	if upd.IsGlobal != nil {
		changes["is_global"] = *upd.IsGlobal
	}
	if len(changes) == 0 {
		return r.GetByID(ctx, serviceID)
	}

	result := r.Write(ctx).Model(&ServiceEntity{}).Where("id = ?", serviceID).Updates(changes)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrServiceNotFound
	}
	return r.GetByID(ctx, serviceID)
}

// UpsertByCode inserts new catalog entries and refreshes existing ones in place,
// so syncing the same upstream list twice never duplicates a service.
func (r *ServiceRepository) UpsertByCode(ctx context.Context, entries []model.CatalogEntry) (int64, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	now := time.Now()
	entities := make([]*ServiceEntity, 0, len(entries))
	for _, e := range entries {
		entities = append(entities, &ServiceEntity{
			Model:          pg.Model{CreatedAt: now, UpdatedAt: now},
			Code:           e.Code,
			Name:           e.Name,
			PricePerUse:    e.PricePerUse,
			AssignedServer: string(e.Server),
			Available:      e.Available,
		})
	}

	result := r.Write(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "price_per_use", "assigned_server", "available", "updated_at"}),
		}).
		CreateInBatches(entities, 200)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *ServiceRepository) ListAvailable(ctx context.Context) ([]*model.Service, error) {
	var entities []*ServiceEntity
	err := r.Read(ctx).Where("available = ?", true).Order("name ASC").Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toServiceModels(entities), nil
}
