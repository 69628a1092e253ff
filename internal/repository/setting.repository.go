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

type SettingRepository struct {
	*pg.DB
}

func NewSettingRepository(db *pg.DB) *SettingRepository {
	return &SettingRepository{
		db,
	}
}

func (r *SettingRepository) Get(ctx context.Context, key string) (*model.Setting, error) {
	if key == "" {
		return nil, ErrSettingNotFound
	}
	var entity SettingEntity
	err := r.Read(ctx).Where(&SettingEntity{Key: key}).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSettingNotFound
		}
		return nil, err
	}
	return toSettingModel(&entity), nil
}

func (r *SettingRepository) List(ctx context.Context) ([]*model.Setting, error) {
	var entities []*SettingEntity
	if err := r.Read(ctx).Order(clause.OrderByColumn{Column: clause.Column{Name: "key"}}).Find(&entities).Error; err != nil {
		return nil, err
	}
	settings := make([]*model.Setting, len(entities))
	for i, e := range entities {
		settings[i] = toSettingModel(e)
	}
	return settings, nil
}

// Upsert writes every setting by key in one statement.
func (r *SettingRepository) Upsert(ctx context.Context, settings []model.Setting) error {
	if len(settings) == 0 {
		return nil
	}
	now := time.Now()
	entities := make([]*SettingEntity, 0, len(settings))
	for _, s := range settings {
		entities = append(entities, &SettingEntity{
			Key:         s.Key,
			Value:       s.Value,
			Type:        string(s.Type),
			Description: s.Description,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return r.Write(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "type", "description", "updated_at"}),
		}).
		Create(&entities).
		Error
}
