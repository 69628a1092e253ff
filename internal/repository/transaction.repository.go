package repository

import (
	"context"
	"errors"

	"github.com/nimasrn/sms-verify/internal/model"
	"github.com/nimasrn/sms-verify/pkg/pg"
	"gorm.io/gorm"
)

type TransactionRepository struct {
	*pg.DB
}

func NewTransactionRepository(db *pg.DB) *TransactionRepository {
	return &TransactionRepository{
		db,
	}
}

func (r *TransactionRepository) Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	entity := toTransactionEntity(txn)

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		if pg.IsUniqueViolation(err) {
			return nil, ErrDuplicateReference
		}
		return nil, err
	}

	return toTransactionModel(entity), nil
}

func (r *TransactionRepository) ExistsByReference(ctx context.Context, reference string) (bool, error) {
	var count int64
	err := r.Read(ctx).
		Model(&TransactionEntity{}).
		Where("reference = ?", reference).
		Count(&count).
		Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *TransactionRepository) GetByReference(ctx context.Context, reference string) (*model.Transaction, error) {
	var entity TransactionEntity
	err := r.Read(ctx).Where("reference = ?", reference).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toTransactionModel(&entity), nil
}

type TransactionFilter struct {
	UserID    string
	Type      *model.TransactionType
	Status    *model.TransactionStatus
	SessionID *string
	Limit     int
	Offset    int
}

// List returns transactions newest first.
func (r *TransactionRepository) List(ctx context.Context, f TransactionFilter) ([]*model.Transaction, error) {
	query := r.Read(ctx).Model(&TransactionEntity{})
	if f.UserID != "" {
		query = query.Where("user_id = ?", f.UserID)
	}
	if f.Type != nil {
		query = query.Where("type = ?", string(*f.Type))
	}
	if f.Status != nil {
		query = query.Where("status = ?", string(*f.Status))
	}
	if f.SessionID != nil {
		query = query.Where("session_id = ?", *f.SessionID)
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}

	var entities []*TransactionEntity
	err := query.Order("created_at DESC").Limit(f.Limit).Offset(f.Offset).Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toTransactionModels(entities), nil
}
