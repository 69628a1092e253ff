package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nimasrn/sms-verify/internal/model"
	"github.com/nimasrn/sms-verify/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	balanceMaxRetries = 3
	balanceBaseDelay  = 2 * time.Millisecond
)

type UserRepository struct {
	*pg.DB
}

func NewUserRepository(db *pg.DB) *UserRepository {
	return &UserRepository{
		db,
	}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) (*model.User, error) {
	entity := toUserEntity(user)
	entity.Email = strings.ToLower(strings.TrimSpace(entity.Email))

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		if pg.IsUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}

	return toUserModel(entity), nil
}

func (r *UserRepository) GetByID(ctx context.Context, userID string) (*model.User, error) {
	var entity UserEntity
	err := r.Read(ctx).Where("id = ?", userID).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return toUserModel(&entity), nil
}

// GetByEmail matches case-insensitively, payment providers do not preserve case.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var entity UserEntity
	err := r.Read(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return toUserModel(&entity), nil
}

func (r *UserRepository) GetBalance(ctx context.Context, userID string) (int64, error) {
	var entity UserEntity
	err := r.Read(ctx).
		Select("balance").
		Where("id = ?", userID).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}

	return entity.Balance, nil
}

func (r *UserRepository) SetStatus(ctx context.Context, userID string, status model.UserStatus) (*model.User, error) {
	result := r.Write(ctx).
		Model(&UserEntity{}).
		Where("id = ?", userID).
		Update("status", string(status))
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}
	return r.GetByID(ctx, userID)
}

// AdjustBalance applies a signed delta to the balance and returns the new balance.
// The row is locked with SELECT FOR UPDATE for the duration of the attempt, and
// transient failures are retried with exponential backoff (2ms, 4ms, 8ms).
// When expected is set the current balance must equal it.
func (r *UserRepository) AdjustBalance(ctx context.Context, userID string, delta int64, expected *int64) (int64, error) {
	inOuterTx := pg.InTransaction(ctx)

	var lastErr error
	for attempt := 0; attempt <= balanceMaxRetries; attempt++ {
		balance, err := r.adjustBalanceAttempt(ctx, userID, delta, expected)
		if err == nil {
			return balance, nil
		}
		lastErr = err

		if errors.Is(err, ErrUserNotFound) ||
			errors.Is(err, ErrInsufficientBalance) ||
			errors.Is(err, ErrBalanceMismatch) {
			return 0, err
		}

		// a failed statement aborts the caller's transaction, only a lost race is worth repeating there
		if inOuterTx && !errors.Is(err, ErrConcurrentUpdate) {
			return 0, err
		}

		if attempt < balanceMaxRetries {
			delay := balanceBaseDelay * time.Duration(1<<attempt)
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return 0, fmt.Errorf("%w: failed after %d attempts: %v", ErrMaxRetriesExceeded, balanceMaxRetries+1, lastErr)
}

func (r *UserRepository) adjustBalanceAttempt(ctx context.Context, userID string, delta int64, expected *int64) (int64, error) {
	var newBalance int64

	err := r.WithinTransaction(ctx, func(ctx context.Context) error {
		var entity UserEntity
		err := r.Write(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", userID).
			First(&entity).
			Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		if expected != nil && *expected != entity.Balance {
			return ErrBalanceMismatch
		}

		newBalance = entity.Balance + delta
		if newBalance < 0 {
			return ErrInsufficientBalance
		}

		result := r.Write(ctx).
			Model(&UserEntity{}).
			Where("id = ? AND balance = ?", userID, entity.Balance).
			Update("balance", newBalance)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrConcurrentUpdate
		}
		return nil
	})

	return newBalance, err
}
