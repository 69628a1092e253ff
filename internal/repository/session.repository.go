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

type SessionRepository struct {
	*pg.DB
}

func NewSessionRepository(db *pg.DB) *SessionRepository {
	return &SessionRepository{
		db,
	}
}

func (r *SessionRepository) Create(ctx context.Context, session *model.Session) (*model.Session, error) {
	entity := toSessionEntity(session)
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toSessionModel(entity), nil
}

func (r *SessionRepository) GetByID(ctx context.Context, sessionID string) (*model.Session, error) {
	var entity SessionEntity
	err := r.Read(ctx).Where("id = ?", sessionID).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return toSessionModel(&entity), nil
}

// GetForUser loads a session only when it belongs to userID.
func (r *SessionRepository) GetForUser(ctx context.Context, sessionID, userID string) (*model.Session, error) {
	var entity SessionEntity
	err := r.Read(ctx).
		Where("id = ? AND user_id = ?", sessionID, userID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return toSessionModel(&entity), nil
}

// LockForUpdate reads the session with a row lock, it must run inside a transaction.
func (r *SessionRepository) LockForUpdate(ctx context.Context, sessionID string) (*model.Session, error) {
	var entity SessionEntity
	err := r.Write(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", sessionID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return toSessionModel(&entity), nil
}

// Transition moves a pending or active session to the state described by t.
// Sessions already in a terminal state are left alone and ErrSessionClosed is returned.
func (r *SessionRepository) Transition(ctx context.Context, sessionID string, t model.SessionTransition) (*model.Session, error) {
	changes := map[string]any{
		"status":          string(t.Status),
		"delivery_status": string(t.DeliveryStatus),
	}
	if t.Messages != nil {
		changes["messages"] = sessionMessages(t.Messages)
		changes["sms_count"] = len(t.Messages)
	}
	if t.RetryCount != nil {
		changes["retry_count"] = *t.RetryCount
	}
	if t.RefundAmount != nil {
		changes["refund_amount"] = *t.RefundAmount
	}
	if t.ReceivedAt != nil {
		changes["received_at"] = *t.ReceivedAt
	}

	result := r.Write(ctx).
		Model(&SessionEntity{}).
		Where("id = ? AND status IN ?", sessionID, openStatuses()).
		Updates(changes)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, sessionID); err != nil {
			return nil, err
		}
		return nil, ErrSessionClosed
	}
	return r.GetByID(ctx, sessionID)
}

// IncrementRetry bumps retry_count of an open session as long as it is below limit.
func (r *SessionRepository) IncrementRetry(ctx context.Context, sessionID string, limit int) (*model.Session, error) {
	result := r.Write(ctx).
		Model(&SessionEntity{}).
		Where("id = ? AND status IN ? AND retry_count < ?", sessionID, openStatuses(), limit).
		Update("retry_count", gorm.Expr("retry_count + 1"))
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrSessionClosed
	}
	return r.GetByID(ctx, sessionID)
}

// ListOverdue returns open sessions whose expiry is before now, oldest first.
func (r *SessionRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]*model.Session, error) {
	if limit <= 0 {
		limit = 100
	}
	var entities []*SessionEntity
	err := r.Read(ctx).
		Where("status IN ? AND expires_at < ?", openStatuses(), now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toSessionModels(entities), nil
}

func openStatuses() []string {
	out := make([]string, len(model.OpenSessionStatuses))
	for i, s := range model.OpenSessionStatuses {
		out[i] = string(s)
	}
	return out
}
