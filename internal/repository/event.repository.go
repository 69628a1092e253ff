package repository

import (
	"context"

	"github.com/nimasrn/sms-verify/internal/model"
	"github.com/nimasrn/sms-verify/pkg/pg"
)

type EventRepository struct {
	*pg.DB
}

func NewEventRepository(db *pg.DB) *EventRepository {
	return &EventRepository{
		db,
	}
}

// Create appends an event. A pre-set ID makes redelivered events idempotent.
func (r *EventRepository) Create(ctx context.Context, event *model.Event) (*model.Event, error) {
	entity := toEventEntity(event)
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		if entity.ID != "" && pg.IsUniqueViolation(err) {
			return event, nil
		}
		return nil, err
	}
	return toEventModel(entity), nil
}

func (r *EventRepository) ListByUser(ctx context.Context, userID string, eventType *model.EventType) ([]*model.Event, error) {
	query := r.Read(ctx).Where("user_id = ?", userID)
	if eventType != nil {
		query = query.Where("event_type = ?", string(*eventType))
	}

	var entities []*EventEntity
	if err := query.Order("created_at ASC").Find(&entities).Error; err != nil {
		return nil, err
	}

	events := make([]*model.Event, len(entities))
	for i, e := range entities {
		events[i] = toEventModel(e)
	}
	return events, nil
}
