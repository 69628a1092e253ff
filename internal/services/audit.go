package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/sms-verify/internal/model"
	"github.com/nimasrn/sms-verify/pkg/logger"
)

// Auditor appends audit events. Failures never fail the operation that emitted them.
type Auditor interface {
	Emit(ctx context.Context, event model.Event)
}

// Publisher is the slice of queue.Queue the stream auditor needs.
type Publisher interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

func newEvent(eventType model.EventType, userID string, description string, metadata map[string]any) model.Event {
	e := model.Event{
		ID:          uuid.NewString(),
		EventType:   eventType,
		Description: description,
		Metadata:    metadata,
		CreatedAt:   time.Now().UTC(),
	}
	if userID != "" {
		e.UserID = &userID
	}
	return e
}

type RepositoryAuditor struct {
	events EventStore
}

func NewRepositoryAuditor(events EventStore) *RepositoryAuditor {
	return &RepositoryAuditor{events: events}
}

func (a *RepositoryAuditor) Emit(ctx context.Context, event model.Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if _, err := a.events.Create(context.WithoutCancel(ctx), &event); err != nil {
		logger.Error("failed to write audit event", "type", event.EventType, "error", err)
	}
}

// QueueAuditor publishes events to the audit stream, the worker persists them.
type QueueAuditor struct {
	publisher Publisher
}

func NewQueueAuditor(publisher Publisher) *QueueAuditor {
	return &QueueAuditor{publisher: publisher}
}

func (a *QueueAuditor) Emit(ctx context.Context, event model.Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	_, err := a.publisher.PublishJSON(context.WithoutCancel(ctx), event, map[string]string{"type": string(event.EventType)})
	if err != nil {
		logger.Error("failed to publish audit event", "type", event.EventType, "event_id", event.ID, "error", err)
	}
}
