package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nimasrn/sms-verify/internal/model"
	"github.com/nimasrn/sms-verify/internal/queue"
	"github.com/nimasrn/sms-verify/pkg/logger"
	"github.com/nimasrn/sms-verify/pkg/prom"
)

type EventStore interface {
	Create(ctx context.Context, event *model.Event) (*model.Event, error)
}

var ErrInvalidEvent = errors.New("invalid audit event")

// AuditEventProcessor persists audit events published to the events stream.
type AuditEventProcessor struct {
	events      EventStore
	idempotency *IdempotencyService
	metrics     *ServiceMetrics
}

func NewAuditEventProcessor(events EventStore, idempotency *IdempotencyService) *AuditEventProcessor {
	return &AuditEventProcessor{
		events:      events,
		idempotency: idempotency,
	}
}

// Observe attaches counters for dropped, duplicate and persisted events.
func (p *AuditEventProcessor) Observe(m *ServiceMetrics) { p.metrics = m }

func (p *AuditEventProcessor) GetType() string {
	return "audit"
}

func (p *AuditEventProcessor) Process(ctx context.Context, msg *queue.Message) error {
	var event model.Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		// a malformed payload never becomes valid, let it go instead of cycling to the DLQ
		logger.Error("dropping undecodable audit event", "id", msg.ID, "error", err)
		p.dropped()
		return nil
	}
	if event.ID == "" || event.EventType == "" {
		logger.Error("dropping audit event without id or type", "id", msg.ID)
		p.dropped()
		return nil
	}

	pc, err := p.idempotency.AcquireProcessingLock(ctx, "event:"+event.ID)
	if err != nil {
		if errors.Is(err, ErrAlreadyProcessed) {
			logger.Debug("audit event already persisted", "event_id", event.ID)
			if p.metrics != nil {
				p.metrics.RecordDuplicate()
			}
			return nil
		}
		return fmt.Errorf("acquire lock for event %s: %w", event.ID, err)
	}
	defer p.idempotency.ReleaseLock(context.WithoutCancel(ctx), pc)

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	if _, err := p.events.Create(ctx, &event); err != nil {
		_ = p.idempotency.MarkFailure(ctx, pc, err)
		return fmt.Errorf("persist event %s: %w", event.ID, err)
	}

	if err := p.idempotency.MarkSuccess(ctx, pc); err != nil {
		logger.Warn("event persisted but processed marker not set", "event_id", event.ID, "error", err)
	}
	prom.IncEventPersisted(string(event.EventType))
	if p.metrics != nil {
		p.metrics.RecordPersisted(string(event.EventType))
	}
	return nil
}

func (p *AuditEventProcessor) dropped() {
	if p.metrics != nil {
		p.metrics.RecordDropped()
	}
}
