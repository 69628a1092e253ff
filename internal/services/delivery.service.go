package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimasrn/sms-verify/internal/model"
	"github.com/nimasrn/sms-verify/internal/repository"
	"github.com/nimasrn/sms-verify/pkg/logger"
	"github.com/nimasrn/sms-verify/pkg/prom"
)

const (
	DefaultMaxRetries = 3
	sweepBatchSize    = 200
)

type DeliveryConfig struct {
	MaxRetries int
	LockTTL    time.Duration
}

// DeliveryResult is the state of a session after a check.
type DeliveryResult struct {
	SessionID      string                 `json:"session_id"`
	Status         model.SessionStatus    `json:"status"`
	DeliveryStatus model.DeliveryStatus   `json:"delivery_status"`
	Message        string                 `json:"message"`
	SmsCode        string                 `json:"sms_code,omitempty"`
	SmsText        string                 `json:"sms_text,omitempty"`
	Messages       []model.SessionMessage `json:"messages,omitempty"`
	RetryCount     int                    `json:"retry_count"`
	RefundAmount   int64                  `json:"refund_amount,omitempty"`
}

type DeliveryService struct {
	tx       Transactor
	sessions SessionStore
	services ServiceStore
	ledger   *LedgerService
	settings *SettingsService
	upstream UpstreamClient
	locker   Locker
	audit    Auditor
	config   DeliveryConfig
	now      func() time.Time
}

func NewDeliveryService(tx Transactor, sessions SessionStore, services ServiceStore, ledger *LedgerService, settings *SettingsService, upstream UpstreamClient, locker Locker, audit Auditor, config DeliveryConfig) *DeliveryService {
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.LockTTL <= 0 {
		config.LockTTL = 15 * time.Second
	}
	return &DeliveryService{
		tx:       tx,
		sessions: sessions,
		services: services,
		ledger:   ledger,
		settings: settings,
		upstream: upstream,
		locker:   locker,
		audit:    audit,
		config:   config,
		now:      time.Now,
	}
}

// CheckDelivery polls the provider once for the caller's session and moves it
// forward. Terminal sessions are returned as stored.
func (s *DeliveryService) CheckDelivery(ctx context.Context, auth model.AuthContext, sessionID string) (*DeliveryResult, error) {
	if !auth.Authenticated() {
		return nil, ErrUnauthenticated
	}

	session, err := s.sessions.GetForUser(ctx, sessionID, auth.UserID)
	if err != nil {
		return nil, err
	}
	if session.Status.Terminal() {
		prom.IncDeliveryCheck("terminal")
		return storedResult(session), nil
	}

	if s.locker != nil {
		release, err := s.locker.Obtain(ctx, "session-check:"+session.ID, s.config.LockTTL)
		switch {
		case errors.Is(err, ErrLockBusy):
			prom.IncDeliveryCheck("busy")
			res := storedResult(session)
			res.Message = "Check already in progress"
			return res, nil
		case err != nil:
			// the row lock still serializes the transitions
			logger.Warn("session lock unavailable, continuing without it", "session_id", session.ID, "error", err)
		default:
			defer release()
		}
	}

	if session.Expired(s.now()) {
		res, err := s.expire(ctx, session)
		if err == nil {
			prom.IncDeliveryCheck("expired")
		}
		return res, err
	}

	poll, err := s.upstream.PollDelivery(ctx, session.Server, session.RequestID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// transient, counted against the retry budget like an empty poll
		logger.Warn("delivery poll failed", "session_id", session.ID, "server", session.Server, "error", err)
	}
	if err == nil && poll.Received {
		res, err := s.complete(ctx, session.ID, model.SessionMessage{
			Code:       poll.Code,
			Text:       poll.Text,
			ReceivedAt: s.now().UTC(),
		})
		if err == nil {
			prom.IncDeliveryCheck("received")
		}
		return res, err
	}

	if session.RetryCount < s.config.MaxRetries {
		updated, err := s.sessions.IncrementRetry(ctx, session.ID, s.config.MaxRetries)
		if err == nil {
			prom.IncDeliveryCheck("pending")
			res := storedResult(updated)
			res.Message = "Waiting for SMS"
			return res, nil
		}
		if !errors.Is(err, repository.ErrSessionClosed) {
			return nil, err
		}
		// closed or out of retries since it was read, fall through to the locked path
	}

	res, err := s.fail(ctx, session.ID)
	if err == nil {
		prom.IncDeliveryCheck("failed")
	}
	return res, err
}

func (s *DeliveryService) complete(ctx context.Context, sessionID string, msg model.SessionMessage) (*DeliveryResult, error) {
	var (
		updated *model.Session
		applied bool
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		cur, err := s.sessions.LockForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if cur.Status.Terminal() {
			updated = cur
			return nil
		}

		messages := append(append([]model.SessionMessage{}, cur.Messages...), msg)
		updated, err = s.sessions.Transition(ctx, sessionID, model.SessionTransition{
			Status:         model.SessionStatusCompleted,
			DeliveryStatus: model.DeliveryStatusCompleted,
			Messages:       messages,
			ReceivedAt:     &msg.ReceivedAt,
		})
		applied = err == nil
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("complete session %s: %w", sessionID, err)
	}
	if !applied {
		return storedResult(updated), nil
	}

	s.audit.Emit(ctx, newEvent(model.EventSmsReceived, updated.UserID, "SMS code received", map[string]any{
		"session_id": updated.ID,
		"sms_count":  updated.SmsCount,
	}))

	res := storedResult(updated)
	res.SmsCode = msg.Code
	res.SmsText = msg.Text
	res.Message = "SMS received"
	return res, nil
}

// fail closes a session whose retries are spent and refunds it when refunds are enabled.
func (s *DeliveryService) fail(ctx context.Context, sessionID string) (*DeliveryResult, error) {
	refunds, err := s.settings.Bool(ctx, model.SettingEnableRefunds)
	if err != nil {
		logger.Warn("could not read refund setting, not refunding", "session_id", sessionID, "error", err)
		refunds = false
	}

	var (
		updated *model.Session
		applied bool
		refund  int64
	)
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		cur, err := s.sessions.LockForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if cur.Status.Terminal() {
			updated = cur
			return nil
		}

		t := model.SessionTransition{
			Status:         model.SessionStatusFailed,
			DeliveryStatus: model.DeliveryStatusFailed,
		}
		if refunds {
			refund, err = s.refundAmount(ctx, cur)
			if err != nil {
				return err
			}
			if refund > 0 {
				t.RefundAmount = &refund
			}
		}

		updated, err = s.sessions.Transition(ctx, sessionID, t)
		if err != nil {
			return err
		}
		applied = true

		if refund > 0 {
			ref := model.SessionRefundReference(cur.ID)
			_, _, err = s.ledger.Apply(ctx, model.LedgerEntry{
				UserID:      cur.UserID,
				Delta:       refund,
				Type:        model.TransactionTypeRefund,
				Reference:   &ref,
				SessionID:   &cur.ID,
				Description: "Refund for undelivered SMS",
			})
			if err != nil {
				return fmt.Errorf("refund: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fail session %s: %w", sessionID, err)
	}
	if !applied {
		return storedResult(updated), nil
	}

	if refund > 0 {
		prom.AddRefundedCredits(string(updated.Server), refund)
	}
	s.audit.Emit(ctx, newEvent(model.EventSessionFailed, updated.UserID, "No SMS received after maximum retries", map[string]any{
		"session_id":    updated.ID,
		"retry_count":   updated.RetryCount,
		"refund_amount": refund,
	}))

	res := storedResult(updated)
	res.Message = "No SMS received after maximum retries"
	return res, nil
}

func (s *DeliveryService) refundAmount(ctx context.Context, session *model.Session) (int64, error) {
	if session.ChargedCredits > 0 {
		return session.ChargedCredits, nil
	}
	svc, err := s.services.GetByID(ctx, session.ServiceID)
	if err != nil {
		if errors.Is(err, repository.ErrServiceNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return svc.PricePerUse, nil
}

func (s *DeliveryService) expire(ctx context.Context, session *model.Session) (*DeliveryResult, error) {
	updated, err := s.sessions.Transition(ctx, session.ID, model.SessionTransition{
		Status:         model.SessionStatusExpired,
		DeliveryStatus: model.DeliveryStatusExpired,
	})
	if err != nil {
		if errors.Is(err, repository.ErrSessionClosed) {
			cur, err := s.sessions.GetForUser(ctx, session.ID, session.UserID)
			if err != nil {
				return nil, err
			}
			return storedResult(cur), nil
		}
		return nil, err
	}

	s.audit.Emit(ctx, newEvent(model.EventSessionExpired, updated.UserID, "Session expired", map[string]any{
		"session_id": updated.ID,
	}))

	res := storedResult(updated)
	res.Message = "Session expired"
	return res, nil
}

// ExpireStale closes every open session past its deadline. Expiry is never refunded.
func (s *DeliveryService) ExpireStale(ctx context.Context) (int, error) {
	expired := 0
	for {
		overdue, err := s.sessions.ListOverdue(ctx, s.now().UTC(), sweepBatchSize)
		if err != nil {
			return expired, err
		}
		progressed := false
		for _, session := range overdue {
			if _, err := s.expire(ctx, session); err != nil {
				logger.Error("failed to expire session", "session_id", session.ID, "error", err)
				continue
			}
			expired++
			progressed = true
		}
		if len(overdue) < sweepBatchSize || !progressed {
			break
		}
	}
	if expired > 0 {
		logger.Info("expired stale sessions", "count", expired)
	}
	return expired, nil
}

func storedResult(s *model.Session) *DeliveryResult {
	res := &DeliveryResult{
		SessionID:      s.ID,
		Status:         s.Status,
		DeliveryStatus: s.DeliveryStatus,
		RetryCount:     s.RetryCount,
		RefundAmount:   s.RefundAmount,
	}
	if len(s.Messages) > 0 {
		res.Messages = s.Messages
		last := s.Messages[len(s.Messages)-1]
		res.SmsCode = last.Code
		res.SmsText = last.Text
	}
	switch s.Status {
	case model.SessionStatusCompleted:
		res.Message = "SMS received"
	case model.SessionStatusFailed:
		res.Message = "No SMS received after maximum retries"
	case model.SessionStatusExpired:
		res.Message = "Session expired"
	default:
		res.Message = "Waiting for SMS"
	}
	return res
}
