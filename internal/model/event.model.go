package model

import "time"

type EventType string

const (
	EventSmsRequest       EventType = "sms_request"
	EventCreditDeduction  EventType = "credit_deduction"
	EventCreditAddition   EventType = "credit_addition"
	EventPaymentProcessed EventType = "payment_processed"
	EventUserSuspended    EventType = "user_suspended"
	EventSessionExpired   EventType = "session_expired"
	EventAdminAction      EventType = "admin_action"
	EventSmsReceived      EventType = "sms_received"
	EventSessionFailed    EventType = "session_failed"
)

// Event is an append-only audit log entry.
type Event struct {
	ID          string         `json:"id"`
	EventType   EventType      `json:"event_type"`
	UserID      *string        `json:"user_id"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
	IPAddress   *string        `json:"ip_address"`
	CreatedAt   time.Time      `json:"created_at"`
}
