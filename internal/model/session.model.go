package model

import "time"

type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "pending"
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusFailed    SessionStatus = "failed"
	SessionStatusExpired   SessionStatus = "expired"
)

// Terminal reports whether no further transition is allowed from s.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusFailed || s == SessionStatusExpired
}

type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusCompleted DeliveryStatus = "completed"
	DeliveryStatusFailed    DeliveryStatus = "failed"
	DeliveryStatusExpired   DeliveryStatus = "expired"
)

// OpenSessionStatuses are the statuses a guarded transition may start from.
var OpenSessionStatuses = []SessionStatus{SessionStatusPending, SessionStatusActive}

type SessionMessage struct {
	Code       string    `json:"code"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}

type Session struct {
	ID             string           `json:"id"`
	UserID         string           `json:"user_id"`
	ServiceID      string           `json:"service_id"`
	Server         Server           `json:"server"`
	PhoneNumber    *string          `json:"phone_number"`
	Status         SessionStatus    `json:"status"`
	DeliveryStatus DeliveryStatus   `json:"delivery_status"`
	RequestID      string           `json:"request_id"`
	Messages       []SessionMessage `json:"messages"`
	SmsCount       int              `json:"sms_count"`
	RetryCount     int              `json:"retry_count"`
	ChargedCredits int64            `json:"charged_credits"`
	RefundAmount   int64            `json:"refund_amount"`
	ReceivedAt     *time.Time       `json:"received_at"`
	ExpiresAt      time.Time        `json:"expires_at"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// SessionTransition is a guarded update applied to a non-terminal session.
type SessionTransition struct {
	Status         SessionStatus
	DeliveryStatus DeliveryStatus
	Messages       []SessionMessage
	RetryCount     *int
	RefundAmount   *int64
	ReceivedAt     *time.Time
}
