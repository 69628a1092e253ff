package repository

import "errors"

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBalanceMismatch     = errors.New("balance changed since it was read")
	ErrConcurrentUpdate    = errors.New("concurrent update detected")
	ErrMaxRetriesExceeded  = errors.New("max retries exceeded")
	ErrDuplicateReference  = errors.New("transaction reference already exists")
	ErrDuplicateEmail      = errors.New("email already registered")
	ErrServiceNotFound     = errors.New("service not found")
	ErrDuplicateService    = errors.New("service code already exists")
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionClosed       = errors.New("session already in a terminal state")
	ErrSettingNotFound     = errors.New("setting not found")
)
