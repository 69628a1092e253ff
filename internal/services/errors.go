package services

import (
	"errors"

	"github.com/nimasrn/sms-verify/internal/repository"
)

var (
	ErrUserNotFound        = repository.ErrUserNotFound
	ErrInsufficientBalance = repository.ErrInsufficientBalance
	ErrSessionNotFound     = repository.ErrSessionNotFound

	ErrServiceUnavailable  = errors.New("service unavailable")
	ErrUserSuspended       = errors.New("user account is suspended")
	ErrBalanceUpdateFailed = errors.New("balance update failed")
	ErrUnauthenticated     = errors.New("authentication required")
	ErrForbidden           = errors.New("admin access required")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidServer       = errors.New("invalid server")
	ErrInvalidInput        = errors.New("invalid input")
	ErrLockBusy            = errors.New("resource is locked by another request")
)
