package model

import "time"

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)

func (s UserStatus) Valid() bool {
	return s == UserStatusActive || s == UserStatusSuspended
}

type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Balance   int64      `json:"balance"`
	Status    UserStatus `json:"status"`
	IsAdmin   bool       `json:"is_admin"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (u *User) Suspended() bool { return u.Status == UserStatusSuspended }
