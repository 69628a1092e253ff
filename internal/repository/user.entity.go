package repository

import (
	"github.com/nimasrn/sms-verify/internal/model"
	"github.com/nimasrn/sms-verify/pkg/pg"
)

type UserEntity struct {
	pg.Model
	Email   string `gorm:"column:email;not null;uniqueIndex"`
	Balance int64  `gorm:"column:balance;not null;default:0;check:chk_users_balance,balance >= 0"`
	Status  string `gorm:"column:status;not null;default:active"`
	IsAdmin bool   `gorm:"column:is_admin;not null;default:false"`
}

func (UserEntity) TableName() string {
	return "users"
}

func toUserEntity(m *model.User) *UserEntity {
	if m == nil {
		return nil
	}
	status := m.Status
	if status == "" {
		status = model.UserStatusActive
	}
	return &UserEntity{
		Model:   pg.Model{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		Email:   m.Email,
		Balance: m.Balance,
		Status:  string(status),
		IsAdmin: m.IsAdmin,
	}
}

func toUserModel(e *UserEntity) *model.User {
	if e == nil {
		return nil
	}
	return &model.User{
		ID:        e.ID,
		Email:     e.Email,
		Balance:   e.Balance,
		Status:    model.UserStatus(e.Status),
		IsAdmin:   e.IsAdmin,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}
