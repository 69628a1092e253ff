package fixtures

import (
	"github.com/nimasrn/sms-verify/internal/model"
)

var (
	// Buyer can afford several WhatsApp numbers.
	Buyer = model.User{
		Email:   "buyer@example.com",
		Balance: 10,
		Status:  model.UserStatusActive,
	}

	// LowBalanceBuyer cannot afford a single WhatsApp number.
	LowBalanceBuyer = model.User{
		Email:   "low@example.com",
		Balance: 1,
		Status:  model.UserStatusActive,
	}

	SuspendedBuyer = model.User{
		Email:   "suspended@example.com",
		Balance: 100,
		Status:  model.UserStatusSuspended,
	}

	Admin = model.User{
		Email:   "admin@example.com",
		Status:  model.UserStatusActive,
		IsAdmin: true,
	}
)

var (
	WhatsApp = model.Service{
		Code:           "wa",
		Name:           "WhatsApp",
		PricePerUse:    2,
		AssignedServer: model.ServerOne,
		Available:      true,
	}

	Disabled = model.Service{
		Code:           "old",
		Name:           "Retired service",
		PricePerUse:    5,
		AssignedServer: model.ServerOne,
		Available:      false,
	}
)
