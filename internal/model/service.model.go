package model

import (
	"errors"
	"time"

	"github.com/nimasrn/sms-verify/pkg/validate"
)

// Server names an upstream provider slot.
type Server string

const (
	ServerOne Server = "server_1"
	ServerTwo Server = "server_2"
)

func (s Server) Valid() bool { return s == ServerOne || s == ServerTwo }

type Service struct {
	ID             string    `json:"id"`
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	PricePerUse    int64     `json:"price_per_use"`
	AssignedServer Server    `json:"assigned_server"`
	Available      bool      `json:"available"`
	IsGlobal       bool      `json:"is_global"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CatalogEntry is a service as reported by an upstream provider, already priced in credits.
type CatalogEntry struct {
	Code        string
	Name        string
	PricePerUse int64
	Server      Server
	Available   bool
}

// ServiceUpdate carries the admin-editable fields, nil means unchanged.
type ServiceUpdate struct {
	Name           *string `json:"name"            validate:"omitempty,min=1,max=120"`
	PricePerUse    *int64  `json:"price_per_use"   validate:"omitempty,gt=0"`
	AssignedServer *Server `json:"assigned_server" validate:"omitempty,oneof=server_1 server_2"`
	Available      *bool   `json:"available"`
	IsGlobal       *bool   `json:"is_global"`
}

func (u ServiceUpdate) Empty() bool {
	return u.Name == nil && u.PricePerUse == nil && u.AssignedServer == nil && u.Available == nil && u.IsGlobal == nil
}

func (u ServiceUpdate) Validate() error {
	if u.Empty() {
		return errors.New("no fields to update")
	}
	return validate.Struct(u)
}
