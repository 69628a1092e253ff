package services

import (
	"context"
	"time"

	gateway "github.com/nimasrn/sms-verify/internal/gateways"
	"github.com/nimasrn/sms-verify/internal/model"
	"github.com/nimasrn/sms-verify/internal/repository"
)

// Transactor runs fn inside one store transaction carried by ctx.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type UserStore interface {
	GetByID(ctx context.Context, userID string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetBalance(ctx context.Context, userID string) (int64, error)
	SetStatus(ctx context.Context, userID string, status model.UserStatus) (*model.User, error)
	AdjustBalance(ctx context.Context, userID string, delta int64, expected *int64) (int64, error)
}

type TransactionStore interface {
	Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	GetByReference(ctx context.Context, reference string) (*model.Transaction, error)
	List(ctx context.Context, f repository.TransactionFilter) ([]*model.Transaction, error)
}

type ServiceStore interface {
	GetByID(ctx context.Context, serviceID string) (*model.Service, error)
	Create(ctx context.Context, service *model.Service) (*model.Service, error)
	Update(ctx context.Context, serviceID string, upd model.ServiceUpdate) (*model.Service, error)
	UpsertByCode(ctx context.Context, entries []model.CatalogEntry) (int64, error)
}

type SessionStore interface {
	Create(ctx context.Context, session *model.Session) (*model.Session, error)
	GetForUser(ctx context.Context, sessionID, userID string) (*model.Session, error)
	LockForUpdate(ctx context.Context, sessionID string) (*model.Session, error)
	Transition(ctx context.Context, sessionID string, t model.SessionTransition) (*model.Session, error)
	IncrementRetry(ctx context.Context, sessionID string, limit int) (*model.Session, error)
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]*model.Session, error)
}

type SettingStore interface {
	Get(ctx context.Context, key string) (*model.Setting, error)
	List(ctx context.Context) ([]*model.Setting, error)
	Upsert(ctx context.Context, settings []model.Setting) error
}

type EventStore interface {
	Create(ctx context.Context, event *model.Event) (*model.Event, error)
}

// UpstreamClient is the part of the provider client the services use.
type UpstreamClient interface {
	HasServer(server model.Server) bool
	AcquireNumber(ctx context.Context, server model.Server, req gateway.AcquireRequest) (*gateway.AcquireResult, error)
	PollDelivery(ctx context.Context, server model.Server, requestID string) (*gateway.PollResult, error)
	ReleaseNumber(ctx context.Context, server model.Server, requestID string) error
	ListServices(ctx context.Context, server model.Server) ([]gateway.UpstreamService, error)
}
