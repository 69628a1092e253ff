package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	gateway "github.com/nimasrn/sms-verify/internal/gateways"
	"github.com/nimasrn/sms-verify/internal/model"
	"github.com/nimasrn/sms-verify/internal/payment"
	"github.com/nimasrn/sms-verify/internal/processor"
	"github.com/nimasrn/sms-verify/internal/repository"
	"github.com/nimasrn/sms-verify/pkg/pg"
	"github.com/nimasrn/sms-verify/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testPaystackSecret = "sk_test_secret"

type MockUpstream struct {
	mock.Mock
}

func (m *MockUpstream) HasServer(server model.Server) bool {
	return server.Valid()
}

func (m *MockUpstream) AcquireNumber(ctx context.Context, server model.Server, req gateway.AcquireRequest) (*gateway.AcquireResult, error) {
	args := m.Called(ctx, server, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.AcquireResult), args.Error(1)
}

func (m *MockUpstream) PollDelivery(ctx context.Context, server model.Server, requestID string) (*gateway.PollResult, error) {
	args := m.Called(ctx, server, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.PollResult), args.Error(1)
}

func (m *MockUpstream) ReleaseNumber(ctx context.Context, server model.Server, requestID string) error {
	args := m.Called(ctx, server, requestID)
	return args.Error(0)
}

func (m *MockUpstream) ListServices(ctx context.Context, server model.Server) ([]gateway.UpstreamService, error) {
	args := m.Called(ctx, server)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]gateway.UpstreamService), args.Error(1)
}

// failingUsers rejects every balance change, for the compensation paths.
type failingUsers struct {
	*repository.UserRepository
	err error
}

func (f *failingUsers) AdjustBalance(context.Context, string, int64, *int64) (int64, error) {
	return 0, f.err
}

type testEnv struct {
	db           *pg.DB
	mr           *miniredis.Miniredis
	redis        redis.RedisAdapter
	users        *repository.UserRepository
	transactions *repository.TransactionRepository
	services     *repository.ServiceRepository
	sessions     *repository.SessionRepository
	events       *repository.EventRepository
	settingsRepo *repository.SettingRepository
	upstream     *MockUpstream

	locker      *RedisLocker
	idempotency *processor.IdempotencyService
	audit       *RepositoryAuditor
	ledger      *LedgerService
	catalog     *CatalogService
	settings    *SettingsService
	number      *NumberService
	delivery    *DeliveryService
	payment     *PaymentService
	admin       *AdminService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	gdb, err := repository.OpenTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	db := pg.New(gdb, gdb)

	mr := miniredis.RunT(t)
	adapter, err := redis.NewRedisAdapter(t.Name()+"-"+mr.Addr(), "test:", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	e := &testEnv{
		db:           db,
		mr:           mr,
		redis:        adapter,
		users:        repository.NewUserRepository(db),
		transactions: repository.NewTransactionRepository(db),
		services:     repository.NewServiceRepository(db),
		sessions:     repository.NewSessionRepository(db),
		events:       repository.NewEventRepository(db),
		settingsRepo: repository.NewSettingRepository(db),
		upstream:     new(MockUpstream),
	}

	e.locker = NewRedisLocker(adapter.Client(), adapter.Prefix())
	e.idempotency = processor.NewIdempotencyService(adapter, processor.PaymentIdempotencyConfig())
	e.audit = NewRepositoryAuditor(e.events)
	e.ledger = NewLedgerService(db, e.users, e.transactions)
	e.catalog = NewCatalogService(e.services, e.upstream, decimal.RequireFromString("1.5"))
	e.settings = NewSettingsService(e.settingsRepo, adapter, time.Minute)
	e.number = NewNumberService(db, e.users, e.sessions, e.catalog, e.ledger, e.upstream, e.audit, NumberConfig{Country: "2"})
	e.delivery = NewDeliveryService(db, e.sessions, e.services, e.ledger, e.settings, e.upstream, e.locker, e.audit, DeliveryConfig{MaxRetries: 3})
	e.payment = NewPaymentService(
		payment.NewRegistry(payment.PaystackVerifier{Secret: testPaystackSecret}, payment.FlutterwaveVerifier{}),
		e.users, e.transactions, e.ledger, e.idempotency, e.audit,
		PaymentConfig{MinorPerUnit: 100, CreditsPerUnit: 2},
	)
	e.admin = NewAdminService(e.users, e.ledger, e.catalog, e.settings, e.audit)
	return e
}

func (e *testEnv) createUser(t *testing.T, email string, balance int64) *model.User {
	t.Helper()
	u, err := e.users.Create(context.Background(), &model.User{Email: email, Balance: balance, Status: model.UserStatusActive})
	require.NoError(t, err)
	return u
}

func (e *testEnv) createService(t *testing.T, code string, price int64, available bool) *model.Service {
	t.Helper()
	svc, err := e.services.Create(context.Background(), &model.Service{
		Code:           code,
		Name:           code + " service",
		PricePerUse:    price,
		AssignedServer: model.ServerOne,
		Available:      available,
	})
	require.NoError(t, err)
	return svc
}

func (e *testEnv) createSession(t *testing.T, user *model.User, svc *model.Service, retries int, expiresAt time.Time) *model.Session {
	t.Helper()
	phone := "+15550001111"
	s, err := e.sessions.Create(context.Background(), &model.Session{
		UserID:         user.ID,
		ServiceID:      svc.ID,
		Server:         model.ServerOne,
		PhoneNumber:    &phone,
		Status:         model.SessionStatusActive,
		DeliveryStatus: model.DeliveryStatusPending,
		RequestID:      "req-" + user.ID[:8],
		RetryCount:     retries,
		ChargedCredits: svc.PricePerUse,
		ExpiresAt:      expiresAt.UTC(),
	})
	require.NoError(t, err)
	return s
}

func (e *testEnv) balance(t *testing.T, userID string) int64 {
	t.Helper()
	b, err := e.users.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	return b
}

func (e *testEnv) enableRefunds(t *testing.T, on bool) {
	t.Helper()
	value := "false"
	if on {
		value = "true"
	}
	require.NoError(t, e.settings.Update(context.Background(), []model.Setting{{
		Key:   model.SettingEnableRefunds,
		Value: value,
		Type:  model.SettingTypeBoolean,
	}}))
}

func (e *testEnv) countSessions(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Read(context.Background()).Model(&repository.SessionEntity{}).Count(&n).Error)
	return n
}

func (e *testEnv) eventsOf(t *testing.T, userID string, eventType model.EventType) []*model.Event {
	t.Helper()
	events, err := e.events.ListByUser(context.Background(), userID, &eventType)
	require.NoError(t, err)
	return events
}

// completedSum adds up the completed ledger rows of a user.
func (e *testEnv) completedSum(t *testing.T, userID string) int64 {
	t.Helper()
	status := model.TransactionStatusCompleted
	txns, err := e.transactions.List(context.Background(), repository.TransactionFilter{UserID: userID, Status: &status, Limit: 1000})
	require.NoError(t, err)
	var sum int64
	for _, tx := range txns {
		sum += tx.Amount
	}
	return sum
}

func userAuth(u *model.User) model.AuthContext {
	return model.AuthContext{UserID: u.ID}
}

var errBoom = errors.New("boom")

func repositoryFilter(userID string, status *model.TransactionStatus) repository.TransactionFilter {
	return repository.TransactionFilter{UserID: userID, Status: status, Limit: 100}
}
