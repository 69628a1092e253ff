// Package bootstrap builds the dependency graph shared by the binaries.
package bootstrap

import (
	"context"
	"time"

	"github.com/nimasrn/sms-verify/internal/config"
	gateway "github.com/nimasrn/sms-verify/internal/gateways"
	"github.com/nimasrn/sms-verify/internal/model"
	"github.com/nimasrn/sms-verify/internal/payment"
	"github.com/nimasrn/sms-verify/internal/processor"
	"github.com/nimasrn/sms-verify/internal/queue"
	"github.com/nimasrn/sms-verify/internal/repository"
	"github.com/nimasrn/sms-verify/internal/services"
	"github.com/nimasrn/sms-verify/pkg/pg"
	"github.com/nimasrn/sms-verify/pkg/redis"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

func WriteConfig(c *config.Config) pg.Config {
	return pg.Config{
		User:     c.PostgresWriteUser,
		Host:     c.PostgresWriteHost,
		Port:     c.PostgresWritePort,
		Password: c.PostgresWritePassword,
		Database: c.PostgresWriteDatabase,
	}
}

func ReadConfig(c *config.Config) pg.Config {
	return pg.Config{
		User:     c.PostgresReadUser,
		Host:     c.PostgresReadHost,
		Port:     c.PostgresReadPort,
		Password: c.PostgresReadPassword,
		Database: c.PostgresReadDatabase,
	}
}

func Postgres(c *config.Config) (*pg.DB, error) {
	return pg.CreateReadWrite(ReadConfig(c), WriteConfig(c), c.AppEnv == "dev")
}

func Redis(c *config.Config) (redis.RedisAdapter, error) {
	return redis.NewRedisAdapter("default", c.RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{c.RedisAddr},
		ClientName: c.AppName,
		DB:         c.RedisDatabase,
		Username:   c.RedisUsername,
		Password:   c.RedisPassword,
	})
}

func QueueConfig(c *config.Config) queue.QueueConfig {
	return queue.QueueConfig{
		Name:              c.QueueName,
		ConsumerGroup:     c.QueueConsumerGroup,
		ConsumerName:      c.QueueConsumerName,
		MaxRetries:        c.QueueMaxRetries,
		VisibilityTimeout: c.QueueVisibilityTimeout,
		PollInterval:      c.QueuePollInterval,
		BatchSize:         c.QueueBatchSize,
		MaxLen:            c.QueueMaxLen,
		EnableDLQ:         c.QueueEnableDLQ,
	}
}

// Upstream returns a client for every server that has a URL configured.
func Upstream(c *config.Config) (*gateway.Client, error) {
	var servers []gateway.ServerConfig
	if c.UpstreamServer1Url != "" {
		servers = append(servers, gateway.ServerConfig{Server: model.ServerOne, URL: c.UpstreamServer1Url, Token: c.UpstreamServer1Token})
	}
	if c.UpstreamServer2Url != "" {
		servers = append(servers, gateway.ServerConfig{Server: model.ServerTwo, URL: c.UpstreamServer2Url, Token: c.UpstreamServer2Token})
	}
	return gateway.NewClient(&gateway.Config{
		Servers:                 servers,
		Country:                 c.UpstreamCountryID,
		PhoneRegion:             c.UpstreamPhoneRegion,
		Timeout:                 c.UpstreamTimeout,
		MaxRetries:              2,
		RetryDelay:              200 * time.Millisecond,
		MaxConns:                512,
		ReadBufferSize:          1024 * 4,
		WriteBufferSize:         1024 * 4,
		CircuitBreakerThreshold: c.UpstreamBreakerFailure,
		CircuitBreakerTimeout:   c.UpstreamBreakerTimeout,
		EvaluateInterval:        30 * time.Second,
	})
}

// Services is every domain service wired against the shared stores.
type Services struct {
	Audit    services.Auditor
	Ledger   *services.LedgerService
	Catalog  *services.CatalogService
	Settings *services.SettingsService
	Numbers  *services.NumberService
	Delivery *services.DeliveryService
	Payments *services.PaymentService
	Admin    *services.AdminService
}

// Options controls how events leave the request path. With UseQueue set they
// are published to the audit stream and persisted by the worker.
type Options struct {
	UseQueue bool
}

func NewServices(c *config.Config, db *pg.DB, rds redis.RedisAdapter, upstream services.UpstreamClient, opts Options) (*Services, error) {
	markup, err := decimal.NewFromString(c.CatalogPriceMarkup)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid CATALOG_PRICE_MARKUP %q", c.CatalogPriceMarkup)
	}

	users := repository.NewUserRepository(db)
	transactions := repository.NewTransactionRepository(db)
	sessions := repository.NewSessionRepository(db)
	catalogRepo := repository.NewServiceRepository(db)
	settingsRepo := repository.NewSettingRepository(db)
	events := repository.NewEventRepository(db)

	var audit services.Auditor = services.NewRepositoryAuditor(events)
	if opts.UseQueue {
		q, err := queue.NewQueue(rds, QueueConfig(c))
		if err != nil {
			return nil, errors.Wrap(err, "failed creating audit queue")
		}
		audit = services.NewQueueAuditor(q)
	}

	idempotency := processor.NewIdempotencyService(rds, processor.PaymentIdempotencyConfig())
	registry := payment.NewRegistry(
		payment.PaystackVerifier{Secret: c.PaystackSecret},
		payment.FlutterwaveVerifier{SecretHash: c.FlutterwaveHash},
	)

	ledger := services.NewLedgerService(db, users, transactions)
	catalog := services.NewCatalogService(catalogRepo, upstream, markup)
	settings := services.NewSettingsService(settingsRepo, rds, c.SettingsCacheTTL)
	locker := services.NewRedisLocker(rds.Client(), rds.Prefix())

	return &Services{
		Audit:    audit,
		Ledger:   ledger,
		Catalog:  catalog,
		Settings: settings,
		Numbers: services.NewNumberService(db, users, sessions, catalog, ledger, upstream, audit, services.NumberConfig{
			SessionTTL: c.SessionTTL,
			Country:    c.UpstreamCountryID,
		}),
		Delivery: services.NewDeliveryService(db, sessions, catalogRepo, ledger, settings, upstream, locker, audit, services.DeliveryConfig{
			MaxRetries: c.SessionMaxRetries,
			LockTTL:    c.SessionLockTTL,
		}),
		Payments: services.NewPaymentService(registry, users, transactions, ledger, idempotency, audit, services.PaymentConfig{
			MinorPerUnit:   c.PaymentMinorPerUnit,
			CreditsPerUnit: c.PaymentCreditsPerUnit,
		}),
		Admin: services.NewAdminService(users, ledger, catalog, settings, audit),
	}, nil
}

// Ping reports whether postgres answers.
func Ping(db *pg.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := db.Read(ctx).DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

// PingRedis reports whether redis answers.
func PingRedis(rds redis.RedisAdapter) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return rds.Client().Ping(ctx).Err()
	}
}
