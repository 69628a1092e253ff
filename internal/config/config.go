package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/nimasrn/sms-verify/pkg/logger"
	"github.com/pkg/errors"
)

var config *Config

// Config holds every value the binaries read from the environment.
// Nothing else in the module should look at os.Getenv directly.
type Config struct {
	AppEnv  string `env:"APP_ENV,default=dev"`
	AppName string `env:"APP_NAME,default=sms_verify"`

	HttpListenAddr      string        `env:"HTTP_LISTEN_ADDR,default=:8080"`
	HttpRequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT,default=20s"`
	HttpCorsAllowOrigin string        `env:"HTTP_CORS_ALLOW_ORIGIN,default=*"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT,default=5432"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT,default=5432"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	RedisAddr               string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE,default=0"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX,default=smsv:"`

	PromNamespace   string `env:"PROM_NAMESPACE,default=sms_verify"`
	PromListenAddr  string `env:"PROM_LISTEN_ADDR,default=:9100"`
	PromMetricsPath string `env:"PROM_METRICS_PATH,default=/metrics"`

	QueueName              string        `env:"QUEUE_NAME,default=audit:events"`
	QueueConsumerGroup     string        `env:"QUEUE_CONSUMER_GROUP,default=audit-writers"`
	QueueConsumerName      string        `env:"QUEUE_CONSUMER_NAME,default=worker"`
	QueueConsumers         int           `env:"QUEUE_CONSUMERS,default=2"`
	QueueWorkers           int           `env:"QUEUE_WORKERS,default=8"`
	QueueMaxRetries        int           `env:"QUEUE_MAX_RETRIES,default=5"`
	QueueVisibilityTimeout time.Duration `env:"QUEUE_VISIBILITY_TIMEOUT,default=30s"`
	QueuePollInterval      time.Duration `env:"QUEUE_POLL_INTERVAL,default=500ms"`
	QueueBatchSize         int64         `env:"QUEUE_BATCH_SIZE,default=50"`
	QueueMaxLen            int64         `env:"QUEUE_MAX_LEN,default=100000"`
	QueueEnableDLQ         bool          `env:"QUEUE_ENABLE_DLQ,default=true"`

	UpstreamServer1Url     string        `env:"UPSTREAM_SERVER_1_URL,default=https://api.sms-man.com"`
	UpstreamServer1Token   string        `env:"UPSTREAM_SERVER_1_TOKEN"`
	UpstreamServer2Url     string        `env:"UPSTREAM_SERVER_2_URL"`
	UpstreamServer2Token   string        `env:"UPSTREAM_SERVER_2_TOKEN"`
	UpstreamCountryID      string        `env:"UPSTREAM_COUNTRY_ID,default=2"`
	UpstreamPhoneRegion    string        `env:"UPSTREAM_PHONE_REGION,default=US"`
	UpstreamTimeout        time.Duration `env:"UPSTREAM_TIMEOUT,default=10s"`
	UpstreamBreakerFailure int           `env:"UPSTREAM_BREAKER_FAILURES,default=5"`
	UpstreamBreakerTimeout time.Duration `env:"UPSTREAM_BREAKER_TIMEOUT,default=30s"`

	SessionTTL        time.Duration `env:"SESSION_TTL,default=30m"`
	SessionMaxRetries int           `env:"SESSION_MAX_RETRIES,default=3"`
	SessionLockTTL    time.Duration `env:"SESSION_LOCK_TTL,default=15s"`

	PaymentMinorPerUnit   int64  `env:"PAYMENT_MINOR_PER_UNIT,default=100"`
	PaymentCreditsPerUnit int64  `env:"PAYMENT_CREDITS_PER_UNIT,default=2"`
	PaystackSecret        string `env:"PAYSTACK_SECRET"`
	FlutterwaveHash       string `env:"FLUTTERWAVE_SECRET_HASH"`

	JwtSecret string        `env:"JWT_SECRET"`
	JwtTTL    time.Duration `env:"JWT_TTL,default=24h"`

	CatalogSyncInterval time.Duration `env:"CATALOG_SYNC_INTERVAL,default=6h"`
	CatalogPriceMarkup  string        `env:"CATALOG_PRICE_MARKUP,default=1.5"`
	ExpirySweepInterval time.Duration `env:"EXPIRY_SWEEP_INTERVAL,default=1m"`
	SettingsCacheTTL    time.Duration `env:"SETTINGS_CACHE_TTL,default=1m"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return errors.Wrapf(err, "failed to load configuration file %s", path)
		}
	}

	if _, err := env.UnmarshalFromEnviron(c); err != nil {
		return errors.Wrap(err, "failed to map env variables to Config")
	}
	if c.JwtSecret == "" && c.AppEnv != "dev" {
		return errors.New("JWT_SECRET is required outside dev")
	}

	config = c
	return nil
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}
