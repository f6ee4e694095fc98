package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/text/currency"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Stripe       StripeConfig
	Checkout     CheckoutConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Stripe.validateCurrency(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PVB_APP_ENV" required:"true"`
	Port         string `envconfig:"PVB_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PVB_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PVB_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PVB_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PVB_DB_DSN"`
	Driver string `envconfig:"PVB_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PVB_DB_HOST"`
	LegacyPort     int    `envconfig:"PVB_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PVB_DB_USER"`
	LegacyPassword string `envconfig:"PVB_DB_PASSWORD"`
	LegacyName     string `envconfig:"PVB_DB_NAME"`
	LegacySSLMode  string `envconfig:"PVB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PVB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PVB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PVB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PVB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PVB_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PVB_REDIS_ADDR"`
	Password     string        `envconfig:"PVB_REDIS_PASSWORD"`
	DB           int           `envconfig:"PVB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PVB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PVB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PVB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PVB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PVB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"PVB_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PVB_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"PVB_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PVB_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PVB_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey         string        `envconfig:"PVB_STRIPE_API_KEY"`
	Secret         string        `envconfig:"PVB_STRIPE_SECRET"`
	Env            string        `envconfig:"PVB_STRIPE_ENV" default:"test"`
	Currency       string        `envconfig:"PVB_STRIPE_CURRENCY" default:"inr"`
	FrontendURL    string        `envconfig:"PVB_FRONTEND_URL" default:"http://localhost:3000"`
	RequestTimeout time.Duration `envconfig:"PVB_STRIPE_REQUEST_TIMEOUT" default:"15s"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// CurrencyCode returns the lower-case ISO 4217 code Stripe expects.
func (s StripeConfig) CurrencyCode() string {
	code := strings.TrimSpace(strings.ToLower(s.Currency))
	if code == "" {
		return "inr"
	}
	return code
}

func (s StripeConfig) validateCurrency() error {
	if _, err := currency.ParseISO(s.CurrencyCode()); err != nil {
		return fmt.Errorf("invalid %s %q: %w", EnvStripeCurrency, s.Currency, err)
	}
	return nil
}

type CheckoutConfig struct {
	RateLimitWindow time.Duration `envconfig:"PVB_CHECKOUT_RATE_LIMIT_WINDOW" default:"1m"`
	RateLimit       int           `envconfig:"PVB_CHECKOUT_RATE_LIMIT" default:"20"`
	WebhookEventTTL time.Duration `envconfig:"PVB_CHECKOUT_WEBHOOK_EVENT_TTL" default:"720h"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"PVB_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"PVB_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"PVB_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"PVB_OUTBOX_RETENTION_DAYS" default:"30"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"PVB_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"PVB_CRON_LOCK_TTL" default:"55m"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"PVB_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"PVB_PUBSUB_ORDERS_TOPIC" default:"pvb-order-events"`
	OrdersSubscription string `envconfig:"PVB_PUBSUB_ORDERS_SUBSCRIPTION"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
