package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the shared prefix for all environment variables.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Orders        OrdersConfig
	Stripe        StripeConfig
	PayPal        PayPalConfig
	Mail          MailConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	BigQuery      BigQueryConfig
	Outbox        OutboxConfig
	Cron          CronConfig
	Traffic       TrafficConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"KZARRE_APP_ENV" required:"true"`
	Port         string `envconfig:"KZARRE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"KZARRE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"KZARRE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"KZARRE_DB_DSN"`
	Driver string `envconfig:"KZARRE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"KZARRE_DB_HOST"`
	Port     int    `envconfig:"KZARRE_DB_PORT" default:"5432"`
	User     string `envconfig:"KZARRE_DB_USER"`
	Password string `envconfig:"KZARRE_DB_PASSWORD"`
	Name     string `envconfig:"KZARRE_DB_NAME"`
	SSLMode  string `envconfig:"KZARRE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"KZARRE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"KZARRE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"KZARRE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"KZARRE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"KZARRE_REDIS_URL"`
	Address      string        `envconfig:"KZARRE_REDIS_ADDR"`
	Password     string        `envconfig:"KZARRE_REDIS_PASSWORD"`
	DB           int           `envconfig:"KZARRE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"KZARRE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"KZARRE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"KZARRE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"KZARRE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"KZARRE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"KZARRE_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"KZARRE_JWT_ISSUER" default:"kzarre"`
	ExpirationMinutes      int    `envconfig:"KZARRE_JWT_EXPIRATION_MINUTES" default:"60"`
	RefreshTokenTTLMinutes int    `envconfig:"KZARRE_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"KZARRE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"KZARRE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"KZARRE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"KZARRE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"KZARRE_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"KZARRE_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit int           `envconfig:"KZARRE_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit    int           `envconfig:"KZARRE_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"KZARRE_AUTO_MIGRATE" default:"false"`
}

// OrdersConfig carries the order-reconciliation policy knobs.
type OrdersConfig struct {
	// DeliveryFeeCents is the flat fee added to every checkout total.
	DeliveryFeeCents int `envconfig:"KZARRE_ORDERS_DELIVERY_FEE_CENTS" default:"1500"`
	// EnforceTransitions rejects admin status patches that are not legal
	// state-machine moves. Off means full admin override.
	EnforceTransitions bool `envconfig:"KZARRE_ORDERS_ENFORCE_TRANSITIONS" default:"true"`
	// RestoreStockOnRefund re-increments stock when a refund lands. Off by
	// default: a refund is not a return.
	RestoreStockOnRefund bool          `envconfig:"KZARRE_ORDERS_RESTORE_STOCK_ON_REFUND" default:"false"`
	PendingTTL           time.Duration `envconfig:"KZARRE_ORDERS_PENDING_TTL" default:"72h"`
	WebhookEventTTL      time.Duration `envconfig:"KZARRE_ORDERS_WEBHOOK_EVENT_TTL" default:"720h"`
}

type StripeConfig struct {
	APIKey        string `envconfig:"KZARRE_STRIPE_API_KEY"`
	WebhookSecret string `envconfig:"KZARRE_STRIPE_WEBHOOK_SECRET"`
	Env           string `envconfig:"KZARRE_STRIPE_ENV" default:"test"`
	SuccessURL    string `envconfig:"KZARRE_STRIPE_SUCCESS_URL" default:"https://kzarre.com/checkout/success"`
	CancelURL     string `envconfig:"KZARRE_STRIPE_CANCEL_URL" default:"https://kzarre.com/checkout/cancel"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type PayPalConfig struct {
	ClientID string `envconfig:"KZARRE_PAYPAL_CLIENT_ID"`
	Secret   string `envconfig:"KZARRE_PAYPAL_CLIENT_SECRET"`
	Mode     string `envconfig:"KZARRE_PAYPAL_MODE" default:"sandbox"`
}

type MailConfig struct {
	SMTPHost string `envconfig:"KZARRE_SMTP_HOST"`
	SMTPPort int    `envconfig:"KZARRE_SMTP_PORT" default:"587"`
	SMTPUser string `envconfig:"KZARRE_SMTP_USER"`
	SMTPPass string `envconfig:"KZARRE_SMTP_PASS"`
	From     string `envconfig:"KZARRE_MAIL_FROM" default:"noreply@kzarre.com"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"KZARRE_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"KZARRE_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	OrdersTopic    string `envconfig:"KZARRE_PUBSUB_ORDERS_TOPIC" default:"kz-order-events"`
	MarketingTopic string `envconfig:"KZARRE_PUBSUB_MARKETING_TOPIC" default:"kz-marketing-events"`
}

type BigQueryConfig struct {
	Dataset      string `envconfig:"KZARRE_BIGQUERY_DATASET" default:"kzarre"`
	TrafficTable string `envconfig:"KZARRE_BIGQUERY_TRAFFIC_TABLE" default:"traffic_events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"KZARRE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"KZARRE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"KZARRE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"KZARRE_CRON_INTERVAL" default:"1m"`
	LockTTL  time.Duration `envconfig:"KZARRE_CRON_LOCK_TTL" default:"5m"`
}

type TrafficConfig struct {
	RetentionDays int `envconfig:"KZARRE_TRAFFIC_RETENTION_DAYS" default:"180"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	for env, value := range map[string]string{
		"KZARRE_DB_HOST": db.Host,
		"KZARRE_DB_USER": db.User,
		"KZARRE_DB_NAME": db.Name,
	} {
		if value == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either KZARRE_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}
	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
