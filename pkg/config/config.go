package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Checkout     CheckoutConfig
	Reaper       ReaperConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Square       SquareConfig
	Outbox       OutboxConfig
	AdminAuth    AdminAuthConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"DIGIMART_APP_ENV" required:"true"`
	Port         string `envconfig:"DIGIMART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"DIGIMART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DIGIMART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"DIGIMART_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"DIGIMART_DB_DSN"`
	Driver string `envconfig:"DIGIMART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"DIGIMART_DB_HOST"`
	LegacyPort     int    `envconfig:"DIGIMART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"DIGIMART_DB_USER"`
	LegacyPassword string `envconfig:"DIGIMART_DB_PASSWORD"`
	LegacyName     string `envconfig:"DIGIMART_DB_NAME"`
	LegacySSLMode  string `envconfig:"DIGIMART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DIGIMART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DIGIMART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DIGIMART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DIGIMART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DIGIMART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"DIGIMART_REDIS_ADDR"`
	Password     string        `envconfig:"DIGIMART_REDIS_PASSWORD"`
	DB           int           `envconfig:"DIGIMART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DIGIMART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DIGIMART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DIGIMART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DIGIMART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DIGIMART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// CheckoutConfig tunes the order saga.
type CheckoutConfig struct {
	// ReservationWindow is how long a pending reservation holds funds and
	// stock before the reaper may reclaim them.
	ReservationWindow time.Duration `envconfig:"DIGIMART_CHECKOUT_RESERVATION_WINDOW" default:"2m"`
	MaxItemsPerOrder  int           `envconfig:"DIGIMART_CHECKOUT_MAX_ITEMS_PER_ORDER" default:"25"`
	MaxQtyPerItem     int           `envconfig:"DIGIMART_CHECKOUT_MAX_QTY_PER_ITEM" default:"100"`
}

// ReaperConfig tunes the expiration reaper.
type ReaperConfig struct {
	Interval      time.Duration `envconfig:"DIGIMART_REAPER_INTERVAL" default:"30s"`
	BatchSize     int           `envconfig:"DIGIMART_REAPER_BATCH_SIZE" default:"100"`
	LockTTL       time.Duration `envconfig:"DIGIMART_REAPER_LOCK_TTL" default:"5m"`
	RetryAttempts int           `envconfig:"DIGIMART_REAPER_RETRY_ATTEMPTS" default:"3"`
	RetryBase     time.Duration `envconfig:"DIGIMART_REAPER_RETRY_BASE" default:"250ms"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"DIGIMART_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"DIGIMART_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"DIGIMART_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic              string `envconfig:"DIGIMART_PUBSUB_ORDERS_TOPIC" default:"dm-order-events"`
	OrdersSubscription       string `envconfig:"DIGIMART_PUBSUB_ORDERS_SUBSCRIPTION"`
	NotificationTopic        string `envconfig:"DIGIMART_PUBSUB_NOTIFICATION_TOPIC" default:"dm-notification-events"`
	NotificationSubscription string `envconfig:"DIGIMART_PUBSUB_NOTIFICATION_SUBSCRIPTION"`
}

type SquareConfig struct {
	AccessToken string `envconfig:"DIGIMART_SQUARE_ACCESS_TOKEN"`
	Env         string `envconfig:"DIGIMART_SQUARE_ENV" default:"sandbox"`
	LocationID  string `envconfig:"DIGIMART_SQUARE_LOCATION_ID"`
	Currency    string `envconfig:"DIGIMART_SQUARE_CURRENCY" default:"USD"`
}

// Environment reports the configured Square environment name.
func (s SquareConfig) Environment() string {
	return s.Env
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"DIGIMART_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"DIGIMART_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"DIGIMART_OUTBOX_MAX_ATTEMPTS" default:"10"`
	IdempotencyTTL time.Duration `envconfig:"DIGIMART_OUTBOX_IDEMPOTENCY_TTL" default:"72h"`
}

// AdminAuthConfig guards the operational surface (reaper controls).
type AdminAuthConfig struct {
	JWTSecret string `envconfig:"DIGIMART_ADMIN_JWT_SECRET"`
	Issuer    string `envconfig:"DIGIMART_ADMIN_JWT_ISSUER" default:"digimart"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"DIGIMART_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"DIGIMART_AUTO_MIGRATE" default:"false"`
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
