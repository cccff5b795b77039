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
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Ledger       LedgerConfig
	Programs     ProgramsConfig
	GiftSync     GiftSyncConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DriverSQLite
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"VISITREWARDS_APP_ENV" required:"true"`
	Port         string `envconfig:"VISITREWARDS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"VISITREWARDS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VISITREWARDS_LOG_WARN_STACK" default:"false"`
	// CORSOrigins lists browser origins allowed to call the API.
	CORSOrigins []string `envconfig:"VISITREWARDS_CORS_ALLOWED_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"VISITREWARDS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"VISITREWARDS_DB_DSN"`
	Driver string `envconfig:"VISITREWARDS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"VISITREWARDS_DB_HOST"`
	LegacyPort     int    `envconfig:"VISITREWARDS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"VISITREWARDS_DB_USER"`
	LegacyPassword string `envconfig:"VISITREWARDS_DB_PASSWORD"`
	LegacyName     string `envconfig:"VISITREWARDS_DB_NAME"`
	LegacySSLMode  string `envconfig:"VISITREWARDS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VISITREWARDS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VISITREWARDS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VISITREWARDS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VISITREWARDS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	LockTimeout     time.Duration `envconfig:"VISITREWARDS_DB_LOCK_TIMEOUT" default:"3s"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VISITREWARDS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VISITREWARDS_REDIS_ADDR"`
	Password     string        `envconfig:"VISITREWARDS_REDIS_PASSWORD"`
	DB           int           `envconfig:"VISITREWARDS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VISITREWARDS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VISITREWARDS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VISITREWARDS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VISITREWARDS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VISITREWARDS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies tokens minted by the external identity provider.
type JWTConfig struct {
	Secret   string `envconfig:"VISITREWARDS_JWT_SECRET" required:"true"`
	Issuer   string `envconfig:"VISITREWARDS_JWT_ISSUER" required:"true"`
	Audience string `envconfig:"VISITREWARDS_JWT_AUDIENCE"`
	// Leeway absorbs clock skew between scanners, the IdP and this service.
	Leeway time.Duration `envconfig:"VISITREWARDS_JWT_LEEWAY" default:"30s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"VISITREWARDS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"VISITREWARDS_AUTO_MIGRATE" default:"false"`
}

// LedgerConfig tunes the membership concurrency guard.
type LedgerConfig struct {
	MaxRetries               int           `envconfig:"VISITREWARDS_LEDGER_MAX_RETRIES" default:"3"`
	RetryBackoff             time.Duration `envconfig:"VISITREWARDS_LEDGER_RETRY_BACKOFF" default:"25ms"`
	RedemptionTokenRetention time.Duration `envconfig:"VISITREWARDS_REDEMPTION_TOKEN_RETENTION" default:"72h"`
}

type ProgramsConfig struct {
	CacheTTL time.Duration `envconfig:"VISITREWARDS_PROGRAM_CACHE_TTL" default:"30s"`
}

type GiftSyncConfig struct {
	Interval time.Duration `envconfig:"VISITREWARDS_GIFT_SYNC_INTERVAL" default:"15m"`
	// JobTimeout bounds each cron job; zero means the interval.
	JobTimeout time.Duration `envconfig:"VISITREWARDS_CRON_JOB_TIMEOUT" default:"5m"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"VISITREWARDS_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	NotificationTopic        string `envconfig:"VISITREWARDS_PUBSUB_NOTIFICATION_TOPIC" default:"vr-notification-events"`
	NotificationSubscription string `envconfig:"VISITREWARDS_PUBSUB_NOTIFICATION_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"VISITREWARDS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"VISITREWARDS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"VISITREWARDS_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"VISITREWARDS_OUTBOX_RETENTION_DAYS" default:"30"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.DSN = defaultSQLiteDSN
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
