package config

const (
	EnvPrefix = "VISITREWARDS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv      = "VISITREWARDS_APP_ENV"
	EnvPort        = "VISITREWARDS_APP_PORT"
	EnvDBDSN       = "VISITREWARDS_DB_DSN"
	EnvDBHost      = "VISITREWARDS_DB_HOST"
	EnvDBUser      = "VISITREWARDS_DB_USER"
	EnvDBName      = "VISITREWARDS_DB_NAME"
	EnvRedisURL    = "VISITREWARDS_REDIS_URL"
	EnvJWTSecret   = "VISITREWARDS_JWT_SECRET"
	EnvJWTIssuer   = "VISITREWARDS_JWT_ISSUER"
	EnvUseSQLite   = "VISITREWARDS_USE_SQLITE"
	EnvMaxRetries  = "VISITREWARDS_LEDGER_MAX_RETRIES"
	EnvTokenWindow = "VISITREWARDS_REDEMPTION_TOKEN_RETENTION"

	defaultSQLiteDSN = "file:visitrewards.db?_busy_timeout=5000"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)
