package config

const (
	EnvPrefix = "PACKFINDERZ"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	MinJWTSecretLength = 32
	MinBcryptCost      = 4
	MaxBcryptCost      = 31
)

const (
	EnvAppEnv             = "PACKFINDERZ_APP_ENV"
	EnvPort               = "PACKFINDERZ_APP_PORT"
	EnvDBDSN              = "PACKFINDERZ_DB_DSN"
	EnvDBHost             = "PACKFINDERZ_DB_HOST"
	EnvDBUser             = "PACKFINDERZ_DB_USER"
	EnvDBName             = "PACKFINDERZ_DB_NAME"
	EnvRedisURL           = "PACKFINDERZ_REDIS_URL"
	EnvMongoURI           = "PACKFINDERZ_MONGO_URI"
	EnvJWTSecret          = "PACKFINDERZ_JWT_SECRET"
	EnvJWTAccessLifetime  = "PACKFINDERZ_JWT_ACCESS_LIFETIME"
	EnvJWTRefreshLifetime = "PACKFINDERZ_JWT_REFRESH_LIFETIME"
	EnvBcryptCost         = "PACKFINDERZ_BCRYPT_COST"
	EnvRateLimitWindow    = "PACKFINDERZ_RATE_LIMIT_WINDOW"
	EnvRateLimitMax       = "PACKFINDERZ_RATE_LIMIT_MAX_REQUESTS"
	EnvGCPProjectID       = "PACKFINDERZ_GCP_PROJECT_ID"
)

var dbPartEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
