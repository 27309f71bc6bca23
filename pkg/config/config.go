package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	Mongo         MongoConfig
	JWT           JWTConfig
	Password      PasswordConfig
	RateLimit     RateLimitConfig
	AuthRateLimit AuthRateLimitConfig
	PubSub        PubSubConfig
	CORS          CORSConfig
}

// Load reads the environment into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field invariants that envconfig tags cannot express.
func (c *Config) Validate() error {
	var err error
	err = multierr.Append(err, c.JWT.validate())
	err = multierr.Append(err, c.Password.validate())
	err = multierr.Append(err, c.RateLimit.validate())
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

type AppConfig struct {
	Env           string        `envconfig:"PACKFINDERZ_APP_ENV" required:"true"`
	Port          string        `envconfig:"PACKFINDERZ_APP_PORT" default:"8080"`
	LogLevel      string        `envconfig:"PACKFINDERZ_LOG_LEVEL" default:"info"`
	LogWarnStack  bool          `envconfig:"PACKFINDERZ_LOG_WARN_STACK" default:"false"`
	ShutdownGrace time.Duration `envconfig:"PACKFINDERZ_SHUTDOWN_GRACE" default:"10s"`
	AutoMigrate   bool          `envconfig:"PACKFINDERZ_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"PACKFINDERZ_DB_DSN"`

	Host     string `envconfig:"PACKFINDERZ_DB_HOST"`
	Port     int    `envconfig:"PACKFINDERZ_DB_PORT" default:"5432"`
	User     string `envconfig:"PACKFINDERZ_DB_USER"`
	Password string `envconfig:"PACKFINDERZ_DB_PASSWORD"`
	Name     string `envconfig:"PACKFINDERZ_DB_NAME"`
	SSLMode  string `envconfig:"PACKFINDERZ_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PACKFINDERZ_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"PACKFINDERZ_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"PACKFINDERZ_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PACKFINDERZ_DB_CONN_MAX_IDLE_TIME" default:"30s"`
	ConnectTimeout  time.Duration `envconfig:"PACKFINDERZ_DB_CONNECT_TIMEOUT" default:"2s"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PACKFINDERZ_REDIS_URL"`
	Address      string        `envconfig:"PACKFINDERZ_REDIS_ADDR"`
	Password     string        `envconfig:"PACKFINDERZ_REDIS_PASSWORD"`
	DB           int           `envconfig:"PACKFINDERZ_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PACKFINDERZ_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PACKFINDERZ_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PACKFINDERZ_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PACKFINDERZ_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"PACKFINDERZ_REDIS_WRITE_TIMEOUT" default:"3s"`
}

// MongoConfig configures the document store. An empty URI disables it.
type MongoConfig struct {
	URI            string        `envconfig:"PACKFINDERZ_MONGO_URI"`
	Database       string        `envconfig:"PACKFINDERZ_MONGO_DATABASE" default:"packfinderz"`
	AuditColl      string        `envconfig:"PACKFINDERZ_MONGO_AUDIT_COLLECTION" default:"auth_events"`
	ConnectTimeout time.Duration `envconfig:"PACKFINDERZ_MONGO_CONNECT_TIMEOUT" default:"10s"`
}

func (m MongoConfig) Enabled() bool {
	return strings.TrimSpace(m.URI) != ""
}

type JWTConfig struct {
	Secret          string `envconfig:"PACKFINDERZ_JWT_SECRET" required:"true"`
	Issuer          string `envconfig:"PACKFINDERZ_JWT_ISSUER" default:"packfinderz-identity"`
	AccessLifetime  string `envconfig:"PACKFINDERZ_JWT_ACCESS_LIFETIME" default:"15m"`
	RefreshLifetime string `envconfig:"PACKFINDERZ_JWT_REFRESH_LIFETIME" default:"7d"`
}

// AccessTTL returns the parsed access token lifetime.
func (j JWTConfig) AccessTTL() (time.Duration, error) {
	return ParseLifetime(j.AccessLifetime)
}

// RefreshTTL returns the parsed refresh token lifetime.
func (j JWTConfig) RefreshTTL() (time.Duration, error) {
	return ParseLifetime(j.RefreshLifetime)
}

func (j JWTConfig) validate() error {
	var err error
	if len(j.Secret) < MinJWTSecretLength {
		err = multierr.Append(err, fmt.Errorf("%s must be at least %d characters", EnvJWTSecret, MinJWTSecretLength))
	}
	access, accessErr := j.AccessTTL()
	if accessErr != nil {
		err = multierr.Append(err, fmt.Errorf("%s: %w", EnvJWTAccessLifetime, accessErr))
	}
	refresh, refreshErr := j.RefreshTTL()
	if refreshErr != nil {
		err = multierr.Append(err, fmt.Errorf("%s: %w", EnvJWTRefreshLifetime, refreshErr))
	}
	if accessErr == nil && refreshErr == nil && refresh <= access {
		err = multierr.Append(err, fmt.Errorf("refresh lifetime (%s) must exceed access lifetime (%s)", refresh, access))
	}
	return err
}

type PasswordConfig struct {
	BcryptCost int `envconfig:"PACKFINDERZ_BCRYPT_COST" default:"12"`
}

func (p PasswordConfig) validate() error {
	if p.BcryptCost < MinBcryptCost || p.BcryptCost > MaxBcryptCost {
		return fmt.Errorf("%s must be between %d and %d", EnvBcryptCost, MinBcryptCost, MaxBcryptCost)
	}
	return nil
}

// RateLimitConfig drives the per-principal request limiter.
type RateLimitConfig struct {
	Window      time.Duration `envconfig:"PACKFINDERZ_RATE_LIMIT_WINDOW" default:"15m"`
	MaxRequests int           `envconfig:"PACKFINDERZ_RATE_LIMIT_MAX_REQUESTS" default:"100"`
}

func (r RateLimitConfig) validate() error {
	if r.Window <= 0 {
		return fmt.Errorf("%s must be positive", EnvRateLimitWindow)
	}
	if r.MaxRequests <= 0 {
		return fmt.Errorf("%s must be positive", EnvRateLimitMax)
	}
	return nil
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"PACKFINDERZ_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"PACKFINDERZ_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"PACKFINDERZ_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"PACKFINDERZ_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"PACKFINDERZ_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"PACKFINDERZ_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
	ResetWindow        time.Duration `envconfig:"PACKFINDERZ_AUTH_RATE_LIMIT_RESET_WINDOW" default:"15m"`
	ResetEmailLimit    int           `envconfig:"PACKFINDERZ_AUTH_RATE_LIMIT_RESET_EMAIL_LIMIT" default:"3"`
	ResetIPLimit       int           `envconfig:"PACKFINDERZ_AUTH_RATE_LIMIT_RESET_IP_LIMIT" default:"10"`
}

// PubSubConfig configures identity event publishing. An empty project disables it.
type PubSubConfig struct {
	ProjectID       string `envconfig:"PACKFINDERZ_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"PACKFINDERZ_GCP_CREDENTIALS_JSON"`
	IdentityTopic   string `envconfig:"PACKFINDERZ_PUBSUB_IDENTITY_TOPIC" default:"pf-identity-events"`
}

func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.ProjectID) != ""
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"PACKFINDERZ_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	parts := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range dbPartEnvVars {
		if parts[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
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

	q := u.Query()
	if db.SSLMode != "" {
		q.Set("sslmode", db.SSLMode)
	}
	if db.ConnectTimeout > 0 {
		q.Set("connect_timeout", fmt.Sprintf("%d", int(db.ConnectTimeout.Seconds())))
	}
	u.RawQuery = q.Encode()

	db.DSN = u.String()
	return nil
}
