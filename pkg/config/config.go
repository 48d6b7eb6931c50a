package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	FeatureFlags  FeatureFlagsConfig
	Razorpay      RazorpayConfig
	Checkout      CheckoutConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	AuthRateLimit AuthRateLimitConfig
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
	Env          string `envconfig:"SIPWELL_APP_ENV" required:"true"`
	Port         string `envconfig:"SIPWELL_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SIPWELL_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SIPWELL_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SIPWELL_DB_DSN"`
	Driver string `envconfig:"SIPWELL_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SIPWELL_DB_HOST"`
	LegacyPort     int    `envconfig:"SIPWELL_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SIPWELL_DB_USER"`
	LegacyPassword string `envconfig:"SIPWELL_DB_PASSWORD"`
	LegacyName     string `envconfig:"SIPWELL_DB_NAME"`
	LegacySSLMode  string `envconfig:"SIPWELL_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SIPWELL_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SIPWELL_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SIPWELL_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SIPWELL_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SIPWELL_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SIPWELL_REDIS_ADDR"`
	Password     string        `envconfig:"SIPWELL_REDIS_PASSWORD"`
	DB           int           `envconfig:"SIPWELL_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SIPWELL_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SIPWELL_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SIPWELL_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SIPWELL_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SIPWELL_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"SIPWELL_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"SIPWELL_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"SIPWELL_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"SIPWELL_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"SIPWELL_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"SIPWELL_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"SIPWELL_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"SIPWELL_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"SIPWELL_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SIPWELL_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SIPWELL_AUTO_MIGRATE" default:"false"`
}

type RazorpayConfig struct {
	KeyID         string `envconfig:"SIPWELL_RAZORPAY_KEY_ID"`
	KeySecret     string `envconfig:"SIPWELL_RAZORPAY_KEY_SECRET"`
	WebhookSecret string `envconfig:"SIPWELL_RAZORPAY_WEBHOOK_SECRET"`
}

type CheckoutConfig struct {
	SessionTTL      time.Duration `envconfig:"SIPWELL_CHECKOUT_SESSION_TTL" default:"1h"`
	GuestSessionTTL time.Duration `envconfig:"SIPWELL_GUEST_SESSION_TTL" default:"720h"`
}

type PubSubConfig struct {
	ProjectID          string `envconfig:"SIPWELL_PUBSUB_PROJECT_ID"`
	OrdersTopic        string `envconfig:"SIPWELL_PUBSUB_ORDERS_TOPIC" default:"sw-order-events"`
	OrdersSubscription string `envconfig:"SIPWELL_PUBSUB_ORDERS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SIPWELL_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SIPWELL_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SIPWELL_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"SIPWELL_AUTH_RL_LOGIN_WINDOW" default:"1m"`
	LoginIPLimit       int           `envconfig:"SIPWELL_AUTH_RL_LOGIN_IP_LIMIT" default:"20"`
	LoginEmailLimit    int           `envconfig:"SIPWELL_AUTH_RL_LOGIN_EMAIL_LIMIT" default:"5"`
	RegisterWindow     time.Duration `envconfig:"SIPWELL_AUTH_RL_REGISTER_WINDOW" default:"1h"`
	RegisterIPLimit    int           `envconfig:"SIPWELL_AUTH_RL_REGISTER_IP_LIMIT" default:"10"`
	RegisterEmailLimit int           `envconfig:"SIPWELL_AUTH_RL_REGISTER_EMAIL_LIMIT" default:"3"`
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
