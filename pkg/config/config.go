package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "MEDICART"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv   = "MEDICART_APP_ENV"
	EnvPort     = "MEDICART_APP_PORT"
	EnvDBDSN    = "MEDICART_DB_DSN"
	EnvDBHost   = "MEDICART_DB_HOST"
	EnvDBUser   = "MEDICART_DB_USER"
	EnvDBName   = "MEDICART_DB_NAME"
	EnvRedisURL = "MEDICART_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Sales        SalesConfig
	RateLimit    RateLimitConfig
	Cron         CronConfig
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
	if err := cfg.Sales.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MEDICART_APP_ENV" required:"true"`
	Port         string `envconfig:"MEDICART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MEDICART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MEDICART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"MEDICART_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"MEDICART_DB_DSN"`
	Driver string `envconfig:"MEDICART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MEDICART_DB_HOST"`
	LegacyPort     int    `envconfig:"MEDICART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MEDICART_DB_USER"`
	LegacyPassword string `envconfig:"MEDICART_DB_PASSWORD"`
	LegacyName     string `envconfig:"MEDICART_DB_NAME"`
	LegacySSLMode  string `envconfig:"MEDICART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MEDICART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MEDICART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MEDICART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MEDICART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MEDICART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MEDICART_REDIS_ADDR"`
	Password     string        `envconfig:"MEDICART_REDIS_PASSWORD"`
	DB           int           `envconfig:"MEDICART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MEDICART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MEDICART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MEDICART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MEDICART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MEDICART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// SalesConfig drives the default linear totals policy. Rates are percentages
// applied to the invoice subtotal.
type SalesConfig struct {
	TaxRatePercent      float64 `envconfig:"MEDICART_SALES_TAX_RATE_PERCENT" default:"0"`
	DiscountRatePercent float64 `envconfig:"MEDICART_SALES_DISCOUNT_RATE_PERCENT" default:"0"`
}

func (s SalesConfig) validate() error {
	if s.TaxRatePercent < 0 {
		return fmt.Errorf("sales tax rate must not be negative")
	}
	if s.DiscountRatePercent < 0 {
		return fmt.Errorf("sales discount rate must not be negative")
	}
	return nil
}

// RateLimitConfig drives the fixed-window API throttle. A zero limit or
// window disables it.
type RateLimitConfig struct {
	Window time.Duration `envconfig:"MEDICART_RATE_LIMIT_WINDOW" default:"1m"`
	Limit  int64         `envconfig:"MEDICART_RATE_LIMIT_MAX_REQUESTS" default:"240"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"MEDICART_CRON_INTERVAL" default:"1h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MEDICART_AUTO_MIGRATE" default:"false"`
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
