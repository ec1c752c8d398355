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
	FeatureFlags FeatureFlagsConfig
	Sweeper      SweeperConfig
	CORS         CORSConfig
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
	Env          string `envconfig:"VELAFIT_APP_ENV" required:"true"`
	Port         string `envconfig:"VELAFIT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"VELAFIT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VELAFIT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"VELAFIT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"VELAFIT_DB_DSN"`
	Driver string `envconfig:"VELAFIT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"VELAFIT_DB_HOST"`
	LegacyPort     int    `envconfig:"VELAFIT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"VELAFIT_DB_USER"`
	LegacyPassword string `envconfig:"VELAFIT_DB_PASSWORD"`
	LegacyName     string `envconfig:"VELAFIT_DB_NAME"`
	LegacySSLMode  string `envconfig:"VELAFIT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VELAFIT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VELAFIT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VELAFIT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VELAFIT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VELAFIT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VELAFIT_REDIS_ADDR"`
	Password     string        `envconfig:"VELAFIT_REDIS_PASSWORD"`
	DB           int           `envconfig:"VELAFIT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VELAFIT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VELAFIT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VELAFIT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VELAFIT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VELAFIT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"VELAFIT_AUTO_MIGRATE" default:"false"`
}

// SweeperConfig tunes the credit expiry worker.
type SweeperConfig struct {
	Interval     time.Duration `envconfig:"VELAFIT_SWEEP_INTERVAL" default:"1h"`
	LedgerBatch  int           `envconfig:"VELAFIT_SWEEP_LEDGER_BATCH" default:"500"`
	RetryRetries uint64        `envconfig:"VELAFIT_SWEEP_RETRIES" default:"3"`
	RetryBackoff time.Duration `envconfig:"VELAFIT_SWEEP_RETRY_BACKOFF" default:"100ms"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"VELAFIT_CORS_ALLOWED_ORIGINS" default:"*"`
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
