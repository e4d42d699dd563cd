package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/AntonStoeckl/active-record-orm-go/orm"
	"github.com/AntonStoeckl/active-record-orm-go/orm/sqladapter"
)

// Drivers and connection kinds.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	ConnSQLDB   = "sqldb"
	ConnSQLX    = "sqlx"
	ConnPGXPool = "pgxpool"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the process configuration.
type Config struct {
	Driver string `env:"ORM_DRIVER" envDefault:"sqlite"`
	DSN    string `env:"ORM_DSN" envDefault:"file:ormdemo.db"`
	Conn   string `env:"ORM_CONN" envDefault:"sqldb"`

	ClassPrefix          string `env:"ORM_CLASS_PREFIX"`
	MaxEagerLoadDepth    int    `env:"ORM_MAX_EAGER_LOAD_DEPTH" envDefault:"8"`
	EagerLoadConcurrency int    `env:"ORM_EAGER_LOAD_CONCURRENCY" envDefault:"4"`
	UUIDKeys             bool   `env:"ORM_UUID_KEYS"`

	MaxOpenConns    int           `env:"ORM_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"ORM_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"ORM_CONN_MAX_LIFETIME" envDefault:"1h"`
	ConnMaxIdleTime time.Duration `env:"ORM_CONN_MAX_IDLE_TIME" envDefault:"5m"`
	ConnectTimeout  time.Duration `env:"ORM_CONNECT_TIMEOUT" envDefault:"5s"`

	LogLevel slog.Level `env:"ORM_LOG_LEVEL" envDefault:"INFO"`
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	return cfg, cfg.Validate()
}

// LoadFrom reads the configuration from environ instead of the process environment.
func LoadFrom(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	return cfg, cfg.Validate()
}

// Validate checks the driver and connection combination and the engine limits.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("%w: ORM_DRIVER %q", ErrInvalidConfig, c.Driver)
	}

	switch c.Conn {
	case ConnSQLDB, ConnSQLX:
	case ConnPGXPool:
		if c.Driver != DriverPostgres {
			return fmt.Errorf("%w: ORM_CONN %q needs ORM_DRIVER %q", ErrInvalidConfig, c.Conn, DriverPostgres)
		}
	default:
		return fmt.Errorf("%w: ORM_CONN %q", ErrInvalidConfig, c.Conn)
	}

	if c.DSN == "" {
		return fmt.Errorf("%w: ORM_DSN is empty", ErrInvalidConfig)
	}

	if c.MaxEagerLoadDepth < 0 || c.EagerLoadConcurrency < 1 {
		return fmt.Errorf("%w: eager load depth %d, concurrency %d", ErrInvalidConfig, c.MaxEagerLoadDepth, c.EagerLoadConcurrency)
	}

	return nil
}

// Dialect is the goqu dialect matching the driver.
func (c Config) Dialect() string {
	if c.Driver == DriverSQLite {
		return sqladapter.DialectSQLite
	}

	return sqladapter.DialectPostgres
}

// RegistryOptions are the registry options the configuration implies.
func (c Config) RegistryOptions() []orm.RegistryOption {
	if c.ClassPrefix == "" {
		return nil
	}

	return []orm.RegistryOption{orm.WithClassPrefix(c.ClassPrefix)}
}

// EngineOptions are the engine options the configuration implies.
func (c Config) EngineOptions() []orm.Option {
	return []orm.Option{
		orm.WithMaxEagerLoadDepth(c.MaxEagerLoadDepth),
		orm.WithEagerLoadConcurrency(c.EagerLoadConcurrency),
	}
}

// AdapterOptions are the SQL adapter options the configuration implies.
func (c Config) AdapterOptions() []sqladapter.Option {
	options := []sqladapter.Option{sqladapter.WithDialect(c.Dialect())}
	if c.UUIDKeys {
		options = append(options, sqladapter.WithUUIDKeys())
	}

	return options
}
