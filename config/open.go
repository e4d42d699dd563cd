package config

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/AntonStoeckl/active-record-orm-go/orm/sqladapter"
)

// OpenSQLDB opens and pings a *sql.DB with the configured pool settings.
func OpenSQLDB(ctx context.Context, cfg Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	configurePool(db, cfg)

	if pingErr := ping(ctx, db, cfg); pingErr != nil {
		_ = db.Close()
		return nil, pingErr
	}

	return db, nil
}

// OpenSQLX opens and pings a *sqlx.DB with the configured pool settings.
func OpenSQLX(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	db, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	configurePool(db.DB, cfg)

	if pingErr := ping(ctx, db.DB, cfg); pingErr != nil {
		_ = db.Close()
		return nil, pingErr
	}

	return db, nil
}

// PGXPoolConfig creates a pgxpool.Config from the DSN and pool settings. It does not connect.
func PGXPoolConfig(cfg Config) (*pgxpool.Config, error) {
	const defaultMinConnections = int32(2)

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}

	poolConfig.MaxConns = int32(max(cfg.MaxOpenConns, 1))
	poolConfig.MinConns = min(defaultMinConnections, poolConfig.MaxConns)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime
	poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	return poolConfig, nil
}

// OpenPGXPool creates and pings a pgxpool.Pool.
func OpenPGXPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolConfig, err := PGXPoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	if pingErr := pool.Ping(ctx); pingErr != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", pingErr)
	}

	return pool, nil
}

// Handle is an open database connection with the SQL adapter running on it.
type Handle struct {
	Adapter *sqladapter.Adapter
	// Exec runs raw statements such as schema migrations.
	Exec  func(ctx context.Context, query string) error
	close func()
}

// Close releases the connection.
func (h *Handle) Close() {
	if h.close != nil {
		h.close()
	}
}

// Open connects according to cfg.Conn and builds the SQL adapter on the connection.
func Open(ctx context.Context, cfg Config, options ...sqladapter.Option) (*Handle, error) {
	options = append(cfg.AdapterOptions(), options...)

	switch cfg.Conn {
	case ConnPGXPool:
		pool, err := OpenPGXPool(ctx, cfg)
		if err != nil {
			return nil, err
		}

		adapter, err := sqladapter.NewAdapterFromPGXPool(pool, options...)
		if err != nil {
			pool.Close()
			return nil, err
		}

		return &Handle{
			Adapter: adapter,
			Exec: func(ctx context.Context, query string) error {
				_, execErr := pool.Exec(ctx, query)
				return execErr
			},
			close: pool.Close,
		}, nil

	case ConnSQLX:
		db, err := OpenSQLX(ctx, cfg)
		if err != nil {
			return nil, err
		}

		adapter, err := sqladapter.NewAdapterFromSQLX(db, options...)
		if err != nil {
			_ = db.Close()
			return nil, err
		}

		return &Handle{
			Adapter: adapter,
			Exec: func(ctx context.Context, query string) error {
				_, execErr := db.ExecContext(ctx, query)
				return execErr
			},
			close: func() { _ = db.Close() },
		}, nil

	default:
		db, err := OpenSQLDB(ctx, cfg)
		if err != nil {
			return nil, err
		}

		adapter, err := sqladapter.NewAdapterFromSQLDB(db, options...)
		if err != nil {
			_ = db.Close()
			return nil, err
		}

		return &Handle{
			Adapter: adapter,
			Exec: func(ctx context.Context, query string) error {
				_, execErr := db.ExecContext(ctx, query)
				return execErr
			},
			close: func() { _ = db.Close() },
		}, nil
	}
}

func configurePool(db *sql.DB, cfg Config) {
	maxOpen := cfg.MaxOpenConns
	if cfg.Driver == DriverSQLite {
		// sqlite allows one writer; a second connection would also see a separate :memory: database
		maxOpen = 1
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(min(cfg.MaxIdleConns, maxOpen))
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
}

func ping(ctx context.Context, db *sql.DB, cfg Config) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	return nil
}
