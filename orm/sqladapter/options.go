package sqladapter

import (
	"fmt"

	"github.com/AntonStoeckl/active-record-orm-go/orm"
)

// Supported goqu dialects.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"
	DialectMySQL    = "mysql"
)

// Option defines a functional option for configuring the Adapter.
type Option func(*Adapter) error

// WithDialect selects the SQL dialect. Postgres is the default.
func WithDialect(dialect string) Option {
	return func(a *Adapter) error {
		switch dialect {
		case DialectPostgres, DialectSQLite, DialectMySQL:
			a.dialect = dialect
			return nil
		default:
			return fmt.Errorf("%w: %q", ErrUnsupportedDialect, dialect)
		}
	}
}

// WithUUIDKeys makes Insert generate UUID strings as primary keys instead of relying on
// auto-increment columns.
func WithUUIDKeys() Option {
	return func(a *Adapter) error {
		a.uuidKeys = true
		return nil
	}
}

// WithLogger sets the logger for the Adapter.
//
// Debug level: every SQL statement with its execution time
// Error level: failed statements with the error and the SQL.
func WithLogger(logger orm.Logger) Option {
	return func(a *Adapter) error {
		a.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector, which receives the duration of every statement.
func WithMetrics(collector orm.MetricsCollector) Option {
	return func(a *Adapter) error {
		a.metricsCollector = collector
		return nil
	}
}
