package adapters

import (
	"context"
	"errors"
)

// ErrLastInsertIDUnsupported is returned by results of drivers that only report generated keys
// through a RETURNING clause.
var ErrLastInsertIDUnsupported = errors.New("last insert id is not supported by this driver")

// DBAdapter defines the database operations needed by the SQL adapter.
type DBAdapter interface {
	Query(ctx context.Context, query string, args ...any) (DBRows, error)
	Exec(ctx context.Context, query string, args ...any) (DBResult, error)
}

// DBRows defines the interface for query result rows.
type DBRows interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// DBResult defines the interface for execution results.
type DBResult interface {
	RowsAffected() (int64, error)
	LastInsertId() (int64, error)
}
