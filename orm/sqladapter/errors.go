package sqladapter

import "errors"

var (
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")
	ErrUnsupportedDialect    = errors.New("unsupported sql dialect")
	ErrBuildingQueryFailed   = errors.New("building the sql statement failed")
	ErrQueryFailed           = errors.New("database query failed")
	ErrExecFailed            = errors.New("database execution failed")
	ErrScanningRowFailed     = errors.New("scanning a database row failed")
	ErrRowsAffectedFailed    = errors.New("reading the rows affected count failed")
	ErrLastInsertIDFailed    = errors.New("reading the generated id failed")
)
