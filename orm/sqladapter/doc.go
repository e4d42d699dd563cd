// Package sqladapter implements orm.Adapter on relational databases.
//
// Statements are built with goqu for the postgres (default), sqlite3 and mysql dialects and run
// on a pgxpool.Pool, a sql.DB or a sqlx.DB:
//
//	adapter, err := sqladapter.NewAdapterFromSQLDB(db, sqladapter.WithDialect(sqladapter.DialectSQLite))
//	engine, err := orm.NewEngine(registry, adapter)
//
// Generated keys are read with RETURNING on postgres and through LastInsertId elsewhere, unless
// WithUUIDKeys is set, in which case the adapter generates the key itself. Bulk reads are ordered
// by id. Driver failures are wrapped with errors.Join and one of the Err… sentinels below; the
// engine passes them through to the caller untouched.
package sqladapter
