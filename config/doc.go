// Package config reads the process configuration from ORM_* environment variables and opens the
// database handles the SQL adapter runs on: pgxpool.Pool, sql.DB or sqlx.DB, with lib/pq for
// postgres and modernc.org/sqlite for sqlite.
package config
