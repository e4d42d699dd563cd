// Package adapters provides the database handles the SQL adapter runs its statements on.
//
// pgxpool.Pool, sql.DB and sqlx.DB are wrapped behind the DBAdapter interface so that query
// building and row scanning are written once. Rows expose their column names because the ORM
// scans into generic column maps rather than typed structs.
package adapters
