package sqladapter

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"    // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect registration
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/active-record-orm-go/orm"
	"github.com/AntonStoeckl/active-record-orm-go/orm/sqladapter/internal/adapters"
)

const (
	aliasTarget   = "t"
	aliasJoin     = "j"
	aliasCount    = "count"
	sqlTimeLayout = "2006-01-02 15:04:05.999999999"
)

// Adapter is an orm.Adapter backed by a relational database.
type Adapter struct {
	db               adapters.DBAdapter
	dialect          string
	uuidKeys         bool
	logger           orm.Logger
	metricsCollector orm.MetricsCollector
}

var _ orm.Adapter = (*Adapter)(nil)

// NewAdapterFromPGXPool creates a new Adapter using a pgx Pool with optional configuration.
func NewAdapterFromPGXPool(pool *pgxpool.Pool, options ...Option) (*Adapter, error) {
	if pool == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newAdapter(adapters.NewPGXAdapter(pool), options)
}

// NewAdapterFromPGXPoolWithReplica creates a new Adapter that reads from replica and writes to pool.
func NewAdapterFromPGXPoolWithReplica(pool, replica *pgxpool.Pool, options ...Option) (*Adapter, error) {
	if pool == nil || replica == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newAdapter(adapters.NewPGXAdapterWithReplica(pool, replica), options)
}

// NewAdapterFromSQLDB creates a new Adapter using a sql.DB with optional configuration.
func NewAdapterFromSQLDB(db *sql.DB, options ...Option) (*Adapter, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newAdapter(adapters.NewSQLAdapter(db), options)
}

// NewAdapterFromSQLX creates a new Adapter using a sqlx.DB with optional configuration.
func NewAdapterFromSQLX(db *sqlx.DB, options ...Option) (*Adapter, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newAdapter(adapters.NewSQLXAdapter(db), options)
}

func newAdapter(db adapters.DBAdapter, options []Option) (*Adapter, error) {
	a := &Adapter{
		db:      db,
		dialect: DialectPostgres,
	}

	for _, option := range options {
		if err := option(a); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// Dialect returns the configured goqu dialect name.
func (a *Adapter) Dialect() string {
	return a.dialect
}

/***** single records *****/

func (a *Adapter) Read(ctx context.Context, m *orm.Model, id any) (orm.Row, error) {
	stmt := a.builder().
		From(m.TableName()).
		Where(goqu.C(orm.IDField).Eq(a.TranslateValue(id))).
		Limit(1).
		Prepared(true)

	rows, err := a.fetch(ctx, m.TableName(), stmt, a.db.Query)
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, nil
	}

	return rows[0], nil
}

func (a *Adapter) Insert(ctx context.Context, m *orm.Model, values orm.Values) (any, error) {
	record := a.record(values)

	id := record[orm.IDField]
	if id == nil {
		delete(record, orm.IDField)

		if a.uuidKeys {
			id = a.UUID()
			record[orm.IDField] = id
		}
	}

	stmt := a.builder().Insert(m.TableName()).Rows(record).Prepared(true)

	switch {
	case id != nil:
		if _, err := a.exec(ctx, m.TableName(), stmt); err != nil {
			return nil, err
		}

		return id, nil

	case a.dialect == DialectPostgres:
		rows, err := a.fetch(ctx, m.TableName(), stmt.Returning(orm.IDField), a.primaryQuery())
		if err != nil {
			return nil, err
		}

		if len(rows) == 0 {
			return nil, ErrLastInsertIDFailed
		}

		return rows[0][orm.IDField], nil

	default:
		result, err := a.exec(ctx, m.TableName(), stmt)
		if err != nil {
			return nil, err
		}

		lastID, err := result.LastInsertId()
		if err != nil {
			a.logError(logMsgLastInsertIDFailed, err, logAttrTable, m.TableName())
			return nil, errors.Join(ErrLastInsertIDFailed, err)
		}

		return lastID, nil
	}
}

func (a *Adapter) Update(ctx context.Context, m *orm.Model, id any, values orm.Values) error {
	if len(values) == 0 {
		return nil
	}

	stmt := a.builder().
		Update(m.TableName()).
		Set(a.record(values)).
		Where(goqu.C(orm.IDField).Eq(a.TranslateValue(id))).
		Prepared(true)

	_, err := a.exec(ctx, m.TableName(), stmt)

	return err
}

func (a *Adapter) Delete(ctx context.Context, m *orm.Model, id any) error {
	stmt := a.builder().
		Delete(m.TableName()).
		Where(goqu.C(orm.IDField).Eq(a.TranslateValue(id))).
		Prepared(true)

	_, err := a.exec(ctx, m.TableName(), stmt)

	return err
}

/***** bulk reads *****/

func (a *Adapter) ReadAll(ctx context.Context, m *orm.Model, kv orm.KeyValues) ([]orm.Row, error) {
	stmt := a.builder().From(m.TableName()).Order(goqu.C(orm.IDField).Asc()).Prepared(true)

	if len(kv) > 0 {
		ex, ok := a.keyValues(kv)
		if !ok {
			return []orm.Row{}, nil
		}
		stmt = stmt.Where(ex)
	}

	return a.fetch(ctx, m.TableName(), stmt, a.db.Query)
}

func (a *Adapter) ReadBy(ctx context.Context, m *orm.Model, field string, values []any) ([]orm.Row, error) {
	if len(values) == 0 {
		return []orm.Row{}, nil
	}

	stmt := a.builder().
		From(m.TableName()).
		Where(goqu.C(field).In(a.translateAll(values)...)).
		Order(goqu.C(orm.IDField).Asc()).
		Prepared(true)

	return a.fetch(ctx, m.TableName(), stmt, a.db.Query)
}

func (a *Adapter) ReadWith(ctx context.Context, m *orm.Model, predicates orm.Predicates) ([]orm.Row, error) {
	where, err := a.predicates(predicates)
	if err != nil {
		return nil, err
	}

	stmt := a.builder().From(m.TableName()).Order(goqu.C(orm.IDField).Asc()).Prepared(true)
	if where != nil {
		stmt = stmt.Where(where)
	}

	return a.fetch(ctx, m.TableName(), stmt, a.db.Query)
}

func (a *Adapter) Count(ctx context.Context, m *orm.Model, kv orm.KeyValues) (int64, error) {
	stmt := a.builder().From(m.TableName()).Select(goqu.COUNT(goqu.Star()).As(aliasCount)).Prepared(true)

	if len(kv) > 0 {
		ex, ok := a.keyValues(kv)
		if !ok {
			return 0, nil
		}
		stmt = stmt.Where(ex)
	}

	rows, err := a.fetch(ctx, m.TableName(), stmt, a.db.Query)
	if err != nil {
		return 0, err
	}

	if len(rows) == 0 {
		return 0, nil
	}

	return toInt64(rows[0][aliasCount]), nil
}

/***** bulk writes *****/

func (a *Adapter) DeleteAll(ctx context.Context, m *orm.Model, kv orm.KeyValues) (int64, error) {
	stmt := a.builder().Delete(m.TableName()).Prepared(true)

	if len(kv) > 0 {
		ex, ok := a.keyValues(kv)
		if !ok {
			return 0, nil
		}
		stmt = stmt.Where(ex)
	}

	return a.execAffected(ctx, m.TableName(), stmt)
}

func (a *Adapter) DeleteBy(ctx context.Context, m *orm.Model, field string, values []any) (int64, error) {
	if len(values) == 0 {
		return 0, nil
	}

	stmt := a.builder().
		Delete(m.TableName()).
		Where(goqu.C(field).In(a.translateAll(values)...)).
		Prepared(true)

	return a.execAffected(ctx, m.TableName(), stmt)
}

func (a *Adapter) DeleteWith(ctx context.Context, m *orm.Model, predicates orm.Predicates) (int64, error) {
	where, err := a.predicates(predicates)
	if err != nil {
		return 0, err
	}

	stmt := a.builder().Delete(m.TableName()).Prepared(true)
	if where != nil {
		stmt = stmt.Where(where)
	}

	return a.execAffected(ctx, m.TableName(), stmt)
}

func (a *Adapter) UpdateAll(ctx context.Context, m *orm.Model, kv orm.KeyValues, values orm.Values) (int64, error) {
	stmt := a.builder().Update(m.TableName()).Set(a.record(values)).Prepared(true)

	if len(kv) > 0 {
		ex, ok := a.keyValues(kv)
		if !ok {
			return 0, nil
		}
		stmt = stmt.Where(ex)
	}

	return a.execAffected(ctx, m.TableName(), stmt)
}

func (a *Adapter) UpdateBy(
	ctx context.Context,
	m *orm.Model,
	field string,
	candidates []any,
	values orm.Values,
) (int64, error) {

	if len(candidates) == 0 {
		return 0, nil
	}

	stmt := a.builder().
		Update(m.TableName()).
		Set(a.record(values)).
		Where(goqu.C(field).In(a.translateAll(candidates)...)).
		Prepared(true)

	return a.execAffected(ctx, m.TableName(), stmt)
}

func (a *Adapter) UpdateWith(
	ctx context.Context,
	m *orm.Model,
	predicates orm.Predicates,
	values orm.Values,
) (int64, error) {

	where, err := a.predicates(predicates)
	if err != nil {
		return 0, err
	}

	stmt := a.builder().Update(m.TableName()).Set(a.record(values)).Prepared(true)
	if where != nil {
		stmt = stmt.Where(where)
	}

	return a.execAffected(ctx, m.TableName(), stmt)
}

// InsertAll inserts rows in one statement. With UUID keys every row without an id column gets one.
func (a *Adapter) InsertAll(ctx context.Context, m *orm.Model, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	withID := a.uuidKeys && !slices.Contains(columns, orm.IDField)

	cols := make([]any, 0, len(columns)+1)
	if withID {
		cols = append(cols, orm.IDField)
	}
	for _, column := range columns {
		cols = append(cols, column)
	}

	vals := make([][]any, len(rows))
	for i, row := range rows {
		translated := make([]any, 0, len(cols))
		if withID {
			translated = append(translated, a.UUID())
		}
		vals[i] = append(translated, a.translateAll(row)...)
	}

	stmt := a.builder().Insert(m.TableName()).Cols(cols...).Vals(vals...).Prepared(true)

	return a.execAffected(ctx, m.TableName(), stmt)
}

/***** relations *****/

func (a *Adapter) HasMany(ctx context.Context, target *orm.Model, foreignKey string, ownerIDs []any) ([]orm.Row, error) {
	return a.ReadBy(ctx, target, foreignKey, ownerIDs)
}

// BelongsToMany joins target with joinTable and returns the target columns plus localKey.
func (a *Adapter) BelongsToMany(
	ctx context.Context,
	target *orm.Model,
	joinTable, localKey, foreignKey string,
	ownerIDs []any,
) ([]orm.Row, error) {

	if len(ownerIDs) == 0 {
		return []orm.Row{}, nil
	}

	t := goqu.T(aliasTarget)
	j := goqu.T(aliasJoin)

	stmt := a.builder().
		From(goqu.T(target.TableName()).As(aliasTarget)).
		Join(goqu.T(joinTable).As(aliasJoin), goqu.On(j.Col(foreignKey).Eq(t.Col(orm.IDField)))).
		Select(t.All(), j.Col(localKey).As(localKey)).
		Where(j.Col(localKey).In(a.translateAll(ownerIDs)...)).
		Order(j.Col(localKey).Asc(), t.Col(orm.IDField).Asc()).
		Prepared(true)

	return a.fetch(ctx, target.TableName(), stmt, a.db.Query)
}

// Add inserts the links from ownerID to targetIDs that do not exist yet.
func (a *Adapter) Add(
	ctx context.Context,
	joinTable, localKey, foreignKey string,
	ownerID any,
	targetIDs []any,
) error {

	if len(targetIDs) == 0 {
		return nil
	}

	owner := a.TranslateValue(ownerID)
	targets := a.translateAll(targetIDs)

	existing, err := a.fetch(ctx, joinTable, a.builder().
		From(joinTable).
		Select(foreignKey).
		Where(goqu.C(localKey).Eq(owner), goqu.C(foreignKey).In(targets...)).
		Prepared(true),
		a.primaryQuery(),
	)
	if err != nil {
		return err
	}

	linked := make(map[string]bool, len(existing)+len(targets))
	for _, row := range existing {
		linked[keyOf(row[foreignKey])] = true
	}

	missing := make([][]any, 0, len(targets))
	for _, target := range targets {
		if linked[keyOf(target)] {
			continue
		}
		linked[keyOf(target)] = true
		missing = append(missing, []any{owner, target})
	}

	if len(missing) == 0 {
		return nil
	}

	stmt := a.builder().Insert(joinTable).Cols(localKey, foreignKey).Vals(missing...).Prepared(true)
	_, err = a.exec(ctx, joinTable, stmt)

	return err
}

func (a *Adapter) Remove(
	ctx context.Context,
	joinTable, localKey, foreignKey string,
	ownerID any,
	targetIDs []any,
) error {

	if len(targetIDs) == 0 {
		return nil
	}

	stmt := a.builder().
		Delete(joinTable).
		Where(goqu.C(localKey).Eq(a.TranslateValue(ownerID)), goqu.C(foreignKey).In(a.translateAll(targetIDs)...)).
		Prepared(true)

	_, err := a.exec(ctx, joinTable, stmt)

	return err
}

func (a *Adapter) RemoveAll(ctx context.Context, joinTable, localKey string, ownerID any) error {
	stmt := a.builder().
		Delete(joinTable).
		Where(goqu.C(localKey).Eq(a.TranslateValue(ownerID))).
		Prepared(true)

	_, err := a.exec(ctx, joinTable, stmt)

	return err
}

/***** values *****/

func (a *Adapter) ProcessValues(m *orm.Model, row orm.Row) (orm.Values, error) {
	return orm.ProcessRow(m, row)
}

// DefaultID is nil: records get their key on insert.
func (a *Adapter) DefaultID() any {
	return nil
}

func (a *Adapter) UUID() string {
	return uuid.NewString()
}

// TranslateValue converts a field value into what the driver stores. Postgres takes times and
// booleans natively; sqlite and mysql get text timestamps in UTC and 0/1. Structured JSON
// values are encoded to text on every dialect.
func (a *Adapter) TranslateValue(value any) any {
	switch v := value.(type) {
	case time.Time:
		if a.dialect == DialectPostgres {
			return v
		}
		return v.UTC().Format(sqlTimeLayout)

	case bool:
		if a.dialect == DialectPostgres {
			return v
		}
		if v {
			return int64(1)
		}
		return int64(0)

	case map[string]any, []any:
		encoded, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalToString(v)
		if err != nil {
			return value
		}
		return encoded

	default:
		return value
	}
}

func (a *Adapter) builder() goqu.DialectWrapper {
	return goqu.Dialect(a.dialect)
}

func (a *Adapter) record(values orm.Values) goqu.Record {
	record := make(goqu.Record, len(values))
	for field, value := range values {
		record[field] = a.TranslateValue(value)
	}

	return record
}

func (a *Adapter) translateAll(values []any) []any {
	translated := make([]any, len(values))
	for i, value := range values {
		translated[i] = a.TranslateValue(value)
	}

	return translated
}
