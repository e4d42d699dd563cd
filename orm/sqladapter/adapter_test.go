package sqladapter_test

import (
	"context"
	"database/sql"
	"log/slog"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/AntonStoeckl/active-record-orm-go/orm"
	"github.com/AntonStoeckl/active-record-orm-go/orm/sqladapter"
	"github.com/AntonStoeckl/active-record-orm-go/testutil/ormtest"
)

const schema = `
CREATE TABLE persons (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT);
CREATE TABLE addresses (id INTEGER PRIMARY KEY AUTOINCREMENT, address TEXT, person_id INTEGER);
CREATE TABLE products (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT,
	price INTEGER,
	available INTEGER,
	created_at DATETIME
);
CREATE TABLE tags (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT);
CREATE TABLE product_tags (product_id INTEGER NOT NULL, tag_id INTEGER NOT NULL);

INSERT INTO persons (id, name) VALUES (1, 'Peter'), (2, 'Alice');
INSERT INTO addresses (id, address, person_id) VALUES (3, '2 Side Street', 2), (11, '3 Hill Road', 2);
INSERT INTO products (id, name, price, available, created_at) VALUES
	(1, 'milk', 100, 1, '2024-05-01 12:00:00'),
	(22, 'bread', 200, 1, '2024-05-01 12:00:00'),
	(55, 'one', 10, 0, '2024-05-01 12:00:00');
INSERT INTO tags (id, name) VALUES (1, 'white'), (2, 'liquid'), (3, 'fresh');
INSERT INTO product_tags (product_id, tag_id) VALUES (22, 1), (22, 2);
`

func openSQLite(t testing.TB) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(schema)
	require.NoError(t, err)

	return db
}

type handleFactory struct {
	name string
	open func(t *testing.T, options ...sqladapter.Option) *sqladapter.Adapter
}

func handles() []handleFactory {
	return []handleFactory{
		{
			name: "sql.DB",
			open: func(t *testing.T, options ...sqladapter.Option) *sqladapter.Adapter {
				options = append([]sqladapter.Option{sqladapter.WithDialect(sqladapter.DialectSQLite)}, options...)
				adapter, err := sqladapter.NewAdapterFromSQLDB(openSQLite(t), options...)
				require.NoError(t, err)

				return adapter
			},
		},
		{
			name: "sqlx.DB",
			open: func(t *testing.T, options ...sqladapter.Option) *sqladapter.Adapter {
				options = append([]sqladapter.Option{sqladapter.WithDialect(sqladapter.DialectSQLite)}, options...)
				adapter, err := sqladapter.NewAdapterFromSQLX(sqlx.NewDb(openSQLite(t), "sqlite"), options...)
				require.NoError(t, err)

				return adapter
			},
		},
	}
}

func newEngine(t testing.TB, adapter orm.Adapter, options ...orm.Option) *orm.Engine {
	t.Helper()

	engine, err := orm.NewEngine(ormtest.NewFixtureRegistry(t), adapter, options...)
	require.NoError(t, err)

	return engine
}

func ids(entities []*orm.Entity) []any {
	out := make([]any, 0, len(entities))
	for _, en := range entities {
		out = append(out, en.ID())
	}

	return out
}

func Test_NewAdapter_When_ConnectionIsNil(t *testing.T) {
	_, errPGX := sqladapter.NewAdapterFromPGXPool(nil)
	_, errReplica := sqladapter.NewAdapterFromPGXPoolWithReplica(nil, nil)
	_, errSQL := sqladapter.NewAdapterFromSQLDB(nil)
	_, errSQLX := sqladapter.NewAdapterFromSQLX(nil)

	assert.ErrorIs(t, errPGX, sqladapter.ErrNilDatabaseConnection)
	assert.ErrorIs(t, errReplica, sqladapter.ErrNilDatabaseConnection)
	assert.ErrorIs(t, errSQL, sqladapter.ErrNilDatabaseConnection)
	assert.ErrorIs(t, errSQLX, sqladapter.ErrNilDatabaseConnection)
}

func Test_NewAdapter_When_DialectIsUnsupported(t *testing.T) {
	_, err := sqladapter.NewAdapterFromSQLDB(openSQLite(t), sqladapter.WithDialect("oracle"))

	assert.ErrorIs(t, err, sqladapter.ErrUnsupportedDialect)
}

func Test_NewAdapter_DefaultsToPostgres(t *testing.T) {
	adapter, err := sqladapter.NewAdapterFromSQLDB(openSQLite(t))

	require.NoError(t, err)
	assert.Equal(t, sqladapter.DialectPostgres, adapter.Dialect())
}

func Test_Adapter_WriteReadRoundTrip(t *testing.T) {
	for _, handle := range handles() {
		t.Run(handle.name, func(t *testing.T) {
			// setup
			ctx := context.Background()
			engine := newEngine(t, handle.open(t))
			productModel, err := engine.Model(ormtest.ModelProduct)
			require.NoError(t, err)
			created := time.Date(2024, 6, 2, 8, 30, 0, 0, time.UTC)

			// arrange
			product := engine.Create(productModel).
				MustSet("name", "butter").
				MustSet("price", int64(250)).
				MustSet("created_at", created)

			// act
			require.NoError(t, product.Write(ctx))
			loaded, err := engine.Factory(ctx, productModel, product.ID())

			// assert
			require.NoError(t, err)
			assert.Equal(t, int64(56), product.ID())
			assert.Equal(t, "butter", loaded.Get("name"))
			assert.Equal(t, int64(250), loaded.Get("price"))
			assert.Equal(t, true, loaded.Get("available"))
			assert.Equal(t, created, loaded.Get("created_at"))
		})
	}
}

func Test_Adapter_UpdateAndDelete(t *testing.T) {
	for _, handle := range handles() {
		t.Run(handle.name, func(t *testing.T) {
			// setup
			ctx := context.Background()
			engine := newEngine(t, handle.open(t))
			productModel, _ := engine.Model(ormtest.ModelProduct)
			product, err := engine.Factory(ctx, productModel, 55)
			require.NoError(t, err)

			// act
			require.NoError(t, product.Set("available", true))
			require.NoError(t, product.Write(ctx))
			reloaded, readErr := engine.Factory(ctx, productModel, 55)
			deleteErr := product.Delete(ctx)
			_, goneErr := engine.Factory(ctx, productModel, 55)

			// assert
			require.NoError(t, readErr)
			assert.Equal(t, true, reloaded.Get("available"))
			require.NoError(t, deleteErr)
			assert.ErrorIs(t, goneErr, orm.ErrRecordNotFound)
			assert.EqualError(t, goneErr, "Record not found. Product id:55")
		})
	}
}

func Test_Adapter_ReadWithPredicates(t *testing.T) {
	for _, handle := range handles() {
		t.Run(handle.name, func(t *testing.T) {
			// setup
			ctx := context.Background()
			engine := newEngine(t, handle.open(t))
			productModel, _ := engine.Model(ormtest.ModelProduct)

			tests := []struct {
				name       string
				predicates orm.Predicates
				expected   []any
			}{
				{
					name:       "and_binds_tighter_than_or",
					predicates: orm.Where("price", orm.Equal, 10).And("available", orm.Equal, false).Or("name", orm.Equal, "milk").Finalize(),
					expected:   []any{int64(1), int64(55)},
				},
				{
					name:       "like",
					predicates: orm.Where("name", orm.Like, "b%").Finalize(),
					expected:   []any{int64(22)},
				},
				{
					name:       "in",
					predicates: orm.Where("id", orm.In, []any{1, 55}).Finalize(),
					expected:   []any{int64(1), int64(55)},
				},
				{
					name:       "empty_in",
					predicates: orm.Where("id", orm.In, []any{}).Finalize(),
					expected:   []any{},
				},
				{
					name:       "between",
					predicates: orm.Where("price", orm.Between, []any{50, 150}).Finalize(),
					expected:   []any{int64(1)},
				},
				{
					name:       "not_equal_and_greater",
					predicates: orm.Where("name", orm.NotEqual, "one").And("price", orm.GreaterThan, 100).Finalize(),
					expected:   []any{int64(22)},
				},
			}

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					// act
					result, err := engine.ReadWith(ctx, productModel, tt.predicates)

					// assert
					require.NoError(t, err)
					assert.Equal(t, tt.expected, ids(result.All()))
				})
			}
		})
	}
}

func Test_Adapter_ReadWith_When_ComparatorIsUnknown(t *testing.T) {
	// setup
	adapter := handles()[0].open(t)
	registry := ormtest.NewFixtureRegistry(t)
	productModel, _ := registry.Model(ormtest.ModelProduct)

	// act
	_, err := adapter.ReadWith(context.Background(), productModel, orm.Predicates{orm.C("", "name", "SIMILAR", "x")})

	// assert
	assert.ErrorIs(t, err, orm.ErrUnknownComparator)
}

func Test_Adapter_BulkOperations(t *testing.T) {
	for _, handle := range handles() {
		t.Run(handle.name, func(t *testing.T) {
			// setup
			ctx := context.Background()
			engine := newEngine(t, handle.open(t))
			productModel, _ := engine.Model(ormtest.ModelProduct)

			// act
			all, countAllErr := engine.Count(ctx, productModel, nil)
			available, countErr := engine.Count(ctx, productModel, orm.KeyValues{"available": true})
			inserted, insertErr := engine.InsertAll(ctx, productModel,
				[]string{"name", "price", "available"},
				[][]any{{"tea", 300, true}, {"jam", 400, false}},
			)
			updated, updateErr := engine.UpdateBy(ctx, productModel, "name", []any{"tea", "jam"}, orm.Values{"price": 1})
			deleted, deleteErr := engine.DeleteWith(ctx, productModel, orm.Where("price", orm.Equal, 1).Finalize())
			none, noneErr := engine.DeleteBy(ctx, productModel, "id", []any{})
			remaining, readErr := engine.ReadAll(ctx, productModel, orm.KeyValues{"id": []any{1, 22, 55}})

			// assert
			require.NoError(t, countAllErr)
			require.NoError(t, countErr)
			require.NoError(t, insertErr)
			require.NoError(t, updateErr)
			require.NoError(t, deleteErr)
			require.NoError(t, noneErr)
			require.NoError(t, readErr)
			assert.Equal(t, int64(3), all)
			assert.Equal(t, int64(2), available)
			assert.Equal(t, int64(2), inserted)
			assert.Equal(t, int64(2), updated)
			assert.Equal(t, int64(2), deleted)
			assert.Equal(t, int64(0), none)
			assert.Equal(t, []any{int64(1), int64(22), int64(55)}, ids(remaining.All()))
		})
	}
}

func Test_Adapter_JoinTableMutation(t *testing.T) {
	for _, handle := range handles() {
		t.Run(handle.name, func(t *testing.T) {
			// setup
			ctx := context.Background()
			engine := newEngine(t, handle.open(t))
			productModel, _ := engine.Model(ormtest.ModelProduct)
			tagModel, _ := engine.Model(ormtest.ModelTag)
			product, err := engine.Factory(ctx, productModel, 22)
			require.NoError(t, err)
			fresh := engine.Create(tagModel, orm.WithID(3))
			white := engine.Create(tagModel, orm.WithID(1))

			// act
			addErr := product.Add(ctx, fresh, white)
			afterAdd, _ := product.Siblings(ctx, tagModel)
			removeErr := product.Remove(ctx, white)
			afterRemove, _ := product.Siblings(ctx, tagModel)
			removeAllErr := product.RemoveAll(ctx, tagModel)
			afterRemoveAll, _ := product.Siblings(ctx, tagModel)

			// assert
			require.NoError(t, addErr)
			require.NoError(t, removeErr)
			require.NoError(t, removeAllErr)
			assert.Equal(t, []any{int64(1), int64(2), int64(3)}, ids(afterAdd), "existing links are not duplicated")
			assert.Equal(t, []any{int64(2), int64(3)}, ids(afterRemove))
			assert.Empty(t, afterRemoveAll)
		})
	}
}

func Test_Adapter_EagerLoad(t *testing.T) {
	for _, handle := range handles() {
		t.Run(handle.name, func(t *testing.T) {
			// setup
			ctx := context.Background()
			engine := newEngine(t, handle.open(t))
			addressModel, _ := engine.Model(ormtest.ModelAddress)
			address, err := engine.Factory(ctx, addressModel, 11)
			require.NoError(t, err)

			// act
			err = address.EagerLoad(ctx, orm.With("Person").Load("person", orm.With("Address")))

			// assert
			require.NoError(t, err)
			person := address.RelatedOne("person")
			require.NotNil(t, person)
			assert.Equal(t, "Alice", person.Get("name"))
			assert.Equal(t, []any{int64(3), int64(11)}, ids(person.RelatedMany("addresses")))
		})
	}
}

func Test_Adapter_ProductTags(t *testing.T) {
	// setup
	ctx := context.Background()
	engine := newEngine(t, handles()[0].open(t))
	productModel, _ := engine.Model(ormtest.ModelProduct)
	result, err := engine.ReadAll(ctx, productModel, nil)
	require.NoError(t, err)

	// act
	err = engine.EagerLoad(ctx, orm.With("Tag"), result.All()...)

	// assert
	require.NoError(t, err)
	products := result.All()
	assert.Empty(t, products[0].RelatedMany("tags"))
	assert.Equal(t, []any{int64(1), int64(2)}, ids(products[1].RelatedMany("tags")))
}

func Test_Adapter_UUIDKeys(t *testing.T) {
	// setup
	ctx := context.Background()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE tags (id TEXT PRIMARY KEY, name TEXT)`)
	require.NoError(t, err)

	adapter, err := sqladapter.NewAdapterFromSQLDB(db,
		sqladapter.WithDialect(sqladapter.DialectSQLite),
		sqladapter.WithUUIDKeys(),
	)
	require.NoError(t, err)
	engine := newEngine(t, adapter)
	tagModel, _ := engine.Model(ormtest.ModelTag)

	// act
	tag := engine.Create(tagModel).MustSet("name", "organic")
	writeErr := tag.Write(ctx)
	inserted, insertErr := engine.InsertAll(ctx, tagModel, []string{"name"}, [][]any{{"a"}, {"b"}})
	count, countErr := engine.Count(ctx, tagModel, nil)

	// assert
	require.NoError(t, writeErr)
	require.NoError(t, insertErr)
	require.NoError(t, countErr)
	require.IsType(t, "", tag.ID())
	assert.Len(t, tag.ID(), 36)
	assert.Equal(t, int64(2), inserted)
	assert.Equal(t, int64(3), count)
}

func Test_Adapter_Insert_When_IDIsProvided(t *testing.T) {
	for _, h := range handles() {
		t.Run(h.name, func(t *testing.T) {
			// setup
			ctx := context.Background()
			adapter := h.open(t)
			engine := newEngine(t, adapter)
			tagModel, _ := engine.Model(ormtest.ModelTag)

			// act
			id, insertErr := adapter.Insert(ctx, tagModel, orm.Values{orm.IDField: int64(40), "name": "seasonal"})
			generated, generatedErr := adapter.Insert(ctx, tagModel, orm.Values{orm.IDField: nil, "name": "local"})

			// assert
			require.NoError(t, insertErr)
			require.NoError(t, generatedErr)
			assert.Equal(t, int64(40), id)
			assert.Equal(t, int64(41), generated)

			tag, err := engine.Factory(ctx, tagModel, 40)
			require.NoError(t, err)
			assert.Equal(t, "seasonal", tag.Get("name"))
		})
	}
}

func Test_Adapter_When_QueryFails(t *testing.T) {
	// setup
	ctx := context.Background()
	db := openSQLite(t)
	_, err := db.Exec(`DROP TABLE persons`)
	require.NoError(t, err)

	logHandler := ormtest.NewLogHandlerSpy(false)
	adapter, err := sqladapter.NewAdapterFromSQLDB(db,
		sqladapter.WithDialect(sqladapter.DialectSQLite),
		sqladapter.WithLogger(slog.New(logHandler)),
	)
	require.NoError(t, err)
	engine := newEngine(t, adapter)
	personModel, _ := engine.Model(ormtest.ModelPerson)

	// act
	_, err = engine.Factory(ctx, personModel, 1)

	// assert
	assert.ErrorIs(t, err, sqladapter.ErrQueryFailed)
	assert.True(t, logHandler.HasLog(slog.LevelError, "database query execution failed"))
}

func Test_Adapter_LogsAndMeasuresStatements(t *testing.T) {
	// setup
	ctx := context.Background()
	logHandler := ormtest.NewLogHandlerSpy(false)
	metrics := ormtest.NewMetricsCollectorSpy()
	adapter := handles()[0].open(t,
		sqladapter.WithLogger(slog.New(logHandler)),
		sqladapter.WithMetrics(metrics),
	)
	engine := newEngine(t, adapter)
	tagModel, _ := engine.Model(ormtest.ModelTag)

	// act
	_, err := engine.Factory(ctx, tagModel, 1)

	// assert
	require.NoError(t, err)
	record := logHandler.FindLog(slog.LevelDebug, "executed sql for: query")
	require.NotNil(t, record)
	assert.Contains(t, ormtest.AttrValue(record, "query"), `FROM "tags"`)

	durations := metrics.GetDurationRecords()
	require.Len(t, durations, 1)
	assert.Equal(t, sqladapter.MetricStatementDuration, durations[0].Metric)
	assert.Equal(t, "tags", durations[0].Labels[sqladapter.LabelTable])
	assert.Equal(t, "query", durations[0].Labels[sqladapter.LabelAction])
}

func Test_Adapter_TranslateValue(t *testing.T) {
	// setup
	sqlite := handles()[0].open(t)
	postgres, err := sqladapter.NewAdapterFromSQLDB(openSQLite(t))
	require.NoError(t, err)
	at := time.Date(2024, 5, 1, 14, 0, 0, 0, time.FixedZone("CEST", 2*3600))

	// assert
	assert.Equal(t, "2024-05-01 12:00:00", sqlite.TranslateValue(at))
	assert.Equal(t, int64(1), sqlite.TranslateValue(true))
	assert.Equal(t, at, postgres.TranslateValue(at))
	assert.Equal(t, true, postgres.TranslateValue(true))
	assert.Equal(t, `{"a":[1,2]}`, sqlite.TranslateValue(map[string]any{"a": []any{1, 2}}))
	assert.Equal(t, "x", sqlite.TranslateValue("x"))
}
