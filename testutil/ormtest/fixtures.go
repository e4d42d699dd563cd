package ormtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/active-record-orm-go/orm"
)

// Fixture model names.
const (
	ModelProduct = "Product"
	ModelTag     = "Tag"
	ModelPerson  = "Person"
	ModelAddress = "Address"
)

// FixtureCreatedAt is the created_at value of every seeded product.
var FixtureCreatedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// FixtureModels declares a small shop domain:
// Address belongs to Person through person_id, Product and Tag are linked through product_tags.
func FixtureModels() []orm.ModelDef {
	return []orm.ModelDef{
		{
			Name:            ModelProduct,
			TableName:       "products",
			JoinTablePrefix: "product",
			Fields: []orm.Field{
				orm.F("name", orm.TypeString),
				orm.F("price", orm.TypeInteger),
				{Name: "available", Type: orm.TypeBoolean, Default: true},
				orm.F("created_at", orm.TypeDateTime),
			},
		},
		{
			Name:            ModelTag,
			TableName:       "tags",
			JoinTablePrefix: "tag",
			Fields: []orm.Field{
				orm.F("name", orm.TypeString),
			},
		},
		{
			Name:      ModelPerson,
			TableName: "persons",
			Fields: []orm.Field{
				orm.F("name", orm.TypeString),
			},
		},
		{
			Name:      ModelAddress,
			TableName: "addresses",
			Fields: []orm.Field{
				orm.F("address", orm.TypeString),
				orm.F("person_id", orm.TypeInteger),
			},
		},
	}
}

// NewFixtureRegistry registers FixtureModels in a fresh Registry.
func NewFixtureRegistry(t testing.TB, options ...orm.RegistryOption) *orm.Registry {
	t.Helper()

	registry, err := orm.NewRegistry(options...)
	require.NoError(t, err)
	require.NoError(t, registry.Register(FixtureModels()...))

	return registry
}

// NewFixtureEngine wires a fixture registry, a seeded MemoryAdapter, and an Engine.
func NewFixtureEngine(t testing.TB, options ...orm.Option) (*orm.Engine, *MemoryAdapter) {
	t.Helper()

	adapter := NewMemoryAdapter()
	SeedFixtures(adapter)

	engine, err := orm.NewEngine(NewFixtureRegistry(t), adapter, options...)
	require.NoError(t, err)

	return engine, adapter
}

// MustModel resolves a model or fails the test.
func MustModel(t testing.TB, engine *orm.Engine, name string) *orm.Model {
	t.Helper()

	m, err := engine.Model(name)
	require.NoError(t, err)

	return m
}

// SeedFixtures fills adapter with the fixture data set:
//
//	persons:      1 Peter, 2 Alice, 3 Bob
//	addresses:    2 -> Peter, 3 -> Alice, 11 -> Alice, 20 -> Bob
//	products:     1 milk, 22 bread, 55 one, 60-62 test, 88 Foo
//	product_tags: 1 -> white, 22 -> white and liquid
func SeedFixtures(adapter *MemoryAdapter) {
	adapter.Seed("persons",
		orm.Row{"id": 1, "name": "Peter"},
		orm.Row{"id": 2, "name": "Alice"},
		orm.Row{"id": 3, "name": "Bob"},
	)

	adapter.Seed("addresses",
		orm.Row{"id": 2, "address": "1 Main Street", "person_id": 1},
		orm.Row{"id": 3, "address": "2 Side Street", "person_id": 2},
		orm.Row{"id": 11, "address": "3 Hill Road", "person_id": 2},
		orm.Row{"id": 20, "address": "4 Lake View", "person_id": 3},
	)

	adapter.Seed("products",
		product(1, "milk", 100, true),
		product(22, "bread", 200, true),
		product(55, "one", 10, false),
		product(60, "test", 100, true),
		product(61, "test", 100, false),
		product(62, "test", 300, true),
		product(88, "Foo", 5, true),
	)

	adapter.Seed("tags",
		orm.Row{"id": 1, "name": "white"},
		orm.Row{"id": 2, "name": "liquid"},
		orm.Row{"id": 3, "name": "fresh"},
	)

	adapter.Seed("product_tags",
		orm.Row{"product_id": 1, "tag_id": 1},
		orm.Row{"product_id": 22, "tag_id": 1},
		orm.Row{"product_id": 22, "tag_id": 2},
	)
}

func product(id int, name string, price int, available bool) orm.Row {
	return orm.Row{
		"id":         id,
		"name":       name,
		"price":      price,
		"available":  available,
		"created_at": FixtureCreatedAt,
	}
}
