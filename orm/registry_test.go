package orm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/active-record-orm-go/orm"
	"github.com/AntonStoeckl/active-record-orm-go/testutil/ormtest"
)

func Test_Registry_InfersBelongsToAndHasMany(t *testing.T) {
	// setup
	registry := ormtest.NewFixtureRegistry(t)

	// act
	address, err := registry.Model("Address")
	require.NoError(t, err)
	person, err := registry.Model("Person")
	require.NoError(t, err)

	// assert
	belongsTo, ok := address.Relation("Person")
	require.True(t, ok)
	assert.Equal(t, orm.BelongsTo, belongsTo.Kind)
	assert.Equal(t, "person", belongsTo.Property)
	assert.Equal(t, "person_id", belongsTo.ForeignKey)
	assert.True(t, belongsTo.Inferred())

	hasMany, ok := person.Relation("addresses")
	require.True(t, ok, "relations are found by property too")
	assert.Equal(t, orm.HasMany, hasMany.Kind)
	assert.Equal(t, "Address", hasMany.Target)
	assert.Equal(t, "person_id", hasMany.ForeignKey)
}

func Test_Registry_InfersSymmetricJoinTables(t *testing.T) {
	// setup
	registry := ormtest.NewFixtureRegistry(t)
	product, _ := registry.Model("Product")
	tag, _ := registry.Model("Tag")

	// act
	productToTags, okA := product.Relation("Tag")
	tagToProducts, okB := tag.Relation("Product")

	// assert
	require.True(t, okA)
	require.True(t, okB)
	assert.Equal(t, orm.BelongsToMany, productToTags.Kind)
	assert.Equal(t, "product_tags", productToTags.JoinTable)
	assert.Equal(t, productToTags.JoinTable, tagToProducts.JoinTable)
	assert.Equal(t, "product_id", productToTags.LocalKey)
	assert.Equal(t, "tag_id", productToTags.ForeignKey)
	assert.Equal(t, "tag_id", tagToProducts.LocalKey)
	assert.Equal(t, "product_id", tagToProducts.ForeignKey)
	assert.Equal(t, "tags", productToTags.Property)
	assert.Equal(t, "products", tagToProducts.Property)
}

func Test_Registry_ResolvesForwardReferences(t *testing.T) {
	// setup
	registry, err := orm.NewRegistry()
	require.NoError(t, err)

	// act
	require.NoError(t, registry.Register(orm.ModelDef{
		Name:      "Address",
		TableName: "addresses",
		Fields:    []orm.Field{orm.F("person_id", orm.TypeInteger)},
	}))
	address, _ := registry.Model("Address")
	_, before := address.Relation("Person")

	require.NoError(t, registry.Register(orm.ModelDef{Name: "Person", TableName: "persons"}))
	_, after := address.Relation("Person")

	// assert
	assert.False(t, before)
	assert.True(t, after)
}

func Test_Registry_ExplicitRelationsWin(t *testing.T) {
	// setup
	registry, err := orm.NewRegistry()
	require.NoError(t, err)

	// act
	err = registry.Register(
		orm.ModelDef{Name: "Person", TableName: "persons"},
		orm.ModelDef{
			Name:      "Address",
			TableName: "addresses",
			Fields:    []orm.Field{orm.F("person_id", orm.TypeInteger), orm.F("owner_id", orm.TypeInteger)},
			Relations: []orm.Relation{orm.NewBelongsTo("Person", "owner_id")},
		},
	)
	require.NoError(t, err)

	// assert
	address, _ := registry.Model("Address")
	rel, ok := address.Relation("Person")
	require.True(t, ok)
	assert.Equal(t, "owner_id", rel.ForeignKey)
	assert.False(t, rel.Inferred())
}

func Test_Registry_When_ForeignKeyAndJoinTableShareATarget(t *testing.T) {
	// setup
	registry, err := orm.NewRegistry()
	require.NoError(t, err)

	// act
	err = registry.Register(
		orm.ModelDef{Name: "Person", TableName: "persons", JoinTablePrefix: "person"},
		orm.ModelDef{
			Name:            "Project",
			TableName:       "projects",
			JoinTablePrefix: "project",
			Fields:          []orm.Field{orm.F("person_id", orm.TypeInteger)},
		},
	)
	require.NoError(t, err)

	// assert
	project, _ := registry.Model("Project")

	named, ok := project.Relation("Person")
	require.True(t, ok)
	assert.Equal(t, orm.BelongsTo, named.Kind)

	joined, ok := project.ManyToMany("Person")
	require.True(t, ok)
	assert.Equal(t, orm.BelongsToMany, joined.Kind)
	assert.Equal(t, "person_projects", joined.JoinTable)
	assert.Equal(t, "project_id", joined.LocalKey)
	assert.Equal(t, "person_id", joined.ForeignKey)
}

func Test_Registry_When_ModelReferencesItself(t *testing.T) {
	// setup
	registry, err := orm.NewRegistry()
	require.NoError(t, err)

	// act
	err = registry.Register(orm.ModelDef{
		Name:            "Person",
		TableName:       "persons",
		JoinTablePrefix: "person",
		Fields:          []orm.Field{orm.F("name", orm.TypeString), orm.F("person_id", orm.TypeInteger)},
	})
	require.NoError(t, err)

	// assert
	person, _ := registry.Model("Person")

	belongsTo, ok := person.Relation("Person")
	require.True(t, ok)
	assert.Equal(t, orm.BelongsTo, belongsTo.Kind)
	assert.Equal(t, "person_id", belongsTo.ForeignKey)

	kinds := make([]orm.RelationKind, 0)
	for _, rel := range person.Relations() {
		assert.Equal(t, "Person", rel.Target)
		kinds = append(kinds, rel.Kind)
	}
	assert.ElementsMatch(t, []orm.RelationKind{orm.BelongsTo, orm.HasMany}, kinds)

	_, joined := person.ManyToMany("Person")
	assert.False(t, joined)
}

func Test_Registry_ClassPrefix(t *testing.T) {
	// setup
	registry := ormtest.NewFixtureRegistry(t, orm.WithClassPrefix("model/"))

	// act
	qualified, errA := registry.Model("model/Person")
	bare, errB := registry.Model("Person")
	_, errC := registry.Model("models/Person")

	// assert
	require.NoError(t, errA)
	require.NoError(t, errB)
	assert.Same(t, qualified, bare)
	assert.ErrorIs(t, errC, orm.ErrUnknownClass)
}

func Test_Registry_Register_RejectsInvalidDefinitions(t *testing.T) {
	tests := []struct {
		name     string
		defs     []orm.ModelDef
		expected error
	}{
		{
			name:     "empty_name",
			defs:     []orm.ModelDef{{TableName: "x"}},
			expected: orm.ErrEmptyModelName,
		},
		{
			name:     "duplicate_model",
			defs:     []orm.ModelDef{{Name: "Person"}, {Name: "Person"}},
			expected: orm.ErrDuplicateModel,
		},
		{
			name:     "duplicate_field",
			defs:     []orm.ModelDef{{Name: "Person", Fields: []orm.Field{orm.F("name", orm.TypeString), orm.F("name", orm.TypeString)}}},
			expected: orm.ErrDuplicateField,
		},
		{
			name:     "reserved_id_field",
			defs:     []orm.ModelDef{{Name: "Person", Fields: []orm.Field{orm.F("id", orm.TypeInteger)}}},
			expected: orm.ErrReservedField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// setup
			registry, err := orm.NewRegistry()
			require.NoError(t, err)

			// act
			err = registry.Register(tt.defs...)

			// assert
			assert.ErrorIs(t, err, tt.expected)
			assert.Empty(t, registry.Models(), "a failed registration registers nothing")
		})
	}
}

func Test_Model_AbstractWithoutTableName(t *testing.T) {
	// setup
	registry, err := orm.NewRegistry()
	require.NoError(t, err)
	require.NoError(t, registry.Register(orm.ModelDef{Name: "ORM"}))

	// act
	m, err := registry.Model("ORM")

	// assert
	require.NoError(t, err)
	assert.True(t, m.Abstract())
	assert.Empty(t, m.TableName())
}

func Test_JoinTableFor_IsSymmetric(t *testing.T) {
	assert.Equal(t, "product_tags", orm.JoinTableFor("product", "tag"))
	assert.Equal(t, "product_tags", orm.JoinTableFor("tag", "product"))
	assert.Equal(t, "person_id", orm.ForeignKeyFor("model/Person"))
}
