// Package orm provides an active-record style object mapper over pluggable persistence adapters.
//
// Models are declared once and registered in a Registry, which infers relations from naming
// conventions:
//   - BelongsTo: a field named "<model>_id" references that model (Address.person_id -> Person)
//   - HasMany: the reverse of every BelongsTo (Person -> Address)
//   - BelongsToMany: two models with a JoinTablePrefix are linked through "<a>_<bs>" (product_tags)
//
// An Engine binds models to an Adapter and creates Entity instances, which read, write, and
// delete themselves and reach related entities through Parent, Siblings, and Children.
// Relation graphs can be eager loaded with one adapter call per relation and level.
//
// Common usage pattern:
//
//	registry, _ := orm.NewRegistry()
//	err := registry.Register(
//		orm.ModelDef{Name: "Person", TableName: "persons", Fields: []orm.Field{orm.F("name", orm.TypeString)}},
//		orm.ModelDef{Name: "Address", TableName: "addresses", Fields: []orm.Field{
//			orm.F("address", orm.TypeString),
//			orm.F("person_id", orm.TypeInteger),
//		}},
//	)
//
//	engine, err := orm.NewEngine(registry, adapter, orm.WithLogger(slog.Default()))
//	addressModel, _ := engine.Model("Address")
//
//	home, err := engine.Factory(ctx, addressModel, 11)
//	err = home.EagerLoad(ctx, orm.With("Person").Load("person", orm.With("Address")))
//	owner := home.RelatedOne("person")
//
// Failures that callers branch on are *Error values wrapping one of ErrNoIdentifyingValue,
// ErrMissingIdentity, ErrRecordNotFound, ErrUnknownForeignKey, or ErrNoManyToManyRelation.
// Adapter errors are returned unchanged.
package orm
