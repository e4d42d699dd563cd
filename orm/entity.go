package orm

import (
	"context"
	"fmt"
	"maps"
	"slices"

	jsoniter "github.com/json-iterator/go"
)

// Entity is one instance of a model, bound to a row once it has an id.
// An Entity is not safe for concurrent use.
type Entity struct {
	engine          *Engine
	model           *Model
	adapter         Adapter
	adapterOverride bool
	id              any
	values          Values
	history         []Values
	related         map[string]any
}

func (en *Entity) Model() *Model {
	return en.model
}

func (en *Entity) ID() any {
	return en.id
}

func (en *Entity) SetID(id any) {
	en.id = normalizeID(id)
}

// IsSaved reports whether the entity has an id.
func (en *Entity) IsSaved() bool {
	return en.id != nil
}

// Adapter returns the adapter the entity persists through.
func (en *Entity) Adapter() Adapter {
	return en.adapter
}

// Get returns the value of a declared field, or the id for "id".
func (en *Entity) Get(field string) any {
	if field == IDField {
		return en.id
	}

	return en.values[field]
}

// Set assigns a declared field. Setting "id" is the same as SetID.
func (en *Entity) Set(field string, value any) error {
	if field == IDField {
		en.SetID(value)
		return nil
	}

	if !en.model.HasField(field) {
		return wrapModelError(ErrUnknownField, en.model.name, field)
	}

	en.values[field] = value

	return nil
}

// MustSet is Set for field names known to be declared. It panics otherwise.
func (en *Entity) MustSet(field string, value any) *Entity {
	if err := en.Set(field, value); err != nil {
		panic(err)
	}

	return en
}

// Values returns a copy of the declared field values, without the id.
func (en *Entity) Values() Values {
	return maps.Clone(en.values)
}

func (en *Entity) applyRow(row Row) error {
	values, err := en.adapter.ProcessValues(en.model, row)
	if err != nil {
		return err
	}

	if id, ok := values[IDField]; ok && id != nil {
		en.id = normalizeID(id)
	}

	for _, field := range en.model.fields {
		if value, ok := values[field.Name]; ok {
			en.values[field.Name] = value
		}
	}

	return nil
}

/***** lifecycle *****/

// Read loads the entity by id. Without an id, the first non-nil field in declaration order
// is used to look the record up by value.
func (en *Entity) Read(ctx context.Context) error {
	return en.engine.observe(ctx, operationRead, en.model, func(ctx context.Context) error {
		if err := en.model.requireTable(); err != nil {
			return err
		}

		if en.id != nil {
			row, err := en.adapter.Read(ctx, en.model, en.id)
			if err != nil {
				return err
			}

			if row == nil {
				return errRecordNotFound(en.model.name, IDField, en.id)
			}

			return en.applyRow(row)
		}

		for _, field := range en.model.fields {
			value := en.values[field.Name]
			if value == nil {
				continue
			}

			rows, err := en.adapter.ReadBy(ctx, en.model, field.Name, []any{value})
			if err != nil {
				return err
			}

			if len(rows) == 0 {
				return errRecordNotFound(en.model.name, field.Name, value)
			}

			return en.applyRow(rows[0])
		}

		return errNoIdentifyingValue(en.model.name)
	})
}

// Write inserts an unsaved entity and takes over the returned id, or updates a saved one.
func (en *Entity) Write(ctx context.Context) error {
	return en.engine.observe(ctx, operationWrite, en.model, func(ctx context.Context) error {
		if err := en.model.requireTable(); err != nil {
			return err
		}

		if en.id != nil {
			return en.adapter.Update(ctx, en.model, en.id, en.Values())
		}

		values := en.Values()
		if id := en.adapter.DefaultID(); id != nil {
			values[IDField] = id
		}

		id, err := en.adapter.Insert(ctx, en.model, values)
		if err != nil {
			return err
		}

		en.id = normalizeID(id)

		return nil
	})
}

// Delete removes the record. Join table links and dependent records are left untouched.
func (en *Entity) Delete(ctx context.Context) error {
	return en.engine.observe(ctx, operationDelete, en.model, func(ctx context.Context) error {
		if en.id == nil {
			return errDeleteWithoutID()
		}

		if err := en.model.requireTable(); err != nil {
			return err
		}

		return en.adapter.Delete(ctx, en.model, en.id)
	})
}

/***** snapshots *****/

// Snapshot records a copy of the current field values.
func (en *Entity) Snapshot() {
	en.history = append(en.history, en.Values())
}

// States returns copies of all snapshots, oldest first.
func (en *Entity) States() []Values {
	states := make([]Values, len(en.history))
	for i, state := range en.history {
		states[i] = maps.Clone(state)
	}

	return states
}

/***** relations *****/

// Parent reads the entity the foreign key field fk points to.
func (en *Entity) Parent(ctx context.Context, fk string) (*Entity, error) {
	var parent *Entity

	err := en.engine.observe(ctx, operationParent, en.model, func(ctx context.Context) error {
		if !en.model.HasField(fk) {
			return errNotForeignKey(fk, en.model.name)
		}

		target, err := en.belongsToTarget(fk)
		if err != nil {
			return err
		}

		if en.values[fk] == nil {
			return errNoIdentifyingValue(target.name)
		}

		parent = en.engine.Create(target, WithID(en.values[fk]))
		parent.adapter = en.engine.relatedAdapter(en, target)
		parent.adapterOverride = en.adapterOverride

		return parent.Read(ctx)
	})

	if err != nil {
		return nil, err
	}

	return parent, nil
}

func (en *Entity) belongsToTarget(fk string) (*Model, error) {
	for _, rel := range en.model.Relations() {
		if rel.Kind == BelongsTo && rel.ForeignKey == fk {
			return en.engine.registry.Model(rel.Target)
		}
	}

	return nil, fmt.Errorf("%w: no model is referenced by %s.%s", ErrUnknownClass, en.model.name, fk)
}

func (en *Entity) manyToMany(target *Model) (Relation, error) {
	rel, ok := en.model.ManyToMany(target.name)
	if !ok {
		return Relation{}, errNoManyToMany(en.model.name, target.name)
	}

	return rel, nil
}

// Siblings reads the target entities linked to this one through the join table.
// An unsaved entity has no siblings.
func (en *Entity) Siblings(ctx context.Context, target *Model) ([]*Entity, error) {
	siblings := make([]*Entity, 0)

	err := en.engine.observe(ctx, operationSiblings, en.model, func(ctx context.Context) error {
		rel, err := en.manyToMany(target)
		if err != nil {
			return err
		}

		if en.id == nil {
			return nil
		}

		adapter := en.engine.relatedAdapter(en, target)

		rows, err := adapter.BelongsToMany(ctx, target, rel.JoinTable, rel.LocalKey, rel.ForeignKey, []any{en.id})
		if err != nil {
			return err
		}

		siblings, err = en.engine.materialize(target, adapter, en.adapterOverride, rows)

		return err
	})

	if err != nil {
		return nil, err
	}

	return siblings, nil
}

func (en *Entity) hasManyOf(target *Model) (Relation, bool) {
	for _, rel := range en.model.Relations() {
		if rel.Kind == HasMany && rel.Target == target.name {
			return rel, true
		}
	}

	return Relation{}, false
}

// Children reads the target entities whose foreign key references this one.
func (en *Entity) Children(ctx context.Context, target *Model) ([]*Entity, error) {
	children := make([]*Entity, 0)

	err := en.engine.observe(ctx, operationChildren, en.model, func(ctx context.Context) error {
		rel, ok := en.hasManyOf(target)
		if !ok {
			return fmt.Errorf("%w: %s has no children of %s", ErrUnknownRelation, en.model.name, target.name)
		}

		if en.id == nil {
			return nil
		}

		adapter := en.engine.relatedAdapter(en, target)

		rows, err := adapter.HasMany(ctx, target, rel.ForeignKey, []any{en.id})
		if err != nil {
			return err
		}

		children, err = en.engine.materialize(target, adapter, en.adapterOverride, rows)

		return err
	})

	if err != nil {
		return nil, err
	}

	return children, nil
}

// Add links targets to this entity through the join table. Existing links are kept.
func (en *Entity) Add(ctx context.Context, targets ...*Entity) error {
	return en.mutateLinks(ctx, operationAdd, "add", targets, func(ctx context.Context, rel Relation, ids []any) error {
		return en.adapter.Add(ctx, rel.JoinTable, rel.LocalKey, rel.ForeignKey, en.id, ids)
	})
}

// Remove unlinks targets from this entity.
func (en *Entity) Remove(ctx context.Context, targets ...*Entity) error {
	return en.mutateLinks(ctx, operationRemove, "remove", targets, func(ctx context.Context, rel Relation, ids []any) error {
		return en.adapter.Remove(ctx, rel.JoinTable, rel.LocalKey, rel.ForeignKey, en.id, ids)
	})
}

// RemoveAll unlinks every entity of target from this one.
func (en *Entity) RemoveAll(ctx context.Context, target *Model) error {
	return en.engine.observe(ctx, operationRemoveAll, en.model, func(ctx context.Context) error {
		rel, err := en.manyToMany(target)
		if err != nil {
			return err
		}

		if en.id == nil {
			return errJoinWithoutID("remove", target.name, en.model.name)
		}

		return en.adapter.RemoveAll(ctx, rel.JoinTable, rel.LocalKey, en.id)
	})
}

func linkTargetName(targets []*Entity) string {
	if len(targets) == 0 {
		return "entities"
	}

	return targets[0].model.name
}

func (en *Entity) mutateLinks(
	ctx context.Context,
	operation string,
	action string,
	targets []*Entity,
	apply func(ctx context.Context, rel Relation, ids []any) error,
) error {
	return en.engine.observe(ctx, operation, en.model, func(ctx context.Context) error {
		if en.id == nil {
			return errJoinWithoutID(action, linkTargetName(targets), en.model.name)
		}

		// targets are grouped per model, each model being its own join table
		grouped := make(map[*Model][]any)
		order := make([]*Model, 0)

		for _, target := range targets {
			if target.id == nil {
				return errJoinWithoutID(action, target.model.name, target.model.name)
			}

			if _, err := en.manyToMany(target.model); err != nil {
				return err
			}

			if _, seen := grouped[target.model]; !seen {
				order = append(order, target.model)
			}

			grouped[target.model] = append(grouped[target.model], target.id)
		}

		for _, model := range order {
			rel, _ := en.manyToMany(model)
			if err := apply(ctx, rel, grouped[model]); err != nil {
				return err
			}
		}

		return nil
	})
}

/***** eager-loaded relations *****/

// Related returns the eager-loaded value stored under property: a *Entity, a []*Entity, or nil.
func (en *Entity) Related(property string) (any, bool) {
	value, ok := en.related[property]
	return value, ok
}

// RelatedOne returns the eager-loaded single entity under property.
func (en *Entity) RelatedOne(property string) *Entity {
	one, _ := en.related[property].(*Entity)
	return one
}

// RelatedMany returns the eager-loaded entities under property.
func (en *Entity) RelatedMany(property string) []*Entity {
	many, _ := en.related[property].([]*Entity)
	return slices.Clone(many)
}

func (en *Entity) setRelated(property string, value any) {
	if en.related == nil {
		en.related = make(map[string]any)
	}

	en.related[property] = value
}

// EagerLoad loads the relations named in spec into this entity.
func (en *Entity) EagerLoad(ctx context.Context, spec *EagerLoad) error {
	return en.engine.EagerLoad(ctx, spec, en)
}

// MarshalJSON renders id, fields in declaration order, and eager-loaded relations.
func (en *Entity) MarshalJSON() ([]byte, error) {
	stream := jsoniter.ConfigCompatibleWithStandardLibrary.BorrowStream(nil)
	defer jsoniter.ConfigCompatibleWithStandardLibrary.ReturnStream(stream)

	stream.WriteObjectStart()
	stream.WriteObjectField(IDField)
	stream.WriteVal(en.id)

	for _, field := range en.model.fields {
		stream.WriteMore()
		stream.WriteObjectField(field.Name)
		stream.WriteVal(en.values[field.Name])
	}

	properties := slices.Sorted(maps.Keys(en.related))
	for _, property := range properties {
		stream.WriteMore()
		stream.WriteObjectField(property)
		stream.WriteVal(en.related[property])
	}

	stream.WriteObjectEnd()

	if stream.Error != nil {
		return nil, stream.Error
	}

	return slices.Clone(stream.Buffer()), nil
}
