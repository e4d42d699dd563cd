package orm

import (
	"slices"
)

// IDField is the reserved identifier column every persisted model has.
const IDField = "id"

// ModelDef declares a model class. An empty TableName makes the model abstract:
// instances can be created but never persisted.
type ModelDef struct {
	Name            string
	TableName       string
	Fields          []Field
	JoinTablePrefix string
	Relations       []Relation
	Adapter         Adapter
}

// Model is the registered, immutable metadata of a model class.
type Model struct {
	name            string
	tableName       string
	joinTablePrefix string
	fields          []Field
	fieldIndex      map[string]int
	explicit        []Relation
	adapter         Adapter
	registry        *Registry
}

func newModel(def ModelDef, registry *Registry) (*Model, error) {
	if def.Name == "" {
		return nil, ErrEmptyModelName
	}

	m := &Model{
		name:            def.Name,
		tableName:       def.TableName,
		joinTablePrefix: def.JoinTablePrefix,
		fields:          slices.Clone(def.Fields),
		fieldIndex:      make(map[string]int, len(def.Fields)),
		explicit:        slices.Clone(def.Relations),
		adapter:         def.Adapter,
		registry:        registry,
	}

	for i, field := range m.fields {
		if field.Name == IDField {
			return nil, wrapModelError(ErrReservedField, def.Name, field.Name)
		}

		if _, exists := m.fieldIndex[field.Name]; exists {
			return nil, wrapModelError(ErrDuplicateField, def.Name, field.Name)
		}

		m.fieldIndex[field.Name] = i
	}

	return m, nil
}

func (m *Model) Name() string {
	return m.name
}

func (m *Model) TableName() string {
	return m.tableName
}

func (m *Model) JoinTablePrefix() string {
	return m.joinTablePrefix
}

// Abstract reports whether the model lacks a table.
func (m *Model) Abstract() bool {
	return m.tableName == ""
}

// Fields returns the declared fields in declaration order.
func (m *Model) Fields() []Field {
	return slices.Clone(m.fields)
}

func (m *Model) FieldNames() []string {
	names := make([]string, len(m.fields))
	for i, field := range m.fields {
		names[i] = field.Name
	}

	return names
}

func (m *Model) Field(name string) (Field, bool) {
	i, ok := m.fieldIndex[name]
	if !ok {
		return Field{}, false
	}

	return m.fields[i], true
}

func (m *Model) HasField(name string) bool {
	_, ok := m.fieldIndex[name]
	return ok
}

// Adapter returns the model level adapter override, nil when none was declared.
func (m *Model) Adapter() Adapter {
	return m.adapter
}

// Relation looks up a relation by name or property, e.g. "Person" or "person".
func (m *Model) Relation(nameOrProperty string) (Relation, bool) {
	if m.registry == nil {
		return Relation{}, false
	}

	return m.registry.relation(m.name, nameOrProperty)
}

// ManyToMany returns the join table relation to target, e.g. "Tag".
func (m *Model) ManyToMany(target string) (Relation, bool) {
	if m.registry == nil {
		return Relation{}, false
	}

	return m.registry.manyToMany(m.name, target)
}

// Relations returns all resolved relations of the model ordered by name.
func (m *Model) Relations() []Relation {
	if m.registry == nil {
		return nil
	}

	return m.registry.relationsOf(m.name)
}

// Registry returns the registry the model is registered in.
func (m *Model) Registry() *Registry {
	return m.registry
}

// validateFields rejects names that are neither declared fields nor the id column.
func (m *Model) validateFields(names ...string) error {
	for _, name := range names {
		if name != IDField && !m.HasField(name) {
			return wrapModelError(ErrUnknownField, m.name, name)
		}
	}

	return nil
}

func (m *Model) requireTable() error {
	if m.Abstract() {
		return wrapModelError(ErrEmptyTableName, m.name, "")
	}

	return nil
}
