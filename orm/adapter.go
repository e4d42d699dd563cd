package orm

import (
	"context"
	"fmt"
)

// Row is one raw record as the backend stores it, keyed by column name.
type Row map[string]any

// Values holds typed field values keyed by field name.
type Values map[string]any

// KeyValues selects records by equality; a []any value means IN.
type KeyValues map[string]any

// Adapter is the persistence contract every backend implements.
// Read returns (nil, nil) when no row matches. Errors are returned unmodified to the caller.
type Adapter interface {
	Read(ctx context.Context, m *Model, id any) (Row, error)
	Insert(ctx context.Context, m *Model, values Values) (any, error)
	Update(ctx context.Context, m *Model, id any, values Values) error
	Delete(ctx context.Context, m *Model, id any) error

	ReadAll(ctx context.Context, m *Model, kv KeyValues) ([]Row, error)
	ReadBy(ctx context.Context, m *Model, field string, values []any) ([]Row, error)
	ReadWith(ctx context.Context, m *Model, predicates Predicates) ([]Row, error)
	Count(ctx context.Context, m *Model, kv KeyValues) (int64, error)

	DeleteAll(ctx context.Context, m *Model, kv KeyValues) (int64, error)
	DeleteBy(ctx context.Context, m *Model, field string, values []any) (int64, error)
	DeleteWith(ctx context.Context, m *Model, predicates Predicates) (int64, error)

	UpdateAll(ctx context.Context, m *Model, kv KeyValues, values Values) (int64, error)
	UpdateBy(ctx context.Context, m *Model, field string, candidates []any, values Values) (int64, error)
	UpdateWith(ctx context.Context, m *Model, predicates Predicates, values Values) (int64, error)

	InsertAll(ctx context.Context, m *Model, columns []string, rows [][]any) (int64, error)

	// HasMany returns target rows whose foreignKey is one of ownerIDs.
	HasMany(ctx context.Context, target *Model, foreignKey string, ownerIDs []any) ([]Row, error)

	// BelongsToMany returns target rows linked to ownerIDs through joinTable.
	// Every row carries the localKey column so results can be grouped per owner.
	BelongsToMany(ctx context.Context, target *Model, joinTable, localKey, foreignKey string, ownerIDs []any) ([]Row, error)

	// Add links targetIDs to ownerID; existing links are kept, not duplicated.
	Add(ctx context.Context, joinTable, localKey, foreignKey string, ownerID any, targetIDs []any) error
	Remove(ctx context.Context, joinTable, localKey, foreignKey string, ownerID any, targetIDs []any) error
	RemoveAll(ctx context.Context, joinTable, localKey string, ownerID any) error

	// ProcessValues coerces a raw row into typed field values. Missing columns are skipped.
	ProcessValues(m *Model, row Row) (Values, error)

	// DefaultID is handed to Insert as the id of an unsaved entity. Nil leaves key generation to Insert.
	DefaultID() any
	UUID() string
	TranslateValue(value any) any
}

// ProcessRow coerces the declared fields and the id of a raw row with Coerce.
// Adapters can use it as their ProcessValues implementation.
func ProcessRow(m *Model, row Row) (Values, error) {
	values := make(Values, len(m.fields)+1)

	if raw, ok := row[IDField]; ok {
		values[IDField] = normalizeID(raw)
	}

	for _, field := range m.fields {
		raw, ok := row[field.Name]
		if !ok {
			continue
		}

		coerced, err := Coerce(field.Type, raw)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", m.name, field.Name, err)
		}

		values[field.Name] = coerced
	}

	return values, nil
}

// normalizeID turns driver-specific integer and byte representations into int64 or string.
func normalizeID(raw any) any {
	switch v := raw.(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case uint32:
		return int64(v)
	case []byte:
		return string(v)
	default:
		return v
	}
}

// idKey is the grouping key for identifiers of differing numeric representations.
func idKey(id any) string {
	return fmt.Sprint(normalizeID(id))
}
