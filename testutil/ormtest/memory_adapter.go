package ormtest

import (
	"context"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/active-record-orm-go/orm"
)

// Call is one recorded adapter invocation.
type Call struct {
	Method string
	Table  string
}

// MemoryAdapter is an orm.Adapter keeping tables in memory. It records every call so tests can
// assert how many round trips an operation needed.
type MemoryAdapter struct {
	mu       sync.Mutex
	tables   map[string][]orm.Row
	nextID   map[string]int64
	calls    []Call
	failures map[string]error
	uuidKeys bool
}

var _ orm.Adapter = (*MemoryAdapter)(nil)

// MemoryAdapterOption defines a functional option for configuring a MemoryAdapter.
type MemoryAdapterOption func(*MemoryAdapter)

// WithUUIDKeys makes Insert generate UUID strings instead of auto-increment integers.
func WithUUIDKeys() MemoryAdapterOption {
	return func(a *MemoryAdapter) {
		a.uuidKeys = true
	}
}

func NewMemoryAdapter(options ...MemoryAdapterOption) *MemoryAdapter {
	a := &MemoryAdapter{
		tables:   make(map[string][]orm.Row),
		nextID:   make(map[string]int64),
		calls:    make([]Call, 0),
		failures: make(map[string]error),
	}

	for _, option := range options {
		option(a)
	}

	return a
}

/***** test controls *****/

// Seed appends rows to table. Rows with an integer id move the auto-increment counter past it.
func (a *MemoryAdapter) Seed(table string, rows ...orm.Row) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, row := range rows {
		stored := maps.Clone(row)
		if id, ok := toInt64(stored[orm.IDField]); ok {
			stored[orm.IDField] = id
			if id >= a.nextID[table] {
				a.nextID[table] = id
			}
		}

		a.tables[table] = append(a.tables[table], stored)
	}
}

// Rows returns copies of all rows of table in storage order.
func (a *MemoryAdapter) Rows(table string) []orm.Row {
	a.mu.Lock()
	defer a.mu.Unlock()

	return cloneRows(a.tables[table])
}

// Calls returns all recorded calls in order.
func (a *MemoryAdapter) Calls() []Call {
	a.mu.Lock()
	defer a.mu.Unlock()

	return slices.Clone(a.calls)
}

// CallCount counts recorded calls of method.
func (a *MemoryAdapter) CallCount(method string) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	count := 0
	for _, call := range a.calls {
		if call.Method == method {
			count++
		}
	}

	return count
}

func (a *MemoryAdapter) ResetCalls() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls = a.calls[:0]
}

// FailOn makes every subsequent call of method return err.
func (a *MemoryAdapter) FailOn(method string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.failures[method] = err
}

// begin records the call and returns the injected failure, if any. Callers hold the lock.
func (a *MemoryAdapter) begin(method, table string) error {
	a.calls = append(a.calls, Call{Method: method, Table: table})

	return a.failures[method]
}

/***** single entity *****/

func (a *MemoryAdapter) Read(_ context.Context, m *orm.Model, id any) (orm.Row, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.begin("Read", m.TableName()); err != nil {
		return nil, err
	}

	for _, row := range a.tables[m.TableName()] {
		if looseEqual(row[orm.IDField], id) {
			return maps.Clone(row), nil
		}
	}

	return nil, nil
}

func (a *MemoryAdapter) Insert(_ context.Context, m *orm.Model, values orm.Values) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.begin("Insert", m.TableName()); err != nil {
		return nil, err
	}

	id, ok := values[orm.IDField]
	if !ok || id == nil {
		id = a.newID(m.TableName())
	}

	row := orm.Row{}
	maps.Copy(row, values)
	row[orm.IDField] = id
	a.tables[m.TableName()] = append(a.tables[m.TableName()], row)

	return id, nil
}

func (a *MemoryAdapter) Update(_ context.Context, m *orm.Model, id any, values orm.Values) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.begin("Update", m.TableName()); err != nil {
		return err
	}

	for _, row := range a.tables[m.TableName()] {
		if looseEqual(row[orm.IDField], id) {
			maps.Copy(row, values)
		}
	}

	return nil
}

func (a *MemoryAdapter) Delete(_ context.Context, m *orm.Model, id any) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.begin("Delete", m.TableName()); err != nil {
		return err
	}

	a.deleteWhere(m.TableName(), func(row orm.Row) bool { return looseEqual(row[orm.IDField], id) })

	return nil
}

/***** bulk *****/

func (a *MemoryAdapter) ReadAll(_ context.Context, m *orm.Model, kv orm.KeyValues) ([]orm.Row, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.begin("ReadAll", m.TableName()); err != nil {
		return nil, err
	}

	return a.selectWhere(m.TableName(), matchKeyValues(kv)), nil
}

func (a *MemoryAdapter) ReadBy(_ context.Context, m *orm.Model, field string, values []any) ([]orm.Row, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.begin("ReadBy", m.TableName()); err != nil {
		return nil, err
	}

	return a.selectWhere(m.TableName(), matchIn(field, values)), nil
}

func (a *MemoryAdapter) ReadWith(_ context.Context, m *orm.Model, predicates orm.Predicates) ([]orm.Row, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.begin("ReadWith", m.TableName()); err != nil {
		return nil, err
	}

	match, err := matchPredicates(predicates)
	if err != nil {
		return nil, err
	}

	return a.selectWhere(m.TableName(), match), nil
}

func (a *MemoryAdapter) Count(_ context.Context, m *orm.Model, kv orm.KeyValues) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.begin("Count", m.TableName()); err != nil {
		return 0, err
	}

	return int64(len(a.selectWhere(m.TableName(), matchKeyValues(kv)))), nil
}

func (a *MemoryAdapter) DeleteAll(_ context.Context, m *orm.Model, kv orm.KeyValues) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.begin("DeleteAll", m.TableName()); err != nil {
		return 0, err
	}

	return a.deleteWhere(m.TableName(), matchKeyValues(kv)), nil
}

func (a *MemoryAdapter) DeleteBy(_ context.Context, m *orm.Model, field string, values []any) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.begin("DeleteBy", m.TableName()); err != nil {
		return 0, err
	}

	return a.deleteWhere(m.TableName(), matchIn(field, values)), nil
}

func (a *MemoryAdapter) DeleteWith(_ context.Context, m *orm.Model, predicates orm.Predicates) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.begin("DeleteWith", m.TableName()); err != nil {
		return 0, err
	}

	match, err := matchPredicates(predicates)
	if err != nil {
		return 0, err
	}

	return a.deleteWhere(m.TableName(), match), nil
}

func (a *MemoryAdapter) UpdateAll(_ context.Context, m *orm.Model, kv orm.KeyValues, values orm.Values) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.begin("UpdateAll", m.TableName()); err != nil {
		return 0, err
	}

	return a.updateWhere(m.TableName(), matchKeyValues(kv), values), nil
}

func (a *MemoryAdapter) UpdateBy(
	_ context.Context,
	m *orm.Model,
	field string,
	candidates []any,
	values orm.Values,
) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.begin("UpdateBy", m.TableName()); err != nil {
		return 0, err
	}

	return a.updateWhere(m.TableName(), matchIn(field, candidates), values), nil
}

func (a *MemoryAdapter) UpdateWith(
	_ context.Context,
	m *orm.Model,
	predicates orm.Predicates,
	values orm.Values,
) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.begin("UpdateWith", m.TableName()); err != nil {
		return 0, err
	}

	match, err := matchPredicates(predicates)
	if err != nil {
		return 0, err
	}

	return a.updateWhere(m.TableName(), match, values), nil
}

func (a *MemoryAdapter) InsertAll(_ context.Context, m *orm.Model, columns []string, rows [][]any) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.begin("InsertAll", m.TableName()); err != nil {
		return 0, err
	}

	for _, values := range rows {
		row := orm.Row{orm.IDField: a.newID(m.TableName())}
		for i, column := range columns {
			row[column] = values[i]
		}
		a.tables[m.TableName()] = append(a.tables[m.TableName()], row)
	}

	return int64(len(rows)), nil
}

/***** relations *****/

func (a *MemoryAdapter) HasMany(_ context.Context, target *orm.Model, foreignKey string, ownerIDs []any) ([]orm.Row, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.begin("HasMany", target.TableName()); err != nil {
		return nil, err
	}

	return a.selectWhere(target.TableName(), matchIn(foreignKey, ownerIDs)), nil
}

func (a *MemoryAdapter) BelongsToMany(
	_ context.Context,
	target *orm.Model,
	joinTable, localKey, foreignKey string,
	ownerIDs []any,
) ([]orm.Row, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.begin("BelongsToMany", joinTable); err != nil {
		return nil, err
	}

	rows := make([]orm.Row, 0)
	for _, link := range a.selectWhere(joinTable, matchIn(localKey, ownerIDs)) {
		for _, row := range a.tables[target.TableName()] {
			if looseEqual(row[orm.IDField], link[foreignKey]) {
				joined := maps.Clone(row)
				joined[localKey] = link[localKey]
				rows = append(rows, joined)
			}
		}
	}

	return rows, nil
}

func (a *MemoryAdapter) Add(_ context.Context, joinTable, localKey, foreignKey string, ownerID any, targetIDs []any) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.begin("Add", joinTable); err != nil {
		return err
	}

	for _, targetID := range targetIDs {
		linked := a.selectWhere(joinTable, func(row orm.Row) bool {
			return looseEqual(row[localKey], ownerID) && looseEqual(row[foreignKey], targetID)
		})

		if len(linked) == 0 {
			a.tables[joinTable] = append(a.tables[joinTable], orm.Row{localKey: ownerID, foreignKey: targetID})
		}
	}

	return nil
}

func (a *MemoryAdapter) Remove(_ context.Context, joinTable, localKey, foreignKey string, ownerID any, targetIDs []any) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.begin("Remove", joinTable); err != nil {
		return err
	}

	a.deleteWhere(joinTable, func(row orm.Row) bool {
		return looseEqual(row[localKey], ownerID) && matchIn(foreignKey, targetIDs)(row)
	})

	return nil
}

func (a *MemoryAdapter) RemoveAll(_ context.Context, joinTable, localKey string, ownerID any) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.begin("RemoveAll", joinTable); err != nil {
		return err
	}

	a.deleteWhere(joinTable, func(row orm.Row) bool { return looseEqual(row[localKey], ownerID) })

	return nil
}

/***** value handling *****/

func (a *MemoryAdapter) ProcessValues(m *orm.Model, row orm.Row) (orm.Values, error) {
	return orm.ProcessRow(m, row)
}

func (a *MemoryAdapter) DefaultID() any {
	return nil
}

func (a *MemoryAdapter) UUID() string {
	return uuid.NewString()
}

func (a *MemoryAdapter) TranslateValue(value any) any {
	if t, ok := value.(time.Time); ok {
		return t.UTC().Format(time.RFC3339Nano)
	}

	return value
}

/***** storage helpers, callers hold the lock *****/

func (a *MemoryAdapter) newID(table string) any {
	if a.uuidKeys {
		return uuid.NewString()
	}

	a.nextID[table]++

	return a.nextID[table]
}

func (a *MemoryAdapter) selectWhere(table string, match func(orm.Row) bool) []orm.Row {
	rows := make([]orm.Row, 0)
	for _, row := range a.tables[table] {
		if match(row) {
			rows = append(rows, maps.Clone(row))
		}
	}

	return rows
}

func (a *MemoryAdapter) updateWhere(table string, match func(orm.Row) bool, values orm.Values) int64 {
	var affected int64
	for _, row := range a.tables[table] {
		if match(row) {
			maps.Copy(row, values)
			affected++
		}
	}

	return affected
}

func (a *MemoryAdapter) deleteWhere(table string, match func(orm.Row) bool) int64 {
	before := len(a.tables[table])
	a.tables[table] = slices.DeleteFunc(a.tables[table], match)

	return int64(before - len(a.tables[table]))
}

func cloneRows(rows []orm.Row) []orm.Row {
	out := make([]orm.Row, len(rows))
	for i, row := range rows {
		out[i] = maps.Clone(row)
	}

	return out
}

/***** matching *****/

func matchKeyValues(kv orm.KeyValues) func(orm.Row) bool {
	return func(row orm.Row) bool {
		for field, expected := range kv {
			if candidates, ok := expected.([]any); ok {
				if !matchIn(field, candidates)(row) {
					return false
				}
				continue
			}

			if !looseEqual(row[field], expected) {
				return false
			}
		}

		return true
	}
}

func matchIn(field string, candidates []any) func(orm.Row) bool {
	return func(row orm.Row) bool {
		return slices.ContainsFunc(candidates, func(candidate any) bool {
			return looseEqual(row[field], candidate)
		})
	}
}

func matchPredicates(predicates orm.Predicates) (func(orm.Row) bool, error) {
	if err := predicates.Validate(); err != nil {
		return nil, err
	}

	groups := predicates.Groups()

	return func(row orm.Row) bool {
		if len(groups) == 0 {
			return true
		}

		for _, group := range groups {
			if matchGroup(row, group) {
				return true
			}
		}

		return false
	}, nil
}

func matchGroup(row orm.Row, group []orm.Clause) bool {
	for _, clause := range group {
		if !matchClause(row, clause) {
			return false
		}
	}

	return true
}

func matchClause(row orm.Row, clause orm.Clause) bool {
	value := row[clause.Field]

	switch clause.Comparator {
	case orm.Equal:
		return looseEqual(value, clause.Value)
	case orm.NotEqual:
		return !looseEqual(value, clause.Value)
	case orm.GreaterThan:
		return value != nil && compare(value, clause.Value) > 0
	case orm.GreaterThanEqual:
		return value != nil && compare(value, clause.Value) >= 0
	case orm.LessThan:
		return value != nil && compare(value, clause.Value) < 0
	case orm.LessThanEqual:
		return value != nil && compare(value, clause.Value) <= 0
	case orm.Like:
		return value != nil && like(fmt.Sprint(value), fmt.Sprint(clause.Value))
	case orm.NotLike:
		return value != nil && !like(fmt.Sprint(value), fmt.Sprint(clause.Value))
	case orm.In:
		candidates, _ := clause.Value.([]any)
		return matchIn(clause.Field, candidates)(row)
	case orm.NotIn:
		candidates, _ := clause.Value.([]any)
		return !matchIn(clause.Field, candidates)(row)
	case orm.Between:
		bounds, _ := clause.Value.([]any)
		return value != nil && compare(value, bounds[0]) >= 0 && compare(value, bounds[1]) <= 0
	case orm.IsNull:
		return value == nil
	case orm.IsNotNull:
		return value != nil
	default:
		return false
	}
}

// looseEqual compares stored and requested values by their printed form, so 100 equals "100".
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	return fmt.Sprint(a) == fmt.Sprint(b)
}

func compare(a, b any) int {
	if x, ok := toFloat64(a); ok {
		if y, ok := toFloat64(b); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			default:
				return 0
			}
		}
	}

	if x, ok := a.(time.Time); ok {
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	}

	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func like(value, pattern string) bool {
	var expr strings.Builder
	expr.WriteString("(?s)^")

	for _, r := range pattern {
		switch r {
		case '%':
			expr.WriteString(".*")
		case '_':
			expr.WriteString(".")
		default:
			expr.WriteString(regexp.QuoteMeta(string(r)))
		}
	}

	expr.WriteString("$")

	return regexp.MustCompile(expr.String()).MatchString(value)
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}
