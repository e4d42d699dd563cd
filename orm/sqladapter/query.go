package sqladapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/AntonStoeckl/active-record-orm-go/orm"
	"github.com/AntonStoeckl/active-record-orm-go/orm/sqladapter/internal/adapters"
)

type (
	sqlQueryString = string
	queryFunc      func(ctx context.Context, query string, args ...any) (adapters.DBRows, error)
)

// statement is any goqu dataset.
type statement interface {
	ToSQL() (sqlQueryString, []any, error)
}

func (a *Adapter) toSQL(stmt statement, table string) (sqlQueryString, []any, error) {
	query, args, err := stmt.ToSQL()
	if err != nil {
		a.logError(logMsgBuildQueryFailed, err, logAttrTable, table)
		return "", nil, errors.Join(ErrBuildingQueryFailed, err)
	}

	return query, args, nil
}

// primaryQuery reads from the primary database when the handle has a replica.
func (a *Adapter) primaryQuery() queryFunc {
	if primary, ok := a.db.(interface {
		QueryPrimary(ctx context.Context, query string, args ...any) (adapters.DBRows, error)
	}); ok {
		return primary.QueryPrimary
	}

	return a.db.Query
}

// fetch runs a query and scans every row into a column map.
func (a *Adapter) fetch(ctx context.Context, table string, stmt statement, run queryFunc) ([]orm.Row, error) {
	query, args, err := a.toSQL(stmt, table)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, queryErr := run(ctx, query, args...)
	a.logQueryWithDuration(query, logActionQuery, table, time.Since(start))

	if queryErr != nil {
		a.logError(logMsgDBQueryFailed, queryErr, logAttrQuery, query)
		return nil, errors.Join(ErrQueryFailed, queryErr)
	}
	defer a.closeRows(rows)

	return a.scanRows(rows)
}

func (a *Adapter) scanRows(rows adapters.DBRows) ([]orm.Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		a.logError(logMsgScanRowFailed, err)
		return nil, errors.Join(ErrScanningRowFailed, err)
	}

	result := make([]orm.Row, 0)

	for rows.Next() {
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}

		if scanErr := rows.Scan(targets...); scanErr != nil {
			a.logError(logMsgScanRowFailed, scanErr)
			return nil, errors.Join(ErrScanningRowFailed, scanErr)
		}

		row := make(orm.Row, len(columns))
		for i, column := range columns {
			row[column] = values[i]
		}
		result = append(result, row)
	}

	if err = rows.Err(); err != nil {
		a.logError(logMsgScanRowFailed, err)
		return nil, errors.Join(ErrQueryFailed, err)
	}

	return result, nil
}

// closeRows closes database rows and logs any errors.
func (a *Adapter) closeRows(rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		a.logWarn(logMsgCloseRowsFailed, closeErr)
	}
}

func (a *Adapter) exec(ctx context.Context, table string, stmt statement) (adapters.DBResult, error) {
	query, args, err := a.toSQL(stmt, table)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, execErr := a.db.Exec(ctx, query, args...)
	a.logQueryWithDuration(query, logActionExec, table, time.Since(start))

	if execErr != nil {
		a.logError(logMsgDBExecFailed, execErr, logAttrQuery, query)
		return nil, errors.Join(ErrExecFailed, execErr)
	}

	return result, nil
}

func (a *Adapter) execAffected(ctx context.Context, table string, stmt statement) (int64, error) {
	result, err := a.exec(ctx, table, stmt)
	if err != nil {
		return 0, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		a.logError(logMsgRowsAffectedFailed, err, logAttrTable, table)
		return 0, errors.Join(ErrRowsAffectedFailed, err)
	}

	return affected, nil
}

/***** where clauses *****/

// keyValues turns an equality selector into a goqu expression; list values become IN.
// It reports false when a list is empty, as nothing can match.
func (a *Adapter) keyValues(kv orm.KeyValues) (goqu.Ex, bool) {
	ex := make(goqu.Ex, len(kv))

	for field, value := range kv {
		if list, ok := value.([]any); ok {
			if len(list) == 0 {
				return nil, false
			}
			ex[field] = a.translateAll(list)
			continue
		}

		ex[field] = a.TranslateValue(value)
	}

	return ex, true
}

// predicates translates a predicate list into (g1) OR (g2) ..., each group an AND chain.
// An empty list yields a nil expression.
func (a *Adapter) predicates(p orm.Predicates) (exp.Expression, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if len(p) == 0 {
		return nil, nil
	}

	groups := p.Groups()
	ors := make([]exp.Expression, 0, len(groups))

	for _, group := range groups {
		ands := make([]exp.Expression, 0, len(group))
		for _, clause := range group {
			ands = append(ands, a.clause(clause))
		}
		ors = append(ors, goqu.And(ands...))
	}

	return goqu.Or(ors...), nil
}

func (a *Adapter) clause(c orm.Clause) exp.Expression {
	col := goqu.C(c.Field)

	switch c.Comparator {
	case orm.Equal:
		return col.Eq(a.TranslateValue(c.Value))
	case orm.NotEqual:
		return col.Neq(a.TranslateValue(c.Value))
	case orm.GreaterThan:
		return col.Gt(a.TranslateValue(c.Value))
	case orm.GreaterThanEqual:
		return col.Gte(a.TranslateValue(c.Value))
	case orm.LessThan:
		return col.Lt(a.TranslateValue(c.Value))
	case orm.LessThanEqual:
		return col.Lte(a.TranslateValue(c.Value))
	case orm.Like:
		return col.Like(c.Value)
	case orm.NotLike:
		return col.NotLike(c.Value)
	case orm.In:
		list := asList(c.Value)
		if len(list) == 0 {
			return goqu.L("1 = 0")
		}
		return col.In(a.translateAll(list)...)
	case orm.NotIn:
		list := asList(c.Value)
		if len(list) == 0 {
			return goqu.L("1 = 1")
		}
		return col.NotIn(a.translateAll(list)...)
	case orm.Between:
		bounds := c.Value.([]any)
		return col.Between(goqu.Range(a.TranslateValue(bounds[0]), a.TranslateValue(bounds[1])))
	case orm.IsNull:
		return col.IsNull()
	default:
		return col.IsNotNull()
	}
}

func asList(value any) []any {
	if list, ok := value.([]any); ok {
		return list
	}

	return []any{value}
}

// keyOf compares identifiers across driver representations.
func keyOf(value any) string {
	if b, ok := value.([]byte); ok {
		return string(b)
	}

	return fmt.Sprint(value)
}

func toInt64(value any) int64 {
	switch v := value.(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case []byte:
		var n int64
		_, _ = fmt.Sscan(string(v), &n)
		return n
	default:
		return 0
	}
}
