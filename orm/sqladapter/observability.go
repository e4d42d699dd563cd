package sqladapter

import (
	"time"
)

const (
	// MetricStatementDuration is the duration of single SQL statements.
	MetricStatementDuration = "orm_sql_statement_duration_seconds"

	// LabelAction is the statement kind: query or exec.
	LabelAction = "action"
	// LabelTable is the primary table of the statement.
	LabelTable = "table"
)

const (
	logMsgSQLExecuted        = "executed sql for: "
	logMsgBuildQueryFailed   = "failed to build sql statement"
	logMsgDBQueryFailed      = "database query execution failed"
	logMsgDBExecFailed       = "database execution failed"
	logMsgScanRowFailed      = "failed to scan database row"
	logMsgCloseRowsFailed    = "failed to close database rows"
	logMsgRowsAffectedFailed = "failed to get rows affected count"
	logMsgLastInsertIDFailed = "failed to get last insert id"
	logAttrError             = "error"
	logAttrQuery             = "query"
	logAttrTable             = "table"
	logAttrDurationMS        = "duration_ms"
	logActionQuery           = "query"
	logActionExec            = "exec"
)

// logQueryWithDuration logs the executed statement at debug level and records its duration.
func (a *Adapter) logQueryWithDuration(query, action, table string, duration time.Duration) {
	if a.logger != nil {
		a.logger.Debug(
			logMsgSQLExecuted+action,
			logAttrQuery, query,
			logAttrTable, table,
			logAttrDurationMS, toMilliseconds(duration),
		)
	}

	if a.metricsCollector != nil {
		a.metricsCollector.RecordDuration(MetricStatementDuration, duration, map[string]string{
			LabelAction: action,
			LabelTable:  table,
		})
	}
}

func (a *Adapter) logError(msg string, err error, args ...any) {
	if a.logger == nil {
		return
	}

	a.logger.Error(msg, append([]any{logAttrError, err.Error()}, args...)...)
}

func (a *Adapter) logWarn(msg string, err error) {
	if a.logger == nil {
		return
	}

	a.logger.Warn(msg, logAttrError, err.Error())
}

func toMilliseconds(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}
