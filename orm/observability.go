package orm

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"
)

// Logger interface for operation logging, warnings, and error reporting. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ContextualLogger interface for context-aware logging with automatic trace correlation.
type ContextualLogger interface {
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// MetricsCollector interface for collecting Engine performance and operational metrics.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

// ContextualMetricsCollector extends MetricsCollector with context-aware methods.
// The Engine prefers these methods when the configured collector implements them.
type ContextualMetricsCollector interface {
	MetricsCollector
	RecordDurationContext(ctx context.Context, metric string, duration time.Duration, labels map[string]string)
	IncrementCounterContext(ctx context.Context, metric string, labels map[string]string)
	RecordValueContext(ctx context.Context, metric string, value float64, labels map[string]string)
}

// SpanContext represents an active tracing span that can be finished and updated with attributes.
type SpanContext interface {
	SetStatus(status string)
	AddAttribute(key, value string)
}

// TracingCollector interface for collecting distributed tracing information from Engine operations.
type TracingCollector interface {
	StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, SpanContext)
	FinishSpan(spanCtx SpanContext, status string, attrs map[string]string)
}

const (
	MetricOperationDuration = "orm_operation_duration_seconds"
	MetricOperationErrors   = "orm_operation_errors_total"
	MetricEagerLoadEntities = "orm_eager_load_entities"

	SpanNamePrefix = "orm."

	StatusSuccess = "success"
	StatusError   = "error"

	LabelOperation = "operation"
	LabelModel     = "model"
	LabelStatus    = "status"
	LabelErrorType = "error_type"
	LabelRelation  = "relation"
)

const (
	logMsgOperation     = "orm operation: "
	logMsgOperationFail = "orm operation failed: "
	logAttrModel        = "model"
	logAttrDurationMS   = "duration_ms"
	logAttrError        = "error"
	logAttrErrorType    = "error_type"
	logAttrRelation     = "relation"
	logAttrCount        = "count"
	logAttrDepth        = "depth"
)

const (
	operationRead       = "read"
	operationWrite      = "write"
	operationDelete     = "delete"
	operationParent     = "parent"
	operationSiblings   = "siblings"
	operationChildren   = "children"
	operationAdd        = "add"
	operationRemove     = "remove"
	operationRemoveAll  = "remove_all"
	operationReadAll    = "read_all"
	operationReadBy     = "read_by"
	operationReadWith   = "read_with"
	operationCount      = "count"
	operationDeleteAll  = "delete_all"
	operationDeleteBy   = "delete_by"
	operationDeleteWith = "delete_with"
	operationUpdateAll  = "update_all"
	operationUpdateBy   = "update_by"
	operationUpdateWith = "update_with"
	operationInsertAll  = "insert_all"
	operationEagerLoad  = "eager_load"
)

// observe wraps one engine operation with a tracing span, duration and error metrics, and logging.
// The error returned by fn is passed through unchanged.
func (e *Engine) observe(ctx context.Context, operation string, model *Model, fn func(ctx context.Context) error) error {
	modelName := ""
	if model != nil {
		modelName = model.Name()
	}

	start := time.Now()
	ctx, span := e.startTraceSpan(ctx, operation, modelName)

	err := fn(ctx)
	duration := time.Since(start)

	if err != nil {
		errorType := classifyError(err)
		e.logError(ctx, operation, err, logAttrModel, modelName, logAttrErrorType, errorType)
		e.recordErrorMetrics(ctx, operation, modelName, errorType)
		e.recordDurationMetrics(ctx, duration, operation, modelName, StatusError)
		e.finishTraceSpan(span, StatusError, duration, map[string]string{LabelErrorType: errorType})

		return err
	}

	e.logOperation(ctx, operation, logAttrModel, modelName, logAttrDurationMS, toMilliseconds(duration))
	e.recordDurationMetrics(ctx, duration, operation, modelName, StatusSuccess)
	e.finishTraceSpan(span, StatusSuccess, duration, nil)

	return nil
}

// classifyError maps an error onto a short label for metrics and spans.
func classifyError(err error) string {
	switch {
	case errors.Is(err, ErrRecordNotFound):
		return "record_not_found"
	case errors.Is(err, ErrMissingIdentity):
		return "missing_identity"
	case errors.Is(err, ErrNoIdentifyingValue):
		return "no_identifying_value"
	case errors.Is(err, ErrUnknownForeignKey):
		return "unknown_foreign_key"
	case errors.Is(err, ErrNoManyToManyRelation):
		return "no_many_to_many"
	case errors.Is(err, ErrEagerLoadDepthExceeded):
		return "eager_load_depth"
	case errors.Is(err, ErrValidation), errors.Is(err, ErrUnknownField), errors.Is(err, ErrEmptyTableName):
		return "validation"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "adapter"
	}
}

func (e *Engine) logOperation(ctx context.Context, operation string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(logMsgOperation+operation, args...)
	}

	if e.contextualLogger != nil {
		e.contextualLogger.DebugContext(ctx, logMsgOperation+operation, args...)
	}
}

func (e *Engine) logError(ctx context.Context, operation string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if e.logger != nil {
		e.logger.Error(logMsgOperationFail+operation, allArgs...)
	}

	if e.contextualLogger != nil {
		e.contextualLogger.ErrorContext(ctx, logMsgOperationFail+operation, allArgs...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

func (e *Engine) recordDurationMetrics(
	ctx context.Context,
	duration time.Duration,
	operation, model, status string,
) {
	if e.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		LabelOperation: operation,
		LabelModel:     model,
		LabelStatus:    status,
	}

	if contextualCollector, ok := e.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, MetricOperationDuration, duration, labels)
	} else {
		e.metricsCollector.RecordDuration(MetricOperationDuration, duration, labels)
	}
}

func (e *Engine) recordErrorMetrics(ctx context.Context, operation, model, errorType string) {
	if e.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		LabelOperation: operation,
		LabelModel:     model,
		LabelStatus:    StatusError,
		LabelErrorType: errorType,
	}

	if contextualCollector, ok := e.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, MetricOperationErrors, labels)
	} else {
		e.metricsCollector.IncrementCounter(MetricOperationErrors, labels)
	}
}

func (e *Engine) recordEagerLoadedEntities(ctx context.Context, model, relation string, count int) {
	if e.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		LabelOperation: operationEagerLoad,
		LabelModel:     model,
		LabelRelation:  relation,
	}

	if contextualCollector, ok := e.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.RecordValueContext(ctx, MetricEagerLoadEntities, float64(count), labels)
	} else {
		e.metricsCollector.RecordValue(MetricEagerLoadEntities, float64(count), labels)
	}
}

func (e *Engine) startTraceSpan(ctx context.Context, operation, model string) (context.Context, SpanContext) {
	if e.tracingCollector == nil {
		return ctx, nil
	}

	return e.tracingCollector.StartSpan(ctx, SpanNamePrefix+operation, map[string]string{
		LabelOperation: operation,
		LabelModel:     model,
	})
}

func (e *Engine) finishTraceSpan(span SpanContext, status string, duration time.Duration, attrs map[string]string) {
	if e.tracingCollector == nil || span == nil {
		return
	}

	span.SetStatus(status)
	span.AddAttribute(logAttrDurationMS, strconv.FormatFloat(toMilliseconds(duration), 'f', 2, 64))

	for key, value := range attrs {
		span.AddAttribute(key, value)
	}

	e.tracingCollector.FinishSpan(span, status, attrs)
}
