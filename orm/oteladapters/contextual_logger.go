package oteladapters

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log"

	"github.com/AntonStoeckl/active-record-orm-go/orm"
)

// Logger implements orm.ContextualLogger. Records go either through a slog.Logger or straight to an
// OpenTelemetry log.Logger, each carrying the static attributes given at construction.
type Logger struct {
	slogger *slog.Logger
	emitter log.Logger
	static  []any
}

// LoggerOption configures a Logger.
type LoggerOption func(*Logger)

// WithStaticAttributes adds slog-style key/value pairs to every record, e.g. "db.system", "postgresql".
func WithStaticAttributes(args ...any) LoggerOption {
	return func(l *Logger) {
		l.static = append(l.static, args...)
	}
}

// NewSlogBridgeLogger logs through the otelslog bridge on the global LoggerProvider,
// so records are correlated with the active span.
func NewSlogBridgeLogger(name string, options ...LoggerOption) *Logger {
	return newLogger(&Logger{slogger: otelslog.NewLogger(name)}, options)
}

// NewSlogBridgeLoggerWithHandler logs through handler without OpenTelemetry correlation.
func NewSlogBridgeLoggerWithHandler(handler slog.Handler, options ...LoggerOption) *Logger {
	return newLogger(&Logger{slogger: slog.New(handler)}, options)
}

// NewOTelLogger emits records with the OpenTelemetry log API.
func NewOTelLogger(emitter log.Logger, options ...LoggerOption) *Logger {
	return newLogger(&Logger{emitter: emitter}, options)
}

func newLogger(l *Logger, options []LoggerOption) *Logger {
	for _, option := range options {
		option(l)
	}

	return l
}

func (l *Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelDebug, msg, args)
}

func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelInfo, msg, args)
}

func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelWarn, msg, args)
}

func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelError, msg, args)
}

func (l *Logger) log(ctx context.Context, level slog.Level, msg string, args []any) {
	if len(l.static) > 0 {
		args = append(slices.Clip(l.static), args...)
	}

	if l.emitter == nil {
		l.slogger.Log(ctx, level, msg, args...)
		return
	}

	var record log.Record
	record.SetTimestamp(time.Now())
	record.SetSeverity(severityOf(level))
	record.SetSeverityText(level.String())
	record.SetBody(log.StringValue(msg))
	record.AddAttributes(attributesOf(args)...)

	l.emitter.Emit(ctx, record)
}

func severityOf(level slog.Level) log.Severity {
	switch {
	case level >= slog.LevelError:
		return log.SeverityError
	case level >= slog.LevelWarn:
		return log.SeverityWarn
	case level >= slog.LevelInfo:
		return log.SeverityInfo
	default:
		return log.SeverityDebug
	}
}

// attributesOf pairs up slog-style args. Pairs without a string key and a trailing key are dropped.
func attributesOf(args []any) []log.KeyValue {
	attributes := make([]log.KeyValue, 0, len(args)/2)

	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}

		attributes = append(attributes, log.KeyValue{Key: key, Value: valueOf(args[i+1])})
	}

	return attributes
}

func valueOf(value any) log.Value {
	switch v := value.(type) {
	case string:
		return log.StringValue(v)
	case int:
		return log.IntValue(v)
	case int64:
		return log.Int64Value(v)
	case float64:
		return log.Float64Value(v)
	case bool:
		return log.BoolValue(v)
	case time.Duration:
		return log.Float64Value(float64(v) / float64(time.Millisecond))
	case error:
		return log.StringValue(v.Error())
	case fmt.Stringer:
		return log.StringValue(v.String())
	default:
		return log.StringValue(slog.AnyValue(v).String())
	}
}

var _ orm.ContextualLogger = (*Logger)(nil)
