package oteladapters_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/noop"

	"github.com/AntonStoeckl/active-record-orm-go/orm"
	"github.com/AntonStoeckl/active-record-orm-go/orm/oteladapters"
	"github.com/AntonStoeckl/active-record-orm-go/testutil/ormtest"
)

func Test_SlogBridgeLogger_AllLevels(t *testing.T) {
	// setup
	var buf bytes.Buffer
	logger := oteladapters.NewSlogBridgeLoggerWithHandler(
		slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	ctx := context.Background()

	// act
	logger.DebugContext(ctx, "debug message", "model", "Product")
	logger.InfoContext(ctx, "info message")
	logger.WarnContext(ctx, "warn message")
	logger.ErrorContext(ctx, "error message")

	// assert
	output := buf.String()
	assert.Contains(t, output, `"level":"DEBUG","msg":"debug message","model":"Product"`)
	assert.Contains(t, output, `"msg":"info message"`)
	assert.Contains(t, output, `"msg":"warn message"`)
	assert.Contains(t, output, `"msg":"error message"`)
}

func Test_SlogBridgeLogger_UsesGlobalProvider(t *testing.T) {
	logger := oteladapters.NewSlogBridgeLogger("orm")

	assert.NotPanics(t, func() {
		logger.InfoContext(context.Background(), "no provider configured")
	})
}

func Test_OTelLogger_EmitsWithoutPanicking(t *testing.T) {
	// setup
	logger := oteladapters.NewOTelLogger(noop.NewLoggerProvider().Logger("test"))
	ctx := context.Background()

	// act + assert
	assert.NotPanics(t, func() {
		logger.DebugContext(ctx, "debug", "count", 2, "ratio", 0.5, "ok", true, "dangling")
		logger.InfoContext(ctx, "info", "id", int64(7))
		logger.WarnContext(ctx, "warn", 42, "non-string key")
		logger.ErrorContext(ctx, "error", "error", assert.AnError)
	})
}

func Test_SlogBridgeLogger_LogsEngineOperationsWithinSpans(t *testing.T) {
	// setup
	ctx := context.Background()
	logHandler := ormtest.NewLogHandlerSpy(false)
	collector, exporter := newTracer(t)
	engine, _ := ormtest.NewFixtureEngine(t,
		orm.WithContextualLogger(oteladapters.NewSlogBridgeLoggerWithHandler(logHandler)),
		orm.WithTracing(collector),
	)

	// act
	_, err := engine.Factory(ctx, ormtest.MustModel(t, engine, ormtest.ModelPerson), 1)

	// assert
	require.NoError(t, err)
	assert.True(t, logHandler.HasLog(slog.LevelDebug, "orm operation: read"))
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, orm.SpanNamePrefix+"read", spans[0].Name)
}

type recordingEmitter struct {
	noop.Logger
	records []log.Record
}

func (e *recordingEmitter) Emit(_ context.Context, record log.Record) {
	e.records = append(e.records, record)
}

func (e *recordingEmitter) attributes(record log.Record) map[string]log.Value {
	attributes := make(map[string]log.Value)
	record.WalkAttributes(func(kv log.KeyValue) bool {
		attributes[kv.Key] = kv.Value
		return true
	})

	return attributes
}

func Test_SlogBridgeLogger_When_EngineCounts(t *testing.T) {
	// setup
	ctx := context.Background()
	logHandler := ormtest.NewLogHandlerSpy(false)
	engine, _ := ormtest.NewFixtureEngine(t, orm.WithContextualLogger(
		oteladapters.NewSlogBridgeLoggerWithHandler(logHandler, oteladapters.WithStaticAttributes("db.system", "memory")),
	))

	// act
	_, err := engine.Count(ctx, ormtest.MustModel(t, engine, ormtest.ModelProduct), nil)

	// assert
	require.NoError(t, err)
	record := logHandler.FindLog(slog.LevelDebug, "orm operation: count")
	require.NotNil(t, record)
	assert.Equal(t, "Product", ormtest.AttrValue(record, "model"))
	assert.Equal(t, "memory", ormtest.AttrValue(record, "db.system"))
	assert.NotNil(t, ormtest.AttrValue(record, "duration_ms"))
}

func Test_OTelLogger_When_EngineCounts(t *testing.T) {
	// setup
	ctx := context.Background()
	emitter := &recordingEmitter{}
	engine, _ := ormtest.NewFixtureEngine(t, orm.WithContextualLogger(
		oteladapters.NewOTelLogger(emitter, oteladapters.WithStaticAttributes("db.system", "memory")),
	))

	// act
	_, err := engine.Count(ctx, ormtest.MustModel(t, engine, ormtest.ModelProduct), nil)

	// assert
	require.NoError(t, err)
	require.Len(t, emitter.records, 1)
	record := emitter.records[0]
	assert.Equal(t, "orm operation: count", record.Body().AsString())
	assert.Equal(t, log.SeverityDebug, record.Severity())
	assert.Equal(t, "DEBUG", record.SeverityText())

	attributes := emitter.attributes(record)
	assert.Equal(t, "Product", attributes["model"].AsString())
	assert.Equal(t, "memory", attributes["db.system"].AsString())
	assert.Equal(t, log.KindFloat64, attributes["duration_ms"].Kind())
}

func Test_OTelLogger_When_EngineOperationFails(t *testing.T) {
	// setup
	ctx := context.Background()
	emitter := &recordingEmitter{}
	engine, _ := ormtest.NewFixtureEngine(t, orm.WithContextualLogger(oteladapters.NewOTelLogger(emitter)))

	// act
	_, err := engine.Factory(ctx, ormtest.MustModel(t, engine, ormtest.ModelPerson), 999)

	// assert
	require.ErrorIs(t, err, orm.ErrRecordNotFound)
	require.NotEmpty(t, emitter.records)
	record := emitter.records[len(emitter.records)-1]
	assert.Equal(t, "orm operation failed: read", record.Body().AsString())
	assert.Equal(t, log.SeverityError, record.Severity())

	attributes := emitter.attributes(record)
	assert.Equal(t, "Person", attributes["model"].AsString())
	assert.Equal(t, "record_not_found", attributes["error_type"].AsString())
	assert.NotEmpty(t, attributes["error"].AsString())
}
