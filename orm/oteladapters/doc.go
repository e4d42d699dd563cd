// Package oteladapters implements the orm observability interfaces on top of OpenTelemetry.
//
//	engine, err := orm.NewEngine(registry, adapter,
//		orm.WithContextualLogger(oteladapters.NewSlogBridgeLogger("orm")),
//		orm.WithTracing(oteladapters.NewTracingCollector(otel.Tracer("orm"))),
//		orm.WithMetrics(oteladapters.NewMetricsCollector(otel.Meter("orm"))),
//	)
//
// NewSlogBridgeLogger adds trace and span ids to every record through the otelslog bridge.
// NewOTelLogger skips slog and emits OpenTelemetry log records directly.
package oteladapters
