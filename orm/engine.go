package orm

import (
	"context"
	"fmt"
)

const (
	defaultMaxEagerLoadDepth    = 8
	defaultEagerLoadConcurrency = 4
)

// Engine binds registered models to adapters and runs entity and bulk operations
// with logging, metrics, and tracing. An Engine is safe for concurrent use.
type Engine struct {
	registry             *Registry
	adapter              Adapter
	logger               Logger
	contextualLogger     ContextualLogger
	metricsCollector     MetricsCollector
	tracingCollector     TracingCollector
	maxEagerLoadDepth    int
	eagerLoadConcurrency int
}

// Option defines a functional option for configuring an Engine.
type Option func(*Engine) error

// WithLogger sets the logger for the Engine.
//
// Debug level: completed operations with durations
// Error level: failed operations with the error type.
func WithLogger(logger Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Engine.
// It receives the same messages as Logger, with the operation context for trace correlation.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(e *Engine) error {
		e.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Engine.
func WithMetrics(collector MetricsCollector) Option {
	return func(e *Engine) error {
		e.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Engine. Every operation opens a span named "orm.<operation>".
func WithTracing(collector TracingCollector) Option {
	return func(e *Engine) error {
		e.tracingCollector = collector
		return nil
	}
}

// WithMaxEagerLoadDepth bounds how deep eager-load specs may nest. Zero means unbounded.
func WithMaxEagerLoadDepth(depth int) Option {
	return func(e *Engine) error {
		if depth < 0 {
			return fmt.Errorf("%w: negative eager load depth %d", ErrValidation, depth)
		}

		e.maxEagerLoadDepth = depth

		return nil
	}
}

// WithEagerLoadConcurrency limits how many relations of one eager-load level are fetched at once.
func WithEagerLoadConcurrency(limit int) Option {
	return func(e *Engine) error {
		if limit < 1 {
			return fmt.Errorf("%w: eager load concurrency must be positive, got %d", ErrValidation, limit)
		}

		e.eagerLoadConcurrency = limit

		return nil
	}
}

// NewEngine creates an Engine over registry using adapter for every model without its own adapter.
func NewEngine(registry *Registry, adapter Adapter, options ...Option) (*Engine, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}

	if adapter == nil {
		return nil, ErrNilAdapter
	}

	e := &Engine{
		registry:             registry,
		adapter:              adapter,
		maxEagerLoadDepth:    defaultMaxEagerLoadDepth,
		eagerLoadConcurrency: defaultEagerLoadConcurrency,
	}

	for _, option := range options {
		if err := option(e); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// Registry returns the registry the Engine resolves class names with.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Model resolves a class name through the registry.
func (e *Engine) Model(name string) (*Model, error) {
	return e.registry.Model(name)
}

// adapterFor picks the instance override, then the model adapter, then the engine default.
func (e *Engine) adapterFor(m *Model, override Adapter) Adapter {
	if override != nil {
		return override
	}

	if m.adapter != nil {
		return m.adapter
	}

	return e.adapter
}

/***** entity construction *****/

// EntityOption configures an Entity at creation time.
type EntityOption func(*Entity)

// UsingAdapter binds the entity to adapter instead of the model or engine adapter.
// Entities reached through its relations use the same adapter.
func UsingAdapter(adapter Adapter) EntityOption {
	return func(en *Entity) {
		if adapter != nil {
			en.adapter = adapter
			en.adapterOverride = true
		}
	}
}

// WithID presets the identifier, e.g. for a subsequent Read.
func WithID(id any) EntityOption {
	return func(en *Entity) {
		en.id = normalizeID(id)
	}
}

// Create returns an unsaved entity with every field at its default. It performs no I/O.
func (e *Engine) Create(m *Model, options ...EntityOption) *Entity {
	en := &Entity{
		engine:  e,
		model:   m,
		adapter: e.adapterFor(m, nil),
		values:  make(Values, len(m.fields)),
	}

	for _, field := range m.fields {
		en.values[field.Name] = field.Default
	}

	for _, option := range options {
		option(en)
	}

	return en
}

// Factory creates an entity with the given id and reads it.
func (e *Engine) Factory(ctx context.Context, m *Model, id any, options ...EntityOption) (*Entity, error) {
	options = append(options, WithID(id))
	en := e.Create(m, options...)

	if err := en.Read(ctx); err != nil {
		return nil, err
	}

	return en, nil
}

// relatedAdapter is the adapter used for entities of target reached from owner.
func (e *Engine) relatedAdapter(owner *Entity, target *Model) Adapter {
	if owner != nil && owner.adapterOverride {
		return owner.adapter
	}

	return e.adapterFor(target, nil)
}

// materialize turns raw rows into saved entities bound to adapter.
func (e *Engine) materialize(m *Model, adapter Adapter, override bool, rows []Row) ([]*Entity, error) {
	entities := make([]*Entity, 0, len(rows))

	for _, row := range rows {
		en := e.Create(m)
		en.adapter = adapter
		en.adapterOverride = override

		if err := en.applyRow(row); err != nil {
			return nil, err
		}

		entities = append(entities, en)
	}

	return entities, nil
}

/***** bulk passthroughs *****/

// ReadAll reads every record matching kv; nil kv reads the whole table.
func (e *Engine) ReadAll(ctx context.Context, m *Model, kv KeyValues) (Result, error) {
	var result Result

	err := e.observe(ctx, operationReadAll, m, func(ctx context.Context) error {
		if err := e.validateKeyValues(m, kv); err != nil {
			return err
		}

		adapter := e.adapterFor(m, nil)

		rows, err := adapter.ReadAll(ctx, m, kv)
		if err != nil {
			return err
		}

		result, err = e.toResult(m, adapter, rows)

		return err
	})

	return result, err
}

// ReadBy reads records whose field equals one of values.
func (e *Engine) ReadBy(ctx context.Context, m *Model, field string, values []any) (Result, error) {
	var result Result

	err := e.observe(ctx, operationReadBy, m, func(ctx context.Context) error {
		if err := e.validateSelector(m, field); err != nil {
			return err
		}

		adapter := e.adapterFor(m, nil)

		rows, err := adapter.ReadBy(ctx, m, field, values)
		if err != nil {
			return err
		}

		result, err = e.toResult(m, adapter, rows)

		return err
	})

	return result, err
}

// ReadWith reads records matching the predicates.
func (e *Engine) ReadWith(ctx context.Context, m *Model, predicates Predicates) (Result, error) {
	var result Result

	err := e.observe(ctx, operationReadWith, m, func(ctx context.Context) error {
		if err := e.validatePredicates(m, predicates); err != nil {
			return err
		}

		adapter := e.adapterFor(m, nil)

		rows, err := adapter.ReadWith(ctx, m, predicates)
		if err != nil {
			return err
		}

		result, err = e.toResult(m, adapter, rows)

		return err
	})

	return result, err
}

// Count counts records matching kv; nil kv counts the whole table.
func (e *Engine) Count(ctx context.Context, m *Model, kv KeyValues) (int64, error) {
	var count int64

	err := e.observe(ctx, operationCount, m, func(ctx context.Context) error {
		if err := e.validateKeyValues(m, kv); err != nil {
			return err
		}

		var err error
		count, err = e.adapterFor(m, nil).Count(ctx, m, kv)

		return err
	})

	return count, err
}

// DeleteAll deletes every record matching kv and reports how many were removed.
func (e *Engine) DeleteAll(ctx context.Context, m *Model, kv KeyValues) (int64, error) {
	return e.affecting(ctx, operationDeleteAll, m, func(ctx context.Context, adapter Adapter) (int64, error) {
		if err := e.validateKeyValues(m, kv); err != nil {
			return 0, err
		}

		return adapter.DeleteAll(ctx, m, kv)
	})
}

func (e *Engine) DeleteBy(ctx context.Context, m *Model, field string, values []any) (int64, error) {
	return e.affecting(ctx, operationDeleteBy, m, func(ctx context.Context, adapter Adapter) (int64, error) {
		if err := e.validateSelector(m, field); err != nil {
			return 0, err
		}

		return adapter.DeleteBy(ctx, m, field, values)
	})
}

func (e *Engine) DeleteWith(ctx context.Context, m *Model, predicates Predicates) (int64, error) {
	return e.affecting(ctx, operationDeleteWith, m, func(ctx context.Context, adapter Adapter) (int64, error) {
		if err := e.validatePredicates(m, predicates); err != nil {
			return 0, err
		}

		return adapter.DeleteWith(ctx, m, predicates)
	})
}

// UpdateAll sets values on every record matching kv.
func (e *Engine) UpdateAll(ctx context.Context, m *Model, kv KeyValues, values Values) (int64, error) {
	return e.affecting(ctx, operationUpdateAll, m, func(ctx context.Context, adapter Adapter) (int64, error) {
		if err := e.validateKeyValues(m, kv); err != nil {
			return 0, err
		}

		if err := e.validateValues(m, values); err != nil {
			return 0, err
		}

		return adapter.UpdateAll(ctx, m, kv, values)
	})
}

func (e *Engine) UpdateBy(ctx context.Context, m *Model, field string, candidates []any, values Values) (int64, error) {
	return e.affecting(ctx, operationUpdateBy, m, func(ctx context.Context, adapter Adapter) (int64, error) {
		if err := e.validateSelector(m, field); err != nil {
			return 0, err
		}

		if err := e.validateValues(m, values); err != nil {
			return 0, err
		}

		return adapter.UpdateBy(ctx, m, field, candidates, values)
	})
}

func (e *Engine) UpdateWith(ctx context.Context, m *Model, predicates Predicates, values Values) (int64, error) {
	return e.affecting(ctx, operationUpdateWith, m, func(ctx context.Context, adapter Adapter) (int64, error) {
		if err := e.validatePredicates(m, predicates); err != nil {
			return 0, err
		}

		if err := e.validateValues(m, values); err != nil {
			return 0, err
		}

		return adapter.UpdateWith(ctx, m, predicates, values)
	})
}

// InsertAll inserts rows, each holding one value per column.
func (e *Engine) InsertAll(ctx context.Context, m *Model, columns []string, rows [][]any) (int64, error) {
	return e.affecting(ctx, operationInsertAll, m, func(ctx context.Context, adapter Adapter) (int64, error) {
		if err := m.requireTable(); err != nil {
			return 0, err
		}

		if len(columns) == 0 {
			return 0, fmt.Errorf("%w: no columns supplied for %s", ErrValidation, m.name)
		}

		if err := m.validateFields(columns...); err != nil {
			return 0, err
		}

		for i, row := range rows {
			if len(row) != len(columns) {
				return 0, fmt.Errorf(
					"%w: row %d of %s has %d values for %d columns",
					ErrValidation, i, m.name, len(row), len(columns),
				)
			}
		}

		if len(rows) == 0 {
			return 0, nil
		}

		return adapter.InsertAll(ctx, m, columns, rows)
	})
}

func (e *Engine) affecting(
	ctx context.Context,
	operation string,
	m *Model,
	fn func(ctx context.Context, adapter Adapter) (int64, error),
) (int64, error) {
	var affected int64

	err := e.observe(ctx, operation, m, func(ctx context.Context) error {
		if err := m.requireTable(); err != nil {
			return err
		}

		var err error
		affected, err = fn(ctx, e.adapterFor(m, nil))

		return err
	})

	return affected, err
}

func (e *Engine) toResult(m *Model, adapter Adapter, rows []Row) (Result, error) {
	entities, err := e.materialize(m, adapter, false, rows)
	if err != nil {
		return Result{}, err
	}

	return newResult(entities), nil
}

/***** validation *****/

func (e *Engine) validateKeyValues(m *Model, kv KeyValues) error {
	if err := m.requireTable(); err != nil {
		return err
	}

	for field := range kv {
		if err := m.validateFields(field); err != nil {
			return err
		}
	}

	return nil
}

func (e *Engine) validateSelector(m *Model, field string) error {
	if err := m.requireTable(); err != nil {
		return err
	}

	return m.validateFields(field)
}

func (e *Engine) validatePredicates(m *Model, predicates Predicates) error {
	if err := m.requireTable(); err != nil {
		return err
	}

	if err := predicates.Validate(); err != nil {
		return err
	}

	return m.validateFields(predicates.Fields()...)
}

func (e *Engine) validateValues(m *Model, values Values) error {
	if len(values) == 0 {
		return fmt.Errorf("%w: no values supplied for %s", ErrValidation, m.name)
	}

	for field := range values {
		if field == IDField {
			return fmt.Errorf("%w: %s.%s cannot be updated in bulk", ErrValidation, m.name, IDField)
		}

		if err := m.validateFields(field); err != nil {
			return err
		}
	}

	return nil
}
