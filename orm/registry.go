package orm

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry holds model classes and their resolved relations.
// Relations are re-inferred whenever models are registered, so forward references resolve
// as soon as the referenced model shows up.
type Registry struct {
	mu          sync.RWMutex
	classPrefix string
	models      map[string]*Model
	order       []string
	relations   map[string]map[string]Relation
	joins       map[string]map[string]Relation
}

// RegistryOption defines a functional option for configuring a Registry.
type RegistryOption func(*Registry) error

// WithClassPrefix sets the prefix qualified class names carry, e.g. "model/".
// Model accepts names with or without it.
func WithClassPrefix(prefix string) RegistryOption {
	return func(r *Registry) error {
		r.classPrefix = prefix
		return nil
	}
}

// NewRegistry creates an empty Registry.
func NewRegistry(options ...RegistryOption) (*Registry, error) {
	r := &Registry{
		models:    make(map[string]*Model),
		relations: make(map[string]map[string]Relation),
		joins:     make(map[string]map[string]Relation),
	}

	for _, option := range options {
		if err := option(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// ClassPrefix returns the configured class prefix.
func (r *Registry) ClassPrefix() string {
	return r.classPrefix
}

// Register adds model definitions. Either all definitions are registered or none.
func (r *Registry) Register(defs ...ModelDef) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	added := make([]*Model, 0, len(defs))
	seen := make(map[string]bool, len(defs))

	for _, def := range defs {
		def.Name = r.unqualified(def.Name)

		m, err := newModel(def, r)
		if err != nil {
			return err
		}

		if _, exists := r.models[m.name]; exists || seen[m.name] {
			return fmt.Errorf("%w: %s", ErrDuplicateModel, m.name)
		}

		seen[m.name] = true
		added = append(added, m)
	}

	for _, m := range added {
		r.models[m.name] = m
		r.order = append(r.order, m.name)
	}

	r.inferRelations()

	return nil
}

// Model resolves a class name, with or without the class prefix.
func (r *Registry) Model(name string) (*Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.models[r.unqualified(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClass, name)
	}

	return m, nil
}

// Models returns all registered models in registration order.
func (r *Registry) Models() []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()

	models := make([]*Model, 0, len(r.order))
	for _, name := range r.order {
		models = append(models, r.models[name])
	}

	return models
}

func (r *Registry) unqualified(name string) string {
	if r.classPrefix == "" {
		return name
	}

	return strings.TrimPrefix(name, r.classPrefix)
}

func (r *Registry) relation(model, nameOrProperty string) (Relation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byName := r.relations[model]
	if rel, ok := byName[r.unqualified(nameOrProperty)]; ok {
		return rel, true
	}

	for _, rel := range byName {
		if rel.Property == nameOrProperty {
			return rel, true
		}
	}

	return Relation{}, false
}

// manyToMany returns the join table relation from model to target. It is tracked apart from the
// named relations, so a foreign key relation to the same target does not hide it.
func (r *Registry) manyToMany(model, target string) (Relation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rel, ok := r.joins[model][r.unqualified(target)]

	return rel, ok
}

func (r *Registry) relationsOf(model string) []Relation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	relations := make([]Relation, 0, len(r.relations[model]))
	for _, rel := range r.relations[model] {
		relations = append(relations, rel)
	}

	sort.Slice(relations, func(i, j int) bool {
		return relations[i].Name < relations[j].Name
	})

	return relations
}

// inferRelations rebuilds the relation table from explicit declarations and naming conventions.
// Callers hold the write lock.
func (r *Registry) inferRelations() {
	relations := make(map[string]map[string]Relation, len(r.models))
	joins := make(map[string]map[string]Relation, len(r.models))
	for name := range r.models {
		relations[name] = make(map[string]Relation)
		joins[name] = make(map[string]Relation)
	}

	offer := func(owner string, rel Relation) {
		current, exists := relations[owner][rel.Name]
		if !exists || rel.precedence() > current.precedence() {
			relations[owner][rel.Name] = rel
		}

		if rel.Kind != BelongsToMany {
			return
		}

		current, exists = joins[owner][rel.Target]
		if !exists || rel.precedence() > current.precedence() {
			joins[owner][rel.Target] = rel
		}
	}

	for _, ownerName := range r.order {
		owner := r.models[ownerName]

		for _, rel := range owner.explicit {
			rel.Target = r.unqualified(rel.Target)
			if rel.Name == "" {
				rel.Name = rel.Target
			}
			rel.inferred = false
			offer(ownerName, rel)
		}

		for _, targetName := range r.order {
			target := r.models[targetName]

			fk := ForeignKeyFor(targetName)
			if owner.HasField(fk) {
				belongsTo := NewBelongsTo(targetName, fk)
				belongsTo.inferred = true
				offer(ownerName, belongsTo)

				hasMany := NewHasMany(ownerName, fk)
				if targetName == ownerName {
					// a self reference keeps both directions under distinct names
					hasMany = hasMany.As(hasMany.Property, hasMany.Property)
				}
				hasMany.inferred = true
				offer(targetName, hasMany)
			}

			if targetName != ownerName && owner.joinTablePrefix != "" && target.joinTablePrefix != "" {
				belongsToMany := NewBelongsToMany(
					targetName,
					JoinTableFor(owner.joinTablePrefix, target.joinTablePrefix),
					owner.joinTablePrefix+"_id",
					target.joinTablePrefix+"_id",
				)
				belongsToMany.inferred = true
				offer(ownerName, belongsToMany)
			}
		}
	}

	r.relations = relations
	r.joins = joins
}
