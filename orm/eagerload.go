package orm

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// EagerLoad describes which relations to load. With lists relation names ("Person", "Tag");
// Nested maps a relation property ("person", "tags") to the spec applied to the loaded entities.
// A nil spec or an empty With ends the branch.
type EagerLoad struct {
	With   []string
	Nested map[string]*EagerLoad
}

// With starts an eager-load spec for the given relation names.
func With(names ...string) *EagerLoad {
	return &EagerLoad{With: names}
}

// Load attaches the nested spec for the relation stored under property.
func (s *EagerLoad) Load(property string, nested *EagerLoad) *EagerLoad {
	if s.Nested == nil {
		s.Nested = make(map[string]*EagerLoad)
	}

	s.Nested[property] = nested

	return s
}

// exceeds reports whether spec loads relations deeper than limit. The walk never goes past limit.
func (s *EagerLoad) exceeds(limit int) bool {
	if s == nil || len(s.With) == 0 {
		return false
	}

	if limit <= 0 {
		return true
	}

	for _, nested := range s.Nested {
		if nested.exceeds(limit - 1) {
			return true
		}
	}

	return false
}

type assignment struct {
	owner *Entity
	value any
}

type loadedRelation struct {
	relation    Relation
	target      *Model
	targets     []*Entity
	assignments []assignment
}

// EagerLoad resolves spec for entities, which must all be of the same model. Every relation of a
// level costs at most one adapter call however many entities are loaded.
func (e *Engine) EagerLoad(ctx context.Context, spec *EagerLoad, entities ...*Entity) error {
	if len(entities) == 0 {
		return nil
	}

	model := entities[0].model

	return e.observe(ctx, operationEagerLoad, model, func(ctx context.Context) error {
		for _, en := range entities[1:] {
			if en.model != model {
				return fmt.Errorf("%w: %s and %s", ErrMixedModels, model.name, en.model.name)
			}
		}

		if e.maxEagerLoadDepth > 0 && spec.exceeds(e.maxEagerLoadDepth) {
			return fmt.Errorf("%w: maximum %d", ErrEagerLoadDepthExceeded, e.maxEagerLoadDepth)
		}

		return e.loadLevel(ctx, model, entities, spec, 1)
	})
}

func (e *Engine) loadLevel(ctx context.Context, owner *Model, owners []*Entity, spec *EagerLoad, depth int) error {
	if spec == nil || len(spec.With) == 0 || len(owners) == 0 {
		return nil
	}

	relations := make([]Relation, len(spec.With))
	targets := make([]*Model, len(spec.With))

	for i, name := range spec.With {
		rel, ok := owner.Relation(name)
		if !ok {
			return fmt.Errorf("%w: %s has no relation %s", ErrUnknownRelation, owner.name, name)
		}

		target, err := e.registry.Model(rel.Target)
		if err != nil {
			return err
		}

		relations[i] = rel
		targets[i] = target
	}

	results := make([]loadedRelation, len(relations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.eagerLoadConcurrency)

	for i := range relations {
		g.Go(func() error {
			loaded, err := e.loadRelation(gctx, owners, relations[i], targets[i])
			if err != nil {
				return err
			}

			results[i] = loaded

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	for _, loaded := range results {
		for _, a := range loaded.assignments {
			a.owner.setRelated(loaded.relation.Property, a.value)
		}

		e.recordEagerLoadedEntities(ctx, owner.name, loaded.relation.Name, len(loaded.targets))
		e.logOperation(
			ctx,
			operationEagerLoad,
			logAttrModel, owner.name,
			logAttrRelation, loaded.relation.Name,
			logAttrCount, len(loaded.targets),
			logAttrDepth, depth,
		)
	}

	for _, loaded := range results {
		nested := spec.Nested[loaded.relation.Property]
		if err := e.loadLevel(ctx, loaded.target, loaded.targets, nested, depth+1); err != nil {
			return err
		}
	}

	return nil
}

func (e *Engine) loadRelation(ctx context.Context, owners []*Entity, rel Relation, target *Model) (loadedRelation, error) {
	adapter := e.relatedAdapter(owners[0], target)
	override := owners[0].adapterOverride
	loaded := loadedRelation{relation: rel, target: target}

	switch rel.Kind {
	case BelongsTo:
		keys := distinctIDs(owners, func(en *Entity) any { return en.values[rel.ForeignKey] })
		byID := make(map[string]*Entity, len(keys))

		if len(keys) > 0 {
			rows, err := adapter.ReadBy(ctx, target, IDField, keys)
			if err != nil {
				return loadedRelation{}, err
			}

			parents, err := e.materialize(target, adapter, override, rows)
			if err != nil {
				return loadedRelation{}, err
			}

			for _, parent := range parents {
				byID[idKey(parent.id)] = parent
			}
			loaded.targets = parents
		}

		for _, owner := range owners {
			var value any
			if fk := owner.values[rel.ForeignKey]; fk != nil {
				if parent, ok := byID[idKey(fk)]; ok {
					value = parent
				}
			}
			loaded.assignments = append(loaded.assignments, assignment{owner: owner, value: value})
		}

	case HasMany:
		ids := distinctIDs(owners, func(en *Entity) any { return en.id })
		grouped := make(map[string][]*Entity)

		if len(ids) > 0 {
			rows, err := adapter.HasMany(ctx, target, rel.ForeignKey, ids)
			if err != nil {
				return loadedRelation{}, err
			}

			children, err := e.materialize(target, adapter, override, rows)
			if err != nil {
				return loadedRelation{}, err
			}

			for _, child := range children {
				key := idKey(child.values[rel.ForeignKey])
				grouped[key] = append(grouped[key], child)
			}
			loaded.targets = children
		}

		loaded.assignments = groupedAssignments(owners, grouped)

	case BelongsToMany:
		ids := distinctIDs(owners, func(en *Entity) any { return en.id })
		grouped := make(map[string][]*Entity)

		if len(ids) > 0 {
			rows, err := adapter.BelongsToMany(ctx, target, rel.JoinTable, rel.LocalKey, rel.ForeignKey, ids)
			if err != nil {
				return loadedRelation{}, err
			}

			// one target may be linked to several owners; it is materialised once
			byID := make(map[string]*Entity)

			for _, row := range rows {
				siblings, err := e.materialize(target, adapter, override, []Row{row})
				if err != nil {
					return loadedRelation{}, err
				}

				sibling := siblings[0]
				if existing, ok := byID[idKey(sibling.id)]; ok {
					sibling = existing
				} else {
					byID[idKey(sibling.id)] = sibling
					loaded.targets = append(loaded.targets, sibling)
				}

				key := idKey(row[rel.LocalKey])
				grouped[key] = append(grouped[key], sibling)
			}
		}

		loaded.assignments = groupedAssignments(owners, grouped)

	default:
		return loadedRelation{}, fmt.Errorf("%w: unsupported kind %s", ErrUnknownRelation, rel.Kind)
	}

	return loaded, nil
}

func groupedAssignments(owners []*Entity, grouped map[string][]*Entity) []assignment {
	assignments := make([]assignment, 0, len(owners))

	for _, owner := range owners {
		related := make([]*Entity, 0)
		if owner.id != nil {
			related = append(related, grouped[idKey(owner.id)]...)
		}
		assignments = append(assignments, assignment{owner: owner, value: related})
	}

	return assignments
}

// distinctIDs collects the non-nil keys of owners, first occurrence wins.
func distinctIDs(owners []*Entity, key func(*Entity) any) []any {
	seen := make(map[string]bool, len(owners))
	ids := make([]any, 0, len(owners))

	for _, owner := range owners {
		id := key(owner)
		if id == nil || seen[idKey(id)] {
			continue
		}

		seen[idKey(id)] = true
		ids = append(ids, id)
	}

	return ids
}
