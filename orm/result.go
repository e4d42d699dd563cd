package orm

// ResultKind tags how many entities a bulk read produced.
type ResultKind int

const (
	ResultNone ResultKind = iota
	ResultOne
	ResultMany
)

func (k ResultKind) String() string {
	switch k {
	case ResultOne:
		return "one"
	case ResultMany:
		return "many"
	default:
		return "none"
	}
}

// Result of ReadAll, ReadBy and ReadWith: no entity, exactly one, or two and more in adapter order.
type Result struct {
	kind     ResultKind
	entities []*Entity
}

func newResult(entities []*Entity) Result {
	switch len(entities) {
	case 0:
		return Result{kind: ResultNone}
	case 1:
		return Result{kind: ResultOne, entities: entities}
	default:
		return Result{kind: ResultMany, entities: entities}
	}
}

func (r Result) Kind() ResultKind {
	return r.kind
}

// One returns the single entity, nil unless Kind is ResultOne.
func (r Result) One() *Entity {
	if r.kind != ResultOne {
		return nil
	}

	return r.entities[0]
}

// Many returns the entities, nil unless Kind is ResultMany.
func (r Result) Many() []*Entity {
	if r.kind != ResultMany {
		return nil
	}

	return r.entities
}

// All returns every entity regardless of kind.
func (r Result) All() []*Entity {
	out := make([]*Entity, len(r.entities))
	copy(out, r.entities)

	return out
}

func (r Result) Len() int {
	return len(r.entities)
}

// Unwrap yields nil, a *Entity or a []*Entity depending on Kind.
func (r Result) Unwrap() any {
	switch r.kind {
	case ResultOne:
		return r.entities[0]
	case ResultMany:
		return r.entities
	default:
		return nil
	}
}
