package orm

import (
	"fmt"
	"slices"
)

type CombinatorString = string
type ComparatorString = string

const (
	CombinatorNone CombinatorString = ""
	CombinatorAnd  CombinatorString = "AND"
	CombinatorOr   CombinatorString = "OR"
)

const (
	Equal            ComparatorString = "EQUAL"
	NotEqual         ComparatorString = "NOT_EQUAL"
	GreaterThan      ComparatorString = "GREATER_THAN"
	GreaterThanEqual ComparatorString = "GREATER_THAN_EQUAL"
	LessThan         ComparatorString = "LESS_THAN"
	LessThanEqual    ComparatorString = "LESS_THAN_EQUAL"
	Like             ComparatorString = "LIKE"
	NotLike          ComparatorString = "NOT_LIKE"
	In               ComparatorString = "IN"
	NotIn            ComparatorString = "NOT_IN"
	Between          ComparatorString = "BETWEEN"
	IsNull           ComparatorString = "IS_NULL"
	IsNotNull        ComparatorString = "IS_NOT_NULL"
)

var knownComparators = []ComparatorString{
	Equal, NotEqual, GreaterThan, GreaterThanEqual, LessThan, LessThanEqual,
	Like, NotLike, In, NotIn, Between, IsNull, IsNotNull,
}

// KnownComparator reports whether adapters are required to understand the comparator.
func KnownComparator(comparator ComparatorString) bool {
	return slices.Contains(knownComparators, comparator)
}

/***** Clause *****/

// Clause is one WHERE condition: (combinator, field, comparator, value).
type Clause struct {
	Combinator CombinatorString
	Field      string
	Comparator ComparatorString
	Value      any
}

// C builds a Clause from the tuple form used on the wire, e.g. C("AND", "name", "EQUAL", "peter").
func C(combinator CombinatorString, field string, comparator ComparatorString, value any) Clause {
	return Clause{Combinator: combinator, Field: field, Comparator: comparator, Value: value}
}

// Tuple returns the clause in its wire form.
func (c Clause) Tuple() [4]any {
	return [4]any{c.Combinator, c.Field, c.Comparator, c.Value}
}

/***** Predicates *****/

// Predicates is an ordered list of clauses. The first combinator is conventionally empty.
type Predicates []Clause

// Validate rejects unknown comparators and combinators, list values on scalar comparators
// and malformed BETWEEN ranges. Adapters call it before translating the list.
func (p Predicates) Validate() error {
	for i, clause := range p {
		if !KnownComparator(clause.Comparator) {
			return fmt.Errorf("%w: %q at clause %d", ErrUnknownComparator, clause.Comparator, i)
		}

		switch clause.Combinator {
		case CombinatorNone, CombinatorAnd, CombinatorOr:
		default:
			return fmt.Errorf("%w: combinator %q at clause %d", ErrInvalidPredicate, clause.Combinator, i)
		}

		if clause.Field == "" {
			return fmt.Errorf("%w: empty field at clause %d", ErrInvalidPredicate, i)
		}

		if clause.Comparator == Between {
			if bounds, ok := clause.Value.([]any); !ok || len(bounds) != 2 {
				return fmt.Errorf("%w: BETWEEN needs two bounds at clause %d", ErrInvalidPredicate, i)
			}
		}
	}

	return nil
}

// Fields lists the distinct fields referenced by the predicates in order of appearance.
func (p Predicates) Fields() []string {
	fields := make([]string, 0, len(p))
	for _, clause := range p {
		if !slices.Contains(fields, clause.Field) {
			fields = append(fields, clause.Field)
		}
	}

	return fields
}

// Groups splits the list at every OR into AND-chains, which is how SQL precedence reads
// "a AND b OR c": (a AND b) OR (c). A row matches if any group matches completely.
func (p Predicates) Groups() [][]Clause {
	groups := make([][]Clause, 0)
	current := make([]Clause, 0)

	for i, clause := range p {
		if i > 0 && clause.Combinator == CombinatorOr {
			groups = append(groups, current)
			current = make([]Clause, 0)
		}
		current = append(current, clause)
	}

	if len(current) > 0 {
		groups = append(groups, current)
	}

	return groups
}

/***** PredicateBuilder *****/

// PredicateBuilder builds Predicates fluently:
//
//	Where("price", Equal, 100).And("name", Equal, "peter").Or("name", Like, "p%").Finalize()
type PredicateBuilder interface {
	And(field string, comparator ComparatorString, value any) PredicateBuilder
	Or(field string, comparator ComparatorString, value any) PredicateBuilder
	Finalize() Predicates
}

type predicateBuilder struct {
	predicates Predicates
}

// Where starts a predicate list with its first clause.
func Where(field string, comparator ComparatorString, value any) PredicateBuilder {
	return predicateBuilder{predicates: Predicates{C(CombinatorNone, field, comparator, value)}}
}

func (pb predicateBuilder) And(field string, comparator ComparatorString, value any) PredicateBuilder {
	pb.predicates = append(slices.Clip(pb.predicates), C(CombinatorAnd, field, comparator, value))

	return pb
}

func (pb predicateBuilder) Or(field string, comparator ComparatorString, value any) PredicateBuilder {
	pb.predicates = append(slices.Clip(pb.predicates), C(CombinatorOr, field, comparator, value))

	return pb
}

func (pb predicateBuilder) Finalize() Predicates {
	return slices.Clone(pb.predicates)
}
