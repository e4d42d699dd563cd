package orm

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	pluralize "github.com/gertd/go-pluralize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// RelationKind tags the variant of a Relation.
type RelationKind int

const (
	BelongsTo RelationKind = iota + 1
	HasMany
	BelongsToMany
)

func (k RelationKind) String() string {
	switch k {
	case BelongsTo:
		return "belongsTo"
	case HasMany:
		return "hasMany"
	case BelongsToMany:
		return "belongsToMany"
	default:
		return fmt.Sprintf("RelationKind(%d)", int(k))
	}
}

// Relation links an owner model to a Target model.
//
// Name is what eager-load specs list in With, by default the target model name.
// Property is the key the loaded value is stored under on the owner, e.g. "person" or "tags".
// ForeignKey is the owner's field for BelongsTo, the target's field for HasMany, and the
// join table column referencing the target for BelongsToMany. LocalKey is the join table
// column referencing the owner.
type Relation struct {
	Kind       RelationKind
	Name       string
	Property   string
	Target     string
	ForeignKey string
	JoinTable  string
	LocalKey   string

	inferred bool
}

// NewBelongsTo declares that the owner's foreignKey field references target.id.
func NewBelongsTo(target, foreignKey string) Relation {
	return Relation{
		Kind:       BelongsTo,
		Name:       target,
		Property:   singularProperty(target),
		Target:     target,
		ForeignKey: foreignKey,
	}
}

// NewHasMany declares that target.foreignKey references the owner's id.
func NewHasMany(target, foreignKey string) Relation {
	return Relation{
		Kind:       HasMany,
		Name:       target,
		Property:   pluralProperty(target),
		Target:     target,
		ForeignKey: foreignKey,
	}
}

// NewBelongsToMany declares a many-to-many link through joinTable.
func NewBelongsToMany(target, joinTable, localKey, foreignKey string) Relation {
	return Relation{
		Kind:       BelongsToMany,
		Name:       target,
		Property:   pluralProperty(target),
		Target:     target,
		ForeignKey: foreignKey,
		JoinTable:  joinTable,
		LocalKey:   localKey,
	}
}

// As overrides the relation name and property, e.g. NewBelongsTo("Person", "owner_id").As("Owner", "owner").
func (r Relation) As(name, property string) Relation {
	r.Name = name
	r.Property = property

	return r
}

// Inferred reports whether the relation was derived from naming conventions.
func (r Relation) Inferred() bool {
	return r.inferred
}

// precedence orders inferred relations competing for one name.
func (r Relation) precedence() int {
	if !r.inferred {
		return 100
	}

	switch r.Kind {
	case BelongsTo:
		return 3
	case BelongsToMany:
		return 2
	default:
		return 1
	}
}

/***** naming conventions *****/

var (
	lowerCaser = cases.Lower(language.Und)
	pluralizer = pluralize.NewClient()
)

// ForeignKeyFor is the conventional foreign key column referencing model, e.g. "person_id".
func ForeignKeyFor(model string) string {
	return lowerCaser.String(baseName(model)) + "_id"
}

// JoinTableFor is the symmetric join table name for two join table prefixes:
// the prefixes sorted, joined by "_", with the last part pluralised ("product", "tag" -> "product_tags").
func JoinTableFor(prefixA, prefixB string) string {
	first, second := prefixA, prefixB
	if second < first {
		first, second = second, first
	}

	return first + "_" + pluralizer.Plural(second)
}

// baseName strips a path-like class prefix such as "model/".
func baseName(model string) string {
	if i := strings.LastIndex(model, "/"); i >= 0 {
		return model[i+1:]
	}

	return model
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}

	return string(unicode.ToLower(r)) + s[size:]
}

func singularProperty(model string) string {
	return lowerFirst(baseName(model))
}

func pluralProperty(model string) string {
	return pluralizer.Plural(lowerFirst(baseName(model)))
}
