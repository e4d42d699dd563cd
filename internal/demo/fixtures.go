package demo

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/AntonStoeckl/active-record-orm-go/orm"
)

// Fixtures are records to insert, in order, and join table links between them.
// Records refer to each other by ref; parents map a foreign key field to the ref of the parent.
type Fixtures struct {
	Records []Record `yaml:"records"`
	Links   []Link   `yaml:"links"`
}

type Record struct {
	Ref     string            `yaml:"ref"`
	Model   string            `yaml:"model"`
	Values  map[string]any    `yaml:"values"`
	Parents map[string]string `yaml:"parents"`
}

type Link struct {
	From string   `yaml:"from"`
	To   []string `yaml:"to"`
}

// SeedReport counts what Seed wrote.
type SeedReport struct {
	Records int
	Links   int
	IDs     map[string]any
}

// DefaultFixtures are the shop fixtures shipped with the command.
func DefaultFixtures() (Fixtures, error) {
	raw, err := data.ReadFile("data/fixtures.yaml")
	if err != nil {
		return Fixtures{}, err
	}

	return LoadFixtures(raw)
}

// LoadFixtures decodes a fixtures document.
func LoadFixtures(raw []byte) (Fixtures, error) {
	var fixtures Fixtures
	if err := yaml.Unmarshal(raw, &fixtures); err != nil {
		return Fixtures{}, fmt.Errorf("decode fixtures: %w", err)
	}

	return fixtures, nil
}

// Seed writes the records through the engine, then links them. It stops at the first failure.
func Seed(ctx context.Context, engine *orm.Engine, fixtures Fixtures) (SeedReport, error) {
	report := SeedReport{IDs: make(map[string]any, len(fixtures.Records))}
	byRef := make(map[string]*orm.Entity, len(fixtures.Records))

	for _, record := range fixtures.Records {
		if _, exists := byRef[record.Ref]; exists || record.Ref == "" {
			return report, fmt.Errorf("%w: duplicate or empty ref %q", ErrInvalidDefinition, record.Ref)
		}

		entity, err := newRecord(engine, record, byRef)
		if err != nil {
			return report, err
		}

		if err = entity.Write(ctx); err != nil {
			return report, fmt.Errorf("write %s: %w", record.Ref, err)
		}

		byRef[record.Ref] = entity
		report.IDs[record.Ref] = entity.ID()
		report.Records++
	}

	for _, link := range fixtures.Links {
		from, ok := byRef[link.From]
		if !ok {
			return report, fmt.Errorf("%w: unknown ref %q", ErrInvalidDefinition, link.From)
		}

		targets := make([]*orm.Entity, 0, len(link.To))
		for _, ref := range link.To {
			target, found := byRef[ref]
			if !found {
				return report, fmt.Errorf("%w: unknown ref %q", ErrInvalidDefinition, ref)
			}
			targets = append(targets, target)
		}

		if err := from.Add(ctx, targets...); err != nil {
			return report, fmt.Errorf("link %s: %w", link.From, err)
		}

		report.Links += len(targets)
	}

	return report, nil
}

func newRecord(engine *orm.Engine, record Record, byRef map[string]*orm.Entity) (*orm.Entity, error) {
	m, err := engine.Model(record.Model)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", record.Ref, err)
	}

	entity := engine.Create(m)

	for name, raw := range record.Values {
		field, ok := m.Field(name)
		if !ok {
			return nil, fmt.Errorf("record %s: %w", record.Ref, orm.ErrUnknownField)
		}

		value, coerceErr := orm.Coerce(field.Type, raw)
		if coerceErr != nil {
			return nil, fmt.Errorf("record %s field %s: %w", record.Ref, name, coerceErr)
		}

		if err = entity.Set(name, value); err != nil {
			return nil, err
		}
	}

	for fk, ref := range record.Parents {
		parent, found := byRef[ref]
		if !found {
			return nil, fmt.Errorf("%w: record %s references unknown ref %q", ErrInvalidDefinition, record.Ref, ref)
		}

		if err = entity.Set(fk, parent.ID()); err != nil {
			return nil, err
		}
	}

	return entity, nil
}
