package demo

import (
	"cmp"
	"embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/AntonStoeckl/active-record-orm-go/orm"
)

//go:embed data
var data embed.FS

var ErrInvalidDefinition = errors.New("invalid definition")

// Relation kinds accepted in model files.
const (
	RelationBelongsTo     = "belongs_to"
	RelationHasMany       = "has_many"
	RelationBelongsToMany = "belongs_to_many"
)

type modelsFile struct {
	Models []modelDoc `yaml:"models"`
}

type modelDoc struct {
	Name            string        `yaml:"name"`
	Table           string        `yaml:"table"`
	JoinTablePrefix string        `yaml:"join_table_prefix"`
	Fields          []fieldDoc    `yaml:"fields"`
	Relations       []relationDoc `yaml:"relations"`
}

type fieldDoc struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Default any    `yaml:"default"`
}

type relationDoc struct {
	Kind       string `yaml:"kind"`
	Target     string `yaml:"target"`
	ForeignKey string `yaml:"foreign_key"`
	JoinTable  string `yaml:"join_table"`
	LocalKey   string `yaml:"local_key"`
	Name       string `yaml:"name"`
	Property   string `yaml:"property"`
}

// DefaultModels are the shop models shipped with the command.
func DefaultModels() ([]orm.ModelDef, error) {
	raw, err := data.ReadFile("data/models.yaml")
	if err != nil {
		return nil, err
	}

	return LoadModels(raw)
}

// LoadModels decodes model declarations. Field defaults are coerced to the field type.
func LoadModels(raw []byte) ([]orm.ModelDef, error) {
	var file modelsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode models: %w", err)
	}

	defs := make([]orm.ModelDef, 0, len(file.Models))

	for _, doc := range file.Models {
		def := orm.ModelDef{
			Name:            doc.Name,
			TableName:       doc.Table,
			JoinTablePrefix: doc.JoinTablePrefix,
		}

		for _, f := range doc.Fields {
			field, err := f.field()
			if err != nil {
				return nil, fmt.Errorf("model %s: %w", doc.Name, err)
			}
			def.Fields = append(def.Fields, field)
		}

		for _, r := range doc.Relations {
			rel, err := r.relation()
			if err != nil {
				return nil, fmt.Errorf("model %s: %w", doc.Name, err)
			}
			def.Relations = append(def.Relations, rel)
		}

		defs = append(defs, def)
	}

	return defs, nil
}

func (f fieldDoc) field() (orm.Field, error) {
	fieldType, err := orm.ParseFieldType(f.Type)
	if err != nil {
		return orm.Field{}, fmt.Errorf("field %s: %w", f.Name, err)
	}

	field := orm.F(f.Name, fieldType)

	if f.Default != nil {
		if field.Default, err = orm.Coerce(fieldType, f.Default); err != nil {
			return orm.Field{}, fmt.Errorf("default of field %s: %w", f.Name, err)
		}
	}

	return field, nil
}

func (r relationDoc) relation() (orm.Relation, error) {
	var rel orm.Relation

	switch r.Kind {
	case RelationBelongsTo:
		rel = orm.NewBelongsTo(r.Target, r.ForeignKey)
	case RelationHasMany:
		rel = orm.NewHasMany(r.Target, r.ForeignKey)
	case RelationBelongsToMany:
		rel = orm.NewBelongsToMany(r.Target, r.JoinTable, r.LocalKey, r.ForeignKey)
	default:
		return orm.Relation{}, fmt.Errorf("%w: relation kind %q", ErrInvalidDefinition, r.Kind)
	}

	if r.Target == "" || r.ForeignKey == "" {
		return orm.Relation{}, fmt.Errorf("%w: %s relation needs target and foreign_key", ErrInvalidDefinition, r.Kind)
	}

	if r.Name != "" || r.Property != "" {
		rel = rel.As(cmp.Or(r.Name, rel.Name), cmp.Or(r.Property, rel.Property))
	}

	return rel, nil
}

// Schema returns the DDL creating the demo tables for driver ("sqlite" or "postgres").
func Schema(driver string) (string, error) {
	raw, err := data.ReadFile("data/schema_" + driver + ".sql")
	if err != nil {
		return "", fmt.Errorf("%w: no schema for driver %q", ErrInvalidDefinition, driver)
	}

	return string(raw), nil
}
