package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/davecgh/go-spew/spew"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/active-record-orm-go/orm"
)

// ShowOptions holds the flags of the show command.
type ShowOptions struct {
	*RootOptions
	With   []string
	Format string
}

var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	SortKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// NewShowCommand creates the command that reads one record and eager loads relations.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <model> <id>",
		Short: "Read a record with eager-loaded relations",
		Long: "Reads a record by id. --with takes relation names; a dotted path like Person.Address " +
			"loads nested relations of the loaded records.",
		Args: cobra.ExactArgs(2),
		PreRunE: func(_ *cobra.Command, _ []string) error {
			return validateFormat(opts.Format)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), opts.RootOptions, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			m, err := s.engine.Model(args[0])
			if err != nil {
				return err
			}

			spec, err := eagerLoadSpec(m, opts.With)
			if err != nil {
				return err
			}

			entity, err := s.engine.Factory(cmd.Context(), m, parseID(args[1]))
			if err != nil {
				return err
			}

			if err = entity.EagerLoad(cmd.Context(), spec); err != nil {
				return err
			}

			return writeEntity(cmd.OutOrStdout(), entity, opts.Format)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.With, "with", "w", nil, "relations to eager load (comma separated)")
	cmd.Flags().StringVar(&opts.Format, "format", FormatJSON, "output format (json|dump)")

	return cmd
}

// eagerLoadSpec turns dotted relation paths into a nested eager-load spec.
// Nested specs are keyed by the property the parent relation is stored under.
func eagerLoadSpec(m *orm.Model, paths []string) (*orm.EagerLoad, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	spec := &orm.EagerLoad{}

	for _, path := range paths {
		if err := addPath(m, spec, strings.Split(strings.TrimSpace(path), ".")); err != nil {
			return nil, err
		}
	}

	return spec, nil
}

func addPath(m *orm.Model, spec *orm.EagerLoad, names []string) error {
	name := names[0]

	rel, ok := m.Relation(name)
	if !ok {
		return fmt.Errorf("%w: %s has no relation %s", orm.ErrUnknownRelation, m.Name(), name)
	}

	if !slices.Contains(spec.With, rel.Name) {
		spec.With = append(spec.With, rel.Name)
	}

	if len(names) == 1 {
		return nil
	}

	target, err := m.Registry().Model(rel.Target)
	if err != nil {
		return err
	}

	nested := spec.Nested[rel.Property]
	if nested == nil {
		nested = &orm.EagerLoad{}
		spec.Load(rel.Property, nested)
	}

	return addPath(target, nested, names[1:])
}

// parseID keeps non-numeric ids, such as UUIDs, as strings.
func parseID(raw string) any {
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return id
	}

	return raw
}

func writeEntity(w io.Writer, entity *orm.Entity, format string) error {
	if format == FormatDump {
		dumpConfig.Fdump(w, tree(entity))
		return nil
	}

	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(entity)
	if err != nil {
		return err
	}

	_, err = w.Write(append(data, '\n'))

	return err
}

// tree is the entity graph as plain maps, for dumping.
func tree(entity *orm.Entity) map[string]any {
	node := map[string]any{orm.IDField: entity.ID()}
	maps.Copy(node, entity.Values())

	for _, rel := range entity.Model().Relations() {
		value, loaded := entity.Related(rel.Property)
		if !loaded {
			continue
		}

		switch related := value.(type) {
		case *orm.Entity:
			node[rel.Property] = tree(related)
		case []*orm.Entity:
			list := make([]map[string]any, 0, len(related))
			for _, child := range related {
				list = append(list, tree(child))
			}
			node[rel.Property] = list
		default:
			node[rel.Property] = nil
		}
	}

	return node
}
