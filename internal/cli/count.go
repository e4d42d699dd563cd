package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/active-record-orm-go/orm"
)

// CountOptions holds the flags of the count command.
type CountOptions struct {
	*RootOptions
	Where []string
}

// NewCountCommand creates the command that counts records matching field=value pairs.
func NewCountCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CountOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "count <model>",
		Short: "Count records, optionally filtered by field=value",
		Args:  cobra.ExactArgs(1),
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

			kv, err := keyValues(m, opts.Where)
			if err != nil {
				return err
			}

			count, err := s.engine.Count(cmd.Context(), m, kv)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), count)

			return err
		},
	}

	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, "field=value filter, repeatable")

	return cmd
}

// keyValues parses field=value pairs and coerces each value to the field type.
func keyValues(m *orm.Model, pairs []string) (orm.KeyValues, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	kv := make(orm.KeyValues, len(pairs))

	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("%w: filter %q is not field=value", orm.ErrValidation, pair)
		}

		if name == orm.IDField {
			kv[name] = parseID(raw)
			continue
		}

		field, declared := m.Field(name)
		if !declared {
			return nil, fmt.Errorf("%w: %s.%s", orm.ErrUnknownField, m.Name(), name)
		}

		value, err := orm.Coerce(field.Type, raw)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", name, err)
		}

		kv[name] = value
	}

	return kv, nil
}
