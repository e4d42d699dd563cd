package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/active-record-orm-go/internal/demo"
)

// NewInitCommand creates the command that creates the demo tables.
func NewInitCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the demo tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			schema, err := demo.Schema(s.cfg.Driver)
			if err != nil {
				return err
			}

			if err = s.handle.Exec(cmd.Context(), schema); err != nil {
				return fmt.Errorf("create tables: %w", err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "created tables for %s\n", s.cfg.Driver)

			return err
		},
	}
}
