package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/active-record-orm-go/internal/demo"
)

// SeedOptions holds the flags of the seed command.
type SeedOptions struct {
	*RootOptions
	File string
}

// NewSeedCommand creates the command that writes fixtures through the engine.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert fixture records and links",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fixtures, err := loadFixtures(opts.File)
			if err != nil {
				return err
			}

			s, err := openSession(cmd.Context(), opts.RootOptions, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			report, err := demo.Seed(cmd.Context(), s.engine, fixtures)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "seeded %d records and %d links\n", report.Records, report.Links)

			return err
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "fixtures file (default: built-in shop fixtures)")

	return cmd
}

func loadFixtures(path string) (demo.Fixtures, error) {
	if path == "" {
		return demo.DefaultFixtures()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return demo.Fixtures{}, fmt.Errorf("read fixtures: %w", err)
	}

	return demo.LoadFixtures(raw)
}
