package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Models  string
}

// Output formats of the show command.
const (
	FormatJSON = "json"
	FormatDump = "dump"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{FormatJSON, FormatDump}

// NewRootCommand creates the root command for the ormdemo CLI.
// Connection settings come from ORM_* environment variables.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "ormdemo",
		Short:         "Active record ORM demo",
		Long:          "Creates, seeds and queries a small shop database through the active record engine.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log every statement")
	cmd.PersistentFlags().StringVar(&opts.Models, "models", "", "model definitions file (default: built-in shop models)")

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewCountCommand(opts))

	return cmd
}

func validateFormat(format string) error {
	if !slices.Contains(ValidFormats, format) {
		return fmt.Errorf("invalid format %q: must be one of %v", format, ValidFormats)
	}

	return nil
}
