package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand builds the complete command tree.
func NewRootCommand(deps Dependencies) *cobra.Command {
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	root := &cobra.Command{
		Use:           "mapctl",
		Short:         "Inspect and prepare submission map datasets.",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	root.AddCommand(newSuggestCommand(deps))
	root.AddCommand(newGeocodeCommand(deps))
	root.AddCommand(newValidateCommand(deps))
	root.AddCommand(newImportCommand(deps))
	return root
}
