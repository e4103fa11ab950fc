package cli

import (
	"fmt"

	"github.com/couchcryptid/submission-map/internal/domain"
	"github.com/spf13/cobra"
)

type validation struct {
	Dataset   string                    `json:"dataset"`
	Schema    domain.Schema             `json:"schema"`
	Features  int                       `json:"features"`
	Skipped   int                       `json:"skipped"`
	Problems  []string                  `json:"problems,omitempty"`
	Suggested *domain.SuggestedLocation `json:"suggested_location,omitempty"`
}

func newValidateCommand(_ Dependencies) *cobra.Command {
	var (
		schemaName string
		strict     bool
	)

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check that a dataset file renders on the map.",
		Long: "Run the map's transformer over a dataset file and report how many\n" +
			"submissions become markers. Exits 1 on unreadable or mis-shaped\n" +
			"files and, with --strict, when any submission is skipped.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := domain.ParseSchema(schemaName)
			if err != nil {
				return &exitError{code: 2, err: err}
			}

			doc, err := readDocument(cmd, args[0])
			if err != nil {
				return err
			}
			result, err := domain.Transform(doc, schema)
			if err != nil {
				return err
			}

			report := validation{
				Dataset:   args[0],
				Schema:    schema,
				Features:  len(result.Features),
				Skipped:   result.Skipped,
				Suggested: domain.ExtractSuggestedLocation(doc),
			}
			for _, skipErr := range result.SkipErrors {
				report.Problems = append(report.Problems, skipErr.Error())
			}
			if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}

			if strict && result.Skipped > 0 {
				return &exitError{code: 1, err: fmt.Errorf("%d submissions skipped", result.Skipped)}
			}
			return nil
		},
	}
	addSchemaFlag(cmd, &schemaName)
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when any submission is skipped.")
	return cmd
}
