package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/couchcryptid/submission-map/internal/domain"
	"github.com/spf13/cobra"
)

type suggestion struct {
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	City          string  `json:"city,omitempty"`
	TotalDistance float64 `json:"total_distance"`
	Features      int     `json:"features"`
	Skipped       int     `json:"skipped"`
}

func newSuggestCommand(deps Dependencies) *cobra.Command {
	var (
		schemaName string
		write      bool
	)

	cmd := &cobra.Command{
		Use:   "suggest <file>",
		Short: "Compute the geometric median of a dataset's submissions.",
		Long: "Compute the point minimising the total distance to every submission and,\n" +
			"when a Mapbox token is configured, label it with the nearest city.\n" +
			"With --write the result is stored as suggested_location in the file.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := domain.ParseSchema(schemaName)
			if err != nil {
				return &exitError{code: 2, err: err}
			}
			if write && (args[0] == "-" || schema != domain.SchemaHappenings) {
				return &exitError{code: 2, err: errors.New("--write needs a happenings file path")}
			}

			doc, err := readDocument(cmd, args[0])
			if err != nil {
				return err
			}
			result, err := domain.Transform(doc, schema)
			if err != nil {
				return err
			}
			lat, lon, total, err := domain.GeometricMedian(result.Features)
			if err != nil {
				return fmt.Errorf("compute median: %w", err)
			}

			loc := domain.LabelSuggestedLocation(cmd.Context(),
				domain.SuggestedLocation{Latitude: lat, Longitude: lon},
				deps.Geocoder, deps.Logger)

			if write {
				if err := writeSuggestedLocation(args[0], doc, loc); err != nil {
					return err
				}
			}

			return writeJSON(cmd.OutOrStdout(), suggestion{
				Latitude:      loc.Latitude,
				Longitude:     loc.Longitude,
				City:          loc.City,
				TotalDistance: total,
				Features:      len(result.Features),
				Skipped:       result.Skipped,
			})
		},
	}
	addSchemaFlag(cmd, &schemaName)
	cmd.Flags().BoolVar(&write, "write", false, "Store the result as suggested_location in the file.")
	return cmd
}

// writeSuggestedLocation replaces the document's suggested_location and
// rewrites the file. Other top-level keys are preserved.
func writeSuggestedLocation(path string, doc domain.DatasetDocument, loc domain.SuggestedLocation) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(doc.Raw, &top); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}

	value := map[string]any{"latitude": loc.Latitude, "longitude": loc.Longitude}
	if loc.City != "" {
		value["city"] = loc.City
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode suggested location: %w", err)
	}
	top["suggested_location"] = encoded

	out, err := json.MarshalIndent(top, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(out, '\n'), info.Mode().Perm()); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
