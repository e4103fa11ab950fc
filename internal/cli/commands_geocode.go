package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/couchcryptid/submission-map/internal/domain"
	"github.com/spf13/cobra"
)

type coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func newGeocodeCommand(deps Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "geocode <affiliation>",
		Short: "Look up coordinates for an affiliation.",
		Long: "Print {\"latitude\":..,\"longitude\":..} for the affiliation, or\n" +
			"{\"error\":\"Location not found\"} when the geocoder has no match.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps.Geocoder == nil {
				return &exitError{code: 2, err: errors.New("geocoding requires MAPBOX_TOKEN")}
			}

			affiliation := strings.Join(args, " ")
			loc, found, err := domain.GeocodeAffiliation(cmd.Context(), affiliation, deps.Geocoder)
			if err != nil {
				return fmt.Errorf("geocode %q: %w", affiliation, err)
			}

			var out any = map[string]string{"error": "Location not found"}
			if found {
				out = coordinates{Latitude: loc.Lat, Longitude: loc.Lng}
			}
			data, err := json.Marshal(out)
			if err != nil {
				return fmt.Errorf("encode output: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}
