package domain

import (
	"context"
	"log/slog"
	"strings"
)

// LabelSuggestedLocation fills in the city of a suggestion that has none by
// reverse geocoding its coordinates. If geocoder is nil or the lookup fails
// the location is returned unchanged (graceful degradation).
func LabelSuggestedLocation(ctx context.Context, loc SuggestedLocation, geocoder Geocoder, logger *slog.Logger) SuggestedLocation {
	if geocoder == nil || loc.City != "" {
		return loc
	}

	result, err := geocoder.ReverseGeocode(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"lat", loc.Latitude,
			"lon", loc.Longitude,
			"error", err,
		)
		return loc
	}

	loc.City = strings.TrimSpace(result.PlaceName)
	return loc
}

// GeocodeAffiliation looks up coordinates for an affiliation name. found is
// false when the provider returned no match; that is not an error.
func GeocodeAffiliation(ctx context.Context, affiliation string, geocoder Geocoder) (loc LatLng, found bool, err error) {
	affiliation = strings.TrimSpace(affiliation)
	if affiliation == "" {
		return LatLng{}, false, nil
	}

	result, err := geocoder.ForwardGeocode(ctx, affiliation)
	if err != nil {
		return LatLng{}, false, err
	}
	if result.Lat == 0 && result.Lon == 0 {
		return LatLng{}, false, nil
	}
	return LatLng{Lat: result.Lat, Lng: result.Lon}, true, nil
}
