package domain

import "context"

// GeocodingResult contains location data returned by a geocoding provider.
type GeocodingResult struct {
	Lat              float64
	Lon              float64
	FormattedAddress string
	PlaceName        string
	Confidence       float64 // 0.0–1.0 provider confidence score
}

// Geocoder resolves places to coordinates and back.
type Geocoder interface {
	// ForwardGeocode converts a free-form place query, typically an
	// affiliation name, to coordinates.
	ForwardGeocode(ctx context.Context, query string) (GeocodingResult, error)

	// ReverseGeocode converts coordinates to the nearest named place.
	ReverseGeocode(ctx context.Context, lat, lon float64) (GeocodingResult, error)
}
