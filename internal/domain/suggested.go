package domain

import "strings"

// ExtractSuggestedLocation returns the document's suggested_location, or nil
// when it is absent or unusable. A suggestion with unparsable or
// out-of-range coordinates is dropped rather than rendered off-map.
func ExtractSuggestedLocation(doc DatasetDocument) *SuggestedLocation {
	top, err := decodeObject(doc.Raw)
	if err != nil {
		// Flat-list documents are arrays and never carry a suggestion.
		return nil
	}
	fields, err := decodeObject(top["suggested_location"])
	if err != nil {
		return nil
	}

	lat, err := parseCoordinate(fields["latitude"], 90)
	if err != nil {
		return nil
	}
	lon, err := parseCoordinate(fields["longitude"], 180)
	if err != nil {
		return nil
	}

	return &SuggestedLocation{
		Latitude:  lat,
		Longitude: lon,
		City:      strings.TrimSpace(stringField(fields["city"])),
	}
}
