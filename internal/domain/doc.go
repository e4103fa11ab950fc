// Package domain models conference submission datasets and their map
// representation.
//
// # Data Source
//
// Dataset documents are static JSON files produced offline from the
// submissions database (one file per conference) and served next to the map
// page. The service fetches them by relative name, for example
// "data/icse.json".
//
// # Document Shapes
//
// Two shapes exist in practice. A dataset declares which one it uses in the
// catalog; the transformer never guesses.
//
// Flat list ([SchemaFlatList]):
//
//	[{"name": "Kyoto University", "latitude": 35.02, "longitude": 135.78}, ...]
//
// Happenings ([SchemaHappenings]):
//
//	{
//	  "conference_short_name": "ICSE",
//	  "happenings": [{"year": 2024, "submissions": [
//	    {"author_name": "A", "affiliation_name": "Oxford University, UK",
//	     "location": {"latitude": "51.75", "longitude": "-1.25"}}
//	  ]}],
//	  "suggested_location": {"latitude": 48.1, "longitude": 11.5, "city": "Munich"}
//	}
//
// Only happenings[0] is rendered: the producer orders happenings by year,
// newest first.
//
// # Coordinates
//
// Latitude and longitude arrive as JSON numbers or numeric strings. Values
// that are missing, non-numeric, non-finite or outside [-90, 90] and
// [-180, 180] are rejected per record with a [CoordinateError]; they are
// never clamped or wrapped.
//
// # Display Names
//
// Submissions carrying both an author and an affiliation are labelled
// "<author> (<institution>)", where institution is the affiliation up to its
// first comma. An affiliation on its own is used verbatim. See
// [composeDisplayName].
//
// # Suggested Location
//
// The producer computes the geometric median of all submission locations
// (see [GeometricMedian]) and labels it with the nearest city. It is
// optional; a malformed suggestion degrades to no suggestion.
package domain
