package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	errMissing    = errors.New("missing")
	errNotNumeric = errors.New("not numeric")
	errNotFinite  = errors.New("not a finite number")
	errOutOfRange = errors.New("out of range")
)

// Transform converts a dataset document into normalized features according
// to its declared schema. Structural mismatches return a *SchemaError;
// records with unusable coordinates are skipped and reported in the result.
func Transform(doc DatasetDocument, schema Schema) (TransformResult, error) {
	switch schema {
	case SchemaFlatList:
		return transformFlatList(doc)
	case SchemaHappenings:
		return transformHappenings(doc)
	default:
		return TransformResult{}, &SchemaError{
			Dataset: doc.Name,
			Schema:  schema,
			Path:    "$",
			Err:     errors.New("undeclared schema"),
		}
	}
}

func transformFlatList(doc DatasetDocument) (TransformResult, error) {
	records, err := decodeArray(doc.Raw)
	if err != nil {
		return TransformResult{}, &SchemaError{Dataset: doc.Name, Schema: SchemaFlatList, Path: "$", Err: err}
	}

	result := TransformResult{Features: make(FeatureCollection, 0, len(records))}
	for i, rec := range records {
		fields, err := decodeObject(rec)
		if err != nil {
			result.skip(&CoordinateError{Index: i, Field: "record", Err: err})
			continue
		}

		lat, lon, cerr := parseLatLon(i, fields["latitude"], fields["longitude"])
		if cerr != nil {
			result.skip(cerr)
			continue
		}

		var name *string
		if s := stringField(fields["name"]); s != "" {
			name = &s
		}
		result.Features = append(result.Features, Feature{DisplayName: name, Latitude: lat, Longitude: lon})
	}
	return result, nil
}

func transformHappenings(doc DatasetDocument) (TransformResult, error) {
	schemaErr := func(path string, err error) error {
		return &SchemaError{Dataset: doc.Name, Schema: SchemaHappenings, Path: path, Err: err}
	}

	top, err := decodeObject(doc.Raw)
	if err != nil {
		return TransformResult{}, schemaErr("$", err)
	}
	happenings, err := decodeArray(top["happenings"])
	if err != nil {
		return TransformResult{}, schemaErr("happenings", err)
	}
	if len(happenings) == 0 {
		return TransformResult{}, schemaErr("happenings[0]", errMissing)
	}
	first, err := decodeObject(happenings[0])
	if err != nil {
		return TransformResult{}, schemaErr("happenings[0]", err)
	}
	submissions, err := decodeArray(first["submissions"])
	if err != nil {
		return TransformResult{}, schemaErr("happenings[0].submissions", err)
	}

	result := TransformResult{Features: make(FeatureCollection, 0, len(submissions))}
	for i, sub := range submissions {
		fields, err := decodeObject(sub)
		if err != nil {
			result.skip(&CoordinateError{Index: i, Field: "record", Err: err})
			continue
		}
		loc, err := decodeObject(fields["location"])
		if err != nil {
			result.skip(&CoordinateError{Index: i, Field: "location", Err: err})
			continue
		}

		lat, lon, cerr := parseLatLon(i, loc["latitude"], loc["longitude"])
		if cerr != nil {
			result.skip(cerr)
			continue
		}

		name := composeDisplayName(stringField(fields["author_name"]), stringField(fields["affiliation_name"]))
		result.Features = append(result.Features, Feature{DisplayName: name, Latitude: lat, Longitude: lon})
	}
	return result, nil
}

func (r *TransformResult) skip(err error) {
	r.Skipped++
	r.SkipErrors = append(r.SkipErrors, err)
}

// composeDisplayName builds a marker label from a submission's author and
// affiliation:
//   - author and affiliation: "Author (Institution)", institution being the
//     first non-empty comma-separated part of the affiliation
//   - author and an affiliation of only commas: the author
//   - affiliation only: the affiliation verbatim
//   - author only: the author
//   - neither: nil
func composeDisplayName(author, affiliation string) *string {
	author = strings.TrimSpace(author)
	affiliation = strings.TrimSpace(affiliation)

	var s string
	switch {
	case author != "" && affiliation != "":
		if institution := firstPart(affiliation); institution != "" {
			s = fmt.Sprintf("%s (%s)", author, institution)
		} else {
			s = author
		}
	case affiliation != "":
		s = affiliation
	case author != "":
		s = author
	default:
		return nil
	}
	return &s
}

func firstPart(affiliation string) string {
	for part := range strings.SplitSeq(affiliation, ",") {
		if part = strings.TrimSpace(part); part != "" {
			return part
		}
	}
	return ""
}

func parseLatLon(index int, rawLat, rawLon json.RawMessage) (float64, float64, *CoordinateError) {
	lat, err := parseCoordinate(rawLat, 90)
	if err != nil {
		return 0, 0, &CoordinateError{Index: index, Field: "latitude", Err: err}
	}
	lon, err := parseCoordinate(rawLon, 180)
	if err != nil {
		return 0, 0, &CoordinateError{Index: index, Field: "longitude", Err: err}
	}
	return lat, lon, nil
}

// parseCoordinate accepts a JSON number or a decimal string and checks the
// result lies within [-limit, limit].
func parseCoordinate(raw json.RawMessage, limit float64) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return 0, errMissing
	}

	var v float64
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, errNotNumeric
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, errMissing
		}
		if !IsDecimal(s) {
			return 0, fmt.Errorf("%w: %q", errNotNumeric, s)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", errNotNumeric, s)
		}
		v = f
	} else if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("%w: %s", errNotNumeric, raw)
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errNotFinite
	}
	if v < -limit || v > limit {
		return 0, fmt.Errorf("%w: %g not in [-%g, %g]", errOutOfRange, v, limit, limit)
	}
	return v, nil
}

// IsDecimal reports whether s avoids the Go literal forms ParseFloat accepts
// beyond decimal notation, namely hex mantissas and digit separators.
func IsDecimal(s string) bool {
	if strings.Contains(s, "_") {
		return false
	}
	unsigned := strings.TrimLeft(s, "+-")
	return !strings.HasPrefix(unsigned, "0x") && !strings.HasPrefix(unsigned, "0X")
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func decodeArray(raw json.RawMessage) ([]json.RawMessage, error) {
	if isNull(bytes.TrimSpace(raw)) {
		return nil, errMissing
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errors.New("not a list")
	}
	return items, nil
}

func decodeObject(raw json.RawMessage) (map[string]json.RawMessage, error) {
	if isNull(bytes.TrimSpace(raw)) {
		return nil, errMissing
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, errors.New("not an object")
	}
	return fields, nil
}

// stringField returns the value of a JSON string field, or "" when the field
// is absent or not a string.
func stringField(raw json.RawMessage) string {
	var s string
	if isNull(raw) || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}
