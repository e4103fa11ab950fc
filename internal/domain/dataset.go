package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

// Schema declares which document shape a dataset uses.
type Schema int

const (
	// SchemaFlatList is a top-level array of {name, latitude, longitude}.
	SchemaFlatList Schema = iota + 1
	// SchemaHappenings is an object with happenings[0].submissions.
	SchemaHappenings
)

func (s Schema) String() string {
	switch s {
	case SchemaFlatList:
		return "flat"
	case SchemaHappenings:
		return "happenings"
	default:
		return "unknown"
	}
}

// ParseSchema maps a catalog schema name to a Schema.
func ParseSchema(name string) (Schema, error) {
	switch name {
	case "flat":
		return SchemaFlatList, nil
	case "happenings":
		return SchemaHappenings, nil
	default:
		return 0, fmt.Errorf("unknown schema %q (want flat or happenings)", name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Schema) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Schema) UnmarshalText(text []byte) error {
	v, err := ParseSchema(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// DatasetDocument is a fetched dataset payload. Raw is guaranteed to be
// valid JSON; its shape is checked later against the declared Schema.
type DatasetDocument struct {
	Name      string
	Raw       json.RawMessage
	FetchedAt time.Time
}

// ParseDocument validates a fetched payload and wraps it in a DatasetDocument.
// Invalid JSON yields a *ParseError.
func ParseDocument(name string, data []byte) (DatasetDocument, error) {
	if len(data) == 0 {
		return DatasetDocument{}, &ParseError{Dataset: name, Err: errors.New("empty payload")}
	}
	if !json.Valid(data) {
		// Decode again only to obtain a descriptive syntax error.
		var v any
		err := json.Unmarshal(data, &v)
		if err == nil {
			err = errors.New("invalid JSON")
		}
		return DatasetDocument{}, &ParseError{Dataset: name, Err: err}
	}
	return DatasetDocument{
		Name:      name,
		Raw:       json.RawMessage(data),
		FetchedAt: clock.Now(),
	}, nil
}

// ReadDocument reads at most limit bytes from r and parses them with
// ParseDocument. A longer body fails with a *FetchError wrapping ErrTooLarge
// instead of being truncated.
func ReadDocument(name string, r io.Reader, limit int64) (DatasetDocument, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return DatasetDocument{}, &FetchError{Dataset: name, Err: fmt.Errorf("read document: %w", err)}
	}
	if int64(len(data)) > limit {
		return DatasetDocument{}, &FetchError{Dataset: name, Err: fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)}
	}
	return ParseDocument(name, data)
}

// Feature is a normalized map point. DisplayName is nil when the source
// record carries nothing to label the marker with.
type Feature struct {
	DisplayName *string `json:"display_name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// FeatureCollection is an ordered list of features in source order.
type FeatureCollection []Feature

// TransformResult is the output of Transform. Skipped counts records
// dropped for unusable coordinates; SkipErrors holds one *CoordinateError
// per skipped record.
type TransformResult struct {
	Features   FeatureCollection
	Skipped    int
	SkipErrors []error
}

// SuggestedLocation is the optional distinguished location of a dataset.
// City is empty when the document carries no label.
type SuggestedLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	City      string  `json:"city,omitempty"`
}
