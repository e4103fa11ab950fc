package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound marks a FetchError caused by a missing resource (HTTP 404,
// missing file, missing object key).
var ErrNotFound = errors.New("dataset not found")

// ErrTooLarge marks a FetchError for a document over the read limit.
var ErrTooLarge = errors.New("dataset exceeds size limit")

// FetchError reports that a dataset document could not be retrieved.
type FetchError struct {
	Dataset string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch dataset %q: %v", e.Dataset, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports that a fetched payload is not valid JSON.
type ParseError struct {
	Dataset string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse dataset %q: %v", e.Dataset, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SchemaError reports well-formed JSON that does not match the declared
// document shape. Path names the element that was missing or mistyped.
type SchemaError struct {
	Dataset string
	Schema  Schema
	Path    string
	Err     error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("dataset %q does not match schema %s at %s: %v", e.Dataset, e.Schema, e.Path, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// CoordinateError reports a single submission whose coordinates could not be
// used. It is recovered by the transformer; the record is skipped.
type CoordinateError struct {
	Index int // position of the record in the source list
	Field string
	Err   error
}

func (e *CoordinateError) Error() string {
	return fmt.Sprintf("submission %d: %s: %v", e.Index, e.Field, e.Err)
}

func (e *CoordinateError) Unwrap() error { return e.Err }

// ErrorKind classifies a load failure for metrics and HTTP status mapping.
// It returns "fetch", "parse", "schema" or "other".
func ErrorKind(err error) string {
	var (
		fetchErr  *FetchError
		parseErr  *ParseError
		schemaErr *SchemaError
	)
	switch {
	case errors.As(err, &fetchErr):
		return "fetch"
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &schemaErr):
		return "schema"
	default:
		return "other"
	}
}
