// Package cli implements mapctl, the offline companion to the map service:
// it suggests a meeting location for a dataset, geocodes affiliations and
// validates and imports dataset files.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/couchcryptid/submission-map/internal/domain"
)

// Dependencies wires runtime services. Geocoder is nil when no Mapbox token
// is configured.
type Dependencies struct {
	Geocoder domain.Geocoder
	Logger   *slog.Logger
	Version  string
}

// exitError carries a specific exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context, args []string, deps Dependencies, stdout io.Writer, stderr io.Writer) int {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	cmd := NewRootCommand(deps)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	if msg := err.Error(); msg != "" {
		_, _ = fmt.Fprintln(stderr, msg)
	}
	var controlled *exitError
	if errors.As(err, &controlled) {
		return controlled.code
	}
	return 1
}
