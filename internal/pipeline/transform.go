package pipeline

import (
	"log/slog"

	"github.com/couchcryptid/submission-map/internal/domain"
)

// Payload is everything the map needs from one dataset document.
type Payload struct {
	Features  domain.FeatureCollection
	Suggested *domain.SuggestedLocation
	Skipped   int
}

// DatasetTransformer implements Transformer using the domain transform and
// suggested-location extraction.
type DatasetTransformer struct {
	logger *slog.Logger
}

// NewTransformer creates a DatasetTransformer.
func NewTransformer(logger *slog.Logger) *DatasetTransformer {
	return &DatasetTransformer{logger: logger}
}

// Transform normalizes doc according to schema. Skipped records are logged
// individually at debug level and summarized at warn level.
func (t *DatasetTransformer) Transform(doc domain.DatasetDocument, schema domain.Schema) (Payload, error) {
	result, err := domain.Transform(doc, schema)
	if err != nil {
		return Payload{}, err
	}

	if result.Skipped > 0 {
		for _, skipErr := range result.SkipErrors {
			t.logger.Debug("submission skipped", "dataset", doc.Name, "error", skipErr)
		}
		t.logger.Warn("submissions with unusable coordinates skipped",
			"dataset", doc.Name,
			"skipped", result.Skipped,
			"kept", len(result.Features),
		)
	}

	return Payload{
		Features:  result.Features,
		Suggested: domain.ExtractSuggestedLocation(doc),
		Skipped:   result.Skipped,
	}, nil
}
