// Package markers builds renderable marker layers from normalized features
// and attaches them to a map surface. It keeps no state between calls; the
// caller owns layer lifetimes.
package markers

import (
	"github.com/couchcryptid/submission-map/internal/domain"
	"github.com/google/uuid"
)

// Layer kinds reported to map clients.
const (
	KindCluster   = "cluster"
	KindSuggested = "suggested"
)

// Marker is a single point marker. Label is the popup text; nil means the
// marker has no popup.
type Marker struct {
	Position domain.LatLng
	Label    *string
}

// ClusterLayer is a clustering container holding one marker per feature.
type ClusterLayer struct {
	id      string
	markers []Marker
}

// LayerID implements domain.Layer.
func (l *ClusterLayer) LayerID() string { return l.id }

// Kind returns KindCluster.
func (l *ClusterLayer) Kind() string { return KindCluster }

// Markers returns the layer's markers in feature order.
func (l *ClusterLayer) Markers() []Marker { return l.markers }

// Len returns the number of markers in the layer.
func (l *ClusterLayer) Len() int { return len(l.markers) }

// GeoJSON implements domain.Layer.
func (l *ClusterLayer) GeoJSON() domain.GeoJSONFeatureCollection {
	out := domain.GeoJSONFeatureCollection{
		Type:     "FeatureCollection",
		Features: make([]domain.GeoJSONFeature, 0, len(l.markers)),
	}
	for _, m := range l.markers {
		props := map[string]any{}
		if m.Label != nil {
			props["name"] = *m.Label
		}
		out.Features = append(out.Features, domain.PointFeature(m.Position.Lat, m.Position.Lng, props))
	}
	return out
}

// SuggestedMarker is the visually distinguished marker for a dataset's
// suggested location.
type SuggestedMarker struct {
	id     string
	marker Marker
}

// LayerID implements domain.Layer.
func (s *SuggestedMarker) LayerID() string { return s.id }

// Kind returns KindSuggested.
func (s *SuggestedMarker) Kind() string { return KindSuggested }

// Marker returns the underlying point marker.
func (s *SuggestedMarker) Marker() Marker { return s.marker }

// GeoJSON implements domain.Layer.
func (s *SuggestedMarker) GeoJSON() domain.GeoJSONFeatureCollection {
	props := map[string]any{"suggested": true}
	if s.marker.Label != nil {
		props["name"] = *s.marker.Label
	}
	return domain.GeoJSONFeatureCollection{
		Type:     "FeatureCollection",
		Features: []domain.GeoJSONFeature{domain.PointFeature(s.marker.Position.Lat, s.marker.Position.Lng, props)},
	}
}

// Kind reports the kind of a layer built by this package, or "" for
// foreign layers.
func Kind(layer domain.Layer) string {
	if k, ok := layer.(interface{ Kind() string }); ok {
		return k.Kind()
	}
	return ""
}

func newLayerID(kind string) string {
	return kind + "-" + uuid.NewString()
}
