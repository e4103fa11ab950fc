package markers

import "github.com/couchcryptid/submission-map/internal/domain"

// Manager builds layers and moves them on and off a surface.
type Manager struct{}

// NewManager creates a Manager.
func NewManager() *Manager {
	return &Manager{}
}

// BuildClusteredLayer creates one marker per feature, labelled with the
// feature's display name when it has one.
func (m *Manager) BuildClusteredLayer(features domain.FeatureCollection) *ClusterLayer {
	markers := make([]Marker, len(features))
	for i, f := range features {
		var label *string
		if f.DisplayName != nil {
			name := *f.DisplayName
			label = &name
		}
		markers[i] = Marker{
			Position: domain.LatLng{Lat: f.Latitude, Lng: f.Longitude},
			Label:    label,
		}
	}
	return &ClusterLayer{id: newLayerID(KindCluster), markers: markers}
}

// BuildSuggestedMarker creates the distinguished marker for loc. It returns
// nil when loc is nil. An empty city yields a marker without popup.
func (m *Manager) BuildSuggestedMarker(loc *domain.SuggestedLocation) *SuggestedMarker {
	if loc == nil {
		return nil
	}
	var label *string
	if loc.City != "" {
		city := loc.City
		label = &city
	}
	return &SuggestedMarker{
		id: newLayerID(KindSuggested),
		marker: Marker{
			Position: domain.LatLng{Lat: loc.Latitude, Lng: loc.Longitude},
			Label:    label,
		},
	}
}

// Attach adds layer to surface unless it is already attached. Nil layers
// are ignored.
func (m *Manager) Attach(surface domain.Surface, layer domain.Layer) {
	if isNil(layer) || surface.HasLayer(layer) {
		return
	}
	surface.AddLayer(layer)
}

// Detach removes layer from surface. Detaching a layer that is not attached
// is a no-op.
func (m *Manager) Detach(surface domain.Surface, layer domain.Layer) {
	if isNil(layer) || !surface.HasLayer(layer) {
		return
	}
	surface.RemoveLayer(layer)
}

func isNil(layer domain.Layer) bool {
	switch l := layer.(type) {
	case nil:
		return true
	case *ClusterLayer:
		return l == nil
	case *SuggestedMarker:
		return l == nil
	default:
		return false
	}
}
