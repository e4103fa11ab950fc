package domain

// GeoJSON types used to hand layers to map clients.

// GeoJSONFeatureCollection is a GeoJSON FeatureCollection.
type GeoJSONFeatureCollection struct {
	Type     string           `json:"type"`
	Features []GeoJSONFeature `json:"features"`
}

// GeoJSONFeature is a GeoJSON Feature.
type GeoJSONFeature struct {
	Type       string          `json:"type"`
	Geometry   GeoJSONGeometry `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

// GeoJSONGeometry is a GeoJSON geometry. Only Point is produced here.
type GeoJSONGeometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"` // [lon, lat]
}

// PointFeature builds a GeoJSON Point feature. GeoJSON orders coordinates
// longitude first.
func PointFeature(lat, lon float64, props map[string]any) GeoJSONFeature {
	if props == nil {
		props = map[string]any{}
	}
	return GeoJSONFeature{
		Type: "Feature",
		Geometry: GeoJSONGeometry{
			Type:        "Point",
			Coordinates: []float64{lon, lat},
		},
		Properties: props,
	}
}

// ToGeoJSON converts features into a FeatureCollection. A feature's display
// name becomes the "name" property only when present.
func (fc FeatureCollection) ToGeoJSON() GeoJSONFeatureCollection {
	out := GeoJSONFeatureCollection{
		Type:     "FeatureCollection",
		Features: make([]GeoJSONFeature, 0, len(fc)),
	}
	for _, f := range fc {
		props := map[string]any{}
		if f.DisplayName != nil {
			props["name"] = *f.DisplayName
		}
		out.Features = append(out.Features, PointFeature(f.Latitude, f.Longitude, props))
	}
	return out
}
