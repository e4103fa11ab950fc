package domain

// LatLng is a WGS-84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Layer is anything a map surface can display.
type Layer interface {
	// LayerID uniquely identifies the layer for the lifetime of the process.
	LayerID() string
	// GeoJSON renders the layer's markers for remote clients.
	GeoJSON() GeoJSONFeatureCollection
}

// Gesture is a kind of user interaction a map surface responds to.
type Gesture string

const (
	GestureDragging        Gesture = "dragging"
	GestureScrollWheelZoom Gesture = "scrollWheelZoom"
	GestureDoubleClickZoom Gesture = "doubleClickZoom"
	GestureTouchZoom       Gesture = "touchZoom"
	GestureBoxZoom         Gesture = "boxZoom"
	GestureKeyboard        Gesture = "keyboard"
)

// AllGestures is the group toggled together when an overlay opens or closes.
var AllGestures = []Gesture{
	GestureDragging,
	GestureScrollWheelZoom,
	GestureDoubleClickZoom,
	GestureTouchZoom,
	GestureBoxZoom,
	GestureKeyboard,
}

// Surface is the map-rendering collaborator. The core only calls into it.
type Surface interface {
	SetView(center LatLng, zoom int)
	AddLayer(layer Layer)
	RemoveLayer(layer Layer)
	HasLayer(layer Layer) bool
	EnableGesture(g Gesture)
	DisableGesture(g Gesture)
}

// GestureBatcher is implemented by surfaces that can toggle several
// gestures in one step, so observers never see a partially locked map.
type GestureBatcher interface {
	SetGestures(gestures []Gesture, enabled bool)
}
