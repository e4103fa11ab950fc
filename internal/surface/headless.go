// Package surface provides an in-process map surface that records what the
// core attaches to it and reports every change to observers. Remote map
// clients are driven from those change events.
package surface

import (
	"sync"

	"github.com/couchcryptid/submission-map/internal/domain"
	"github.com/couchcryptid/submission-map/internal/markers"
)

// Event types emitted by Headless.
const (
	EventView        = "view"
	EventLayerAdd    = "layer.add"
	EventLayerRemove = "layer.remove"
	EventGestures    = "gestures"
)

// Event describes a single surface mutation.
type Event struct {
	Type     string                           `json:"type"`
	View     *View                            `json:"view,omitempty"`
	LayerID  string                           `json:"layer_id,omitempty"`
	Kind     string                           `json:"kind,omitempty"`
	GeoJSON  *domain.GeoJSONFeatureCollection `json:"geojson,omitempty"`
	Gestures map[domain.Gesture]bool          `json:"gestures,omitempty"`
}

// View is the map centre and zoom level.
type View struct {
	Center domain.LatLng `json:"center"`
	Zoom   int           `json:"zoom"`
}

// State is a point-in-time copy of the surface.
type State struct {
	View     View                    `json:"view"`
	Layers   []domain.Layer          `json:"-"`
	Gestures map[domain.Gesture]bool `json:"gestures"`
}

// Observer receives surface events in mutation order.
type Observer func(Event)

// Headless is a thread-safe domain.Surface without rendering.
type Headless struct {
	mu        sync.Mutex
	view      View
	layers    map[string]domain.Layer
	order     []string
	gestures  map[domain.Gesture]bool
	observers []Observer
}

// NewHeadless creates a surface with every gesture enabled.
func NewHeadless() *Headless {
	h := &Headless{
		layers:   make(map[string]domain.Layer),
		gestures: make(map[domain.Gesture]bool, len(domain.AllGestures)),
	}
	for _, g := range domain.AllGestures {
		h.gestures[g] = true
	}
	return h
}

// Observe registers fn to be called after every mutation. Observers run
// while the surface lock is held and must not call back into the surface.
func (h *Headless) Observe(fn Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observers = append(h.observers, fn)
}

// SetView implements domain.Surface.
func (h *Headless) SetView(center domain.LatLng, zoom int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.view = View{Center: center, Zoom: zoom}
	v := h.view
	h.emit(Event{Type: EventView, View: &v})
}

// AddLayer implements domain.Surface. Adding an attached layer is a no-op.
func (h *Headless) AddLayer(layer domain.Layer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := layer.LayerID()
	if _, ok := h.layers[id]; ok {
		return
	}
	h.layers[id] = layer
	h.order = append(h.order, id)
	gj := layer.GeoJSON()
	h.emit(Event{Type: EventLayerAdd, LayerID: id, Kind: markers.Kind(layer), GeoJSON: &gj})
}

// RemoveLayer implements domain.Surface. Removing an unknown layer is a no-op.
func (h *Headless) RemoveLayer(layer domain.Layer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := layer.LayerID()
	if _, ok := h.layers[id]; !ok {
		return
	}
	delete(h.layers, id)
	for i, v := range h.order {
		if v == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	h.emit(Event{Type: EventLayerRemove, LayerID: id, Kind: markers.Kind(layer)})
}

// HasLayer implements domain.Surface.
func (h *Headless) HasLayer(layer domain.Layer) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.layers[layer.LayerID()]
	return ok
}

// EnableGesture implements domain.Surface.
func (h *Headless) EnableGesture(g domain.Gesture) {
	h.SetGestures([]domain.Gesture{g}, true)
}

// DisableGesture implements domain.Surface.
func (h *Headless) DisableGesture(g domain.Gesture) {
	h.SetGestures([]domain.Gesture{g}, false)
}

// SetGestures implements domain.GestureBatcher: all gestures change under
// one lock and produce a single event.
func (h *Headless) SetGestures(gestures []domain.Gesture, enabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	changed := false
	for _, g := range gestures {
		if h.gestures[g] != enabled {
			h.gestures[g] = enabled
			changed = true
		}
	}
	if changed {
		h.emit(Event{Type: EventGestures, Gestures: h.copyGestures()})
	}
}

// Snapshot returns a copy of the current state. Layers are in attach order.
func (h *Headless) Snapshot() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	layers := make([]domain.Layer, 0, len(h.order))
	for _, id := range h.order {
		layers = append(layers, h.layers[id])
	}
	return State{View: h.view, Layers: layers, Gestures: h.copyGestures()}
}

// Replay returns the events that rebuild the current state on a fresh
// client: view, gestures, then every attached layer.
func (h *Headless) Replay() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.replayLocked()
}

func (h *Headless) replayLocked() []Event {
	v := h.view
	events := []Event{
		{Type: EventView, View: &v},
		{Type: EventGestures, Gestures: h.copyGestures()},
	}
	for _, id := range h.order {
		layer := h.layers[id]
		gj := layer.GeoJSON()
		events = append(events, Event{Type: EventLayerAdd, LayerID: id, Kind: markers.Kind(layer), GeoJSON: &gj})
	}
	return events
}

// Sync calls fn with the replay events while holding the surface lock, so
// no mutation can land between the replay and whatever fn registers. fn
// must not call back into the surface.
func (h *Headless) Sync(fn func(replay []Event)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(h.replayLocked())
}

func (h *Headless) copyGestures() map[domain.Gesture]bool {
	out := make(map[domain.Gesture]bool, len(h.gestures))
	for g, v := range h.gestures {
		out[g] = v
	}
	return out
}

func (h *Headless) emit(e Event) {
	for _, fn := range h.observers {
		fn(e)
	}
}
