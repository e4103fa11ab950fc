package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/submission-map/internal/catalog"
	"github.com/couchcryptid/submission-map/internal/domain"
	"github.com/couchcryptid/submission-map/internal/markers"
	"github.com/couchcryptid/submission-map/internal/observability"
	"github.com/google/uuid"
)

// ErrEmptyDataset is returned by Select for a blank dataset name.
var ErrEmptyDataset = errors.New("dataset name is required")

// Resolver maps a dataset name to its resource and declared schema.
type Resolver interface {
	Resolve(name string) (catalog.Entry, error)
}

// Fetcher retrieves a dataset document by resource name.
type Fetcher interface {
	Fetch(ctx context.Context, name string) (domain.DatasetDocument, error)
}

// Transformer turns a fetched document into map payload.
type Transformer interface {
	Transform(doc domain.DatasetDocument, schema domain.Schema) (Payload, error)
}

// LayerManager builds layers and moves them on and off a surface.
type LayerManager interface {
	BuildClusteredLayer(features domain.FeatureCollection) *markers.ClusterLayer
	BuildSuggestedMarker(loc *domain.SuggestedLocation) *markers.SuggestedMarker
	Attach(surface domain.Surface, layer domain.Layer)
	Detach(surface domain.Surface, layer domain.Layer)
}

// EventSink receives an event for every installed layer set.
type EventSink interface {
	PublishLayerSet(ctx context.Context, event domain.LayerSetEvent) error
}

// Dependencies groups the collaborators of a Coordinator. Sink and
// OnTransition are optional.
type Dependencies struct {
	Catalog      Resolver
	Fetcher      Fetcher
	Transformer  Transformer
	Layers       LayerManager
	Surface      domain.Surface
	Sink         EventSink
	OnTransition func(Status)
}

// State is the coordinator's switch state.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Status is a view of the state machine. Dataset is the dataset being
// loaded (StateLoading), that just failed (StateError), or the one on the
// map (StateIdle). LastErr is the most recent failure of a non-superseded
// attempt.
type Status struct {
	State   State
	Dataset string
	LastErr error
}

// ActiveLayerSet is what the coordinator currently has on the map.
type ActiveLayerSet struct {
	Entry       catalog.Entry
	AttemptID   string
	Cluster     *markers.ClusterLayer
	Suggested   *markers.SuggestedMarker
	Skipped     int
	InstalledAt time.Time
}

// Layers returns the set's layers, cluster first.
func (s *ActiveLayerSet) Layers() []domain.Layer {
	layers := []domain.Layer{s.Cluster}
	if s.Suggested != nil {
		layers = append(layers, s.Suggested)
	}
	return layers
}

// GeoJSON merges the set's layers into one collection.
func (s *ActiveLayerSet) GeoJSON() domain.GeoJSONFeatureCollection {
	out := s.Cluster.GeoJSON()
	if s.Suggested != nil {
		out.Features = append(out.Features, s.Suggested.GeoJSON().Features...)
	}
	return out
}

// Outcome reports what a Select call did.
type Outcome struct {
	Dataset    string `json:"dataset"`
	AttemptID  string `json:"attempt_id"`
	Markers    int    `json:"markers"`
	Skipped    int    `json:"skipped"`
	Suggested  bool   `json:"suggested"`
	Superseded bool   `json:"superseded"`
}

// Coordinator runs fetch, transform and install for dataset selections and
// owns the layer set attached to the surface.
//
// Every Select call takes a generation number. Only the attempt holding the
// latest generation may install its layers; results of superseded attempts
// are discarded when they arrive. Installation (detach old, attach new) runs
// under installMu so two attempts never interleave on the surface.
type Coordinator struct {
	deps         Dependencies
	logger       *slog.Logger
	metrics      *observability.Metrics
	fetchTimeout time.Duration

	generation atomic.Uint64
	ready      atomic.Bool

	installMu sync.Mutex
	current   *ActiveLayerSet

	statusMu sync.Mutex
	status   Status
}

// New creates a Coordinator. A fetchTimeout of zero leaves fetches bounded
// only by the caller's context.
func New(deps Dependencies, logger *slog.Logger, metrics *observability.Metrics, fetchTimeout time.Duration) *Coordinator {
	return &Coordinator{
		deps:         deps,
		logger:       logger,
		metrics:      metrics,
		fetchTimeout: fetchTimeout,
	}
}

// Start centres the map and loads the default dataset.
func (c *Coordinator) Start(ctx context.Context, defaultDataset string) error {
	c.deps.Surface.SetView(domain.LatLng{Lat: 0, Lng: 0}, 2)
	_, err := c.Select(ctx, defaultDataset)
	return err
}

// CheckReadiness returns nil once a layer set has been installed.
func (c *Coordinator) CheckReadiness(_ context.Context) error {
	if !c.ready.Load() {
		return errors.New("no dataset has been installed yet")
	}
	return nil
}

// Status returns the current state machine view.
func (c *Coordinator) Status() Status {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	return c.status
}

// Current returns the installed layer set, or nil before the first install.
func (c *Coordinator) Current() *ActiveLayerSet {
	c.installMu.Lock()
	defer c.installMu.Unlock()
	if c.current == nil {
		return nil
	}
	set := *c.current
	return &set
}

// Select loads dataset name and replaces the installed layers with it.
//
// Failures of the latest attempt are returned and leave the previous layer
// set on the map. If a newer Select was issued before this one finished,
// the result is discarded and Outcome.Superseded is set, with a nil error.
func (c *Coordinator) Select(ctx context.Context, name string) (Outcome, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Outcome{}, ErrEmptyDataset
	}

	start := time.Now()
	gen := c.generation.Add(1)
	attemptID := uuid.NewString()
	logger := c.logger.With("dataset", name, "attempt", attemptID)
	outcome := Outcome{Dataset: name, AttemptID: attemptID}

	c.transition(gen, Status{State: StateLoading, Dataset: name})
	logger.Info("dataset switch started")

	entry, payload, err := c.load(ctx, name)
	if err != nil {
		if !c.isLatest(gen) {
			logger.Debug("superseded attempt failed, discarding", "error", err)
			c.metrics.DatasetSwitches.WithLabelValues("superseded").Inc()
			outcome.Superseded = true
			return outcome, nil
		}
		c.metrics.DatasetLoadErrors.WithLabelValues(domain.ErrorKind(err)).Inc()
		c.fail(gen, name, err)
		logger.Error("dataset switch failed", "error", err)
		c.metrics.DatasetSwitches.WithLabelValues("failed").Inc()
		return outcome, err
	}
	if payload.Skipped > 0 {
		c.metrics.CoordinatesSkipped.Add(float64(payload.Skipped))
	}

	set, installed := c.install(gen, entry, attemptID, payload)
	if !installed {
		logger.Debug("superseded attempt completed, discarding result")
		c.metrics.DatasetSwitches.WithLabelValues("superseded").Inc()
		outcome.Superseded = true
		return outcome, nil
	}

	c.ready.Store(true)
	c.metrics.DatasetSwitches.WithLabelValues("installed").Inc()
	c.metrics.SwitchDuration.Observe(time.Since(start).Seconds())
	c.metrics.ActiveMarkers.Set(float64(set.Cluster.Len()))
	if set.Suggested != nil {
		c.metrics.SuggestedLocationOn.Set(1)
	} else {
		c.metrics.SuggestedLocationOn.Set(0)
	}

	outcome.Markers = set.Cluster.Len()
	outcome.Skipped = set.Skipped
	outcome.Suggested = set.Suggested != nil
	logger.Info("dataset installed",
		"markers", outcome.Markers,
		"skipped", outcome.Skipped,
		"suggested", outcome.Suggested,
		"duration", time.Since(start),
	)

	c.publish(ctx, set, payload, logger)
	return outcome, nil
}

// load resolves, fetches and transforms a dataset. It never touches the surface.
func (c *Coordinator) load(ctx context.Context, name string) (catalog.Entry, Payload, error) {
	entry, err := c.deps.Catalog.Resolve(name)
	if err != nil {
		return catalog.Entry{}, Payload{}, &domain.FetchError{Dataset: name, Err: fmt.Errorf("%w: %w", domain.ErrNotFound, err)}
	}

	fetchCtx := ctx
	if c.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, c.fetchTimeout)
		defer cancel()
	}

	doc, err := c.deps.Fetcher.Fetch(fetchCtx, entry.Resource)
	if err != nil {
		return entry, Payload{}, err
	}

	payload, err := c.deps.Transformer.Transform(doc, entry.Schema)
	if err != nil {
		return entry, Payload{}, err
	}
	return entry, payload, nil
}

// install swaps the attached layer set if gen is still the latest attempt.
// Detach-old and attach-new run as one unit under installMu.
func (c *Coordinator) install(gen uint64, entry catalog.Entry, attemptID string, payload Payload) (*ActiveLayerSet, bool) {
	c.installMu.Lock()
	defer c.installMu.Unlock()

	if !c.isLatest(gen) {
		return nil, false
	}

	next := &ActiveLayerSet{
		Entry:       entry,
		AttemptID:   attemptID,
		Cluster:     c.deps.Layers.BuildClusteredLayer(payload.Features),
		Suggested:   c.deps.Layers.BuildSuggestedMarker(payload.Suggested),
		Skipped:     payload.Skipped,
		InstalledAt: domain.Now(),
	}

	if prev := c.current; prev != nil {
		for _, layer := range prev.Layers() {
			c.deps.Layers.Detach(c.deps.Surface, layer)
		}
	}
	for _, layer := range next.Layers() {
		c.deps.Layers.Attach(c.deps.Surface, layer)
	}
	c.current = next

	c.transition(gen, Status{State: StateIdle, Dataset: entry.Name, LastErr: c.Status().LastErr})
	return next, true
}

// fail moves the latest attempt through Error back to Idle. The installed
// set is left alone, so Idle reports the dataset still on the map.
func (c *Coordinator) fail(gen uint64, name string, err error) {
	c.transition(gen, Status{State: StateError, Dataset: name, LastErr: err})

	c.installMu.Lock()
	onMap := ""
	if c.current != nil {
		onMap = c.current.Entry.Name
	}
	c.installMu.Unlock()

	c.transition(gen, Status{State: StateIdle, Dataset: onMap, LastErr: err})
}

func (c *Coordinator) isLatest(gen uint64) bool {
	return c.generation.Load() == gen
}

// transition records a status change made by attempt gen. Changes from
// superseded attempts are ignored.
func (c *Coordinator) transition(gen uint64, next Status) {
	c.statusMu.Lock()
	if !c.isLatest(gen) {
		c.statusMu.Unlock()
		return
	}
	c.status = next
	c.statusMu.Unlock()

	if c.deps.OnTransition != nil {
		c.deps.OnTransition(next)
	}
}

func (c *Coordinator) publish(ctx context.Context, set *ActiveLayerSet, payload Payload, logger *slog.Logger) {
	if c.deps.Sink == nil {
		return
	}
	event := domain.LayerSetEvent{
		ID:          uuid.NewString(),
		AttemptID:   set.AttemptID,
		Dataset:     set.Entry.Name,
		Resource:    set.Entry.Resource,
		Schema:      set.Entry.Schema,
		Markers:     set.Cluster.Len(),
		Skipped:     set.Skipped,
		Suggested:   payload.Suggested,
		InstalledAt: set.InstalledAt,
	}
	if err := c.deps.Sink.PublishLayerSet(context.WithoutCancel(ctx), event); err != nil {
		logger.Warn("publish layer event failed", "error", err)
		c.metrics.LayerEventErrors.Inc()
		return
	}
	c.metrics.LayerEventsPublished.Inc()
}
