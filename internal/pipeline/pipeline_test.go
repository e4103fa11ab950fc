package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/submission-map/internal/catalog"
	"github.com/couchcryptid/submission-map/internal/domain"
	"github.com/couchcryptid/submission-map/internal/markers"
	"github.com/couchcryptid/submission-map/internal/observability"
	"github.com/couchcryptid/submission-map/internal/pipeline"
	"github.com/couchcryptid/submission-map/internal/surface"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

// gatedFetcher serves documents from memory. A resource with a gate blocks
// until the gate is closed.
type gatedFetcher struct {
	mu      sync.Mutex
	docs    map[string][]byte
	errs    map[string]error
	gates   map[string]chan struct{}
	started map[string]chan struct{}
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{
		docs:    make(map[string][]byte),
		errs:    make(map[string]error),
		gates:   make(map[string]chan struct{}),
		started: make(map[string]chan struct{}),
	}
}

func (f *gatedFetcher) gate(resource string) (release func(), started <-chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := make(chan struct{})
	s := make(chan struct{})
	f.gates[resource] = g
	f.started[resource] = s
	return func() { close(g) }, s
}

func (f *gatedFetcher) Fetch(ctx context.Context, name string) (domain.DatasetDocument, error) {
	f.mu.Lock()
	gate, started := f.gates[name], f.started[name]
	data, err := f.docs[name], f.errs[name]
	f.mu.Unlock()

	if gate != nil {
		close(started)
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.DatasetDocument{}, &domain.FetchError{Dataset: name, Err: ctx.Err()}
		}
	}
	if err != nil {
		return domain.DatasetDocument{}, err
	}
	if data == nil {
		return domain.DatasetDocument{}, &domain.FetchError{Dataset: name, Err: domain.ErrNotFound}
	}
	return domain.ParseDocument(name, data)
}

type recordingSink struct {
	mu     sync.Mutex
	events []domain.LayerSetEvent
	err    error
}

func (s *recordingSink) PublishLayerSet(_ context.Context, event domain.LayerSetEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

type harness struct {
	coord       *pipeline.Coordinator
	surface     *surface.Headless
	fetcher     *gatedFetcher
	sink        *recordingSink
	metrics     *observability.Metrics
	transitions []pipeline.Status
	mu          sync.Mutex
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cat, err := catalog.Parse([]byte(`
default: conf
strict: true
datasets:
  - name: conf
    resource: conf.json
    schema: happenings
  - name: other
    resource: other.json
    schema: happenings
  - name: sample
    resource: sample.JSON
    schema: flat
  - name: broken
    resource: broken.json
    schema: happenings
  - name: wrongshape
    resource: sample.JSON
    schema: happenings
`))
	require.NoError(t, err)

	h := &harness{
		surface: surface.NewHeadless(),
		fetcher: newGatedFetcher(),
		sink:    &recordingSink{},
		metrics: observability.NewMetricsForTesting(),
	}
	h.fetcher.docs["conf.json"] = readFixture(t, "happenings.json")
	h.fetcher.docs["other.json"] = []byte(`{"happenings":[{"submissions":[{"author_name":"Edsger Dijkstra","location":{"latitude":52.0,"longitude":4.36}}]}]}`)
	h.fetcher.docs["sample.JSON"] = readFixture(t, "flat.json")
	h.fetcher.docs["broken.json"] = []byte(`{"happenings": [`)

	h.coord = pipeline.New(pipeline.Dependencies{
		Catalog:     cat,
		Fetcher:     h.fetcher,
		Transformer: pipeline.NewTransformer(slog.Default()),
		Layers:      markers.NewManager(),
		Surface:     h.surface,
		Sink:        h.sink,
		OnTransition: func(s pipeline.Status) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.transitions = append(h.transitions, s)
		},
	}, slog.Default(), h.metrics, time.Second)
	return h
}

func (h *harness) states() []pipeline.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]pipeline.State, 0, len(h.transitions))
	for _, s := range h.transitions {
		out = append(out, s.State)
	}
	return out
}

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func layerIDs(layers []domain.Layer) []string {
	ids := make([]string, 0, len(layers))
	for _, l := range layers {
		ids = append(ids, l.LayerID())
	}
	return ids
}

// --- tests ---

func TestCoordinator_Select_InstallsMarkersAndSuggestion(t *testing.T) {
	h := newHarness(t)

	out, err := h.coord.Select(context.Background(), "conf")
	require.NoError(t, err)
	assert.False(t, out.Superseded)
	assert.Equal(t, 3, out.Markers)
	assert.Equal(t, 1, out.Skipped)
	assert.True(t, out.Suggested)
	assert.NotEmpty(t, out.AttemptID)

	current := h.coord.Current()
	require.NotNil(t, current)
	require.NotNil(t, current.Suggested)
	assert.Equal(t, "conf", current.Entry.Name)

	labels := make([]string, 0, current.Cluster.Len())
	for _, m := range current.Cluster.Markers() {
		if m.Label != nil {
			labels = append(labels, *m.Label)
		}
	}
	want := []string{
		"Ada Lovelace (University of London)",
		"Alan Turing (University of Manchester)",
		"ETH Zurich, Switzerland",
	}
	if diff := cmp.Diff(want, labels); diff != "" {
		t.Fatalf("marker labels mismatch (-want +got):\n%s", diff)
	}

	pos := current.Suggested.Marker().Position
	assert.InDelta(t, 50.1109, pos.Lat, 1e-9)
	assert.InDelta(t, 8.6821, pos.Lng, 1e-9)

	snap := h.surface.Snapshot()
	assert.ElementsMatch(t, layerIDs(current.Layers()), layerIDs(snap.Layers))

	assert.InDelta(t, 3, testutil.ToFloat64(h.metrics.ActiveMarkers), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.CoordinatesSkipped), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.SuggestedLocationOn), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.DatasetSwitches.WithLabelValues("installed")), 0)
	require.NoError(t, h.coord.CheckReadiness(context.Background()))
}

func TestCoordinator_Select_FlatListHasNoSuggestion(t *testing.T) {
	h := newHarness(t)

	_, err := h.coord.Select(context.Background(), "conf")
	require.NoError(t, err)

	out, err := h.coord.Select(context.Background(), "sample")
	require.NoError(t, err)
	assert.Equal(t, 2, out.Markers)
	assert.False(t, out.Suggested)

	current := h.coord.Current()
	require.NotNil(t, current)
	assert.Nil(t, current.Suggested)
	assert.Len(t, h.surface.Snapshot().Layers, 1, "previous cluster and suggestion must both be detached")
	assert.InDelta(t, 0, testutil.ToFloat64(h.metrics.SuggestedLocationOn), 0)
}

func TestCoordinator_Select_LateResultIsDiscarded(t *testing.T) {
	h := newHarness(t)
	release, started := h.fetcher.gate("conf.json")

	type result struct {
		out pipeline.Outcome
		err error
	}
	slow := make(chan result, 1)
	go func() {
		out, err := h.coord.Select(context.Background(), "conf")
		slow <- result{out, err}
	}()
	<-started

	fast, err := h.coord.Select(context.Background(), "other")
	require.NoError(t, err)
	assert.False(t, fast.Superseded)

	release()
	late := <-slow
	require.NoError(t, late.err)
	assert.True(t, late.out.Superseded)

	current := h.coord.Current()
	require.NotNil(t, current)
	assert.Equal(t, "other", current.Entry.Name)
	assert.Equal(t, fast.AttemptID, current.AttemptID)
	assert.ElementsMatch(t, layerIDs(current.Layers()), layerIDs(h.surface.Snapshot().Layers))
	assert.Equal(t, 1, current.Cluster.Len())
	assert.Equal(t, pipeline.StateIdle, h.coord.Status().State)
	assert.Equal(t, "other", h.coord.Status().Dataset)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.DatasetSwitches.WithLabelValues("superseded")), 0)
}

func TestCoordinator_Select_FailureKeepsPreviousLayers(t *testing.T) {
	h := newHarness(t)

	_, err := h.coord.Select(context.Background(), "conf")
	require.NoError(t, err)
	before := layerIDs(h.surface.Snapshot().Layers)

	_, err = h.coord.Select(context.Background(), "broken")
	var parseErr *domain.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "broken.json", parseErr.Dataset)

	assert.ElementsMatch(t, before, layerIDs(h.surface.Snapshot().Layers))
	status := h.coord.Status()
	assert.Equal(t, pipeline.StateIdle, status.State)
	assert.Equal(t, "conf", status.Dataset)
	require.ErrorIs(t, status.LastErr, err)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.DatasetLoadErrors.WithLabelValues("parse")), 0)
}

func TestCoordinator_Select_SchemaMismatch(t *testing.T) {
	h := newHarness(t)

	_, err := h.coord.Select(context.Background(), "wrongshape")
	var schemaErr *domain.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "$", schemaErr.Path)
	assert.Nil(t, h.coord.Current())
	require.Error(t, h.coord.CheckReadiness(context.Background()))
}

func TestCoordinator_Select_UnknownDataset(t *testing.T) {
	h := newHarness(t)

	_, err := h.coord.Select(context.Background(), "nope")
	var fetchErr *domain.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.ErrorIs(t, err, catalog.ErrUnknownDataset)
}

func TestCoordinator_Select_FetchErrorSurfaces(t *testing.T) {
	h := newHarness(t)
	h.fetcher.errs["other.json"] = &domain.FetchError{Dataset: "other.json", Err: errors.New("connection refused")}

	_, err := h.coord.Select(context.Background(), "other")
	var fetchErr *domain.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "fetch", domain.ErrorKind(err))
}

func TestCoordinator_Select_SupersededFailureIsSilent(t *testing.T) {
	h := newHarness(t)
	h.fetcher.errs["broken.json"] = &domain.FetchError{Dataset: "broken.json", Err: errors.New("timeout")}
	release, started := h.fetcher.gate("broken.json")

	type result struct {
		out pipeline.Outcome
		err error
	}
	slow := make(chan result, 1)
	go func() {
		out, err := h.coord.Select(context.Background(), "broken")
		slow <- result{out, err}
	}()
	<-started

	_, err := h.coord.Select(context.Background(), "conf")
	require.NoError(t, err)

	release()
	late := <-slow
	require.NoError(t, late.err)
	assert.True(t, late.out.Superseded)

	status := h.coord.Status()
	assert.Equal(t, pipeline.StateIdle, status.State)
	assert.Equal(t, "conf", status.Dataset)
	assert.NoError(t, status.LastErr)

	assert.InDelta(t, 0, testutil.ToFloat64(h.metrics.DatasetLoadErrors.WithLabelValues("fetch")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.DatasetSwitches.WithLabelValues("superseded")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(h.metrics.DatasetSwitches.WithLabelValues("failed")), 0)
}

func TestCoordinator_Select_EmptyName(t *testing.T) {
	h := newHarness(t)

	_, err := h.coord.Select(context.Background(), "  ")
	require.ErrorIs(t, err, pipeline.ErrEmptyDataset)
	assert.Empty(t, h.states())
}

func TestCoordinator_Select_StateTransitions(t *testing.T) {
	h := newHarness(t)

	_, err := h.coord.Select(context.Background(), "conf")
	require.NoError(t, err)
	_, err = h.coord.Select(context.Background(), "broken")
	require.Error(t, err)

	want := []pipeline.State{
		pipeline.StateLoading, pipeline.StateIdle,
		pipeline.StateLoading, pipeline.StateError, pipeline.StateIdle,
	}
	if diff := cmp.Diff(want, h.states()); diff != "" {
		t.Fatalf("transitions mismatch (-want +got):\n%s", diff)
	}
}

func TestCoordinator_Select_FetchTimeout(t *testing.T) {
	h := newHarness(t)
	release, _ := h.fetcher.gate("other.json")
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := h.coord.Select(ctx, "other")
	var fetchErr *domain.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCoordinator_Select_PublishesLayerEvent(t *testing.T) {
	h := newHarness(t)

	out, err := h.coord.Select(context.Background(), "conf")
	require.NoError(t, err)

	require.Len(t, h.sink.events, 1)
	event := h.sink.events[0]
	assert.Equal(t, out.AttemptID, event.AttemptID)
	assert.Equal(t, "conf", event.Dataset)
	assert.Equal(t, "conf.json", event.Resource)
	assert.Equal(t, domain.SchemaHappenings, event.Schema)
	assert.Equal(t, 3, event.Markers)
	assert.Equal(t, 1, event.Skipped)
	require.NotNil(t, event.Suggested)
	assert.Equal(t, "Frankfurt", event.Suggested.City)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.LayerEventsPublished), 0)
}

func TestCoordinator_Select_PublishFailureDoesNotFailSwitch(t *testing.T) {
	h := newHarness(t)
	h.sink.err = errors.New("broker unavailable")

	_, err := h.coord.Select(context.Background(), "conf")
	require.NoError(t, err)
	assert.NotNil(t, h.coord.Current())
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.LayerEventErrors), 0)
}

func TestCoordinator_Start_SetsInitialView(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.coord.Start(context.Background(), "sample"))

	snap := h.surface.Snapshot()
	assert.Equal(t, domain.LatLng{Lat: 0, Lng: 0}, snap.View.Center)
	assert.Equal(t, 2, snap.View.Zoom)
	assert.Equal(t, "sample", h.coord.Current().Entry.Name)
}

func TestActiveLayerSet_GeoJSON(t *testing.T) {
	h := newHarness(t)

	_, err := h.coord.Select(context.Background(), "conf")
	require.NoError(t, err)

	fc := h.coord.Current().GeoJSON()
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Len(t, fc.Features, 4)
	assert.Equal(t, true, fc.Features[3].Properties["suggested"])
}

func TestDatasetTransformer_Transform(t *testing.T) {
	doc, err := domain.ParseDocument("conf.json", readFixture(t, "happenings.json"))
	require.NoError(t, err)

	payload, err := pipeline.NewTransformer(slog.Default()).Transform(doc, domain.SchemaHappenings)
	require.NoError(t, err)
	assert.Len(t, payload.Features, 3)
	assert.Equal(t, 1, payload.Skipped)
	require.NotNil(t, payload.Suggested)
	assert.Equal(t, "Frankfurt", payload.Suggested.City)
}
