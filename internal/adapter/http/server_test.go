package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	httpadapter "github.com/couchcryptid/submission-map/internal/adapter/http"
	"github.com/couchcryptid/submission-map/internal/catalog"
	"github.com/couchcryptid/submission-map/internal/domain"
	"github.com/couchcryptid/submission-map/internal/markers"
	"github.com/couchcryptid/submission-map/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockSelector struct {
	selected []string
	outcome  pipeline.Outcome
	err      error
	current  *pipeline.ActiveLayerSet
	status   pipeline.Status
}

func (m *mockSelector) Select(_ context.Context, name string) (pipeline.Outcome, error) {
	m.selected = append(m.selected, name)
	return m.outcome, m.err
}

func (m *mockSelector) Current() *pipeline.ActiveLayerSet { return m.current }
func (m *mockSelector) Status() pipeline.Status           { return m.status }

type mockOverlay struct {
	locked bool
}

func (m *mockOverlay) OverlayOpened() { m.locked = true }
func (m *mockOverlay) OverlayClosed() { m.locked = false }
func (m *mockOverlay) Locked() bool   { return m.locked }

func newTestServer(readyErr error, sel *mockSelector, overlay *mockOverlay) *httpadapter.Server {
	return httpadapter.NewServer(":0", httpadapter.Options{
		Ready:          &mockReadiness{err: readyErr},
		Selector:       sel,
		Datasets:       catalog.Builtin(),
		DefaultDataset: "sample",
		Overlay:        overlay,
		Stream: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}),
	}, slog.Default())
}

func do(srv *httpadapter.Server, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthzReturns200(t *testing.T) {
	rec := do(newTestServer(nil, &mockSelector{}, &mockOverlay{}), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := do(newTestServer(nil, &mockSelector{}, &mockOverlay{}), http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := do(newTestServer(fmt.Errorf("no dataset installed"), &mockSelector{}, &mockOverlay{}), http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := do(newTestServer(nil, &mockSelector{}, &mockOverlay{}), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestDatasetsLists(t *testing.T) {
	rec := do(newTestServer(nil, &mockSelector{}, &mockOverlay{}), http.MethodGet, "/api/datasets", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"default":"sample","datasets":[{"name":"sample","title":"Sample","resource":"sample.JSON","schema":"flat"}]}`, rec.Body.String())
}

func TestSelect_Success(t *testing.T) {
	sel := &mockSelector{outcome: pipeline.Outcome{Dataset: "icse", AttemptID: "a-1", Markers: 3, Skipped: 1}}
	rec := do(newTestServer(nil, sel, &mockOverlay{}), http.MethodPost, "/api/datasets/select", `{"dataset":"icse"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"icse"}, sel.selected)
	body := decode(t, rec)
	assert.Equal(t, "icse", body["dataset"])
	assert.InDelta(t, 3, body["markers"], 0)
	assert.Equal(t, false, body["superseded"])
}

func TestSelect_Superseded(t *testing.T) {
	sel := &mockSelector{outcome: pipeline.Outcome{Dataset: "icse", Superseded: true}}
	rec := do(newTestServer(nil, sel, &mockOverlay{}), http.MethodPost, "/api/datasets/select", `{"dataset":"icse"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestSelect_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"empty", pipeline.ErrEmptyDataset, http.StatusBadRequest, "request"},
		{"unknown", &domain.FetchError{Dataset: "x", Err: fmt.Errorf("%w: %w", domain.ErrNotFound, catalog.ErrUnknownDataset)}, http.StatusNotFound, "unknown_dataset"},
		{"fetch", &domain.FetchError{Dataset: "x", Err: errors.New("connection refused")}, http.StatusBadGateway, "fetch"},
		{"parse", &domain.ParseError{Dataset: "x", Err: errors.New("unexpected EOF")}, http.StatusUnprocessableEntity, "parse"},
		{"schema", &domain.SchemaError{Dataset: "x", Schema: domain.SchemaHappenings, Path: "$", Err: errors.New("not an object")}, http.StatusUnprocessableEntity, "schema"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "other"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sel := &mockSelector{err: tc.err}
			rec := do(newTestServer(nil, sel, &mockOverlay{}), http.MethodPost, "/api/datasets/select", `{"dataset":"x"}`)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tc.kind, decode(t, rec)["kind"])
		})
	}
}

func TestSelect_InvalidBody(t *testing.T) {
	sel := &mockSelector{}
	rec := do(newTestServer(nil, sel, &mockOverlay{}), http.MethodPost, "/api/datasets/select", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, sel.selected)
}

func TestLayers(t *testing.T) {
	m := markers.NewManager()
	name := "Ada Lovelace (University of London)"
	sel := &mockSelector{current: &pipeline.ActiveLayerSet{
		Entry:     catalog.Entry{Name: "icse"},
		AttemptID: "a-1",
		Cluster:   m.BuildClusteredLayer(domain.FeatureCollection{{DisplayName: &name, Latitude: 51.5, Longitude: -0.13}}),
		Suggested: m.BuildSuggestedMarker(&domain.SuggestedLocation{Latitude: 50, Longitude: 8, City: "Frankfurt"}),
	}}

	rec := do(newTestServer(nil, sel, &mockOverlay{}), http.MethodGet, "/api/layers", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Dataset string                          `json:"dataset"`
		GeoJSON domain.GeoJSONFeatureCollection `json:"geojson"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "icse", body.Dataset)
	require.Len(t, body.GeoJSON.Features, 2)
	assert.Equal(t, name, body.GeoJSON.Features[0].Properties["name"])
	assert.Equal(t, []float64{-0.13, 51.5}, body.GeoJSON.Features[0].Geometry.Coordinates)
	assert.Equal(t, true, body.GeoJSON.Features[1].Properties["suggested"])
}

func TestLayers_NothingInstalled(t *testing.T) {
	rec := do(newTestServer(nil, &mockSelector{}, &mockOverlay{}), http.MethodGet, "/api/layers", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatus(t *testing.T) {
	sel := &mockSelector{status: pipeline.Status{State: pipeline.StateIdle, Dataset: "icse", LastErr: errors.New("upstream down")}}
	overlay := &mockOverlay{locked: true}

	rec := do(newTestServer(nil, sel, overlay), http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"state":"idle","dataset":"icse","last_error":"upstream down","locked":true}`, rec.Body.String())
}

func TestOverlayOpenClose(t *testing.T) {
	overlay := &mockOverlay{}
	srv := newTestServer(nil, &mockSelector{}, overlay)

	rec := do(srv, http.MethodPost, "/api/overlay/open", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, overlay.locked)
	assert.JSONEq(t, `{"locked":true}`, rec.Body.String())

	rec = do(srv, http.MethodPost, "/api/overlay/close", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, overlay.locked)
}

func TestStreamRoute(t *testing.T) {
	rec := do(newTestServer(nil, &mockSelector{}, &mockOverlay{}), http.MethodGet, "/ws", "")
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
