package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/submission-map/internal/catalog"
	"github.com/couchcryptid/submission-map/internal/domain"
	"github.com/couchcryptid/submission-map/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Selector switches the displayed dataset and reports what is on the map.
type Selector interface {
	Select(ctx context.Context, name string) (pipeline.Outcome, error)
	Current() *pipeline.ActiveLayerSet
	Status() pipeline.Status
}

// DatasetLister lists the selectable datasets.
type DatasetLister interface {
	Entries() []catalog.Entry
}

// Overlay receives dropdown open and close notifications.
type Overlay interface {
	OverlayOpened()
	OverlayClosed()
	Locked() bool
}

// Options wires the API routes. Ready is required; nil route dependencies
// leave their routes unregistered.
type Options struct {
	Ready          sharedobs.ReadinessChecker
	Selector       Selector
	Datasets       DatasetLister
	DefaultDataset string
	Overlay        Overlay
	Stream         http.Handler
	// SelectTimeout is the longest a dataset switch may take. The server's
	// write timeout is raised to fit it.
	SelectTimeout time.Duration
}

// Server exposes health, metrics, the dataset control API and the map
// event stream.
type Server struct {
	httpServer *http.Server
	opts       Options
	logger     *slog.Logger
}

// NewServer creates an HTTP server with health, metrics and API routes.
func NewServer(addr string, opts Options, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	writeTimeout := 10 * time.Second
	if opts.SelectTimeout+5*time.Second > writeTimeout {
		writeTimeout = opts.SelectTimeout + 5*time.Second
	}

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: writeTimeout,
			IdleTimeout:  60 * time.Second,
		},
		opts:   opts,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(opts.Ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	if opts.Datasets != nil {
		mux.HandleFunc("GET /api/datasets", s.handleDatasets)
	}
	if opts.Selector != nil {
		mux.HandleFunc("POST /api/datasets/select", s.handleSelect)
		mux.HandleFunc("GET /api/status", s.handleStatus)
		mux.HandleFunc("GET /api/layers", s.handleLayers)
	}
	if opts.Overlay != nil {
		mux.HandleFunc("POST /api/overlay/open", s.handleOverlay(true))
		mux.HandleFunc("POST /api/overlay/close", s.handleOverlay(false))
	}
	if opts.Stream != nil {
		mux.Handle("GET /ws", opts.Stream)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type datasetsResponse struct {
	Default  string          `json:"default,omitempty"`
	Datasets []catalog.Entry `json:"datasets"`
}

func (s *Server) handleDatasets(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, datasetsResponse{
		Default:  s.opts.DefaultDataset,
		Datasets: s.opts.Datasets.Entries(),
	})
}

type selectRequest struct {
	Dataset string `json:"dataset"`
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "request")
		return
	}

	out, err := s.opts.Selector.Select(r.Context(), req.Dataset)
	if err != nil {
		status, kind := classify(err)
		s.logger.Warn("dataset selection rejected", "dataset", req.Dataset, "status", status, "error", err)
		writeError(w, status, err.Error(), kind)
		return
	}

	// A superseded selection still succeeded from the caller's view: a
	// newer one replaced it.
	status := http.StatusOK
	if out.Superseded {
		status = http.StatusAccepted
	}
	sharedobs.WriteJSON(w, status, out)
}

type statusResponse struct {
	State     string `json:"state"`
	Dataset   string `json:"dataset,omitempty"`
	LastError string `json:"last_error,omitempty"`
	Locked    *bool  `json:"locked,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st := s.opts.Selector.Status()
	resp := statusResponse{State: st.State.String(), Dataset: st.Dataset}
	if st.LastErr != nil {
		resp.LastError = st.LastErr.Error()
	}
	if s.opts.Overlay != nil {
		locked := s.opts.Overlay.Locked()
		resp.Locked = &locked
	}
	sharedobs.WriteJSON(w, http.StatusOK, resp)
}

type layersResponse struct {
	Dataset     string                          `json:"dataset"`
	AttemptID   string                          `json:"attempt_id"`
	Skipped     int                             `json:"skipped"`
	InstalledAt time.Time                       `json:"installed_at"`
	GeoJSON     domain.GeoJSONFeatureCollection `json:"geojson"`
}

func (s *Server) handleLayers(w http.ResponseWriter, _ *http.Request) {
	set := s.opts.Selector.Current()
	if set == nil {
		writeError(w, http.StatusNotFound, "no dataset installed", "empty")
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, layersResponse{
		Dataset:     set.Entry.Name,
		AttemptID:   set.AttemptID,
		Skipped:     set.Skipped,
		InstalledAt: set.InstalledAt,
		GeoJSON:     set.GeoJSON(),
	})
}

func (s *Server) handleOverlay(open bool) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if open {
			s.opts.Overlay.OverlayOpened()
		} else {
			s.opts.Overlay.OverlayClosed()
		}
		sharedobs.WriteJSON(w, http.StatusOK, map[string]bool{"locked": s.opts.Overlay.Locked()})
	}
}

// classify maps a selection error to an HTTP status and an error kind.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, pipeline.ErrEmptyDataset):
		return http.StatusBadRequest, "request"
	case errors.Is(err, catalog.ErrUnknownDataset):
		return http.StatusNotFound, "unknown_dataset"
	}
	switch kind := domain.ErrorKind(err); kind {
	case "fetch":
		return http.StatusBadGateway, kind
	case "parse", "schema":
		return http.StatusUnprocessableEntity, kind
	default:
		return http.StatusInternalServerError, kind
	}
}

func writeError(w http.ResponseWriter, status int, msg, kind string) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": msg, "kind": kind})
}
