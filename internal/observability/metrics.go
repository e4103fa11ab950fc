package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the map service.
type Metrics struct {
	// Dataset switch metrics.
	DatasetSwitches     *prometheus.CounterVec // labels: outcome={installed,failed,superseded}
	DatasetLoadErrors   *prometheus.CounterVec // labels: kind={fetch,parse,schema,other}
	CoordinatesSkipped  prometheus.Counter
	ActiveMarkers       prometheus.Gauge
	SwitchDuration      prometheus.Histogram
	SuggestedLocationOn prometheus.Gauge

	// Surface metrics.
	SurfaceLocked    prometheus.Gauge
	WebsocketClients prometheus.Gauge

	// Layer event sink metrics.
	LayerEventsPublished prometheus.Counter
	LayerEventErrors     prometheus.Counter

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: method={forward,reverse}, outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec   // labels: method={forward,reverse}, result={hit,miss}
	GeocodeAPIDuration *prometheus.HistogramVec // labels: method={forward,reverse}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		DatasetSwitches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "submission_map",
			Name:      "dataset_switches_total",
			Help:      "Dataset switch attempts by outcome.",
		}, []string{"outcome"}),
		DatasetLoadErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "submission_map",
			Name:      "dataset_load_errors_total",
			Help:      "Failed dataset loads by error kind.",
		}, []string{"kind"}),
		CoordinatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "submission_map",
			Name:      "coordinates_skipped_total",
			Help:      "Submissions dropped because their coordinates could not be used.",
		}),
		ActiveMarkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "submission_map",
			Name:      "active_markers",
			Help:      "Markers in the currently attached cluster layer.",
		}),
		SwitchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "submission_map",
			Name:      "dataset_switch_duration_seconds",
			Help:      "Duration of a complete fetch-transform-install cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		SuggestedLocationOn: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "submission_map",
			Name:      "suggested_location_shown",
			Help:      "1 when the active dataset shows a suggested location marker.",
		}),
		SurfaceLocked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "submission_map",
			Name:      "surface_locked",
			Help:      "Number of map surfaces whose gestures are disabled by an open overlay.",
		}),
		WebsocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "submission_map",
			Name:      "websocket_clients",
			Help:      "Connected map clients.",
		}),
		LayerEventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "submission_map",
			Name:      "layer_events_published_total",
			Help:      "Layer install events written to Kafka.",
		}),
		LayerEventErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "submission_map",
			Name:      "layer_event_errors_total",
			Help:      "Layer install events that could not be written.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "submission_map",
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by method and outcome.",
		}, []string{"method", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "submission_map",
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by method and result.",
		}, []string{"method", "result"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "submission_map",
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.DatasetSwitches,
		m.DatasetLoadErrors,
		m.CoordinatesSkipped,
		m.ActiveMarkers,
		m.SwitchDuration,
		m.SuggestedLocationOn,
		m.SurfaceLocked,
		m.WebsocketClients,
		m.LayerEventsPublished,
		m.LayerEventErrors,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
	}
}
