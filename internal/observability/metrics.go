package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sswei"

// Metrics holds the Prometheus counters, histograms, and gauges for the SSWEI pipeline.
type Metrics struct {
	StationsExtracted prometheus.Counter
	StationsProcessed prometheus.Counter
	StationsSkipped   *prometheus.CounterVec // labels: reason={availability,seasons,error}
	SeasonsClassified *prometheus.CounterVec // labels: category
	LoadRetries       prometheus.Counter
	PipelineRunning   prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Result cache metrics.
	ResultCache *prometheus.CounterVec // labels: tier={memory,disk}, result={hit,miss}

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec   // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge

	// Results API metrics.
	APIRequests        *prometheus.CounterVec   // labels: route, status
	APIRequestDuration *prometheus.HistogramVec // labels: route
}

func newMetrics() *Metrics {
	return &Metrics{
		StationsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stations_extracted_total",
			Help:      "Total stations read from the dataset.",
		}),
		StationsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stations_processed_total",
			Help:      "Total stations with a computed index written to the sink.",
		}),
		StationsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stations_skipped_total",
			Help:      "Stations skipped by reason.",
		}, []string{"reason"}),
		SeasonsClassified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seasons_classified_total",
			Help:      "Station seasons by drought category.",
		}, []string{"category"}),
		LoadRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_retries_total",
			Help:      "Sink writes retried after a failure.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while the pipeline is processing stations, 0 otherwise.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of stations per extracted chunk.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100, 250},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete chunk extract-transform-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ResultCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_cache_total",
			Help:      "Per-station result cache lookups by tier and result.",
		}, []string{"tier", "result"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when geocoding enrichment is enabled, 0 otherwise.",
		}),
		APIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Results API requests by route and status code.",
		}, []string{"route", "status"}),
		APIRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Results API request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.StationsExtracted,
		m.StationsProcessed,
		m.StationsSkipped,
		m.SeasonsClassified,
		m.LoadRetries,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.ResultCache,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
		m.APIRequests,
		m.APIRequestDuration,
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics registered on a fresh registry to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}
