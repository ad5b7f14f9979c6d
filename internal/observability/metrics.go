package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "groundwater_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL pipeline.
type Metrics struct {
	RowsConsumed    prometheus.Counter
	TestsRecorded   prometheus.Counter
	EventsPublished prometheus.Counter
	TransformErrors prometheus.Counter
	StoreErrors     prometheus.Counter
	PublishErrors   prometheus.Counter
	PipelineRunning prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Domain metrics.
	SitesCreated prometheus.Counter
	HPI          prometheus.Histogram
	RiskLevels   *prometheus.CounterVec // labels: level={Low,Medium,High,Unknown}

	// Annotator metrics.
	AnnotatorRequests *prometheus.CounterVec // labels: outcome={success,error,invalid}
	AnnotatorCache    *prometheus.CounterVec // labels: tier={lru,redis}, result={hit,miss}
	AnnotatorDuration prometheus.Histogram
	AnnotatorEnabled  prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates metrics registered with reg. One-shot commands
// pass a private registry.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RowsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_consumed_total",
			Help:      "Total upload rows read from the source topic.",
		}),
		TestsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tests_recorded_total",
			Help:      "Total tests appended to a site history.",
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total recorded-test events written to the sink topic.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_errors_total",
			Help:      "Total rows rejected during parsing or assembly.",
		}),
		StoreErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Total site repository failures.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Total failed sink topic writes.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of rows per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-transform-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		SitesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sites_created_total",
			Help:      "Total sites created by their first uploaded test.",
		}),
		HPI: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "hpi",
			Help:      "Heavy-metal Pollution Index of recorded tests.",
			Buckets:   []float64{10, 25, 50, 75, 100, 150, 250, 500, 1000},
		}),
		RiskLevels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tests_by_risk_level_total",
			Help:      "Recorded tests by HPI risk level.",
		}, []string{"level"}),
		AnnotatorRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "annotator_requests_total",
			Help:      "Narrative annotator requests by outcome.",
		}, []string{"outcome"}),
		AnnotatorCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "annotator_cache_total",
			Help:      "Narrative cache lookups by tier and result.",
		}, []string{"tier", "result"}),
		AnnotatorDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "annotator_duration_seconds",
			Help:      "Narrative annotator request duration in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		}),
		AnnotatorEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "annotator_enabled",
			Help:      "1 when narrative enrichment is enabled, 0 otherwise.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RowsConsumed,
		m.TestsRecorded,
		m.EventsPublished,
		m.TransformErrors,
		m.StoreErrors,
		m.PublishErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.SitesCreated,
		m.HPI,
		m.RiskLevels,
		m.AnnotatorRequests,
		m.AnnotatorCache,
		m.AnnotatorDuration,
		m.AnnotatorEnabled,
	}
}
