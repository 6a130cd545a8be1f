package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "traffic_prep"

// Metrics holds the Prometheus counters, histograms, and gauges for the prep pipeline.
type Metrics struct {
	CitiesProcessed *prometheus.CounterVec   // labels: stage, outcome={success,error}
	CitiesSkipped   *prometheus.CounterVec   // labels: stage; already checkpointed
	StageDuration   *prometheus.HistogramVec // labels: stage
	RunnerActive    prometheus.Gauge

	RowsRead    *prometheus.CounterVec // labels: stage
	RowsWritten *prometheus.CounterVec // labels: stage

	// Time conversion metrics.
	TransitionDays  *prometheus.CounterVec // labels: transition={spring-forward,fall-back}
	MissingHours    prometheus.Counter
	HourlyPublished prometheus.Counter

	// Share of filled cells in each city's sensor matrices.
	MatrixCoverage *prometheus.HistogramVec // labels: metric
}

func newMetrics() *Metrics {
	return &Metrics{
		CitiesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cities_processed_total",
			Help:      "Cities run through a stage, by outcome.",
		}, []string{"stage", "outcome"}),
		CitiesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cities_skipped_total",
			Help:      "Cities skipped because their checkpoint was already recorded.",
		}, []string{"stage"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of one stage for one city.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 180, 600},
		}, []string{"stage"}),
		RunnerActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runner_active",
			Help:      "1 while a stage run is in progress, 0 otherwise.",
		}),
		RowsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_read_total",
			Help:      "Input rows read, by stage.",
		}, []string{"stage"}),
		RowsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Output rows written, by stage.",
		}, []string{"stage"}),
		TransitionDays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dst_transition_days_total",
			Help:      "Local days with a daylight-saving transition seen in hourly data.",
		}, []string{"transition"}),
		MissingHours: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "missing_hours_total",
			Help:      "Expected local hours with no readings.",
		}),
		HourlyPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hourly_published_total",
			Help:      "Hourly readings published to Kafka.",
		}),
		MatrixCoverage: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sensor_matrix_coverage_ratio",
			Help:      "Share of time × sensor-road cells holding a value, per city.",
			Buckets:   []float64{0.1, 0.25, 0.5, 0.75, 0.9, 0.95, 0.99, 1},
		}, []string{"metric"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.CitiesProcessed,
		m.CitiesSkipped,
		m.StageDuration,
		m.RunnerActive,
		m.RowsRead,
		m.RowsWritten,
		m.TransitionDays,
		m.MissingHours,
		m.HourlyPublished,
		m.MatrixCoverage,
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
