package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "piezo_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for association
// and preparation runs.
type Metrics struct {
	SensorsRead   prometheus.Counter
	StationsRead  prometheus.Counter
	Associations  prometheus.Counter
	Unassociated  prometheus.Counter
	Consistent    prometheus.Counter
	JobRunning    prometheus.Gauge
	RunDuration   prometheus.Histogram
	LastRunTime   prometheus.Gauge
	LoaderErrors  *prometheus.CounterVec // labels: sink={csv,sqlite,kafka,mqtt}
	RowsPrepared  prometheus.Counter
	RowsDiscarded *prometheus.CounterVec // labels: step={clean,outliers}
	SensorsKept   prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, so tests can
// build as many as they need.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		SensorsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensors_read_total",
			Help:      "Total piezometers read from the sensor listing.",
		}),
		StationsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stations_read_total",
			Help:      "Total weather stations read from the station listing.",
		}),
		Associations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "associations_total",
			Help:      "Total sensors paired with a station within the radius.",
		}),
		Unassociated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unassociated_sensors_total",
			Help:      "Total sensors with no station within the radius.",
		}),
		Consistent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consistent_associations_total",
			Help:      "Total associations whose measurement density is consistent.",
		}),
		JobRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "job_running",
			Help:      "1 while an association run is in progress, 0 otherwise.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete extract-associate-load run.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		LastRunTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_successful_run_timestamp_seconds",
			Help:      "Unix time of the last run that loaded into every sink.",
		}),
		LoaderErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loader_errors_total",
			Help:      "Load failures by sink.",
		}, []string{"sink"}),
		RowsPrepared: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_prepared_total",
			Help:      "Total observations written by the preparation job.",
		}),
		RowsDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_discarded_total",
			Help:      "Observations dropped during preparation, by step.",
		}, []string{"step"}),
		SensorsKept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensors_selected_total",
			Help:      "Total sensors kept by listing selection.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.SensorsRead,
		m.StationsRead,
		m.Associations,
		m.Unassociated,
		m.Consistent,
		m.JobRunning,
		m.RunDuration,
		m.LastRunTime,
		m.LoaderErrors,
		m.RowsPrepared,
		m.RowsDiscarded,
		m.SensorsKept,
	}
}
