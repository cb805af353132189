package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Plugin outcome labels
const (
	OutcomeUpToDate      = "up_to_date"
	OutcomeCompiled      = "compiled"
	OutcomeCompileFailed = "compile_failed"
	OutcomeSourceMissing = "source_missing"
	OutcomeFailed        = "failed"
)

// Metrics holds the pipeline Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// Run metrics
	RunsTotal   prometheus.Counter
	RunDuration prometheus.Histogram
	LastRunTime prometheus.Gauge

	// Plugin metrics
	PluginsTotal   *prometheus.CounterVec
	IndexedPlugins prometheus.Gauge

	// Compilation metrics
	CompilationTotal       *prometheus.CounterVec
	CompilationDuration    prometheus.Histogram
	CompilationErrorsTotal prometheus.Counter

	// Scan metrics
	CvarsTotal    prometheus.Gauge
	CommandsTotal prometheus.Gauge

	// Publish metrics
	PublishTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics on registry. A nil registry
// creates a private one.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: registry,

		RunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pawndoc_runs_total",
			Help: "Total number of pipeline runs",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pawndoc_run_duration_seconds",
			Help:    "Pipeline run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		LastRunTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pawndoc_last_run_timestamp_seconds",
			Help: "Unix time the last pipeline run finished",
		}),

		PluginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pawndoc_plugins_total",
				Help: "Plugins processed by outcome",
			},
			[]string{"outcome"},
		),
		IndexedPlugins: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pawndoc_indexed_plugins",
			Help: "Plugins listed in the index after the last run",
		}),

		CompilationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pawndoc_compilations_total",
				Help: "Compiler invocations by status",
			},
			[]string{"status"},
		),
		CompilationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pawndoc_compilation_duration_seconds",
			Help:    "Compiler invocation duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		CompilationErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pawndoc_compilation_errors_total",
			Help: "Compiler invocations that failed to run, exited non-zero or timed out",
		}),

		CvarsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pawndoc_cvars",
			Help: "Console variables found in the last run",
		}),
		CommandsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pawndoc_commands",
			Help: "Commands found in the last run",
		}),

		PublishTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pawndoc_publish_total",
				Help: "Plugin publish attempts by status",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.LastRunTime,
		m.PluginsTotal,
		m.IndexedPlugins,
		m.CompilationTotal,
		m.CompilationDuration,
		m.CompilationErrorsTotal,
		m.CvarsTotal,
		m.CommandsTotal,
		m.PublishTotal,
	)

	return m
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRun records a finished pipeline run
func (m *Metrics) RecordRun(duration time.Duration, indexed, cvars, commands int) {
	m.RunsTotal.Inc()
	m.RunDuration.Observe(duration.Seconds())
	m.LastRunTime.SetToCurrentTime()
	m.IndexedPlugins.Set(float64(indexed))
	m.CvarsTotal.Set(float64(cvars))
	m.CommandsTotal.Set(float64(commands))
}

// RecordPlugin records the outcome of one plugin
func (m *Metrics) RecordPlugin(outcome string) {
	m.PluginsTotal.WithLabelValues(outcome).Inc()
}

// RecordCompilation records one compiler invocation
func (m *Metrics) RecordCompilation(duration time.Duration, success bool, invocationErr error) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.CompilationTotal.WithLabelValues(status).Inc()
	m.CompilationDuration.Observe(duration.Seconds())
	if invocationErr != nil {
		m.CompilationErrorsTotal.Inc()
	}
}

// RecordPublish records one publish attempt
func (m *Metrics) RecordPublish(err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.PublishTotal.WithLabelValues(status).Inc()
}

// WriteTextfile writes the metrics in text exposition format for the node
// exporter textfile collector. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
