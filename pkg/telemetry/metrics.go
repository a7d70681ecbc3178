package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// File outcomes counted by RecordFiles.
const (
	FilesWritten = "written"
	FilesSkipped = "skipped"
	FilesMerged  = "merged"
)

// Metrics provides Prometheus metrics for archetype. A Metrics built from a
// disabled config, or a nil *Metrics, records nothing.
type Metrics struct {
	config MetricsConfig

	// Generation metrics
	generations        *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	files              *prometheus.CounterVec

	// Creation metrics
	creations         *prometheus.CounterVec
	creationResources prometheus.Counter
	creationDuration  prometheus.Histogram

	// Policy and error metrics
	policyViolations *prometheus.CounterVec
	errorsByKind     *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generations_total",
				Help:      "Total number of project generations by status",
			},
			[]string{"status"},
		),
		generationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "generation_duration_seconds",
				Help:      "Duration of project generations in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),
		files: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generated_files_total",
				Help:      "Files handled during generation by outcome (written, skipped, merged)",
			},
			[]string{"outcome"},
		),
		creations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "creations_total",
				Help:      "Total number of archetype creations by status",
			},
			[]string{"status"},
		),
		creationResources: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "creation_resources_total",
				Help:      "Template resources written by archetype creations",
			},
		),
		creationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "creation_duration_seconds",
				Help:      "Duration of archetype creations in seconds",
				Buckets:   buckets,
			},
		),
		policyViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_violations_total",
				Help:      "Blocking policy violations by policy",
			},
			[]string{"policy"},
		),
		errorsByKind: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Failed operations by error kind",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		m.generations,
		m.generationDuration,
		m.files,
		m.creations,
		m.creationResources,
		m.creationDuration,
		m.policyViolations,
		m.errorsByKind,
	)

	return m, nil
}

func (m *Metrics) enabled() bool {
	return m != nil && m.registry != nil
}

// RecordGeneration records a finished generation with its status and duration.
func (m *Metrics) RecordGeneration(status string, duration time.Duration) {
	if !m.enabled() {
		return
	}
	m.generations.WithLabelValues(status).Inc()
	m.generationDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordFiles adds n files with the given outcome.
func (m *Metrics) RecordFiles(outcome string, n int) {
	if !m.enabled() || n == 0 {
		return
	}
	m.files.WithLabelValues(outcome).Add(float64(n))
}

// RecordCreation records a finished archetype creation.
func (m *Metrics) RecordCreation(status string, resources int, duration time.Duration) {
	if !m.enabled() {
		return
	}
	m.creations.WithLabelValues(status).Inc()
	m.creationResources.Add(float64(resources))
	m.creationDuration.Observe(duration.Seconds())
}

// RecordPolicyViolation counts a blocking violation of policy.
func (m *Metrics) RecordPolicyViolation(policy string) {
	if !m.enabled() {
		return
	}
	m.policyViolations.WithLabelValues(policy).Inc()
}

// RecordError counts a failed operation by error kind.
func (m *Metrics) RecordError(kind string) {
	if !m.enabled() {
		return
	}
	if kind == "" {
		kind = "unclassified"
	}
	m.errorsByKind.WithLabelValues(kind).Inc()
}

// Registry returns the underlying registry, or nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if !m.enabled() {
		return nil
	}
	return m.registry
}

// WriteTextfile writes the metrics in the text exposition format to path,
// for node-exporter's textfile collector. It is a no-op when disabled.
func (m *Metrics) WriteTextfile(path string) error {
	if !m.enabled() || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
