// Package metrics counts what a batch did, in Prometheus form.
//
// The combiner is a short-lived command, not a server, so nothing is scraped:
// the collectors live in a private registry that the process command writes
// to a text file (node-exporter textfile format) after the batch when
// metrics_file is configured.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ginjaninja78/invoice-combiner/internal/types"
)

// File outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// Row results.
const (
	RowsInserted = "inserted"
	RowsSkipped  = "skipped"
	RowsExported = "exported"
)

// Metrics holds the batch collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	FilesTotal      *prometheus.CounterVec
	RowsTotal       *prometheus.CounterVec
	RolesUndetected *prometheus.CounterVec
	FileDuration    prometheus.Histogram
}

// New creates the collectors and registers them in a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		FilesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "combiner_files_total",
				Help: "Total number of processed files by outcome",
			},
			[]string{"outcome"},
		),

		RowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "combiner_rows_total",
				Help: "Total number of standardized rows by result",
			},
			[]string{"result"},
		),

		RolesUndetected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "combiner_roles_undetected_total",
				Help: "Total number of files in which a role was not detected",
			},
			[]string{"role"},
		),

		FileDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "combiner_file_duration_seconds",
				Help:    "Time spent processing one file in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	m.registry.MustRegister(m.FilesTotal, m.RowsTotal, m.RolesUndetected, m.FileDuration)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveFile records one file outcome and its processing time.
func (m *Metrics) ObserveFile(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.FilesTotal.WithLabelValues(outcome).Inc()
	m.FileDuration.Observe(d.Seconds())
}

// AddRows adds n rows to the counter for result.
func (m *Metrics) AddRows(result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RowsTotal.WithLabelValues(result).Add(float64(n))
}

// ObserveUndetected counts each role classification gave up on.
func (m *Metrics) ObserveUndetected(roles []types.Role) {
	if m == nil {
		return
	}
	for _, r := range roles {
		m.RolesUndetected.WithLabelValues(string(r)).Inc()
	}
}

// WriteToTextfile writes the registry to path in text exposition format.
// The file is replaced atomically.
func (m *Metrics) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
