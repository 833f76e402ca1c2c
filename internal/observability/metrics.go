package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors for one engine. Each instance owns its
// registry; a nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	steps         *prometheus.CounterVec
	phaseDuration *prometheus.HistogramVec
	backups       *prometheus.CounterVec
	indexed       *prometheus.CounterVec
	snapshotFiles *prometheus.GaugeVec
	snapshotBytes *prometheus.GaugeVec
}

// NewMetrics creates and registers the modsync collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "modsync",
				Subsystem: "executor",
				Name:      "steps_total",
				Help:      "Plan steps executed, by kind.",
			},
			[]string{"operation", "kind"},
		),
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "modsync",
				Subsystem: "executor",
				Name:      "phase_duration_seconds",
				Help:      "Duration of each execution phase in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation", "phase"},
		),
		backups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "modsync",
				Subsystem: "archive",
				Name:      "backups_total",
				Help:      "Backup requests, by whether the blob was stored or already present.",
			},
			[]string{"result"},
		),
		indexed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "modsync",
				Subsystem: "indexer",
				Name:      "files_total",
				Help:      "Indexed files, by whether the hash was computed or reused.",
			},
			[]string{"source"},
		),
		snapshotFiles: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "modsync",
				Subsystem: "snapshot",
				Name:      "files",
				Help:      "Files in the latest snapshot.",
			},
			[]string{"installation"},
		),
		snapshotBytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "modsync",
				Subsystem: "snapshot",
				Name:      "bytes",
				Help:      "Total size of the files in the latest snapshot.",
			},
			[]string{"installation"},
		),
	}
	m.registry.MustRegister(m.steps, m.phaseDuration, m.backups, m.indexed, m.snapshotFiles, m.snapshotBytes)
	return m
}

// Registry exposes the registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordStep counts one executed step.
func (m *Metrics) RecordStep(operation, kind string) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(operation, kind).Inc()
}

// ObservePhase records how long an execution phase took.
func (m *Metrics) ObservePhase(operation, phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.phaseDuration.WithLabelValues(operation, phase).Observe(d.Seconds())
}

// RecordBackup counts one backup request.
func (m *Metrics) RecordBackup(stored bool) {
	if m == nil {
		return
	}
	result := "skipped"
	if stored {
		result = "stored"
	}
	m.backups.WithLabelValues(result).Inc()
}

// RecordIndexed counts one indexed file.
func (m *Metrics) RecordIndexed(reused bool) {
	if m == nil {
		return
	}
	source := "hashed"
	if reused {
		source = "reused"
	}
	m.indexed.WithLabelValues(source).Inc()
}

// SetSnapshot records the size of the newest snapshot of an installation.
func (m *Metrics) SetSnapshot(installation string, files int, bytes int64) {
	if m == nil {
		return
	}
	m.snapshotFiles.WithLabelValues(installation).Set(float64(files))
	m.snapshotBytes.WithLabelValues(installation).Set(float64(bytes))
}

// WriteTextfile writes every metric in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
