// Package metrics records pipeline outcomes in a Prometheus registry and
// writes them to a node_exporter textfile.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "loreforge"

// Metrics holds the pipeline collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	stageRuns     *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	lastSuccess   *prometheus.GaugeVec
	health        *prometheus.GaugeVec
	atoms         *prometheus.GaugeVec
	published     prometheus.Gauge
	pending       prometheus.Gauge
	now           func() time.Time
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stageRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_runs_total",
			Help:      "Pipeline stage executions by result.",
		}, []string{"stage", "result"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage wall time.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}, []string{"stage"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful stage run.",
		}, []string{"stage"}),
		health: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "health_status",
			Help:      "1 when a health check is GREEN, 0 when RED.",
		}, []string{"check"}),
		atoms: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "atoms",
			Help:      "Atom files per lifecycle stage.",
		}, []string{"stage"}),
		published: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "published_records",
			Help:      "Records in the publish registry.",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_approvals",
			Help:      "Days awaiting an approval decision.",
		}),
		now: time.Now,
	}
	m.registry.MustRegister(m.stageRuns, m.stageDuration, m.lastSuccess, m.health, m.atoms, m.published, m.pending)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveStage records one stage run that began at started.
func (m *Metrics) ObserveStage(stage string, started time.Time, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	now := m.now()
	m.stageRuns.WithLabelValues(stage, result).Inc()
	m.stageDuration.WithLabelValues(stage).Observe(now.Sub(started).Seconds())
	if err == nil {
		m.lastSuccess.WithLabelValues(stage).Set(float64(now.Unix()))
	}
}

// SetHealth records a health check result.
func (m *Metrics) SetHealth(check string, green bool) {
	if m == nil {
		return
	}
	value := 0.0
	if green {
		value = 1
	}
	m.health.WithLabelValues(check).Set(value)
}

// SetAtoms records the atom count of a lifecycle stage.
func (m *Metrics) SetAtoms(stage string, n int) {
	if m == nil {
		return
	}
	m.atoms.WithLabelValues(stage).Set(float64(n))
}

// SetPublished records the registry size.
func (m *Metrics) SetPublished(n int) {
	if m == nil {
		return
	}
	m.published.Set(float64(n))
}

// SetPendingApprovals records the number of pending gate records.
func (m *Metrics) SetPendingApprovals(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}

// WriteTextfile writes every metric to path in the text exposition format.
// An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || strings.TrimSpace(path) == "" {
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
