// Package metrics exposes roster counts as Prometheus metrics, either over
// HTTP or as a node-exporter textfile.
package metrics

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dhis2dupes/internal/users"
)

const namespace = "dhis2dupes"

// Recorder owns a private registry so textfile output only carries
// dhis2dupes series.
type Recorder struct {
	registry        *prometheus.Registry
	usersTotal      prometheus.Gauge
	duplicateUsers  prometheus.Gauge
	duplicateGroups prometheus.Gauge
	lastRun         prometheus.Gauge
	lastSuccess     prometheus.Gauge
	runs            *prometheus.CounterVec
}

// New registers the dhis2dupes collectors on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		usersTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "users_total",
			Help:      "Users in the last classified roster.",
		}),
		duplicateUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "duplicate_users_total",
			Help:      "Users flagged as duplicates in the last classified roster.",
		}),
		duplicateGroups: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "duplicate_groups_total",
			Help:      "Distinct names shared by more than one user in the last roster.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if the last run succeeded, 0 otherwise.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Runs by outcome.",
		}, []string{"status"}),
	}
	r.registry.MustRegister(r.usersTotal, r.duplicateUsers, r.duplicateGroups, r.lastRun, r.lastSuccess, r.runs)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// ObserveSuccess records the counts of a finished run.
func (r *Recorder) ObserveSuccess(summary users.Summary, finished time.Time) {
	r.usersTotal.Set(float64(summary.Total))
	r.duplicateUsers.Set(float64(summary.Duplicates))
	r.duplicateGroups.Set(float64(summary.Groups))
	r.lastRun.Set(float64(finished.Unix()))
	r.lastSuccess.Set(1)
	r.runs.WithLabelValues("succeeded").Inc()
}

// ObserveFailure records a failed run. Roster gauges keep their last values.
func (r *Recorder) ObserveFailure(finished time.Time) {
	r.lastRun.Set(float64(finished.Unix()))
	r.lastSuccess.Set(0)
	r.runs.WithLabelValues("failed").Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the registry for the node-exporter textfile collector.
// The write is atomic.
func (r *Recorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
