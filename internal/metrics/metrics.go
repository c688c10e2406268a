package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"researchctl/pkg/logging"
)

// Recorder holds the lifecycle metrics of one researchctl invocation.
// researchctl is short-lived, so metrics are written once to a textfile for
// the node exporter instead of being served.
type Recorder struct {
	registry *prometheus.Registry

	// HealthProbes counts health probes, partitioned by target and result.
	HealthProbes *prometheus.CounterVec
	// PhaseDuration records how long each lifecycle phase took in seconds.
	PhaseDuration *prometheus.GaugeVec
	// TeardownContainers counts containers removed, by pass.
	TeardownContainers *prometheus.CounterVec
	// LastSuccess is the unix time of the last successful command.
	LastSuccess *prometheus.GaugeVec
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		HealthProbes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "researchctl_health_probes_total",
			Help: "Total number of health probes issued",
		}, []string{"target", "result"}),
		PhaseDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "researchctl_phase_duration_seconds",
			Help: "Duration of the last run of each lifecycle phase",
		}, []string{"phase"}),
		TeardownContainers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "researchctl_teardown_containers_total",
			Help: "Containers removed during teardown",
		}, []string{"kind"}),
		LastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "researchctl_last_success_timestamp_seconds",
			Help: "Unix time of the last successful command",
		}, []string{"command"}),
	}
	r.registry.MustRegister(r.HealthProbes, r.PhaseDuration, r.TeardownContainers, r.LastSuccess)
	return r
}

// ObserveProbe matches health.ProbeFunc.
func (r *Recorder) ObserveProbe(target string, attempt int, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	r.HealthProbes.WithLabelValues(target, result).Inc()
}

// ObserveRemoval matches the teardown OnRemove hook.
func (r *Recorder) ObserveRemoval(kind string, n int) {
	r.TeardownContainers.WithLabelValues(kind).Add(float64(n))
}

// ObservePhase records a phase duration.
func (r *Recorder) ObservePhase(phase string, d time.Duration) {
	r.PhaseDuration.WithLabelValues(phase).Set(d.Seconds())
}

// MarkSuccess records a successful command at t.
func (r *Recorder) MarkSuccess(command string, t time.Time) {
	r.LastSuccess.WithLabelValues(command).Set(float64(t.Unix()))
}

// Gatherer exposes the registry the textfile is written from.
func (r *Recorder) Gatherer() prometheus.Gatherer { return r.registry }

// WriteTextfile writes all metrics to path in the text exposition format.
// An empty path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.Gatherer()); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	logging.Debug("Metrics", "Wrote metrics to %s", path)
	return nil
}
