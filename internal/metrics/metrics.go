// Package metrics registers the deployment pipeline's prometheus gauges
// and counters, following
// open-component-model-open-component-model/kubernetes/controller/internal/metrics's
// MustRegister* helper shape (package-level vars built at init time via a
// small namespace/subsystem/name wrapper around prometheus.NewCounterVec
// etc.), adapted from a Kubernetes controller's reconcile metrics to a
// single-device deployment pipeline's.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "fleetd"

func mustCounterVec(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	m := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
	prometheus.MustRegister(m)
	return m
}

func mustGauge(subsystem, name, help string) prometheus.Gauge {
	m := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	})
	prometheus.MustRegister(m)
	return m
}

func mustHistogram(subsystem, name, help string, buckets []float64) prometheus.Histogram {
	m := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	})
	prometheus.MustRegister(m)
	return m
}

var (
	// DeploymentResults counts deployment task outcomes by status (§4.5).
	DeploymentResults = mustCounterVec("deployment", "results_total", "Deployment tasks completed, by terminal status.", "status")

	// DeploymentDuration is the histogram for wall-clock time from task
	// pickup to terminal status; no code path records into it.
	DeploymentDuration = mustHistogram("deployment", "duration_seconds", "Deployment task duration from pickup to terminal status.",
		[]float64{.5, 1, 5, 15, 30, 60, 180, 600})

	// DeploymentQueueDepth reports the orchestrator's pending task count.
	DeploymentQueueDepth = mustGauge("deployment", "queue_depth", "Deployment tasks currently queued, not counting deferred ones.")

	// ComponentsRunning reports the number of components currently in a
	// success state (RUNNING or FINISHED).
	ComponentsRunning = mustGauge("registry", "components_running", "Components currently in a RUNNING or FINISHED state.")

	// ComponentsBroken reports the number of components currently BROKEN.
	ComponentsBroken = mustGauge("registry", "components_broken", "Components currently in a BROKEN state.")

	// StorePrunes counts prune passes, by outcome.
	StorePrunes = mustCounterVec("store", "prunes_total", "Component store prune passes run, by outcome.", "outcome")

	// ArtifactDownloads counts artifact fetch attempts, by outcome.
	ArtifactDownloads = mustCounterVec("store", "artifact_downloads_total", "Artifact download attempts, by outcome.", "outcome")
)

// ObserveRegistry recomputes the running/broken gauges from a name->state
// snapshot; called after every lifecycle merge commits.
func ObserveRegistry(running, broken int) {
	ComponentsRunning.Set(float64(running))
	ComponentsBroken.Set(float64(broken))
}
