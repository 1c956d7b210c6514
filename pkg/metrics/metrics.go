// Package metrics exposes Prometheus collectors for the skill lifecycle
// core, following the teacher's package-level-vars-plus-init-registration
// shape: a set of counters/histograms/gauges incremented inline by the
// services themselves, plus a Collector that polls the Repository on an
// interval for point-in-time gauges.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	InstallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillcore_installs_total",
			Help: "Total number of install operations by result",
		},
		[]string{"result"},
	)

	DeploysTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillcore_deploys_total",
			Help: "Total number of deploy operations by result",
		},
		[]string{"result"},
	)

	WatcherViolationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillcore_watcher_violations_total",
			Help: "Total number of integrity violations handled by action taken",
		},
		[]string{"action"},
	)

	SyncTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillcore_sync_total",
			Help: "Total number of sync source reconciliations by source and result",
		},
		[]string{"source", "result"},
	)

	WatcherPollDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "skillcore_watcher_poll_duration_seconds",
			Help:    "Time taken for one Integrity Watcher poll cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	InstallationsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "skillcore_installations_active",
			Help: "Number of installations currently in the active state",
		},
	)

	InstallationsQuarantined = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "skillcore_installations_quarantined",
			Help: "Number of installations currently in the quarantined state",
		},
	)

	SkillsPendingAnalysis = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "skillcore_skills_pending_analysis",
			Help: "Number of skill versions awaiting analysis",
		},
	)
)

func init() {
	prometheus.MustRegister(InstallsTotal)
	prometheus.MustRegister(DeploysTotal)
	prometheus.MustRegister(WatcherViolationsTotal)
	prometheus.MustRegister(SyncTotal)
	prometheus.MustRegister(WatcherPollDuration)
	prometheus.MustRegister(InstallationsActive)
	prometheus.MustRegister(InstallationsQuarantined)
	prometheus.MustRegister(SkillsPendingAnalysis)
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer times an operation for later observation against a histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}
