// Package metrics exposes the watcher's Prometheus surface: tick
// cadence, restarts, stagnation and reputation-probe outcomes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "watcher_tick_duration_seconds",
			Help:    "Time taken for one supervisor tick across all containers",
			Buckets: prometheus.DefBuckets,
		},
	)

	TicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "watcher_ticks_total",
			Help: "Total number of supervisor ticks completed",
		},
	)

	ContainersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "watcher_containers_total",
			Help: "Number of watched containers by running state",
		},
		[]string{"running"},
	)

	MajorityPair = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "watcher_majority_pair",
			Help: "Current fleet majority (session_id, state); value is always 1",
		},
		[]string{"session_id", "state"},
	)

	RestartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_restarts_total",
			Help: "Total number of container restarts issued by reason",
		},
		[]string{"container", "reason"},
	)

	StagnationAlertsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "watcher_stagnation_alerts_total",
			Help: "Total number of stagnation alerts sent",
		},
	)

	ReputationProbeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "watcher_reputation_probe_duration_seconds",
			Help:    "Time taken for one reputation API probe",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReputationProbeErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_reputation_probe_errors_total",
			Help: "Total number of reputation probe errors by kind",
		},
		[]string{"kind"},
	)

	ChatCommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_chat_commands_total",
			Help: "Total number of chat commands processed by command name",
		},
		[]string{"command"},
	)

	NotifierSendErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "watcher_notifier_send_errors_total",
			Help: "Total number of notifier send failures",
		},
	)
)

func init() {
	prometheus.MustRegister(
		TickDuration,
		TicksTotal,
		ContainersTotal,
		MajorityPair,
		RestartsTotal,
		StagnationAlertsTotal,
		ReputationProbeDuration,
		ReputationProbeErrorsTotal,
		ChatCommandsTotal,
		NotifierSendErrorsTotal,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
