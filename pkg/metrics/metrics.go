// Package metrics exposes the catalog manager's Prometheus instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Catalog entity gauges

	TablesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "catalogd_tables_total",
			Help: "Total number of tables by state",
		},
		[]string{"state"},
	)

	TabletsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "catalogd_tablets_total",
			Help: "Total number of tablets by state",
		},
		[]string{"state"},
	)

	NamespacesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalogd_namespaces_total",
			Help: "Total number of namespaces",
		},
	)

	ClusterConfigVersion = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalogd_cluster_config_version",
			Help: "Current ClusterConfig version",
		},
	)

	// Raft metrics

	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalogd_raft_is_leader",
			Help: "Whether this node is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	RaftPeers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalogd_raft_peers_total",
			Help: "Total number of Raft peers in the cluster",
		},
	)

	RaftLogIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalogd_raft_log_index",
			Help: "Current Raft log index",
		},
	)

	RaftAppliedIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalogd_raft_applied_index",
			Help: "Last applied Raft log index",
		},
	)

	RaftApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalogd_raft_apply_duration_seconds",
			Help:    "Time taken to apply a Raft log entry in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// API metrics

	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogd_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalogd_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Loader metrics

	LoaderDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalogd_loader_duration_seconds",
			Help:    "Time taken for a Loader rebuild of the Entity Registry",
			Buckets: prometheus.DefBuckets,
		},
	)

	LoaderRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogd_loader_runs_total",
			Help: "Total Loader runs by outcome",
		},
		[]string{"outcome"},
	)

	// Assignment Engine / Background Loop metrics

	AssignmentTickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalogd_assignment_tick_duration_seconds",
			Help:    "Time taken for one Assignment Engine tick",
			Buckets: prometheus.DefBuckets,
		},
	)

	TabletsReplacedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "catalogd_tablets_replaced_total",
			Help: "Total Tablets replaced after a creation timeout",
		},
	)

	// Report Reconciler metrics

	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalogd_reconciliation_duration_seconds",
			Help:    "Time taken to process one tablet report",
			Buckets: prometheus.DefBuckets,
		},
	)

	TombstonesSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "catalogd_tombstones_sent_total",
			Help: "Total tombstone instructions issued to tablet servers",
		},
	)
)

func init() {
	prometheus.MustRegister(
		TablesTotal,
		TabletsTotal,
		NamespacesTotal,
		ClusterConfigVersion,
		RaftLeader,
		RaftPeers,
		RaftLogIndex,
		RaftAppliedIndex,
		RaftApplyDuration,
		APIRequestsTotal,
		APIRequestDuration,
		LoaderDuration,
		LoaderRunsTotal,
		AssignmentTickDuration,
		TabletsReplacedTotal,
		ReconciliationDuration,
		TombstonesSentTotal,
	)
}

// Handler returns the Prometheus scrape handler.
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

// ObserveDuration records the elapsed time to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
