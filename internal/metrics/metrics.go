// Package metrics exposes the sync job's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	recordsSynced = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whoopsync",
		Subsystem: "sync",
		Name:      "records_total",
		Help:      "Records upserted per resource type.",
	}, []string{"resource"})

	syncFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whoopsync",
		Subsystem: "sync",
		Name:      "failures_total",
		Help:      "Per-user sync attempts that ended in an error.",
	}, []string{"reason"})

	tokenRefreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whoopsync",
		Subsystem: "oauth",
		Name:      "token_refreshes_total",
		Help:      "Provider token refresh attempts by outcome.",
	}, []string{"outcome"})

	reconnectFlagged = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "whoopsync",
		Subsystem: "oauth",
		Name:      "reconnect_flagged_total",
		Help:      "Times a user's credentials were marked as needing reconnection.",
	})

	lastSyncGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "whoopsync",
		Subsystem: "sync",
		Name:      "last_completed_timestamp_seconds",
		Help:      "Unix timestamp of the most recent completed user sync.",
	})

	syncDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "whoopsync",
		Subsystem: "sync",
		Name:      "user_duration_seconds",
		Help:      "Wall time of a single user sync.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	})
)

func init() {
	prometheus.MustRegister(
		recordsSynced,
		syncFailures,
		tokenRefreshes,
		reconnectFlagged,
		lastSyncGauge,
		syncDuration,
	)
}

// RecordSynced adds n to the per-resource record counter.
func RecordSynced(resource string, n int) {
	if n <= 0 {
		return
	}
	recordsSynced.WithLabelValues(resource).Add(float64(n))
}

// RecordSyncFailure counts a failed per-user sync attempt.
func RecordSyncFailure(reason string) {
	syncFailures.WithLabelValues(reason).Inc()
}

// RecordTokenRefresh counts a refresh attempt; outcome is "ok" or "error".
func RecordTokenRefresh(outcome string) {
	tokenRefreshes.WithLabelValues(outcome).Inc()
}

// RecordReconnectFlagged counts a credential being marked for reconnection.
func RecordReconnectFlagged() {
	reconnectFlagged.Inc()
}

// RecordSyncCompleted updates the completion watermark gauge.
func RecordSyncCompleted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	lastSyncGauge.Set(float64(ts.Unix()))
}

// ObserveSyncDuration records the wall time of one user sync.
func ObserveSyncDuration(d time.Duration) {
	syncDuration.Observe(d.Seconds())
}
