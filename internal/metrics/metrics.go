// Package metrics exposes Prometheus metrics for reconciliation runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/schaermu/vtagsync/internal/reconcile"
)

// reasonError labels runs that stopped on a read-side collaborator failure
const reasonError = "ERROR"

var (
	// runsTotal counts finished runs by reason
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vtagsync_runs_total",
		Help: "Total reconciliation runs by reason",
	}, []string{"reason"})

	// tagMutationsTotal counts floating tag mutations by state
	tagMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vtagsync_tag_mutations_total",
		Help: "Total floating tag mutations by state",
	}, []string{"state"})

	// runDuration tracks run latency
	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vtagsync_run_duration_seconds",
		Help:    "Reconciliation run duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
	})

	// lastSuccess records when a run last succeeded
	lastSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vtagsync_last_success_timestamp_seconds",
		Help: "Unix time of the last successful run",
	})
)

// Observe records a finished run. A nil res records a run that returned an error.
func Observe(res *reconcile.Result, d time.Duration) {
	runDuration.Observe(d.Seconds())

	if res == nil {
		runsTotal.WithLabelValues(reasonError).Inc()
		return
	}

	runsTotal.WithLabelValues(string(res.Reason)).Inc()
	if res.Data != nil {
		for _, tag := range res.Data.Keys() {
			out, _ := res.Data.Get(tag)
			tagMutationsTotal.WithLabelValues(string(out.State)).Inc()
		}
	}
	if res.Succeeded {
		lastSuccess.SetToCurrentTime()
	}
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
