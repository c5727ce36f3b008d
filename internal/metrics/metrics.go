// Package metrics exposes prometheus counters for release runs.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pyship",
			Name:      "runs_total",
			Help:      "Finished release runs by outcome.",
		},
		[]string{"status"},
	)
	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pyship",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"stage", "status"},
	)
	artifactsUploaded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pyship",
			Name:      "artifacts_uploaded_total",
			Help:      "Distribution files handed to the upload tool successfully.",
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pyship",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(runsTotal, stageDuration, artifactsUploaded, httpRequests)
	})
}

func RecordRun(status string) {
	RegisterMetrics()
	runsTotal.WithLabelValues(status).Inc()
}

func RecordStage(stage, status string, d time.Duration) {
	RegisterMetrics()
	stageDuration.WithLabelValues(stage, status).Observe(d.Seconds())
}

func RecordUploaded(n int) {
	RegisterMetrics()
	artifactsUploaded.Add(float64(n))
}

func RecordHTTPRequest(method, path, status string) {
	RegisterMetrics()
	httpRequests.WithLabelValues(method, path, status).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}
