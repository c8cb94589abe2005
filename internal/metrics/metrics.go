package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tradegraph_runs_total", Help: "Analysis runs by outcome"},
		[]string{"outcome"},
	)
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tradegraph_stage_duration_seconds",
			Help:    "Pipeline stage latency",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"stage"},
	)
	StageFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tradegraph_stage_failures_total", Help: "Stages that returned an error"},
		[]string{"stage"},
	)
	SourceFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tradegraph_source_failures_total", Help: "Per-symbol signal source failures"},
		[]string{"source"},
	)
	RecommendationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tradegraph_recommendations_total", Help: "Recommendations emitted by class"},
		[]string{"class"},
	)
)

// Run outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
	OutcomePartial   = "partial"
)

var registerOnce sync.Once

// Register adds the collectors to the default registry. Safe to call more
// than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RunsTotal, StageDuration, StageFailures, SourceFailures, RecommendationsTotal)
	})
}

// ObserveStage records one stage execution.
func ObserveStage(stage string, d time.Duration, err error) {
	StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		StageFailures.WithLabelValues(stage).Inc()
	}
}

// Serve exposes /metrics on addr in the background.
func Serve(addr string) *http.Server {
	Register()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
