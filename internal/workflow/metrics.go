package workflow

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	defaultMetrics *Metrics
	metricsOnce    sync.Once
)

// Metrics holds Prometheus metrics for workflow executions.
//
//   - brandflow_executions_total{outcome}
//   - brandflow_execution_duration_seconds{outcome}
//   - brandflow_stage_calls_total{stage,kind,result}
//   - brandflow_stage_duration_seconds{stage,kind}
//   - brandflow_unmatched_total{classifier}
//   - brandflow_executions_in_flight
type Metrics struct {
	ExecutionsTotal   *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
	StageCallsTotal   *prometheus.CounterVec
	StageDuration     *prometheus.HistogramVec
	UnmatchedTotal    *prometheus.CounterVec
	InFlight          prometheus.Gauge
}

// DefaultMetrics returns metrics registered once on the default registry.
func DefaultMetrics() *Metrics {
	metricsOnce.Do(func() {
		defaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// NewMetrics registers workflow metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ExecutionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brandflow_executions_total",
				Help: "Total number of workflow executions by outcome",
			},
			[]string{"outcome"},
		),
		ExecutionDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "brandflow_execution_duration_seconds",
				Help:    "Duration of workflow executions in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"outcome"},
		),
		StageCallsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brandflow_stage_calls_total",
				Help: "Total number of stage calls",
			},
			[]string{"stage", "kind", "result"}, // result: ok, missing, error
		),
		StageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "brandflow_stage_duration_seconds",
				Help:    "Duration of stage calls in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 180},
			},
			[]string{"stage", "kind"},
		),
		UnmatchedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brandflow_unmatched_total",
				Help: "Classifications that resolved to no branch",
			},
			[]string{"classifier"},
		),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "brandflow_executions_in_flight",
			Help: "Workflow executions currently running",
		}),
	}
}
