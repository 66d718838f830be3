package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the optimization service.
type Metrics struct {
	RunsStarted   prometheus.Counter
	RunsCompleted prometheus.Counter
	RunsFailed    prometheus.Counter
	RunsCancelled prometheus.Counter
	Generations   prometheus.Counter
	BestFitness   prometheus.Gauge
}

// NewMetrics registers the service metrics with the given registerer.
// Passing nil registers with the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RunsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "strut_optimization_runs_started_total",
			Help: "Number of optimization runs started.",
		}),
		RunsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "strut_optimization_runs_completed_total",
			Help: "Number of optimization runs that finished successfully.",
		}),
		RunsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "strut_optimization_runs_failed_total",
			Help: "Number of optimization runs that failed.",
		}),
		RunsCancelled: factory.NewCounter(prometheus.CounterOpts{
			Name: "strut_optimization_runs_cancelled_total",
			Help: "Number of optimization runs cancelled by the caller.",
		}),
		Generations: factory.NewCounter(prometheus.CounterOpts{
			Name: "strut_optimization_generations_total",
			Help: "Number of generations evolved across all runs.",
		}),
		BestFitness: factory.NewGauge(prometheus.GaugeOpts{
			Name: "strut_optimization_best_fitness",
			Help: "Best positive fitness observed in the most recent generation.",
		}),
	}
}
