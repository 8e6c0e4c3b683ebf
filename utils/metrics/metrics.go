package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/michaelpento.lv/xchainarb/types"
)

// ExecutionMetrics tracks cross-chain execution flows
type ExecutionMetrics struct {
	Attempts         prometheus.Counter
	Completions      prometheus.Counter
	Rejections       *prometheus.CounterVec
	Failures         *prometheus.CounterVec
	ObserverPolls    prometheus.Counter
	ObserverErrors   prometheus.Counter
	ConfirmationWait prometheus.Histogram
	FlowDuration     prometheus.Histogram
	InFlight         prometheus.Gauge
}

// NewExecutionMetrics registers the execution metrics with reg. A nil
// registerer creates unregistered collectors.
func NewExecutionMetrics(namespace string, reg prometheus.Registerer) *ExecutionMetrics {
	factory := promauto.With(reg)
	return &ExecutionMetrics{
		Attempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "execution_attempts_total",
			Help:      "Total number of execution flows started",
		}),
		Completions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "execution_completions_total",
			Help:      "Total number of execution flows that settled on the target network",
		}),
		Rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_rejections_total",
			Help:      "Total number of opportunities rejected by validation",
		}, []string{"reason"}),
		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "execution_failures_total",
			Help:      "Total number of execution flows that failed, by stage",
		}, []string{"stage"}),
		ObserverPolls: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observer_polls_total",
			Help:      "Total number of bridge finality polls",
		}),
		ObserverErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observer_errors_total",
			Help:      "Total number of failed bridge finality polls",
		}),
		ConfirmationWait: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "confirmation_wait_seconds",
			Help:      "Time spent waiting for bridge finality",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 11),
		}),
		FlowDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Duration of execution flows from start to terminal stage",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "executions_in_flight",
			Help:      "Current number of running execution flows",
		}),
	}
}

// ObserveFailure counts a flow that stopped at stage
func (m *ExecutionMetrics) ObserveFailure(stage types.Stage) {
	m.Failures.WithLabelValues(string(stage)).Inc()
}

// ObserveRejection counts an opportunity rejected for reason
func (m *ExecutionMetrics) ObserveRejection(reason string) {
	m.Rejections.WithLabelValues(reason).Inc()
}

// ObserveConfirmationWait records how long finality polling took
func (m *ExecutionMetrics) ObserveConfirmationWait(d time.Duration) {
	m.ConfirmationWait.Observe(d.Seconds())
}
