package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/custodia-labs/broker-core/internal/core/domain"
)

type Metrics struct {
	OperationsTotal *prometheus.CounterVec
	JobAttempts     *prometheus.CounterVec
	JobsInFlight    prometheus.Gauge
	StoreCalls      *prometheus.CounterVec
	BrokerCalls     *prometheus.CounterVec
	BrokerLatency   *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		OperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broker_operations_total",
			Help: "total number of operations recorded, by type and state",
		}, []string{"type", "state"}),
		JobAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broker_reconciliation_attempts_total",
			Help: "total number of reconciliation job attempts, by outcome",
		}, []string{"outcome"}),
		JobsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "broker_jobs_in_flight",
			Help: "number of background jobs currently running",
		}),
		StoreCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broker_store_calls_total",
			Help: "total number of service store calls, by method and status",
		}, []string{"method", "status"}),
		BrokerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broker_client_calls_total",
			Help: "total number of broker calls, by method and status",
		}, []string{"method", "status"}),
		BrokerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "broker_client_call_duration_seconds",
			Help:    "latency of broker calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}

	metrics.Enable(reg)
	return metrics
}

func (m *Metrics) Enable(reg prometheus.Registerer) {
	reg.MustRegister(m.OperationsTotal)
	reg.MustRegister(m.JobAttempts)
	reg.MustRegister(m.JobsInFlight)
	reg.MustRegister(m.StoreCalls)
	reg.MustRegister(m.BrokerCalls)
	reg.MustRegister(m.BrokerLatency)
}

// The Observe methods are safe to call on a nil *Metrics.

func (m *Metrics) ObserveOperation(op domain.Operation) {
	if m == nil {
		return
	}
	m.OperationsTotal.WithLabelValues(string(op.Type), string(op.State)).Inc()
}

func (m *Metrics) ObserveJobAttempt(outcome string) {
	if m == nil {
		return
	}
	m.JobAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.JobsInFlight.Inc()
}

func (m *Metrics) JobFinished() {
	if m == nil {
		return
	}
	m.JobsInFlight.Dec()
}

func (m *Metrics) ObserveStoreCall(method string, err error) {
	if m == nil {
		return
	}
	m.StoreCalls.WithLabelValues(method, Status(err)).Inc()
}

func (m *Metrics) ObserveBrokerCall(method string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.BrokerCalls.WithLabelValues(method, Status(err)).Inc()
	m.BrokerLatency.WithLabelValues(method).Observe(duration.Seconds())
}

// Status maps an error onto a low-cardinality label value.
func Status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrLocked):
		return "locked"
	case errors.Is(err, domain.ErrOperationInProgress):
		return "in_progress"
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidState):
		return "invalid"
	default:
		return "error"
	}
}
