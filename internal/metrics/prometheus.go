package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "humanizer"

// PrometheusRecorder exports metrics through a Prometheus registry.
type PrometheusRecorder struct {
	humanizeOutcomes    *prometheus.CounterVec
	humanizeDuration    prometheus.Histogram
	pollAttempts        prometheus.Histogram
	recordsCreated      prometheus.Counter
	debitFailures       prometheus.Counter
	providerRequests    *prometheus.CounterVec
	providerDuration    *prometheus.HistogramVec
	reconcileEvents     *prometheus.CounterVec
	reconcileQueueDepth prometheus.Gauge
}

// NewPrometheus creates a recorder and registers its collectors with reg.
func NewPrometheus(reg prometheus.Registerer) *PrometheusRecorder {
	p := &PrometheusRecorder{
		humanizeOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "humanize_requests_total",
			Help:      "Humanize workflow invocations by outcome.",
		}, []string{"outcome"}),
		humanizeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "humanize_duration_seconds",
			Help:      "Wall time of a humanize workflow.",
			Buckets:   []float64{1, 5, 10, 20, 30, 45, 60, 90, 120},
		}),
		pollAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_attempts",
			Help:      "Status queries issued per rewrite job.",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
		recordsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_created_total",
			Help:      "Humanization records written.",
		}),
		debitFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debit_failures_total",
			Help:      "Credit debits that failed after a record was written.",
		}),
		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Requests to the rewriting provider.",
		}, []string{"op", "status"}),
		providerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Latency of rewriting provider requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		reconcileEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_events_total",
			Help:      "Debit reconciliation events by status.",
		}, []string{"status"}),
		reconcileQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reconcile_queue_depth",
			Help:      "Pending debit reconciliation events.",
		}),
	}

	reg.MustRegister(
		p.humanizeOutcomes,
		p.humanizeDuration,
		p.pollAttempts,
		p.recordsCreated,
		p.debitFailures,
		p.providerRequests,
		p.providerDuration,
		p.reconcileEvents,
		p.reconcileQueueDepth,
	)
	return p
}

// IncHumanizeOutcome increments the counter for a workflow outcome.
func (p *PrometheusRecorder) IncHumanizeOutcome(outcome string) {
	p.humanizeOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveHumanizeDuration records workflow duration.
func (p *PrometheusRecorder) ObserveHumanizeDuration(duration time.Duration) {
	p.humanizeDuration.Observe(duration.Seconds())
}

// ObservePollAttempts records the poll attempts of one job.
func (p *PrometheusRecorder) ObservePollAttempts(attempts int) {
	p.pollAttempts.Observe(float64(attempts))
}

// IncRecordCreated increments the record counter.
func (p *PrometheusRecorder) IncRecordCreated() {
	p.recordsCreated.Inc()
}

// IncDebitFailure increments the debit failure counter.
func (p *PrometheusRecorder) IncDebitFailure() {
	p.debitFailures.Inc()
}

// IncProviderRequest increments the provider request counter.
func (p *PrometheusRecorder) IncProviderRequest(op, status string) {
	p.providerRequests.WithLabelValues(op, status).Inc()
}

// ObserveProviderDuration records provider latency.
func (p *PrometheusRecorder) ObserveProviderDuration(op string, duration time.Duration) {
	p.providerDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// IncReconcileEvent increments the reconciliation event counter.
func (p *PrometheusRecorder) IncReconcileEvent(status string) {
	p.reconcileEvents.WithLabelValues(status).Inc()
}

// SetReconcileQueueDepth stores the reconciliation backlog.
func (p *PrometheusRecorder) SetReconcileQueueDepth(depth int64) {
	p.reconcileQueueDepth.Set(float64(depth))
}
