// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Humanize workflow outcomes.
const (
	OutcomeSuccess             = "success"
	OutcomeValidation          = "validation"
	OutcomeInsufficientCredits = "insufficient_credits"
	OutcomeInProgress          = "in_progress"
	OutcomeFailed              = "failed"
	OutcomeCanceled            = "canceled"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Humanize workflow metrics
	IncHumanizeOutcome(outcome string)
	ObserveHumanizeDuration(duration time.Duration)
	ObservePollAttempts(attempts int)
	IncRecordCreated()
	IncDebitFailure()

	// Provider metrics
	IncProviderRequest(op, status string) // status: "ok", "rejected", "unreachable"
	ObserveProviderDuration(op string, duration time.Duration)

	// Reconciliation pipeline metrics
	IncReconcileEvent(status string) // status: "published", "dropped", "debited", "skipped", "failed", "dead_lettered"
	SetReconcileQueueDepth(depth int64)
}
