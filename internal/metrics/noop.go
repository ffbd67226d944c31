package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncHumanizeOutcome is a no-op.
func (n *NoopRecorder) IncHumanizeOutcome(outcome string) {}

// ObserveHumanizeDuration is a no-op.
func (n *NoopRecorder) ObserveHumanizeDuration(duration time.Duration) {}

// ObservePollAttempts is a no-op.
func (n *NoopRecorder) ObservePollAttempts(attempts int) {}

// IncRecordCreated is a no-op.
func (n *NoopRecorder) IncRecordCreated() {}

// IncDebitFailure is a no-op.
func (n *NoopRecorder) IncDebitFailure() {}

// IncProviderRequest is a no-op.
func (n *NoopRecorder) IncProviderRequest(op, status string) {}

// ObserveProviderDuration is a no-op.
func (n *NoopRecorder) ObserveProviderDuration(op string, duration time.Duration) {}

// IncReconcileEvent is a no-op.
func (n *NoopRecorder) IncReconcileEvent(status string) {}

// SetReconcileQueueDepth is a no-op.
func (n *NoopRecorder) SetReconcileQueueDepth(depth int64) {}
