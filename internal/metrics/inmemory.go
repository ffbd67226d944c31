package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	HumanizeOutcomes        map[string]uint64
	HumanizeDurationCount   uint64
	HumanizeDurationTotalNs int64
	PollAttemptsTotal       uint64
	RecordsCreated          uint64
	DebitFailures           uint64
	ProviderRequests        map[string]uint64 // keyed by "op:status"
	ReconcileEvents         map[string]uint64
	ReconcileQueueDepth     int64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	humanizeDurationCount   uint64
	humanizeDurationTotalNs int64
	pollAttemptsTotal       uint64
	recordsCreated          uint64
	debitFailures           uint64
	reconcileQueueDepth     int64

	mu               sync.Mutex
	humanizeOutcomes map[string]uint64
	providerRequests map[string]uint64
	reconcileEvents  map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		humanizeOutcomes: make(map[string]uint64),
		providerRequests: make(map[string]uint64),
		reconcileEvents:  make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		HumanizeOutcomes:        copyCounts(m.humanizeOutcomes),
		HumanizeDurationCount:   atomic.LoadUint64(&m.humanizeDurationCount),
		HumanizeDurationTotalNs: atomic.LoadInt64(&m.humanizeDurationTotalNs),
		PollAttemptsTotal:       atomic.LoadUint64(&m.pollAttemptsTotal),
		RecordsCreated:          atomic.LoadUint64(&m.recordsCreated),
		DebitFailures:           atomic.LoadUint64(&m.debitFailures),
		ProviderRequests:        copyCounts(m.providerRequests),
		ReconcileEvents:         copyCounts(m.reconcileEvents),
		ReconcileQueueDepth:     atomic.LoadInt64(&m.reconcileQueueDepth),
	}
}

// IncHumanizeOutcome increments the counter for a workflow outcome.
func (m *InMemoryRecorder) IncHumanizeOutcome(outcome string) {
	m.mu.Lock()
	m.humanizeOutcomes[outcome]++
	m.mu.Unlock()
}

// ObserveHumanizeDuration records workflow duration.
func (m *InMemoryRecorder) ObserveHumanizeDuration(duration time.Duration) {
	atomic.AddUint64(&m.humanizeDurationCount, 1)
	atomic.AddInt64(&m.humanizeDurationTotalNs, duration.Nanoseconds())
}

// ObservePollAttempts adds to the total number of poll attempts.
func (m *InMemoryRecorder) ObservePollAttempts(attempts int) {
	atomic.AddUint64(&m.pollAttemptsTotal, uint64(attempts))
}

// IncRecordCreated increments the record counter.
func (m *InMemoryRecorder) IncRecordCreated() {
	atomic.AddUint64(&m.recordsCreated, 1)
}

// IncDebitFailure increments the debit failure counter.
func (m *InMemoryRecorder) IncDebitFailure() {
	atomic.AddUint64(&m.debitFailures, 1)
}

// IncProviderRequest increments the provider request counter.
func (m *InMemoryRecorder) IncProviderRequest(op, status string) {
	m.mu.Lock()
	m.providerRequests[op+":"+status]++
	m.mu.Unlock()
}

// ObserveProviderDuration is not tracked in memory.
func (m *InMemoryRecorder) ObserveProviderDuration(op string, duration time.Duration) {}

// IncReconcileEvent increments the reconciliation event counter.
func (m *InMemoryRecorder) IncReconcileEvent(status string) {
	m.mu.Lock()
	m.reconcileEvents[status]++
	m.mu.Unlock()
}

// SetReconcileQueueDepth stores the reconciliation backlog.
func (m *InMemoryRecorder) SetReconcileQueueDepth(depth int64) {
	atomic.StoreInt64(&m.reconcileQueueDepth, depth)
}

func copyCounts(src map[string]uint64) map[string]uint64 {
	dst := make(map[string]uint64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
