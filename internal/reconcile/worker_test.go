package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/humanizer/humanizer/internal/metrics"
	"github.com/humanizer/humanizer/internal/service"
)

type fakeDebiter struct {
	errs  []error
	calls int
}

func (d *fakeDebiter) Debit(ctx context.Context, userID, recordID string) error {
	d.calls++
	if d.calls <= len(d.errs) {
		return d.errs[d.calls-1]
	}
	return nil
}

func newTestWorker(d Debiter, rec metrics.Recorder) *Worker {
	w := NewWorker(nil, d, slog.New(slog.NewTextHandler(io.Discard, nil)), "test-consumer", rec)
	w.backoff = func(int) time.Duration { return 0 }
	return w
}

func TestWorker_Apply(t *testing.T) {
	t.Parallel()

	transient := errors.New("connection reset")
	event := DebitEvent{UserID: "u1", RecordID: "rec-1", FailedAt: time.Now().UnixMilli()}

	tests := []struct {
		name        string
		errs        []error
		want        decision
		wantCalls   int
		wantOutcome string
	}{
		{"debited first try", nil, decisionAck, 1, "debited"},
		{"debited after transient failures", []error{transient, transient}, decisionAck, 3, "debited"},
		{"transient until budget exhausted", []error{transient, transient, transient}, decisionRetryLater, 3, "failed"},
		{
			"exhausted credits",
			[]error{fmt.Errorf("%w: %w", service.ErrLedgerWriteFailed, service.ErrCreditsExhausted)},
			decisionDeadLetter, 1, "skipped",
		},
		{
			"profile gone",
			[]error{fmt.Errorf("%w: %w", service.ErrLedgerWriteFailed, service.ErrProfileNotFound)},
			decisionDeadLetter, 1, "skipped",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := &fakeDebiter{errs: tt.errs}
			rec := metrics.NewInMemory()
			w := newTestWorker(d, rec)

			got, _ := w.apply(context.Background(), event)
			if got != tt.want {
				t.Errorf("apply() = %v, want %v", got, tt.want)
			}
			if d.calls != tt.wantCalls {
				t.Errorf("Debit calls = %d, want %d", d.calls, tt.wantCalls)
			}
			if n := rec.Snapshot().ReconcileEvents[tt.wantOutcome]; n != 1 {
				t.Errorf("%s events = %d, want 1", tt.wantOutcome, n)
			}
		})
	}
}

func TestWorker_Apply_Canceled(t *testing.T) {
	t.Parallel()

	d := &fakeDebiter{errs: []error{errors.New("timeout"), errors.New("timeout")}}
	w := newTestWorker(d, nil)
	w.backoff = func(int) time.Duration { return time.Hour }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := w.apply(ctx, DebitEvent{UserID: "u1", RecordID: "rec-1", FailedAt: 1})
	if got != decisionRetryLater || !errors.Is(err, context.Canceled) {
		t.Errorf("apply() = %v, %v; want retry later with context.Canceled", got, err)
	}
	if d.calls != 1 {
		t.Errorf("Debit calls = %d, want 1", d.calls)
	}
}

func TestParseMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		values     map[string]interface{}
		wantOK     bool
		wantReason string
	}{
		{"valid", map[string]interface{}{"payload": `{"uid":"u1","rid":"rec-1","t":1700000000000}`}, true, ""},
		{"missing payload", map[string]interface{}{}, false, "invalid_format"},
		{"payload not string", map[string]interface{}{"payload": 42}, false, "invalid_format"},
		{"bad json", map[string]interface{}{"payload": `{"uid":`}, false, "unmarshal_error"},
		{"invalid event", map[string]interface{}{"payload": `{"uid":"u1","t":1}`}, false, "validation_error"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			event, reason, _, ok := parseMessage(redis.XMessage{ID: "1-0", Values: tt.values})
			if ok != tt.wantOK || reason != tt.wantReason {
				t.Fatalf("parseMessage() ok=%v reason=%q, want ok=%v reason=%q", ok, reason, tt.wantOK, tt.wantReason)
			}
			if ok && (event.UserID != "u1" || event.RecordID != "rec-1") {
				t.Errorf("unexpected event: %+v", event)
			}
		})
	}
}

func TestWorker_ShutdownBeforeRun(t *testing.T) {
	t.Parallel()

	w := newTestWorker(&fakeDebiter{}, nil)
	if err := w.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}
