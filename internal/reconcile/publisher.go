// Package reconcile queues and replays credit debits that failed after their
// humanization record was written.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/humanizer/humanizer/internal/metrics"
)

const (
	// StreamKey is the Redis stream for failed debits.
	StreamKey = "stream:debit_failures"

	// DeadLetterStreamKey is the Redis stream for debits that can never be applied.
	DeadLetterStreamKey = "stream:debit_failures:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 2 * time.Second
)

// DebitEvent is the stream payload for one failed debit.
type DebitEvent struct {
	UserID   string `json:"uid"`
	RecordID string `json:"rid"`
	FailedAt int64  `json:"t"` // Unix milliseconds
}

// Publisher enqueues failed debits to the Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

// NewPublisher creates a new debit failure publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "reconcile.publisher"),
		metrics: recorder,
		now:     time.Now,
	}
}

// Publish adds a debit event to the stream.
func (p *Publisher) Publish(ctx context.Context, event DebitEvent) (string, error) {
	if err := ValidateDebitEvent(event); err != nil {
		return "", err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	result, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return result, nil
}

// PublishDebitFailure queues a failed debit for the reconciliation worker.
func (p *Publisher) PublishDebitFailure(ctx context.Context, userID, recordID string) error {
	ctx, cancel := context.WithTimeout(ctx, PublishTimeout)
	defer cancel()

	streamID, err := p.Publish(ctx, DebitEvent{
		UserID:   userID,
		RecordID: recordID,
		FailedAt: p.now().UnixMilli(),
	})
	if err != nil {
		p.metrics.IncReconcileEvent("dropped")
		return fmt.Errorf("publish debit failure: %w", err)
	}

	p.logger.Info("debit failure queued",
		"user_id", userID,
		"record_id", recordID,
		"stream_id", streamID,
	)
	p.metrics.IncReconcileEvent("published")
	return nil
}
