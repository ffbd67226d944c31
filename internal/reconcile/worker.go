package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/humanizer/humanizer/internal/metrics"
	"github.com/humanizer/humanizer/internal/service"
)

const (
	// ConsumerGroup is the Redis consumer group name.
	ConsumerGroup = "debit_reconcilers"

	// DefaultBatchSize is the max events per read.
	DefaultBatchSize = 50

	// DefaultBlockTimeout is how long to block waiting for messages.
	DefaultBlockTimeout = 5 * time.Second

	// DefaultMaxRetries is the max debit attempts per event and pass.
	DefaultMaxRetries = 3

	// DefaultClaimInterval is how often to scan pending messages.
	DefaultClaimInterval = 30 * time.Second

	// DefaultClaimIdle is the idle time before reclaiming pending messages.
	DefaultClaimIdle = 2 * time.Minute

	// DefaultMetricsInterval is how often to refresh queue depth metrics.
	DefaultMetricsInterval = 15 * time.Second
)

// Debiter applies a debit for a recorded job.
type Debiter interface {
	Debit(ctx context.Context, userID, recordID string) error
}

// decision is what happens to a stream message after processing.
type decision int

const (
	decisionAck decision = iota
	decisionDeadLetter
	decisionRetryLater
)

// Worker replays failed debits from the Redis stream.
type Worker struct {
	redis           *redis.Client
	ledger          Debiter
	logger          *slog.Logger
	metrics         metrics.Recorder
	consumerID      string
	batchSize       int
	blockTimeout    time.Duration
	maxRetries      int
	backoff         func(attempt int) time.Duration
	claimInterval   time.Duration
	claimIdle       time.Duration
	metricsInterval time.Duration
	claimStartID    string
	lastClaim       time.Time
	lastMetrics     time.Time

	started  bool
	draining bool
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
}

// NewWorker creates a new reconciliation worker.
func NewWorker(client *redis.Client, ledger Debiter, logger *slog.Logger, consumerID string, recorder metrics.Recorder) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Worker{
		redis:           client,
		ledger:          ledger,
		logger:          logger.With("component", "reconcile.worker", "consumer_id", consumerID),
		metrics:         recorder,
		consumerID:      consumerID,
		batchSize:       DefaultBatchSize,
		blockTimeout:    DefaultBlockTimeout,
		maxRetries:      DefaultMaxRetries,
		backoff:         exponentialBackoff,
		claimInterval:   DefaultClaimInterval,
		claimIdle:       DefaultClaimIdle,
		metricsInterval: DefaultMetricsInterval,
		claimStartID:    "0-0",
	}
}

func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(1<<attempt) * time.Second
}

// Run starts the worker loop. Blocks until context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("worker already started")
	}
	w.started = true
	w.done = make(chan struct{})
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	defer close(w.done)

	if err := w.ensureConsumerGroup(ctx); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}

	w.logger.Info("reconcile worker started")

	for {
		w.mu.Lock()
		draining := w.draining
		w.mu.Unlock()

		if draining {
			w.logger.Info("reconcile worker draining, stopping")
			return nil
		}

		select {
		case <-ctx.Done():
			w.logger.Info("reconcile worker stopping")
			return ctx.Err()
		default:
			if err := w.processOnce(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				w.logger.Error("process error", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

// Shutdown gracefully stops the worker, completing the in-flight event.
// It implements server.ShutdownFunc for integration with graceful shutdown.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	w.draining = true
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	w.logger.Info("reconcile worker shutdown initiated")

	if cancel != nil {
		cancel()
	}

	if done != nil {
		select {
		case <-done:
			w.logger.Info("reconcile worker shutdown complete")
			return nil
		case <-ctx.Done():
			w.logger.Warn("reconcile worker shutdown timed out")
			return ctx.Err()
		}
	}
	return nil
}

// ensureConsumerGroup creates the consumer group if it doesn't exist.
func (w *Worker) ensureConsumerGroup(ctx context.Context) error {
	err := w.redis.XGroupCreateMkStream(ctx, StreamKey, ConsumerGroup, "0").Err()
	if err != nil && !isConsumerGroupExistsError(err) {
		return err
	}
	return nil
}

// processOnce reads and replays a single batch.
func (w *Worker) processOnce(ctx context.Context) error {
	w.maybeUpdateQueueDepth(ctx)

	claimed, err := w.maybeClaimPending(ctx)
	if err != nil {
		w.logger.Warn("failed to claim pending messages", "error", err)
	}

	messages := claimed
	if len(messages) == 0 {
		messages, err = w.readBatch(ctx)
		if err != nil {
			return err
		}
	}

	ackIDs := make([]string, 0, len(messages))
	for _, msg := range messages {
		event, reason, detail, ok := parseMessage(msg)
		if !ok {
			w.deadLetterMessage(ctx, msg, reason, detail)
			ackIDs = append(ackIDs, msg.ID)
			continue
		}

		d, err := w.apply(ctx, event)
		switch d {
		case decisionAck:
			ackIDs = append(ackIDs, msg.ID)
		case decisionDeadLetter:
			w.deadLetterMessage(ctx, msg, "unrecoverable", err.Error())
			ackIDs = append(ackIDs, msg.ID)
		case decisionRetryLater:
			// Left pending; XAUTOCLAIM hands it back after claimIdle.
			if ctxErr := ctx.Err(); ctxErr != nil {
				_ = w.ackMessages(context.WithoutCancel(ctx), ackIDs)
				return ctxErr
			}
		}
	}

	return w.ackMessages(ctx, ackIDs)
}

// apply replays one debit with bounded retries.
func (w *Worker) apply(ctx context.Context, event DebitEvent) (decision, error) {
	var lastErr error

	for attempt := 1; attempt <= w.maxRetries; attempt++ {
		err := w.ledger.Debit(ctx, event.UserID, event.RecordID)
		if err == nil {
			w.logger.Info("debit reconciled",
				"user_id", event.UserID,
				"record_id", event.RecordID,
				"lag_ms", time.Since(time.UnixMilli(event.FailedAt)).Milliseconds(),
			)
			w.metrics.IncReconcileEvent("debited")
			return decisionAck, nil
		}
		if isPermanent(err) {
			w.logger.Warn("debit cannot be reconciled",
				"user_id", event.UserID,
				"record_id", event.RecordID,
				"error", err,
			)
			w.metrics.IncReconcileEvent("skipped")
			return decisionDeadLetter, err
		}

		lastErr = err
		backoff := w.backoff(attempt)
		w.logger.Warn("debit replay failed, retrying",
			"record_id", event.RecordID,
			"attempt", attempt,
			"backoff_seconds", backoff.Seconds(),
			"error", err,
		)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return decisionRetryLater, ctx.Err()
		case <-timer.C:
		}
	}

	w.metrics.IncReconcileEvent("failed")
	return decisionRetryLater, lastErr
}

// isPermanent reports whether replaying the debit can never succeed.
func isPermanent(err error) bool {
	return errors.Is(err, service.ErrCreditsExhausted) ||
		errors.Is(err, service.ErrProfileNotFound) ||
		errors.Is(err, service.ErrMalformedProfile)
}

// parseMessage decodes a stream message. When ok is false, reason and detail
// describe why the message is poison.
func parseMessage(msg redis.XMessage) (event DebitEvent, reason, detail string, ok bool) {
	payload, isString := msg.Values["payload"].(string)
	if !isString {
		return DebitEvent{}, "invalid_format", "payload field missing or not a string", false
	}
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return DebitEvent{}, "unmarshal_error", err.Error(), false
	}
	if err := ValidateDebitEvent(event); err != nil {
		return DebitEvent{}, "validation_error", err.Error(), false
	}
	return event, "", "", true
}

// maybeClaimPending checks for stuck pending messages and reclaims them.
func (w *Worker) maybeClaimPending(ctx context.Context) ([]redis.XMessage, error) {
	if w.claimInterval <= 0 || w.claimIdle <= 0 {
		return nil, nil
	}
	if !w.lastClaim.IsZero() && time.Since(w.lastClaim) < w.claimInterval {
		return nil, nil
	}

	w.lastClaim = time.Now()
	messages, start, err := w.redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   StreamKey,
		Group:    ConsumerGroup,
		Consumer: w.consumerID,
		MinIdle:  w.claimIdle,
		Start:    w.claimStartID,
		Count:    int64(w.batchSize),
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("xautoclaim: %w", err)
	}
	if start != "" {
		w.claimStartID = start
	}
	return messages, nil
}

func (w *Worker) maybeUpdateQueueDepth(ctx context.Context) {
	if w.metricsInterval <= 0 {
		return
	}
	if !w.lastMetrics.IsZero() && time.Since(w.lastMetrics) < w.metricsInterval {
		return
	}
	w.lastMetrics = time.Now()

	groups, err := w.redis.XInfoGroups(ctx, StreamKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		w.logger.Warn("failed to read stream group info", "error", err)
		return
	}
	for _, group := range groups {
		if group.Name == ConsumerGroup {
			w.metrics.SetReconcileQueueDepth(group.Pending + group.Lag)
			return
		}
	}
}

// SetBlockTimeout overrides the default blocking timeout.
func (w *Worker) SetBlockTimeout(timeout time.Duration) {
	if timeout > 0 {
		w.blockTimeout = timeout
	}
}

// SetClaimIdle overrides the default pending idle threshold.
func (w *Worker) SetClaimIdle(idle time.Duration) {
	if idle > 0 {
		w.claimIdle = idle
	}
}

// readBatch reads messages from the stream using XREADGROUP.
func (w *Worker) readBatch(ctx context.Context) ([]redis.XMessage, error) {
	streams, err := w.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: w.consumerID,
		Streams:  []string{StreamKey, ">"},
		Count:    int64(w.batchSize),
		Block:    w.blockTimeout,
	}).Result()

	if errors.Is(err, redis.Nil) || len(streams) == 0 {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}

	return streams[0].Messages, nil
}

// deadLetterMessage moves a message to the dead-letter queue.
func (w *Worker) deadLetterMessage(ctx context.Context, msg redis.XMessage, reason, detail string) {
	w.logger.Warn("dead-lettering debit event",
		"message_id", msg.ID,
		"reason", reason,
		"detail", detail,
	)

	_, err := w.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: DeadLetterStreamKey,
		MaxLen: 10000,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"original_id":      msg.ID,
			"original_stream":  StreamKey,
			"reason":           reason,
			"detail":           detail,
			"payload":          msg.Values["payload"],
			"dead_lettered_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Result()
	if err != nil {
		w.logger.Error("failed to write to dead-letter queue",
			"message_id", msg.ID,
			"error", err,
		)
	}

	w.metrics.IncReconcileEvent("dead_lettered")
}

// ackMessages acknowledges processed messages.
func (w *Worker) ackMessages(ctx context.Context, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}

	if err := w.redis.XAck(ctx, StreamKey, ConsumerGroup, messageIDs...).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}

// isConsumerGroupExistsError checks if the error is "BUSYGROUP" (group exists).
func isConsumerGroupExistsError(err error) bool {
	return err != nil && (err.Error() == "BUSYGROUP Consumer Group name already exists" ||
		err.Error() == "BUSYGROUP")
}
