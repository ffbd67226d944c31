package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/humanizer/humanizer/internal/metrics"
	"github.com/humanizer/humanizer/internal/model"
)

// Default poll budget.
const (
	DefaultPollAttempts = 6
	DefaultPollInterval = 10 * time.Second
)

// StatusChecker queries the status of a provider document once.
type StatusChecker interface {
	PollOnce(ctx context.Context, documentID string) (*model.RewriteJob, error)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// PollerConfig configures a Poller.
type PollerConfig struct {
	Attempts int
	Interval time.Duration
	Sleep    Sleeper
	Logger   *slog.Logger
	Metrics  metrics.Recorder
}

// Poller waits for a provider document to finish with a fixed retry budget.
type Poller struct {
	checker  StatusChecker
	attempts int
	interval time.Duration
	sleep    Sleeper
	logger   *slog.Logger
	metrics  metrics.Recorder
}

// NewPoller creates a new Poller.
func NewPoller(checker StatusChecker, cfg PollerConfig) *Poller {
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultPollAttempts
	}
	if cfg.Interval < 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.Sleep == nil {
		cfg.Sleep = SleepContext
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}
	return &Poller{
		checker:  checker,
		attempts: cfg.Attempts,
		interval: cfg.Interval,
		sleep:    cfg.Sleep,
		logger:   cfg.Logger.With("component", "poller"),
		metrics:  cfg.Metrics,
	}
}

// Poll waits for documentID to finish and returns its output.
// Each attempt is preceded by the poll interval. Unreadable or failed status
// queries count as misses and are retried while the budget lasts.
func (p *Poller) Poll(ctx context.Context, documentID string) (string, error) {
	var lastErr error
	attempt := 0
	defer func() { p.metrics.ObservePollAttempts(attempt) }()

	for attempt < p.attempts {
		if err := p.sleep(ctx, p.interval); err != nil {
			return "", err
		}
		attempt++

		job, err := p.checker.PollOnce(ctx, documentID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			lastErr = err
			p.logger.Debug("poll miss",
				"document_id", documentID,
				"attempt", attempt,
				"error", err,
			)
			continue
		}
		lastErr = nil

		switch job.Status {
		case model.JobDone:
			p.logger.Debug("document done", "document_id", documentID, "attempt", attempt)
			return job.Output, nil
		case model.JobFailed:
			return "", fmt.Errorf("%w: document %s", ErrJobFailed, documentID)
		}
	}

	if lastErr != nil {
		return "", lastErr
	}
	return "", fmt.Errorf("%w after %d attempts", ErrJobTimedOut, attempt)
}

// isCanceled reports whether err stems from context cancellation or deadline.
func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
