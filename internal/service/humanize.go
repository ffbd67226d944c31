package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/humanizer/humanizer/internal/metrics"
	"github.com/humanizer/humanizer/internal/model"
)

// DefaultMinTextLength is the shortest text, in characters, the provider accepts.
const DefaultMinTextLength = 50

// lockReleaseTimeout bounds the in-flight lock release after the request ends.
const lockReleaseTimeout = 2 * time.Second

// Submitter starts a rewrite job at the provider.
type Submitter interface {
	Submit(ctx context.Context, text string, opts model.RewriteOptions) (string, error)
}

// JobPoller waits for a submitted job to finish.
type JobPoller interface {
	Poll(ctx context.Context, documentID string) (string, error)
}

// AllowanceLedger checks and consumes credits.
type AllowanceLedger interface {
	CheckAllowance(ctx context.Context, userID string) (model.Allowance, error)
	Debit(ctx context.Context, userID, recordID string) error
}

// HistoryRecorder persists results.
type HistoryRecorder interface {
	Record(ctx context.Context, userID, original, humanized string) (*model.HumanizationRecord, error)
}

// InflightLocker serializes humanize jobs per user.
type InflightLocker interface {
	AcquireInflight(ctx context.Context, userID string, ttl time.Duration) (token string, acquired bool, err error)
	ReleaseInflight(ctx context.Context, userID, token string) error
}

// DebitReconciler receives debits that failed after their record was written.
type DebitReconciler interface {
	PublishDebitFailure(ctx context.Context, userID, recordID string) error
}

// HumanizeConfig configures a HumanizeService.
type HumanizeConfig struct {
	MinTextLength int
	// Locker enables one in-flight job per user when set.
	Locker  InflightLocker
	LockTTL time.Duration
	// Timeout bounds the whole workflow. It must stay below the server write
	// timeout so an overrun ends before anything is recorded. Zero disables it.
	Timeout time.Duration
	// Reconciler receives failed debits when set.
	Reconciler DebitReconciler
	Logger     *slog.Logger
	Metrics    metrics.Recorder
}

// HumanizeService runs the submit, poll, record and debit workflow.
type HumanizeService struct {
	ledger     AllowanceLedger
	submitter  Submitter
	poller     JobPoller
	recorder   HistoryRecorder
	locker     InflightLocker
	lockTTL    time.Duration
	timeout    time.Duration
	reconciler DebitReconciler
	minLength  int
	logger     *slog.Logger
	metrics    metrics.Recorder
}

// NewHumanizeService creates a new HumanizeService.
func NewHumanizeService(ledger AllowanceLedger, submitter Submitter, poller JobPoller, recorder HistoryRecorder, cfg HumanizeConfig) *HumanizeService {
	if cfg.MinTextLength <= 0 {
		cfg.MinTextLength = DefaultMinTextLength
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 3 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}
	return &HumanizeService{
		ledger:     ledger,
		submitter:  submitter,
		poller:     poller,
		recorder:   recorder,
		locker:     cfg.Locker,
		lockTTL:    cfg.LockTTL,
		timeout:    cfg.Timeout,
		reconciler: cfg.Reconciler,
		minLength:  cfg.MinTextLength,
		logger:     cfg.Logger.With("component", "humanize"),
		metrics:    cfg.Metrics,
	}
}

// HumanizeInput defines input for a humanize request.
type HumanizeInput struct {
	UserID  string
	Text    string
	Options model.RewriteOptions
}

// HumanizeResult is the outcome of a successful workflow.
type HumanizeResult struct {
	Text   string
	Record *model.HumanizationRecord
	// Remaining is the balance after this job as observed by the workflow.
	Remaining int
	Unlimited bool
	// DebitPending is set when the credit could not be charged and was queued
	// for reconciliation.
	DebitPending bool
}

// Humanize rewrites input.Text through the provider and records the result.
// No credit is consumed and no record is written unless the provider returns output.
func (s *HumanizeService) Humanize(ctx context.Context, input HumanizeInput) (result *HumanizeResult, err error) {
	start := time.Now()
	defer func() {
		s.metrics.IncHumanizeOutcome(outcomeOf(err))
		s.metrics.ObserveHumanizeDuration(time.Since(start))
	}()

	opts, err := s.validate(input)
	if err != nil {
		return nil, err
	}
	logger := s.logger.With("user_id", input.UserID)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if s.locker != nil {
		release, err := s.acquire(ctx, input.UserID)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	// CreditsChecked
	allowance, err := s.ledger.CheckAllowance(ctx, input.UserID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) || errors.Is(err, ErrMalformedProfile) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrHumanizationFailed, err)
	}
	if !allowance.Allowed {
		logger.Info("humanize refused", "reason", "insufficient_credits")
		return nil, ErrInsufficientCredits
	}

	// Submitted
	documentID, err := s.submitter.Submit(ctx, input.Text, opts)
	if err != nil {
		logger.Warn("submit failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrHumanizationFailed, err)
	}
	logger = logger.With("document_id", documentID)

	// Polling
	output, err := s.poller.Poll(ctx, documentID)
	if err != nil {
		if isCanceled(err) {
			logger.Info("humanize canceled while polling")
		} else {
			logger.Warn("poll failed", "error", err)
		}
		return nil, fmt.Errorf("%w: %w", ErrHumanizationFailed, err)
	}
	if err := ctx.Err(); err != nil {
		logger.Info("humanize canceled before recording")
		return nil, fmt.Errorf("%w: %w", ErrHumanizationFailed, err)
	}

	// Output exists; the record and debit must not be abandoned with the request.
	writeCtx := context.WithoutCancel(ctx)

	// Recorded
	rec, err := s.recorder.Record(writeCtx, input.UserID, input.Text, output)
	if err != nil {
		logger.Error("record failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrHumanizationFailed, err)
	}
	s.metrics.IncRecordCreated()

	result = &HumanizeResult{
		Text:      output,
		Record:    rec,
		Remaining: allowance.Remaining,
		Unlimited: allowance.Unlimited,
	}

	if err := s.ledger.Debit(writeCtx, input.UserID, rec.ID); err != nil {
		s.metrics.IncDebitFailure()
		logger.Error("debit failed, queued for reconciliation",
			"record_id", rec.ID,
			"error", err,
		)
		s.queueReconciliation(writeCtx, logger, input.UserID, rec.ID)
		result.DebitPending = true
		return result, nil
	}

	if !allowance.Unlimited {
		result.Remaining = max(allowance.Remaining-1, 0)
	}
	logger.Info("humanize completed", "record_id", rec.ID)
	return result, nil
}

func (s *HumanizeService) validate(input HumanizeInput) (model.RewriteOptions, error) {
	if strings.TrimSpace(input.UserID) == "" {
		return model.RewriteOptions{}, fmt.Errorf("%w: user id is required", ErrValidation)
	}

	text := strings.TrimSpace(input.Text)
	if text == "" {
		return model.RewriteOptions{}, fmt.Errorf("%w: text is required", ErrValidation)
	}
	if n := utf8.RuneCountInString(text); n < s.minLength {
		return model.RewriteOptions{}, fmt.Errorf("%w: text must be at least %d characters, got %d", ErrValidation, s.minLength, n)
	}

	opts := input.Options.WithDefaults()
	if err := opts.Validate(); err != nil {
		return model.RewriteOptions{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return opts, nil
}

// acquire takes the user's in-flight lock. A lock store outage does not block
// the workflow.
func (s *HumanizeService) acquire(ctx context.Context, userID string) (func(), error) {
	token, acquired, err := s.locker.AcquireInflight(ctx, userID, s.lockTTL)
	if err != nil {
		s.logger.Warn("in-flight lock unavailable, continuing without it",
			"user_id", userID,
			"error", err,
		)
		return func() {}, nil
	}
	if !acquired {
		return nil, ErrJobInProgress
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lockReleaseTimeout)
		defer cancel()
		if err := s.locker.ReleaseInflight(releaseCtx, userID, token); err != nil {
			s.logger.Warn("failed to release in-flight lock", "user_id", userID, "error", err)
		}
	}, nil
}

func (s *HumanizeService) queueReconciliation(ctx context.Context, logger *slog.Logger, userID, recordID string) {
	if s.reconciler == nil {
		return
	}
	if err := s.reconciler.PublishDebitFailure(ctx, userID, recordID); err != nil {
		logger.Error("failed to queue debit reconciliation",
			"record_id", recordID,
			"error", err,
		)
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrValidation):
		return metrics.OutcomeValidation
	case errors.Is(err, ErrInsufficientCredits):
		return metrics.OutcomeInsufficientCredits
	case errors.Is(err, ErrJobInProgress):
		return metrics.OutcomeInProgress
	case isCanceled(err):
		return metrics.OutcomeCanceled
	default:
		return metrics.OutcomeFailed
	}
}
