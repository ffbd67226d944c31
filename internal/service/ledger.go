package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/humanizer/humanizer/internal/model"
	"github.com/humanizer/humanizer/internal/repository"
)

// maxDebitAttempts bounds compare-and-swap retries when the balance changes
// between the read and the conditional update.
const maxDebitAttempts = 3

// ProfileStore is the persistence the ledger needs.
type ProfileStore interface {
	GetProfileByID(ctx context.Context, id string) (*model.Profile, error)
	GetOrCreateProfile(ctx context.Context, p *model.Profile) (*model.Profile, bool, error)
	DebitCredit(ctx context.Context, userID, recordID string, observed int) error
	HasDebit(ctx context.Context, recordID string) (bool, error)
	UpdatePlan(ctx context.Context, userID string, plan model.Plan, credits int) (*model.Profile, error)
	RefillCredits(ctx context.Context, allowances map[model.Plan]int) (int64, error)
}

// Ledger reads and writes user allowances.
type Ledger struct {
	store  ProfileStore
	logger *slog.Logger
	now    func() time.Time
}

// NewLedger creates a new Ledger.
func NewLedger(store ProfileStore, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		store:  store,
		logger: logger.With("component", "ledger"),
		now:    time.Now,
	}
}

// CheckAllowance reports whether userID may run another humanization.
func (l *Ledger) CheckAllowance(ctx context.Context, userID string) (model.Allowance, error) {
	p, err := l.GetProfile(ctx, userID)
	if err != nil {
		return model.Allowance{}, err
	}

	allowance, ok := p.Allowance()
	if !ok {
		l.logger.Warn("malformed profile",
			"user_id", userID,
			"plan", string(p.Plan),
			"credits", p.Credits,
		)
		return model.Allowance{}, ErrMalformedProfile
	}
	return allowance, nil
}

// Debit consumes one credit for the given record. Premium profiles are never
// charged, and a record that was already charged is not charged again.
func (l *Ledger) Debit(ctx context.Context, userID, recordID string) error {
	for attempt := 1; attempt <= maxDebitAttempts; attempt++ {
		p, err := l.GetProfile(ctx, userID)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrLedgerWriteFailed, err)
		}

		allowance, ok := p.Allowance()
		if !ok {
			return fmt.Errorf("%w: %w", ErrLedgerWriteFailed, ErrMalformedProfile)
		}
		if allowance.Unlimited {
			return nil
		}
		if allowance.Remaining <= 0 {
			// The balance may be empty because this record took the last credit.
			charged, err := l.store.HasDebit(ctx, recordID)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrLedgerWriteFailed, err)
			}
			if charged {
				l.logger.Debug("record already debited", "user_id", userID, "record_id", recordID)
				return nil
			}
			return fmt.Errorf("%w: %w", ErrLedgerWriteFailed, ErrCreditsExhausted)
		}

		err = l.store.DebitCredit(ctx, userID, recordID, p.Credits)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, repository.ErrAlreadyDebited):
			l.logger.Debug("record already debited", "user_id", userID, "record_id", recordID)
			return nil
		case errors.Is(err, repository.ErrCreditConflict):
			l.logger.Debug("credit balance changed, retrying debit",
				"user_id", userID,
				"attempt", attempt,
			)
			continue
		case errors.Is(err, repository.ErrProfileNotFound):
			return fmt.Errorf("%w: %w", ErrLedgerWriteFailed, ErrProfileNotFound)
		default:
			return fmt.Errorf("%w: %w", ErrLedgerWriteFailed, err)
		}
	}

	return fmt.Errorf("%w: %w", ErrLedgerWriteFailed, repository.ErrCreditConflict)
}

// GetProfile returns the profile of userID.
func (l *Ledger) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	p, err := l.store.GetProfileByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// CreateProfile registers userID on the free plan. Registering an existing
// user returns the stored profile unchanged; created reports which case applied.
func (l *Ledger) CreateProfile(ctx context.Context, userID, email string) (p *model.Profile, created bool, err error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, false, fmt.Errorf("%w: user id is required", ErrValidation)
	}

	p, created, err = l.store.GetOrCreateProfile(ctx, model.NewProfile(userID, strings.TrimSpace(email), l.now()))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create profile: %w", err)
	}
	if created {
		l.logger.Info("profile created", "user_id", userID, "plan", string(p.Plan))
	}
	return p, created, nil
}

// ChangePlan moves userID to plan and resets the balance to the plan's allowance.
func (l *Ledger) ChangePlan(ctx context.Context, userID string, plan model.Plan) (*model.Profile, error) {
	normalized, ok := model.ParsePlan(string(plan))
	if !ok {
		return nil, fmt.Errorf("%w: unknown plan %q", ErrValidation, plan)
	}

	p, err := l.store.UpdatePlan(ctx, userID, normalized, normalized.InitialCredits())
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to change plan: %w", err)
	}

	l.logger.Info("plan changed",
		"user_id", userID,
		"plan", string(normalized),
		"credits", p.Credits,
	)
	return p, nil
}

// RefillCredits resets every profile on a refillable plan to its allowance.
func (l *Ledger) RefillCredits(ctx context.Context) (int64, error) {
	allowances := make(map[model.Plan]int)
	for plan, cfg := range model.PlanConfigs {
		if cfg.Refillable {
			allowances[plan] = cfg.Credits
		}
	}

	n, err := l.store.RefillCredits(ctx, allowances)
	if err != nil {
		return 0, fmt.Errorf("failed to refill credits: %w", err)
	}

	l.logger.Info("credits refilled", "profiles", n)
	return n, nil
}
