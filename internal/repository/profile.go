package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/humanizer/humanizer/internal/model"
)

// Common errors for profile repository operations.
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrProfileExists   = errors.New("profile already exists")
	// ErrAlreadyDebited means the record's credit was consumed by an earlier call.
	ErrAlreadyDebited = errors.New("record already debited")
	// ErrCreditConflict means the stored balance no longer matches the observed value,
	// or it is already zero.
	ErrCreditConflict = errors.New("credit balance changed concurrently")
)

// CreateProfile inserts a new profile into the database.
func (r *Repository) CreateProfile(ctx context.Context, p *model.Profile) error {
	query := `
		INSERT INTO profiles (id, email, credits, plan, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query,
		p.ID,
		p.Email,
		p.Credits,
		string(p.Plan),
		p.CreatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrProfileExists
		}
		return fmt.Errorf("failed to create profile: %w", err)
	}

	return nil
}

// GetProfileByID retrieves a profile by its owner ID.
// Plan values are returned as stored; callers normalize them.
func (r *Repository) GetProfileByID(ctx context.Context, id string) (*model.Profile, error) {
	query := `
		SELECT id, email, credits, plan, created_at
		FROM profiles
		WHERE id = $1
	`

	var p model.Profile
	var plan string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Email,
		&p.Credits,
		&plan,
		&p.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile by ID: %w", err)
	}
	p.Plan = model.Plan(plan)

	return &p, nil
}

// GetOrCreateProfile returns the profile for p.ID, inserting p if none exists.
func (r *Repository) GetOrCreateProfile(ctx context.Context, p *model.Profile) (*model.Profile, bool, error) {
	existing, err := r.GetProfileByID(ctx, p.ID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrProfileNotFound) {
		return nil, false, err
	}

	if err := r.CreateProfile(ctx, p); err != nil {
		// Handle race condition - another request may have created it
		if errors.Is(err, ErrProfileExists) {
			existing, err := r.GetProfileByID(ctx, p.ID)
			return existing, false, err
		}
		return nil, false, err
	}

	return p, true, nil
}

// DebitCredit consumes one credit for recordID if the balance still equals observed.
// The debit row and the decrement commit together, so a record is charged at most once.
func (r *Repository) DebitCredit(ctx context.Context, userID, recordID string, observed int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin debit: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		INSERT INTO credit_debits (record_id, user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (record_id) DO NOTHING
	`, recordID, userID, time.Now().UTC())
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrProfileNotFound
		}
		return fmt.Errorf("insert credit debit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyDebited
	}

	tag, err = tx.Exec(ctx, `
		UPDATE profiles
		SET credits = credits - 1
		WHERE id = $1 AND credits = $2 AND credits > 0
	`, userID, observed)
	if err != nil {
		return fmt.Errorf("decrement credits: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCreditConflict
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit debit: %w", err)
	}
	return nil
}

// HasDebit reports whether recordID has already been charged.
func (r *Repository) HasDebit(ctx context.Context, recordID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM credit_debits WHERE record_id = $1)`,
		recordID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check credit debit: %w", err)
	}
	return exists, nil
}

// UpdatePlan sets the plan and credit balance of a profile.
func (r *Repository) UpdatePlan(ctx context.Context, userID string, plan model.Plan, credits int) (*model.Profile, error) {
	query := `
		UPDATE profiles
		SET plan = $2, credits = $3
		WHERE id = $1
		RETURNING id, email, credits, plan, created_at
	`

	var p model.Profile
	var storedPlan string
	err := r.pool.QueryRow(ctx, query, userID, string(plan), credits).Scan(
		&p.ID,
		&p.Email,
		&p.Credits,
		&storedPlan,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to update plan: %w", err)
	}
	p.Plan = model.Plan(storedPlan)

	return &p, nil
}

// RefillCredits resets the balance of every profile on one of the given plans
// to that plan's allowance. Returns the number of profiles updated.
func (r *Repository) RefillCredits(ctx context.Context, allowances map[model.Plan]int) (int64, error) {
	if len(allowances) == 0 {
		return 0, nil
	}

	plans := make([]string, 0, len(allowances))
	for plan := range allowances {
		plans = append(plans, string(plan))
	}
	sort.Strings(plans)

	credits := make([]int64, len(plans))
	for i, plan := range plans {
		credits[i] = int64(allowances[model.Plan(plan)])
	}

	query := `
		UPDATE profiles AS p
		SET credits = a.credits
		FROM unnest($1::text[], $2::int[]) AS a(plan, credits)
		WHERE p.plan = a.plan
	`

	tag, err := r.pool.Exec(ctx, query, pq.Array(plans), pq.Array(credits))
	if err != nil {
		return 0, fmt.Errorf("failed to refill credits: %w", err)
	}

	return tag.RowsAffected(), nil
}
