//go:build integration

package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/humanizer/humanizer/internal/model"
	"github.com/humanizer/humanizer/internal/testutil"
)

// ============================================================================
// Profile Repository Integration Tests
// ============================================================================

func TestIntegrationProfileRepository_CreateAndGet(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	p := testutil.NewTestProfile(t, model.PlanFree, 10)
	if err := repo.CreateProfile(ctx, p); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}

	got, err := repo.GetProfileByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProfileByID failed: %v", err)
	}
	if got.Email != p.Email || got.Credits != 10 || got.Plan != model.PlanFree {
		t.Errorf("profile mismatch: got %+v, want %+v", got, p)
	}

	if err := repo.CreateProfile(ctx, p); !errors.Is(err, ErrProfileExists) {
		t.Errorf("Expected ErrProfileExists, got: %v", err)
	}
}

func TestIntegrationProfileRepository_GetByID_NotFound(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	_, err := repo.GetProfileByID(ctx, "nonexistent-id")
	if !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("Expected ErrProfileNotFound, got: %v", err)
	}
}

func TestIntegrationProfileRepository_GetOrCreate(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	p := testutil.NewTestProfile(t, model.PlanFree, 10)
	got, created, err := repo.GetOrCreateProfile(ctx, p)
	if err != nil {
		t.Fatalf("GetOrCreateProfile failed: %v", err)
	}
	if !created || got.ID != p.ID {
		t.Errorf("expected new profile, got created=%v %+v", created, got)
	}

	again := *p
	again.Credits = 99
	got, created, err = repo.GetOrCreateProfile(ctx, &again)
	if err != nil {
		t.Fatalf("GetOrCreateProfile (second) failed: %v", err)
	}
	if created || got.Credits != 10 {
		t.Errorf("existing profile should be returned unchanged, got created=%v credits=%d", created, got.Credits)
	}
}

func TestIntegrationProfileRepository_DebitCredit(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	p := createProfile(t, ctx, repo, model.PlanFree, 2)
	rec := createRecord(t, ctx, repo, p.ID, time.Now())

	if err := repo.DebitCredit(ctx, p.ID, rec.ID, 2); err != nil {
		t.Fatalf("DebitCredit failed: %v", err)
	}
	assertCredits(t, ctx, repo, p.ID, 1)

	// Same record again is refused and leaves the balance alone.
	if err := repo.DebitCredit(ctx, p.ID, rec.ID, 1); !errors.Is(err, ErrAlreadyDebited) {
		t.Errorf("Expected ErrAlreadyDebited, got: %v", err)
	}
	assertCredits(t, ctx, repo, p.ID, 1)
}

func TestIntegrationProfileRepository_HasDebit(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	p := createProfile(t, ctx, repo, model.PlanFree, 1)
	rec := createRecord(t, ctx, repo, p.ID, time.Now())

	charged, err := repo.HasDebit(ctx, rec.ID)
	if err != nil {
		t.Fatalf("HasDebit failed: %v", err)
	}
	if charged {
		t.Error("Expected no debit before DebitCredit")
	}

	if err := repo.DebitCredit(ctx, p.ID, rec.ID, 1); err != nil {
		t.Fatalf("DebitCredit failed: %v", err)
	}

	charged, err = repo.HasDebit(ctx, rec.ID)
	if err != nil {
		t.Fatalf("HasDebit failed: %v", err)
	}
	if !charged {
		t.Error("Expected debit to be recorded")
	}
}

func TestIntegrationProfileRepository_DebitCredit_StaleObservation(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	p := createProfile(t, ctx, repo, model.PlanFree, 3)
	rec := createRecord(t, ctx, repo, p.ID, time.Now())

	if err := repo.DebitCredit(ctx, p.ID, rec.ID, 5); !errors.Is(err, ErrCreditConflict) {
		t.Errorf("Expected ErrCreditConflict, got: %v", err)
	}
	assertCredits(t, ctx, repo, p.ID, 3)

	// The debit row rolled back with the failed update.
	if err := repo.DebitCredit(ctx, p.ID, rec.ID, 3); err != nil {
		t.Errorf("DebitCredit after conflict failed: %v", err)
	}
	assertCredits(t, ctx, repo, p.ID, 2)
}

func TestIntegrationProfileRepository_DebitCredit_NeverNegative(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	p := createProfile(t, ctx, repo, model.PlanFree, 0)
	rec := createRecord(t, ctx, repo, p.ID, time.Now())

	if err := repo.DebitCredit(ctx, p.ID, rec.ID, 0); !errors.Is(err, ErrCreditConflict) {
		t.Errorf("Expected ErrCreditConflict, got: %v", err)
	}
	assertCredits(t, ctx, repo, p.ID, 0)
}

func TestIntegrationProfileRepository_DebitCredit_Concurrent(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	const workers = 8
	p := createProfile(t, ctx, repo, model.PlanPro, 3)

	records := make([]*model.HumanizationRecord, workers)
	base := time.Now()
	for i := range records {
		records[i] = createRecord(t, ctx, repo, p.ID, base.Add(time.Duration(i)*time.Millisecond))
	}

	// Every worker observed the same balance; only one CAS can win.
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(rec *model.HumanizationRecord) {
			defer wg.Done()
			if err := repo.DebitCredit(ctx, p.ID, rec.ID, 3); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(records[i])
	}
	wg.Wait()

	if succeeded != 1 {
		t.Errorf("successful debits = %d, want 1", succeeded)
	}
	assertCredits(t, ctx, repo, p.ID, 2)
}

func TestIntegrationProfileRepository_UpdatePlan(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	p := createProfile(t, ctx, repo, model.PlanFree, 4)

	got, err := repo.UpdatePlan(ctx, p.ID, model.PlanPremium, model.UnlimitedCredits)
	if err != nil {
		t.Fatalf("UpdatePlan failed: %v", err)
	}
	if got.Plan != model.PlanPremium || got.Credits != model.UnlimitedCredits {
		t.Errorf("unexpected profile after UpdatePlan: %+v", got)
	}

	if _, err := repo.UpdatePlan(ctx, "nonexistent-id", model.PlanPro, 100); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("Expected ErrProfileNotFound, got: %v", err)
	}
}

func TestIntegrationProfileRepository_RefillCredits(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	free := createProfile(t, ctx, repo, model.PlanFree, 1)
	pro1 := createProfile(t, ctx, repo, model.PlanPro, 0)
	pro2 := createProfile(t, ctx, repo, model.PlanPro, 42)
	premium := createProfile(t, ctx, repo, model.PlanPremium, model.UnlimitedCredits)

	n, err := repo.RefillCredits(ctx, map[model.Plan]int{model.PlanPro: 100})
	if err != nil {
		t.Fatalf("RefillCredits failed: %v", err)
	}
	if n != 2 {
		t.Errorf("refilled %d profiles, want 2", n)
	}

	assertCredits(t, ctx, repo, free.ID, 1)
	assertCredits(t, ctx, repo, pro1.ID, 100)
	assertCredits(t, ctx, repo, pro2.ID, 100)
	assertCredits(t, ctx, repo, premium.ID, model.UnlimitedCredits)
}

// ============================================================================
// Helpers
// ============================================================================

func createProfile(t *testing.T, ctx context.Context, repo *Repository, plan model.Plan, credits int) *model.Profile {
	t.Helper()
	p := testutil.NewTestProfile(t, plan, credits)
	if err := repo.CreateProfile(ctx, p); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}
	return p
}

func createRecord(t *testing.T, ctx context.Context, repo *Repository, userID string, at time.Time) *model.HumanizationRecord {
	t.Helper()
	rec := testutil.NewTestRecord(t, userID, at)
	if err := repo.InsertRecord(ctx, rec); err != nil {
		t.Fatalf("InsertRecord failed: %v", err)
	}
	return rec
}

func assertCredits(t *testing.T, ctx context.Context, repo *Repository, userID string, want int) {
	t.Helper()
	p, err := repo.GetProfileByID(ctx, userID)
	if err != nil {
		t.Fatalf("GetProfileByID failed: %v", err)
	}
	if p.Credits != want {
		t.Errorf("credits for %s = %d, want %d", userID, p.Credits, want)
	}
}

// ============================================================================
// Test Environment Setup
// ============================================================================

func newRepoTestEnv(t *testing.T) (context.Context, *Repository) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	repo, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	return ctx, repo
}
