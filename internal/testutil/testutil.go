package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/humanizer/humanizer/internal/model"
)

// migrations lists schema versions in apply order.
var migrations = []string{
	"000001_profiles",
	"000002_humanized_texts",
	"000003_credit_debits",
}

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 420420

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema drops every table and reapplies all up migrations.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for i := len(migrations) - 1; i >= 0; i-- {
		if err := applyMigration(ctx, pool, migrations[i]+".down.sql"); err != nil {
			return err
		}
	}
	for _, name := range migrations {
		if err := applyMigration(ctx, pool, name+".up.sql"); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(ctx context.Context, pool *pgxpool.Pool, file string) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}

	sql, err := os.ReadFile(filepath.Join(root, "migrations", file))
	if err != nil {
		return fmt.Errorf("read migration %s: %w", file, err)
	}
	if _, err := pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("apply migration %s: %w", file, err)
	}
	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestProfile creates a profile on plan with the given balance.
func NewTestProfile(t testing.TB, plan model.Plan, credits int) *model.Profile {
	t.Helper()
	id := UniqueID("user")
	return &model.Profile{
		ID:        id,
		Email:     id + "@example.com",
		Credits:   credits,
		Plan:      plan,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

// NewTestRecord creates a record owned by userID at createdAt.
func NewTestRecord(t testing.TB, userID string, createdAt time.Time) *model.HumanizationRecord {
	t.Helper()
	return &model.HumanizationRecord{
		ID:            ulid.Make().String(),
		UserID:        userID,
		OriginalText:  "Original text written at " + createdAt.Format(time.RFC3339Nano),
		HumanizedText: "Humanized text",
		CreatedAt:     createdAt.UTC().Truncate(time.Microsecond),
	}
}

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
