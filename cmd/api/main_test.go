package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/humanizer/humanizer/internal/auth"
	"github.com/humanizer/humanizer/internal/cache"
	"github.com/humanizer/humanizer/internal/config"
	"github.com/humanizer/humanizer/internal/handler"
	"github.com/humanizer/humanizer/internal/model"
	"github.com/humanizer/humanizer/internal/service"
)

const testSecret = "router-test-secret"

type pingOK struct{}

func (pingOK) Ping(context.Context) error { return nil }

type allowAll struct{}

func (allowAll) CheckUserRateLimit(context.Context, string, int, int) (*cache.RateLimitResult, error) {
	return &cache.RateLimitResult{Allowed: true, Remaining: 1, ResetAt: time.Now()}, nil
}

func (allowAll) CheckIPRateLimit(context.Context, string, int, int) (*cache.RateLimitResult, error) {
	return &cache.RateLimitResult{Allowed: true, Remaining: 1, ResetAt: time.Now()}, nil
}

type noRevocations struct{}

func (noRevocations) IsTokenRevoked(context.Context, string) (bool, error) { return false, nil }
func (noRevocations) RevokeToken(context.Context, string, time.Duration) error { return nil }

type stubProfiles struct{}

func (stubProfiles) GetProfile(_ context.Context, userID string) (*model.Profile, error) {
	return &model.Profile{ID: userID, Email: "a@example.com", Plan: model.PlanFree, Credits: 10}, nil
}

func (s stubProfiles) CreateProfile(ctx context.Context, userID, _ string) (*model.Profile, bool, error) {
	p, err := s.GetProfile(ctx, userID)
	return p, true, err
}

func (stubProfiles) ChangePlan(_ context.Context, userID string, plan model.Plan) (*model.Profile, error) {
	return &model.Profile{ID: userID, Plan: plan, Credits: 100}, nil
}

func (stubProfiles) RefillCredits(context.Context) (int64, error) { return 2, nil }

type stubHumanizer struct{}

func (stubHumanizer) Humanize(context.Context, service.HumanizeInput) (*service.HumanizeResult, error) {
	return nil, errors.New("not used")
}

type stubHistory struct{}

func (stubHistory) ListForUser(context.Context, string) ([]*model.HumanizationRecord, error) {
	return nil, nil
}

func newTestRouter(t *testing.T, adminHash string) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		AppEnv:             "test",
		MaxRequestBodySize: 1 << 20,
		IPRateLimitRPS:     20,
		IPRateLimitBurst:   40,
		AdminTokenHash:     adminHash,
	}
	return setupRouter(routerDeps{
		cfg:         cfg,
		logger:      logger,
		health:      handler.NewHealthHandler(pingOK{}, pingOK{}, logger),
		humanize:    handler.NewHumanizeHandler(stubHumanizer{}, logger),
		history:     handler.NewHistoryHandler(stubHistory{}, logger),
		profile:     handler.NewProfileHandler(stubProfiles{}, noRevocations{}, logger),
		admin:       handler.NewAdminHandler(stubProfiles{}, logger),
		verifier:    auth.NewVerifier(testSecret, "", ""),
		revocations: noRevocations{},
		limiter:     allowAll{},
		gatherer:    prometheus.NewRegistry(),
	})
}

func TestRouter(t *testing.T) {
	t.Parallel()

	token, err := auth.NewVerifier(testSecret, "", "").Sign("user-1", "a@example.com", time.Hour)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	admin, err := auth.GenerateAdminToken()
	if err != nil {
		t.Fatalf("GenerateAdminToken() error = %v", err)
	}

	tests := []struct {
		name       string
		adminHash  string
		method     string
		path       string
		bearer     string
		wantStatus int
	}{
		{"liveness", "", http.MethodGet, "/healthz", "", http.StatusOK},
		{"readiness", "", http.MethodGet, "/readyz", "", http.StatusOK},
		{"metrics", "", http.MethodGet, "/metrics", "", http.StatusOK},
		{"profile requires auth", "", http.MethodGet, "/api/v1/profile", "", http.StatusUnauthorized},
		{"profile with token", "", http.MethodGet, "/api/v1/profile", token, http.StatusOK},
		{"history with token", "", http.MethodGet, "/api/v1/history", token, http.StatusOK},
		{"sign out", "", http.MethodDelete, "/api/v1/session", token, http.StatusNoContent},
		{"wrong method", "", http.MethodPatch, "/api/v1/profile", token, http.StatusMethodNotAllowed},
		{"unknown path", "", http.MethodGet, "/nope", "", http.StatusNotFound},
		{"admin disabled", "", http.MethodPost, "/api/v1/admin/credits/refill", admin.Plaintext, http.StatusNotFound},
		{"admin rejects user token", admin.Hash, http.MethodPost, "/api/v1/admin/credits/refill", token, http.StatusUnauthorized},
		{"admin refill", admin.Hash, http.MethodPost, "/api/v1/admin/credits/refill", admin.Plaintext, http.StatusOK},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := newTestRouter(t, tt.adminHash)

			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tt.bearer)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("%s %s status = %d, want %d (body %s)", tt.method, tt.path, rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestRedactURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"postgres://user:secret@db:5432/humanizer", "postgres://user@db:5432/humanizer"},
		{"redis://:secret@cache:6379/0", "redis://redacted@cache:6379/0"},
		{"redis://cache:6379", "redis://cache:6379"},
	}

	for _, tt := range tests {
		if got := redactURL(tt.in); got != tt.want {
			t.Errorf("redactURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeError(t *testing.T) {
	t.Parallel()

	dsn := "postgres://user:secret@db:5432/humanizer"
	err := errors.New("dial " + dsn + " failed: password=hunter2 rejected")

	got := sanitizeError(err, dsn)
	if strings.Contains(got, "secret") || strings.Contains(got, "hunter2") {
		t.Errorf("sanitizeError() leaked a secret: %q", got)
	}
	if !strings.Contains(got, "postgres://user@db:5432/humanizer") {
		t.Errorf("sanitizeError() = %q, want the redacted URL", got)
	}
	if sanitizeError(nil) != "" {
		t.Error("sanitizeError(nil) should be empty")
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
	} {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
