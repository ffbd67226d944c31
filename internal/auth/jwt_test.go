package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/humanizer/humanizer/internal/model"
)

const testSecret = "test-secret-with-enough-entropy"

func fixedVerifier(issuer, audience string, now time.Time) *Verifier {
	v := NewVerifier(testSecret, issuer, audience)
	v.now = func() time.Time { return now }
	return v
}

func TestVerifier_RoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	v := fixedVerifier("https://id.example.com", "humanizer", now)

	raw, err := v.Sign("user-1", "user-1@example.com", time.Hour)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	tok, err := v.Verify(raw)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if tok.UserID != "user-1" || tok.Email != "user-1@example.com" {
		t.Errorf("Verify() = %+v", tok)
	}
	if !tok.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v, want %v", tok.ExpiresAt, now.Add(time.Hour))
	}
	if got := tok.TTL(now.Add(15*time.Minute), time.Minute); got != 45*time.Minute {
		t.Errorf("TTL() = %v, want 45m", got)
	}
}

func TestVerifier_Rejects(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	signer := fixedVerifier("https://id.example.com", "humanizer", now)

	sign := func(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
		t.Helper()
		raw, err := jwt.NewWithClaims(method, claims).SignedString(key)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return raw
	}
	base := func() Claims {
		return Claims{RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "https://id.example.com",
			Audience:  jwt.ClaimStrings{"humanizer"},
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		}}
	}

	tests := []struct {
		name string
		raw  func(t *testing.T) string
	}{
		{"garbage", func(*testing.T) string { return "not.a.token" }},
		{"wrong secret", func(t *testing.T) string {
			return sign(t, jwt.SigningMethodHS256, []byte("other-secret"), base())
		}},
		{"wrong algorithm", func(t *testing.T) string {
			return sign(t, jwt.SigningMethodHS512, []byte(testSecret), base())
		}},
		{"expired", func(t *testing.T) string {
			c := base()
			c.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Hour))
			return sign(t, jwt.SigningMethodHS256, []byte(testSecret), c)
		}},
		{"wrong issuer", func(t *testing.T) string {
			c := base()
			c.Issuer = "https://evil.example.com"
			return sign(t, jwt.SigningMethodHS256, []byte(testSecret), c)
		}},
		{"wrong audience", func(t *testing.T) string {
			c := base()
			c.Audience = jwt.ClaimStrings{"other"}
			return sign(t, jwt.SigningMethodHS256, []byte(testSecret), c)
		}},
		{"no subject", func(t *testing.T) string {
			c := base()
			c.Subject = "  "
			return sign(t, jwt.SigningMethodHS256, []byte(testSecret), c)
		}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := signer.Verify(tt.raw(t)); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestVerifiedToken_TTL(t *testing.T) {
	t.Parallel()

	now := time.Now()
	if got := (&VerifiedToken{}).TTL(now, time.Minute); got != time.Minute {
		t.Errorf("TTL without expiry = %v, want fallback", got)
	}
	if got := (&VerifiedToken{ExpiresAt: now.Add(-time.Second)}).TTL(now, time.Minute); got != 0 {
		t.Errorf("TTL past expiry = %v, want 0", got)
	}
}

func TestContextHelpers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if AuthFromContext(ctx) != nil || UserIDFromContext(ctx) != "" || TokenFromContext(ctx) != nil {
		t.Fatal("empty context should carry no identity")
	}

	ctx = ContextWithAuth(ctx, &model.AuthContext{UserID: "u1", Email: "u1@example.com"})
	ctx = ContextWithToken(ctx, &VerifiedToken{Raw: "raw", UserID: "u1"})
	if UserIDFromContext(ctx) != "u1" {
		t.Errorf("UserIDFromContext() = %q, want u1", UserIDFromContext(ctx))
	}
	if TokenFromContext(ctx).Raw != "raw" {
		t.Error("TokenFromContext() lost the token")
	}
}
