package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/humanizer/humanizer/internal/auth"
	"github.com/humanizer/humanizer/internal/model"
)

const (
	// minAdminAuthDuration pads operator token checks to a constant time.
	minAdminAuthDuration = 200 * time.Millisecond
	// AdminUserID is the AuthContext user id of operator requests.
	AdminUserID = "admin"
)

// TokenVerifier validates identity provider bearer tokens.
type TokenVerifier interface {
	Verify(raw string) (*auth.VerifiedToken, error)
}

// RevocationChecker reports tokens revoked by sign-out.
type RevocationChecker interface {
	IsTokenRevoked(ctx context.Context, tokenHash string) (bool, error)
}

// AuthConfig holds configuration for the user auth middleware.
type AuthConfig struct {
	Logger   *slog.Logger
	Verifier TokenVerifier
	// Revocations is optional; nil disables the sign-out check.
	Revocations RevocationChecker
}

// Auth authenticates end-user requests with an identity provider token and
// injects the AuthContext. The user id always comes from the verified token.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			raw := bearerToken(r)
			if raw == "" {
				logAuthFailure(cfg.Logger, r, "missing_token")
				writeAuthError(w)
				return
			}

			tok, err := cfg.Verifier.Verify(raw)
			if err != nil {
				logAuthFailure(cfg.Logger, r, "invalid_token")
				writeAuthError(w)
				return
			}

			if cfg.Revocations != nil {
				revoked, err := cfg.Revocations.IsTokenRevoked(ctx, auth.QuickHash(raw))
				if err != nil {
					// Fail open: revocation is best effort and tokens expire on their own.
					cfg.Logger.Error("revocation check failed",
						slog.String("error", err.Error()),
						slog.String("request_id", GetRequestID(ctx)),
					)
				} else if revoked {
					logAuthFailure(cfg.Logger, r, "revoked_token")
					writeAuthError(w)
					return
				}
			}

			cfg.Logger.Debug("authentication successful",
				slog.String("user_id", tok.UserID),
				slog.String("endpoint", r.Method+" "+r.URL.Path),
				slog.String("request_id", GetRequestID(ctx)),
			)

			ctx = auth.ContextWithAuth(ctx, &model.AuthContext{UserID: tok.UserID, Email: tok.Email})
			ctx = auth.ContextWithToken(ctx, tok)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminAuthConfig holds configuration for the operator auth middleware.
type AdminAuthConfig struct {
	Logger *slog.Logger
	// TokenHash is the Argon2id hash of the operator token.
	TokenHash string
}

// AdminAuth authenticates operator requests against a single hashed token.
func AdminAuth(cfg AdminAuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			defer func() {
				if elapsed := time.Since(start); elapsed < minAdminAuthDuration {
					time.Sleep(minAdminAuthDuration - elapsed)
				}
			}()

			raw := bearerToken(r)
			if !auth.IsAdminTokenFormat(raw) {
				logAuthFailure(cfg.Logger, r, "invalid_admin_token")
				writeAuthError(w)
				return
			}

			ok, err := auth.VerifyToken(raw, cfg.TokenHash)
			if err != nil {
				cfg.Logger.Error("admin token hash unusable",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
			}
			if !ok {
				logAuthFailure(cfg.Logger, r, "invalid_admin_token")
				writeAuthError(w)
				return
			}

			cfg.Logger.Info("admin request authenticated",
				slog.String("endpoint", r.Method+" "+r.URL.Path),
				slog.String("request_id", GetRequestID(r.Context())),
			)
			ctx := auth.ContextWithAuth(r.Context(), &model.AuthContext{UserID: AdminUserID, Admin: true})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func logAuthFailure(logger *slog.Logger, r *http.Request, reason string) {
	logger.Warn("authentication failed",
		slog.String("reason", reason),
		slog.String("ip", r.RemoteAddr),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.String("request_id", GetRequestID(r.Context())),
	)
}
